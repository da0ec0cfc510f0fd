package models

import (
	"time"

	"github.com/google/uuid"
)

// DiscountType описывает тип скидки купона.
type DiscountType string

const (
	DiscountTypePercentage  DiscountType = "percentage"
	DiscountTypeFixedAmount DiscountType = "fixed_amount"
)

// Coupon представляет купон на скидку.
type Coupon struct {
	ID                uuid.UUID    `json:"id" db:"id"`
	Code              string       `json:"code" db:"code"`
	DiscountType      DiscountType `json:"discountType" db:"discount_type"`
	DiscountValue     float64      `json:"discountValue" db:"discount_value"`
	IsActive          bool         `json:"isActive" db:"is_active"`
	ValidFrom         *time.Time   `json:"validFrom,omitempty" db:"valid_from"`
	ValidUntil        *time.Time   `json:"validUntil,omitempty" db:"valid_until"`
	MaxUses           *int         `json:"maxUses,omitempty" db:"max_uses"`
	CurrentUses       int          `json:"currentUses" db:"current_uses"`
	MinPurchaseAmount *float64     `json:"minPurchaseAmount,omitempty" db:"min_purchase_amount"`
	CourseID          *uuid.UUID   `json:"courseId,omitempty" db:"course_id"`
	CreatedBy         *uuid.UUID   `json:"createdBy,omitempty" db:"created_by"`
	CreatedAt         time.Time    `json:"createdAt" db:"created_at"`
	UpdatedAt         time.Time    `json:"updatedAt" db:"updated_at"`
}

// CreateCouponRequest описывает запрос на создание купона.
type CreateCouponRequest struct {
	Code              string       `json:"code"`
	DiscountType      DiscountType `json:"discountType"`
	DiscountValue     float64      `json:"discountValue"`
	IsActive          *bool        `json:"isActive,omitempty"` // по умолчанию true
	ValidFrom         *time.Time   `json:"validFrom,omitempty"`
	ValidUntil        *time.Time   `json:"validUntil,omitempty"`
	MaxUses           *int         `json:"maxUses,omitempty"`
	MinPurchaseAmount *float64     `json:"minPurchaseAmount,omitempty"`
	CourseID          *uuid.UUID   `json:"courseId,omitempty"`
	CreatedBy         *uuid.UUID   `json:"createdBy,omitempty"`
}

// UpdateCouponRequest описывает полное обновление купона.
type UpdateCouponRequest struct {
	Code              string       `json:"code"`
	DiscountType      DiscountType `json:"discountType"`
	DiscountValue     float64      `json:"discountValue"`
	IsActive          bool         `json:"isActive"`
	ValidFrom         *time.Time   `json:"validFrom,omitempty"`
	ValidUntil        *time.Time   `json:"validUntil,omitempty"`
	MaxUses           *int         `json:"maxUses,omitempty"`
	MinPurchaseAmount *float64     `json:"minPurchaseAmount,omitempty"`
	CourseID          *uuid.UUID   `json:"courseId,omitempty"`
}

// CouponFilter описывает фильтры и пагинацию списка купонов.
type CouponFilter struct {
	IsActive *bool
	CourseID *uuid.UUID
	Page     int
	Limit    int
}

// CouponList - страница списка купонов.
type CouponList struct {
	Coupons []*Coupon `json:"coupons"`
	Total   int       `json:"total"`
	Page    int       `json:"page"`
	Limit   int       `json:"limit"`
}

// CouponUsage - неизменяемая запись о применении купона.
type CouponUsage struct {
	ID             uuid.UUID `json:"id" db:"id"`
	CouponID       uuid.UUID `json:"couponId" db:"coupon_id"`
	UserID         uuid.UUID `json:"userId" db:"user_id"`
	CourseID       uuid.UUID `json:"courseId" db:"course_id"`
	DiscountAmount float64   `json:"discountAmount" db:"discount_amount"`
	UsedAt         time.Time `json:"usedAt" db:"used_at"`
}

// ValidateCouponRequest описывает запрос на проверку купона.
type ValidateCouponRequest struct {
	Code        string   `json:"code"`
	CourseID    string   `json:"courseId"`
	UserID      string   `json:"userId,omitempty"`
	CoursePrice *float64 `json:"coursePrice"`
}

// DiscountQuote - результат расчёта скидки.
type DiscountQuote struct {
	DiscountAmount float64 `json:"discount_amount"`
	FinalPrice     float64 `json:"final_price"`
}

// CouponQuote - купон в ответе на проверку.
type CouponQuote struct {
	ID             uuid.UUID    `json:"id"`
	Code           string       `json:"code"`
	DiscountType   DiscountType `json:"discount_type"`
	DiscountValue  float64      `json:"discount_value"`
	DiscountAmount float64      `json:"discount_amount"`
	FinalPrice     float64      `json:"final_price"`
}

// CouponValidation - ответ на проверку купона.
type CouponValidation struct {
	Valid  bool         `json:"valid"`
	Coupon *CouponQuote `json:"coupon,omitempty"`
	Error  string       `json:"error,omitempty"`
}
