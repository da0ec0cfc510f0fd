package models

import (
	"time"

	"github.com/google/uuid"
)

// PaymentStatus представляет статус платежа
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusFailed    PaymentStatus = "failed"
	PaymentStatusRefunded  PaymentStatus = "refunded"

	// PaymentStatusRefundPending выставляется до обращения к шлюзу и блокирует повторный возврат.
	PaymentStatusRefundPending PaymentStatus = "refund_pending"
)

// DefaultCurrency - валюта платежей по умолчанию.
const DefaultCurrency = "INR"

// Payment представляет платёж за курс
type Payment struct {
	ID               uuid.UUID     `json:"id" db:"id"`
	UserID           uuid.UUID     `json:"userId" db:"user_id"`
	CourseID         uuid.UUID     `json:"courseId" db:"course_id"`
	Amount           float64       `json:"amount" db:"amount"`
	Currency         string        `json:"currency" db:"currency"`
	Status           PaymentStatus `json:"status" db:"status"`
	GatewayOrderID   string        `json:"gatewayOrderId" db:"gateway_order_id"`
	GatewayPaymentID string        `json:"gatewayPaymentId" db:"gateway_payment_id"`
	GatewaySignature string        `json:"-" db:"gateway_signature"`
	CouponID         *uuid.UUID    `json:"couponId,omitempty" db:"coupon_id"`
	DiscountAmount   float64       `json:"discountAmount" db:"discount_amount"`
	RefundID         *string       `json:"refundId,omitempty" db:"refund_id"`
	CreatedAt        time.Time     `json:"createdAt" db:"created_at"`
	UpdatedAt        time.Time     `json:"updatedAt" db:"updated_at"`
}

// CreateOrderRequest описывает запрос на создание заказа в платёжном шлюзе.
type CreateOrderRequest struct {
	Amount   float64           `json:"amount"`
	Currency string            `json:"currency,omitempty"`
	Receipt  string            `json:"receipt"`
	Notes    map[string]string `json:"notes,omitempty"`
}

// GatewayOrder - заказ, созданный на стороне шлюза. Amount в минимальных единицах (пайсах).
type GatewayOrder struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
	Status   string `json:"status"`
}

// CreateOrderResponse - ответ клиенту на создание заказа.
type CreateOrderResponse struct {
	Success  bool   `json:"success"`
	OrderID  string `json:"orderId"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

// CouponData - котировка купона, полученная клиентом при проверке.
type CouponData struct {
	CouponID       uuid.UUID `json:"couponId"`
	Code           string    `json:"code,omitempty"`
	DiscountAmount float64   `json:"discountAmount"`
}

// VerifyPaymentRequest описывает подтверждение оплаты от клиента.
type VerifyPaymentRequest struct {
	RazorpayOrderID   string      `json:"razorpay_order_id"`
	RazorpayPaymentID string      `json:"razorpay_payment_id"`
	RazorpaySignature string      `json:"razorpay_signature"`
	UserID            uuid.UUID   `json:"userId"`
	CourseID          uuid.UUID   `json:"courseId"`
	CouponData        *CouponData `json:"couponData,omitempty"`
}

// CheckoutResult - итог успешного оформления покупки.
type CheckoutResult struct {
	Payment     *Payment     `json:"payment"`
	Enrollment  *Enrollment  `json:"enrollment"`
	CouponUsage *CouponUsage `json:"couponUsage,omitempty"`
}

// VerifyPaymentResponse - ответ клиенту после подтверждения оплаты.
type VerifyPaymentResponse struct {
	Success      bool      `json:"success"`
	Message      string    `json:"message"`
	PaymentID    uuid.UUID `json:"paymentId"`
	EnrollmentID uuid.UUID `json:"enrollmentId"`
}

// RefundPaymentRequest описывает запрос на возврат.
type RefundPaymentRequest struct {
	Reason string `json:"reason,omitempty"`
}
