package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// EventType - тип доменного события в Kafka.
type EventType string

const (
	EventTypePaymentCompleted EventType = "payment.completed"
	EventTypePaymentRefunded  EventType = "payment.refunded"
	EventTypeCouponRedeemed   EventType = "coupon.redeemed"
)

// Event - конверт события.
type Event struct {
	ID        uuid.UUID       `json:"id"`
	Type      EventType       `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// PaymentEventData - полезная нагрузка событий платежа.
type PaymentEventData struct {
	PaymentID      uuid.UUID     `json:"payment_id"`
	UserID         uuid.UUID     `json:"user_id"`
	CourseID       uuid.UUID     `json:"course_id"`
	EnrollmentID   *uuid.UUID    `json:"enrollment_id,omitempty"`
	Amount         float64       `json:"amount"`
	Currency       string        `json:"currency"`
	Status         PaymentStatus `json:"status"`
	CouponID       *uuid.UUID    `json:"coupon_id,omitempty"`
	DiscountAmount float64       `json:"discount_amount"`
}

// CouponRedeemedData - полезная нагрузка события применения купона.
type CouponRedeemedData struct {
	CouponID       uuid.UUID `json:"coupon_id"`
	UserID         uuid.UUID `json:"user_id"`
	CourseID       uuid.UUID `json:"course_id"`
	DiscountAmount float64   `json:"discount_amount"`
}
