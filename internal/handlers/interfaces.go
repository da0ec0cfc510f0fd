package handlers

import (
	"context"

	"skillup-lms/internal/models"

	"github.com/google/uuid"
)

// ----- Coupons -----

type CouponValidator interface {
	Validate(ctx context.Context, req *models.ValidateCouponRequest) (*models.CouponValidation, error)
}

type CouponService interface {
	CreateCoupon(ctx context.Context, req *models.CreateCouponRequest) (*models.Coupon, error)
	GetCoupon(ctx context.Context, couponID uuid.UUID) (*models.Coupon, error)
	UpdateCoupon(ctx context.Context, couponID uuid.UUID, req *models.UpdateCouponRequest) (*models.Coupon, error)
	DeleteCoupon(ctx context.Context, couponID uuid.UUID) error
	ListCoupons(ctx context.Context, filter *models.CouponFilter) (*models.CouponList, error)
	ListUsages(ctx context.Context, couponID uuid.UUID) ([]*models.CouponUsage, error)
	ExportUsages(ctx context.Context, couponID uuid.UUID) (*models.Coupon, []byte, error)
}

// ----- Checkout -----

type CheckoutFinalizer interface {
	FinalizeCheckout(ctx context.Context, req *models.VerifyPaymentRequest) (*models.CheckoutResult, error)
}

type OrderCreator interface {
	CreateOrder(ctx context.Context, req *models.CreateOrderRequest) (*models.CreateOrderResponse, error)
}

// ----- Payments -----

type PaymentService interface {
	GetPayment(ctx context.Context, paymentID uuid.UUID) (*models.Payment, error)
	RefundPayment(ctx context.Context, paymentID uuid.UUID, req *models.RefundPaymentRequest) (*models.Payment, error)
	GetReceipt(ctx context.Context, paymentID uuid.UUID) ([]byte, error)
}

// ----- Health -----

type DBHealth interface {
	Health() error
}

type RedisHealth interface {
	Health(ctx context.Context) error
}
