package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"skillup-lms/internal/apperror"
	"skillup-lms/internal/config"
	"skillup-lms/internal/database"
	"skillup-lms/internal/logger"
	"skillup-lms/internal/models"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

const (
	msgAlreadyEnrolled  = "User is already enrolled in this course"
	msgPaymentProcessed = "Payment has already been processed"
)

// CheckoutEvents публикует события после успешного оформления покупки.
type CheckoutEvents interface {
	PublishPaymentCompleted(payment *models.Payment, enrollmentID uuid.UUID) error
	PublishCouponRedeemed(usage *models.CouponUsage) error
}

// CheckoutService подтверждает оплату и атомарно записывает платёж, зачисление и использование купона.
type CheckoutService struct {
	db       *database.DB
	log      *logger.Logger
	secret   string
	currency string
	events   CheckoutEvents
	now      func() time.Time
}

// NewCheckoutService создаёт сервис оформления покупки.
func NewCheckoutService(db *database.DB, log *logger.Logger, cfg *config.RazorpayConfig, events CheckoutEvents) *CheckoutService {
	return &CheckoutService{
		db:       db,
		log:      log,
		secret:   cfg.KeySecret,
		currency: normalizeCurrency(cfg.Currency, models.DefaultCurrency),
		events:   events,
		now:      time.Now,
	}
}

// FinalizeCheckout проверяет подпись шлюза и в одной транзакции создаёт платёж, зачисление
// и, если передан купон, запись об использовании с увеличением счётчика.
func (s *CheckoutService) FinalizeCheckout(ctx context.Context, req *models.VerifyPaymentRequest) (*models.CheckoutResult, error) {
	if strings.TrimSpace(req.RazorpayOrderID) == "" || strings.TrimSpace(req.RazorpayPaymentID) == "" ||
		strings.TrimSpace(req.RazorpaySignature) == "" || req.UserID == uuid.Nil || req.CourseID == uuid.Nil {
		return nil, apperror.Validation(msgMissingFields, nil)
	}

	if s.secret == "" {
		s.log.Error("Payment verification rejected: gateway secret is not configured")
		return nil, ErrSigningSecretMissing
	}

	if !VerifyPaymentSignature(req.RazorpayOrderID, req.RazorpayPaymentID, req.RazorpaySignature, s.secret) {
		s.log.WithFields(map[string]interface{}{
			"order_id":   req.RazorpayOrderID,
			"payment_id": req.RazorpayPaymentID,
		}).Warn("Payment signature mismatch")
		return nil, ErrSignatureMismatch
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var coursePrice float64
	err = tx.QueryRowContext(ctx, `SELECT price FROM courses WHERE id = $1`, req.CourseID).Scan(&coursePrice)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("course not found", err)
		}
		return nil, fmt.Errorf("failed to get course: %w", err)
	}

	var enrolled bool
	if err := tx.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM enrollments WHERE user_id = $1 AND course_id = $2)`,
		req.UserID, req.CourseID,
	).Scan(&enrolled); err != nil {
		return nil, fmt.Errorf("failed to check enrollment: %w", err)
	}
	if enrolled {
		return nil, apperror.Conflict(msgAlreadyEnrolled, nil)
	}

	var processed bool
	if err := tx.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM payments WHERE gateway_payment_id = $1)`, req.RazorpayPaymentID,
	).Scan(&processed); err != nil {
		return nil, fmt.Errorf("failed to check payment: %w", err)
	}
	if processed {
		return nil, apperror.Conflict(msgPaymentProcessed, nil)
	}

	now := s.now().UTC()

	var (
		coupon   *models.Coupon
		discount float64
	)
	finalAmount := coursePrice
	if req.CouponData != nil {
		coupon, err = s.lockCoupon(ctx, tx, req.CouponData)
		if err != nil {
			return nil, err
		}
		if reason := checkCouponRules(coupon, req.CourseID, coursePrice, now); reason != "" {
			return nil, apperror.Conflict(reason, nil)
		}

		quote := CalculateDiscount(coursePrice, coupon.DiscountType, coupon.DiscountValue)
		if math.Abs(quote.DiscountAmount-req.CouponData.DiscountAmount) >= 0.01 {
			s.log.WithFields(map[string]interface{}{
				"coupon_id":       coupon.ID,
				"quoted_discount": req.CouponData.DiscountAmount,
				"actual_discount": quote.DiscountAmount,
			}).Warn("Coupon quote differs from recomputed discount")
		}
		discount = quote.DiscountAmount
		finalAmount = quote.FinalPrice
	}

	payment := &models.Payment{
		ID:               uuid.New(),
		UserID:           req.UserID,
		CourseID:         req.CourseID,
		Amount:           finalAmount,
		Currency:         s.currency,
		Status:           models.PaymentStatusCompleted,
		GatewayOrderID:   req.RazorpayOrderID,
		GatewayPaymentID: req.RazorpayPaymentID,
		GatewaySignature: req.RazorpaySignature,
		DiscountAmount:   discount,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if coupon != nil {
		payment.CouponID = &coupon.ID
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO payments (id, user_id, course_id, amount, currency, status, gateway_order_id,
			gateway_payment_id, gateway_signature, coupon_id, discount_amount, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		payment.ID, payment.UserID, payment.CourseID, payment.Amount, payment.Currency, payment.Status,
		payment.GatewayOrderID, payment.GatewayPaymentID, payment.GatewaySignature, payment.CouponID,
		payment.DiscountAmount, payment.CreatedAt, payment.UpdatedAt,
	); err != nil {
		if isUniqueViolation(err) {
			return nil, apperror.Conflict(msgPaymentProcessed, err)
		}
		return nil, fmt.Errorf("failed to create payment: %w", err)
	}

	enrollment := &models.Enrollment{
		ID:         uuid.New(),
		UserID:     req.UserID,
		CourseID:   req.CourseID,
		EnrolledAt: now,
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO enrollments (id, user_id, course_id, enrolled_at) VALUES ($1, $2, $3, $4)`,
		enrollment.ID, enrollment.UserID, enrollment.CourseID, enrollment.EnrolledAt,
	); err != nil {
		if isUniqueViolation(err) {
			return nil, apperror.Conflict(msgAlreadyEnrolled, err)
		}
		return nil, fmt.Errorf("failed to create enrollment: %w", err)
	}

	result := &models.CheckoutResult{Payment: payment, Enrollment: enrollment}

	if coupon != nil {
		usage := &models.CouponUsage{
			ID:             uuid.New(),
			CouponID:       coupon.ID,
			UserID:         req.UserID,
			CourseID:       req.CourseID,
			DiscountAmount: discount,
			UsedAt:         now,
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO coupon_usages (id, coupon_id, user_id, course_id, discount_amount, used_at)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			usage.ID, usage.CouponID, usage.UserID, usage.CourseID, usage.DiscountAmount, usage.UsedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to create coupon usage: %w", err)
		}

		res, err := tx.ExecContext(ctx, `
			UPDATE coupons SET current_uses = current_uses + 1, updated_at = $2
			WHERE id = $1 AND (max_uses IS NULL OR current_uses < max_uses)`,
			coupon.ID, now,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to increment coupon usage: %w", err)
		}
		rows, err := res.RowsAffected()
		if err != nil {
			return nil, fmt.Errorf("failed to get rows affected: %w", err)
		}
		if rows == 0 {
			return nil, apperror.Conflict(msgUsageLimitReached, nil)
		}
		result.CouponUsage = usage
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit checkout: %w", err)
	}

	s.log.WithFields(map[string]interface{}{
		"payment_id":    payment.ID,
		"enrollment_id": enrollment.ID,
		"user_id":       req.UserID,
		"course_id":     req.CourseID,
		"amount":        payment.Amount,
	}).Info("Checkout finalized")

	s.publish(result)
	return result, nil
}

func (s *CheckoutService) lockCoupon(ctx context.Context, tx *sql.Tx, data *models.CouponData) (*models.Coupon, error) {
	var row *sql.Row
	switch {
	case data.CouponID != uuid.Nil:
		row = tx.QueryRowContext(ctx, `SELECT `+couponColumns+` FROM coupons WHERE id = $1 FOR UPDATE`, data.CouponID)
	case normalizeCouponCode(data.Code) != "":
		row = tx.QueryRowContext(ctx, `SELECT `+couponColumns+` FROM coupons WHERE code = $1 FOR UPDATE`, normalizeCouponCode(data.Code))
	default:
		return nil, apperror.Validation("couponData must include couponId or code", nil)
	}

	coupon, err := scanCoupon(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.Conflict(msgInvalidCoupon, err)
		}
		return nil, fmt.Errorf("failed to lock coupon: %w", err)
	}
	return coupon, nil
}

func (s *CheckoutService) publish(result *models.CheckoutResult) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishPaymentCompleted(result.Payment, result.Enrollment.ID); err != nil {
		s.log.WithError(err).WithField("payment_id", result.Payment.ID).Error("Failed to publish payment completed event")
	}
	if result.CouponUsage != nil {
		if err := s.events.PublishCouponRedeemed(result.CouponUsage); err != nil {
			s.log.WithError(err).WithField("coupon_id", result.CouponUsage.CouponID).Error("Failed to publish coupon redeemed event")
		}
	}
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
