package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"skillup-lms/internal/apperror"
	"skillup-lms/internal/database"
	"skillup-lms/internal/logger"
	"skillup-lms/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Причины отказа в применении купона. Тексты видят клиенты.
const (
	msgMissingFields     = "Missing required fields"
	msgInvalidCoupon     = "Invalid or inactive coupon code"
	msgWrongCourse       = "Coupon is not valid for this course"
	msgCouponExpired     = "Coupon has expired"
	msgCouponNotYetValid = "Coupon is not yet valid"
	msgUsageLimitReached = "Coupon usage limit reached"
)

// CouponValidator проверяет купон без изменения его состояния.
type CouponValidator struct {
	db  *database.DB
	log *logger.Logger
	now func() time.Time
}

// NewCouponValidator создаёт валидатор купонов.
func NewCouponValidator(db *database.DB, log *logger.Logger) *CouponValidator {
	return &CouponValidator{
		db:  db,
		log: log,
		now: time.Now,
	}
}

// Validate проверяет купон для курса и цены. Ошибки запроса возвращаются как apperror.Validation,
// отказы по бизнес-правилам - как CouponValidation с Valid=false.
func (v *CouponValidator) Validate(ctx context.Context, req *models.ValidateCouponRequest) (*models.CouponValidation, error) {
	code := normalizeCouponCode(req.Code)
	courseIDStr := strings.TrimSpace(req.CourseID)
	if code == "" || courseIDStr == "" || req.CoursePrice == nil {
		return nil, apperror.Validation(msgMissingFields, nil)
	}

	courseID, err := uuid.Parse(courseIDStr)
	if err != nil {
		return nil, apperror.Validation("Invalid courseId", err)
	}
	price := *req.CoursePrice
	if price < 0 {
		return nil, apperror.Validation("coursePrice must be non-negative", nil)
	}

	query := `SELECT ` + couponColumns + ` FROM coupons WHERE code = $1 AND is_active = true`
	coupon, err := scanCoupon(v.db.QueryRowContext(ctx, query, code))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return rejectCoupon(msgInvalidCoupon), nil
		}
		return nil, fmt.Errorf("failed to get coupon: %w", err)
	}

	if reason := checkCouponRules(coupon, courseID, price, v.now()); reason != "" {
		v.log.WithFields(map[string]interface{}{
			"code":   coupon.Code,
			"reason": reason,
		}).Debug("Coupon rejected")
		return rejectCoupon(reason), nil
	}

	quote := CalculateDiscount(price, coupon.DiscountType, coupon.DiscountValue)
	return &models.CouponValidation{
		Valid: true,
		Coupon: &models.CouponQuote{
			ID:             coupon.ID,
			Code:           coupon.Code,
			DiscountType:   coupon.DiscountType,
			DiscountValue:  coupon.DiscountValue,
			DiscountAmount: quote.DiscountAmount,
			FinalPrice:     quote.FinalPrice,
		},
	}, nil
}

// checkCouponRules возвращает причину отказа или пустую строку. Порядок проверок значим.
func checkCouponRules(c *models.Coupon, courseID uuid.UUID, price float64, now time.Time) string {
	if !c.IsActive {
		return msgInvalidCoupon
	}
	if c.CourseID != nil && *c.CourseID != courseID {
		return msgWrongCourse
	}
	if c.ValidUntil != nil && now.After(*c.ValidUntil) {
		return msgCouponExpired
	}
	if c.ValidFrom != nil && now.Before(*c.ValidFrom) {
		return msgCouponNotYetValid
	}
	if c.MinPurchaseAmount != nil && price < *c.MinPurchaseAmount {
		return minPurchaseMessage(*c.MinPurchaseAmount)
	}
	if c.MaxUses != nil && c.CurrentUses >= *c.MaxUses {
		return msgUsageLimitReached
	}
	return ""
}

func minPurchaseMessage(min float64) string {
	return fmt.Sprintf("Minimum purchase amount of ₹%s required", decimal.NewFromFloat(min).String())
}

func rejectCoupon(reason string) *models.CouponValidation {
	return &models.CouponValidation{Valid: false, Error: reason}
}

func normalizeCouponCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

const couponColumns = `id, code, discount_type, discount_value, is_active, valid_from, valid_until,
		max_uses, current_uses, min_purchase_amount, course_id, created_by, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanCoupon(row rowScanner) (*models.Coupon, error) {
	c := &models.Coupon{}
	if err := row.Scan(
		&c.ID, &c.Code, &c.DiscountType, &c.DiscountValue, &c.IsActive, &c.ValidFrom, &c.ValidUntil,
		&c.MaxUses, &c.CurrentUses, &c.MinPurchaseAmount, &c.CourseID, &c.CreatedBy, &c.CreatedAt, &c.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return c, nil
}
