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
)

const (
	defaultCouponPageSize = 20
	maxCouponPageSize     = 100
	// maxCouponPage держит OFFSET = (page-1)*limit далеко от переполнения int.
	maxCouponPage = 1_000_000
)

var (
	errInvalidPercentage   = errors.New("percentage discount must be between 0 and 100")
	errInvalidFixedAmount  = errors.New("fixed discount must be positive")
	errInvalidDiscountType = errors.New("discountType must be percentage or fixed_amount")
)

// CouponService управляет купонами и историей их использования.
type CouponService struct {
	db  *database.DB
	log *logger.Logger
}

// NewCouponService создаёт сервис купонов.
func NewCouponService(db *database.DB, log *logger.Logger) *CouponService {
	return &CouponService{
		db:  db,
		log: log,
	}
}

// CreateCoupon создаёт купон. Код нормализуется к верхнему регистру.
func (s *CouponService) CreateCoupon(ctx context.Context, req *models.CreateCouponRequest) (*models.Coupon, error) {
	isActive := true
	if req.IsActive != nil {
		isActive = *req.IsActive
	}

	now := time.Now().UTC()
	coupon := &models.Coupon{
		ID:                uuid.New(),
		Code:              normalizeCouponCode(req.Code),
		DiscountType:      req.DiscountType,
		DiscountValue:     req.DiscountValue,
		IsActive:          isActive,
		ValidFrom:         req.ValidFrom,
		ValidUntil:        req.ValidUntil,
		MaxUses:           req.MaxUses,
		MinPurchaseAmount: req.MinPurchaseAmount,
		CourseID:          req.CourseID,
		CreatedBy:         req.CreatedBy,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := validateCouponPayload(coupon); err != nil {
		return nil, apperror.Validation(err.Error(), err)
	}

	query := `
		INSERT INTO coupons (id, code, discount_type, discount_value, is_active, valid_from, valid_until,
			max_uses, current_uses, min_purchase_amount, course_id, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 0, $9, $10, $11, $12, $13)
	`
	_, err := s.db.ExecContext(ctx, query,
		coupon.ID, coupon.Code, coupon.DiscountType, coupon.DiscountValue, coupon.IsActive, coupon.ValidFrom,
		coupon.ValidUntil, coupon.MaxUses, coupon.MinPurchaseAmount, coupon.CourseID, coupon.CreatedBy,
		coupon.CreatedAt, coupon.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, apperror.Conflict("coupon code already exists", err)
		}
		return nil, fmt.Errorf("failed to create coupon: %w", err)
	}

	s.log.WithFields(map[string]interface{}{
		"coupon_id": coupon.ID,
		"code":      coupon.Code,
	}).Info("Coupon created")
	return coupon, nil
}

// GetCoupon возвращает купон по ID.
func (s *CouponService) GetCoupon(ctx context.Context, couponID uuid.UUID) (*models.Coupon, error) {
	coupon, err := scanCoupon(s.db.QueryRowContext(ctx, `SELECT `+couponColumns+` FROM coupons WHERE id = $1`, couponID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("coupon not found", err)
		}
		return nil, fmt.Errorf("failed to get coupon: %w", err)
	}
	return coupon, nil
}

// UpdateCoupon полностью обновляет редактируемые поля купона. Счётчик использований не меняется.
func (s *CouponService) UpdateCoupon(ctx context.Context, couponID uuid.UUID, req *models.UpdateCouponRequest) (*models.Coupon, error) {
	candidate := &models.Coupon{
		Code:              normalizeCouponCode(req.Code),
		DiscountType:      req.DiscountType,
		DiscountValue:     req.DiscountValue,
		ValidFrom:         req.ValidFrom,
		ValidUntil:        req.ValidUntil,
		MaxUses:           req.MaxUses,
		MinPurchaseAmount: req.MinPurchaseAmount,
	}
	if err := validateCouponPayload(candidate); err != nil {
		return nil, apperror.Validation(err.Error(), err)
	}

	query := `
		UPDATE coupons
		SET code = $1, discount_type = $2, discount_value = $3, is_active = $4, valid_from = $5,
			valid_until = $6, max_uses = $7, min_purchase_amount = $8, course_id = $9, updated_at = $10
		WHERE id = $11
	`
	result, err := s.db.ExecContext(ctx, query,
		candidate.Code, req.DiscountType, req.DiscountValue, req.IsActive, req.ValidFrom, req.ValidUntil,
		req.MaxUses, req.MinPurchaseAmount, req.CourseID, time.Now().UTC(), couponID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, apperror.Conflict("coupon code already exists", err)
		}
		return nil, fmt.Errorf("failed to update coupon: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return nil, apperror.NotFound("coupon not found", nil)
	}

	s.log.WithField("coupon_id", couponID).Info("Coupon updated")
	return s.GetCoupon(ctx, couponID)
}

// DeleteCoupon удаляет купон без истории использования; использованный купон можно только деактивировать.
func (s *CouponService) DeleteCoupon(ctx context.Context, couponID uuid.UUID) error {
	var used bool
	if err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM coupon_usages WHERE coupon_id = $1)`, couponID,
	).Scan(&used); err != nil {
		return fmt.Errorf("failed to check coupon usages: %w", err)
	}
	if used {
		return apperror.Conflict("coupon has usage history; deactivate it instead", nil)
	}

	result, err := s.db.ExecContext(ctx, `DELETE FROM coupons WHERE id = $1`, couponID)
	if err != nil {
		return fmt.Errorf("failed to delete coupon: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return apperror.NotFound("coupon not found", nil)
	}

	s.log.WithField("coupon_id", couponID).Info("Coupon deleted")
	return nil
}

// ListCoupons возвращает страницу купонов с фильтрами isActive и courseId.
func (s *CouponService) ListCoupons(ctx context.Context, filter *models.CouponFilter) (*models.CouponList, error) {
	page, limit := normalizePage(filter.Page, filter.Limit)

	var (
		conditions []string
		args       []interface{}
	)
	if filter.IsActive != nil {
		args = append(args, *filter.IsActive)
		conditions = append(conditions, fmt.Sprintf("is_active = $%d", len(args)))
	}
	if filter.CourseID != nil {
		args = append(args, *filter.CourseID)
		conditions = append(conditions, fmt.Sprintf("course_id = $%d", len(args)))
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM coupons`+where, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count coupons: %w", err)
	}

	listArgs := append(append([]interface{}{}, args...), limit, (page-1)*limit)
	query := fmt.Sprintf(`SELECT %s FROM coupons%s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		couponColumns, where, len(args)+1, len(args)+2)

	rows, err := s.db.QueryContext(ctx, query, listArgs...)
	if err != nil {
		return nil, fmt.Errorf("failed to list coupons: %w", err)
	}
	defer rows.Close()

	coupons := make([]*models.Coupon, 0, limit)
	for rows.Next() {
		c, err := scanCoupon(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan coupon: %w", err)
		}
		coupons = append(coupons, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate coupons: %w", err)
	}

	return &models.CouponList{
		Coupons: coupons,
		Total:   total,
		Page:    page,
		Limit:   limit,
	}, nil
}

// ListUsages возвращает историю использования купона, новые записи первыми.
func (s *CouponService) ListUsages(ctx context.Context, couponID uuid.UUID) ([]*models.CouponUsage, error) {
	if _, err := s.GetCoupon(ctx, couponID); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, coupon_id, user_id, course_id, discount_amount, used_at
		FROM coupon_usages
		WHERE coupon_id = $1
		ORDER BY used_at DESC
	`, couponID)
	if err != nil {
		return nil, fmt.Errorf("failed to list coupon usages: %w", err)
	}
	defer rows.Close()

	usages := make([]*models.CouponUsage, 0)
	for rows.Next() {
		u := &models.CouponUsage{}
		if err := rows.Scan(&u.ID, &u.CouponID, &u.UserID, &u.CourseID, &u.DiscountAmount, &u.UsedAt); err != nil {
			return nil, fmt.Errorf("failed to scan coupon usage: %w", err)
		}
		usages = append(usages, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate coupon usages: %w", err)
	}
	return usages, nil
}

// ExportUsages формирует XLSX с историей использования купона.
func (s *CouponService) ExportUsages(ctx context.Context, couponID uuid.UUID) (*models.Coupon, []byte, error) {
	coupon, err := s.GetCoupon(ctx, couponID)
	if err != nil {
		return nil, nil, err
	}
	usages, err := s.ListUsages(ctx, couponID)
	if err != nil {
		return nil, nil, err
	}
	report, err := BuildCouponUsageReport(coupon, usages)
	if err != nil {
		return nil, nil, err
	}
	return coupon, report, nil
}

func validateCouponPayload(c *models.Coupon) error {
	if c.Code == "" {
		return errors.New("code is required")
	}
	switch c.DiscountType {
	case models.DiscountTypePercentage:
		if c.DiscountValue <= 0 || c.DiscountValue > 100 {
			return errInvalidPercentage
		}
	case models.DiscountTypeFixedAmount:
		if c.DiscountValue <= 0 {
			return errInvalidFixedAmount
		}
	default:
		return errInvalidDiscountType
	}
	if c.MaxUses != nil && *c.MaxUses <= 0 {
		return errors.New("maxUses must be positive")
	}
	if c.MinPurchaseAmount != nil && *c.MinPurchaseAmount < 0 {
		return errors.New("minPurchaseAmount must be non-negative")
	}
	if c.ValidFrom != nil && c.ValidUntil != nil && c.ValidUntil.Before(*c.ValidFrom) {
		return errors.New("validUntil must be after validFrom")
	}
	return nil
}

func normalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if page > maxCouponPage {
		page = maxCouponPage
	}
	if limit <= 0 {
		limit = defaultCouponPageSize
	}
	if limit > maxCouponPageSize {
		limit = maxCouponPageSize
	}
	return page, limit
}
