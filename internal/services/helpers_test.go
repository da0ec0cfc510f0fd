package services

import (
	"database/sql/driver"
	"testing"
	"time"

	"skillup-lms/internal/config"
	"skillup-lms/internal/database"
	"skillup-lms/internal/logger"
	"skillup-lms/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
)

func newTestLogger() *logger.Logger {
	return logger.New(&config.LoggerConfig{Level: "error", Format: "json"})
}

func newMockDB(t *testing.T) (*database.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}

	return &database.DB{DB: db}, mock
}

func fixedClock(ts time.Time) func() time.Time {
	return func() time.Time { return ts }
}

var couponColumnNames = []string{
	"id", "code", "discount_type", "discount_value", "is_active", "valid_from", "valid_until",
	"max_uses", "current_uses", "min_purchase_amount", "course_id", "created_by", "created_at", "updated_at",
}

func intPtr(v int) *int             { return &v }
func floatPtr(v float64) *float64   { return &v }
func timePtr(v time.Time) *time.Time { return &v }

func uuidPtr(v uuid.UUID) *uuid.UUID { return &v }

// couponRows собирает строки sqlmock в порядке couponColumns.
func couponRows(coupons ...*models.Coupon) *sqlmock.Rows {
	rows := sqlmock.NewRows(couponColumnNames)
	for _, c := range coupons {
		var validFrom, validUntil, maxUses, minPurchase, courseID, createdBy driver.Value
		if c.ValidFrom != nil {
			validFrom = *c.ValidFrom
		}
		if c.ValidUntil != nil {
			validUntil = *c.ValidUntil
		}
		if c.MaxUses != nil {
			maxUses = int64(*c.MaxUses)
		}
		if c.MinPurchaseAmount != nil {
			minPurchase = *c.MinPurchaseAmount
		}
		if c.CourseID != nil {
			courseID = c.CourseID.String()
		}
		if c.CreatedBy != nil {
			createdBy = c.CreatedBy.String()
		}
		rows.AddRow(
			c.ID.String(), c.Code, string(c.DiscountType), c.DiscountValue, c.IsActive, validFrom, validUntil,
			maxUses, int64(c.CurrentUses), minPurchase, courseID, createdBy, c.CreatedAt, c.UpdatedAt,
		)
	}
	return rows
}

func newTestCoupon(code string, discountType models.DiscountType, value float64) *models.Coupon {
	now := time.Now()
	return &models.Coupon{
		ID:            uuid.New(),
		Code:          code,
		DiscountType:  discountType,
		DiscountValue: value,
		IsActive:      true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}
