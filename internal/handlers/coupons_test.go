package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"skillup-lms/internal/apperror"
	"skillup-lms/internal/config"
	"skillup-lms/internal/logger"
	"skillup-lms/internal/models"

	"github.com/google/uuid"
)

func newTestLogger() *logger.Logger {
	return logger.New(&config.LoggerConfig{Level: "error", Format: "json"})
}

type stubValidator struct {
	result *models.CouponValidation
	err    error
	got    *models.ValidateCouponRequest
}

func (s *stubValidator) Validate(ctx context.Context, req *models.ValidateCouponRequest) (*models.CouponValidation, error) {
	s.got = req
	return s.result, s.err
}

type stubCouponService struct {
	coupon    *models.Coupon
	list      *models.CouponList
	usages    []*models.CouponUsage
	report    []byte
	err       error
	gotFilter *models.CouponFilter
	gotID     uuid.UUID
}

func (s *stubCouponService) CreateCoupon(ctx context.Context, req *models.CreateCouponRequest) (*models.Coupon, error) {
	return s.coupon, s.err
}
func (s *stubCouponService) GetCoupon(ctx context.Context, couponID uuid.UUID) (*models.Coupon, error) {
	s.gotID = couponID
	return s.coupon, s.err
}
func (s *stubCouponService) UpdateCoupon(ctx context.Context, couponID uuid.UUID, req *models.UpdateCouponRequest) (*models.Coupon, error) {
	s.gotID = couponID
	return s.coupon, s.err
}
func (s *stubCouponService) DeleteCoupon(ctx context.Context, couponID uuid.UUID) error {
	s.gotID = couponID
	return s.err
}
func (s *stubCouponService) ListCoupons(ctx context.Context, filter *models.CouponFilter) (*models.CouponList, error) {
	s.gotFilter = filter
	return s.list, s.err
}
func (s *stubCouponService) ListUsages(ctx context.Context, couponID uuid.UUID) ([]*models.CouponUsage, error) {
	s.gotID = couponID
	return s.usages, s.err
}
func (s *stubCouponService) ExportUsages(ctx context.Context, couponID uuid.UUID) (*models.Coupon, []byte, error) {
	s.gotID = couponID
	return s.coupon, s.report, s.err
}

func decodeValidation(t *testing.T, rr *httptest.ResponseRecorder) models.CouponValidation {
	t.Helper()
	var v models.CouponValidation
	if err := json.Unmarshal(rr.Body.Bytes(), &v); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return v
}

func TestCouponHandler_ValidateCoupon_Valid(t *testing.T) {
	quote := &models.CouponQuote{ID: uuid.New(), Code: "SAVE20", DiscountType: models.DiscountTypePercentage, DiscountValue: 20, DiscountAmount: 200, FinalPrice: 800}
	validator := &stubValidator{result: &models.CouponValidation{Valid: true, Coupon: quote}}
	h := NewCouponHandler(&stubCouponService{}, validator, newTestLogger())

	body := bytes.NewBufferString(`{"code":"save20","courseId":"` + uuid.NewString() + `","coursePrice":1000}`)
	rr := httptest.NewRecorder()
	h.ValidateCoupon(rr, httptest.NewRequest(http.MethodPost, "/api/coupons/validate", body))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	v := decodeValidation(t, rr)
	if !v.Valid || v.Coupon == nil || v.Coupon.FinalPrice != 800 {
		t.Fatalf("unexpected validation: %+v", v)
	}
	if validator.got.CoursePrice == nil || *validator.got.CoursePrice != 1000 {
		t.Fatalf("course price not passed to validator")
	}
	if !bytes.Contains(rr.Body.Bytes(), []byte(`"discount_amount":200`)) {
		t.Fatalf("expected snake_case quote fields, got %s", rr.Body.String())
	}
}

func TestCouponHandler_ValidateCoupon_BusinessRejectionIs200(t *testing.T) {
	validator := &stubValidator{result: &models.CouponValidation{Valid: false, Error: "Coupon has expired"}}
	h := NewCouponHandler(&stubCouponService{}, validator, newTestLogger())

	rr := httptest.NewRecorder()
	h.ValidateCoupon(rr, httptest.NewRequest(http.MethodPost, "/api/coupons/validate", bytes.NewBufferString(`{"code":"OLD","courseId":"x","coursePrice":10}`)))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if v := decodeValidation(t, rr); v.Valid || v.Error != "Coupon has expired" {
		t.Fatalf("unexpected validation: %+v", v)
	}
}

func TestCouponHandler_ValidateCoupon_MissingFields(t *testing.T) {
	validator := &stubValidator{err: apperror.Validation("Missing required fields", nil)}
	h := NewCouponHandler(&stubCouponService{}, validator, newTestLogger())

	rr := httptest.NewRecorder()
	h.ValidateCoupon(rr, httptest.NewRequest(http.MethodPost, "/api/coupons/validate", bytes.NewBufferString(`{}`)))

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	if v := decodeValidation(t, rr); v.Valid || v.Error != "Missing required fields" {
		t.Fatalf("unexpected validation: %+v", v)
	}
}

func TestCouponHandler_ValidateCoupon_Errors(t *testing.T) {
	h := NewCouponHandler(&stubCouponService{}, &stubValidator{err: errors.New("db down")}, newTestLogger())

	rr := httptest.NewRecorder()
	h.ValidateCoupon(rr, httptest.NewRequest(http.MethodPost, "/api/coupons/validate", bytes.NewBufferString(`{"code":"A"}`)))
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	h.ValidateCoupon(rr, httptest.NewRequest(http.MethodPost, "/api/coupons/validate", bytes.NewBufferString("bad json")))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	h.ValidateCoupon(rr, httptest.NewRequest(http.MethodGet, "/api/coupons/validate", nil))
	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rr.Code)
	}
}

func TestCouponHandler_CreateAndGet(t *testing.T) {
	c := &models.Coupon{ID: uuid.New(), Code: "SAVE20", DiscountType: models.DiscountTypePercentage, DiscountValue: 20, IsActive: true, CreatedAt: time.Now(), UpdatedAt: time.Now()}
	service := &stubCouponService{coupon: c}
	h := NewCouponHandler(service, &stubValidator{}, newTestLogger())

	rr := httptest.NewRecorder()
	h.CreateCoupon(rr, httptest.NewRequest(http.MethodPost, "/api/coupons", bytes.NewBufferString(`{"code":"save20","discountType":"percentage","discountValue":20}`)))
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	h.GetCoupon(rr, httptest.NewRequest(http.MethodGet, "/api/coupons/"+c.ID.String(), nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if service.gotID != c.ID {
		t.Fatalf("expected id %s, got %s", c.ID, service.gotID)
	}
}

func TestCouponHandler_CreateCoupon_Errors(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		err    error
		status int
	}{
		{"invalid body", "bad json", nil, http.StatusBadRequest},
		{"empty code", `{"code":"  ","discountType":"fixed_amount","discountValue":10}`, nil, http.StatusBadRequest},
		{"service validation", `{"code":"X","discountType":"percentage","discountValue":120}`, apperror.Validation("percentage discount must be between 0 and 100", nil), http.StatusBadRequest},
		{"duplicate code", `{"code":"X","discountType":"fixed_amount","discountValue":10}`, apperror.Conflict("coupon code already exists", nil), http.StatusConflict},
		{"internal", `{"code":"X","discountType":"fixed_amount","discountValue":10}`, errors.New("db down"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewCouponHandler(&stubCouponService{err: tt.err}, &stubValidator{}, newTestLogger())
			rr := httptest.NewRecorder()
			h.CreateCoupon(rr, httptest.NewRequest(http.MethodPost, "/api/coupons", bytes.NewBufferString(tt.body)))
			if rr.Code != tt.status {
				t.Fatalf("expected %d, got %d", tt.status, rr.Code)
			}
		})
	}
}

func TestCouponHandler_ListCoupons_Filters(t *testing.T) {
	courseID := uuid.New()
	service := &stubCouponService{list: &models.CouponList{Coupons: []*models.Coupon{}, Page: 2, Limit: 5}}
	h := NewCouponHandler(service, &stubValidator{}, newTestLogger())

	rr := httptest.NewRecorder()
	h.ListCoupons(rr, httptest.NewRequest(http.MethodGet, "/api/coupons?isActive=true&courseId="+courseID.String()+"&page=2&limit=5", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	f := service.gotFilter
	if f.IsActive == nil || !*f.IsActive || f.CourseID == nil || *f.CourseID != courseID || f.Page != 2 || f.Limit != 5 {
		t.Fatalf("unexpected filter: %+v", f)
	}
}

func TestCouponHandler_ListCoupons_BadQuery(t *testing.T) {
	h := NewCouponHandler(&stubCouponService{}, &stubValidator{}, newTestLogger())

	for _, q := range []string{"?isActive=maybe", "?courseId=nope"} {
		rr := httptest.NewRecorder()
		h.ListCoupons(rr, httptest.NewRequest(http.MethodGet, "/api/coupons"+q, nil))
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", q, rr.Code)
		}
	}
}

func TestCouponHandler_UpdateAndDelete(t *testing.T) {
	c := &models.Coupon{ID: uuid.New(), Code: "SAVE10"}
	service := &stubCouponService{coupon: c}
	h := NewCouponHandler(service, &stubValidator{}, newTestLogger())

	rr := httptest.NewRecorder()
	h.UpdateCoupon(rr, httptest.NewRequest(http.MethodPut, "/api/coupons/"+c.ID.String(), bytes.NewBufferString(`{"code":"SAVE10","discountType":"fixed_amount","discountValue":10,"isActive":true}`)))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	h.DeleteCoupon(rr, httptest.NewRequest(http.MethodDelete, "/api/coupons/"+c.ID.String(), nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}

	service.err = apperror.Conflict("coupon has usage history and cannot be deleted", nil)
	rr = httptest.NewRecorder()
	h.DeleteCoupon(rr, httptest.NewRequest(http.MethodDelete, "/api/coupons/"+c.ID.String(), nil))
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	h.GetCoupon(rr, httptest.NewRequest(http.MethodGet, "/api/coupons/not-a-uuid", nil))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestCouponHandler_GetCoupon_NotFound(t *testing.T) {
	h := NewCouponHandler(&stubCouponService{err: apperror.NotFound("coupon not found", nil)}, &stubValidator{}, newTestLogger())
	rr := httptest.NewRecorder()
	h.GetCoupon(rr, httptest.NewRequest(http.MethodGet, "/api/coupons/"+uuid.NewString(), nil))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}

func TestCouponHandler_Usages(t *testing.T) {
	couponID := uuid.New()
	service := &stubCouponService{
		coupon: &models.Coupon{ID: couponID, Code: "SAVE20"},
		usages: []*models.CouponUsage{{ID: uuid.New(), CouponID: couponID, DiscountAmount: 200}},
		report: []byte("PK\x03\x04xlsx"),
	}
	h := NewCouponHandler(service, &stubValidator{}, newTestLogger())

	rr := httptest.NewRecorder()
	h.ListUsages(rr, httptest.NewRequest(http.MethodGet, "/api/coupons/"+couponID.String()+"/usages", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if service.gotID != couponID {
		t.Fatalf("expected coupon id from path")
	}

	rr = httptest.NewRecorder()
	h.ExportUsages(rr, httptest.NewRequest(http.MethodGet, "/api/coupons/"+couponID.String()+"/usages/export", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if cd := rr.Header().Get("Content-Disposition"); cd != `attachment; filename="coupon-SAVE20-usages.xlsx"` {
		t.Fatalf("unexpected content-disposition: %s", cd)
	}
	if !bytes.Equal(rr.Body.Bytes(), service.report) {
		t.Fatalf("unexpected body")
	}
}
