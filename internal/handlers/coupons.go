package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"skillup-lms/internal/apperror"
	"skillup-lms/internal/logger"
	"skillup-lms/internal/models"

	"github.com/google/uuid"
)

const couponsPathPrefix = "/api/coupons/"

// CouponHandler обрабатывает купоны: проверку, CRUD и историю использования.
type CouponHandler struct {
	coupons   CouponService
	validator CouponValidator
	log       *logger.Logger
}

// NewCouponHandler создаёт новый обработчик купонов.
func NewCouponHandler(coupons CouponService, validator CouponValidator, log *logger.Logger) *CouponHandler {
	return &CouponHandler{
		coupons:   coupons,
		validator: validator,
		log:       log,
	}
}

// ValidateCoupon проверяет купон для курса и возвращает расчёт скидки.
func (h *CouponHandler) ValidateCoupon(w http.ResponseWriter, r *http.Request) {
	handleCouponValidation(w, r, h.validator, h.log)
}

// handleCouponValidation общий обработчик проверки купона.
// Некорректный запрос даёт 400, отказ по правилам купона - 200 с valid=false.
func handleCouponValidation(w http.ResponseWriter, r *http.Request, validator CouponValidator, log *logger.Logger) {
	if r.Method != http.MethodPost {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req models.ValidateCouponRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONResponse(w, http.StatusBadRequest, models.CouponValidation{Valid: false, Error: "Invalid request body"})
		return
	}

	result, err := validator.Validate(r.Context(), &req)
	if err != nil {
		if apperror.Is(err, apperror.KindValidation) {
			writeJSONResponse(w, http.StatusBadRequest, models.CouponValidation{Valid: false, Error: err.Error()})
			return
		}
		log.WithError(err).Error("Failed to validate coupon")
		writeJSONResponse(w, http.StatusInternalServerError, models.CouponValidation{Valid: false, Error: "Failed to validate coupon"})
		return
	}

	writeJSONResponse(w, http.StatusOK, result)
}

// CreateCoupon создаёт купон.
func (h *CouponHandler) CreateCoupon(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req models.CreateCouponRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := validateCouponCode(req.Code); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	coupon, err := h.coupons.CreateCoupon(r.Context(), &req)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to create coupon")
		return
	}

	writeJSONResponse(w, http.StatusCreated, coupon)
}

// ListCoupons возвращает страницу купонов с фильтрами isActive и courseId.
func (h *CouponHandler) ListCoupons(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	query := r.URL.Query()
	filter := &models.CouponFilter{
		Page:  parsePositiveInt(query.Get("page"), 1),
		Limit: parsePositiveInt(query.Get("limit"), 0),
	}

	if raw := query.Get("isActive"); raw != "" {
		active, err := strconv.ParseBool(raw)
		if err != nil {
			writeErrorResponse(w, http.StatusBadRequest, "Invalid isActive value")
			return
		}
		filter.IsActive = &active
	}

	if raw := query.Get("courseId"); raw != "" {
		courseID, err := uuid.Parse(raw)
		if err != nil {
			writeErrorResponse(w, http.StatusBadRequest, "Invalid courseId")
			return
		}
		filter.CourseID = &courseID
	}

	list, err := h.coupons.ListCoupons(r.Context(), filter)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to list coupons")
		return
	}

	writeJSONResponse(w, http.StatusOK, list)
}

// GetCoupon возвращает купон по ID.
func (h *CouponHandler) GetCoupon(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	couponID, err := extractUUIDFromPath(r.URL.Path, couponsPathPrefix)
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "Invalid coupon ID")
		return
	}

	coupon, err := h.coupons.GetCoupon(r.Context(), couponID)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to get coupon")
		return
	}

	writeJSONResponse(w, http.StatusOK, coupon)
}

// UpdateCoupon обновляет купон целиком. Счётчик использований не меняется.
func (h *CouponHandler) UpdateCoupon(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	couponID, err := extractUUIDFromPath(r.URL.Path, couponsPathPrefix)
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "Invalid coupon ID")
		return
	}

	var req models.UpdateCouponRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := validateCouponCode(req.Code); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	coupon, err := h.coupons.UpdateCoupon(r.Context(), couponID, &req)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to update coupon")
		return
	}

	writeJSONResponse(w, http.StatusOK, coupon)
}

// DeleteCoupon удаляет купон без истории использования.
func (h *CouponHandler) DeleteCoupon(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	couponID, err := extractUUIDFromPath(r.URL.Path, couponsPathPrefix)
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "Invalid coupon ID")
		return
	}

	if err := h.coupons.DeleteCoupon(r.Context(), couponID); err != nil {
		writeServiceError(w, h.log, err, "Failed to delete coupon")
		return
	}

	writeJSONResponse(w, http.StatusOK, map[string]string{"message": "Coupon deleted"})
}

// ListUsages возвращает историю использования купона.
func (h *CouponHandler) ListUsages(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	couponID, err := extractUUIDFromPath(r.URL.Path, couponsPathPrefix)
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "Invalid coupon ID")
		return
	}

	usages, err := h.coupons.ListUsages(r.Context(), couponID)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to list coupon usages")
		return
	}

	writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"couponId": couponID,
		"usages":   usages,
		"total":    len(usages),
	})
}

// ExportUsages отдаёт историю использования купона в XLSX.
func (h *CouponHandler) ExportUsages(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	couponID, err := extractUUIDFromPath(r.URL.Path, couponsPathPrefix)
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "Invalid coupon ID")
		return
	}

	coupon, report, err := h.coupons.ExportUsages(r.Context(), couponID)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to export coupon usages")
		return
	}

	writeFileResponse(w,
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		fmt.Sprintf("coupon-%s-usages.xlsx", coupon.Code),
		report,
	)
}

func validateCouponCode(code string) error {
	if strings.TrimSpace(code) == "" {
		return fmt.Errorf("coupon code is required")
	}
	if len(code) > 64 {
		return fmt.Errorf("coupon code is too long")
	}
	return nil
}
