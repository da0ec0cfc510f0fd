package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"skillup-lms/internal/logger"
	"skillup-lms/internal/models"
	"skillup-lms/internal/services"
)

// RazorpayHandler обслуживает оформление покупки через Razorpay.
type RazorpayHandler struct {
	orders    OrderCreator
	checkout  CheckoutFinalizer
	validator CouponValidator
	log       *logger.Logger
}

// NewRazorpayHandler создаёт обработчик оформления покупки.
func NewRazorpayHandler(orders OrderCreator, checkout CheckoutFinalizer, validator CouponValidator, log *logger.Logger) *RazorpayHandler {
	return &RazorpayHandler{
		orders:    orders,
		checkout:  checkout,
		validator: validator,
		log:       log,
	}
}

// ValidateCoupon проверяет купон перед оплатой.
func (h *RazorpayHandler) ValidateCoupon(w http.ResponseWriter, r *http.Request) {
	handleCouponValidation(w, r, h.validator, h.log)
}

// CreateOrder создаёт заказ в Razorpay. Сумма принимается в рупиях.
func (h *RazorpayHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req models.CreateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	resp, err := h.orders.CreateOrder(r.Context(), &req)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to create payment order")
		return
	}

	writeJSONResponse(w, http.StatusOK, resp)
}

// checkoutErrorResponse - тело любой ошибки verify-payment: клиент оплаты смотрит на success.
type checkoutErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

func writeCheckoutError(w http.ResponseWriter, statusCode int, message string) {
	writeJSONResponse(w, statusCode, checkoutErrorResponse{Error: message})
}

// VerifyPayment проверяет подпись оплаты и оформляет зачисление на курс.
func (h *RazorpayHandler) VerifyPayment(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeCheckoutError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req models.VerifyPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeCheckoutError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	result, err := h.checkout.FinalizeCheckout(r.Context(), &req)
	if err != nil {
		if errors.Is(err, services.ErrSignatureMismatch) {
			writeCheckoutError(w, http.StatusBadRequest, "Payment verification failed")
			return
		}
		status, message := resolveServiceError(h.log, err, "Failed to verify payment")
		writeCheckoutError(w, status, message)
		return
	}

	writeJSONResponse(w, http.StatusOK, models.VerifyPaymentResponse{
		Success:      true,
		Message:      "Payment verified and enrollment created",
		PaymentID:    result.Payment.ID,
		EnrollmentID: result.Enrollment.ID,
	})
}
