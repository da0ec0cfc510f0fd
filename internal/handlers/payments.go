package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"skillup-lms/internal/logger"
	"skillup-lms/internal/models"
)

const paymentsPathPrefix = "/api/payments/"

// PaymentHandler обрабатывает платежи: просмотр, возврат и квитанцию.
type PaymentHandler struct {
	payments PaymentService
	log      *logger.Logger
}

// NewPaymentHandler создаёт обработчик платежей.
func NewPaymentHandler(payments PaymentService, log *logger.Logger) *PaymentHandler {
	return &PaymentHandler{
		payments: payments,
		log:      log,
	}
}

// GetPayment возвращает платёж по ID.
func (h *PaymentHandler) GetPayment(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	paymentID, err := extractUUIDFromPath(r.URL.Path, paymentsPathPrefix)
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "Invalid payment ID")
		return
	}

	payment, err := h.payments.GetPayment(r.Context(), paymentID)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to get payment")
		return
	}

	writeJSONResponse(w, http.StatusOK, payment)
}

// RefundPayment оформляет полный возврат платежа.
func (h *PaymentHandler) RefundPayment(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	paymentID, err := extractUUIDFromPath(r.URL.Path, paymentsPathPrefix)
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "Invalid payment ID")
		return
	}

	// тело необязательно
	var req models.RefundPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeErrorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	payment, err := h.payments.RefundPayment(r.Context(), paymentID, &req)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to refund payment")
		return
	}

	writeJSONResponse(w, http.StatusOK, payment)
}

// Receipt отдаёт PDF-квитанцию по платежу.
func (h *PaymentHandler) Receipt(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	paymentID, err := extractUUIDFromPath(r.URL.Path, paymentsPathPrefix)
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "Invalid payment ID")
		return
	}

	receipt, err := h.payments.GetReceipt(r.Context(), paymentID)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to build receipt")
		return
	}

	writeFileResponse(w, "application/pdf", fmt.Sprintf("receipt-%s.pdf", paymentID), receipt)
}
