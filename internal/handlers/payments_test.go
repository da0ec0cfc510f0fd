package handlers

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"skillup-lms/internal/apperror"
	"skillup-lms/internal/models"

	"github.com/google/uuid"
)

type stubPaymentService struct {
	payment   *models.Payment
	receipt   []byte
	err       error
	gotReason string
}

func (s *stubPaymentService) GetPayment(ctx context.Context, paymentID uuid.UUID) (*models.Payment, error) {
	return s.payment, s.err
}

func (s *stubPaymentService) RefundPayment(ctx context.Context, paymentID uuid.UUID, req *models.RefundPaymentRequest) (*models.Payment, error) {
	if req != nil {
		s.gotReason = req.Reason
	}
	return s.payment, s.err
}

func (s *stubPaymentService) GetReceipt(ctx context.Context, paymentID uuid.UUID) ([]byte, error) {
	return s.receipt, s.err
}

func TestPaymentHandler_GetPayment(t *testing.T) {
	p := &models.Payment{ID: uuid.New(), Status: models.PaymentStatusCompleted, GatewaySignature: "secret-sig"}
	h := NewPaymentHandler(&stubPaymentService{payment: p}, newTestLogger())

	rr := httptest.NewRecorder()
	h.GetPayment(rr, httptest.NewRequest(http.MethodGet, "/api/payments/"+p.ID.String(), nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if strings.Contains(rr.Body.String(), "secret-sig") {
		t.Fatalf("gateway signature must not be exposed")
	}
}

func TestPaymentHandler_GetPayment_Errors(t *testing.T) {
	h := NewPaymentHandler(&stubPaymentService{err: apperror.NotFound("payment not found", nil)}, newTestLogger())

	rr := httptest.NewRecorder()
	h.GetPayment(rr, httptest.NewRequest(http.MethodGet, "/api/payments/"+uuid.NewString(), nil))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	h.GetPayment(rr, httptest.NewRequest(http.MethodGet, "/api/payments/bad", nil))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestPaymentHandler_RefundPayment(t *testing.T) {
	p := &models.Payment{ID: uuid.New(), Status: models.PaymentStatusRefunded}
	service := &stubPaymentService{payment: p}
	h := NewPaymentHandler(service, newTestLogger())

	rr := httptest.NewRecorder()
	h.RefundPayment(rr, httptest.NewRequest(http.MethodPost, "/api/payments/"+p.ID.String()+"/refund", bytes.NewBufferString(`{"reason":"duplicate purchase"}`)))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if service.gotReason != "duplicate purchase" {
		t.Fatalf("reason not passed through")
	}

	// пустое тело допустимо
	rr = httptest.NewRecorder()
	h.RefundPayment(rr, httptest.NewRequest(http.MethodPost, "/api/payments/"+p.ID.String()+"/refund", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 for empty body, got %d", rr.Code)
	}
}

func TestPaymentHandler_RefundPayment_Errors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"wrong status", apperror.Conflict("payment in status refunded cannot be refunded", nil), http.StatusConflict},
		{"gateway", apperror.Upstream("Failed to refund payment", errors.New("boom")), http.StatusBadGateway},
		{"internal", errors.New("db down"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewPaymentHandler(&stubPaymentService{err: tt.err}, newTestLogger())
			rr := httptest.NewRecorder()
			h.RefundPayment(rr, httptest.NewRequest(http.MethodPost, "/api/payments/"+uuid.NewString()+"/refund", nil))
			if rr.Code != tt.status {
				t.Fatalf("expected %d, got %d", tt.status, rr.Code)
			}
		})
	}
}

func TestPaymentHandler_Receipt(t *testing.T) {
	id := uuid.New()
	h := NewPaymentHandler(&stubPaymentService{receipt: []byte("%PDF-1.3")}, newTestLogger())

	rr := httptest.NewRecorder()
	h.Receipt(rr, httptest.NewRequest(http.MethodGet, "/api/payments/"+id.String()+"/receipt", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/pdf" {
		t.Fatalf("unexpected content type: %s", ct)
	}
	if !strings.HasPrefix(rr.Body.String(), "%PDF") {
		t.Fatalf("unexpected body")
	}
}
