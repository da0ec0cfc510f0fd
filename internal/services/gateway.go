package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"skillup-lms/internal/apperror"
	"skillup-lms/internal/config"
	"skillup-lms/internal/logger"
	"skillup-lms/internal/models"

	"github.com/razorpay/razorpay-go"
	"github.com/shopspring/decimal"
)

// PaymentGateway - внешний платёжный шлюз.
type PaymentGateway interface {
	CreateOrder(ctx context.Context, amount int64, currency, receipt string, notes map[string]string) (*models.GatewayOrder, error)
	Refund(ctx context.Context, paymentID string, amount int64) (string, error)
}

type razorpayOrderAPI interface {
	Create(data map[string]interface{}, extraHeaders map[string]string) (map[string]interface{}, error)
}

type razorpayPaymentAPI interface {
	Refund(paymentID string, amount int, data map[string]interface{}, extraHeaders map[string]string) (map[string]interface{}, error)
}

// RazorpayGateway реализует PaymentGateway поверх razorpay-go.
// SDK не принимает context, поэтому ctx проверяется только перед вызовом.
type RazorpayGateway struct {
	orders   razorpayOrderAPI
	payments razorpayPaymentAPI
	log      *logger.Logger
}

// NewRazorpayGateway создаёт клиента Razorpay.
func NewRazorpayGateway(cfg *config.RazorpayConfig, log *logger.Logger) *RazorpayGateway {
	client := razorpay.NewClient(cfg.KeyID, cfg.KeySecret)
	return &RazorpayGateway{
		orders:   client.Order,
		payments: client.Payment,
		log:      log,
	}
}

// CreateOrder создаёт заказ в Razorpay. amount - в минимальных единицах валюты.
func (g *RazorpayGateway) CreateOrder(ctx context.Context, amount int64, currency, receipt string, notes map[string]string) (*models.GatewayOrder, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data := map[string]interface{}{
		"amount":   amount,
		"currency": currency,
		"receipt":  receipt,
	}
	if len(notes) > 0 {
		data["notes"] = notes
	}

	resp, err := g.orders.Create(data, nil)
	if err != nil {
		return nil, apperror.Upstream("Failed to create payment order", fmt.Errorf("razorpay order create: %w", err))
	}

	orderID, _ := resp["id"].(string)
	if orderID == "" {
		return nil, apperror.Upstream("Failed to create payment order", errors.New("razorpay response has no order id"))
	}

	order := &models.GatewayOrder{
		ID:       orderID,
		Amount:   amount,
		Currency: currency,
		Receipt:  receipt,
	}
	if v, ok := resp["amount"].(float64); ok {
		order.Amount = int64(v)
	}
	if v, ok := resp["currency"].(string); ok && v != "" {
		order.Currency = v
	}
	if v, ok := resp["status"].(string); ok {
		order.Status = v
	}

	g.log.WithFields(map[string]interface{}{
		"order_id": order.ID,
		"amount":   order.Amount,
		"receipt":  receipt,
	}).Info("Gateway order created")

	return order, nil
}

// Refund оформляет возврат платежа и возвращает идентификатор возврата.
func (g *RazorpayGateway) Refund(ctx context.Context, paymentID string, amount int64) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	resp, err := g.payments.Refund(paymentID, int(amount), nil, nil)
	if err != nil {
		return "", apperror.Upstream("Failed to refund payment", fmt.Errorf("razorpay refund: %w", err))
	}

	refundID, _ := resp["id"].(string)
	g.log.WithFields(map[string]interface{}{
		"payment_id": paymentID,
		"refund_id":  refundID,
		"amount":     amount,
	}).Info("Gateway refund created")

	return refundID, nil
}

// toMinorUnits переводит сумму в рупиях в пайсы.
func toMinorUnits(amount float64) int64 {
	return decimal.NewFromFloat(amount).Mul(hundred).Round(0).IntPart()
}

func normalizeCurrency(currency, fallback string) string {
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if currency == "" {
		return fallback
	}
	return currency
}
