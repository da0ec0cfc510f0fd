package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"skillup-lms/internal/apperror"
	"skillup-lms/internal/config"
	"skillup-lms/internal/database"
	"skillup-lms/internal/logger"
	"skillup-lms/internal/models"

	"github.com/google/uuid"
)

// PaymentEvents публикует события жизненного цикла платежа.
type PaymentEvents interface {
	PublishPaymentRefunded(payment *models.Payment) error
}

// CourseDirectory отдаёт курсы и пользователей для квитанций и писем.
type CourseDirectory interface {
	GetCourse(ctx context.Context, courseID uuid.UUID) (*models.Course, error)
	GetUser(ctx context.Context, userID uuid.UUID) (*models.User, error)
}

// PaymentService создаёт заказы в шлюзе, отдаёт платежи, квитанции и оформляет возвраты.
type PaymentService struct {
	db       *database.DB
	log      *logger.Logger
	gateway  PaymentGateway
	courses  CourseDirectory
	events   PaymentEvents
	currency string
}

// NewPaymentService создаёт сервис платежей.
func NewPaymentService(db *database.DB, log *logger.Logger, gateway PaymentGateway, courses CourseDirectory, events PaymentEvents, cfg *config.RazorpayConfig) *PaymentService {
	return &PaymentService{
		db:       db,
		log:      log,
		gateway:  gateway,
		courses:  courses,
		events:   events,
		currency: normalizeCurrency(cfg.Currency, models.DefaultCurrency),
	}
}

// CreateOrder создаёт заказ в платёжном шлюзе. Сумма переводится в пайсы (×100).
func (s *PaymentService) CreateOrder(ctx context.Context, req *models.CreateOrderRequest) (*models.CreateOrderResponse, error) {
	if req.Amount <= 0 {
		return nil, apperror.Validation("amount must be greater than zero", nil)
	}
	receipt := strings.TrimSpace(req.Receipt)
	if receipt == "" {
		return nil, apperror.Validation("receipt is required", nil)
	}
	currency := normalizeCurrency(req.Currency, s.currency)

	order, err := s.gateway.CreateOrder(ctx, toMinorUnits(req.Amount), currency, receipt, req.Notes)
	if err != nil {
		return nil, err
	}

	return &models.CreateOrderResponse{
		Success:  true,
		OrderID:  order.ID,
		Amount:   order.Amount,
		Currency: order.Currency,
	}, nil
}

const paymentColumns = `id, user_id, course_id, amount, currency, status, gateway_order_id, gateway_payment_id,
		gateway_signature, coupon_id, discount_amount, refund_id, created_at, updated_at`

func scanPayment(row rowScanner) (*models.Payment, error) {
	p := &models.Payment{}
	if err := row.Scan(
		&p.ID, &p.UserID, &p.CourseID, &p.Amount, &p.Currency, &p.Status, &p.GatewayOrderID, &p.GatewayPaymentID,
		&p.GatewaySignature, &p.CouponID, &p.DiscountAmount, &p.RefundID, &p.CreatedAt, &p.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return p, nil
}

// GetPayment возвращает платёж по ID.
func (s *PaymentService) GetPayment(ctx context.Context, paymentID uuid.UUID) (*models.Payment, error) {
	payment, err := scanPayment(s.db.QueryRowContext(ctx, `SELECT `+paymentColumns+` FROM payments WHERE id = $1`, paymentID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("payment not found", err)
		}
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}
	return payment, nil
}

// RefundPayment возвращает полную сумму через шлюз, переводит платёж в refunded и снимает зачисление.
// Платёж фиксируется в refund_pending до вызова шлюза, поэтому сбой после возврата в шлюзе
// не позволяет вернуть деньги второй раз.
func (s *PaymentService) RefundPayment(ctx context.Context, paymentID uuid.UUID, req *models.RefundPaymentRequest) (*models.Payment, error) {
	payment, err := s.beginRefund(ctx, paymentID)
	if err != nil {
		return nil, err
	}

	// бесплатная покупка (скидка 100%) возвращается без обращения к шлюзу
	if payment.Amount > 0 {
		refundID, err := s.gateway.Refund(ctx, payment.GatewayPaymentID, toMinorUnits(payment.Amount))
		if err != nil {
			s.cancelRefund(context.WithoutCancel(ctx), payment)
			return nil, err
		}
		if refundID != "" {
			payment.RefundID = &refundID
		}
	}

	if err := s.completeRefund(ctx, payment); err != nil {
		entry := s.log.WithError(err).WithField("payment_id", payment.ID)
		if payment.RefundID != nil {
			entry = entry.WithField("refund_id", *payment.RefundID)
		}
		entry.Error("Refund accepted by gateway but not recorded, payment left in refund_pending")
		return nil, err
	}

	fields := map[string]interface{}{
		"payment_id": payment.ID,
		"amount":     payment.Amount,
	}
	if req != nil && req.Reason != "" {
		fields["reason"] = req.Reason
	}
	s.log.WithFields(fields).Info("Payment refunded")

	if s.events != nil {
		if err := s.events.PublishPaymentRefunded(payment); err != nil {
			s.log.WithError(err).WithField("payment_id", payment.ID).Error("Failed to publish payment refunded event")
		}
	}

	return payment, nil
}

// beginRefund блокирует платёж, проверяет статус и фиксирует refund_pending.
func (s *PaymentService) beginRefund(ctx context.Context, paymentID uuid.UUID) (*models.Payment, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	payment, err := scanPayment(tx.QueryRowContext(ctx, `SELECT `+paymentColumns+` FROM payments WHERE id = $1 FOR UPDATE`, paymentID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("payment not found", err)
		}
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}

	if !isValidPaymentStatusTransition(payment.Status, models.PaymentStatusRefundPending) {
		return nil, apperror.Conflict(fmt.Sprintf("payment in status %s cannot be refunded", payment.Status), nil)
	}

	payment.Status = models.PaymentStatusRefundPending
	payment.UpdatedAt = time.Now().UTC()

	if _, err := tx.ExecContext(ctx,
		`UPDATE payments SET status = $1, updated_at = $2 WHERE id = $3`,
		payment.Status, payment.UpdatedAt, payment.ID,
	); err != nil {
		return nil, fmt.Errorf("failed to mark refund pending: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit refund start: %w", err)
	}
	return payment, nil
}

// cancelRefund возвращает платёж в completed, если шлюз отказал в возврате.
func (s *PaymentService) cancelRefund(ctx context.Context, payment *models.Payment) {
	payment.Status = models.PaymentStatusCompleted
	payment.UpdatedAt = time.Now().UTC()

	if _, err := s.db.ExecContext(ctx,
		`UPDATE payments SET status = $1, updated_at = $2 WHERE id = $3 AND status = $4`,
		payment.Status, payment.UpdatedAt, payment.ID, models.PaymentStatusRefundPending,
	); err != nil {
		s.log.WithError(err).WithField("payment_id", payment.ID).Error("Failed to release refund_pending after gateway error")
	}
}

// completeRefund переводит платёж в refunded и снимает зачисление одной транзакцией.
func (s *PaymentService) completeRefund(ctx context.Context, payment *models.Payment) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	updatedAt := time.Now().UTC()
	if _, err := tx.ExecContext(ctx,
		`UPDATE payments SET status = $1, refund_id = $2, updated_at = $3 WHERE id = $4`,
		models.PaymentStatusRefunded, payment.RefundID, updatedAt, payment.ID,
	); err != nil {
		return fmt.Errorf("failed to update payment status: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM enrollments WHERE user_id = $1 AND course_id = $2`,
		payment.UserID, payment.CourseID,
	); err != nil {
		return fmt.Errorf("failed to revoke enrollment: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit refund: %w", err)
	}

	payment.Status = models.PaymentStatusRefunded
	payment.UpdatedAt = updatedAt
	return nil
}

// GetReceipt формирует PDF-квитанцию по завершённому или возвращённому платежу.
func (s *PaymentService) GetReceipt(ctx context.Context, paymentID uuid.UUID) ([]byte, error) {
	payment, err := s.GetPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	return s.buildReceipt(ctx, payment)
}

func (s *PaymentService) buildReceipt(ctx context.Context, payment *models.Payment) ([]byte, error) {
	if payment.Status != models.PaymentStatusCompleted && payment.Status != models.PaymentStatusRefunded {
		return nil, apperror.Conflict(fmt.Sprintf("no receipt for payment in status %s", payment.Status), nil)
	}

	course, err := s.courses.GetCourse(ctx, payment.CourseID)
	if err != nil {
		return nil, err
	}

	user, err := s.courses.GetUser(ctx, payment.UserID)
	if err != nil && !apperror.Is(err, apperror.KindNotFound) {
		return nil, err
	}

	return BuildReceiptPDF(ReceiptData{Payment: payment, Course: course, User: user})
}

func isValidPaymentStatusTransition(from, to models.PaymentStatus) bool {
	if from == to {
		return false
	}
	switch from {
	case models.PaymentStatusPending:
		return to == models.PaymentStatusCompleted || to == models.PaymentStatusFailed
	case models.PaymentStatusCompleted:
		return to == models.PaymentStatusRefundPending
	case models.PaymentStatusRefundPending:
		return to == models.PaymentStatusRefunded || to == models.PaymentStatusCompleted
	case models.PaymentStatusFailed, models.PaymentStatusRefunded:
		return false
	default:
		return false
	}
}
