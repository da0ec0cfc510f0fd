package services

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"io"

	"skillup-lms/internal/config"
	"skillup-lms/internal/logger"
	"skillup-lms/internal/models"

	"github.com/google/uuid"
	"gopkg.in/gomail.v2"
)

// Mailer отправляет письма (gomail.Dialer).
type Mailer interface {
	DialAndSend(m ...*gomail.Message) error
}

type receiptProvider interface {
	GetPayment(ctx context.Context, paymentID uuid.UUID) (*models.Payment, error)
	GetReceipt(ctx context.Context, paymentID uuid.UUID) ([]byte, error)
}

// NotificationService отправляет подтверждение зачисления с PDF-квитанцией.
type NotificationService struct {
	payments receiptProvider
	courses  CourseDirectory
	mailer   Mailer
	from     string
	log      *logger.Logger
}

// NewNotificationService создаёт сервис уведомлений. Без настроек SMTP письма не отправляются.
func NewNotificationService(payments receiptProvider, courses CourseDirectory, cfg *config.SMTPConfig, log *logger.Logger) *NotificationService {
	s := &NotificationService{
		payments: payments,
		courses:  courses,
		from:     cfg.From,
		log:      log,
	}
	if cfg.Enabled() {
		s.mailer = gomail.NewDialer(cfg.Host, cfg.Port, cfg.User, cfg.Password)
	}
	if s.from == "" {
		s.from = cfg.User
	}
	return s
}

// HandlePaymentCompleted обрабатывает событие payment.completed.
func (s *NotificationService) HandlePaymentCompleted(ctx context.Context, event *models.Event) error {
	var data models.PaymentEventData
	if err := json.Unmarshal(event.Data, &data); err != nil {
		return fmt.Errorf("failed to decode payment event: %w", err)
	}

	if s.mailer == nil {
		s.log.WithField("payment_id", data.PaymentID).Debug("SMTP is not configured, enrollment email skipped")
		return nil
	}

	return s.SendEnrollmentConfirmation(ctx, data.PaymentID)
}

// SendEnrollmentConfirmation отправляет письмо покупателю курса.
func (s *NotificationService) SendEnrollmentConfirmation(ctx context.Context, paymentID uuid.UUID) error {
	if s.mailer == nil {
		return fmt.Errorf("mailer is not configured")
	}

	payment, err := s.payments.GetPayment(ctx, paymentID)
	if err != nil {
		return err
	}
	user, err := s.courses.GetUser(ctx, payment.UserID)
	if err != nil {
		return err
	}
	course, err := s.courses.GetCourse(ctx, payment.CourseID)
	if err != nil {
		return err
	}
	receipt, err := s.payments.GetReceipt(ctx, paymentID)
	if err != nil {
		return err
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", user.Email)
	m.SetHeader("Subject", "You're enrolled: "+course.Title)
	m.SetBody("text/html", enrollmentEmailBody(user, course, payment))
	m.Attach(fmt.Sprintf("receipt-%s.pdf", payment.ID),
		gomail.SetCopyFunc(func(w io.Writer) error {
			_, err := w.Write(receipt)
			return err
		}),
		gomail.SetHeader(map[string][]string{"Content-Type": {"application/pdf"}}),
	)

	if err := s.mailer.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send enrollment email: %w", err)
	}

	s.log.WithFields(map[string]interface{}{
		"payment_id": payment.ID,
		"user_id":    user.ID,
	}).Info("Enrollment confirmation sent")
	return nil
}

func enrollmentEmailBody(user *models.User, course *models.Course, payment *models.Payment) string {
	return fmt.Sprintf(
		`<p>Hi %s,</p><p>Your payment of %s was received and you now have access to <b>%s</b>.</p><p>The receipt is attached.</p>`,
		html.EscapeString(user.Name),
		html.EscapeString(formatMoney(payment.Amount, payment.Currency)),
		html.EscapeString(course.Title),
	)
}
