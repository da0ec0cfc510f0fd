package kafka

import (
	"encoding/json"
	"fmt"
	"time"

	"skillup-lms/internal/config"
	"skillup-lms/internal/logger"
	"skillup-lms/internal/models"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
)

// Producer публикует доменные события платежей и купонов в Kafka.
type Producer struct {
	producer sarama.SyncProducer
	log      *logger.Logger
	topics   *config.Topics
}

// NewProducer создает синхронного продюсера Kafka
func NewProducer(cfg *config.KafkaConfig, log *logger.Logger) (*Producer, error) {
	saramaCfg := sarama.NewConfig()
	saramaCfg.Producer.RequiredAcks = sarama.WaitForAll
	saramaCfg.Producer.Retry.Max = 3
	saramaCfg.Producer.Return.Successes = true
	saramaCfg.Net.DialTimeout = 3 * time.Second
	saramaCfg.Metadata.Retry.Max = 1
	saramaCfg.Metadata.Retry.Backoff = 250 * time.Millisecond

	producer, err := sarama.NewSyncProducer(cfg.Brokers, saramaCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}

	log.WithField("brokers", cfg.Brokers).Info("Kafka producer created")

	topics := cfg.Topics
	return &Producer{
		producer: producer,
		log:      log,
		topics:   &topics,
	}, nil
}

// Close закрывает продюсера
func (p *Producer) Close() error {
	if p == nil || p.producer == nil {
		return nil
	}
	return p.producer.Close()
}

// PublishPaymentCompleted публикует событие об успешной оплате курса
func (p *Producer) PublishPaymentCompleted(payment *models.Payment, enrollmentID uuid.UUID) error {
	data := paymentEventData(payment)
	data.EnrollmentID = &enrollmentID
	return p.publish(p.topics.Payments, models.EventTypePaymentCompleted, payment.ID.String(), data)
}

// PublishPaymentRefunded публикует событие о возврате платежа
func (p *Producer) PublishPaymentRefunded(payment *models.Payment) error {
	return p.publish(p.topics.Payments, models.EventTypePaymentRefunded, payment.ID.String(), paymentEventData(payment))
}

// PublishCouponRedeemed публикует событие о применении купона
func (p *Producer) PublishCouponRedeemed(usage *models.CouponUsage) error {
	data := models.CouponRedeemedData{
		CouponID:       usage.CouponID,
		UserID:         usage.UserID,
		CourseID:       usage.CourseID,
		DiscountAmount: usage.DiscountAmount,
	}
	return p.publish(p.topics.Coupons, models.EventTypeCouponRedeemed, usage.CouponID.String(), data)
}

func paymentEventData(payment *models.Payment) models.PaymentEventData {
	return models.PaymentEventData{
		PaymentID:      payment.ID,
		UserID:         payment.UserID,
		CourseID:       payment.CourseID,
		Amount:         payment.Amount,
		Currency:       payment.Currency,
		Status:         payment.Status,
		CouponID:       payment.CouponID,
		DiscountAmount: payment.DiscountAmount,
	}
}

func (p *Producer) publish(topic string, eventType models.EventType, key string, data interface{}) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal event data: %w", err)
	}

	event := models.Event{
		ID:        uuid.New(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Data:      raw,
	}
	return p.publishEvent(topic, event, key)
}

func (p *Producer) publishEvent(topic string, event models.Event, key string) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := &sarama.ProducerMessage{
		Topic: topic,
		Value: sarama.ByteEncoder(payload),
	}
	if key != "" {
		msg.Key = sarama.StringEncoder(key)
	}

	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		return fmt.Errorf("failed to send event %s to topic %s: %w", event.Type, topic, err)
	}

	p.log.WithFields(map[string]interface{}{
		"topic":      topic,
		"event_type": event.Type,
		"event_id":   event.ID,
		"partition":  partition,
		"offset":     offset,
	}).Debug("Event published")

	return nil
}

// CheckHealth проверяет доступность брокеров Kafka
func CheckHealth(brokers []string) error {
	if len(brokers) == 0 {
		return fmt.Errorf("no brokers configured")
	}

	cfg := sarama.NewConfig()
	cfg.Net.DialTimeout = 3 * time.Second
	cfg.Net.ReadTimeout = 5 * time.Second
	cfg.Net.WriteTimeout = 5 * time.Second
	cfg.Metadata.Retry.Max = 1
	cfg.Metadata.Retry.Backoff = 500 * time.Millisecond

	client, err := sarama.NewClient(brokers, cfg)
	if err != nil {
		return err
	}
	defer client.Close()

	return nil
}
