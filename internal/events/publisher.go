package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/tm-acme-shop/acme-shop-pos-service/internal/config"
	"github.com/tm-acme-shop/acme-shop-pos-service/internal/logging"
	"github.com/tm-acme-shop/acme-shop-pos-service/internal/middleware"
	"github.com/tm-acme-shop/acme-shop-pos-service/internal/models"
)

// EventType represents the type of sale event.
type EventType string

const (
	EventTypeSaleCommitted  EventType = "sale.committed"
	EventTypeCheckoutFailed EventType = "sale.checkout_failed"
)

// SaleEvent is the envelope written to the sales topic.
type SaleEvent struct {
	ID            string          `json:"id"`
	Type          EventType       `json:"type"`
	SessionID     string          `json:"session_id"`
	OrderID       string          `json:"order_id,omitempty"`
	CustomerID    string          `json:"customer_id,omitempty"`
	Data          json.RawMessage `json:"data"`
	Timestamp     time.Time       `json:"timestamp"`
	CorrelationID string          `json:"correlation_id,omitempty"`
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher publishes sale events to Kafka.
type KafkaPublisher struct {
	writer messageWriter
	topic  string
	logger *logging.Logger
}

// NewKafkaPublisher creates a new Kafka-based event publisher.
func NewKafkaPublisher(cfg config.KafkaConfig, logger *logging.Logger) *KafkaPublisher {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.SalesTopic,
		Balancer:     &kafka.Hash{},
		WriteTimeout: 10 * time.Second,
		RequiredAcks: kafka.RequireOne,
	}

	return &KafkaPublisher{
		writer: writer,
		topic:  cfg.SalesTopic,
		logger: logger,
	}
}

// PublishSaleCommitted announces a sale the order service accepted.
func (p *KafkaPublisher) PublishSaleCommitted(ctx context.Context, sale *models.SaleRecord) error {
	p.logger.Debug("Publishing sale committed event", logging.Fields{
		"order_id": sale.OrderID,
	})

	data, err := json.Marshal(sale)
	if err != nil {
		return err
	}

	event := p.createEvent(ctx, EventTypeSaleCommitted, sale.SessionID, data)
	event.OrderID = sale.OrderID
	event.CustomerID = sale.CustomerID
	return p.publish(ctx, event)
}

// PublishCheckoutFailed announces a checkout that reached the order service
// and failed.
func (p *KafkaPublisher) PublishCheckoutFailed(ctx context.Context, req *models.CheckoutRequest, reason string) error {
	p.logger.Debug("Publishing checkout failed event", logging.Fields{
		"session_id": req.SessionID,
		"reason":     reason,
	})

	payload := struct {
		Request *models.CheckoutRequest `json:"request"`
		Reason  string                  `json:"reason"`
	}{
		Request: req,
		Reason:  reason,
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	event := p.createEvent(ctx, EventTypeCheckoutFailed, req.SessionID, data)
	if req.CustomerID != nil {
		event.CustomerID = *req.CustomerID
	}
	return p.publish(ctx, event)
}

func (p *KafkaPublisher) createEvent(ctx context.Context, eventType EventType, sessionID string, data []byte) *SaleEvent {
	return &SaleEvent{
		ID:            uuid.NewString(),
		Type:          eventType,
		SessionID:     sessionID,
		Data:          data,
		Timestamp:     time.Now().UTC(),
		CorrelationID: middleware.RequestIDFromContext(ctx),
	}
}

func (p *KafkaPublisher) publish(ctx context.Context, event *SaleEvent) error {
	eventData, err := json.Marshal(event)
	if err != nil {
		return err
	}

	// Keyed by session so one till's events stay ordered.
	msg := kafka.Message{
		Key:   []byte(event.SessionID),
		Value: eventData,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.Type)},
			{Key: "event_id", Value: []byte(event.ID)},
		},
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error("Failed to publish event", logging.Fields{
			"event_id":   event.ID,
			"event_type": event.Type,
			"session_id": event.SessionID,
			"error":      err.Error(),
		})
		return err
	}

	p.logger.Info("Event published", logging.Fields{
		"event_id":   event.ID,
		"event_type": event.Type,
		"order_id":   event.OrderID,
	})
	return nil
}

// Close closes the Kafka writer.
func (p *KafkaPublisher) Close() error {
	p.logger.Info("Closing Kafka publisher")
	return p.writer.Close()
}
