package events

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/tm-acme-shop/acme-shop-pos-service/internal/config"
	"github.com/tm-acme-shop/acme-shop-pos-service/internal/logging"
)

// DirectoryEventType represents the type of customer directory event.
type DirectoryEventType string

const (
	DirectoryEventCustomerDeleted     DirectoryEventType = "customer.deleted"
	DirectoryEventPrescriptionRevoked DirectoryEventType = "prescription.revoked"
)

// DirectoryEvent is a change in the customer directory.
type DirectoryEvent struct {
	ID             string             `json:"id"`
	Type           DirectoryEventType `json:"type"`
	CustomerID     string             `json:"customer_id"`
	PrescriptionID string             `json:"prescription_id,omitempty"`
	Timestamp      time.Time          `json:"timestamp"`
}

// DirectoryHandler applies directory changes to live sessions. Both methods
// return how many sessions were changed.
type DirectoryHandler interface {
	HandleCustomerRemoved(ctx context.Context, customerID string) int
	HandlePrescriptionRevoked(ctx context.Context, customerID, prescriptionID string) int
}

type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// KafkaConsumer consumes customer directory events.
type KafkaConsumer struct {
	reader   messageReader
	handler  DirectoryHandler
	logger   *logging.Logger
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewKafkaConsumer creates a new Kafka-based event consumer.
func NewKafkaConsumer(cfg config.KafkaConfig, handler DirectoryHandler, logger *logging.Logger) *KafkaConsumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		Topic:    cfg.DirectoryTopic,
		GroupID:  cfg.ConsumerGroup,
		MinBytes: 1,
		MaxBytes: 10e6,
		MaxWait:  time.Second,
	})

	return &KafkaConsumer{
		reader:  reader,
		handler: handler,
		logger:  logger,
		stopCh:  make(chan struct{}),
	}
}

// Start consumes until ctx ends or Stop is called.
func (c *KafkaConsumer) Start(ctx context.Context) error {
	c.logger.Info("Starting Kafka consumer")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.stopCh:
			c.logger.Info("Kafka consumer stopped")
			return nil
		default:
		}

		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			select {
			case <-c.stopCh:
				c.logger.Info("Kafka consumer stopped")
				return nil
			default:
			}
			if errors.Is(err, context.Canceled) {
				return err
			}
			c.logger.Error("Failed to read message", logging.Fields{"error": err.Error()})
			continue
		}

		c.handleMessage(ctx, msg)
	}
}

// Stop stops the consumer. It is safe to call more than once.
func (c *KafkaConsumer) Stop() {
	c.stopOnce.Do(func() {
		close(c.stopCh)
		c.reader.Close()
	})
}

func (c *KafkaConsumer) handleMessage(ctx context.Context, msg kafka.Message) {
	c.logger.Debug("Received message", logging.Fields{
		"topic":     msg.Topic,
		"partition": msg.Partition,
		"offset":    msg.Offset,
	})

	var event DirectoryEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		c.logger.Error("Failed to unmarshal event", logging.Fields{"error": err.Error()})
		return
	}
	if event.CustomerID == "" {
		c.logger.Warn("Directory event without customer", logging.Fields{"event_id": event.ID})
		return
	}

	switch event.Type {
	case DirectoryEventCustomerDeleted:
		n := c.handler.HandleCustomerRemoved(ctx, event.CustomerID)
		c.logger.Info("Handled customer deleted event", logging.Fields{
			"customer_id": event.CustomerID,
			"sessions":    n,
		})
	case DirectoryEventPrescriptionRevoked:
		n := c.handler.HandlePrescriptionRevoked(ctx, event.CustomerID, event.PrescriptionID)
		c.logger.Info("Handled prescription revoked event", logging.Fields{
			"customer_id":     event.CustomerID,
			"prescription_id": event.PrescriptionID,
			"sessions":        n,
		})
	default:
		c.logger.Debug("Ignoring unknown event type", logging.Fields{"type": event.Type})
	}
}
