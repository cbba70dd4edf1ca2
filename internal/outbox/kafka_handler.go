package outbox

import (
	"context"
	"fmt"

	"github.com/relieftrack/shipment-tracking-api/internal/models"
	"github.com/relieftrack/shipment-tracking-api/pkg/kafka"
	"github.com/relieftrack/shipment-tracking-api/pkg/logger"
)

// KafkaHandler publishes outbox messages to Kafka
type KafkaHandler struct {
	logger   logger.Logger
	producer *kafka.Producer
	topic    string
}

// NewKafkaHandler creates a new KafkaHandler
func NewKafkaHandler(producer *kafka.Producer, topic string, logger logger.Logger) *KafkaHandler {
	return &KafkaHandler{
		producer: producer,
		topic:    topic,
		logger:   logger,
	}
}

// HandleMessage publishes an outbox message to Kafka. The shipment ID
// keys the message so one shipment's events stay on one partition.
func (h *KafkaHandler) HandleMessage(ctx context.Context, message *models.OutboxMessage) error {
	key := message.AggregateID

	h.logger.Info("Publishing message to Kafka",
		"topic", h.topic,
		"messageID", message.ID,
		"aggregateID", message.AggregateID,
		"eventType", message.EventType)

	err := h.producer.SendMessage(ctx, h.topic, key, message.Payload)

	if err != nil {
		h.logger.Error("Failed to publish message to Kafka",
			"error", err,
			"messageID", message.ID,
			"aggregateID", message.AggregateID)
		return fmt.Errorf("failed to publish message to Kafka: %w", err)
	}

	return nil
}
