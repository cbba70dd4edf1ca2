package handlers

import (
	"context"
	"encoding/json"

	"github.com/Shopify/sarama"
	"github.com/relieftrack/shipment-tracking-api/internal/models"
	"github.com/relieftrack/shipment-tracking-api/pkg/logger"
)

// ShipmentEventsHandler consumes shipment events published through the
// outbox and writes an audit log line for each. Downstream systems
// (notification, reconciliation) would hang off the same topic.
type ShipmentEventsHandler struct {
	logger logger.Logger
}

// NewShipmentEventsHandler creates a new ShipmentEventsHandler
func NewShipmentEventsHandler(logger logger.Logger) *ShipmentEventsHandler {
	return &ShipmentEventsHandler{logger: logger}
}

// HandleMessage logs a consumed shipment event
func (h *ShipmentEventsHandler) HandleMessage(ctx context.Context, msg *sarama.ConsumerMessage) error {
	var payload models.ShipmentEventPayload

	if err := json.Unmarshal(msg.Value, &payload); err != nil {
		// Malformed events are logged and skipped, not redelivered forever
		h.logger.Error("Failed to decode shipment event",
			"error", err,
			"topic", msg.Topic,
			"offset", msg.Offset)
		return nil
	}

	h.logger.Info("Shipment event received",
		"shipmentID", payload.ShipmentID,
		"status", payload.Status,
		"currentLocation", payload.CurrentLocation,
		"officer", payload.Officer,
		"partition", msg.Partition,
		"offset", msg.Offset)

	return nil
}
