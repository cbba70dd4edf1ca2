package models

import (
	"encoding/json"
	"time"
)

// OutboxStatus represents the processing state of an outbox message
type OutboxStatus string

const (
	OutboxStatusPending    OutboxStatus = "pending"
	OutboxStatusProcessing OutboxStatus = "processing"
	OutboxStatusProcessed  OutboxStatus = "processed"
	OutboxStatusFailed     OutboxStatus = "failed"
)

// Shipment event types published through the outbox.
const (
	EventShipmentCreated          = "shipment_created"
	EventShipmentLocationAppended = "shipment_location_appended"
	EventShipmentStatusChanged    = "shipment_status_changed"
	EventShipmentDeleted          = "shipment_deleted"
)

// AggregateTypeShipment is the single aggregate type this service publishes.
const AggregateTypeShipment = "shipment"

// OutboxMessage is a row in the transactional outbox
type OutboxMessage struct {
	ID                 int64           `json:"id" db:"id"`
	AggregateType      string          `json:"aggregateType" db:"aggregate_type"`
	AggregateID        string          `json:"aggregateId" db:"aggregate_id"`
	EventType          string          `json:"eventType" db:"event_type"`
	Payload            json.RawMessage `json:"payload" db:"payload"`
	CreatedAt          time.Time       `json:"createdAt" db:"created_at"`
	ProcessedAt        *time.Time      `json:"processedAt,omitempty" db:"processed_at"`
	ProcessingAttempts int             `json:"processingAttempts" db:"processing_attempts"`
	LastError          *string         `json:"lastError,omitempty" db:"last_error"`
	Status             OutboxStatus    `json:"status" db:"status"`
}

// ShipmentEventPayload is the body published for every shipment event.
// EventID lets consumers deduplicate on redelivery.
type ShipmentEventPayload struct {
	EventID         string    `json:"eventId"`
	ShipmentID      string    `json:"shipmentId"`
	Status          string    `json:"status"`
	CurrentLocation string    `json:"currentLocation,omitempty"`
	Officer         string    `json:"officer,omitempty"`
	Timestamp       time.Time `json:"timestamp"`
}

// NewShipmentEvent builds an outbox message for a shipment
func NewShipmentEvent(eventType string, shipment *Shipment, officer string, now time.Time) (*OutboxMessage, error) {
	payload, err := json.Marshal(ShipmentEventPayload{
		EventID:         GenerateID("EVT"),
		ShipmentID:      shipment.ID,
		Status:          shipment.Status,
		CurrentLocation: shipment.CurrentLocation,
		Officer:         officer,
		Timestamp:       now,
	})
	if err != nil {
		return nil, err
	}

	return &OutboxMessage{
		AggregateType: AggregateTypeShipment,
		AggregateID:   shipment.ID,
		EventType:     eventType,
		Payload:       payload,
		CreatedAt:     now,
		Status:        OutboxStatusPending,
	}, nil
}
