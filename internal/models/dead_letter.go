package models

import (
	"encoding/json"
	"time"
)

// DeadLetterStatus represents the lifecycle of a dead-lettered message
type DeadLetterStatus string

const (
	DeadLetterStatusPending   DeadLetterStatus = "pending"
	DeadLetterStatusRetrying  DeadLetterStatus = "retrying"
	DeadLetterStatusResolved  DeadLetterStatus = "resolved"
	DeadLetterStatusDiscarded DeadLetterStatus = "discarded"
)

// DeadLetterMessage holds an event that exhausted its publish retries
type DeadLetterMessage struct {
	ID                int64            `json:"id" db:"id"`
	OriginalMessageID int64            `json:"originalMessageId" db:"original_message_id"`
	AggregateType     string           `json:"aggregateType" db:"aggregate_type"`
	AggregateID       string           `json:"aggregateId" db:"aggregate_id"`
	EventType         string           `json:"eventType" db:"event_type"`
	Payload           json.RawMessage  `json:"payload" db:"payload"`
	ErrorMessage      string           `json:"errorMessage" db:"error_message"`
	FailureReason     string           `json:"failureReason" db:"failure_reason"`
	RetryCount        int              `json:"retryCount" db:"retry_count"`
	LastRetryAt       *time.Time       `json:"lastRetryAt,omitempty" db:"last_retry_at"`
	Status            DeadLetterStatus `json:"status" db:"status"`
	CreatedAt         time.Time        `json:"createdAt" db:"created_at"`
	ResolvedAt        *time.Time       `json:"resolvedAt,omitempty" db:"resolved_at"`
}

// NewDeadLetterMessage creates a dead letter entry from a failed outbox message
func NewDeadLetterMessage(msg *OutboxMessage, errorMessage, failureReason string) *DeadLetterMessage {
	return &DeadLetterMessage{
		OriginalMessageID: msg.ID,
		AggregateType:     msg.AggregateType,
		AggregateID:       msg.AggregateID,
		EventType:         msg.EventType,
		Payload:           msg.Payload,
		ErrorMessage:      errorMessage,
		FailureReason:     failureReason,
		RetryCount:        0,
		Status:            DeadLetterStatusPending,
		CreatedAt:         GetCurrentTime(),
	}
}
