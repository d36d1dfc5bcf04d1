package domain

import (
	"encoding/json"
	"time"
)

// WebhookStatus is the processing state of an inbound processor event.
type WebhookStatus string

const (
	WebhookPending    WebhookStatus = "pending"
	WebhookProcessing WebhookStatus = "processing"
	WebhookProcessed  WebhookStatus = "processed"
	WebhookFailed     WebhookStatus = "failed"
)

// Event entities and types emitted by the processor.
const (
	EntityMerchant = "merchant"
	EntityDispute  = "dispute"
	EntityTransfer = "transfer"

	EventMerchantApproved  = "merchant.approved"
	EventMerchantRejected  = "merchant.rejected"
	EventDisputeCreated    = "dispute.created"
	EventDisputeUpdated    = "dispute.updated"
	EventTransferSucceeded = "transfer.succeeded"
	EventTransferFailed    = "transfer.failed"
)

// WebhookEvent is the append-only record of one inbound processor event. The
// unique key on EventID guarantees at-most-once application regardless of
// delivery retries.
type WebhookEvent struct {
	EventID      string
	Entity       string
	Type         string
	Payload      json.RawMessage
	Status       WebhookStatus
	AttemptCount int
	LastError    *string
	ReceivedAt   time.Time
	ProcessedAt  *time.Time
}

// EventEnvelope is the typed shape every processor event parses into before it
// is persisted.
type EventEnvelope struct {
	ID     string          `json:"id"`
	Entity string          `json:"entity"`
	Type   string          `json:"type"`
	Data   json.RawMessage `json:"data"`
}

func (e *EventEnvelope) Validate() error {
	if e.ID == "" {
		return NewMissingRequiredFieldError("event id")
	}
	if e.Entity == "" {
		return NewMissingRequiredFieldError("event entity")
	}
	if e.Type == "" {
		return NewMissingRequiredFieldError("event type")
	}
	return nil
}

// Dispute states in processor order. Events can arrive out of order, so every
// applied mutation is conditional on this rank.
const (
	DisputeOpen        = "open"
	DisputeUnderReview = "under_review"
	DisputeWon         = "won"
	DisputeLost        = "lost"
)

func DisputeStateRank(s string) int {
	switch s {
	case DisputeOpen:
		return 1
	case DisputeUnderReview:
		return 2
	case DisputeWon, DisputeLost:
		return 3
	default:
		return 0
	}
}
