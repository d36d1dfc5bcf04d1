package postgres

import (
	"encoding/json"
	"time"
)

type OrderModel struct {
	ID          string
	ListingID   string
	BuyerID     string
	SellerID    string
	AmountCents int64
	Currency    string
	Status      string

	SnapshotTitle      string
	SnapshotPriceCents int64
	SnapshotImageURL   *string

	ProcessorBuyerID      *string
	ProcessorInstrumentID *string
	ProcessorAuthID       *string
	ProcessorTransferID   *string

	DisputeID          *string
	DisputeState       *string
	DisputeReason      *string
	DisputeAmountCents *int64

	TrackingCarrier *string
	TrackingNumber  *string

	PaymentIdempotencyKey *string

	ReservedAt           time.Time
	ReservationExpiresAt *time.Time
	PaidAt               *time.Time
	ShippedAt            *time.Time
	CompletedAt          *time.Time
	CancelledAt          *time.Time
	RefundedAt           *time.Time
	CreatedAt            time.Time
}

type RefundRequestModel struct {
	ID       string
	OrderID  string
	BuyerID  string
	SellerID string

	RequestedAmountCents int64
	OriginalAmountCents  int64
	Currency             string
	Reason               string
	Status               string

	ReturnCarrier        *string
	ReturnTrackingNumber *string

	DecidedBy    *string
	DecidedAt    *time.Time
	DenialReason *string

	ReversalIdempotencyKey string
	ProcessorReversalID    *string
	ProcessorReversalState *string

	CreatedAt time.Time
}

type WebhookEventModel struct {
	EventID      string
	Entity       string
	Type         string
	Payload      json.RawMessage
	Status       string
	AttemptCount int
	LastError    *string
	ReceivedAt   time.Time
	ProcessedAt  *time.Time
}

// IdempotencyKey enforces at-most-once semantics via unique constraint on key.
// LockedAt prevents polling clients from blocking on uncommitted rows.
type IdempotencyKey struct {
	Key             string
	OrderID         string
	RequestHash     string
	ResponsePayload []byte
	StatusCode      *int
	RecoveryPoint   string
	LockedAt        *time.Time
	CompletedAt     *time.Time
}

// IsComplete checks if the request associated with this key has been processed.
func (i *IdempotencyKey) IsComplete() bool {
	return i.ResponsePayload != nil
}
