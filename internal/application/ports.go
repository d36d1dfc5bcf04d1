package application

import (
	"context"
	"time"
)

// ProcessorClient is the port for the external payment processor.
type ProcessorClient interface {
	// CreateBuyerIdentity registers a buyer with the processor. Idempotent on
	// the supplied key: the same key always yields the same identity.
	CreateBuyerIdentity(ctx context.Context, req BuyerIdentityRequest, idempotencyKey string) (*BuyerIdentityResponse, error)

	// CreateTokenizationSession issues the client-side configuration needed to
	// produce a payment token.
	CreateTokenizationSession(ctx context.Context, req TokenizationRequest) (*TokenizationResponse, error)

	// CreateTransfer authorizes and captures a payment in one step.
	CreateTransfer(ctx context.Context, req TransferRequest, idempotencyKey string) (*TransferResponse, error)

	// CreateReversal returns previously captured funds.
	CreateReversal(ctx context.Context, req ReversalRequest, idempotencyKey string) (*ReversalResponse, error)

	// GetDispute fetches the processor's current view of a dispute.
	GetDispute(ctx context.Context, disputeID string) (*DisputeResponse, error)
}

type BuyerIdentityRequest struct {
	BuyerID string `json:"buyer_id"`
	Email   string `json:"email,omitempty"`
}

type BuyerIdentityResponse struct {
	ProcessorBuyerID string    `json:"processor_buyer_id"`
	CreatedAt        time.Time `json:"created_at"`
}

type TokenizationRequest struct {
	ProcessorBuyerID string `json:"processor_buyer_id"`
	AmountCents      int64  `json:"amount_cents"`
	Currency         string `json:"currency"`
}

type TokenizationResponse struct {
	SessionID       string    `json:"session_id"`
	AmountCents     int64     `json:"amount_cents"`
	Currency        string    `json:"currency"`
	InstrumentTypes []string  `json:"instrument_types"`
	ExpiresAt       time.Time `json:"expires_at"`
}

type BillingDetails struct {
	Name       string `json:"name"`
	PostalCode string `json:"postal_code,omitempty"`
	Country    string `json:"country,omitempty"`
}

type TransferRequest struct {
	ProcessorBuyerID string         `json:"processor_buyer_id"`
	Token            string         `json:"token"`
	AmountCents      int64          `json:"amount_cents"`
	Currency         string         `json:"currency"`
	Billing          BillingDetails `json:"billing"`

	// OrderID is echoed back in transfer webhooks so an outcome can be applied
	// even when the synchronous response was lost.
	OrderID string `json:"order_id"`
}

type TransferResponse struct {
	AuthorizationID string    `json:"authorization_id"`
	TransferID      string    `json:"transfer_id"`
	InstrumentID    string    `json:"instrument_id"`
	AVSResult       string    `json:"avs_result"`
	CVVResult       string    `json:"cvv_result"`
	CapturedAt      time.Time `json:"captured_at"`
}

type ReversalRequest struct {
	TransferID  string `json:"transfer_id"`
	AmountCents int64  `json:"amount_cents"`
	Currency    string `json:"currency"`
}

type ReversalResponse struct {
	ReversalID string    `json:"reversal_id"`
	State      string    `json:"state"`
	ReversedAt time.Time `json:"reversed_at"`
}

type DisputeResponse struct {
	DisputeID   string `json:"dispute_id"`
	State       string `json:"state"`
	Reason      string `json:"reason"`
	AmountCents int64  `json:"amount_cents"`
}

// NotificationSink is the fire-and-forget outbound port for user-facing
// notifications and conversation messages. Implementations must never return
// an error into a payment path; callers log and continue regardless.
type NotificationSink interface {
	NotifyOrderEvent(ctx context.Context, userID, orderID, event string)
	PostSystemMessage(ctx context.Context, conversationID, body string)
}
