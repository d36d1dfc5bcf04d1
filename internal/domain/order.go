// Package domain encodes the order aggregate and its lifecycle rules.
package domain

import (
	"slices"
	"time"
)

// OrderStatus represents the current state of an order in its lifecycle
type OrderStatus string

const (
	StatusReserved   OrderStatus = "reserved"
	StatusPending    OrderStatus = "pending"
	StatusAuthorized OrderStatus = "authorized"
	StatusPaid       OrderStatus = "paid"
	StatusShipped    OrderStatus = "shipped"
	StatusCompleted  OrderStatus = "completed"
	StatusCancelled  OrderStatus = "cancelled"
	StatusExpired    OrderStatus = "expired"
	StatusRefunded   OrderStatus = "refunded"
)

// ReservationTTL is how long a hold on a listing lasts before the sweep
// releases it.
const ReservationTTL = 45 * time.Minute

// ListingSnapshot is the denormalized copy of listing attributes captured at
// reservation time, so later listing edits cannot alter a completed order's
// record.
type ListingSnapshot struct {
	Title      string
	PriceCents int64
	ImageURL   *string
}

type Order struct {
	ID        string
	ListingID string
	BuyerID   string
	SellerID  string

	AmountCents int64
	Currency    string
	Status      OrderStatus

	Snapshot ListingSnapshot

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

// NewOrder creates an order in reserved status holding the listing for the
// buyer. The reservation expiry is the only place ReservationExpiresAt is set.
func NewOrder(id string, listing *Listing, buyerID string, now time.Time) (*Order, error) {
	if id == "" {
		return nil, NewMissingRequiredFieldError("order ID")
	}
	if buyerID == "" {
		return nil, NewMissingRequiredFieldError("buyer ID")
	}
	if listing.SellerID == buyerID {
		return nil, NewConflictError("cannot buy your own listing")
	}
	if listing.PriceCents <= 0 {
		return nil, ErrInvalidAmount
	}

	expiresAt := now.Add(ReservationTTL)
	return &Order{
		ID:          id,
		ListingID:   listing.ID,
		BuyerID:     buyerID,
		SellerID:    listing.SellerID,
		AmountCents: listing.PriceCents,
		Currency:    listing.Currency,
		Status:      StatusReserved,
		Snapshot: ListingSnapshot{
			Title:      listing.Title,
			PriceCents: listing.PriceCents,
			ImageURL:   listing.ImageURL,
		},
		ReservedAt:           now,
		ReservationExpiresAt: &expiresAt,
		CreatedAt:            now,
	}, nil
}

func (o *Order) transition(target OrderStatus) error {
	if err := o.canTransitionTo(target); err != nil {
		return err
	}
	o.Status = target
	return nil
}

// defines the order statuses that can be transitioned to
func (o *Order) canTransitionTo(target OrderStatus) error {
	switch o.Status {
	case StatusReserved:
		return o.allow(target, StatusPending, StatusCancelled, StatusExpired)
	case StatusPending:
		return o.allow(target, StatusAuthorized, StatusPaid, StatusCancelled, StatusExpired, StatusReserved)
	case StatusAuthorized:
		return o.allow(target, StatusPaid, StatusRefunded)
	case StatusPaid:
		return o.allow(target, StatusShipped, StatusRefunded)
	case StatusShipped:
		return o.allow(target, StatusCompleted, StatusRefunded)
	case StatusCompleted:
		return o.allow(target, StatusRefunded)
	}
	return NewInvalidTransitionError(string(o.Status), string(target))
}

// Helper to check allowed state transitions
func (o *Order) allow(target OrderStatus, allowed ...OrderStatus) error {
	if slices.Contains(allowed, target) {
		return nil
	}
	return NewInvalidTransitionError(string(o.Status), string(target))
}

// statusRank orders statuses for forward-only webhook application. A would-be
// backward transition is a no-op, not an error.
func statusRank(s OrderStatus) int {
	switch s {
	case StatusReserved:
		return 1
	case StatusPending:
		return 2
	case StatusAuthorized:
		return 3
	case StatusPaid:
		return 4
	case StatusShipped:
		return 5
	case StatusCompleted, StatusCancelled, StatusExpired, StatusRefunded:
		return 6
	default:
		return 0
	}
}

// IsAheadOf reports whether the order has already moved at or past the target
// status.
func (o *Order) IsAheadOf(target OrderStatus) bool {
	return statusRank(o.Status) >= statusRank(target)
}

// ReservationExpired reports whether the hold has lapsed. Only meaningful
// while the order is still reserved.
func (o *Order) ReservationExpired(now time.Time) bool {
	return o.Status == StatusReserved &&
		o.ReservationExpiresAt != nil &&
		o.ReservationExpiresAt.Before(now)
}

// MarkPending moves the order into the in-flight payment state and records the
// capture idempotency key. The reservation expiry is cleared: once payment is
// in flight the sweep must not release the listing underneath it.
func (o *Order) MarkPending(idempotencyKey string) error {
	if err := o.transition(StatusPending); err != nil {
		return err
	}
	o.PaymentIdempotencyKey = &idempotencyKey
	o.ReservationExpiresAt = nil
	return nil
}

// RevertToReserved returns a declined payment attempt to the reserved state so
// the buyer can retry with a new instrument.
func (o *Order) RevertToReserved(expiresAt time.Time) error {
	if err := o.transition(StatusReserved); err != nil {
		return err
	}
	o.ReservationExpiresAt = &expiresAt
	return nil
}

// AttachProcessorBuyer records the processor-side buyer identity created during
// tokenization. Append-only: an already-assigned identity is kept.
func (o *Order) AttachProcessorBuyer(processorBuyerID string) {
	if o.ProcessorBuyerID == nil {
		o.ProcessorBuyerID = &processorBuyerID
	}
}

// RecordPayment transitions pending -> authorized -> paid in one recorded step
// and stores the processor identifiers.
func (o *Order) RecordPayment(authID, transferID, instrumentID string, paidAt time.Time) error {
	if err := o.transition(StatusAuthorized); err != nil {
		return err
	}
	if err := o.transition(StatusPaid); err != nil {
		return err
	}
	o.ProcessorAuthID = &authID
	o.ProcessorTransferID = &transferID
	o.ProcessorInstrumentID = &instrumentID
	o.PaidAt = &paidAt
	return nil
}

// Ship records tracking and moves paid -> shipped.
func (o *Order) Ship(carrier, number string, shippedAt time.Time) error {
	if carrier == "" || number == "" {
		return NewMissingRequiredFieldError("tracking carrier and number")
	}
	if err := o.transition(StatusShipped); err != nil {
		return err
	}
	o.TrackingCarrier = &carrier
	o.TrackingNumber = &number
	o.ShippedAt = &shippedAt
	return nil
}

// Complete records buyer delivery confirmation.
func (o *Order) Complete(completedAt time.Time) error {
	if err := o.transition(StatusCompleted); err != nil {
		return err
	}
	o.CompletedAt = &completedAt
	return nil
}

// Cancel is only allowed before payment. Processor identifiers assigned during
// tokenization are cleared, the one exception to append-only.
func (o *Order) Cancel(cancelledAt time.Time) error {
	if err := o.transition(StatusCancelled); err != nil {
		return err
	}
	o.CancelledAt = &cancelledAt
	o.ReservationExpiresAt = nil
	o.ProcessorBuyerID = nil
	o.ProcessorInstrumentID = nil
	return nil
}

// MarkExpired is applied by the reservation sweep.
func (o *Order) MarkExpired() error {
	if err := o.transition(StatusExpired); err != nil {
		return err
	}
	o.ReservationExpiresAt = nil
	return nil
}

// MarkRefunded records a fully-executed reversal.
func (o *Order) MarkRefunded(refundedAt time.Time) error {
	if err := o.transition(StatusRefunded); err != nil {
		return err
	}
	o.RefundedAt = &refundedAt
	return nil
}

// Refundable reports whether a refund request may be opened against this order.
func (o *Order) Refundable() bool {
	switch o.Status {
	case StatusPaid, StatusShipped, StatusCompleted:
		return true
	default:
		return false
	}
}

// helper to identify order statuses that are terminal
func (o *Order) IsTerminal() bool {
	switch o.Status {
	case StatusCompleted, StatusCancelled, StatusExpired, StatusRefunded:
		return true
	default:
		return false
	}
}
