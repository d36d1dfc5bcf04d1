package domain

import (
	"slices"
	"time"
)

// RefundStatus represents the current step of the refund workflow
type RefundStatus string

const (
	RefundPending         RefundStatus = "pending"
	RefundReturnRequested RefundStatus = "return_requested"
	RefundReturnReceived  RefundStatus = "return_received"
	RefundApproved        RefundStatus = "approved"
	RefundExecuted        RefundStatus = "executed"
	RefundDenied          RefundStatus = "denied"
	RefundCancelled       RefundStatus = "cancelled"
)

// MinReasonLength applies to the buyer's request reason and the seller's
// denial reason.
const MinReasonLength = 10

// RefundRequest is the child workflow object driving a buyer-initiated,
// seller-approved refund against one order.
type RefundRequest struct {
	ID       string
	OrderID  string
	BuyerID  string
	SellerID string

	RequestedAmountCents int64
	OriginalAmountCents  int64
	Currency             string
	Reason               string
	Status               RefundStatus

	ReturnCarrier        *string
	ReturnTrackingNumber *string

	DecidedBy    *string
	DecidedAt    *time.Time
	DenialReason *string

	// ReversalIdempotencyKey is fixed at creation so every approve attempt
	// reaches the processor with the same key.
	ReversalIdempotencyKey string
	ProcessorReversalID    *string
	ProcessorReversalState *string

	CreatedAt time.Time
}

// NewRefundRequest opens the workflow in pending. A nil amount means a full
// refund of the order total.
func NewRefundRequest(id string, order *Order, reason string, amountCents *int64, now time.Time) (*RefundRequest, error) {
	if id == "" {
		return nil, NewMissingRequiredFieldError("refund request ID")
	}
	if len(reason) < MinReasonLength {
		return nil, NewValidationError("refund reason is too short")
	}
	if !order.Refundable() {
		return nil, NewInvalidTransitionError(string(order.Status), string(StatusRefunded))
	}

	requested := order.AmountCents
	if amountCents != nil {
		requested = *amountCents
	}
	if requested <= 0 || requested > order.AmountCents {
		return nil, ErrInvalidAmount
	}

	return &RefundRequest{
		ID:                     id,
		OrderID:                order.ID,
		BuyerID:                order.BuyerID,
		SellerID:               order.SellerID,
		RequestedAmountCents:   requested,
		OriginalAmountCents:    order.AmountCents,
		Currency:               order.Currency,
		Reason:                 reason,
		Status:                 RefundPending,
		ReversalIdempotencyKey: "refund-reversal-" + id,
		CreatedAt:              now,
	}, nil
}

func (r *RefundRequest) transition(target RefundStatus) error {
	if err := r.canTransitionTo(target); err != nil {
		return err
	}
	r.Status = target
	return nil
}

func (r *RefundRequest) canTransitionTo(target RefundStatus) error {
	switch r.Status {
	case RefundPending:
		return r.allow(target, RefundReturnRequested, RefundDenied, RefundCancelled)
	case RefundReturnRequested:
		return r.allow(target, RefundReturnReceived, RefundDenied, RefundCancelled)
	case RefundReturnReceived:
		return r.allow(target, RefundApproved, RefundDenied)
	case RefundApproved:
		return r.allow(target, RefundExecuted, RefundReturnReceived)
	}
	return NewInvalidTransitionError(string(r.Status), string(target))
}

func (r *RefundRequest) allow(target RefundStatus, allowed ...RefundStatus) error {
	if slices.Contains(allowed, target) {
		return nil
	}
	return NewInvalidTransitionError(string(r.Status), string(target))
}

// SubmitReturn records the buyer's return shipment: pending -> return_requested.
func (r *RefundRequest) SubmitReturn(carrier, trackingNumber string) error {
	if carrier == "" || trackingNumber == "" {
		return NewMissingRequiredFieldError("return carrier and tracking number")
	}
	if err := r.transition(RefundReturnRequested); err != nil {
		return err
	}
	r.ReturnCarrier = &carrier
	r.ReturnTrackingNumber = &trackingNumber
	return nil
}

// ConfirmReturn is the seller acknowledging receipt of the returned item.
func (r *RefundRequest) ConfirmReturn() error {
	return r.transition(RefundReturnReceived)
}

// MarkApproved is the reversal-in-flight marker set before calling the
// processor.
func (r *RefundRequest) MarkApproved(sellerID string, now time.Time) error {
	if err := r.transition(RefundApproved); err != nil {
		return err
	}
	r.DecidedBy = &sellerID
	r.DecidedAt = &now
	return nil
}

// ReclaimApproval restamps a stale in-flight approval so a retried decision
// can re-drive the reversal under the same idempotency key.
func (r *RefundRequest) ReclaimApproval(sellerID string, now time.Time) error {
	if r.Status != RefundApproved {
		return NewInvalidTransitionError(string(r.Status), string(RefundApproved))
	}
	r.DecidedBy = &sellerID
	r.DecidedAt = &now
	return nil
}

// RevertApproval returns a failed reversal attempt to its pre-approval state so
// a retry with the same idempotency key is safe.
func (r *RefundRequest) RevertApproval() error {
	if err := r.transition(RefundReturnReceived); err != nil {
		return err
	}
	r.DecidedBy = nil
	r.DecidedAt = nil
	return nil
}

// MarkExecuted records the processor reversal. Terminal.
func (r *RefundRequest) MarkExecuted(reversalID, reversalState string) error {
	if err := r.transition(RefundExecuted); err != nil {
		return err
	}
	r.ProcessorReversalID = &reversalID
	r.ProcessorReversalState = &reversalState
	return nil
}

// Deny closes the workflow with a seller reason. Terminal.
func (r *RefundRequest) Deny(sellerID, reason string, now time.Time) error {
	if len(reason) < MinReasonLength {
		return NewValidationError("denial reason is too short")
	}
	if err := r.transition(RefundDenied); err != nil {
		return err
	}
	r.DecidedBy = &sellerID
	r.DecidedAt = &now
	r.DenialReason = &reason
	return nil
}

// Cancel is buyer-only and allowed only before the seller has received the
// return.
func (r *RefundRequest) Cancel() error {
	if r.Status != RefundPending && r.Status != RefundReturnRequested {
		return NewInvalidTransitionError(string(r.Status), string(RefundCancelled))
	}
	return r.transition(RefundCancelled)
}

// IsFull reports whether executing this request refunds the entire order.
func (r *RefundRequest) IsFull() bool {
	return r.RequestedAmountCents == r.OriginalAmountCents
}

func (r *RefundRequest) IsTerminal() bool {
	switch r.Status {
	case RefundExecuted, RefundDenied, RefundCancelled:
		return true
	default:
		return false
	}
}
