package domain_test

import (
	"testing"
	"time"

	"github.com/marketloop/order-engine/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRefund(t *testing.T) *domain.RefundRequest {
	refund, err := domain.NewRefundRequest("refund-1", paidOrder(t), "item arrived damaged beyond use", nil, time.Now().UTC())
	require.NoError(t, err)
	return refund
}

func receivedRefund(t *testing.T) *domain.RefundRequest {
	refund := newRefund(t)
	require.NoError(t, refund.SubmitReturn("UPS", "1Z999"))
	require.NoError(t, refund.ConfirmReturn())
	return refund
}

func TestNewRefundRequest(t *testing.T) {
	t.Run("defaults to full refund with fixed reversal key", func(t *testing.T) {
		refund := newRefund(t)

		assert.Equal(t, domain.RefundPending, refund.Status)
		assert.Equal(t, refund.OriginalAmountCents, refund.RequestedAmountCents)
		assert.True(t, refund.IsFull())
		assert.Equal(t, "refund-reversal-refund-1", refund.ReversalIdempotencyKey)
	})

	t.Run("accepts partial amount", func(t *testing.T) {
		amount := int64(10000)
		refund, err := domain.NewRefundRequest("refund-1", paidOrder(t), "item arrived damaged beyond use", &amount, time.Now().UTC())

		require.NoError(t, err)
		assert.Equal(t, amount, refund.RequestedAmountCents)
		assert.False(t, refund.IsFull())
	})

	t.Run("rejects amount above order total", func(t *testing.T) {
		amount := int64(99999999)
		_, err := domain.NewRefundRequest("refund-1", paidOrder(t), "item arrived damaged beyond use", &amount, time.Now().UTC())

		assert.True(t, domain.IsErrorCode(err, domain.ErrCodeInvalidAmount))
	})

	t.Run("rejects short reason", func(t *testing.T) {
		_, err := domain.NewRefundRequest("refund-1", paidOrder(t), "meh", nil, time.Now().UTC())

		assert.True(t, domain.IsErrorCode(err, domain.ErrCodeValidation))
	})

	t.Run("rejects unrefundable order", func(t *testing.T) {
		_, err := domain.NewRefundRequest("refund-1", reservedOrder(t), "item arrived damaged beyond use", nil, time.Now().UTC())

		assert.True(t, domain.IsErrorCode(err, domain.ErrCodeInvalidTransition))
	})
}

func TestRefundWorkflow(t *testing.T) {
	t.Run("happy path to executed", func(t *testing.T) {
		refund := receivedRefund(t)

		require.NoError(t, refund.MarkApproved("seller-1", time.Now().UTC()))
		assert.Equal(t, domain.RefundApproved, refund.Status)
		assert.Equal(t, "seller-1", *refund.DecidedBy)

		require.NoError(t, refund.MarkExecuted("rev-1", "succeeded"))
		assert.Equal(t, domain.RefundExecuted, refund.Status)
		assert.Equal(t, "rev-1", *refund.ProcessorReversalID)
		assert.True(t, refund.IsTerminal())
	})

	t.Run("submit return requires shipment details", func(t *testing.T) {
		refund := newRefund(t)

		err := refund.SubmitReturn("", "")

		assert.True(t, domain.IsErrorCode(err, domain.ErrCodeMissingRequiredField))
	})

	t.Run("cannot approve before return received", func(t *testing.T) {
		refund := newRefund(t)

		err := refund.MarkApproved("seller-1", time.Now().UTC())

		assert.True(t, domain.IsErrorCode(err, domain.ErrCodeInvalidTransition))
	})

	t.Run("revert approval returns to return_received and clears decision", func(t *testing.T) {
		refund := receivedRefund(t)
		require.NoError(t, refund.MarkApproved("seller-1", time.Now().UTC()))

		require.NoError(t, refund.RevertApproval())

		assert.Equal(t, domain.RefundReturnReceived, refund.Status)
		assert.Nil(t, refund.DecidedBy)
		assert.Nil(t, refund.DecidedAt)
	})

	t.Run("deny requires substantive reason", func(t *testing.T) {
		refund := receivedRefund(t)

		err := refund.Deny("seller-1", "no", time.Now().UTC())
		assert.True(t, domain.IsErrorCode(err, domain.ErrCodeValidation))

		require.NoError(t, refund.Deny("seller-1", "item returned in worse condition", time.Now().UTC()))
		assert.Equal(t, domain.RefundDenied, refund.Status)
		assert.NotNil(t, refund.DenialReason)
	})

	t.Run("buyer cancel only before return received", func(t *testing.T) {
		refund := newRefund(t)
		require.NoError(t, refund.Cancel())
		assert.Equal(t, domain.RefundCancelled, refund.Status)

		received := receivedRefund(t)
		err := received.Cancel()
		assert.True(t, domain.IsErrorCode(err, domain.ErrCodeInvalidTransition))
	})

	t.Run("executed is terminal", func(t *testing.T) {
		refund := receivedRefund(t)
		require.NoError(t, refund.MarkApproved("seller-1", time.Now().UTC()))
		require.NoError(t, refund.MarkExecuted("rev-1", "succeeded"))

		err := refund.Deny("seller-1", "too late to change my mind now", time.Now().UTC())

		assert.True(t, domain.IsErrorCode(err, domain.ErrCodeInvalidTransition))
	})
}
