package processor_test

import (
	"testing"

	"github.com/marketloop/order-engine/internal/infrastructure/processor"
	"github.com/stretchr/testify/assert"
)

func TestDeclineMessage(t *testing.T) {
	t.Run("known codes map to user-safe messages", func(t *testing.T) {
		assert.Equal(t, "The card has insufficient funds to complete this purchase.", processor.DeclineMessage("INSUFFICIENT_FUNDS"))
		assert.NotEmpty(t, processor.DeclineMessage("CARD_EXPIRED"))
		assert.NotEmpty(t, processor.DeclineMessage("AVS_MISMATCH"))
	})

	t.Run("unknown code gets generic message carrying the raw code", func(t *testing.T) {
		msg := processor.DeclineMessage("SOMETHING_NEW")

		assert.Contains(t, msg, "SOMETHING_NEW")
	})
}

func TestProcessorError(t *testing.T) {
	t.Run("server errors are retryable", func(t *testing.T) {
		err := &processor.ProcessorError{Code: "INTERNAL", StatusCode: 503}

		assert.True(t, err.IsRetryable())
		assert.False(t, err.IsDecline())
	})

	t.Run("declines are permanent", func(t *testing.T) {
		err := &processor.ProcessorError{Code: "CARD_DECLINED", StatusCode: 402}

		assert.False(t, err.IsRetryable())
		assert.True(t, err.IsDecline())
	})
}
