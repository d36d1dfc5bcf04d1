package processor

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/marketloop/order-engine/internal/application"
	"github.com/marketloop/order-engine/internal/config"
)

// RetryProcessorClient retries transient processor failures with exponential
// backoff and jitter. Declines and other permanent rejections are never
// retried. The idempotency key travels unchanged, so a retried call cannot
// double-charge.
type RetryProcessorClient struct {
	inner      application.ProcessorClient
	baseDelay  time.Duration
	maxRetries int
}

func NewRetryProcessorClient(inner application.ProcessorClient, cfg config.RetryConfig) application.ProcessorClient {
	return &RetryProcessorClient{
		inner:      inner,
		baseDelay:  time.Duration(cfg.BaseDelay) * time.Second,
		maxRetries: int(cfg.MaxRetries),
	}
}

func (r *RetryProcessorClient) CreateBuyerIdentity(ctx context.Context, req application.BuyerIdentityRequest, idempotencyKey string) (*application.BuyerIdentityResponse, error) {
	return retry(
		r,
		ctx,
		func(ctx context.Context) (*application.BuyerIdentityResponse, error) {
			return r.inner.CreateBuyerIdentity(ctx, req, idempotencyKey)
		},
	)
}

func (r *RetryProcessorClient) CreateTokenizationSession(ctx context.Context, req application.TokenizationRequest) (*application.TokenizationResponse, error) {
	return retry(
		r,
		ctx,
		func(ctx context.Context) (*application.TokenizationResponse, error) {
			return r.inner.CreateTokenizationSession(ctx, req)
		},
	)
}

func (r *RetryProcessorClient) CreateTransfer(ctx context.Context, req application.TransferRequest, idempotencyKey string) (*application.TransferResponse, error) {
	return retry(
		r,
		ctx,
		func(ctx context.Context) (*application.TransferResponse, error) {
			return r.inner.CreateTransfer(ctx, req, idempotencyKey)
		},
	)
}

func (r *RetryProcessorClient) CreateReversal(ctx context.Context, req application.ReversalRequest, idempotencyKey string) (*application.ReversalResponse, error) {
	return retry(
		r,
		ctx,
		func(ctx context.Context) (*application.ReversalResponse, error) {
			return r.inner.CreateReversal(ctx, req, idempotencyKey)
		},
	)
}

func (r *RetryProcessorClient) GetDispute(ctx context.Context, disputeID string) (*application.DisputeResponse, error) {
	return retry(
		r,
		ctx,
		func(ctx context.Context) (*application.DisputeResponse, error) {
			return r.inner.GetDispute(ctx, disputeID)
		},
	)
}

// Generic retry helper
func retry[T any](r *RetryProcessorClient, ctx context.Context, operation func(ctx context.Context) (*T, error)) (*T, error) {
	var lastErr error

	for attempt := 0; attempt < r.maxRetries; attempt++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		resp, err := operation(ctx)
		if err == nil {
			return resp, nil
		}

		lastErr = err

		if !isRetryable(err) {
			return nil, err
		}

		if attempt < r.maxRetries-1 {
			time.Sleep(r.backoff(attempt))
		}
	}

	return nil, fmt.Errorf("maximum retries exceeded: %w", lastErr)
}

// Helper: to check retryable errors
func isRetryable(err error) bool {
	var procErr *ProcessorError
	if errors.As(err, &procErr) {
		return procErr.IsRetryable()
	}

	if errors.Is(err, context.Canceled) {
		return false
	}

	return true
}

// Backoff calculation with exponential delay and jitter
func (r *RetryProcessorClient) backoff(attempt int) time.Duration {
	base := r.baseDelay * time.Duration(1<<attempt)

	jitter := time.Duration(rand.Intn(1000)) * time.Millisecond

	return base + jitter
}
