package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/marketloop/order-engine/internal/application/services"
	"github.com/marketloop/order-engine/internal/infrastructure/persistence/postgres"
)

// claimStaleAfter is how long a claimed event stays off-limits to other
// worker instances before it is presumed orphaned by a crash.
const claimStaleAfter = 5 * time.Minute

// WebhookWorker drains the webhook ledger and applies each event through the
// applier. Events that keep failing are parked as failed once their attempts
// run out.
type WebhookWorker struct {
	webhookRepo *postgres.WebhookRepository
	applier     *services.WebhookApplier
	interval    time.Duration
	batchSize   int
	maxAttempts int
	logger      *slog.Logger
}

func NewWebhookWorker(
	webhookRepo *postgres.WebhookRepository,
	applier *services.WebhookApplier,
	interval time.Duration,
	batchSize int,
	maxAttempts int,
	logger *slog.Logger,
) *WebhookWorker {
	return &WebhookWorker{
		webhookRepo: webhookRepo,
		applier:     applier,
		interval:    interval,
		batchSize:   batchSize,
		maxAttempts: maxAttempts,
		logger:      logger,
	}
}

func (w *WebhookWorker) Start(ctx context.Context) {
	w.logger.Info("webhook worker started", "interval", w.interval)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.ProcessBatch(ctx)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("webhook worker stopping")
			return
		case <-ticker.C:
			if err := w.ProcessBatch(ctx); err != nil {
				w.logger.Error("webhook batch failed", "error", err)
			}
		}
	}
}

func (w *WebhookWorker) ProcessBatch(ctx context.Context) error {
	events, err := w.webhookRepo.ClaimPending(ctx, w.batchSize, time.Now().UTC().Add(-claimStaleAfter))
	if err != nil {
		return err
	}

	if len(events) == 0 {
		return nil
	}

	var applied, failed int

	for _, event := range events {
		if err := w.applier.Apply(ctx, event); err != nil {
			failed++
			w.logger.Warn("webhook event application failed",
				"event_id", event.EventID,
				"type", event.Type,
				"attempt", event.AttemptCount,
				"error", err)
			if recordErr := w.webhookRepo.RecordFailure(ctx, event.EventID, err.Error(), w.maxAttempts); recordErr != nil {
				w.logger.Error("failed to record webhook failure",
					"event_id", event.EventID,
					"error", recordErr)
			}
			continue
		}

		applied++
		if err := w.webhookRepo.MarkProcessed(ctx, event.EventID, time.Now().UTC()); err != nil {
			w.logger.Error("failed to mark webhook processed",
				"event_id", event.EventID,
				"error", err)
		}
	}

	w.logger.Info("webhook batch finished",
		"claimed", len(events),
		"applied", applied,
		"failed", failed)

	return nil
}
