package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/marketloop/order-engine/internal/domain"
)

var ErrWebhookEventNotFound = errors.New("webhook event not found")

type WebhookRepository struct {
	db *pgxpool.Pool
}

func NewWebhookRepository(db *pgxpool.Pool) *WebhookRepository {
	return &WebhookRepository{db: db}
}

// InsertPending appends an event to the ledger. Returns false without error
// when the event_id was already recorded, which is the redelivery case.
func (r *WebhookRepository) InsertPending(ctx context.Context, event *domain.WebhookEvent) (bool, error) {
	query := `
		INSERT INTO webhook_events (event_id, entity, event_type, payload, status, received_at)
		VALUES ($1, $2, $3, $4, 'pending', $5)
		ON CONFLICT (event_id) DO NOTHING
	`

	result, err := r.db.Exec(ctx, query,
		event.EventID, event.Entity, event.Type, event.Payload, event.ReceivedAt,
	)
	if err != nil {
		return false, fmt.Errorf("insert webhook event: %w", err)
	}
	return result.RowsAffected() > 0, nil
}

// ClaimPending moves a batch of due events to processing and returns them.
// FOR UPDATE SKIP LOCKED lets multiple worker instances drain the ledger
// without stepping on each other, and a processing row is re-claimed only
// once its claim predates staleBefore, so a live worker keeps its events.
func (r *WebhookRepository) ClaimPending(ctx context.Context, limit int, staleBefore time.Time) ([]*domain.WebhookEvent, error) {
	query := `
		UPDATE webhook_events
		SET status = 'processing', attempt_count = attempt_count + 1, claimed_at = NOW()
		WHERE event_id IN (
			SELECT event_id FROM webhook_events
			WHERE status = 'pending'
			   OR (status = 'processing' AND claimed_at < $2)
			ORDER BY received_at ASC
			LIMIT $1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING event_id, entity, event_type, payload, status, attempt_count, last_error, received_at, processed_at
	`

	rows, err := r.db.Query(ctx, query, limit, staleBefore)
	if err != nil {
		return nil, fmt.Errorf("claim pending webhook events: %w", err)
	}
	return pgx.CollectRows(rows, collectWebhookEvent)
}

func (r *WebhookRepository) MarkProcessed(ctx context.Context, eventID string, at time.Time) error {
	query := `
		UPDATE webhook_events
		SET status = 'processed', last_error = NULL, processed_at = $2
		WHERE event_id = $1
	`

	result, err := r.db.Exec(ctx, query, eventID, at)
	if err != nil {
		return fmt.Errorf("mark webhook processed: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrWebhookEventNotFound
	}
	return nil
}

// RecordFailure keeps a failed event eligible for retry until attempts are
// exhausted, then parks it as failed for operator review.
func (r *WebhookRepository) RecordFailure(ctx context.Context, eventID, cause string, maxAttempts int) error {
	query := `
		UPDATE webhook_events
		SET status = CASE WHEN attempt_count >= $3 THEN 'failed' ELSE 'pending' END,
			last_error = $2
		WHERE event_id = $1
	`

	result, err := r.db.Exec(ctx, query, eventID, cause, maxAttempts)
	if err != nil {
		return fmt.Errorf("record webhook failure: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrWebhookEventNotFound
	}
	return nil
}

func (r *WebhookRepository) FindByEventID(ctx context.Context, eventID string) (*domain.WebhookEvent, error) {
	query := `
		SELECT event_id, entity, event_type, payload, status, attempt_count, last_error, received_at, processed_at
		FROM webhook_events
		WHERE event_id = $1
	`

	var m WebhookEventModel
	err := r.db.QueryRow(ctx, query, eventID).Scan(
		&m.EventID, &m.Entity, &m.Type, &m.Payload, &m.Status,
		&m.AttemptCount, &m.LastError, &m.ReceivedAt, &m.ProcessedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrWebhookEventNotFound
		}
		return nil, fmt.Errorf("failed to scan webhook event: %w", err)
	}
	return toDomainWebhookEvent(m), nil
}

func collectWebhookEvent(row pgx.CollectableRow) (*domain.WebhookEvent, error) {
	var m WebhookEventModel
	err := row.Scan(
		&m.EventID, &m.Entity, &m.Type, &m.Payload, &m.Status,
		&m.AttemptCount, &m.LastError, &m.ReceivedAt, &m.ProcessedAt,
	)
	return toDomainWebhookEvent(m), err
}
