package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrDuplicateIdempotencyKey means the key was reused with a different
	// request body. Never retried, always surfaced to the client.
	ErrDuplicateIdempotencyKey = errors.New("idempotency key reused with different request")

	// ErrRequestInProgress means another request holding the same key is
	// mid-flight. Callers poll for its completion instead of proceeding.
	ErrRequestInProgress = errors.New("request with this idempotency key is in progress")
)

// Recovery points mark how far a keyed request got before a crash, so a retry
// knows whether the external call may already have happened.
const (
	RecoveryPointStarted      = "started"
	RecoveryPointCallPending  = "external_call_pending"
	RecoveryPointCallFinished = "external_call_finished"
)

type IdempotencyRepository struct {
	db *pgxpool.Pool
}

func NewIdempotencyRepository(db *pgxpool.Pool) *IdempotencyRepository {
	return &IdempotencyRepository{db: db}
}

// FindByKey returns the stored record, or nil when the key has never been
// seen.
func (r *IdempotencyRepository) FindByKey(ctx context.Context, key string) (*IdempotencyKey, error) {
	query := `
		SELECT key, order_id, request_hash, response_payload, status_code, recovery_point, locked_at, completed_at
		FROM idempotency_keys
		WHERE key = $1
	`

	var k IdempotencyKey
	err := r.db.QueryRow(ctx, query, key).Scan(
		&k.Key, &k.OrderID, &k.RequestHash, &k.ResponsePayload,
		&k.StatusCode, &k.RecoveryPoint, &k.LockedAt, &k.CompletedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to scan idempotency key: %w", err)
	}
	return &k, nil
}

// AcquireLock claims the key for this request. The insert succeeds for a new
// key; for an existing one the update claims it only when the request hash
// matches, no response is stored yet, and any previous lock has gone stale.
// When the claim fails the stored row decides the outcome: a different hash is
// a client error, anything else means the original request is still running.
func (r *IdempotencyRepository) AcquireLock(ctx context.Context, tx pgx.Tx, key, orderID, requestHash string, staleBefore time.Time) error {
	query := `
		INSERT INTO idempotency_keys (key, order_id, request_hash, recovery_point, locked_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (key) DO UPDATE
		SET locked_at = NOW()
		WHERE idempotency_keys.request_hash = $3
		  AND idempotency_keys.completed_at IS NULL
		  AND (idempotency_keys.locked_at IS NULL OR idempotency_keys.locked_at < $5)
	`

	var q Executor = r.db
	if tx != nil {
		q = tx
	}
	result, err := q.Exec(ctx, query, key, orderID, requestHash, RecoveryPointStarted, staleBefore)
	if err != nil {
		return fmt.Errorf("acquire idempotency lock: %w", err)
	}
	if result.RowsAffected() > 0 {
		return nil
	}

	existing, err := r.FindByKey(ctx, key)
	if err != nil {
		return err
	}
	if existing == nil {
		// Row vanished between the upsert and the read. Treat as contended.
		return ErrRequestInProgress
	}
	if existing.RequestHash != requestHash {
		return ErrDuplicateIdempotencyKey
	}
	return ErrRequestInProgress
}

// UpdateRecoveryPoint advances the checkpoint inside the request lifecycle.
func (r *IdempotencyRepository) UpdateRecoveryPoint(ctx context.Context, tx pgx.Tx, key, point string) error {
	query := `UPDATE idempotency_keys SET recovery_point = $2 WHERE key = $1`

	var q Executor = r.db
	if tx != nil {
		q = tx
	}
	_, err := q.Exec(ctx, query, key, point)
	if err != nil {
		return fmt.Errorf("update recovery point: %w", err)
	}
	return nil
}

// StoreResponse records the final response for replay to duplicate requests.
func (r *IdempotencyRepository) StoreResponse(ctx context.Context, tx pgx.Tx, key string, payload []byte, statusCode int) error {
	query := `
		UPDATE idempotency_keys
		SET response_payload = $2,
			status_code = $3,
			recovery_point = $4,
			completed_at = NOW()
		WHERE key = $1
	`

	var q Executor = r.db
	if tx != nil {
		q = tx
	}
	_, err := q.Exec(ctx, query, key, payload, statusCode, RecoveryPointCallFinished)
	if err != nil {
		return fmt.Errorf("store idempotent response: %w", err)
	}
	return nil
}

// ReleaseLock clears locked_at so a later retry with the same key can claim it.
func (r *IdempotencyRepository) ReleaseLock(ctx context.Context, tx pgx.Tx, key string) error {
	query := `UPDATE idempotency_keys SET locked_at = NULL WHERE key = $1`

	var q Executor = r.db
	if tx != nil {
		q = tx
	}
	_, err := q.Exec(ctx, query, key)
	if err != nil {
		return fmt.Errorf("release idempotency lock: %w", err)
	}
	return nil
}
