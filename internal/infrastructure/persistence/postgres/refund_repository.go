package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/marketloop/order-engine/internal/domain"
)

var ErrRefundRequestNotFound = errors.New("refund request not found")

const refundColumns = `
	id, order_id, buyer_id, seller_id,
	requested_amount_cents, original_amount_cents, currency, reason, status,
	return_carrier, return_tracking_number,
	decided_by, decided_at, denial_reason,
	reversal_idempotency_key, processor_reversal_id, processor_reversal_state,
	created_at`

type RefundRepository struct {
	db *pgxpool.Pool
}

func NewRefundRepository(db *pgxpool.Pool) *RefundRepository {
	return &RefundRepository{db: db}
}

// Create inserts a pending refund request. The partial unique index on
// order_id rejects a second open request for the same order; callers map the
// unique violation to a conflict.
func (r *RefundRepository) Create(ctx context.Context, tx pgx.Tx, req *domain.RefundRequest) error {
	query := `
		INSERT INTO refund_requests (` + refundColumns + `, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, NOW())
	`

	m := toRefundRequestModel(req)
	var q Executor = r.db
	if tx != nil {
		q = tx
	}
	_, err := q.Exec(ctx, query,
		m.ID, m.OrderID, m.BuyerID, m.SellerID,
		m.RequestedAmountCents, m.OriginalAmountCents, m.Currency, m.Reason, m.Status,
		m.ReturnCarrier, m.ReturnTrackingNumber,
		m.DecidedBy, m.DecidedAt, m.DenialReason,
		m.ReversalIdempotencyKey, m.ProcessorReversalID, m.ProcessorReversalState,
		m.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create refund request: %w", err)
	}
	return nil
}

func (r *RefundRepository) FindByID(ctx context.Context, id string) (*domain.RefundRequest, error) {
	query := `SELECT ` + refundColumns + ` FROM refund_requests WHERE id = $1`

	row := r.db.QueryRow(ctx, query, id)
	return scanRefundRequest(row)
}

// FindByIDForUpdate locks the refund row for the duration of the transaction.
func (r *RefundRepository) FindByIDForUpdate(ctx context.Context, tx pgx.Tx, id string) (*domain.RefundRequest, error) {
	query := `SELECT ` + refundColumns + ` FROM refund_requests WHERE id = $1 FOR UPDATE`

	var q Executor = r.db
	if tx != nil {
		q = tx
	}
	row := q.QueryRow(ctx, query, id)
	return scanRefundRequest(row)
}

// FindActiveByOrderID returns the single non-terminal refund request for an
// order, if any.
func (r *RefundRepository) FindActiveByOrderID(ctx context.Context, orderID string) (*domain.RefundRequest, error) {
	query := `SELECT ` + refundColumns + `
		FROM refund_requests
		WHERE order_id = $1
		  AND status NOT IN ('executed', 'denied', 'cancelled')`

	row := r.db.QueryRow(ctx, query, orderID)
	return scanRefundRequest(row)
}

// FindExecutedByOrderID returns refunds already settled against an order.
func (r *RefundRepository) FindExecutedByOrderID(ctx context.Context, orderID string) ([]*domain.RefundRequest, error) {
	query := `SELECT ` + refundColumns + `
		FROM refund_requests
		WHERE order_id = $1 AND status = 'executed'
		ORDER BY created_at ASC`

	rows, err := r.db.Query(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("query executed refunds: %w", err)
	}
	return pgx.CollectRows(rows, collectRefundRequest)
}

func (r *RefundRepository) FindByOrderID(ctx context.Context, orderID string) ([]*domain.RefundRequest, error) {
	query := `SELECT ` + refundColumns + `
		FROM refund_requests
		WHERE order_id = $1
		ORDER BY created_at ASC`

	rows, err := r.db.Query(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("query refunds by order: %w", err)
	}
	return pgx.CollectRows(rows, collectRefundRequest)
}

func (r *RefundRepository) Update(ctx context.Context, tx pgx.Tx, req *domain.RefundRequest) error {
	query := `
		UPDATE refund_requests
		SET status = $1,
			return_carrier = $2, return_tracking_number = $3,
			decided_by = $4, decided_at = $5, denial_reason = $6,
			processor_reversal_id = $7, processor_reversal_state = $8,
			updated_at = NOW()
		WHERE id = $9
	`

	m := toRefundRequestModel(req)
	var q Executor = r.db
	if tx != nil {
		q = tx
	}
	result, err := q.Exec(ctx, query,
		m.Status,
		m.ReturnCarrier, m.ReturnTrackingNumber,
		m.DecidedBy, m.DecidedAt, m.DenialReason,
		m.ProcessorReversalID, m.ProcessorReversalState,
		m.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update refund request: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrRefundRequestNotFound
	}
	return nil
}

func collectRefundRequest(row pgx.CollectableRow) (*domain.RefundRequest, error) {
	var m RefundRequestModel
	err := row.Scan(
		&m.ID, &m.OrderID, &m.BuyerID, &m.SellerID,
		&m.RequestedAmountCents, &m.OriginalAmountCents, &m.Currency, &m.Reason, &m.Status,
		&m.ReturnCarrier, &m.ReturnTrackingNumber,
		&m.DecidedBy, &m.DecidedAt, &m.DenialReason,
		&m.ReversalIdempotencyKey, &m.ProcessorReversalID, &m.ProcessorReversalState,
		&m.CreatedAt,
	)
	return toDomainRefundRequest(m), err
}

func scanRefundRequest(row pgx.Row) (*domain.RefundRequest, error) {
	var m RefundRequestModel
	err := row.Scan(
		&m.ID, &m.OrderID, &m.BuyerID, &m.SellerID,
		&m.RequestedAmountCents, &m.OriginalAmountCents, &m.Currency, &m.Reason, &m.Status,
		&m.ReturnCarrier, &m.ReturnTrackingNumber,
		&m.DecidedBy, &m.DecidedAt, &m.DenialReason,
		&m.ReversalIdempotencyKey, &m.ProcessorReversalID, &m.ProcessorReversalState,
		&m.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRefundRequestNotFound
		}
		return nil, fmt.Errorf("failed to scan refund request: %w", err)
	}
	return toDomainRefundRequest(m), nil
}
