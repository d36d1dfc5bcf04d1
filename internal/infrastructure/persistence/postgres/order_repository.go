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

var ErrOrderNotFound = errors.New("order not found")

const orderColumns = `
	id, listing_id, buyer_id, seller_id, amount_cents, currency, status,
	snapshot_title, snapshot_price_cents, snapshot_image_url,
	processor_buyer_id, processor_instrument_id, processor_auth_id, processor_transfer_id,
	dispute_id, dispute_state, dispute_reason, dispute_amount_cents,
	tracking_carrier, tracking_number, payment_idempotency_key,
	reserved_at, reservation_expires_at, paid_at, shipped_at, completed_at,
	cancelled_at, refunded_at, created_at`

type OrderRepository struct {
	db *pgxpool.Pool
}

func NewOrderRepository(db *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{db: db}
}

func (r *OrderRepository) Create(ctx context.Context, tx pgx.Tx, order *domain.Order) error {
	query := `
		INSERT INTO orders (` + orderColumns + `, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15,
		          $16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27, $28, $29, NOW())
	`

	o := toOrderModel(order)
	var q Executor = r.db
	if tx != nil {
		q = tx
	}
	_, err := q.Exec(ctx, query,
		o.ID, o.ListingID, o.BuyerID, o.SellerID, o.AmountCents, o.Currency, o.Status,
		o.SnapshotTitle, o.SnapshotPriceCents, o.SnapshotImageURL,
		o.ProcessorBuyerID, o.ProcessorInstrumentID, o.ProcessorAuthID, o.ProcessorTransferID,
		o.DisputeID, o.DisputeState, o.DisputeReason, o.DisputeAmountCents,
		o.TrackingCarrier, o.TrackingNumber, o.PaymentIdempotencyKey,
		o.ReservedAt, o.ReservationExpiresAt, o.PaidAt, o.ShippedAt, o.CompletedAt,
		o.CancelledAt, o.RefundedAt, o.CreatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create order: %w", err)
	}

	return nil
}

// FindByID retrieves an order
func (r *OrderRepository) FindByID(ctx context.Context, id string) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	row := r.db.QueryRow(ctx, query, id)
	return scanOrder(row)
}

// FindByIDForUpdate retrieves an order with row-level lock
func (r *OrderRepository) FindByIDForUpdate(ctx context.Context, tx pgx.Tx, id string) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1 FOR UPDATE`

	var q Executor = r.db
	if tx != nil {
		q = tx
	}

	row := q.QueryRow(ctx, query, id)
	return scanOrder(row)
}

// FindActiveByListingID retrieves the single non-terminal order holding a listing
func (r *OrderRepository) FindActiveByListingID(ctx context.Context, listingID string) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + `
		FROM orders
		WHERE listing_id = $1
		  AND status NOT IN ('completed', 'cancelled', 'expired', 'refunded')`

	row := r.db.QueryRow(ctx, query, listingID)
	return scanOrder(row)
}

// FindByTransferID retrieves the order owning a processor transfer
func (r *OrderRepository) FindByTransferID(ctx context.Context, transferID string) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE processor_transfer_id = $1`

	row := r.db.QueryRow(ctx, query, transferID)
	return scanOrder(row)
}

// FindByUser retrieves orders where the user participates in the given role
func (r *OrderRepository) FindByUser(ctx context.Context, userID, role string, limit, offset int) ([]*domain.Order, error) {
	column := "buyer_id"
	if role == "seller" {
		column = "seller_id"
	}
	query := `SELECT ` + orderColumns + `
		FROM orders WHERE ` + column + ` = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`

	rows, err := r.db.Query(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query orders by %s: %w", column, err)
	}
	return pgx.CollectRows(rows, collectOrder)
}

// FindExpiredReservations finds reserved orders whose hold has lapsed
func (r *OrderRepository) FindExpiredReservations(ctx context.Context, now time.Time, limit int) ([]*domain.Order, error) {
	query := `SELECT ` + orderColumns + `
		FROM orders
		WHERE status = 'reserved'
		  AND reservation_expires_at < $1
		ORDER BY reservation_expires_at ASC
		LIMIT $2`

	rows, err := r.db.Query(ctx, query, now, limit)
	if err != nil {
		return nil, fmt.Errorf("query expired reservations: %w", err)
	}
	return pgx.CollectRows(rows, collectOrder)
}

func (r *OrderRepository) Update(ctx context.Context, tx pgx.Tx, order *domain.Order) error {
	query := `
		UPDATE orders
		SET status = $1,
			processor_buyer_id = $2, processor_instrument_id = $3,
			processor_auth_id = $4, processor_transfer_id = $5,
			dispute_id = $6, dispute_state = $7, dispute_reason = $8, dispute_amount_cents = $9,
			tracking_carrier = $10, tracking_number = $11, payment_idempotency_key = $12,
			reservation_expires_at = $13, paid_at = $14, shipped_at = $15,
			completed_at = $16, cancelled_at = $17, refunded_at = $18,
			updated_at = NOW()
		WHERE id = $19
	`

	o := toOrderModel(order)
	var q Executor = r.db
	if tx != nil {
		q = tx
	}
	results, err := q.Exec(ctx, query,
		o.Status,
		o.ProcessorBuyerID, o.ProcessorInstrumentID,
		o.ProcessorAuthID, o.ProcessorTransferID,
		o.DisputeID, o.DisputeState, o.DisputeReason, o.DisputeAmountCents,
		o.TrackingCarrier, o.TrackingNumber, o.PaymentIdempotencyKey,
		o.ReservationExpiresAt, o.PaidAt, o.ShippedAt,
		o.CompletedAt, o.CancelledAt, o.RefundedAt,
		o.ID,
	)

	if err != nil {
		return fmt.Errorf("failed to update order: %w", err)
	}

	if results.RowsAffected() == 0 {
		return ErrOrderNotFound
	}

	return nil
}

// ExpireReservation conditionally transitions reserved -> expired. Returns
// false when another writer got there first; expiry is then a no-op.
func (r *OrderRepository) ExpireReservation(ctx context.Context, tx pgx.Tx, orderID string) (bool, error) {
	query := `
		UPDATE orders
		SET status = 'expired', reservation_expires_at = NULL, updated_at = NOW()
		WHERE id = $1 AND status = 'reserved'
	`

	var q Executor = r.db
	if tx != nil {
		q = tx
	}
	result, err := q.Exec(ctx, query, orderID)
	if err != nil {
		return false, fmt.Errorf("expire reservation: %w", err)
	}
	return result.RowsAffected() > 0, nil
}

// ApplyDispute records dispute state forward-only: a would-be backward move is
// a no-op, which is what makes out-of-order webhook delivery safe.
func (r *OrderRepository) ApplyDispute(ctx context.Context, orderID, disputeID, state, reason string, amountCents int64, rank int) (bool, error) {
	query := `
		UPDATE orders
		SET dispute_id = $2,
			dispute_state = $3,
			dispute_reason = COALESCE(dispute_reason, $4),
			dispute_amount_cents = COALESCE(dispute_amount_cents, $5),
			updated_at = NOW()
		WHERE id = $1
		  AND (dispute_state IS NULL
		       OR (dispute_id = $2 AND
		           CASE dispute_state
		               WHEN 'open' THEN 1
		               WHEN 'under_review' THEN 2
		               ELSE 3
		           END < $6))
	`

	result, err := r.db.Exec(ctx, query, orderID, disputeID, state, reason, amountCents, rank)
	if err != nil {
		return false, fmt.Errorf("apply dispute: %w", err)
	}
	return result.RowsAffected() > 0, nil
}

// ApplyTransferOutcome applies an asynchronous transfer result. Succeeded
// confirms a payment still in flight and backfills the transfer id if the
// synchronous response never arrived; failed cancels the attempt. Orders
// already past the target state are left untouched.
func (r *OrderRepository) ApplyTransferOutcome(ctx context.Context, tx pgx.Tx, orderID, transferID string, succeeded bool, at time.Time) (bool, error) {
	var q Executor = r.db
	if tx != nil {
		q = tx
	}

	if succeeded {
		query := `
			UPDATE orders
			SET status = 'paid', paid_at = $2,
				processor_transfer_id = COALESCE(processor_transfer_id, $3),
				reservation_expires_at = NULL, updated_at = NOW()
			WHERE id = $1 AND status IN ('pending', 'authorized')
		`
		result, err := q.Exec(ctx, query, orderID, at, transferID)
		if err != nil {
			return false, fmt.Errorf("apply transfer outcome: %w", err)
		}
		return result.RowsAffected() > 0, nil
	}

	query := `
		UPDATE orders
		SET status = 'cancelled', cancelled_at = $2, reservation_expires_at = NULL, updated_at = NOW()
		WHERE id = $1 AND status = 'pending'
	`
	result, err := q.Exec(ctx, query, orderID, at)
	if err != nil {
		return false, fmt.Errorf("apply transfer outcome: %w", err)
	}
	return result.RowsAffected() > 0, nil
}

func collectOrder(row pgx.CollectableRow) (*domain.Order, error) {
	var m OrderModel
	err := row.Scan(
		&m.ID, &m.ListingID, &m.BuyerID, &m.SellerID, &m.AmountCents, &m.Currency, &m.Status,
		&m.SnapshotTitle, &m.SnapshotPriceCents, &m.SnapshotImageURL,
		&m.ProcessorBuyerID, &m.ProcessorInstrumentID, &m.ProcessorAuthID, &m.ProcessorTransferID,
		&m.DisputeID, &m.DisputeState, &m.DisputeReason, &m.DisputeAmountCents,
		&m.TrackingCarrier, &m.TrackingNumber, &m.PaymentIdempotencyKey,
		&m.ReservedAt, &m.ReservationExpiresAt, &m.PaidAt, &m.ShippedAt, &m.CompletedAt,
		&m.CancelledAt, &m.RefundedAt, &m.CreatedAt,
	)
	return toDomainOrder(m), err
}

// scanOrder converts a database row into a domain Order.
// Returns ErrOrderNotFound if the row doesn't exist.
func scanOrder(row pgx.Row) (*domain.Order, error) {
	var m OrderModel
	err := row.Scan(
		&m.ID, &m.ListingID, &m.BuyerID, &m.SellerID, &m.AmountCents, &m.Currency, &m.Status,
		&m.SnapshotTitle, &m.SnapshotPriceCents, &m.SnapshotImageURL,
		&m.ProcessorBuyerID, &m.ProcessorInstrumentID, &m.ProcessorAuthID, &m.ProcessorTransferID,
		&m.DisputeID, &m.DisputeState, &m.DisputeReason, &m.DisputeAmountCents,
		&m.TrackingCarrier, &m.TrackingNumber, &m.PaymentIdempotencyKey,
		&m.ReservedAt, &m.ReservationExpiresAt, &m.PaidAt, &m.ShippedAt, &m.CompletedAt,
		&m.CancelledAt, &m.RefundedAt, &m.CreatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to scan order: %w", err)
	}
	return toDomainOrder(m), nil
}
