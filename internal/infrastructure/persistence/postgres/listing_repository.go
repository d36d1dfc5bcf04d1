package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/marketloop/order-engine/internal/domain"
)

var ErrListingNotFound = errors.New("listing not found")

type ListingRepository struct {
	db *pgxpool.Pool
}

func NewListingRepository(db *pgxpool.Pool) *ListingRepository {
	return &ListingRepository{db: db}
}

func (r *ListingRepository) FindByID(ctx context.Context, id string) (*domain.Listing, error) {
	query := `
		SELECT id, seller_id, title, price_cents, currency, status, image_url, current_order_id, created_at
		FROM listings
		WHERE id = $1
	`

	var l domain.Listing
	var status string
	err := r.db.QueryRow(ctx, query, id).Scan(
		&l.ID, &l.SellerID, &l.Title, &l.PriceCents, &l.Currency,
		&status, &l.ImageURL, &l.CurrentOrderID, &l.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrListingNotFound
		}
		return nil, fmt.Errorf("failed to scan listing: %w", err)
	}
	l.Status = domain.ListingStatus(status)
	return &l, nil
}

// Reserve flips an active listing to reserved and records the holding order.
// The status predicate is the mutex: of N concurrent buyers exactly one
// update matches, the rest see reserved=false.
func (r *ListingRepository) Reserve(ctx context.Context, tx pgx.Tx, listingID, orderID string) (bool, error) {
	query := `
		UPDATE listings
		SET status = 'reserved', current_order_id = $2, updated_at = NOW()
		WHERE id = $1 AND status = 'active'
	`

	var q Executor = r.db
	if tx != nil {
		q = tx
	}
	result, err := q.Exec(ctx, query, listingID, orderID)
	if err != nil {
		return false, fmt.Errorf("reserve listing: %w", err)
	}
	return result.RowsAffected() > 0, nil
}

// MarkSold finalizes a reserved listing once its order is paid.
func (r *ListingRepository) MarkSold(ctx context.Context, tx pgx.Tx, listingID, orderID string) (bool, error) {
	query := `
		UPDATE listings
		SET status = 'sold', updated_at = NOW()
		WHERE id = $1 AND status = 'reserved' AND current_order_id = $2
	`

	var q Executor = r.db
	if tx != nil {
		q = tx
	}
	result, err := q.Exec(ctx, query, listingID, orderID)
	if err != nil {
		return false, fmt.Errorf("mark listing sold: %w", err)
	}
	return result.RowsAffected() > 0, nil
}

// Release returns a listing to the market when its order ends without a sale.
// Guarded by current_order_id so a stale release cannot clobber a newer hold.
func (r *ListingRepository) Release(ctx context.Context, tx pgx.Tx, listingID, orderID string) (bool, error) {
	query := `
		UPDATE listings
		SET status = 'active', current_order_id = NULL, updated_at = NOW()
		WHERE id = $1 AND status = 'reserved' AND current_order_id = $2
	`

	var q Executor = r.db
	if tx != nil {
		q = tx
	}
	result, err := q.Exec(ctx, query, listingID, orderID)
	if err != nil {
		return false, fmt.Errorf("release listing: %w", err)
	}
	return result.RowsAffected() > 0, nil
}

// Relist reopens a sold listing after a refund completes.
func (r *ListingRepository) Relist(ctx context.Context, tx pgx.Tx, listingID, orderID string) (bool, error) {
	query := `
		UPDATE listings
		SET status = 'active', current_order_id = NULL, updated_at = NOW()
		WHERE id = $1 AND status = 'sold' AND current_order_id = $2
	`

	var q Executor = r.db
	if tx != nil {
		q = tx
	}
	result, err := q.Exec(ctx, query, listingID, orderID)
	if err != nil {
		return false, fmt.Errorf("relist listing: %w", err)
	}
	return result.RowsAffected() > 0, nil
}

// Create is used by tests and seeding tools.
func (r *ListingRepository) Create(ctx context.Context, l *domain.Listing) error {
	query := `
		INSERT INTO listings (id, seller_id, title, price_cents, currency, status, image_url, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
	`

	_, err := r.db.Exec(ctx, query,
		l.ID, l.SellerID, l.Title, l.PriceCents, l.Currency, string(l.Status), l.ImageURL, l.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create listing: %w", err)
	}
	return nil
}
