package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/marketloop/order-engine/internal/domain"
)

var ErrMerchantNotFound = errors.New("merchant not found")

type MerchantRepository struct {
	db *pgxpool.Pool
}

func NewMerchantRepository(db *pgxpool.Pool) *MerchantRepository {
	return &MerchantRepository{db: db}
}

func (r *MerchantRepository) FindByUserID(ctx context.Context, userID string) (*domain.Merchant, error) {
	query := `
		SELECT user_id, processor_merchant_id, state, updated_at
		FROM merchants
		WHERE user_id = $1
	`

	var m domain.Merchant
	var state string
	err := r.db.QueryRow(ctx, query, userID).Scan(
		&m.UserID, &m.ProcessorMerchantID, &state, &m.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrMerchantNotFound
		}
		return nil, fmt.Errorf("failed to scan merchant: %w", err)
	}
	m.State = domain.MerchantState(state)
	return &m, nil
}

// ApplyState upserts the merchant verification state forward-only. A stale
// event ranked at or below the stored state changes nothing.
func (r *MerchantRepository) ApplyState(ctx context.Context, processorMerchantID, userID string, state domain.MerchantState, rank int) (bool, error) {
	query := `
		INSERT INTO merchants (user_id, processor_merchant_id, state, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (user_id) DO UPDATE
		SET processor_merchant_id = EXCLUDED.processor_merchant_id,
			state = EXCLUDED.state,
			updated_at = NOW()
		WHERE CASE merchants.state
			WHEN 'pending' THEN 1
			ELSE 2
		END < $4
	`

	result, err := r.db.Exec(ctx, query, userID, processorMerchantID, string(state), rank)
	if err != nil {
		return false, fmt.Errorf("apply merchant state: %w", err)
	}
	return result.RowsAffected() > 0, nil
}
