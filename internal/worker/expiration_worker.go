package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/marketloop/order-engine/internal/domain"
	"github.com/marketloop/order-engine/internal/infrastructure/persistence/postgres"
)

// ExpirationWorker sweeps lapsed reservations and returns their listings to
// the market. Expiry is conditional on the order still being reserved, so a
// payment that went in flight meanwhile is never disturbed.
type ExpirationWorker struct {
	orderRepo   *postgres.OrderRepository
	listingRepo *postgres.ListingRepository
	db          *pgxpool.Pool
	interval    time.Duration
	batchSize   int
	logger      *slog.Logger
}

func NewExpirationWorker(
	orderRepo *postgres.OrderRepository,
	listingRepo *postgres.ListingRepository,
	db *pgxpool.Pool,
	interval time.Duration,
	batchSize int,
	logger *slog.Logger,
) *ExpirationWorker {
	return &ExpirationWorker{
		orderRepo:   orderRepo,
		listingRepo: listingRepo,
		db:          db,
		interval:    interval,
		batchSize:   batchSize,
		logger:      logger,
	}
}

func (w *ExpirationWorker) Start(ctx context.Context) {
	w.logger.Info("expiration worker started", "interval", w.interval)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.ProcessExpirations(ctx)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("expiration worker stopping")
			return
		case <-ticker.C:
			if err := w.ProcessExpirations(ctx); err != nil {
				w.logger.Error("expiration sweep failed", "error", err)
			}
		}
	}
}

func (w *ExpirationWorker) ProcessExpirations(ctx context.Context) error {
	lapsed, err := w.orderRepo.FindExpiredReservations(ctx, time.Now().UTC(), w.batchSize)
	if err != nil {
		return err
	}

	if len(lapsed) == 0 {
		return nil
	}

	var expired int

	for _, order := range lapsed {
		ok, err := w.expireOne(ctx, order)
		if err != nil {
			w.logger.Error("failed to expire reservation",
				"order_id", order.ID,
				"error", err)
			continue
		}
		if ok {
			expired++
		}
	}

	w.logger.Info("reservation sweep finished",
		"candidates", len(lapsed),
		"expired", expired)

	return nil
}

func (w *ExpirationWorker) expireOne(ctx context.Context, order *domain.Order) (bool, error) {
	tx, err := w.db.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx)

	expired, err := w.orderRepo.ExpireReservation(ctx, tx, order.ID)
	if err != nil {
		return false, err
	}
	if expired {
		if _, err := w.listingRepo.Release(ctx, tx, order.ListingID, order.ID); err != nil {
			return false, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return false, err
	}
	return expired, nil
}
