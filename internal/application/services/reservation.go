package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/marketloop/order-engine/internal/application"
	"github.com/marketloop/order-engine/internal/domain"
	"github.com/marketloop/order-engine/internal/infrastructure/persistence/postgres"
)

// ReservationService holds and releases listings on behalf of buyers.
type ReservationService struct {
	orderRepo   *postgres.OrderRepository
	listingRepo *postgres.ListingRepository
	notifier    application.NotificationSink
	db          *pgxpool.Pool
	logger      *slog.Logger
}

func NewReservationService(
	orderRepo *postgres.OrderRepository,
	listingRepo *postgres.ListingRepository,
	notifier application.NotificationSink,
	db *pgxpool.Pool,
	logger *slog.Logger,
) *ReservationService {
	return &ReservationService{
		orderRepo:   orderRepo,
		listingRepo: listingRepo,
		notifier:    notifier,
		db:          db,
		logger:      logger,
	}
}

// Reserve places a hold on the listing and opens an order in reserved status.
// The conditional listing update is the mutex: under concurrent attempts
// exactly one buyer wins, everyone else gets a conflict.
func (s *ReservationService) Reserve(ctx context.Context, cmd ReserveCommand) (*domain.Order, error) {
	listing, err := s.listingRepo.FindByID(ctx, cmd.ListingID)
	if err != nil {
		return nil, err
	}
	if !listing.Purchasable() {
		return nil, domain.NewConflictError("listing is not available for purchase")
	}

	order, err := domain.NewOrder(uuid.New().String(), listing, cmd.BuyerID, time.Now().UTC())
	if err != nil {
		return nil, err
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, application.NewInternalError(err)
	}
	defer tx.Rollback(ctx)

	reserved, err := s.listingRepo.Reserve(ctx, tx, listing.ID, order.ID)
	if err != nil {
		return nil, application.NewInternalError(err)
	}
	if !reserved {
		return nil, domain.NewConflictError("listing was reserved by another buyer")
	}

	if err := s.orderRepo.Create(ctx, tx, order); err != nil {
		if postgres.IsUniqueViolation(err) {
			return nil, domain.NewConflictError("listing already has an active order")
		}
		return nil, application.NewInternalError(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, application.NewInternalError(err)
	}

	s.logger.Info("listing reserved",
		"order_id", order.ID,
		"listing_id", listing.ID,
		"buyer_id", cmd.BuyerID,
		"expires_at", order.ReservationExpiresAt,
	)
	s.notifier.NotifyOrderEvent(ctx, listing.SellerID, order.ID, "order.reserved")

	return order, nil
}

// Cancel abandons a purchase attempt before payment and returns the listing to
// the market. Buyer only.
func (s *ReservationService) Cancel(ctx context.Context, orderID, buyerID string) (*domain.Order, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, application.NewInternalError(err)
	}
	defer tx.Rollback(ctx)

	order, err := s.orderRepo.FindByIDForUpdate(ctx, tx, orderID)
	if err != nil {
		return nil, err
	}
	if order.BuyerID != buyerID {
		return nil, domain.NewForbiddenError("only the buyer can cancel this order")
	}

	if err := order.Cancel(time.Now().UTC()); err != nil {
		return nil, err
	}

	if err := s.orderRepo.Update(ctx, tx, order); err != nil {
		return nil, application.NewInternalError(err)
	}
	if _, err := s.listingRepo.Release(ctx, tx, order.ListingID, order.ID); err != nil {
		return nil, application.NewInternalError(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, application.NewInternalError(err)
	}

	s.logger.Info("order cancelled", "order_id", order.ID, "buyer_id", buyerID)
	s.notifier.NotifyOrderEvent(ctx, order.SellerID, order.ID, "order.cancelled")

	return order, nil
}

// ExpireIfLapsed applies reservation expiry lazily when an order is read after
// its hold has run out. Returns the refreshed order.
func (s *ReservationService) ExpireIfLapsed(ctx context.Context, order *domain.Order) (*domain.Order, error) {
	if !order.ReservationExpired(time.Now().UTC()) {
		return order, nil
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, application.NewInternalError(err)
	}
	defer tx.Rollback(ctx)

	expired, err := s.orderRepo.ExpireReservation(ctx, tx, order.ID)
	if err != nil {
		return nil, application.NewInternalError(err)
	}
	if expired {
		if _, err := s.listingRepo.Release(ctx, tx, order.ListingID, order.ID); err != nil {
			return nil, application.NewInternalError(err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, application.NewInternalError(err)
	}

	refreshed, err := s.orderRepo.FindByID(ctx, order.ID)
	if err != nil {
		if errors.Is(err, postgres.ErrOrderNotFound) {
			return order, nil
		}
		return nil, err
	}
	return refreshed, nil
}
