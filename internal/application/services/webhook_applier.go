package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/marketloop/order-engine/internal/application"
	"github.com/marketloop/order-engine/internal/domain"
	"github.com/marketloop/order-engine/internal/infrastructure/persistence/postgres"
)

// WebhookApplier turns persisted ledger events into state changes. Every
// mutation is a conditional, forward-only update, so stale and out-of-order
// deliveries degrade to no-ops.
type WebhookApplier struct {
	orderRepo    *postgres.OrderRepository
	listingRepo  *postgres.ListingRepository
	merchantRepo *postgres.MerchantRepository
	notifier     application.NotificationSink
	db           *pgxpool.Pool
	logger       *slog.Logger
}

func NewWebhookApplier(
	orderRepo *postgres.OrderRepository,
	listingRepo *postgres.ListingRepository,
	merchantRepo *postgres.MerchantRepository,
	notifier application.NotificationSink,
	db *pgxpool.Pool,
	logger *slog.Logger,
) *WebhookApplier {
	return &WebhookApplier{
		orderRepo:    orderRepo,
		listingRepo:  listingRepo,
		merchantRepo: merchantRepo,
		notifier:     notifier,
		db:           db,
		logger:       logger,
	}
}

type merchantEventData struct {
	MerchantID string `json:"merchant_id"`
	UserID     string `json:"user_id"`
}

type disputeEventData struct {
	DisputeID   string `json:"dispute_id"`
	TransferID  string `json:"transfer_id"`
	State       string `json:"state"`
	Reason      string `json:"reason"`
	AmountCents *int64 `json:"amount_cents"`
}

type transferEventData struct {
	TransferID string     `json:"transfer_id"`
	OrderID    string     `json:"order_id"`
	OccurredAt *time.Time `json:"occurred_at"`
}

// Apply routes one event to its per-type handler. A returned error marks the
// event for retry; a nil return marks it processed even when the update was a
// stale no-op.
func (a *WebhookApplier) Apply(ctx context.Context, event *domain.WebhookEvent) error {
	switch event.Type {
	case domain.EventMerchantApproved:
		return a.applyMerchant(ctx, event, domain.MerchantApproved)
	case domain.EventMerchantRejected:
		return a.applyMerchant(ctx, event, domain.MerchantRejected)
	case domain.EventDisputeCreated, domain.EventDisputeUpdated:
		return a.applyDispute(ctx, event)
	case domain.EventTransferSucceeded:
		return a.applyTransfer(ctx, event, true)
	case domain.EventTransferFailed:
		return a.applyTransfer(ctx, event, false)
	default:
		return fmt.Errorf("unknown event type %q", event.Type)
	}
}

func (a *WebhookApplier) applyMerchant(ctx context.Context, event *domain.WebhookEvent, state domain.MerchantState) error {
	var data merchantEventData
	if err := json.Unmarshal(event.Payload, &data); err != nil {
		return fmt.Errorf("parse merchant event: %w", err)
	}
	if data.UserID == "" {
		return fmt.Errorf("merchant event %s has no user_id", event.EventID)
	}

	applied, err := a.merchantRepo.ApplyState(ctx, data.MerchantID, data.UserID, state, domain.MerchantStateRank(state))
	if err != nil {
		return err
	}
	if !applied {
		a.logger.Debug("stale merchant event ignored", "event_id", event.EventID)
		return nil
	}

	a.logger.Info("merchant state applied",
		"event_id", event.EventID,
		"user_id", data.UserID,
		"state", state,
	)
	a.notifier.NotifyOrderEvent(ctx, data.UserID, "", "merchant."+string(state))
	return nil
}

func (a *WebhookApplier) applyDispute(ctx context.Context, event *domain.WebhookEvent) error {
	var data disputeEventData
	if err := json.Unmarshal(event.Payload, &data); err != nil {
		return fmt.Errorf("parse dispute event: %w", err)
	}
	rank := domain.DisputeStateRank(data.State)
	if rank == 0 {
		return fmt.Errorf("dispute event %s has unknown state %q", event.EventID, data.State)
	}

	order, err := a.orderRepo.FindByTransferID(ctx, data.TransferID)
	if err != nil {
		return fmt.Errorf("dispute event %s: %w", event.EventID, err)
	}

	// Disputes without an amount contest the whole order.
	amount := order.AmountCents
	if data.AmountCents != nil {
		amount = *data.AmountCents
	}

	applied, err := a.orderRepo.ApplyDispute(ctx, order.ID, data.DisputeID, data.State, data.Reason, amount, rank)
	if err != nil {
		return err
	}
	if !applied {
		a.logger.Debug("stale dispute event ignored", "event_id", event.EventID)
		return nil
	}

	a.logger.Info("dispute applied",
		"event_id", event.EventID,
		"order_id", order.ID,
		"dispute_id", data.DisputeID,
		"state", data.State,
	)
	a.notifier.NotifyOrderEvent(ctx, order.SellerID, order.ID, "dispute."+data.State)
	return nil
}

func (a *WebhookApplier) applyTransfer(ctx context.Context, event *domain.WebhookEvent, succeeded bool) error {
	var data transferEventData
	if err := json.Unmarshal(event.Payload, &data); err != nil {
		return fmt.Errorf("parse transfer event: %w", err)
	}

	order, err := a.findTransferOrder(ctx, data)
	if err != nil {
		return fmt.Errorf("transfer event %s: %w", event.EventID, err)
	}

	at := time.Now().UTC()
	if data.OccurredAt != nil {
		at = *data.OccurredAt
	}

	tx, err := a.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	applied, err := a.orderRepo.ApplyTransferOutcome(ctx, tx, order.ID, data.TransferID, succeeded, at)
	if err != nil {
		return err
	}
	if applied {
		if succeeded {
			if _, err := a.listingRepo.MarkSold(ctx, tx, order.ListingID, order.ID); err != nil {
				return err
			}
		} else {
			if _, err := a.listingRepo.Release(ctx, tx, order.ListingID, order.ID); err != nil {
				return err
			}
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return err
	}

	if !applied {
		a.logger.Debug("transfer event was a no-op", "event_id", event.EventID, "order_id", order.ID)
		return nil
	}

	outcome := "order.paid"
	if !succeeded {
		outcome = "order.payment_failed"
	}
	a.logger.Info("transfer outcome applied",
		"event_id", event.EventID,
		"order_id", order.ID,
		"succeeded", succeeded,
	)
	a.notifier.NotifyOrderEvent(ctx, order.BuyerID, order.ID, outcome)
	return nil
}

// findTransferOrder resolves the order by the metadata order id the transfer
// was created with, falling back to the recorded transfer id.
func (a *WebhookApplier) findTransferOrder(ctx context.Context, data transferEventData) (*domain.Order, error) {
	if data.OrderID != "" {
		return a.orderRepo.FindByID(ctx, data.OrderID)
	}
	if data.TransferID != "" {
		return a.orderRepo.FindByTransferID(ctx, data.TransferID)
	}
	return nil, fmt.Errorf("transfer event carries neither order_id nor transfer_id")
}
