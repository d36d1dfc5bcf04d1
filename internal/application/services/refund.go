package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/marketloop/order-engine/internal/application"
	"github.com/marketloop/order-engine/internal/domain"
	"github.com/marketloop/order-engine/internal/infrastructure/persistence/postgres"
)

// RefundService runs the buyer-initiated, seller-approved refund workflow.
type RefundService struct {
	refundRepo  *postgres.RefundRepository
	orderRepo   *postgres.OrderRepository
	listingRepo *postgres.ListingRepository
	processor   application.ProcessorClient
	notifier    application.NotificationSink
	db          *pgxpool.Pool
	logger      *slog.Logger
}

func NewRefundService(
	refundRepo *postgres.RefundRepository,
	orderRepo *postgres.OrderRepository,
	listingRepo *postgres.ListingRepository,
	processor application.ProcessorClient,
	notifier application.NotificationSink,
	db *pgxpool.Pool,
	logger *slog.Logger,
) *RefundService {
	return &RefundService{
		refundRepo:  refundRepo,
		orderRepo:   orderRepo,
		listingRepo: listingRepo,
		processor:   processor,
		notifier:    notifier,
		db:          db,
		logger:      logger,
	}
}

// Request opens a refund request against a paid, shipped or completed order.
// Buyer only. A nil amount requests the full order total.
func (s *RefundService) Request(ctx context.Context, cmd RequestRefundCommand) (*domain.RefundRequest, error) {
	order, err := s.orderRepo.FindByID(ctx, cmd.OrderID)
	if err != nil {
		return nil, err
	}
	if order.BuyerID != cmd.BuyerID {
		return nil, domain.NewForbiddenError("only the buyer can request a refund")
	}

	settled, err := s.refundRepo.FindExecutedByOrderID(ctx, cmd.OrderID)
	if err != nil {
		return nil, application.NewInternalError(err)
	}
	if len(settled) > 0 {
		return nil, domain.NewRefundSettledError(cmd.OrderID)
	}

	refund, err := domain.NewRefundRequest(uuid.New().String(), order, cmd.Reason, cmd.AmountCents, time.Now().UTC())
	if err != nil {
		return nil, err
	}

	if err := s.refundRepo.Create(ctx, nil, refund); err != nil {
		if postgres.IsUniqueViolation(err) {
			return nil, domain.NewConflictError("order already has an open refund request")
		}
		return nil, application.NewInternalError(err)
	}

	s.logger.Info("refund requested",
		"refund_id", refund.ID,
		"order_id", order.ID,
		"amount_cents", refund.RequestedAmountCents,
	)
	s.notifier.NotifyOrderEvent(ctx, order.SellerID, order.ID, "refund.requested")

	return refund, nil
}

// SubmitReturn records the buyer's return shipment. Buyer only.
func (s *RefundService) SubmitReturn(ctx context.Context, cmd SubmitReturnCommand) (*domain.RefundRequest, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, application.NewInternalError(err)
	}
	defer tx.Rollback(ctx)

	refund, err := s.refundRepo.FindByIDForUpdate(ctx, tx, cmd.RefundID)
	if err != nil {
		return nil, err
	}
	if refund.BuyerID != cmd.BuyerID {
		return nil, domain.NewForbiddenError("only the buyer can submit the return")
	}

	if err := refund.SubmitReturn(cmd.Carrier, cmd.TrackingNumber); err != nil {
		return nil, err
	}
	if err := s.refundRepo.Update(ctx, tx, refund); err != nil {
		return nil, application.NewInternalError(err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, application.NewInternalError(err)
	}

	s.notifier.NotifyOrderEvent(ctx, refund.SellerID, refund.OrderID, "refund.return_submitted")
	return refund, nil
}

// ConfirmReturn is the seller acknowledging the returned item arrived.
func (s *RefundService) ConfirmReturn(ctx context.Context, refundID, sellerID string) (*domain.RefundRequest, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, application.NewInternalError(err)
	}
	defer tx.Rollback(ctx)

	refund, err := s.refundRepo.FindByIDForUpdate(ctx, tx, refundID)
	if err != nil {
		return nil, err
	}
	if refund.SellerID != sellerID {
		return nil, domain.NewForbiddenError("only the seller can confirm the return")
	}

	if err := refund.ConfirmReturn(); err != nil {
		return nil, err
	}
	if err := s.refundRepo.Update(ctx, tx, refund); err != nil {
		return nil, application.NewInternalError(err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, application.NewInternalError(err)
	}

	s.notifier.NotifyOrderEvent(ctx, refund.BuyerID, refund.OrderID, "refund.return_received")
	return refund, nil
}

// Approve executes the processor reversal. Seller only. The reversal always
// carries the request's fixed idempotency key, so the processor deduplicates
// any retried approval; on our side the row lock plus the approved in-flight
// marker ensure only one attempt runs at a time. An in-flight marker older
// than the lock window is an orphan from a crashed attempt, and a retrying
// seller takes it over.
func (s *RefundService) Approve(ctx context.Context, cmd DecideRefundCommand) (*domain.RefundRequest, error) {
	now := time.Now().UTC()

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, application.NewInternalError(err)
	}
	defer tx.Rollback(ctx)

	refund, err := s.refundRepo.FindByIDForUpdate(ctx, tx, cmd.RefundID)
	if err != nil {
		return nil, err
	}
	if refund.SellerID != cmd.SellerID {
		return nil, domain.NewForbiddenError("only the seller can approve a refund")
	}

	// A repeated approval of an already-settled refund is a success replay.
	if refund.Status == domain.RefundExecuted {
		return refund, nil
	}
	if refund.Status == domain.RefundApproved && !approvalStale(refund, now) {
		tx.Rollback(ctx)
		return s.waitForReversal(ctx, cmd.RefundID)
	}

	order, err := s.orderRepo.FindByID(ctx, refund.OrderID)
	if err != nil {
		return nil, err
	}
	if order.ProcessorTransferID == nil {
		return nil, domain.NewConflictError("order has no transfer to reverse")
	}

	if refund.Status == domain.RefundApproved {
		// The attempt that approved it died before its reversal resolved.
		// Restamp the marker and re-drive under the same fixed key.
		if err := refund.ReclaimApproval(cmd.SellerID, now); err != nil {
			return nil, err
		}
	} else if err := refund.MarkApproved(cmd.SellerID, now); err != nil {
		return nil, err
	}
	if err := s.refundRepo.Update(ctx, tx, refund); err != nil {
		return nil, application.NewInternalError(err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, application.NewInternalError(err)
	}

	reversalResp, err := s.processor.CreateReversal(ctx, application.ReversalRequest{
		TransferID:  *order.ProcessorTransferID,
		AmountCents: refund.RequestedAmountCents,
		Currency:    refund.Currency,
	}, refund.ReversalIdempotencyKey)
	if err != nil {
		return s.revertApproval(ctx, refund, err)
	}

	tx, err = s.db.Begin(ctx)
	if err != nil {
		return refund, application.NewInternalError(err)
	}
	defer tx.Rollback(ctx)

	if err := refund.MarkExecuted(reversalResp.ReversalID, reversalResp.State); err != nil {
		return nil, err
	}
	if err := s.refundRepo.Update(ctx, tx, refund); err != nil {
		return nil, application.NewInternalError(err)
	}

	if refund.IsFull() {
		order, err := s.orderRepo.FindByIDForUpdate(ctx, tx, refund.OrderID)
		if err != nil {
			return nil, err
		}
		if err := order.MarkRefunded(now); err != nil {
			return nil, err
		}
		if err := s.orderRepo.Update(ctx, tx, order); err != nil {
			return nil, application.NewInternalError(err)
		}
		if _, err := s.listingRepo.Relist(ctx, tx, order.ListingID, order.ID); err != nil {
			return nil, application.NewInternalError(err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return refund, application.NewInternalError(err)
	}

	s.logger.Info("refund executed",
		"refund_id", refund.ID,
		"order_id", refund.OrderID,
		"reversal_id", reversalResp.ReversalID,
		"full", refund.IsFull(),
	)
	s.notifier.NotifyOrderEvent(ctx, refund.BuyerID, refund.OrderID, "refund.executed")
	// The buyer-seller conversation thread is keyed by order.
	s.notifier.PostSystemMessage(ctx, refund.OrderID,
		fmt.Sprintf("A refund of %d %s was issued.", refund.RequestedAmountCents, refund.Currency))

	return refund, nil
}

// revertApproval returns a failed reversal attempt to return_received so the
// seller can approve again. The fixed idempotency key makes the retry safe
// even if the first reversal actually landed.
func (s *RefundService) revertApproval(ctx context.Context, refund *domain.RefundRequest, reversalErr error) (*domain.RefundRequest, error) {
	s.logger.Warn("reversal failed, reverting approval",
		"refund_id", refund.ID,
		"error", reversalErr,
	)

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, application.NewInternalError(err)
	}
	defer tx.Rollback(ctx)

	if err := refund.RevertApproval(); err != nil {
		return nil, err
	}
	if err := s.refundRepo.Update(ctx, tx, refund); err != nil {
		return nil, application.NewInternalError(err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, application.NewInternalError(err)
	}

	return refund, application.NewUpstreamUnavailableError(reversalErr)
}

// Deny closes the request with a seller reason. Seller only.
func (s *RefundService) Deny(ctx context.Context, cmd DecideRefundCommand) (*domain.RefundRequest, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, application.NewInternalError(err)
	}
	defer tx.Rollback(ctx)

	refund, err := s.refundRepo.FindByIDForUpdate(ctx, tx, cmd.RefundID)
	if err != nil {
		return nil, err
	}
	if refund.SellerID != cmd.SellerID {
		return nil, domain.NewForbiddenError("only the seller can deny a refund")
	}

	if err := refund.Deny(cmd.SellerID, cmd.Reason, time.Now().UTC()); err != nil {
		return nil, err
	}
	if err := s.refundRepo.Update(ctx, tx, refund); err != nil {
		return nil, application.NewInternalError(err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, application.NewInternalError(err)
	}

	s.notifier.NotifyOrderEvent(ctx, refund.BuyerID, refund.OrderID, "refund.denied")
	s.notifier.PostSystemMessage(ctx, refund.OrderID,
		"The seller denied the refund request: "+cmd.Reason)
	return refund, nil
}

// Cancel withdraws the request. Buyer only, and only before the seller has
// received the return.
func (s *RefundService) Cancel(ctx context.Context, refundID, buyerID string) (*domain.RefundRequest, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, application.NewInternalError(err)
	}
	defer tx.Rollback(ctx)

	refund, err := s.refundRepo.FindByIDForUpdate(ctx, tx, refundID)
	if err != nil {
		return nil, err
	}
	if refund.BuyerID != buyerID {
		return nil, domain.NewForbiddenError("only the buyer can cancel a refund request")
	}

	if err := refund.Cancel(); err != nil {
		return nil, err
	}
	if err := s.refundRepo.Update(ctx, tx, refund); err != nil {
		return nil, application.NewInternalError(err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, application.NewInternalError(err)
	}

	return refund, nil
}

// approvalStale reports whether an in-flight approval has outlived the lock
// window, meaning the attempt that set it died before its reversal resolved.
func approvalStale(refund *domain.RefundRequest, now time.Time) bool {
	return refund.DecidedAt == nil || now.Sub(*refund.DecidedAt) > lockStaleAfter
}

// waitForReversal polls while another approval holds the reversal in flight.
func (s *RefundService) waitForReversal(ctx context.Context, refundID string) (*domain.RefundRequest, error) {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	timeout := time.After(30 * time.Second)

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timeout:
			return nil, application.NewTimeoutError()
		case <-ticker.C:
			refund, err := s.refundRepo.FindByID(ctx, refundID)
			if err != nil {
				return nil, err
			}
			switch refund.Status {
			case domain.RefundExecuted:
				return refund, nil
			case domain.RefundApproved:
				continue
			default:
				// The in-flight attempt failed and was reverted.
				return nil, application.NewRequestProcessingError()
			}
		}
	}
}
