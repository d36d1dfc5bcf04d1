package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/marketloop/order-engine/internal/application"
	"github.com/marketloop/order-engine/internal/domain"
	"github.com/marketloop/order-engine/internal/infrastructure/persistence/postgres"
	"github.com/marketloop/order-engine/internal/infrastructure/processor"
)

// Pay executes the transfer for a reserved order. The idempotency key is
// mandatory: a retry with the same key and body replays the recorded outcome,
// a retry while the first attempt is still running waits for it, and a reused
// key with a different body is rejected.
func (s *PaymentService) Pay(ctx context.Context, cmd PayCommand) (*domain.Order, error) {
	if cmd.IdempotencyKey == "" {
		return nil, domain.NewMissingRequiredFieldError("idempotency key")
	}
	if cmd.Token == "" {
		return nil, domain.NewMissingRequiredFieldError("payment token")
	}
	requestHash := ComputeHash(cmd)

	existing, err := s.idempotencyRepo.FindByKey(ctx, cmd.IdempotencyKey)
	if err != nil {
		return nil, application.NewInternalError(err)
	}
	now := time.Now().UTC()

	if existing != nil {
		if existing.RequestHash != requestHash {
			return nil, application.NewIdempotencyMismatchError()
		}
		if existing.IsComplete() {
			return s.replayOutcome(ctx, existing)
		}
		if existing.LockedAt != nil && existing.LockedAt.After(staleLockCutoff(now)) {
			return s.waitForCompletion(ctx, cmd.IdempotencyKey, requestHash)
		}
		// The lock went stale: the attempt that held it died before storing an
		// outcome. Fall through to AcquireLock, which claims stale rows, and
		// re-drive the transfer. The processor dedupes on the key, so the
		// re-drive replays the original call if it actually landed.
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, application.NewInternalError(err)
	}
	defer tx.Rollback(ctx)

	order, err := s.orderRepo.FindByIDForUpdate(ctx, tx, cmd.OrderID)
	if err != nil {
		return nil, err
	}
	if order.BuyerID != cmd.BuyerID {
		return nil, domain.NewForbiddenError("only the buyer can pay for this order")
	}
	if order.ReservationExpired(now) {
		return nil, domain.NewReservationExpiredError(order.ID)
	}
	if order.ProcessorBuyerID == nil {
		return nil, domain.NewConflictError("order has no processor identity, tokenize first")
	}

	err = s.idempotencyRepo.AcquireLock(ctx, tx, cmd.IdempotencyKey, order.ID, requestHash, staleLockCutoff(now))
	if err != nil {
		tx.Rollback(ctx)
		switch {
		case errors.Is(err, postgres.ErrDuplicateIdempotencyKey):
			return nil, application.NewIdempotencyMismatchError()
		case errors.Is(err, postgres.ErrRequestInProgress):
			return s.waitForCompletion(ctx, cmd.IdempotencyKey, requestHash)
		default:
			return nil, application.NewInternalError(err)
		}
	}

	// Marking the order pending clears the reservation expiry, so the sweep
	// cannot release the listing while the transfer is in flight. On a stale
	// takeover the order is already pending under this key.
	switch {
	case order.Status == domain.StatusReserved:
		if err := order.MarkPending(cmd.IdempotencyKey); err != nil {
			return nil, err
		}
		if err := s.orderRepo.Update(ctx, tx, order); err != nil {
			return nil, application.NewInternalError(err)
		}
	case order.Status == domain.StatusPending && order.PaymentIdempotencyKey != nil && *order.PaymentIdempotencyKey == cmd.IdempotencyKey:
	default:
		return nil, domain.NewConflictError("order has a payment in flight under another idempotency key")
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, application.NewInternalError(err)
	}

	s.idempotencyRepo.UpdateRecoveryPoint(ctx, nil, cmd.IdempotencyKey, postgres.RecoveryPointCallPending)

	transferResp, err := s.processor.CreateTransfer(ctx, application.TransferRequest{
		ProcessorBuyerID: *order.ProcessorBuyerID,
		Token:            cmd.Token,
		AmountCents:      order.AmountCents,
		Currency:         order.Currency,
		Billing:          cmd.Billing,
		OrderID:          order.ID,
	}, cmd.IdempotencyKey)
	if err != nil {
		return s.handleTransferFailure(ctx, order, cmd.IdempotencyKey, err)
	}

	s.idempotencyRepo.UpdateRecoveryPoint(ctx, nil, cmd.IdempotencyKey, postgres.RecoveryPointCallFinished)

	tx, err = s.db.Begin(ctx)
	if err != nil {
		return order, application.NewInternalError(err)
	}
	defer tx.Rollback(ctx)

	// The webhook reconciler may have settled the order while the transfer
	// was in flight. The state change is skipped then, but the response is
	// still recorded so the key replays.
	order, err = s.orderRepo.FindByIDForUpdate(ctx, tx, order.ID)
	if err != nil {
		return nil, err
	}
	if order.Status == domain.StatusPending {
		if err := order.RecordPayment(transferResp.AuthorizationID, transferResp.TransferID, transferResp.InstrumentID, transferResp.CapturedAt); err != nil {
			return nil, err
		}
		if err := s.orderRepo.Update(ctx, tx, order); err != nil {
			return nil, application.NewInternalError(err)
		}
		if _, err := s.listingRepo.MarkSold(ctx, tx, order.ListingID, order.ID); err != nil {
			return nil, application.NewInternalError(err)
		}
	}

	responsePayload, _ := json.Marshal(transferResp)
	if err := s.idempotencyRepo.StoreResponse(ctx, tx, cmd.IdempotencyKey, responsePayload, http.StatusOK); err != nil {
		return nil, application.NewInternalError(err)
	}
	if err := s.idempotencyRepo.ReleaseLock(ctx, tx, cmd.IdempotencyKey); err != nil {
		return nil, application.NewInternalError(err)
	}
	if err := tx.Commit(ctx); err != nil {
		return order, application.NewInternalError(err)
	}

	s.logger.Info("order paid",
		"order_id", order.ID,
		"transfer_id", transferResp.TransferID,
		"amount_cents", order.AmountCents,
	)
	s.notifier.NotifyOrderEvent(ctx, order.SellerID, order.ID, "order.paid")

	return order, nil
}

// handleTransferFailure resolves a failed processor call. A decline reverts
// the order to reserved with a fresh hold and records the decline for replay.
// A transient failure leaves the order pending and the key locked: the stored
// payment_idempotency_key lets the transfer webhook finish the job, and a
// client retry after the lock goes stale takes over.
func (s *PaymentService) handleTransferFailure(ctx context.Context, order *domain.Order, idempotencyKey string, transferErr error) (*domain.Order, error) {
	var procErr *processor.ProcessorError
	if !errors.As(transferErr, &procErr) || !procErr.IsDecline() {
		s.logger.Warn("transfer failed, leaving payment in flight",
			"order_id", order.ID,
			"error", transferErr,
		)
		return order, application.NewUpstreamUnavailableError(transferErr)
	}

	declined := &application.PaymentDeclinedError{
		FailureCode: procErr.Code,
		AVSResult:   procErr.AVSResult,
		CVVResult:   procErr.CVVResult,
		Message:     processor.DeclineMessage(procErr.Code),
	}

	now := time.Now().UTC()
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, application.NewInternalError(err)
	}
	defer tx.Rollback(ctx)

	if err := order.RevertToReserved(now.Add(domain.ReservationTTL)); err != nil {
		return nil, err
	}
	if err := s.orderRepo.Update(ctx, tx, order); err != nil {
		return nil, application.NewInternalError(err)
	}

	responsePayload, _ := json.Marshal(declined)
	if err := s.idempotencyRepo.StoreResponse(ctx, tx, idempotencyKey, responsePayload, http.StatusPaymentRequired); err != nil {
		return nil, application.NewInternalError(err)
	}
	if err := s.idempotencyRepo.ReleaseLock(ctx, tx, idempotencyKey); err != nil {
		return nil, application.NewInternalError(err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, application.NewInternalError(err)
	}

	s.logger.Info("payment declined",
		"order_id", order.ID,
		"failure_code", declined.FailureCode,
	)

	return order, declined
}

// replayOutcome reproduces the recorded result of a completed keyed request.
func (s *PaymentService) replayOutcome(ctx context.Context, key *postgres.IdempotencyKey) (*domain.Order, error) {
	order, err := s.orderRepo.FindByID(ctx, key.OrderID)
	if err != nil {
		return nil, err
	}

	if key.StatusCode != nil && *key.StatusCode == http.StatusPaymentRequired {
		var declined application.PaymentDeclinedError
		if err := json.Unmarshal(key.ResponsePayload, &declined); err != nil {
			return nil, application.NewInternalError(err)
		}
		return order, &declined
	}
	return order, nil
}

func (s *PaymentService) waitForCompletion(ctx context.Context, idempotencyKey, requestHash string) (*domain.Order, error) {
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
			key, err := s.idempotencyRepo.FindByKey(ctx, idempotencyKey)
			if err != nil {
				return nil, application.NewInternalError(err)
			}
			if key == nil {
				return nil, application.NewRequestProcessingError()
			}

			if key.RequestHash != requestHash {
				return nil, application.NewIdempotencyMismatchError()
			}

			if key.IsComplete() {
				return s.replayOutcome(ctx, key)
			}

			if key.LockedAt != nil && time.Since(*key.LockedAt) > lockStaleAfter {
				return nil, application.NewRequestProcessingError()
			}
		}
	}
}
