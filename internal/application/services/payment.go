package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/marketloop/order-engine/internal/application"
	"github.com/marketloop/order-engine/internal/domain"
	"github.com/marketloop/order-engine/internal/infrastructure/persistence/postgres"
)

// PaymentService orchestrates tokenization and the single-step
// authorize-and-capture transfer against the processor.
type PaymentService struct {
	orderRepo       *postgres.OrderRepository
	listingRepo     *postgres.ListingRepository
	idempotencyRepo *postgres.IdempotencyRepository
	processor       application.ProcessorClient
	notifier        application.NotificationSink
	db              *pgxpool.Pool
	logger          *slog.Logger
}

func NewPaymentService(
	orderRepo *postgres.OrderRepository,
	listingRepo *postgres.ListingRepository,
	idempotencyRepo *postgres.IdempotencyRepository,
	processor application.ProcessorClient,
	notifier application.NotificationSink,
	db *pgxpool.Pool,
	logger *slog.Logger,
) *PaymentService {
	return &PaymentService{
		orderRepo:       orderRepo,
		listingRepo:     listingRepo,
		idempotencyRepo: idempotencyRepo,
		processor:       processor,
		notifier:        notifier,
		db:              db,
		logger:          logger,
	}
}

// TokenizationResult is what the client needs to collect a payment token.
type TokenizationResult struct {
	SessionID        string
	ProcessorBuyerID string
	AmountCents      int64
	Currency         string
	InstrumentTypes  []string
	ExpiresAt        time.Time
}

// Tokenize prepares an order for payment: it ensures the buyer has a processor
// identity and opens a tokenization session for the order amount. The order
// status does not change.
func (s *PaymentService) Tokenize(ctx context.Context, cmd TokenizeCommand) (*TokenizationResult, error) {
	order, err := s.orderRepo.FindByID(ctx, cmd.OrderID)
	if err != nil {
		return nil, err
	}
	if order.BuyerID != cmd.BuyerID {
		return nil, domain.NewForbiddenError("only the buyer can pay for this order")
	}

	now := time.Now().UTC()
	if order.ReservationExpired(now) {
		return nil, domain.NewReservationExpiredError(order.ID)
	}
	if order.Status != domain.StatusReserved {
		return nil, domain.NewInvalidTransitionError(string(order.Status), string(domain.StatusPending))
	}

	processorBuyerID := ""
	if order.ProcessorBuyerID != nil {
		processorBuyerID = *order.ProcessorBuyerID
	} else {
		// The caller's key wins; the buyer-derived fallback still makes
		// repeated tokenize calls reuse one identity.
		identityKey := cmd.IdempotencyKey
		if identityKey == "" {
			identityKey = "buyer-identity-" + order.BuyerID
		}
		identity, err := s.processor.CreateBuyerIdentity(ctx, application.BuyerIdentityRequest{
			BuyerID: order.BuyerID,
		}, identityKey)
		if err != nil {
			return nil, application.NewUpstreamUnavailableError(err)
		}
		processorBuyerID = identity.ProcessorBuyerID

		order.AttachProcessorBuyer(processorBuyerID)
		if err := s.orderRepo.Update(ctx, nil, order); err != nil {
			return nil, application.NewInternalError(err)
		}
	}

	session, err := s.processor.CreateTokenizationSession(ctx, application.TokenizationRequest{
		ProcessorBuyerID: processorBuyerID,
		AmountCents:      order.AmountCents,
		Currency:         order.Currency,
	})
	if err != nil {
		return nil, application.NewUpstreamUnavailableError(err)
	}

	s.logger.Info("tokenization session opened",
		"order_id", order.ID,
		"session_id", session.SessionID,
	)

	return &TokenizationResult{
		SessionID:        session.SessionID,
		ProcessorBuyerID: processorBuyerID,
		AmountCents:      session.AmountCents,
		Currency:         session.Currency,
		InstrumentTypes:  session.InstrumentTypes,
		ExpiresAt:        session.ExpiresAt,
	}, nil
}
