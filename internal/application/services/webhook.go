package services

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/marketloop/order-engine/internal/application"
	"github.com/marketloop/order-engine/internal/domain"
	"github.com/marketloop/order-engine/internal/infrastructure/persistence/postgres"
)

// WebhookIngestService authenticates inbound processor events and persists
// them to the ledger. Application of the event happens asynchronously in the
// webhook worker, so the processor always gets a fast ack.
type WebhookIngestService struct {
	webhookRepo *postgres.WebhookRepository
	secret      []byte
	logger      *slog.Logger
}

func NewWebhookIngestService(webhookRepo *postgres.WebhookRepository, secret string, logger *slog.Logger) *WebhookIngestService {
	return &WebhookIngestService{
		webhookRepo: webhookRepo,
		secret:      []byte(secret),
		logger:      logger,
	}
}

// VerifySignature checks the HMAC-SHA256 hex signature over the raw body.
func (s *WebhookIngestService) VerifySignature(rawBody []byte, signature string) bool {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write(rawBody)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

// Ingest validates and records one delivery. An empty body is the processor's
// liveness ping and is acked without effect, as is a redelivered event already
// in the ledger.
func (s *WebhookIngestService) Ingest(ctx context.Context, rawBody []byte, signature string) error {
	if !s.VerifySignature(rawBody, signature) {
		return application.NewUnauthenticatedError()
	}

	if len(rawBody) == 0 {
		return nil
	}

	var envelope domain.EventEnvelope
	if err := json.Unmarshal(rawBody, &envelope); err != nil {
		return application.NewInvalidInputError(err)
	}
	if err := envelope.Validate(); err != nil {
		return err
	}

	inserted, err := s.webhookRepo.InsertPending(ctx, &domain.WebhookEvent{
		EventID:    envelope.ID,
		Entity:     envelope.Entity,
		Type:       envelope.Type,
		Payload:    envelope.Data,
		Status:     domain.WebhookPending,
		ReceivedAt: time.Now().UTC(),
	})
	if err != nil {
		return application.NewInternalError(err)
	}

	if !inserted {
		s.logger.Debug("webhook redelivery ignored", "event_id", envelope.ID)
		return nil
	}

	s.logger.Info("webhook event recorded",
		"event_id", envelope.ID,
		"entity", envelope.Entity,
		"type", envelope.Type,
	)
	return nil
}
