package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/marketloop/order-engine/internal/application/services"
	"github.com/marketloop/order-engine/internal/interfaces/rest/middleware"
)

type Handlers struct {
	reservationService *services.ReservationService
	paymentService     *services.PaymentService
	refundService      *services.RefundService
	queryService       *services.QueryService
	webhookService     *services.WebhookIngestService
	logger             *slog.Logger
}

func NewHandlers(
	reservationService *services.ReservationService,
	paymentService *services.PaymentService,
	refundService *services.RefundService,
	queryService *services.QueryService,
	webhookService *services.WebhookIngestService,
	logger *slog.Logger,
) *Handlers {
	return &Handlers{
		reservationService: reservationService,
		paymentService:     paymentService,
		refundService:      refundService,
		queryService:       queryService,
		webhookService:     webhookService,
		logger:             logger,
	}
}

// Router wires all routes. The webhook endpoint authenticates by signature,
// everything else by the upstream-resolved caller identity.
func (h *Handlers) Router(requestTimeout time.Duration) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recovery(h.logger))
	r.Use(middleware.RequestLogger(h.logger))
	r.Use(middleware.Timeout(requestTimeout))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	r.Post("/webhooks/processor", h.HandleProcessorWebhook)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Identity(h.logger))

		r.Route("/orders", func(r chi.Router) {
			r.Post("/", h.ReserveListing)
			r.Get("/", h.ListOrders)

			r.Route("/{orderID}", func(r chi.Router) {
				r.Get("/", h.GetOrder)
				r.Post("/cancel", h.CancelOrder)
				r.Post("/tokenize", h.Tokenize)
				r.Post("/pay", h.Pay)
				r.Post("/tracking", h.UploadTracking)
				r.Post("/delivery", h.ConfirmDelivery)
				r.Get("/refunds", h.ListRefundsByOrder)
				r.Post("/refunds", h.RequestRefund)
			})
		})

		r.Route("/refunds/{refundID}", func(r chi.Router) {
			r.Get("/", h.GetRefund)
			r.Post("/return", h.SubmitReturn)
			r.Post("/return/confirm", h.ConfirmReturn)
			r.Post("/approve", h.ApproveRefund)
			r.Post("/deny", h.DenyRefund)
			r.Post("/cancel", h.CancelRefund)
		})
	})

	return r
}
