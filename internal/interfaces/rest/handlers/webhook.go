package handlers

import (
	"io"
	"net/http"

	"github.com/marketloop/order-engine/internal/interfaces/rest"
)

// HandleProcessorWebhook authenticates and records an inbound processor
// event. Persist-then-ack: the event is applied asynchronously by the webhook
// worker.
func (h *Handlers) HandleProcessorWebhook(w http.ResponseWriter, r *http.Request) {
	rawBody, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "unreadable body", http.StatusBadRequest)
		return
	}

	signature := r.Header.Get("X-Signature")
	if err := h.webhookService.Ingest(r.Context(), rawBody, signature); err != nil {
		rest.WriteError(w, err, h.logger)
		return
	}

	w.WriteHeader(http.StatusOK)
}
