package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/marketloop/order-engine/internal/application"
	"github.com/marketloop/order-engine/internal/application/services"
	"github.com/marketloop/order-engine/internal/interfaces/rest"
	"github.com/marketloop/order-engine/internal/interfaces/rest/middleware"
)

type reserveRequest struct {
	ListingID string `json:"listing_id"`
}

func (h *Handlers) ReserveListing(w http.ResponseWriter, r *http.Request) {
	var req reserveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		rest.WriteError(w, application.NewInvalidInputError(err), h.logger)
		return
	}

	order, err := h.reservationService.Reserve(r.Context(), services.ReserveCommand{
		ListingID: req.ListingID,
		BuyerID:   middleware.UserID(r.Context()),
	})
	if err != nil {
		rest.WriteError(w, err, h.logger)
		return
	}

	rest.WriteJSON(w, http.StatusCreated, rest.ToOrderView(order))
}

func (h *Handlers) GetOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.queryService.GetOrder(r.Context(), chi.URLParam(r, "orderID"), middleware.UserID(r.Context()))
	if err != nil {
		rest.WriteError(w, err, h.logger)
		return
	}
	rest.WriteJSON(w, http.StatusOK, rest.ToOrderView(order))
}

func (h *Handlers) ListOrders(w http.ResponseWriter, r *http.Request) {
	role := r.URL.Query().Get("role")
	if role != "seller" {
		role = "buyer"
	}
	limit := queryInt(r, "limit", 20)
	offset := queryInt(r, "offset", 0)

	orders, err := h.queryService.ListOrders(r.Context(), middleware.UserID(r.Context()), role, limit, offset)
	if err != nil {
		rest.WriteError(w, err, h.logger)
		return
	}
	rest.WriteJSON(w, http.StatusOK, rest.ToOrderViews(orders))
}

func (h *Handlers) CancelOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.reservationService.Cancel(r.Context(), chi.URLParam(r, "orderID"), middleware.UserID(r.Context()))
	if err != nil {
		rest.WriteError(w, err, h.logger)
		return
	}
	rest.WriteJSON(w, http.StatusOK, rest.ToOrderView(order))
}

func (h *Handlers) Tokenize(w http.ResponseWriter, r *http.Request) {
	result, err := h.paymentService.Tokenize(r.Context(), services.TokenizeCommand{
		OrderID:        chi.URLParam(r, "orderID"),
		BuyerID:        middleware.UserID(r.Context()),
		IdempotencyKey: r.Header.Get("Idempotency-Key"),
	})
	if err != nil {
		rest.WriteError(w, err, h.logger)
		return
	}
	rest.WriteJSON(w, http.StatusOK, result)
}

type payRequest struct {
	Token   string                     `json:"token"`
	Billing application.BillingDetails `json:"billing"`
}

func (h *Handlers) Pay(w http.ResponseWriter, r *http.Request) {
	idempotencyKey := r.Header.Get("Idempotency-Key")

	var req payRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		rest.WriteError(w, application.NewInvalidInputError(err), h.logger)
		return
	}

	order, err := h.paymentService.Pay(r.Context(), services.PayCommand{
		OrderID:        chi.URLParam(r, "orderID"),
		BuyerID:        middleware.UserID(r.Context()),
		Token:          req.Token,
		Billing:        req.Billing,
		IdempotencyKey: idempotencyKey,
	})
	if err != nil {
		rest.WriteError(w, err, h.logger)
		return
	}

	rest.WriteJSON(w, http.StatusOK, rest.ToOrderView(order))
}

type trackingRequest struct {
	Carrier string `json:"carrier"`
	Number  string `json:"number"`
}

func (h *Handlers) UploadTracking(w http.ResponseWriter, r *http.Request) {
	var req trackingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		rest.WriteError(w, application.NewInvalidInputError(err), h.logger)
		return
	}

	order, err := h.paymentService.UploadTracking(r.Context(), services.UploadTrackingCommand{
		OrderID:  chi.URLParam(r, "orderID"),
		SellerID: middleware.UserID(r.Context()),
		Carrier:  req.Carrier,
		Number:   req.Number,
	})
	if err != nil {
		rest.WriteError(w, err, h.logger)
		return
	}
	rest.WriteJSON(w, http.StatusOK, rest.ToOrderView(order))
}

func (h *Handlers) ConfirmDelivery(w http.ResponseWriter, r *http.Request) {
	order, err := h.paymentService.ConfirmDelivery(r.Context(), chi.URLParam(r, "orderID"), middleware.UserID(r.Context()))
	if err != nil {
		rest.WriteError(w, err, h.logger)
		return
	}
	rest.WriteJSON(w, http.StatusOK, rest.ToOrderView(order))
}

func queryInt(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}
