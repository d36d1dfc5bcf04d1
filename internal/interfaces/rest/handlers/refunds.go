package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/marketloop/order-engine/internal/application"
	"github.com/marketloop/order-engine/internal/application/services"
	"github.com/marketloop/order-engine/internal/interfaces/rest"
	"github.com/marketloop/order-engine/internal/interfaces/rest/middleware"
)

type refundRequestBody struct {
	Reason      string `json:"reason"`
	AmountCents *int64 `json:"amount_cents,omitempty"`
}

func (h *Handlers) RequestRefund(w http.ResponseWriter, r *http.Request) {
	var req refundRequestBody
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		rest.WriteError(w, application.NewInvalidInputError(err), h.logger)
		return
	}

	refund, err := h.refundService.Request(r.Context(), services.RequestRefundCommand{
		OrderID:     chi.URLParam(r, "orderID"),
		BuyerID:     middleware.UserID(r.Context()),
		Reason:      req.Reason,
		AmountCents: req.AmountCents,
	})
	if err != nil {
		rest.WriteError(w, err, h.logger)
		return
	}

	rest.WriteJSON(w, http.StatusCreated, rest.ToRefundView(refund))
}

func (h *Handlers) GetRefund(w http.ResponseWriter, r *http.Request) {
	refund, err := h.queryService.GetRefund(r.Context(), chi.URLParam(r, "refundID"), middleware.UserID(r.Context()))
	if err != nil {
		rest.WriteError(w, err, h.logger)
		return
	}
	rest.WriteJSON(w, http.StatusOK, rest.ToRefundView(refund))
}

func (h *Handlers) ListRefundsByOrder(w http.ResponseWriter, r *http.Request) {
	refunds, err := h.queryService.ListRefundsByOrder(r.Context(), chi.URLParam(r, "orderID"), middleware.UserID(r.Context()))
	if err != nil {
		rest.WriteError(w, err, h.logger)
		return
	}
	rest.WriteJSON(w, http.StatusOK, rest.ToRefundViews(refunds))
}

type returnRequestBody struct {
	Carrier        string `json:"carrier"`
	TrackingNumber string `json:"tracking_number"`
}

func (h *Handlers) SubmitReturn(w http.ResponseWriter, r *http.Request) {
	var req returnRequestBody
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		rest.WriteError(w, application.NewInvalidInputError(err), h.logger)
		return
	}

	refund, err := h.refundService.SubmitReturn(r.Context(), services.SubmitReturnCommand{
		RefundID:       chi.URLParam(r, "refundID"),
		BuyerID:        middleware.UserID(r.Context()),
		Carrier:        req.Carrier,
		TrackingNumber: req.TrackingNumber,
	})
	if err != nil {
		rest.WriteError(w, err, h.logger)
		return
	}
	rest.WriteJSON(w, http.StatusOK, rest.ToRefundView(refund))
}

func (h *Handlers) ConfirmReturn(w http.ResponseWriter, r *http.Request) {
	refund, err := h.refundService.ConfirmReturn(r.Context(), chi.URLParam(r, "refundID"), middleware.UserID(r.Context()))
	if err != nil {
		rest.WriteError(w, err, h.logger)
		return
	}
	rest.WriteJSON(w, http.StatusOK, rest.ToRefundView(refund))
}

func (h *Handlers) ApproveRefund(w http.ResponseWriter, r *http.Request) {
	refund, err := h.refundService.Approve(r.Context(), services.DecideRefundCommand{
		RefundID: chi.URLParam(r, "refundID"),
		SellerID: middleware.UserID(r.Context()),
	})
	if err != nil {
		rest.WriteError(w, err, h.logger)
		return
	}
	rest.WriteJSON(w, http.StatusOK, rest.ToRefundView(refund))
}

type denyRequestBody struct {
	Reason string `json:"reason"`
}

func (h *Handlers) DenyRefund(w http.ResponseWriter, r *http.Request) {
	var req denyRequestBody
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		rest.WriteError(w, application.NewInvalidInputError(err), h.logger)
		return
	}

	refund, err := h.refundService.Deny(r.Context(), services.DecideRefundCommand{
		RefundID: chi.URLParam(r, "refundID"),
		SellerID: middleware.UserID(r.Context()),
		Reason:   req.Reason,
	})
	if err != nil {
		rest.WriteError(w, err, h.logger)
		return
	}
	rest.WriteJSON(w, http.StatusOK, rest.ToRefundView(refund))
}

func (h *Handlers) CancelRefund(w http.ResponseWriter, r *http.Request) {
	refund, err := h.refundService.Cancel(r.Context(), chi.URLParam(r, "refundID"), middleware.UserID(r.Context()))
	if err != nil {
		rest.WriteError(w, err, h.logger)
		return
	}
	rest.WriteJSON(w, http.StatusOK, rest.ToRefundView(refund))
}
