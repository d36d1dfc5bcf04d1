package rest

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/marketloop/order-engine/internal/domain"
)

type SuccessResponse struct {
	Success bool `json:"success"`
	Data    any  `json:"data"`
}

// WriteJSON writes a success envelope.
func WriteJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(SuccessResponse{Success: true, Data: data})
}

// OrderView is the API shape of an order.
type OrderView struct {
	ID          string `json:"id"`
	ListingID   string `json:"listing_id"`
	BuyerID     string `json:"buyer_id"`
	SellerID    string `json:"seller_id"`
	AmountCents int64  `json:"amount_cents"`
	Currency    string `json:"currency"`
	Status      string `json:"status"`

	SnapshotTitle      string  `json:"snapshot_title"`
	SnapshotPriceCents int64   `json:"snapshot_price_cents"`
	SnapshotImageURL   *string `json:"snapshot_image_url,omitempty"`

	TrackingCarrier *string `json:"tracking_carrier,omitempty"`
	TrackingNumber  *string `json:"tracking_number,omitempty"`

	DisputeID    *string `json:"dispute_id,omitempty"`
	DisputeState *string `json:"dispute_state,omitempty"`

	ReservedAt           time.Time  `json:"reserved_at"`
	ReservationExpiresAt *time.Time `json:"reservation_expires_at,omitempty"`
	PaidAt               *time.Time `json:"paid_at,omitempty"`
	ShippedAt            *time.Time `json:"shipped_at,omitempty"`
	CompletedAt          *time.Time `json:"completed_at,omitempty"`
	CancelledAt          *time.Time `json:"cancelled_at,omitempty"`
	RefundedAt           *time.Time `json:"refunded_at,omitempty"`
	CreatedAt            time.Time  `json:"created_at"`
}

func ToOrderView(o *domain.Order) OrderView {
	return OrderView{
		ID:                   o.ID,
		ListingID:            o.ListingID,
		BuyerID:              o.BuyerID,
		SellerID:             o.SellerID,
		AmountCents:          o.AmountCents,
		Currency:             o.Currency,
		Status:               string(o.Status),
		SnapshotTitle:        o.Snapshot.Title,
		SnapshotPriceCents:   o.Snapshot.PriceCents,
		SnapshotImageURL:     o.Snapshot.ImageURL,
		TrackingCarrier:      o.TrackingCarrier,
		TrackingNumber:       o.TrackingNumber,
		DisputeID:            o.DisputeID,
		DisputeState:         o.DisputeState,
		ReservedAt:           o.ReservedAt,
		ReservationExpiresAt: o.ReservationExpiresAt,
		PaidAt:               o.PaidAt,
		ShippedAt:            o.ShippedAt,
		CompletedAt:          o.CompletedAt,
		CancelledAt:          o.CancelledAt,
		RefundedAt:           o.RefundedAt,
		CreatedAt:            o.CreatedAt,
	}
}

func ToOrderViews(orders []*domain.Order) []OrderView {
	views := make([]OrderView, 0, len(orders))
	for _, o := range orders {
		views = append(views, ToOrderView(o))
	}
	return views
}

// RefundView is the API shape of a refund request.
type RefundView struct {
	ID                   string     `json:"id"`
	OrderID              string     `json:"order_id"`
	BuyerID              string     `json:"buyer_id"`
	SellerID             string     `json:"seller_id"`
	RequestedAmountCents int64      `json:"requested_amount_cents"`
	OriginalAmountCents  int64      `json:"original_amount_cents"`
	Currency             string     `json:"currency"`
	Reason               string     `json:"reason"`
	Status               string     `json:"status"`
	ReturnCarrier        *string    `json:"return_carrier,omitempty"`
	ReturnTrackingNumber *string    `json:"return_tracking_number,omitempty"`
	DecidedBy            *string    `json:"decided_by,omitempty"`
	DecidedAt            *time.Time `json:"decided_at,omitempty"`
	DenialReason         *string    `json:"denial_reason,omitempty"`
	CreatedAt            time.Time  `json:"created_at"`
}

func ToRefundView(r *domain.RefundRequest) RefundView {
	return RefundView{
		ID:                   r.ID,
		OrderID:              r.OrderID,
		BuyerID:              r.BuyerID,
		SellerID:             r.SellerID,
		RequestedAmountCents: r.RequestedAmountCents,
		OriginalAmountCents:  r.OriginalAmountCents,
		Currency:             r.Currency,
		Reason:               r.Reason,
		Status:               string(r.Status),
		ReturnCarrier:        r.ReturnCarrier,
		ReturnTrackingNumber: r.ReturnTrackingNumber,
		DecidedBy:            r.DecidedBy,
		DecidedAt:            r.DecidedAt,
		DenialReason:         r.DenialReason,
		CreatedAt:            r.CreatedAt,
	}
}

func ToRefundViews(refunds []*domain.RefundRequest) []RefundView {
	views := make([]RefundView, 0, len(refunds))
	for _, r := range refunds {
		views = append(views, ToRefundView(r))
	}
	return views
}
