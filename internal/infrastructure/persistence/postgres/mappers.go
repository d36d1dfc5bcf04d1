package postgres

import (
	"github.com/marketloop/order-engine/internal/domain"
)

// toDomainOrder: maps db model to domain entity
func toDomainOrder(m OrderModel) *domain.Order {
	return &domain.Order{
		ID:          m.ID,
		ListingID:   m.ListingID,
		BuyerID:     m.BuyerID,
		SellerID:    m.SellerID,
		AmountCents: m.AmountCents,
		Currency:    m.Currency,
		Status:      domain.OrderStatus(m.Status),
		Snapshot: domain.ListingSnapshot{
			Title:      m.SnapshotTitle,
			PriceCents: m.SnapshotPriceCents,
			ImageURL:   m.SnapshotImageURL,
		},
		ProcessorBuyerID:      m.ProcessorBuyerID,
		ProcessorInstrumentID: m.ProcessorInstrumentID,
		ProcessorAuthID:       m.ProcessorAuthID,
		ProcessorTransferID:   m.ProcessorTransferID,
		DisputeID:             m.DisputeID,
		DisputeState:          m.DisputeState,
		DisputeReason:         m.DisputeReason,
		DisputeAmountCents:    m.DisputeAmountCents,
		TrackingCarrier:       m.TrackingCarrier,
		TrackingNumber:        m.TrackingNumber,
		PaymentIdempotencyKey: m.PaymentIdempotencyKey,
		ReservedAt:            m.ReservedAt,
		ReservationExpiresAt:  m.ReservationExpiresAt,
		PaidAt:                m.PaidAt,
		ShippedAt:             m.ShippedAt,
		CompletedAt:           m.CompletedAt,
		CancelledAt:           m.CancelledAt,
		RefundedAt:            m.RefundedAt,
		CreatedAt:             m.CreatedAt,
	}
}

// toOrderModel: maps domain entity to db model
func toOrderModel(o *domain.Order) *OrderModel {
	return &OrderModel{
		ID:                    o.ID,
		ListingID:             o.ListingID,
		BuyerID:               o.BuyerID,
		SellerID:              o.SellerID,
		AmountCents:           o.AmountCents,
		Currency:              o.Currency,
		Status:                string(o.Status),
		SnapshotTitle:         o.Snapshot.Title,
		SnapshotPriceCents:    o.Snapshot.PriceCents,
		SnapshotImageURL:      o.Snapshot.ImageURL,
		ProcessorBuyerID:      o.ProcessorBuyerID,
		ProcessorInstrumentID: o.ProcessorInstrumentID,
		ProcessorAuthID:       o.ProcessorAuthID,
		ProcessorTransferID:   o.ProcessorTransferID,
		DisputeID:             o.DisputeID,
		DisputeState:          o.DisputeState,
		DisputeReason:         o.DisputeReason,
		DisputeAmountCents:    o.DisputeAmountCents,
		TrackingCarrier:       o.TrackingCarrier,
		TrackingNumber:        o.TrackingNumber,
		PaymentIdempotencyKey: o.PaymentIdempotencyKey,
		ReservedAt:            o.ReservedAt,
		ReservationExpiresAt:  o.ReservationExpiresAt,
		PaidAt:                o.PaidAt,
		ShippedAt:             o.ShippedAt,
		CompletedAt:           o.CompletedAt,
		CancelledAt:           o.CancelledAt,
		RefundedAt:            o.RefundedAt,
		CreatedAt:             o.CreatedAt,
	}
}

func toDomainRefundRequest(m RefundRequestModel) *domain.RefundRequest {
	return &domain.RefundRequest{
		ID:                     m.ID,
		OrderID:                m.OrderID,
		BuyerID:                m.BuyerID,
		SellerID:               m.SellerID,
		RequestedAmountCents:   m.RequestedAmountCents,
		OriginalAmountCents:    m.OriginalAmountCents,
		Currency:               m.Currency,
		Reason:                 m.Reason,
		Status:                 domain.RefundStatus(m.Status),
		ReturnCarrier:          m.ReturnCarrier,
		ReturnTrackingNumber:   m.ReturnTrackingNumber,
		DecidedBy:              m.DecidedBy,
		DecidedAt:              m.DecidedAt,
		DenialReason:           m.DenialReason,
		ReversalIdempotencyKey: m.ReversalIdempotencyKey,
		ProcessorReversalID:    m.ProcessorReversalID,
		ProcessorReversalState: m.ProcessorReversalState,
		CreatedAt:              m.CreatedAt,
	}
}

func toRefundRequestModel(r *domain.RefundRequest) *RefundRequestModel {
	return &RefundRequestModel{
		ID:                     r.ID,
		OrderID:                r.OrderID,
		BuyerID:                r.BuyerID,
		SellerID:               r.SellerID,
		RequestedAmountCents:   r.RequestedAmountCents,
		OriginalAmountCents:    r.OriginalAmountCents,
		Currency:               r.Currency,
		Reason:                 r.Reason,
		Status:                 string(r.Status),
		ReturnCarrier:          r.ReturnCarrier,
		ReturnTrackingNumber:   r.ReturnTrackingNumber,
		DecidedBy:              r.DecidedBy,
		DecidedAt:              r.DecidedAt,
		DenialReason:           r.DenialReason,
		ReversalIdempotencyKey: r.ReversalIdempotencyKey,
		ProcessorReversalID:    r.ProcessorReversalID,
		ProcessorReversalState: r.ProcessorReversalState,
		CreatedAt:              r.CreatedAt,
	}
}

func toDomainWebhookEvent(m WebhookEventModel) *domain.WebhookEvent {
	return &domain.WebhookEvent{
		EventID:      m.EventID,
		Entity:       m.Entity,
		Type:         m.Type,
		Payload:      m.Payload,
		Status:       domain.WebhookStatus(m.Status),
		AttemptCount: m.AttemptCount,
		LastError:    m.LastError,
		ReceivedAt:   m.ReceivedAt,
		ProcessedAt:  m.ProcessedAt,
	}
}
