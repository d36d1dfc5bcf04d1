package services

import (
	"context"
	"time"

	"github.com/marketloop/order-engine/internal/application"
	"github.com/marketloop/order-engine/internal/domain"
)

// UploadTracking moves a paid order to shipped. Seller only.
func (s *PaymentService) UploadTracking(ctx context.Context, cmd UploadTrackingCommand) (*domain.Order, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, application.NewInternalError(err)
	}
	defer tx.Rollback(ctx)

	order, err := s.orderRepo.FindByIDForUpdate(ctx, tx, cmd.OrderID)
	if err != nil {
		return nil, err
	}
	if order.SellerID != cmd.SellerID {
		return nil, domain.NewForbiddenError("only the seller can upload tracking")
	}

	if err := order.Ship(cmd.Carrier, cmd.Number, time.Now().UTC()); err != nil {
		return nil, err
	}
	if err := s.orderRepo.Update(ctx, tx, order); err != nil {
		return nil, application.NewInternalError(err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, application.NewInternalError(err)
	}

	s.logger.Info("order shipped",
		"order_id", order.ID,
		"carrier", cmd.Carrier,
		"tracking_number", cmd.Number,
	)
	s.notifier.NotifyOrderEvent(ctx, order.BuyerID, order.ID, "order.shipped")

	return order, nil
}

// ConfirmDelivery moves a shipped order to completed. Buyer only.
func (s *PaymentService) ConfirmDelivery(ctx context.Context, orderID, buyerID string) (*domain.Order, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, application.NewInternalError(err)
	}
	defer tx.Rollback(ctx)

	order, err := s.orderRepo.FindByIDForUpdate(ctx, tx, orderID)
	if err != nil {
		return nil, err
	}
	if order.BuyerID != buyerID {
		return nil, domain.NewForbiddenError("only the buyer can confirm delivery")
	}

	if err := order.Complete(time.Now().UTC()); err != nil {
		return nil, err
	}
	if err := s.orderRepo.Update(ctx, tx, order); err != nil {
		return nil, application.NewInternalError(err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, application.NewInternalError(err)
	}

	s.logger.Info("order completed", "order_id", order.ID)
	s.notifier.NotifyOrderEvent(ctx, order.SellerID, order.ID, "order.completed")

	return order, nil
}
