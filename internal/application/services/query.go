package services

import (
	"context"

	"github.com/marketloop/order-engine/internal/domain"
	"github.com/marketloop/order-engine/internal/infrastructure/persistence/postgres"
)

// QueryService serves read paths. Reservation expiry is applied lazily on
// reads so a lapsed hold never masquerades as reserved.
type QueryService struct {
	orderRepo    *postgres.OrderRepository
	refundRepo   *postgres.RefundRepository
	reservations *ReservationService
}

func NewQueryService(
	orderRepo *postgres.OrderRepository,
	refundRepo *postgres.RefundRepository,
	reservations *ReservationService,
) *QueryService {
	return &QueryService{
		orderRepo:    orderRepo,
		refundRepo:   refundRepo,
		reservations: reservations,
	}
}

// GetOrder retrieves an order visible to one of its participants.
func (s *QueryService) GetOrder(ctx context.Context, orderID, userID string) (*domain.Order, error) {
	order, err := s.orderRepo.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.BuyerID != userID && order.SellerID != userID {
		return nil, domain.NewForbiddenError("order is only visible to its buyer and seller")
	}
	return s.reservations.ExpireIfLapsed(ctx, order)
}

// ListOrders retrieves a user's orders in the given role ("buyer" or "seller").
func (s *QueryService) ListOrders(ctx context.Context, userID, role string, limit, offset int) ([]*domain.Order, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.orderRepo.FindByUser(ctx, userID, role, limit, offset)
}

// GetRefund retrieves a refund request visible to its buyer or seller.
func (s *QueryService) GetRefund(ctx context.Context, refundID, userID string) (*domain.RefundRequest, error) {
	refund, err := s.refundRepo.FindByID(ctx, refundID)
	if err != nil {
		return nil, err
	}
	if refund.BuyerID != userID && refund.SellerID != userID {
		return nil, domain.NewForbiddenError("refund request is only visible to its buyer and seller")
	}
	return refund, nil
}

// ListRefundsByOrder retrieves all refund requests against an order.
func (s *QueryService) ListRefundsByOrder(ctx context.Context, orderID, userID string) ([]*domain.RefundRequest, error) {
	order, err := s.orderRepo.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.BuyerID != userID && order.SellerID != userID {
		return nil, domain.NewForbiddenError("order is only visible to its buyer and seller")
	}
	return s.refundRepo.FindByOrderID(ctx, orderID)
}
