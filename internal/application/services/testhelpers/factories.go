package testhelpers

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/marketloop/order-engine/internal/application"
	"github.com/marketloop/order-engine/internal/application/services"
	"github.com/marketloop/order-engine/internal/domain"
	"github.com/marketloop/order-engine/internal/infrastructure/persistence/postgres"
	"github.com/marketloop/order-engine/internal/mocks"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// CreateActiveListing inserts a purchasable listing owned by a fresh seller.
func CreateActiveListing(t *testing.T, ctx context.Context, listingRepo *postgres.ListingRepository) *domain.Listing {
	listing := &domain.Listing{
		ID:         "listing-" + uuid.New().String(),
		SellerID:   "seller-" + uuid.New().String(),
		Title:      "Vintage camera",
		PriceCents: 12500,
		Currency:   "USD",
		Status:     domain.ListingActive,
		CreatedAt:  time.Now().UTC(),
	}
	require.NoError(t, listingRepo.Create(ctx, listing))
	return listing
}

// CreateReservedOrder reserves a fresh listing for a fresh buyer.
func CreateReservedOrder(
	t *testing.T,
	ctx context.Context,
	reservationService *services.ReservationService,
	listingRepo *postgres.ListingRepository,
) *domain.Order {
	listing := CreateActiveListing(t, ctx, listingRepo)

	order, err := reservationService.Reserve(ctx, services.ReserveCommand{
		ListingID: listing.ID,
		BuyerID:   "buyer-" + uuid.New().String(),
	})
	require.NoError(t, err)
	require.Equal(t, domain.StatusReserved, order.Status)
	return order
}

// CreatePaidOrder drives an order through tokenize and pay with a stubbed
// processor.
func CreatePaidOrder(
	t *testing.T,
	ctx context.Context,
	reservationService *services.ReservationService,
	paymentService *services.PaymentService,
	listingRepo *postgres.ListingRepository,
	mockProcessor *mocks.MockProcessorClient,
) *domain.Order {
	order := CreateReservedOrder(t, ctx, reservationService, listingRepo)

	mockProcessor.EXPECT().
		CreateBuyerIdentity(mock.Anything, mock.Anything, mock.Anything).
		Return(&application.BuyerIdentityResponse{
			ProcessorBuyerID: "pb-" + uuid.New().String(),
			CreatedAt:        time.Now().UTC(),
		}, nil).
		Once()
	mockProcessor.EXPECT().
		CreateTokenizationSession(mock.Anything, mock.Anything).
		Return(&application.TokenizationResponse{
			SessionID:       "sess-" + uuid.New().String(),
			AmountCents:     order.AmountCents,
			Currency:        order.Currency,
			InstrumentTypes: []string{"card"},
			ExpiresAt:       time.Now().UTC().Add(15 * time.Minute),
		}, nil).
		Once()
	mockProcessor.EXPECT().
		CreateTransfer(mock.Anything, mock.Anything, mock.Anything).
		Return(&application.TransferResponse{
			AuthorizationID: "auth-" + uuid.New().String(),
			TransferID:      "tr-" + uuid.New().String(),
			InstrumentID:    "ins-" + uuid.New().String(),
			AVSResult:       "Y",
			CVVResult:       "M",
			CapturedAt:      time.Now().UTC(),
		}, nil).
		Once()

	_, err := paymentService.Tokenize(ctx, services.TokenizeCommand{
		OrderID: order.ID,
		BuyerID: order.BuyerID,
	})
	require.NoError(t, err)

	paid, err := paymentService.Pay(ctx, services.PayCommand{
		OrderID:        order.ID,
		BuyerID:        order.BuyerID,
		Token:          "tok-" + uuid.New().String(),
		Billing:        application.BillingDetails{Name: "Jordan Buyer"},
		IdempotencyKey: "idem-" + uuid.New().String(),
	})
	require.NoError(t, err)
	require.Equal(t, domain.StatusPaid, paid.Status)
	return paid
}

// CreateRefundReadyRequest opens a refund request and walks it to
// return_received so an approval can execute immediately.
func CreateRefundReadyRequest(
	t *testing.T,
	ctx context.Context,
	refundService *services.RefundService,
	order *domain.Order,
) *domain.RefundRequest {
	refund, err := refundService.Request(ctx, services.RequestRefundCommand{
		OrderID: order.ID,
		BuyerID: order.BuyerID,
		Reason:  "item arrived damaged beyond use",
	})
	require.NoError(t, err)

	refund, err = refundService.SubmitReturn(ctx, services.SubmitReturnCommand{
		RefundID:       refund.ID,
		BuyerID:        order.BuyerID,
		Carrier:        "UPS",
		TrackingNumber: "1Z999",
	})
	require.NoError(t, err)

	refund, err = refundService.ConfirmReturn(ctx, refund.ID, order.SellerID)
	require.NoError(t, err)
	require.Equal(t, domain.RefundReturnReceived, refund.Status)
	return refund
}
