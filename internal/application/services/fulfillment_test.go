package services_test

import (
	"context"

	"github.com/marketloop/order-engine/internal/application/services"
	"github.com/marketloop/order-engine/internal/application/services/testhelpers"
	"github.com/marketloop/order-engine/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (suite *PaymentServiceTestSuite) Test_UploadTracking_ThenConfirmDelivery() {
	ctx := context.Background()
	t := suite.T()
	order := testhelpers.CreatePaidOrder(
		t, ctx,
		suite.reservationService,
		suite.service,
		suite.listingRepo,
		suite.mockProcessor,
	)

	shipped, err := suite.service.UploadTracking(ctx, services.UploadTrackingCommand{
		OrderID:  order.ID,
		SellerID: order.SellerID,
		Carrier:  "UPS",
		Number:   "1Z999",
	})

	require.NoError(t, err)
	assert.Equal(t, domain.StatusShipped, shipped.Status)
	assert.Equal(t, "UPS", *shipped.TrackingCarrier)

	completed, err := suite.service.ConfirmDelivery(ctx, order.ID, order.BuyerID)

	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, completed.Status)

	savedOrder, err := suite.orderRepo.FindByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, savedOrder.Status)
}

func (suite *PaymentServiceTestSuite) Test_UploadTracking_BuyerCannotShip() {
	ctx := context.Background()
	t := suite.T()
	order := testhelpers.CreatePaidOrder(
		t, ctx,
		suite.reservationService,
		suite.service,
		suite.listingRepo,
		suite.mockProcessor,
	)

	_, err := suite.service.UploadTracking(ctx, services.UploadTrackingCommand{
		OrderID:  order.ID,
		SellerID: order.BuyerID,
		Carrier:  "UPS",
		Number:   "1Z999",
	})

	require.Error(t, err)
	assert.True(t, domain.IsErrorCode(err, domain.ErrCodeForbidden))
}

func (suite *PaymentServiceTestSuite) Test_ConfirmDelivery_BeforeShipment_Rejected() {
	ctx := context.Background()
	t := suite.T()
	order := testhelpers.CreatePaidOrder(
		t, ctx,
		suite.reservationService,
		suite.service,
		suite.listingRepo,
		suite.mockProcessor,
	)

	_, err := suite.service.ConfirmDelivery(ctx, order.ID, order.BuyerID)

	require.Error(t, err)
	assert.True(t, domain.IsErrorCode(err, domain.ErrCodeInvalidTransition))
	assert.Contains(t, err.Error(), string(domain.StatusPaid))
}
