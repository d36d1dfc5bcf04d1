package services_test

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/marketloop/order-engine/internal/application/services"
	"github.com/marketloop/order-engine/internal/application/services/testhelpers"
	"github.com/marketloop/order-engine/internal/domain"
	"github.com/marketloop/order-engine/internal/infrastructure/notify"
	"github.com/marketloop/order-engine/internal/infrastructure/persistence/postgres"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type QueryServiceTestSuite struct {
	suite.Suite
	testDB             *testhelpers.TestDatabase
	orderRepo          *postgres.OrderRepository
	listingRepo        *postgres.ListingRepository
	refundRepo         *postgres.RefundRepository
	reservationService *services.ReservationService
	service            *services.QueryService
}

func TestQueryServiceSuite(t *testing.T) {
	suite.Run(t, new(QueryServiceTestSuite))
}

func (suite *QueryServiceTestSuite) SetupSuite() {
	suite.testDB = testhelpers.SetupTestDatabase(suite.T())
	suite.orderRepo = postgres.NewOrderRepository(suite.testDB.DB.Pool)
	suite.listingRepo = postgres.NewListingRepository(suite.testDB.DB.Pool)
	suite.refundRepo = postgres.NewRefundRepository(suite.testDB.DB.Pool)
}

func (suite *QueryServiceTestSuite) TearDownSuite() {
	suite.testDB.Cleanup(suite.T())
}

func (suite *QueryServiceTestSuite) SetupTest() {
	suite.testDB.CleanTables(suite.T())

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
	suite.reservationService = services.NewReservationService(
		suite.orderRepo,
		suite.listingRepo,
		notify.NewLogSink(logger),
		suite.testDB.DB.Pool,
		logger,
	)
	suite.service = services.NewQueryService(suite.orderRepo, suite.refundRepo, suite.reservationService)
}

func (suite *QueryServiceTestSuite) TearDownTest() {
	suite.testDB.CleanTables(suite.T())
}

func (suite *QueryServiceTestSuite) Test_GetOrder_VisibleToBothSides() {
	ctx := context.Background()
	t := suite.T()
	order := testhelpers.CreateReservedOrder(t, ctx, suite.reservationService, suite.listingRepo)

	asBuyer, err := suite.service.GetOrder(ctx, order.ID, order.BuyerID)
	require.NoError(t, err)
	assert.Equal(t, order.ID, asBuyer.ID)

	asSeller, err := suite.service.GetOrder(ctx, order.ID, order.SellerID)
	require.NoError(t, err)
	assert.Equal(t, order.ID, asSeller.ID)

	_, err = suite.service.GetOrder(ctx, order.ID, "stranger")
	require.Error(t, err)
	assert.True(t, domain.IsErrorCode(err, domain.ErrCodeForbidden))
}

func (suite *QueryServiceTestSuite) Test_GetOrder_LapsedReservation_ReadsAsExpired() {
	ctx := context.Background()
	t := suite.T()
	order := testhelpers.CreateReservedOrder(t, ctx, suite.reservationService, suite.listingRepo)

	_, err := suite.testDB.DB.Pool.Exec(ctx,
		"UPDATE orders SET reservation_expires_at = $1 WHERE id = $2",
		time.Now().UTC().Add(-time.Minute),
		order.ID,
	)
	require.NoError(t, err)

	read, err := suite.service.GetOrder(ctx, order.ID, order.BuyerID)

	require.NoError(t, err)
	assert.Equal(t, domain.StatusExpired, read.Status)

	savedListing, err := suite.listingRepo.FindByID(ctx, order.ListingID)
	require.NoError(t, err)
	assert.Equal(t, domain.ListingActive, savedListing.Status)
}

func (suite *QueryServiceTestSuite) Test_ListOrders_FiltersByRole() {
	ctx := context.Background()
	t := suite.T()
	order := testhelpers.CreateReservedOrder(t, ctx, suite.reservationService, suite.listingRepo)

	asBuyer, err := suite.service.ListOrders(ctx, order.BuyerID, "buyer", 0, 0)
	require.NoError(t, err)
	require.Len(t, asBuyer, 1)
	assert.Equal(t, order.ID, asBuyer[0].ID)

	asSeller, err := suite.service.ListOrders(ctx, order.SellerID, "seller", 20, 0)
	require.NoError(t, err)
	require.Len(t, asSeller, 1)

	swapped, err := suite.service.ListOrders(ctx, order.BuyerID, "seller", 20, 0)
	require.NoError(t, err)
	assert.Empty(t, swapped)
}
