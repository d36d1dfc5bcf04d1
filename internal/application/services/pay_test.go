package services_test

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/marketloop/order-engine/internal/application"
	"github.com/marketloop/order-engine/internal/application/services"
	"github.com/marketloop/order-engine/internal/application/services/testhelpers"
	"github.com/marketloop/order-engine/internal/domain"
	"github.com/marketloop/order-engine/internal/infrastructure/notify"
	"github.com/marketloop/order-engine/internal/infrastructure/persistence/postgres"
	"github.com/marketloop/order-engine/internal/infrastructure/processor"
	"github.com/marketloop/order-engine/internal/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type PaymentServiceTestSuite struct {
	suite.Suite
	testDB             *testhelpers.TestDatabase
	orderRepo          *postgres.OrderRepository
	listingRepo        *postgres.ListingRepository
	idempotencyRepo    *postgres.IdempotencyRepository
	mockProcessor      *mocks.MockProcessorClient
	reservationService *services.ReservationService
	service            *services.PaymentService
}

func TestPaymentServiceSuite(t *testing.T) {
	suite.Run(t, new(PaymentServiceTestSuite))
}

func (suite *PaymentServiceTestSuite) SetupSuite() {
	suite.testDB = testhelpers.SetupTestDatabase(suite.T())
	suite.orderRepo = postgres.NewOrderRepository(suite.testDB.DB.Pool)
	suite.listingRepo = postgres.NewListingRepository(suite.testDB.DB.Pool)
	suite.idempotencyRepo = postgres.NewIdempotencyRepository(suite.testDB.DB.Pool)
}

func (suite *PaymentServiceTestSuite) TearDownSuite() {
	suite.testDB.Cleanup(suite.T())
}

func (suite *PaymentServiceTestSuite) SetupTest() {
	suite.testDB.CleanTables(suite.T())

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
	notifier := notify.NewLogSink(logger)

	suite.mockProcessor = mocks.NewMockProcessorClient(suite.T())
	suite.reservationService = services.NewReservationService(
		suite.orderRepo,
		suite.listingRepo,
		notifier,
		suite.testDB.DB.Pool,
		logger,
	)
	suite.service = services.NewPaymentService(
		suite.orderRepo,
		suite.listingRepo,
		suite.idempotencyRepo,
		suite.mockProcessor,
		notifier,
		suite.testDB.DB.Pool,
		logger,
	)
}

func (suite *PaymentServiceTestSuite) TearDownTest() {
	suite.testDB.CleanTables(suite.T())
}

// tokenizedOrder reserves a fresh listing and walks it through tokenization.
func (suite *PaymentServiceTestSuite) tokenizedOrder(ctx context.Context) *domain.Order {
	t := suite.T()
	order := testhelpers.CreateReservedOrder(t, ctx, suite.reservationService, suite.listingRepo)

	suite.mockProcessor.EXPECT().
		CreateBuyerIdentity(mock.Anything, mock.Anything, "buyer-identity-"+order.BuyerID).
		Return(&application.BuyerIdentityResponse{
			ProcessorBuyerID: "pb-" + uuid.New().String(),
			CreatedAt:        time.Now().UTC(),
		}, nil).
		Once()
	suite.mockProcessor.EXPECT().
		CreateTokenizationSession(mock.Anything, mock.Anything).
		Return(&application.TokenizationResponse{
			SessionID:       "sess-" + uuid.New().String(),
			AmountCents:     order.AmountCents,
			Currency:        order.Currency,
			InstrumentTypes: []string{"card"},
			ExpiresAt:       time.Now().UTC().Add(15 * time.Minute),
		}, nil).
		Once()

	_, err := suite.service.Tokenize(ctx, services.TokenizeCommand{
		OrderID: order.ID,
		BuyerID: order.BuyerID,
	})
	require.NoError(t, err)

	refreshed, err := suite.orderRepo.FindByID(ctx, order.ID)
	require.NoError(t, err)
	return refreshed
}

func payCommand(order *domain.Order) services.PayCommand {
	return services.PayCommand{
		OrderID:        order.ID,
		BuyerID:        order.BuyerID,
		Token:          "tok-" + uuid.New().String(),
		Billing:        application.BillingDetails{Name: "Jordan Buyer"},
		IdempotencyKey: "idem-" + uuid.New().String(),
	}
}

func (suite *PaymentServiceTestSuite) Test_Pay_Success() {
	ctx := context.Background()
	t := suite.T()
	order := suite.tokenizedOrder(ctx)
	cmd := payCommand(order)

	suite.mockProcessor.EXPECT().
		CreateTransfer(mock.Anything, mock.Anything, cmd.IdempotencyKey).
		Return(&application.TransferResponse{
			AuthorizationID: "auth-1",
			TransferID:      "tr-1",
			InstrumentID:    "ins-1",
			CapturedAt:      time.Now().UTC(),
		}, nil).
		Once()

	paid, err := suite.service.Pay(ctx, cmd)

	require.NoError(t, err)
	assert.Equal(t, domain.StatusPaid, paid.Status)
	assert.Equal(t, "tr-1", *paid.ProcessorTransferID)

	savedListing, err := suite.listingRepo.FindByID(ctx, order.ListingID)
	require.NoError(t, err)
	assert.Equal(t, domain.ListingSold, savedListing.Status)

	key, err := suite.idempotencyRepo.FindByKey(ctx, cmd.IdempotencyKey)
	require.NoError(t, err)
	require.NotNil(t, key)
	assert.True(t, key.IsComplete())
	assert.Nil(t, key.LockedAt)
}

func (suite *PaymentServiceTestSuite) Test_Pay_SameKeyReplays_WithoutSecondTransfer() {
	ctx := context.Background()
	t := suite.T()
	order := suite.tokenizedOrder(ctx)
	cmd := payCommand(order)

	suite.mockProcessor.EXPECT().
		CreateTransfer(mock.Anything, mock.Anything, cmd.IdempotencyKey).
		Return(&application.TransferResponse{
			AuthorizationID: "auth-1",
			TransferID:      "tr-1",
			InstrumentID:    "ins-1",
			CapturedAt:      time.Now().UTC(),
		}, nil).
		Once()

	first, err := suite.service.Pay(ctx, cmd)
	require.NoError(t, err)

	second, err := suite.service.Pay(ctx, cmd)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, domain.StatusPaid, second.Status)
}

func (suite *PaymentServiceTestSuite) Test_Pay_SameKeyDifferentBody_Mismatch() {
	ctx := context.Background()
	t := suite.T()
	order := suite.tokenizedOrder(ctx)
	cmd := payCommand(order)

	suite.mockProcessor.EXPECT().
		CreateTransfer(mock.Anything, mock.Anything, cmd.IdempotencyKey).
		Return(&application.TransferResponse{
			AuthorizationID: "auth-1",
			TransferID:      "tr-1",
			InstrumentID:    "ins-1",
			CapturedAt:      time.Now().UTC(),
		}, nil).
		Once()

	_, err := suite.service.Pay(ctx, cmd)
	require.NoError(t, err)

	retry := cmd
	retry.Token = "tok-different"

	_, err = suite.service.Pay(ctx, retry)

	require.Error(t, err)
	svcErr, ok := application.IsServiceError(err)
	require.True(t, ok)
	assert.Equal(t, application.ErrCodeIdempotencyMismatch, svcErr.Code)
}

func (suite *PaymentServiceTestSuite) Test_Pay_Declined_RevertsToReservedAndReplays() {
	ctx := context.Background()
	t := suite.T()
	order := suite.tokenizedOrder(ctx)
	cmd := payCommand(order)

	suite.mockProcessor.EXPECT().
		CreateTransfer(mock.Anything, mock.Anything, cmd.IdempotencyKey).
		Return(nil, &processor.ProcessorError{
			Code:       "INSUFFICIENT_FUNDS",
			Message:    "card declined",
			StatusCode: 402,
			AVSResult:  "Y",
			CVVResult:  "M",
		}).
		Once()

	declined, err := suite.service.Pay(ctx, cmd)

	require.Error(t, err)
	declinedErr, ok := application.IsPaymentDeclined(err)
	require.True(t, ok)
	assert.Equal(t, "INSUFFICIENT_FUNDS", declinedErr.FailureCode)
	require.NotNil(t, declined)
	assert.Equal(t, domain.StatusReserved, declined.Status)
	assert.NotNil(t, declined.ReservationExpiresAt)

	savedListing, err := suite.listingRepo.FindByID(ctx, order.ListingID)
	require.NoError(t, err)
	assert.Equal(t, domain.ListingReserved, savedListing.Status)

	// Same request replays the recorded decline without a second transfer.
	_, err = suite.service.Pay(ctx, cmd)

	require.Error(t, err)
	replayed, ok := application.IsPaymentDeclined(err)
	require.True(t, ok)
	assert.Equal(t, "INSUFFICIENT_FUNDS", replayed.FailureCode)
}

func (suite *PaymentServiceTestSuite) Test_Pay_TransientFailure_LeavesPaymentInFlight() {
	ctx := context.Background()
	t := suite.T()
	order := suite.tokenizedOrder(ctx)
	cmd := payCommand(order)

	suite.mockProcessor.EXPECT().
		CreateTransfer(mock.Anything, mock.Anything, cmd.IdempotencyKey).
		Return(nil, &processor.ProcessorError{
			Code:       "INTERNAL",
			Message:    "processor internal error",
			StatusCode: 500,
		}).
		Once()

	_, err := suite.service.Pay(ctx, cmd)

	require.Error(t, err)
	svcErr, ok := application.IsServiceError(err)
	require.True(t, ok)
	assert.Equal(t, application.ErrCodeUpstreamUnavailable, svcErr.Code)

	savedOrder, err := suite.orderRepo.FindByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, savedOrder.Status)
	assert.Nil(t, savedOrder.ProcessorTransferID)

	// The key stays locked so the webhook or a stale-lock takeover can finish.
	key, err := suite.idempotencyRepo.FindByKey(ctx, cmd.IdempotencyKey)
	require.NoError(t, err)
	require.NotNil(t, key)
	assert.False(t, key.IsComplete())
	assert.NotNil(t, key.LockedAt)
}

func (suite *PaymentServiceTestSuite) Test_Pay_StaleLock_RetryTakesOverAndCompletes() {
	ctx := context.Background()
	t := suite.T()
	order := suite.tokenizedOrder(ctx)
	cmd := payCommand(order)

	suite.mockProcessor.EXPECT().
		CreateTransfer(mock.Anything, mock.Anything, cmd.IdempotencyKey).
		Return(nil, &processor.ProcessorError{
			Code:       "INTERNAL",
			Message:    "processor internal error",
			StatusCode: 500,
		}).
		Once()

	_, err := suite.service.Pay(ctx, cmd)
	require.Error(t, err)

	// The first attempt died without an outcome and its lock has gone stale.
	_, err = suite.testDB.DB.Pool.Exec(ctx,
		"UPDATE idempotency_keys SET locked_at = NOW() - INTERVAL '10 minutes' WHERE key = $1",
		cmd.IdempotencyKey,
	)
	require.NoError(t, err)

	// The retry claims the key and re-drives the transfer under it.
	suite.mockProcessor.EXPECT().
		CreateTransfer(mock.Anything, mock.Anything, cmd.IdempotencyKey).
		Return(&application.TransferResponse{
			AuthorizationID: "auth-1",
			TransferID:      "tr-1",
			InstrumentID:    "ins-1",
			CapturedAt:      time.Now().UTC(),
		}, nil).
		Once()

	paid, err := suite.service.Pay(ctx, cmd)

	require.NoError(t, err)
	assert.Equal(t, domain.StatusPaid, paid.Status)
	assert.Equal(t, "tr-1", *paid.ProcessorTransferID)

	savedListing, err := suite.listingRepo.FindByID(ctx, order.ListingID)
	require.NoError(t, err)
	assert.Equal(t, domain.ListingSold, savedListing.Status)

	key, err := suite.idempotencyRepo.FindByKey(ctx, cmd.IdempotencyKey)
	require.NoError(t, err)
	require.NotNil(t, key)
	assert.True(t, key.IsComplete())
	assert.Nil(t, key.LockedAt)
}

func (suite *PaymentServiceTestSuite) Test_Pay_WithoutTokenize_Conflicts() {
	ctx := context.Background()
	t := suite.T()
	order := testhelpers.CreateReservedOrder(t, ctx, suite.reservationService, suite.listingRepo)

	_, err := suite.service.Pay(ctx, payCommand(order))

	require.Error(t, err)
	assert.True(t, domain.IsErrorCode(err, domain.ErrCodeConflict))
}

func (suite *PaymentServiceTestSuite) Test_Pay_NotTheBuyer_Forbidden() {
	ctx := context.Background()
	t := suite.T()
	order := suite.tokenizedOrder(ctx)

	cmd := payCommand(order)
	cmd.BuyerID = "someone-else"

	_, err := suite.service.Pay(ctx, cmd)

	require.Error(t, err)
	assert.True(t, domain.IsErrorCode(err, domain.ErrCodeForbidden))
}

func (suite *PaymentServiceTestSuite) Test_Pay_MissingIdempotencyKey_Rejected() {
	ctx := context.Background()
	t := suite.T()
	order := suite.tokenizedOrder(ctx)

	cmd := payCommand(order)
	cmd.IdempotencyKey = ""

	_, err := suite.service.Pay(ctx, cmd)

	require.Error(t, err)
	assert.True(t, domain.IsErrorCode(err, domain.ErrCodeMissingRequiredField))
}

func (suite *PaymentServiceTestSuite) Test_Tokenize_ReusesProcessorIdentity() {
	ctx := context.Background()
	t := suite.T()
	order := suite.tokenizedOrder(ctx)
	require.NotNil(t, order.ProcessorBuyerID)

	// Second tokenize opens a new session but never re-registers the buyer.
	suite.mockProcessor.EXPECT().
		CreateTokenizationSession(mock.Anything, mock.Anything).
		Return(&application.TokenizationResponse{
			SessionID:   "sess-2",
			AmountCents: order.AmountCents,
			Currency:    order.Currency,
			ExpiresAt:   time.Now().UTC().Add(15 * time.Minute),
		}, nil).
		Once()

	result, err := suite.service.Tokenize(ctx, services.TokenizeCommand{
		OrderID: order.ID,
		BuyerID: order.BuyerID,
	})

	require.NoError(t, err)
	assert.Equal(t, *order.ProcessorBuyerID, result.ProcessorBuyerID)
}

func (suite *PaymentServiceTestSuite) Test_Tokenize_ForwardsCallerIdempotencyKey() {
	ctx := context.Background()
	t := suite.T()
	order := testhelpers.CreateReservedOrder(t, ctx, suite.reservationService, suite.listingRepo)

	suite.mockProcessor.EXPECT().
		CreateBuyerIdentity(mock.Anything, mock.Anything, "tok-attempt-1").
		Return(&application.BuyerIdentityResponse{
			ProcessorBuyerID: "pb-1",
			CreatedAt:        time.Now().UTC(),
		}, nil).
		Once()
	suite.mockProcessor.EXPECT().
		CreateTokenizationSession(mock.Anything, mock.Anything).
		Return(&application.TokenizationResponse{
			SessionID:   "sess-1",
			AmountCents: order.AmountCents,
			Currency:    order.Currency,
			ExpiresAt:   time.Now().UTC().Add(15 * time.Minute),
		}, nil).
		Once()

	result, err := suite.service.Tokenize(ctx, services.TokenizeCommand{
		OrderID:        order.ID,
		BuyerID:        order.BuyerID,
		IdempotencyKey: "tok-attempt-1",
	})

	require.NoError(t, err)
	assert.Equal(t, "pb-1", result.ProcessorBuyerID)
}

func (suite *PaymentServiceTestSuite) Test_Tokenize_ExpiredReservation_Rejected() {
	ctx := context.Background()
	t := suite.T()
	order := testhelpers.CreateReservedOrder(t, ctx, suite.reservationService, suite.listingRepo)

	_, err := suite.testDB.DB.Pool.Exec(ctx,
		"UPDATE orders SET reservation_expires_at = $1 WHERE id = $2",
		time.Now().UTC().Add(-time.Minute),
		order.ID,
	)
	require.NoError(t, err)

	_, err = suite.service.Tokenize(ctx, services.TokenizeCommand{
		OrderID: order.ID,
		BuyerID: order.BuyerID,
	})

	require.Error(t, err)
	assert.True(t, domain.IsErrorCode(err, domain.ErrCodeReservationExpired))
}
