package services_test

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"testing"
	"time"

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

type RefundServiceTestSuite struct {
	suite.Suite
	testDB             *testhelpers.TestDatabase
	orderRepo          *postgres.OrderRepository
	listingRepo        *postgres.ListingRepository
	refundRepo         *postgres.RefundRepository
	idempotencyRepo    *postgres.IdempotencyRepository
	mockProcessor      *mocks.MockProcessorClient
	reservationService *services.ReservationService
	paymentService     *services.PaymentService
	service            *services.RefundService
}

func TestRefundServiceSuite(t *testing.T) {
	suite.Run(t, new(RefundServiceTestSuite))
}

func (suite *RefundServiceTestSuite) SetupSuite() {
	suite.testDB = testhelpers.SetupTestDatabase(suite.T())
	suite.orderRepo = postgres.NewOrderRepository(suite.testDB.DB.Pool)
	suite.listingRepo = postgres.NewListingRepository(suite.testDB.DB.Pool)
	suite.refundRepo = postgres.NewRefundRepository(suite.testDB.DB.Pool)
	suite.idempotencyRepo = postgres.NewIdempotencyRepository(suite.testDB.DB.Pool)
}

func (suite *RefundServiceTestSuite) TearDownSuite() {
	suite.testDB.Cleanup(suite.T())
}

func (suite *RefundServiceTestSuite) SetupTest() {
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
	suite.paymentService = services.NewPaymentService(
		suite.orderRepo,
		suite.listingRepo,
		suite.idempotencyRepo,
		suite.mockProcessor,
		notifier,
		suite.testDB.DB.Pool,
		logger,
	)
	suite.service = services.NewRefundService(
		suite.refundRepo,
		suite.orderRepo,
		suite.listingRepo,
		suite.mockProcessor,
		notifier,
		suite.testDB.DB.Pool,
		logger,
	)
}

func (suite *RefundServiceTestSuite) TearDownTest() {
	suite.testDB.CleanTables(suite.T())
}

func (suite *RefundServiceTestSuite) paidOrder(ctx context.Context) *domain.Order {
	return testhelpers.CreatePaidOrder(
		suite.T(), ctx,
		suite.reservationService,
		suite.paymentService,
		suite.listingRepo,
		suite.mockProcessor,
	)
}

func (suite *RefundServiceTestSuite) Test_FullRefund_ExecutesAndRelists() {
	ctx := context.Background()
	t := suite.T()
	order := suite.paidOrder(ctx)
	refund := testhelpers.CreateRefundReadyRequest(t, ctx, suite.service, order)

	suite.mockProcessor.EXPECT().
		CreateReversal(mock.Anything, mock.Anything, refund.ReversalIdempotencyKey).
		Return(&application.ReversalResponse{
			ReversalID: "rev-1",
			State:      "succeeded",
			ReversedAt: time.Now().UTC(),
		}, nil).
		Once()

	executed, err := suite.service.Approve(ctx, services.DecideRefundCommand{
		RefundID: refund.ID,
		SellerID: order.SellerID,
	})

	require.NoError(t, err)
	assert.Equal(t, domain.RefundExecuted, executed.Status)
	assert.Equal(t, "rev-1", *executed.ProcessorReversalID)

	savedOrder, err := suite.orderRepo.FindByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRefunded, savedOrder.Status)

	savedListing, err := suite.listingRepo.FindByID(ctx, order.ListingID)
	require.NoError(t, err)
	assert.Equal(t, domain.ListingActive, savedListing.Status)
	assert.Nil(t, savedListing.CurrentOrderID)
}

func (suite *RefundServiceTestSuite) Test_PartialRefund_LeavesOrderPaid() {
	ctx := context.Background()
	t := suite.T()
	order := suite.paidOrder(ctx)

	amount := order.AmountCents / 2
	refund, err := suite.service.Request(ctx, services.RequestRefundCommand{
		OrderID:     order.ID,
		BuyerID:     order.BuyerID,
		Reason:      "one of the two items was missing",
		AmountCents: &amount,
	})
	require.NoError(t, err)

	refund, err = suite.service.SubmitReturn(ctx, services.SubmitReturnCommand{
		RefundID:       refund.ID,
		BuyerID:        order.BuyerID,
		Carrier:        "UPS",
		TrackingNumber: "1Z999",
	})
	require.NoError(t, err)
	_, err = suite.service.ConfirmReturn(ctx, refund.ID, order.SellerID)
	require.NoError(t, err)

	suite.mockProcessor.EXPECT().
		CreateReversal(mock.Anything, application.ReversalRequest{
			TransferID:  *order.ProcessorTransferID,
			AmountCents: amount,
			Currency:    order.Currency,
		}, refund.ReversalIdempotencyKey).
		Return(&application.ReversalResponse{
			ReversalID: "rev-1",
			State:      "succeeded",
			ReversedAt: time.Now().UTC(),
		}, nil).
		Once()

	executed, err := suite.service.Approve(ctx, services.DecideRefundCommand{
		RefundID: refund.ID,
		SellerID: order.SellerID,
	})

	require.NoError(t, err)
	assert.Equal(t, domain.RefundExecuted, executed.Status)

	savedOrder, err := suite.orderRepo.FindByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPaid, savedOrder.Status)

	savedListing, err := suite.listingRepo.FindByID(ctx, order.ListingID)
	require.NoError(t, err)
	assert.Equal(t, domain.ListingSold, savedListing.Status)
}

func (suite *RefundServiceTestSuite) Test_Request_SecondOpenRequest_Conflicts() {
	ctx := context.Background()
	t := suite.T()
	order := suite.paidOrder(ctx)

	_, err := suite.service.Request(ctx, services.RequestRefundCommand{
		OrderID: order.ID,
		BuyerID: order.BuyerID,
		Reason:  "item arrived damaged beyond use",
	})
	require.NoError(t, err)

	_, err = suite.service.Request(ctx, services.RequestRefundCommand{
		OrderID: order.ID,
		BuyerID: order.BuyerID,
		Reason:  "item arrived damaged beyond use",
	})

	require.Error(t, err)
	assert.True(t, domain.IsErrorCode(err, domain.ErrCodeConflict))
}

func (suite *RefundServiceTestSuite) Test_Request_AfterExecutedRefund_Settled() {
	ctx := context.Background()
	t := suite.T()
	order := suite.paidOrder(ctx)
	refund := testhelpers.CreateRefundReadyRequest(t, ctx, suite.service, order)

	suite.mockProcessor.EXPECT().
		CreateReversal(mock.Anything, mock.Anything, refund.ReversalIdempotencyKey).
		Return(&application.ReversalResponse{
			ReversalID: "rev-1",
			State:      "succeeded",
			ReversedAt: time.Now().UTC(),
		}, nil).
		Once()

	_, err := suite.service.Approve(ctx, services.DecideRefundCommand{
		RefundID: refund.ID,
		SellerID: order.SellerID,
	})
	require.NoError(t, err)

	_, err = suite.service.Request(ctx, services.RequestRefundCommand{
		OrderID: order.ID,
		BuyerID: order.BuyerID,
		Reason:  "changed my mind about keeping it",
	})

	require.Error(t, err)
	assert.True(t, domain.IsErrorCode(err, domain.ErrCodeRefundSettled))
}

func (suite *RefundServiceTestSuite) Test_Approve_ReversalFails_ApprovalReverted() {
	ctx := context.Background()
	t := suite.T()
	order := suite.paidOrder(ctx)
	refund := testhelpers.CreateRefundReadyRequest(t, ctx, suite.service, order)

	suite.mockProcessor.EXPECT().
		CreateReversal(mock.Anything, mock.Anything, refund.ReversalIdempotencyKey).
		Return(nil, &processor.ProcessorError{
			Code:       "INTERNAL",
			Message:    "processor internal error",
			StatusCode: 500,
		}).
		Once()

	_, err := suite.service.Approve(ctx, services.DecideRefundCommand{
		RefundID: refund.ID,
		SellerID: order.SellerID,
	})

	require.Error(t, err)
	svcErr, ok := application.IsServiceError(err)
	require.True(t, ok)
	assert.Equal(t, application.ErrCodeUpstreamUnavailable, svcErr.Code)

	savedRefund, err := suite.refundRepo.FindByID(ctx, refund.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RefundReturnReceived, savedRefund.Status)
	assert.Nil(t, savedRefund.DecidedBy)

	// A second approval retries the reversal under the same fixed key.
	suite.mockProcessor.EXPECT().
		CreateReversal(mock.Anything, mock.Anything, refund.ReversalIdempotencyKey).
		Return(&application.ReversalResponse{
			ReversalID: "rev-1",
			State:      "succeeded",
			ReversedAt: time.Now().UTC(),
		}, nil).
		Once()

	executed, err := suite.service.Approve(ctx, services.DecideRefundCommand{
		RefundID: refund.ID,
		SellerID: order.SellerID,
	})

	require.NoError(t, err)
	assert.Equal(t, domain.RefundExecuted, executed.Status)
}

func (suite *RefundServiceTestSuite) Test_Approve_StaleApproval_RedrivesReversal() {
	ctx := context.Background()
	t := suite.T()
	order := suite.paidOrder(ctx)
	refund := testhelpers.CreateRefundReadyRequest(t, ctx, suite.service, order)

	// An approval whose process died before the reversal resolved.
	_, err := suite.testDB.DB.Pool.Exec(ctx,
		"UPDATE refund_requests SET status = 'approved', decided_by = $1, decided_at = NOW() - INTERVAL '10 minutes' WHERE id = $2",
		order.SellerID, refund.ID,
	)
	require.NoError(t, err)

	suite.mockProcessor.EXPECT().
		CreateReversal(mock.Anything, mock.Anything, refund.ReversalIdempotencyKey).
		Return(&application.ReversalResponse{
			ReversalID: "rev-1",
			State:      "succeeded",
			ReversedAt: time.Now().UTC(),
		}, nil).
		Once()

	executed, err := suite.service.Approve(ctx, services.DecideRefundCommand{
		RefundID: refund.ID,
		SellerID: order.SellerID,
	})

	require.NoError(t, err)
	assert.Equal(t, domain.RefundExecuted, executed.Status)
	assert.Equal(t, "rev-1", *executed.ProcessorReversalID)

	savedOrder, err := suite.orderRepo.FindByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRefunded, savedOrder.Status)
}

func (suite *RefundServiceTestSuite) Test_Approve_Concurrent_ExecutesReversalOnce() {
	ctx := context.Background()
	t := suite.T()
	order := suite.paidOrder(ctx)
	refund := testhelpers.CreateRefundReadyRequest(t, ctx, suite.service, order)

	suite.mockProcessor.EXPECT().
		CreateReversal(mock.Anything, mock.Anything, refund.ReversalIdempotencyKey).
		Return(&application.ReversalResponse{
			ReversalID: "rev-1",
			State:      "succeeded",
			ReversedAt: time.Now().UTC(),
		}, nil).
		Once().
		After(200 * time.Millisecond)

	results := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() {
			decided, err := suite.service.Approve(ctx, services.DecideRefundCommand{
				RefundID: refund.ID,
				SellerID: order.SellerID,
			})
			if err == nil && decided.Status != domain.RefundExecuted {
				err = fmt.Errorf("unexpected refund status %s", decided.Status)
			}
			results <- err
		}()
	}
	for i := 0; i < 2; i++ {
		require.NoError(t, <-results)
	}

	savedRefund, err := suite.refundRepo.FindByID(ctx, refund.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RefundExecuted, savedRefund.Status)
}

func (suite *RefundServiceTestSuite) Test_Approve_AlreadyExecuted_ReplaysSuccess() {
	ctx := context.Background()
	t := suite.T()
	order := suite.paidOrder(ctx)
	refund := testhelpers.CreateRefundReadyRequest(t, ctx, suite.service, order)

	suite.mockProcessor.EXPECT().
		CreateReversal(mock.Anything, mock.Anything, refund.ReversalIdempotencyKey).
		Return(&application.ReversalResponse{
			ReversalID: "rev-1",
			State:      "succeeded",
			ReversedAt: time.Now().UTC(),
		}, nil).
		Once()

	_, err := suite.service.Approve(ctx, services.DecideRefundCommand{
		RefundID: refund.ID,
		SellerID: order.SellerID,
	})
	require.NoError(t, err)

	replayed, err := suite.service.Approve(ctx, services.DecideRefundCommand{
		RefundID: refund.ID,
		SellerID: order.SellerID,
	})

	require.NoError(t, err)
	assert.Equal(t, domain.RefundExecuted, replayed.Status)
}

func (suite *RefundServiceTestSuite) Test_Approve_NotTheSeller_Forbidden() {
	ctx := context.Background()
	t := suite.T()
	order := suite.paidOrder(ctx)
	refund := testhelpers.CreateRefundReadyRequest(t, ctx, suite.service, order)

	_, err := suite.service.Approve(ctx, services.DecideRefundCommand{
		RefundID: refund.ID,
		SellerID: "someone-else",
	})

	require.Error(t, err)
	assert.True(t, domain.IsErrorCode(err, domain.ErrCodeForbidden))
}

func (suite *RefundServiceTestSuite) Test_Deny_ClosesRequest() {
	ctx := context.Background()
	t := suite.T()
	order := suite.paidOrder(ctx)
	refund := testhelpers.CreateRefundReadyRequest(t, ctx, suite.service, order)

	denied, err := suite.service.Deny(ctx, services.DecideRefundCommand{
		RefundID: refund.ID,
		SellerID: order.SellerID,
		Reason:   "item returned in worse condition",
	})

	require.NoError(t, err)
	assert.Equal(t, domain.RefundDenied, denied.Status)

	savedOrder, err := suite.orderRepo.FindByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPaid, savedOrder.Status)
}

func (suite *RefundServiceTestSuite) Test_Cancel_BeforeReturnReceived() {
	ctx := context.Background()
	t := suite.T()
	order := suite.paidOrder(ctx)

	refund, err := suite.service.Request(ctx, services.RequestRefundCommand{
		OrderID: order.ID,
		BuyerID: order.BuyerID,
		Reason:  "item arrived damaged beyond use",
	})
	require.NoError(t, err)

	cancelled, err := suite.service.Cancel(ctx, refund.ID, order.BuyerID)

	require.NoError(t, err)
	assert.Equal(t, domain.RefundCancelled, cancelled.Status)

	// The closed request no longer blocks a new one.
	_, err = suite.service.Request(ctx, services.RequestRefundCommand{
		OrderID: order.ID,
		BuyerID: order.BuyerID,
		Reason:  "item arrived damaged beyond use",
	})
	require.NoError(t, err)
}

// recordingSink captures conversation messages for assertions.
type recordingSink struct {
	conversations []string
	bodies        []string
}

func (s *recordingSink) NotifyOrderEvent(ctx context.Context, userID, orderID, event string) {}

func (s *recordingSink) PostSystemMessage(ctx context.Context, conversationID, body string) {
	s.conversations = append(s.conversations, conversationID)
	s.bodies = append(s.bodies, body)
}

func (suite *RefundServiceTestSuite) Test_Decisions_PostConversationMessages() {
	ctx := context.Background()
	t := suite.T()
	order := suite.paidOrder(ctx)

	sink := &recordingSink{}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
	service := services.NewRefundService(
		suite.refundRepo,
		suite.orderRepo,
		suite.listingRepo,
		suite.mockProcessor,
		sink,
		suite.testDB.DB.Pool,
		logger,
	)

	refund := testhelpers.CreateRefundReadyRequest(t, ctx, service, order)
	_, err := service.Deny(ctx, services.DecideRefundCommand{
		RefundID: refund.ID,
		SellerID: order.SellerID,
		Reason:   "item returned in worse condition",
	})
	require.NoError(t, err)

	require.Len(t, sink.conversations, 1)
	assert.Equal(t, order.ID, sink.conversations[0])
	assert.Contains(t, sink.bodies[0], "denied")

	refund = testhelpers.CreateRefundReadyRequest(t, ctx, service, order)
	suite.mockProcessor.EXPECT().
		CreateReversal(mock.Anything, mock.Anything, refund.ReversalIdempotencyKey).
		Return(&application.ReversalResponse{
			ReversalID: "rev-1",
			State:      "succeeded",
			ReversedAt: time.Now().UTC(),
		}, nil).
		Once()

	_, err = service.Approve(ctx, services.DecideRefundCommand{
		RefundID: refund.ID,
		SellerID: order.SellerID,
	})
	require.NoError(t, err)

	require.Len(t, sink.conversations, 2)
	assert.Equal(t, order.ID, sink.conversations[1])
	assert.Contains(t, sink.bodies[1], "refund")
}
