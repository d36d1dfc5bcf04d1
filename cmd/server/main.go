package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/marketloop/order-engine/internal/application/services"
	"github.com/marketloop/order-engine/internal/config"
	"github.com/marketloop/order-engine/internal/infrastructure/notify"
	"github.com/marketloop/order-engine/internal/infrastructure/persistence/postgres"
	"github.com/marketloop/order-engine/internal/infrastructure/processor"
	"github.com/marketloop/order-engine/internal/interfaces/rest/handlers"
	"github.com/marketloop/order-engine/internal/worker"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := cfg.Logger.NewLogger()
	slog.SetDefault(logger)

	logger.Info("starting order engine",
		"port", cfg.Server.Port,
		"log_level", cfg.Logger.Level,
	)

	ctx := context.Background()
	db, err := postgres.Connect(ctx, &cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	orderRepo := postgres.NewOrderRepository(db.Pool)
	listingRepo := postgres.NewListingRepository(db.Pool)
	refundRepo := postgres.NewRefundRepository(db.Pool)
	merchantRepo := postgres.NewMerchantRepository(db.Pool)
	webhookRepo := postgres.NewWebhookRepository(db.Pool)
	idempotencyRepo := postgres.NewIdempotencyRepository(db.Pool)

	processorClient := processor.NewProcessorClient(cfg.Processor)
	retryProcessorClient := processor.NewRetryProcessorClient(processorClient, cfg.Retry)

	notifier := notify.NewLogSink(logger)

	reservationService := services.NewReservationService(orderRepo, listingRepo, notifier, db.Pool, logger)
	paymentService := services.NewPaymentService(orderRepo, listingRepo, idempotencyRepo, retryProcessorClient, notifier, db.Pool, logger)
	refundService := services.NewRefundService(refundRepo, orderRepo, listingRepo, retryProcessorClient, notifier, db.Pool, logger)
	queryService := services.NewQueryService(orderRepo, refundRepo, reservationService)
	webhookService := services.NewWebhookIngestService(webhookRepo, cfg.Webhook.Secret, logger)
	webhookApplier := services.NewWebhookApplier(orderRepo, listingRepo, merchantRepo, notifier, db.Pool, logger)

	h := handlers.NewHandlers(
		reservationService,
		paymentService,
		refundService,
		queryService,
		webhookService,
		logger,
	)

	server := &http.Server{
		Addr:         "0.0.0.0:" + cfg.Server.Port,
		Handler:      h.Router(cfg.Server.ReadTimeout),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	expirationWorker := worker.NewExpirationWorker(
		orderRepo,
		listingRepo,
		db.Pool,
		cfg.Worker.ExpiryInterval,
		cfg.Worker.ExpiryBatchSize,
		logger,
	)

	webhookWorker := worker.NewWebhookWorker(
		webhookRepo,
		webhookApplier,
		cfg.Worker.WebhookInterval,
		cfg.Worker.WebhookBatchSize,
		cfg.Worker.WebhookMaxAttempts,
		logger,
	)

	workerCtx, cancelWorkers := context.WithCancel(context.Background())
	defer cancelWorkers()

	go expirationWorker.Start(workerCtx)
	go webhookWorker.Start(workerCtx)

	go func() {
		logger.Info("server starting", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	cancelWorkers()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}

	logger.Info("server exited")
}
