package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	paymentApp "github.com/rbarroso/clearway/internal/application/payment"
	refundApp "github.com/rbarroso/clearway/internal/application/refund"
	webhookApp "github.com/rbarroso/clearway/internal/application/webhook"
	"github.com/rbarroso/clearway/internal/bootstrap"
	"github.com/rbarroso/clearway/internal/controller"
	infraRedis "github.com/rbarroso/clearway/internal/infrastructure/redis"
	"github.com/rbarroso/clearway/internal/repository/postgres"
)

func main() {
	ctx := context.Background()

	app, err := bootstrap.New(ctx, "clearway-api", "clearway")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to bootstrap: %v\n", err)
		os.Exit(1)
	}
	defer app.Close()

	// --- Repositories ---
	paymentRepo := postgres.NewPaymentRepository(app.Pool)
	refundRepo := postgres.NewRefundRepository(app.Pool)
	webhookRepo := postgres.NewWebhookRepository(app.Pool)
	idempotencyRepo := postgres.NewIdempotencyRepository(app.Pool)
	txManager := postgres.NewTxManager(app.Pool)

	// --- Queue ---
	queue := infraRedis.NewQueue(app.Redis)

	// --- Use cases ---
	idemSettings := paymentApp.IdempotencySettings{
		TTL:          app.Config.Idempotency.TTL,
		WaitAttempts: app.Config.Idempotency.WaitAttempts,
		WaitDelay:    app.Config.Idempotency.WaitDelay,
	}
	createPaymentUC := paymentApp.NewCreatePaymentUseCase(paymentRepo, idempotencyRepo, queue, idemSettings)
	createRefundUC := refundApp.NewCreateRefundUseCase(
		paymentRepo, refundRepo, idempotencyRepo, txManager, queue,
		refundApp.IdempotencySettings(idemSettings),
	)
	rearmUC := webhookApp.NewRearmUseCase(webhookRepo, queue)

	// --- Build router ---
	router := controller.NewRouter(controller.RouterDeps{
		Pool:          app.Pool,
		RedisClient:   app.Redis,
		Queue:         queue,
		PaymentRepo:   paymentRepo,
		RefundRepo:    refundRepo,
		WebhookRepo:   webhookRepo,
		CreatePayment: createPaymentUC,
		CreateRefund:  createRefundUC,
		Rearm:         rearmUC,
		Metrics:       app.Metrics,
		Config:        app.Config,
	})

	// --- HTTP server ---
	addr := fmt.Sprintf(":%d", app.Config.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  app.Config.Server.ReadTimeout,
		WriteTimeout: app.Config.Server.WriteTimeout,
		IdleTimeout:  app.Config.Server.IdleTimeout,
	}

	go func() {
		app.Logger.Info().Str("addr", addr).Msg("Starting HTTP server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			app.Logger.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	app.Logger.Info().Msg("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), app.Config.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		app.Logger.Error().Err(err).Msg("Server forced to shutdown")
	}
	app.Logger.Info().Msg("Server exited")
}
