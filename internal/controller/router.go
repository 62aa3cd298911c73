package controller

import (
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"

	appPayment "github.com/rbarroso/clearway/internal/application/payment"
	appRefund "github.com/rbarroso/clearway/internal/application/refund"
	appWebhook "github.com/rbarroso/clearway/internal/application/webhook"
	"github.com/rbarroso/clearway/internal/domain/payment"
	"github.com/rbarroso/clearway/internal/domain/refund"
	"github.com/rbarroso/clearway/internal/domain/webhook"
	"github.com/rbarroso/clearway/internal/infrastructure/config"
	"github.com/rbarroso/clearway/internal/infrastructure/observability"
	"github.com/rbarroso/clearway/internal/infrastructure/redis"
	customMW "github.com/rbarroso/clearway/internal/middleware"
)

type RouterDeps struct {
	Pool          *pgxpool.Pool
	RedisClient   *goredis.Client
	Queue         *redis.Queue
	PaymentRepo   payment.Repository
	RefundRepo    refund.Repository
	WebhookRepo   webhook.Repository
	CreatePayment *appPayment.CreatePaymentUseCase
	CreateRefund  *appRefund.CreateRefundUseCase
	Rearm         *appWebhook.RearmUseCase
	Metrics       *observability.Metrics
	Config        *config.Config
}

func NewRouter(deps RouterDeps) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(customMW.Tracing())
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(60 * time.Second))
	r.Use(customMW.SecurityHeaders())
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   deps.Config.Server.CORS.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key"},
		ExposedHeaders:   []string{"X-Idempotency-Replayed"},
		AllowCredentials: deps.Config.Server.CORS.AllowCredentials,
		MaxAge:           300,
	}))
	r.Use(customMW.Metrics(deps.Metrics))
	r.Use(customMW.RateLimit(deps.Config.Server.RequestsPerMinute))

	healthH := NewHealthController(deps.Pool, deps.RedisClient)
	paymentH := NewPaymentController(deps.CreatePayment, deps.PaymentRepo)
	refundH := NewRefundController(deps.CreateRefund, deps.PaymentRepo, deps.RefundRepo)
	webhookH := NewWebhookController(deps.Rearm, deps.WebhookRepo)
	queueH := NewQueueController(deps.Queue, deps.Config.Worker.ConsumerGroup)

	r.Get("/health", healthH.Health)
	r.Get("/health/live", healthH.Liveness)
	r.Get("/health/ready", healthH.Readiness)

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(customMW.RequireAuth(deps.Config.Auth.JWTSecret))

		// Payments
		r.Post("/payments", paymentH.CreatePayment)
		r.Get("/payments/{id}", paymentH.GetPayment)

		// Refunds
		r.Post("/payments/{id}/refunds", refundH.CreateRefund)
		r.Get("/payments/{id}/refunds", refundH.ListRefunds)

		// Webhook audit log
		r.Get("/webhooks/attempts", webhookH.ListAttempts)
		r.Post("/webhooks/attempts/{id}/retry", webhookH.RetryAttempt)

		// Queue introspection
		r.Get("/queues", queueH.GetQueues)
	})

	return r
}
