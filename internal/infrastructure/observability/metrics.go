package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all application metrics
type Metrics struct {
	// Transaction metrics
	PaymentsTotal  *prometheus.CounterVec
	RefundsTotal   *prometheus.CounterVec
	SettleDuration *prometheus.HistogramVec

	// Idempotency metrics
	IdempotencyReplays *prometheus.CounterVec

	// Webhook metrics
	WebhookDeliveries      *prometheus.CounterVec
	WebhookAttemptDuration *prometheus.HistogramVec

	// Queue metrics
	QueueDepth              *prometheus.GaugeVec
	WorkerMessagesProcessed *prometheus.CounterVec

	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// NewMetrics creates and registers all metrics against the given registry.
// If reg is nil, prometheus.DefaultRegisterer is used.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := prometheus.WrapRegistererWith(nil, reg)

	m := &Metrics{
		PaymentsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "payments_total",
				Help:      "Total number of payments by method and status",
			},
			[]string{"method", "status"},
		),
		RefundsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "refunds_total",
				Help:      "Total number of refunds by status",
			},
			[]string{"status"},
		),
		SettleDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "settle_duration_seconds",
				Help:      "Settlement duration in seconds",
				Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"kind"},
		),
		IdempotencyReplays: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "idempotency_replays_total",
				Help:      "Total number of idempotent replays served from the store",
			},
			[]string{"operation"},
		),
		WebhookDeliveries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "webhook_deliveries_total",
				Help:      "Total number of webhook delivery attempts by event and result",
			},
			[]string{"event", "result"},
		),
		WebhookAttemptDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "webhook_attempt_duration_seconds",
				Help:      "Outbound webhook request duration in seconds",
				Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"event"},
		),
		QueueDepth: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "queue_depth",
				Help:      "Number of jobs per queue and state",
			},
			[]string{"queue", "state"},
		),
		WorkerMessagesProcessed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "worker_messages_processed_total",
				Help:      "Total number of worker messages processed",
			},
			[]string{"stream", "status"},
		),
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
	}

	factory.MustRegister(
		m.PaymentsTotal,
		m.RefundsTotal,
		m.SettleDuration,
		m.IdempotencyReplays,
		m.WebhookDeliveries,
		m.WebhookAttemptDuration,
		m.QueueDepth,
		m.WorkerMessagesProcessed,
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
	)

	return m
}
