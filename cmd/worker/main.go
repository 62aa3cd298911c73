package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	paymentApp "github.com/rbarroso/clearway/internal/application/payment"
	refundApp "github.com/rbarroso/clearway/internal/application/refund"
	webhookApp "github.com/rbarroso/clearway/internal/application/webhook"
	"github.com/rbarroso/clearway/internal/bootstrap"
	"github.com/rbarroso/clearway/internal/domain/webhook"
	"github.com/rbarroso/clearway/internal/infrastructure/observability"
	infraRedis "github.com/rbarroso/clearway/internal/infrastructure/redis"
	"github.com/rbarroso/clearway/internal/repository/postgres"
	"github.com/rbarroso/clearway/internal/settlement"
)

// streamConsumer is the slice of infraRedis.Consumer the loops depend on.
type streamConsumer interface {
	Read(ctx context.Context) ([]redis.XStream, error)
	Ack(ctx context.Context, messageID string) error
	Pending(ctx context.Context, minIdle time.Duration, count int64) ([]redis.XPendingExt, error)
	Claim(ctx context.Context, minIdle time.Duration, messageIDs []string) ([]redis.XMessage, error)
}

// queueMarker records terminal job outcomes for depth stats.
type queueMarker interface {
	MarkCompleted(ctx context.Context, stream string)
	MarkFailed(ctx context.Context, stream string)
}

// entityLock guards one entity's settlement across worker instances.
type entityLock interface {
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

// reclaimSettings controls takeover of messages stuck pending on dead
// or failed consumers.
type reclaimSettings struct {
	Interval      time.Duration
	MinIdle       time.Duration
	MaxDeliveries int64
	Batch         int64
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app, err := bootstrap.New(ctx, "clearway-worker", "clearway_worker")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to bootstrap: %v\n", err)
		os.Exit(1)
	}
	defer app.Close()

	// --- Repositories ---
	paymentRepo := postgres.NewPaymentRepository(app.Pool)
	refundRepo := postgres.NewRefundRepository(app.Pool)
	webhookRepo := postgres.NewWebhookRepository(app.Pool)
	merchantRepo := postgres.NewMerchantRepository(app.Pool)

	// --- Queue ---
	queue := infraRedis.NewQueue(app.Redis)

	// --- Use cases ---
	workerCfg := app.Config.Worker
	outcome := settlement.NewSimulator(
		app.Config.Settlement.SuccessRates,
		settlement.WithDefaultRate(app.Config.Settlement.DefaultRate),
	)
	settlePaymentUC := paymentApp.NewSettlePaymentUseCase(paymentRepo, queue, outcome, workerCfg.PaymentSettleDelay)
	settleRefundUC := refundApp.NewSettleRefundUseCase(refundRepo, queue, workerCfg.RefundSettleDelay)

	webhookCfg := app.Config.Webhook
	deliverer := webhookApp.NewDeliverer(
		merchantRepo,
		webhookRepo,
		queue,
		webhookApp.NewBreakerRegistry(),
		webhookApp.DelivererConfig{
			Timeout:         webhookCfg.Timeout,
			MaxAttempts:     webhookCfg.MaxAttempts,
			BackoffSchedule: webhookCfg.BackoffSchedule,
			SignatureHeader: webhookCfg.SignatureHeader,
		},
	)

	// --- Consumers ---
	newConsumer := func(stream string) *infraRedis.Consumer {
		return infraRedis.NewConsumer(
			app.Redis, stream, workerCfg.ConsumerGroup, app.Config.InstanceID,
			workerCfg.BatchSize, workerCfg.BlockDuration,
		)
	}
	paymentConsumer := newConsumer(infraRedis.PaymentStream)
	refundConsumer := newConsumer(infraRedis.RefundStream)
	webhookConsumer := newConsumer(infraRedis.WebhookStream)

	for _, c := range []*infraRedis.Consumer{paymentConsumer, refundConsumer, webhookConsumer} {
		if err := c.CreateGroup(ctx); err != nil {
			app.Logger.Error().Err(err).Msg("Failed to create consumer group")
		}
	}

	lockFor := func(key string) entityLock {
		return infraRedis.NewDistributedLock(app.Redis, key, workerCfg.LockTTL)
	}
	reclaim := reclaimSettings{
		Interval:      workerCfg.ReclaimInterval,
		MinIdle:       workerCfg.ReclaimMinIdle,
		MaxDeliveries: workerCfg.MaxDeliveries,
		Batch:         workerCfg.BatchSize,
	}

	app.Logger.Info().
		Str("group", workerCfg.ConsumerGroup).
		Str("consumer", app.Config.InstanceID).
		Msg("Worker started, listening for messages...")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	g, gCtx := errgroup.WithContext(ctx)

	// 1. Payment settlement (reads payments:processing).
	g.Go(func() error {
		return runSettleLoop(gCtx, app.Logger, app.Metrics, paymentConsumer, queue,
			infraRedis.PaymentStream, "payment_id", lockFor, reclaim,
			func(loopCtx context.Context, id uuid.UUID) error {
				return settlePaymentUC.Execute(loopCtx, id)
			})
	})

	// 2. Refund settlement (reads refunds:processing).
	g.Go(func() error {
		return runSettleLoop(gCtx, app.Logger, app.Metrics, refundConsumer, queue,
			infraRedis.RefundStream, "refund_id", lockFor, reclaim,
			func(loopCtx context.Context, id uuid.UUID) error {
				return settleRefundUC.Execute(loopCtx, id)
			})
	})

	// 3. Webhook delivery (reads webhooks:delivery).
	g.Go(func() error {
		return runWebhookLoop(gCtx, app.Logger, app.Metrics, webhookConsumer, queue, reclaim, deliverer.Deliver)
	})

	// 4. Scheduler: promote due webhook jobs from the delay set.
	g.Go(func() error {
		return runScheduler(gCtx, app.Logger, queue, workerCfg.SchedulerInterval, workerCfg.BatchSize)
	})

	// 5. Queue depth gauge exporter.
	g.Go(func() error {
		return runDepthExporter(gCtx, app.Logger, queue, app.Metrics, workerCfg.ConsumerGroup)
	})

	// 6. Wait for shutdown signal.
	g.Go(func() error {
		select {
		case <-gCtx.Done():
			return gCtx.Err()
		case <-quit:
			app.Logger.Info().Msg("Shutting down worker...")
			cancel()
			return nil
		}
	})

	if err := g.Wait(); err != nil && err != context.Canceled {
		app.Logger.Error().Err(err).Msg("Worker error")
	}
	app.Logger.Info().Msg("Worker exited")
}

// runSettleLoop consumes entity IDs from a stream and settles them one at a
// time under a per-entity distributed lock, so two worker instances never
// settle the same row concurrently. Messages that fail stay pending and are
// redelivered through the reclaimer until the delivery cap drops them.
func runSettleLoop(
	ctx context.Context,
	logger zerolog.Logger,
	metrics *observability.Metrics,
	consumer streamConsumer,
	queue queueMarker,
	stream string,
	idField string,
	lockFor func(key string) entityLock,
	reclaim reclaimSettings,
	settle func(ctx context.Context, id uuid.UUID) error,
) error {
	logger = logger.With().Str("stream", stream).Logger()
	process := func(msg redis.XMessage) bool {
		return processSettleMessage(ctx, logger, metrics, queue, stream, idField, lockFor, settle, msg)
	}

	reclaimTicker := time.NewTicker(reclaim.Interval)
	defer reclaimTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-reclaimTicker.C:
			reclaimStale(ctx, logger, consumer, queue, stream, reclaim, process)
		default:
		}

		streams, err := consumer.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			logger.Error().Err(err).Msg("Failed to read from stream")
			time.Sleep(1 * time.Second)
			continue
		}

		for _, s := range streams {
			for _, msg := range s.Messages {
				if process(msg) {
					ackMessage(ctx, logger, consumer, msg.ID)
				}
			}
		}
	}
}

// processSettleMessage handles one stream entry and reports whether it
// should be acked. Transient settle failures return false so the entry
// stays pending and the group redelivers it.
func processSettleMessage(
	ctx context.Context,
	logger zerolog.Logger,
	metrics *observability.Metrics,
	queue queueMarker,
	stream string,
	idField string,
	lockFor func(key string) entityLock,
	settle func(ctx context.Context, id uuid.UUID) error,
	msg redis.XMessage,
) bool {
	rawID, _ := msg.Values[idField].(string)
	id, err := uuid.Parse(rawID)
	if err != nil {
		// Poison message, drop it.
		logger.Error().Str("raw", rawID).Msg("Invalid entity ID in stream message")
		queue.MarkFailed(ctx, stream)
		return true
	}

	lock := lockFor(stream + ":" + id.String())
	acquired, err := lock.Acquire(ctx)
	if err != nil || !acquired {
		// Another instance holds it; the message stays pending and is
		// redelivered.
		logger.Warn().Str("id", id.String()).Msg("Could not acquire lock, skipping")
		return false
	}
	defer lock.Release(ctx)

	start := time.Now()
	err = settle(ctx, id)
	metrics.SettleDuration.WithLabelValues(stream).Observe(time.Since(start).Seconds())
	if err != nil {
		logger.Error().Err(err).Str("id", id.String()).Msg("Failed to settle")
		metrics.WorkerMessagesProcessed.WithLabelValues(stream, "error").Inc()
		return false
	}

	metrics.WorkerMessagesProcessed.WithLabelValues(stream, "success").Inc()
	queue.MarkCompleted(ctx, stream)
	return true
}

func runWebhookLoop(
	ctx context.Context,
	logger zerolog.Logger,
	metrics *observability.Metrics,
	consumer streamConsumer,
	queue queueMarker,
	reclaim reclaimSettings,
	deliver func(ctx context.Context, job webhook.Job) (webhookApp.Disposition, error),
) error {
	logger = logger.With().Str("stream", infraRedis.WebhookStream).Logger()
	process := func(msg redis.XMessage) bool {
		return processWebhookMessage(ctx, logger, metrics, queue, deliver, msg)
	}

	reclaimTicker := time.NewTicker(reclaim.Interval)
	defer reclaimTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-reclaimTicker.C:
			reclaimStale(ctx, logger, consumer, queue, infraRedis.WebhookStream, reclaim, process)
		default:
		}

		streams, err := consumer.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			logger.Error().Err(err).Msg("Failed to read from stream")
			time.Sleep(1 * time.Second)
			continue
		}

		for _, s := range streams {
			for _, msg := range s.Messages {
				if process(msg) {
					ackMessage(ctx, logger, consumer, msg.ID)
				}
			}
		}
	}
}

// processWebhookMessage runs one delivery pass and reports whether the
// message should be acked. Errors from the pass itself (audit write or
// re-enqueue failures) leave the message pending for redelivery.
func processWebhookMessage(
	ctx context.Context,
	logger zerolog.Logger,
	metrics *observability.Metrics,
	queue queueMarker,
	deliver func(ctx context.Context, job webhook.Job) (webhookApp.Disposition, error),
	msg redis.XMessage,
) bool {
	raw, _ := msg.Values["job"].(string)
	var job webhook.Job
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		logger.Error().Err(err).Msg("Invalid webhook job in stream message")
		queue.MarkFailed(ctx, infraRedis.WebhookStream)
		return true
	}

	start := time.Now()
	disposition, err := deliver(ctx, job)
	metrics.WebhookAttemptDuration.WithLabelValues(job.Event).Observe(time.Since(start).Seconds())
	metrics.WebhookDeliveries.WithLabelValues(job.Event, disposition.String()).Inc()

	if err != nil {
		logger.Error().Err(err).
			Str("event", job.Event).
			Int("attempt", job.Attempt).
			Msg("Webhook delivery pass failed")
		return false
	}

	logger.Info().
		Str("event", job.Event).
		Int("attempt", job.Attempt).
		Str("disposition", disposition.String()).
		Msg("Webhook delivery pass")

	switch disposition {
	case webhookApp.DispositionDelivered:
		queue.MarkCompleted(ctx, infraRedis.WebhookStream)
	case webhookApp.DispositionExhausted:
		queue.MarkFailed(ctx, infraRedis.WebhookStream)
	}
	return true
}

// reclaimStale takes over messages stuck pending, either from a crashed
// consumer or from an earlier failed pass. Messages past the delivery
// cap are dropped as terminally failed so a poison job cannot loop
// forever.
func reclaimStale(
	ctx context.Context,
	logger zerolog.Logger,
	consumer streamConsumer,
	queue queueMarker,
	stream string,
	reclaim reclaimSettings,
	process func(msg redis.XMessage) bool,
) {
	entries, err := consumer.Pending(ctx, reclaim.MinIdle, reclaim.Batch)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to list pending messages")
		return
	}

	var ids []string
	for _, e := range entries {
		if e.RetryCount >= reclaim.MaxDeliveries {
			logger.Error().
				Str("message_id", e.ID).
				Int64("deliveries", e.RetryCount).
				Msg("Dropping message past the delivery cap")
			queue.MarkFailed(ctx, stream)
			ackMessage(ctx, logger, consumer, e.ID)
			continue
		}
		ids = append(ids, e.ID)
	}
	if len(ids) == 0 {
		return
	}

	msgs, err := consumer.Claim(ctx, reclaim.MinIdle, ids)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to claim stale messages")
		return
	}
	for _, msg := range msgs {
		if process(msg) {
			ackMessage(ctx, logger, consumer, msg.ID)
		}
	}
}

func ackMessage(ctx context.Context, logger zerolog.Logger, consumer streamConsumer, messageID string) {
	if err := consumer.Ack(ctx, messageID); err != nil {
		logger.Error().Err(err).Str("message_id", messageID).Msg("Failed to ack message")
	}
}

// runScheduler promotes delayed webhook jobs whose deliver-at time passed.
func runScheduler(
	ctx context.Context,
	logger zerolog.Logger,
	queue *infraRedis.Queue,
	interval time.Duration,
	batchSize int64,
) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		moved, err := queue.MoveDueWebhooks(ctx, time.Now(), batchSize)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			logger.Error().Err(err).Msg("Failed to move due webhook jobs")
			continue
		}
		if moved > 0 {
			logger.Debug().Int64("moved", moved).Msg("Promoted scheduled webhook jobs")
		}
	}
}

// runDepthExporter mirrors queue depths into Prometheus gauges.
func runDepthExporter(
	ctx context.Context,
	logger zerolog.Logger,
	queue *infraRedis.Queue,
	metrics *observability.Metrics,
	group string,
) error {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		stats, err := queue.QueueStats(ctx, group)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			logger.Error().Err(err).Msg("Failed to read queue stats")
			continue
		}
		for name, s := range stats {
			metrics.QueueDepth.WithLabelValues(name, "waiting").Set(float64(s.Waiting))
			metrics.QueueDepth.WithLabelValues(name, "active").Set(float64(s.Active))
			metrics.QueueDepth.WithLabelValues(name, "scheduled").Set(float64(s.Scheduled))
		}
	}
}
