package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rbarroso/clearway/internal/domain/webhook"
	"github.com/redis/go-redis/v9"
)

const (
	PaymentStream = "payments:processing"
	RefundStream  = "refunds:processing"
	WebhookStream = "webhooks:delivery"

	webhookScheduledSet = "webhooks:scheduled"
)

// Streams lists every logical queue, used for introspection.
var Streams = []string{PaymentStream, RefundStream, WebhookStream}

// moveDueScript atomically moves due scheduled jobs onto the delivery
// stream. XADD and ZREM run in one script so a crash cannot lose a job
// between the two.
var moveDueScript = redis.NewScript(`
	local due = redis.call("zrangebyscore", KEYS[1], "-inf", ARGV[1], "LIMIT", 0, ARGV[2])
	for _, member in ipairs(due) do
		redis.call("xadd", KEYS[2], "*", "job", member)
		redis.call("zrem", KEYS[1], member)
	end
	return #due
`)

// Queue is the durable work-distribution channel between the API and the
// workers. Streams with consumer groups give at-least-once delivery; the
// scheduled set holds webhook jobs waiting out their backoff delay. The
// queue carries only replayable work descriptors, never authoritative state.
type Queue struct {
	client *redis.Client
}

func NewQueue(client *redis.Client) *Queue {
	return &Queue{client: client}
}

// EnqueuePayment publishes a payment-processing job.
func (q *Queue) EnqueuePayment(ctx context.Context, paymentID uuid.UUID) error {
	return q.add(ctx, PaymentStream, map[string]any{
		"payment_id": paymentID.String(),
		"timestamp":  time.Now().Unix(),
	})
}

// EnqueueRefund publishes a refund-processing job.
func (q *Queue) EnqueueRefund(ctx context.Context, refundID uuid.UUID) error {
	return q.add(ctx, RefundStream, map[string]any{
		"refund_id": refundID.String(),
		"timestamp": time.Now().Unix(),
	})
}

// EnqueueWebhook publishes a webhook-delivery job, optionally delayed.
// Delayed jobs land on the scheduled set and are moved onto the stream by
// MoveDueWebhooks once their deliver-at time passes.
func (q *Queue) EnqueueWebhook(ctx context.Context, job webhook.Job, delay time.Duration) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal webhook job: %w", err)
	}

	if delay <= 0 {
		return q.add(ctx, WebhookStream, map[string]any{"job": string(payload)})
	}

	deliverAt := time.Now().Add(delay)
	err = q.client.ZAdd(ctx, webhookScheduledSet, redis.Z{
		Score:  float64(deliverAt.UnixMilli()),
		Member: string(payload),
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to schedule webhook job: %w", err)
	}
	return nil
}

// MoveDueWebhooks promotes scheduled webhook jobs whose delay has elapsed.
// Returns the number of jobs moved.
func (q *Queue) MoveDueWebhooks(ctx context.Context, now time.Time, limit int64) (int64, error) {
	res, err := moveDueScript.Run(ctx, q.client,
		[]string{webhookScheduledSet, WebhookStream},
		now.UnixMilli(), limit,
	).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to move due webhook jobs: %w", err)
	}
	n, _ := res.(int64)
	return n, nil
}

// MarkCompleted records a successfully processed job for depth stats.
func (q *Queue) MarkCompleted(ctx context.Context, stream string) {
	q.client.Incr(ctx, counterKey(stream, "completed"))
}

// MarkFailed records a terminally failed job for depth stats.
func (q *Queue) MarkFailed(ctx context.Context, stream string) {
	q.client.Incr(ctx, counterKey(stream, "failed"))
}

func (q *Queue) add(ctx context.Context, stream string, values map[string]any) error {
	if err := q.client.XAdd(ctx, &redis.XAddArgs{Stream: stream, Values: values}).Err(); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", stream, err)
	}
	return nil
}

func counterKey(stream, state string) string {
	return fmt.Sprintf("queue:%s:%s", stream, state)
}

// Stats holds read-only depth counts for one queue.
type Stats struct {
	Waiting   int64 `json:"waiting"`
	Active    int64 `json:"active"`
	Scheduled int64 `json:"scheduled"`
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
}

// QueueStats returns depth counts per queue for health and monitoring.
func (q *Queue) QueueStats(ctx context.Context, group string) (map[string]Stats, error) {
	out := make(map[string]Stats, len(Streams))
	for _, stream := range Streams {
		var s Stats

		// XLEN never shrinks on XACK, so the backlog comes from the
		// group's Lag instead: entries added but not yet delivered.
		groups, err := q.client.XInfoGroups(ctx, stream).Result()
		if err != nil && !isNoStreamErr(err) {
			return nil, fmt.Errorf("xinfo groups %s: %w", stream, err)
		}

		waiting, active, found := groupBacklog(groups, group)
		if found {
			s.Waiting, s.Active = waiting, active
		} else {
			// No consumer group yet: everything in the stream waits.
			length, err := q.client.XLen(ctx, stream).Result()
			if err != nil && err != redis.Nil {
				return nil, fmt.Errorf("xlen %s: %w", stream, err)
			}
			s.Waiting = length
		}

		s.Completed, _ = q.client.Get(ctx, counterKey(stream, "completed")).Int64()
		s.Failed, _ = q.client.Get(ctx, counterKey(stream, "failed")).Int64()

		if stream == WebhookStream {
			s.Scheduled, err = q.client.ZCard(ctx, webhookScheduledSet).Result()
			if err != nil && err != redis.Nil {
				return nil, fmt.Errorf("zcard %s: %w", webhookScheduledSet, err)
			}
		}

		out[stream] = s
	}
	return out, nil
}

// groupBacklog picks one consumer group's depth figures out of an
// XINFO GROUPS reply. Waiting is the group lag (never-delivered
// entries); active is delivered-but-unacked.
func groupBacklog(groups []redis.XInfoGroup, group string) (waiting, active int64, found bool) {
	for _, g := range groups {
		if g.Name == group {
			return g.Lag, g.Pending, true
		}
	}
	return 0, 0, false
}

func isNoStreamErr(err error) bool {
	return err != nil && strings.Contains(err.Error(), "no such key")
}

// Consumer reads jobs from one stream through a consumer group.
type Consumer struct {
	client        *redis.Client
	stream        string
	group         string
	consumer      string
	batchSize     int64
	blockDuration time.Duration
}

func NewConsumer(
	client *redis.Client,
	stream string,
	group string,
	consumer string,
	batchSize int64,
	blockDuration time.Duration,
) *Consumer {
	return &Consumer{
		client:        client,
		stream:        stream,
		group:         group,
		consumer:      consumer,
		batchSize:     batchSize,
		blockDuration: blockDuration,
	}
}

func (c *Consumer) CreateGroup(ctx context.Context) error {
	// Create stream if it doesn't exist
	const busyGroupMsg = "BUSYGROUP"
	err := c.client.XGroupCreateMkStream(ctx, c.stream, c.group, "0").Err()
	if err != nil && !strings.Contains(err.Error(), busyGroupMsg) {
		return fmt.Errorf("failed to create consumer group: %w", err)
	}
	return nil
}

func (c *Consumer) Read(ctx context.Context) ([]redis.XStream, error) {
	streams, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    c.group,
		Consumer: c.consumer,
		Streams:  []string{c.stream, ">"},
		Count:    c.batchSize,
		Block:    c.blockDuration,
	}).Result()

	if err != nil {
		if err == redis.Nil {
			// No new messages
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read from stream: %w", err)
	}

	return streams, nil
}

func (c *Consumer) Ack(ctx context.Context, messageID string) error {
	err := c.client.XAck(ctx, c.stream, c.group, messageID).Err()
	if err != nil {
		return fmt.Errorf("failed to ack message: %w", err)
	}
	return nil
}

// Pending lists messages delivered to the group but unacked for at
// least minIdle, with their delivery counts.
func (c *Consumer) Pending(ctx context.Context, minIdle time.Duration, count int64) ([]redis.XPendingExt, error) {
	entries, err := c.client.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: c.stream,
		Group:  c.group,
		Start:  "-",
		End:    "+",
		Count:  count,
		Idle:   minIdle,
	}).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list pending messages: %w", err)
	}
	return entries, nil
}

// Claim takes over messages another consumer left pending, e.g. after a
// worker crash mid-processing.
func (c *Consumer) Claim(ctx context.Context, minIdleTime time.Duration, messageIDs []string) ([]redis.XMessage, error) {
	messages, err := c.client.XClaim(ctx, &redis.XClaimArgs{
		Stream:   c.stream,
		Group:    c.group,
		Consumer: c.consumer,
		MinIdle:  minIdleTime,
		Messages: messageIDs,
	}).Result()

	if err != nil {
		return nil, fmt.Errorf("failed to claim messages: %w", err)
	}

	return messages, nil
}
