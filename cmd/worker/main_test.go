package main

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	webhookApp "github.com/rbarroso/clearway/internal/application/webhook"
	"github.com/rbarroso/clearway/internal/domain/webhook"
	"github.com/rbarroso/clearway/internal/infrastructure/observability"
	infraRedis "github.com/rbarroso/clearway/internal/infrastructure/redis"
)

type fakeMarker struct {
	mu        sync.Mutex
	completed int
	failed    int
}

func (m *fakeMarker) MarkCompleted(ctx context.Context, stream string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.completed++
}

func (m *fakeMarker) MarkFailed(ctx context.Context, stream string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failed++
}

type fakeLock struct {
	acquired bool
	busy     bool
	released bool
}

func (l *fakeLock) Acquire(ctx context.Context) (bool, error) {
	if l.busy {
		return false, nil
	}
	l.acquired = true
	return true, nil
}

func (l *fakeLock) Release(ctx context.Context) error {
	l.released = true
	return nil
}

type fakeConsumer struct {
	mu         sync.Mutex
	acked      []string
	ackErr     error
	pending    []redis.XPendingExt
	claimable  map[string]redis.XMessage
	claimedIDs []string
}

func (c *fakeConsumer) Read(ctx context.Context) ([]redis.XStream, error) {
	return nil, nil
}

func (c *fakeConsumer) Ack(ctx context.Context, messageID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ackErr != nil {
		return c.ackErr
	}
	c.acked = append(c.acked, messageID)
	return nil
}

func (c *fakeConsumer) Pending(ctx context.Context, minIdle time.Duration, count int64) ([]redis.XPendingExt, error) {
	return c.pending, nil
}

func (c *fakeConsumer) Claim(ctx context.Context, minIdle time.Duration, messageIDs []string) ([]redis.XMessage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.claimedIDs = append(c.claimedIDs, messageIDs...)
	var out []redis.XMessage
	for _, id := range messageIDs {
		if msg, ok := c.claimable[id]; ok {
			out = append(out, msg)
		}
	}
	return out, nil
}

func testMetrics() *observability.Metrics {
	return observability.NewMetrics("worker_test", prometheus.NewRegistry())
}

func settleMsg(id uuid.UUID) redis.XMessage {
	return redis.XMessage{
		ID:     "1-0",
		Values: map[string]interface{}{"payment_id": id.String()},
	}
}

func TestProcessSettleMessage_SuccessAcks(t *testing.T) {
	marker := &fakeMarker{}
	lock := &fakeLock{}
	var settled uuid.UUID

	ack := processSettleMessage(
		context.Background(), zerolog.Nop(), testMetrics(), marker,
		infraRedis.PaymentStream, "payment_id",
		func(key string) entityLock { return lock },
		func(ctx context.Context, id uuid.UUID) error {
			settled = id
			return nil
		},
		settleMsg(uuid.MustParse("11111111-1111-1111-1111-111111111111")),
	)

	assert.True(t, ack)
	assert.Equal(t, "11111111-1111-1111-1111-111111111111", settled.String())
	assert.Equal(t, 1, marker.completed)
	assert.Zero(t, marker.failed)
	assert.True(t, lock.released)
}

func TestProcessSettleMessage_FailureLeavesMessagePending(t *testing.T) {
	marker := &fakeMarker{}
	lock := &fakeLock{}

	ack := processSettleMessage(
		context.Background(), zerolog.Nop(), testMetrics(), marker,
		infraRedis.PaymentStream, "payment_id",
		func(key string) entityLock { return lock },
		func(ctx context.Context, id uuid.UUID) error {
			return errors.New("storage unavailable")
		},
		settleMsg(uuid.New()),
	)

	// No ack: the entry stays pending so the group redelivers it and the
	// entity is not stranded mid-settlement.
	assert.False(t, ack)
	assert.Zero(t, marker.completed)
	assert.Zero(t, marker.failed)
	assert.True(t, lock.released)
}

func TestProcessSettleMessage_PoisonMessageDropped(t *testing.T) {
	marker := &fakeMarker{}

	ack := processSettleMessage(
		context.Background(), zerolog.Nop(), testMetrics(), marker,
		infraRedis.PaymentStream, "payment_id",
		func(key string) entityLock { return &fakeLock{} },
		func(ctx context.Context, id uuid.UUID) error {
			t.Fatal("settle must not run for a malformed ID")
			return nil
		},
		redis.XMessage{ID: "1-0", Values: map[string]interface{}{"payment_id": "not-a-uuid"}},
	)

	assert.True(t, ack)
	assert.Equal(t, 1, marker.failed)
}

func TestProcessSettleMessage_LockBusySkips(t *testing.T) {
	marker := &fakeMarker{}

	ack := processSettleMessage(
		context.Background(), zerolog.Nop(), testMetrics(), marker,
		infraRedis.PaymentStream, "payment_id",
		func(key string) entityLock { return &fakeLock{busy: true} },
		func(ctx context.Context, id uuid.UUID) error {
			t.Fatal("settle must not run without the lock")
			return nil
		},
		settleMsg(uuid.New()),
	)

	assert.False(t, ack)
	assert.Zero(t, marker.completed)
	assert.Zero(t, marker.failed)
}

func TestReclaimStale_RedeliversUnderCap(t *testing.T) {
	id := uuid.New()
	consumer := &fakeConsumer{
		pending: []redis.XPendingExt{
			{ID: "5-0", RetryCount: 2},
		},
		claimable: map[string]redis.XMessage{
			"5-0": {ID: "5-0", Values: map[string]interface{}{"payment_id": id.String()}},
		},
	}
	marker := &fakeMarker{}
	settings := reclaimSettings{MinIdle: time.Minute, MaxDeliveries: 5, Batch: 10}

	var processed []string
	reclaimStale(context.Background(), zerolog.Nop(), consumer, marker,
		infraRedis.PaymentStream, settings,
		func(msg redis.XMessage) bool {
			processed = append(processed, msg.ID)
			return true
		})

	require.Equal(t, []string{"5-0"}, consumer.claimedIDs)
	assert.Equal(t, []string{"5-0"}, processed)
	assert.Equal(t, []string{"5-0"}, consumer.acked)
	assert.Zero(t, marker.failed)
}

func TestReclaimStale_DropsPastDeliveryCap(t *testing.T) {
	consumer := &fakeConsumer{
		pending: []redis.XPendingExt{
			{ID: "7-0", RetryCount: 5},
		},
	}
	marker := &fakeMarker{}
	settings := reclaimSettings{MinIdle: time.Minute, MaxDeliveries: 5, Batch: 10}

	reclaimStale(context.Background(), zerolog.Nop(), consumer, marker,
		infraRedis.PaymentStream, settings,
		func(msg redis.XMessage) bool {
			t.Fatal("a capped message must not be reprocessed")
			return false
		})

	assert.Empty(t, consumer.claimedIDs)
	assert.Equal(t, []string{"7-0"}, consumer.acked)
	assert.Equal(t, 1, marker.failed)
}

func TestProcessWebhookMessage_DeliveryErrorLeavesPending(t *testing.T) {
	marker := &fakeMarker{}
	job := webhook.Job{ID: uuid.New(), MerchantID: uuid.New(), Event: "payment.success", Attempt: 1}
	raw, err := json.Marshal(job)
	require.NoError(t, err)

	ack := processWebhookMessage(
		context.Background(), zerolog.Nop(), testMetrics(), marker,
		func(ctx context.Context, j webhook.Job) (webhookApp.Disposition, error) {
			return webhookApp.DispositionRetried, errors.New("audit write failed")
		},
		redis.XMessage{ID: "9-0", Values: map[string]interface{}{"job": string(raw)}},
	)

	assert.False(t, ack)
	assert.Zero(t, marker.completed)
	assert.Zero(t, marker.failed)
}

func TestProcessWebhookMessage_ExhaustedAcksAndMarksFailed(t *testing.T) {
	marker := &fakeMarker{}
	job := webhook.Job{ID: uuid.New(), MerchantID: uuid.New(), Event: "payment.failed", Attempt: 5}
	raw, err := json.Marshal(job)
	require.NoError(t, err)

	ack := processWebhookMessage(
		context.Background(), zerolog.Nop(), testMetrics(), marker,
		func(ctx context.Context, j webhook.Job) (webhookApp.Disposition, error) {
			return webhookApp.DispositionExhausted, nil
		},
		redis.XMessage{ID: "9-1", Values: map[string]interface{}{"job": string(raw)}},
	)

	assert.True(t, ack)
	assert.Equal(t, 1, marker.failed)
}

func TestAckMessage_LogsAndContinuesOnError(t *testing.T) {
	consumer := &fakeConsumer{ackErr: errors.New("connection reset")}

	// Must not panic; the failure is logged and the message is simply
	// redelivered later.
	ackMessage(context.Background(), zerolog.Nop(), consumer, "3-0")
	assert.Empty(t, consumer.acked)
}
