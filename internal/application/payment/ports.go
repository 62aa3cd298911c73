package payment

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rbarroso/clearway/internal/domain/webhook"
)

// Enqueuer publishes payment-processing jobs.
// This is an application-layer port; the Redis queue satisfies it.
type Enqueuer interface {
	EnqueuePayment(ctx context.Context, paymentID uuid.UUID) error
}

// WebhookEnqueuer publishes webhook-delivery jobs.
type WebhookEnqueuer interface {
	EnqueueWebhook(ctx context.Context, job webhook.Job, delay time.Duration) error
}

// IdempotencySettings controls the idempotency claim behavior: record TTL
// and the bounded wait losers use while the winner finishes its write.
type IdempotencySettings struct {
	TTL          time.Duration
	WaitAttempts int
	WaitDelay    time.Duration
}

// DefaultIdempotencySettings returns the production defaults.
func DefaultIdempotencySettings() IdempotencySettings {
	return IdempotencySettings{
		TTL:          24 * time.Hour,
		WaitAttempts: 5,
		WaitDelay:    100 * time.Millisecond,
	}
}
