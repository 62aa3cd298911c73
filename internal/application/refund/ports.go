package refund

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rbarroso/clearway/internal/domain/webhook"
)

// TransactionManager defines the interface for transaction management.
// This is an application-layer port, not a domain concern.
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// Enqueuer publishes refund-processing jobs.
type Enqueuer interface {
	EnqueueRefund(ctx context.Context, refundID uuid.UUID) error
}

// WebhookEnqueuer publishes webhook-delivery jobs.
type WebhookEnqueuer interface {
	EnqueueWebhook(ctx context.Context, job webhook.Job, delay time.Duration) error
}

// IdempotencySettings controls the idempotency claim behavior, keyed
// independently from payment keys.
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
