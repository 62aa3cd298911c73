package refund

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rbarroso/clearway/internal/domain/refund"
	"github.com/rbarroso/clearway/internal/domain/webhook"
)

// SettleRefundUseCase drives the pending -> processed transition. Refunds
// against already-settled funds do not bounce, so there is no outcome to
// resolve, only processing latency. Duplicate job deliveries re-emit the
// webhook because the prior enqueue may not have happened.
type SettleRefundUseCase struct {
	refundRepo refund.Repository
	queue      WebhookEnqueuer
	delay      time.Duration
}

// NewSettleRefundUseCase creates a new SettleRefundUseCase. delay models
// processing latency and is applied before the transition.
func NewSettleRefundUseCase(
	refundRepo refund.Repository,
	queue WebhookEnqueuer,
	delay time.Duration,
) *SettleRefundUseCase {
	return &SettleRefundUseCase{
		refundRepo: refundRepo,
		queue:      queue,
		delay:      delay,
	}
}

// Execute processes a single refund by ID.
func (uc *SettleRefundUseCase) Execute(ctx context.Context, refundID uuid.UUID) error {
	r, err := uc.refundRepo.GetByID(ctx, refundID)
	if err != nil {
		return fmt.Errorf("load refund: %w", err)
	}

	if r.Status == refund.StatusPending {
		if err := wait(ctx, uc.delay); err != nil {
			return err
		}

		now := time.Now().UTC()
		applied, err := uc.refundRepo.MarkProcessedIfPending(ctx, r.ID, now)
		if err != nil {
			return fmt.Errorf("transition refund: %w", err)
		}
		if applied {
			r.Status = refund.StatusProcessed
			r.ProcessedAt = &now
		} else {
			// Another delivery of this job transitioned the row first.
			r, err = uc.refundRepo.GetByID(ctx, r.ID)
			if err != nil {
				return fmt.Errorf("reload refund: %w", err)
			}
		}
	}

	// Cancelled or failed refunds produce no event.
	if r.Status != refund.StatusProcessed {
		return nil
	}

	job := webhook.NewJob(r.MerchantID, "refund.processed", map[string]any{
		"id":         r.ID.String(),
		"payment_id": r.PaymentID.String(),
		"amount":     r.Amount,
		"status":     string(r.Status),
	})
	if err := uc.queue.EnqueueWebhook(ctx, job, 0); err != nil {
		return fmt.Errorf("enqueue webhook job: %w", err)
	}
	return nil
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
