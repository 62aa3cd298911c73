package payment

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rbarroso/clearway/internal/domain/payment"
	"github.com/rbarroso/clearway/internal/domain/webhook"
	"github.com/rbarroso/clearway/internal/settlement"
)

// SettlePaymentUseCase drives the pending -> {success, failed} transition.
// Consumed jobs may arrive more than once; the guarded ledger update keeps
// terminal states monotonic, and the webhook is re-emitted on duplicates
// because the prior enqueue may not have happened.
type SettlePaymentUseCase struct {
	paymentRepo payment.Repository
	queue       WebhookEnqueuer
	outcome     settlement.Outcome
	delay       time.Duration
}

// NewSettlePaymentUseCase creates a new SettlePaymentUseCase. delay models
// settlement latency and is applied before resolving the outcome.
func NewSettlePaymentUseCase(
	paymentRepo payment.Repository,
	queue WebhookEnqueuer,
	outcome settlement.Outcome,
	delay time.Duration,
) *SettlePaymentUseCase {
	return &SettlePaymentUseCase{
		paymentRepo: paymentRepo,
		queue:       queue,
		outcome:     outcome,
		delay:       delay,
	}
}

// Execute settles a single payment by ID.
func (uc *SettlePaymentUseCase) Execute(ctx context.Context, paymentID uuid.UUID) error {
	p, err := uc.paymentRepo.GetByID(ctx, paymentID)
	if err != nil {
		return fmt.Errorf("load payment: %w", err)
	}

	if p.Status == payment.StatusPending {
		if err := wait(ctx, uc.delay); err != nil {
			return err
		}

		success, err := uc.outcome.Resolve(ctx, p.Method)
		if err != nil {
			return fmt.Errorf("resolve outcome: %w", err)
		}
		next := payment.StatusFailed
		if success {
			next = payment.StatusSuccess
		}

		applied, err := uc.paymentRepo.UpdateStatusIfPending(ctx, p.ID, next)
		if err != nil {
			return fmt.Errorf("transition payment: %w", err)
		}
		if applied {
			p.Status = next
		} else {
			// Another delivery of this job settled the row first.
			p, err = uc.paymentRepo.GetByID(ctx, p.ID)
			if err != nil {
				return fmt.Errorf("reload payment: %w", err)
			}
		}
	}

	job := webhook.NewJob(p.MerchantID, "payment."+string(p.Status), map[string]any{
		"id":        p.ID.String(),
		"order_ref": p.OrderRef,
		"amount":    p.Amount,
		"method":    p.Method,
		"status":    string(p.Status),
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
