package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	domainErrors "github.com/rbarroso/clearway/internal/domain/errors"
	"github.com/rbarroso/clearway/internal/domain/webhook"
)

// RearmUseCase restarts delivery for a dead event. The audit log stays
// append-only: re-arming records a fresh pending row and enqueues a new
// first attempt starting the retry schedule over.
type RearmUseCase struct {
	attempts webhook.Repository
	queue    Enqueuer
}

// NewRearmUseCase creates a new RearmUseCase.
func NewRearmUseCase(attempts webhook.Repository, queue Enqueuer) *RearmUseCase {
	return &RearmUseCase{attempts: attempts, queue: queue}
}

// Execute re-arms the attempt identified by attemptID for the merchant.
// Already-delivered events cannot be re-armed.
func (uc *RearmUseCase) Execute(ctx context.Context, merchantID, attemptID uuid.UUID) (*webhook.Attempt, error) {
	a, err := uc.attempts.GetForMerchant(ctx, merchantID, attemptID)
	if err != nil {
		return nil, err
	}
	if a.Status == webhook.StatusSuccess {
		return nil, domainErrors.ErrAttemptSucceeded
	}

	var env Envelope
	if err := json.Unmarshal(a.Payload, &env); err != nil {
		return nil, fmt.Errorf("decode audited payload: %w", err)
	}

	now := time.Now().UTC()
	rearmed := &webhook.Attempt{
		ID:            uuid.New(),
		MerchantID:    a.MerchantID,
		Event:         a.Event,
		Payload:       a.Payload,
		Status:        webhook.StatusPending,
		AttemptCount:  0,
		LastAttemptAt: now,
		NextRetryAt:   &now,
		CreatedAt:     now,
	}
	if err := uc.attempts.Append(ctx, rearmed); err != nil {
		return nil, fmt.Errorf("append rearm record: %w", err)
	}

	job := webhook.NewJob(a.MerchantID, a.Event, env.Data)
	if err := uc.queue.EnqueueWebhook(ctx, job, 0); err != nil {
		return nil, fmt.Errorf("enqueue delivery job: %w", err)
	}
	return rearmed, nil
}
