package payment

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	domainErrors "github.com/rbarroso/clearway/internal/domain/errors"
	"github.com/rbarroso/clearway/internal/domain/idempotency"
	"github.com/rbarroso/clearway/internal/domain/payment"
	"github.com/rbarroso/clearway/pkg/retry"
)

// CreatePaymentRequest holds the input for creating a payment.
type CreatePaymentRequest struct {
	MerchantID     uuid.UUID
	OrderRef       string
	Amount         int64 // minor currency units
	Method         string
	IdempotencyKey string
}

// CreatePaymentResult holds the result of creating a payment. The response
// body is serialized here so idempotent replays are byte-identical to the
// first response.
type CreatePaymentResult struct {
	Payment        *payment.Payment // nil on replay
	Replayed       bool
	ResponseStatus int
	ResponseBody   []byte
}

// CreatePaymentUseCase orchestrates payment creation: idempotency check,
// validation, ledger write, then enqueue.
type CreatePaymentUseCase struct {
	paymentRepo payment.Repository
	idem        idempotency.Store
	queue       Enqueuer
	settings    IdempotencySettings
}

// NewCreatePaymentUseCase creates a new CreatePaymentUseCase.
func NewCreatePaymentUseCase(
	paymentRepo payment.Repository,
	idem idempotency.Store,
	queue Enqueuer,
	settings IdempotencySettings,
) *CreatePaymentUseCase {
	return &CreatePaymentUseCase{
		paymentRepo: paymentRepo,
		idem:        idem,
		queue:       queue,
		settings:    settings,
	}
}

// Execute creates a payment. With an idempotency key, repeated submissions
// produce exactly one ledger row and one job; replays return the stored
// response unchanged.
func (uc *CreatePaymentUseCase) Execute(ctx context.Context, req CreatePaymentRequest) (*CreatePaymentResult, error) {
	key := req.IdempotencyKey
	if key != "" {
		claimed, existing, err := uc.idem.Claim(ctx, req.MerchantID, key, uc.settings.TTL)
		if err != nil {
			return nil, err
		}
		if !claimed {
			rec, err := awaitRecord(ctx, uc.idem, req.MerchantID, key, existing, uc.settings)
			if err != nil {
				return nil, err
			}
			return &CreatePaymentResult{
				Replayed:       true,
				ResponseStatus: rec.ResponseStatus,
				ResponseBody:   rec.ResponseBody,
			}, nil
		}
	}

	p, err := payment.New(req.MerchantID, req.OrderRef, req.Amount, req.Method)
	if err != nil {
		uc.release(ctx, req.MerchantID, key)
		return nil, err
	}

	if err := uc.paymentRepo.Create(ctx, p); err != nil {
		uc.release(ctx, req.MerchantID, key)
		return nil, err
	}

	body, err := marshalResponse(paymentCreatedResponse{
		ID:       p.ID.String(),
		OrderRef: p.OrderRef,
		Amount:   p.Amount,
		Status:   string(p.Status),
	})
	if err != nil {
		return nil, err
	}

	// Record before acknowledging so a concurrent duplicate can replay.
	if key != "" {
		if err := uc.idem.Record(ctx, req.MerchantID, key, http.StatusCreated, body); err != nil {
			return nil, err
		}
	}

	if err := retry.Do(ctx, retry.DefaultConfig(), func() error {
		return uc.queue.EnqueuePayment(ctx, p.ID)
	}); err != nil {
		return nil, fmt.Errorf("enqueue payment job: %w", err)
	}

	return &CreatePaymentResult{
		Payment:        p,
		ResponseStatus: http.StatusCreated,
		ResponseBody:   body,
	}, nil
}

func (uc *CreatePaymentUseCase) release(ctx context.Context, merchantID uuid.UUID, key string) {
	if key == "" {
		return
	}
	// Best effort: an orphaned claim expires with the TTL anyway.
	_ = uc.idem.Release(ctx, merchantID, key)
}

// awaitRecord resolves a lost claim race: the winner may still be writing
// its response, so losers poll briefly before giving up.
func awaitRecord(
	ctx context.Context,
	store idempotency.Store,
	merchantID uuid.UUID,
	key string,
	existing *idempotency.Record,
	settings IdempotencySettings,
) (*idempotency.Record, error) {
	if existing != nil && existing.Completed() {
		return existing, nil
	}

	for i := 0; i < settings.WaitAttempts; i++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(settings.WaitDelay):
		}

		rec, err := store.Lookup(ctx, merchantID, key)
		if err != nil {
			return nil, err
		}
		if rec != nil && rec.Completed() {
			return rec, nil
		}
	}
	return nil, domainErrors.ErrIdempotencyInProgress
}
