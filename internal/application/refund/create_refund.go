package refund

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	domainErrors "github.com/rbarroso/clearway/internal/domain/errors"
	"github.com/rbarroso/clearway/internal/domain/idempotency"
	"github.com/rbarroso/clearway/internal/domain/payment"
	"github.com/rbarroso/clearway/internal/domain/refund"
	"github.com/rbarroso/clearway/pkg/retry"
)

// CreateRefundRequest holds the input for creating a refund.
type CreateRefundRequest struct {
	MerchantID     uuid.UUID
	PaymentID      uuid.UUID
	Amount         int64 // minor currency units
	Reason         string
	IdempotencyKey string
}

// CreateRefundResult holds the result of creating a refund. The response
// body is serialized here so idempotent replays are byte-identical to the
// first response.
type CreateRefundResult struct {
	Refund         *refund.Refund // nil on replay
	Replayed       bool
	ResponseStatus int
	ResponseBody   []byte
}

// CreateRefundUseCase orchestrates refund creation. Eligibility checks run
// in a fixed order: idempotency, payment existence, payment state, the
// cumulative limit, then amount validity. The limit check and the insert
// share a transaction holding a row lock on the payment, so concurrent
// requests against the same payment serialize and the total refunded
// amount can never exceed the original payment.
type CreateRefundUseCase struct {
	paymentRepo payment.Repository
	refundRepo  refund.Repository
	idem        idempotency.Store
	txManager   TransactionManager
	queue       Enqueuer
	settings    IdempotencySettings
}

// NewCreateRefundUseCase creates a new CreateRefundUseCase.
func NewCreateRefundUseCase(
	paymentRepo payment.Repository,
	refundRepo refund.Repository,
	idem idempotency.Store,
	txManager TransactionManager,
	queue Enqueuer,
	settings IdempotencySettings,
) *CreateRefundUseCase {
	return &CreateRefundUseCase{
		paymentRepo: paymentRepo,
		refundRepo:  refundRepo,
		idem:        idem,
		txManager:   txManager,
		queue:       queue,
		settings:    settings,
	}
}

// Execute creates a refund against a successful payment.
func (uc *CreateRefundUseCase) Execute(ctx context.Context, req CreateRefundRequest) (*CreateRefundResult, error) {
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
			return &CreateRefundResult{
				Replayed:       true,
				ResponseStatus: rec.ResponseStatus,
				ResponseBody:   rec.ResponseBody,
			}, nil
		}
	}

	var r *refund.Refund
	err := uc.txManager.WithTransaction(ctx, func(ctx context.Context) error {
		p, err := uc.paymentRepo.Lock(ctx, req.PaymentID)
		if err != nil {
			return err
		}
		if p.MerchantID != req.MerchantID {
			// Do not leak other merchants' payment IDs.
			return domainErrors.ErrPaymentNotFound
		}
		if p.Status != payment.StatusSuccess {
			return domainErrors.NewDomainError(
				"INVALID_PAYMENT_STATE",
				fmt.Sprintf("payment is %s, only successful payments can be refunded", p.Status),
				domainErrors.ErrInvalidPaymentState,
			)
		}

		outstanding, err := uc.refundRepo.SumOutstanding(ctx, p.ID)
		if err != nil {
			return err
		}
		if req.Amount+outstanding > p.Amount {
			return domainErrors.NewDomainError(
				"REFUND_AMOUNT_EXCEEDS_LIMIT",
				fmt.Sprintf("refund of %d plus %d already refunded exceeds payment amount %d", req.Amount, outstanding, p.Amount),
				domainErrors.ErrRefundLimitExceeded,
			)
		}
		if req.Amount <= 0 {
			return domainErrors.NewValidationError("amount", "must be greater than zero")
		}

		r = refund.New(p.ID, req.MerchantID, req.Amount, req.Reason, keyPtr(key))
		return uc.refundRepo.Create(ctx, r)
	})
	if err != nil {
		uc.release(ctx, req.MerchantID, key)
		return nil, err
	}

	body, err := marshalResponse(r)
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
		return uc.queue.EnqueueRefund(ctx, r.ID)
	}); err != nil {
		return nil, fmt.Errorf("enqueue refund job: %w", err)
	}

	return &CreateRefundResult{
		Refund:         r,
		ResponseStatus: http.StatusCreated,
		ResponseBody:   body,
	}, nil
}

func (uc *CreateRefundUseCase) release(ctx context.Context, merchantID uuid.UUID, key string) {
	if key == "" {
		return
	}
	// Best effort: an orphaned claim expires with the TTL anyway.
	_ = uc.idem.Release(ctx, merchantID, key)
}

func keyPtr(key string) *string {
	if key == "" {
		return nil
	}
	return &key
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
