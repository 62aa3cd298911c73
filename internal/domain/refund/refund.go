package refund

import (
	"time"

	"github.com/google/uuid"
	"github.com/rbarroso/clearway/internal/domain/errors"
)

// Status represents the refund status in the state machine
type Status string

const (
	StatusPending   Status = "pending"
	StatusProcessed Status = "processed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Refund represents a partial or full refund against a payment.
type Refund struct {
	ID             uuid.UUID
	PaymentID      uuid.UUID
	MerchantID     uuid.UUID
	Amount         int64 // minor currency units
	Reason         string
	Status         Status
	IdempotencyKey *string
	CreatedAt      time.Time
	ProcessedAt    *time.Time
}

// New creates a pending refund. Amount validation happens in the
// orchestrator because the limit check must be observed first.
func New(paymentID, merchantID uuid.UUID, amount int64, reason string, idempotencyKey *string) *Refund {
	return &Refund{
		ID:             uuid.New(),
		PaymentID:      paymentID,
		MerchantID:     merchantID,
		Amount:         amount,
		Reason:         reason,
		Status:         StatusPending,
		IdempotencyKey: idempotencyKey,
		CreatedAt:      time.Now(),
	}
}

// CountsAgainstLimit reports whether this refund's amount is held against
// the payment's outstanding total.
func (r *Refund) CountsAgainstLimit() bool {
	return r.Status == StatusPending || r.Status == StatusProcessed
}

// IsTerminal reports whether the refund reached a terminal status.
func (r *Refund) IsTerminal() bool {
	return r.Status != StatusPending
}

// MarkProcessed transitions the refund to processed.
func (r *Refund) MarkProcessed(at time.Time) error {
	if r.Status != StatusPending {
		return errors.NewDomainError(
			"INVALID_TRANSITION",
			"cannot process refund in status "+string(r.Status),
			errors.ErrInvalidTransition,
		)
	}
	r.Status = StatusProcessed
	r.ProcessedAt = &at
	return nil
}
