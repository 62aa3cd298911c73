package payment

import (
	"time"

	"github.com/google/uuid"
	"github.com/rbarroso/clearway/internal/domain/errors"
)

// Status represents the payment status in the state machine
type Status string

const (
	StatusPending Status = "pending"
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// Payment represents a payment intent owned by a merchant. The amount is
// immutable after creation; only the worker moves the status.
type Payment struct {
	ID         uuid.UUID
	MerchantID uuid.UUID
	OrderRef   string
	Amount     int64 // minor currency units
	Method     string
	Status     Status
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// New creates a pending payment after validating the intent.
func New(merchantID uuid.UUID, orderRef string, amount int64, method string) (*Payment, error) {
	if amount <= 0 {
		return nil, errors.NewValidationError("amount", "must be greater than 0")
	}
	if method == "" {
		return nil, errors.NewValidationError("method", "cannot be empty")
	}
	if orderRef == "" {
		return nil, errors.NewValidationError("order_ref", "cannot be empty")
	}

	now := time.Now()
	return &Payment{
		ID:         uuid.New(),
		MerchantID: merchantID,
		OrderRef:   orderRef,
		Amount:     amount,
		Method:     method,
		Status:     StatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

// IsTerminal reports whether the payment reached a terminal status.
func (p *Payment) IsTerminal() bool {
	return p.Status == StatusSuccess || p.Status == StatusFailed
}

// CanTransitionTo checks if the payment can transition to the given status.
// The only legal transition is pending -> {success, failed}.
func (p *Payment) CanTransitionTo(newStatus Status) bool {
	if p.Status != StatusPending {
		return false
	}
	return newStatus == StatusSuccess || newStatus == StatusFailed
}

// TransitionTo transitions the payment to a new status.
func (p *Payment) TransitionTo(newStatus Status) error {
	if !p.CanTransitionTo(newStatus) {
		return errors.NewDomainError(
			"INVALID_TRANSITION",
			"cannot transition from "+string(p.Status)+" to "+string(newStatus),
			errors.ErrInvalidTransition,
		)
	}
	p.Status = newStatus
	p.UpdatedAt = time.Now()
	return nil
}
