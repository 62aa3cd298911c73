package refund

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository defines the interface for refund persistence
type Repository interface {
	// Create inserts a new refund row. Callers must hold the payment
	// row lock (payment.Repository.Lock) in the same transaction so the
	// outstanding-amount invariant survives concurrent writers.
	Create(ctx context.Context, r *Refund) error

	// GetByID retrieves a refund by ID regardless of merchant.
	GetByID(ctx context.Context, id uuid.UUID) (*Refund, error)

	// GetForMerchant retrieves a refund scoped to a merchant.
	GetForMerchant(ctx context.Context, merchantID, id uuid.UUID) (*Refund, error)

	// ListByPayment lists refunds for a payment, newest first.
	ListByPayment(ctx context.Context, merchantID, paymentID uuid.UUID) ([]*Refund, error)

	// SumOutstanding returns the sum of amounts of refunds counting
	// against the payment's limit (status pending or processed).
	SumOutstanding(ctx context.Context, paymentID uuid.UUID) (int64, error)

	// MarkProcessedIfPending transitions the refund to processed only when
	// still pending, stamping processed_at. Returns false when the row was
	// already terminal.
	MarkProcessedIfPending(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
}
