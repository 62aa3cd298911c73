package payment

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines the interface for payment persistence
type Repository interface {
	// Create inserts a new payment row.
	Create(ctx context.Context, p *Payment) error

	// GetByID retrieves a payment by ID regardless of merchant. Used by
	// workers consuming jobs that carry only the payment id.
	GetByID(ctx context.Context, id uuid.UUID) (*Payment, error)

	// GetForMerchant retrieves a payment scoped to a merchant.
	GetForMerchant(ctx context.Context, merchantID, id uuid.UUID) (*Payment, error)

	// Lock loads the payment row with a row-level lock. Must be called
	// inside a transaction; serializes refund creation per payment.
	Lock(ctx context.Context, id uuid.UUID) (*Payment, error)

	// UpdateStatusIfPending transitions the payment only when its current
	// status is pending. Returns false when the row was already terminal.
	UpdateStatusIfPending(ctx context.Context, id uuid.UUID, status Status) (bool, error)
}
