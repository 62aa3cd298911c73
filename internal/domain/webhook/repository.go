package webhook

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines the interface for the delivery audit log
type Repository interface {
	// Append inserts a new attempt record. The log is append-only.
	Append(ctx context.Context, a *Attempt) error

	// GetForMerchant retrieves an attempt scoped to a merchant.
	GetForMerchant(ctx context.Context, merchantID, id uuid.UUID) (*Attempt, error)

	// ListByMerchant lists attempts for a merchant, newest first.
	ListByMerchant(ctx context.Context, merchantID uuid.UUID, limit, offset int) ([]*Attempt, error)
}
