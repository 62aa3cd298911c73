package merchant

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Merchant is a tenant of the platform. Webhook configuration is optional;
// a merchant without an endpoint simply never receives webhooks.
type Merchant struct {
	ID            uuid.UUID
	Name          string
	WebhookURL    *string
	WebhookSecret *string
	CreatedAt     time.Time
}

// Endpoint is a merchant's webhook delivery target.
type Endpoint struct {
	URL    string
	Secret string
}

// Repository defines the interface for merchant persistence
type Repository interface {
	// GetByID retrieves a merchant by ID.
	GetByID(ctx context.Context, id uuid.UUID) (*Merchant, error)

	// GetEndpoint returns the merchant's webhook endpoint, or (nil, nil)
	// when no endpoint is configured.
	GetEndpoint(ctx context.Context, merchantID uuid.UUID) (*Endpoint, error)
}
