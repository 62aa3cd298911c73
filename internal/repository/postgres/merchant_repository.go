package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	domainErrors "github.com/rbarroso/clearway/internal/domain/errors"
	"github.com/rbarroso/clearway/internal/domain/merchant"
)

// MerchantRepository implements merchant.Repository using PostgreSQL.
type MerchantRepository struct {
	pool *pgxpool.Pool
}

// NewMerchantRepository creates a new MerchantRepository.
func NewMerchantRepository(pool *pgxpool.Pool) *MerchantRepository {
	return &MerchantRepository{pool: pool}
}

func (r *MerchantRepository) db(ctx context.Context) DBTX {
	return ConnFromCtx(ctx, r.pool)
}

// GetByID retrieves a merchant by ID.
func (r *MerchantRepository) GetByID(ctx context.Context, id uuid.UUID) (*merchant.Merchant, error) {
	m := &merchant.Merchant{}
	err := r.db(ctx).QueryRow(ctx,
		`SELECT id, name, webhook_url, webhook_secret, created_at FROM merchants WHERE id = $1`, id,
	).Scan(&m.ID, &m.Name, &m.WebhookURL, &m.WebhookSecret, &m.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, domainErrors.ErrMerchantNotFound
		}
		return nil, fmt.Errorf("get merchant: %w", err)
	}
	return m, nil
}

// GetEndpoint returns the merchant's webhook endpoint, or (nil, nil) when
// the merchant has no endpoint configured.
func (r *MerchantRepository) GetEndpoint(ctx context.Context, merchantID uuid.UUID) (*merchant.Endpoint, error) {
	var url, secret *string
	err := r.db(ctx).QueryRow(ctx,
		`SELECT webhook_url, webhook_secret FROM merchants WHERE id = $1`, merchantID,
	).Scan(&url, &secret)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, domainErrors.ErrMerchantNotFound
		}
		return nil, fmt.Errorf("get merchant endpoint: %w", err)
	}
	if url == nil || *url == "" || secret == nil {
		return nil, nil
	}
	return &merchant.Endpoint{URL: *url, Secret: *secret}, nil
}
