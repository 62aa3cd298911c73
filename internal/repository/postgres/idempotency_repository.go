package postgres

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	domainErrors "github.com/rbarroso/clearway/internal/domain/errors"
	"github.com/rbarroso/clearway/internal/domain/idempotency"
)

// IdempotencyRepository implements idempotency.Store using PostgreSQL.
// Claims use INSERT ... ON CONFLICT DO NOTHING so exactly one of N
// concurrent requests for the same (merchant, key) wins the reservation.
type IdempotencyRepository struct {
	pool *pgxpool.Pool
}

func NewIdempotencyRepository(pool *pgxpool.Pool) *IdempotencyRepository {
	return &IdempotencyRepository{pool: pool}
}

func (r *IdempotencyRepository) db(ctx context.Context) DBTX {
	return ConnFromCtx(ctx, r.pool)
}

// Lookup returns the non-expired record for (merchant, key), or (nil, nil).
func (r *IdempotencyRepository) Lookup(ctx context.Context, merchantID uuid.UUID, key string) (*idempotency.Record, error) {
	rec := &idempotency.Record{}
	err := r.db(ctx).QueryRow(ctx,
		`SELECT key, merchant_id, COALESCE(response_status, 0), response_body, created_at, expires_at
		 FROM idempotency_keys
		 WHERE key = $1 AND merchant_id = $2 AND expires_at > NOW()`, key, merchantID,
	).Scan(&rec.Key, &rec.MerchantID, &rec.ResponseStatus, &rec.ResponseBody, &rec.CreatedAt, &rec.ExpiresAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil // not found
		}
		return nil, fmt.Errorf("lookup idempotency key: %w", err)
	}
	return rec, nil
}

// Claim atomically reserves the key. Losers get the existing record back.
func (r *IdempotencyRepository) Claim(ctx context.Context, merchantID uuid.UUID, key string, ttl time.Duration) (bool, *idempotency.Record, error) {
	now := time.Now()
	tag, err := r.db(ctx).Exec(ctx,
		`INSERT INTO idempotency_keys (key, merchant_id, created_at, expires_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (key, merchant_id) DO NOTHING`,
		key, merchantID, now, now.Add(ttl),
	)
	if err != nil {
		return false, nil, fmt.Errorf("claim idempotency key: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return true, nil, nil
	}

	existing, err := r.Lookup(ctx, merchantID, key)
	if err != nil {
		return false, nil, err
	}
	return false, existing, nil
}

// Record completes a claim. Write-once: a completed record with a
// different response surfaces the key reuse as a conflict.
func (r *IdempotencyRepository) Record(ctx context.Context, merchantID uuid.UUID, key string, status int, body []byte) error {
	tag, err := r.db(ctx).Exec(ctx,
		`UPDATE idempotency_keys
		 SET response_status = $1, response_body = $2
		 WHERE key = $3 AND merchant_id = $4 AND response_status IS NULL`,
		status, body, key, merchantID,
	)
	if err != nil {
		return fmt.Errorf("record idempotency response: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	existing, err := r.Lookup(ctx, merchantID, key)
	if err != nil {
		return err
	}
	if existing == nil {
		// Claim expired between write and check; treat as lost.
		return domainErrors.ErrUnavailable
	}
	if existing.ResponseStatus == status && bytes.Equal(existing.ResponseBody, body) {
		return nil
	}
	return domainErrors.ErrIdempotencyConflict
}

// Release drops an unfinished claim so a failed request can retry.
func (r *IdempotencyRepository) Release(ctx context.Context, merchantID uuid.UUID, key string) error {
	_, err := r.db(ctx).Exec(ctx,
		`DELETE FROM idempotency_keys
		 WHERE key = $1 AND merchant_id = $2 AND response_status IS NULL`,
		key, merchantID,
	)
	if err != nil {
		return fmt.Errorf("release idempotency claim: %w", err)
	}
	return nil
}

// Cleanup physically deletes expired records.
func (r *IdempotencyRepository) Cleanup(ctx context.Context) (int64, error) {
	tag, err := r.db(ctx).Exec(ctx, `DELETE FROM idempotency_keys WHERE expires_at < NOW()`)
	if err != nil {
		return 0, fmt.Errorf("cleanup idempotency keys: %w", err)
	}
	return tag.RowsAffected(), nil
}
