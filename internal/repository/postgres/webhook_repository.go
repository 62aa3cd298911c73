package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	domainErrors "github.com/rbarroso/clearway/internal/domain/errors"
	"github.com/rbarroso/clearway/internal/domain/webhook"
)

const attemptColumns = `id, merchant_id, event, payload, status, attempt_count, last_attempt_at, next_retry_at, response_status, created_at`

// WebhookRepository implements webhook.Repository using PostgreSQL.
type WebhookRepository struct {
	pool *pgxpool.Pool
}

// NewWebhookRepository creates a new WebhookRepository.
func NewWebhookRepository(pool *pgxpool.Pool) *WebhookRepository {
	return &WebhookRepository{pool: pool}
}

func (r *WebhookRepository) db(ctx context.Context) DBTX {
	return ConnFromCtx(ctx, r.pool)
}

// Append inserts a new attempt record. Rows are never updated.
func (r *WebhookRepository) Append(ctx context.Context, a *webhook.Attempt) error {
	_, err := r.db(ctx).Exec(ctx,
		`INSERT INTO webhook_attempts
		 (id, merchant_id, event, payload, status, attempt_count, last_attempt_at, next_retry_at, response_status, created_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		a.ID, a.MerchantID, a.Event, a.Payload, string(a.Status), a.AttemptCount,
		a.LastAttemptAt, a.NextRetryAt, a.ResponseStatus, a.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert webhook attempt: %w", err)
	}
	return nil
}

// GetForMerchant retrieves an attempt scoped to a merchant.
func (r *WebhookRepository) GetForMerchant(ctx context.Context, merchantID, id uuid.UUID) (*webhook.Attempt, error) {
	return r.scanAttempt(r.db(ctx).QueryRow(ctx,
		`SELECT `+attemptColumns+` FROM webhook_attempts WHERE id = $1 AND merchant_id = $2`,
		id, merchantID))
}

// ListByMerchant lists attempts for a merchant, newest first.
func (r *WebhookRepository) ListByMerchant(ctx context.Context, merchantID uuid.UUID, limit, offset int) ([]*webhook.Attempt, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db(ctx).Query(ctx,
		`SELECT `+attemptColumns+` FROM webhook_attempts
		 WHERE merchant_id = $1
		 ORDER BY created_at DESC
		 LIMIT $2 OFFSET $3`, merchantID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list webhook attempts: %w", err)
	}
	defer rows.Close()

	var attempts []*webhook.Attempt
	for rows.Next() {
		a, err := r.scanAttempt(rows)
		if err != nil {
			return nil, err
		}
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}

func (r *WebhookRepository) scanAttempt(s scanner) (*webhook.Attempt, error) {
	a := &webhook.Attempt{}
	var status string
	err := s.Scan(
		&a.ID, &a.MerchantID, &a.Event, &a.Payload, &status, &a.AttemptCount,
		&a.LastAttemptAt, &a.NextRetryAt, &a.ResponseStatus, &a.CreatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, domainErrors.ErrAttemptNotFound
		}
		return nil, fmt.Errorf("scan webhook attempt: %w", err)
	}
	a.Status = webhook.Status(status)
	return a, nil
}
