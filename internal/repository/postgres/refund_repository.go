package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	domainErrors "github.com/rbarroso/clearway/internal/domain/errors"
	"github.com/rbarroso/clearway/internal/domain/refund"
)

const refundColumns = `id, payment_id, merchant_id, amount, reason, status, idempotency_key, created_at, processed_at`

// RefundRepository implements refund.Repository using PostgreSQL.
type RefundRepository struct {
	pool *pgxpool.Pool
}

// NewRefundRepository creates a new RefundRepository.
func NewRefundRepository(pool *pgxpool.Pool) *RefundRepository {
	return &RefundRepository{pool: pool}
}

func (r *RefundRepository) db(ctx context.Context) DBTX {
	return ConnFromCtx(ctx, r.pool)
}

// Create inserts a new refund. The caller must hold the payment row lock
// in the same transaction; the unique index on idempotency_key backstops
// duplicate submissions.
func (r *RefundRepository) Create(ctx context.Context, rf *refund.Refund) error {
	_, err := r.db(ctx).Exec(ctx,
		`INSERT INTO refunds (id, payment_id, merchant_id, amount, reason, status, idempotency_key, created_at, processed_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		rf.ID, rf.PaymentID, rf.MerchantID, rf.Amount, rf.Reason, string(rf.Status), rf.IdempotencyKey, rf.CreatedAt, rf.ProcessedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return domainErrors.ErrIdempotencyConflict
		}
		return fmt.Errorf("insert refund: %w", err)
	}
	return nil
}

// GetByID retrieves a refund by its ID.
func (r *RefundRepository) GetByID(ctx context.Context, id uuid.UUID) (*refund.Refund, error) {
	return r.scanRefund(r.db(ctx).QueryRow(ctx,
		`SELECT `+refundColumns+` FROM refunds WHERE id = $1`, id))
}

// GetForMerchant retrieves a refund scoped to a merchant.
func (r *RefundRepository) GetForMerchant(ctx context.Context, merchantID, id uuid.UUID) (*refund.Refund, error) {
	return r.scanRefund(r.db(ctx).QueryRow(ctx,
		`SELECT `+refundColumns+` FROM refunds WHERE id = $1 AND merchant_id = $2`, id, merchantID))
}

// ListByPayment lists refunds for a payment, newest first.
func (r *RefundRepository) ListByPayment(ctx context.Context, merchantID, paymentID uuid.UUID) ([]*refund.Refund, error) {
	rows, err := r.db(ctx).Query(ctx,
		`SELECT `+refundColumns+` FROM refunds
		 WHERE payment_id = $1 AND merchant_id = $2
		 ORDER BY created_at DESC`, paymentID, merchantID)
	if err != nil {
		return nil, fmt.Errorf("list refunds: %w", err)
	}
	defer rows.Close()

	var refunds []*refund.Refund
	for rows.Next() {
		rf, err := r.scanRefund(rows)
		if err != nil {
			return nil, err
		}
		refunds = append(refunds, rf)
	}
	return refunds, rows.Err()
}

// SumOutstanding returns the total refund amount counted against the
// payment's limit. Run inside the transaction that holds the payment row
// lock so concurrent writers see a serialized view.
func (r *RefundRepository) SumOutstanding(ctx context.Context, paymentID uuid.UUID) (int64, error) {
	var sum int64
	err := r.db(ctx).QueryRow(ctx,
		`SELECT COALESCE(SUM(amount), 0) FROM refunds
		 WHERE payment_id = $1 AND status IN ('pending', 'processed')`, paymentID,
	).Scan(&sum)
	if err != nil {
		return 0, fmt.Errorf("sum outstanding refunds: %w", err)
	}
	return sum, nil
}

// MarkProcessedIfPending stamps the refund processed. The status guard
// keeps the transition monotonic under duplicate job delivery.
func (r *RefundRepository) MarkProcessedIfPending(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	tag, err := r.db(ctx).Exec(ctx,
		`UPDATE refunds SET status = 'processed', processed_at = $1 WHERE id = $2 AND status = 'pending'`,
		at, id,
	)
	if err != nil {
		return false, fmt.Errorf("mark refund processed: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *RefundRepository) scanRefund(s scanner) (*refund.Refund, error) {
	rf := &refund.Refund{}
	var status string
	err := s.Scan(
		&rf.ID, &rf.PaymentID, &rf.MerchantID, &rf.Amount, &rf.Reason, &status,
		&rf.IdempotencyKey, &rf.CreatedAt, &rf.ProcessedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, domainErrors.ErrRefundNotFound
		}
		return nil, fmt.Errorf("scan refund: %w", err)
	}
	rf.Status = refund.Status(status)
	return rf, nil
}
