package idempotency

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Record maps a (merchant, key) pair to a previously computed response.
// A record starts as a claim (no response yet) and is completed exactly
// once; replays within the TTL return the stored response verbatim.
type Record struct {
	Key            string
	MerchantID     uuid.UUID
	ResponseStatus int
	ResponseBody   []byte
	CreatedAt      time.Time
	ExpiresAt      time.Time
}

// Completed reports whether the winning request has stored its response.
func (r *Record) Completed() bool {
	return r.ResponseStatus != 0
}

// Store is the idempotency contract used by the orchestrator.
type Store interface {
	// Lookup returns the non-expired record for (merchant, key), or
	// (nil, nil) when absent.
	Lookup(ctx context.Context, merchantID uuid.UUID, key string) (*Record, error)

	// Claim atomically reserves the key. It returns claimed=true when this
	// caller won the insert; otherwise the existing record is returned so
	// losers can replay the winner's response.
	Claim(ctx context.Context, merchantID uuid.UUID, key string, ttl time.Duration) (claimed bool, existing *Record, err error)

	// Record completes a claim with the response to replay. It fails with
	// ErrIdempotencyConflict when the record already holds a different
	// response.
	Record(ctx context.Context, merchantID uuid.UUID, key string, status int, body []byte) error

	// Release drops an unfinished claim so a failed request can be retried
	// with the same key.
	Release(ctx context.Context, merchantID uuid.UUID, key string) error
}
