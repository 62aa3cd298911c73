package webhook

import (
	"time"

	"github.com/google/uuid"
)

// Status represents the outcome of a delivery attempt
type Status string

const (
	StatusPending Status = "pending"
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// Attempt is one record in the append-only delivery audit log. Attempts are
// never mutated in place; every delivery outcome appends a new row.
type Attempt struct {
	ID             uuid.UUID
	MerchantID     uuid.UUID
	Event          string
	Payload        []byte // the exact signed body as sent
	Status         Status
	AttemptCount   int
	LastAttemptAt  time.Time
	NextRetryAt    *time.Time
	ResponseStatus *int
	CreatedAt      time.Time
}

// Job is the transient work descriptor carried on the delivery queue. The
// audit log, not the queue, is the source of truth.
type Job struct {
	ID         uuid.UUID      `json:"id"`
	MerchantID uuid.UUID      `json:"merchant_id"`
	Event      string         `json:"event"`
	Data       map[string]any `json:"data"`
	Attempt    int            `json:"attempt"`
}

// NewJob creates a first-attempt delivery job for an event.
func NewJob(merchantID uuid.UUID, event string, data map[string]any) Job {
	return Job{
		ID:         uuid.New(),
		MerchantID: merchantID,
		Event:      event,
		Data:       data,
		Attempt:    1,
	}
}
