package webhook

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rbarroso/clearway/internal/domain/merchant"
	"github.com/rbarroso/clearway/internal/domain/webhook"
)

// Disposition classifies what a delivery pass did with a job.
type Disposition int

const (
	// DispositionDropped means the merchant has no endpoint configured and
	// the event was discarded without an audit row.
	DispositionDropped Disposition = iota
	// DispositionDelivered means the endpoint acknowledged with a 2xx.
	DispositionDelivered
	// DispositionRetried means delivery failed and a follow-up attempt was
	// scheduled.
	DispositionRetried
	// DispositionExhausted means the final attempt failed and the event is
	// terminally dead.
	DispositionExhausted
)

func (d Disposition) String() string {
	switch d {
	case DispositionDropped:
		return "dropped"
	case DispositionDelivered:
		return "delivered"
	case DispositionRetried:
		return "retried"
	case DispositionExhausted:
		return "exhausted"
	default:
		return "unknown"
	}
}

// Enqueuer schedules follow-up delivery jobs.
type Enqueuer interface {
	EnqueueWebhook(ctx context.Context, job webhook.Job, delay time.Duration) error
}

// DelivererConfig holds delivery tuning.
type DelivererConfig struct {
	Timeout         time.Duration
	MaxAttempts     int
	BackoffSchedule []time.Duration
	SignatureHeader string
}

// DefaultDelivererConfig returns the production defaults.
func DefaultDelivererConfig() DelivererConfig {
	return DelivererConfig{
		Timeout:     5 * time.Second,
		MaxAttempts: 5,
		BackoffSchedule: []time.Duration{
			0,
			60 * time.Second,
			300 * time.Second,
			1800 * time.Second,
			7200 * time.Second,
		},
		SignatureHeader: "X-Clearway-Signature",
	}
}

// Deliverer pushes events to merchant endpoints. Every attempt, successful
// or not, appends one row to the audit log; the queue only carries the
// transient job.
type Deliverer struct {
	merchants merchant.Repository
	attempts  webhook.Repository
	queue     Enqueuer
	breakers  *BreakerRegistry
	client    *http.Client
	cfg       DelivererConfig
}

// NewDeliverer creates a new Deliverer.
func NewDeliverer(
	merchants merchant.Repository,
	attempts webhook.Repository,
	queue Enqueuer,
	breakers *BreakerRegistry,
	cfg DelivererConfig,
) *Deliverer {
	return &Deliverer{
		merchants: merchants,
		attempts:  attempts,
		queue:     queue,
		breakers:  breakers,
		client:    &http.Client{Timeout: cfg.Timeout},
		cfg:       cfg,
	}
}

// Deliver executes one delivery attempt for a job.
func (d *Deliverer) Deliver(ctx context.Context, job webhook.Job) (Disposition, error) {
	endpoint, err := d.merchants.GetEndpoint(ctx, job.MerchantID)
	if err != nil {
		return DispositionDropped, fmt.Errorf("load endpoint: %w", err)
	}
	if endpoint == nil {
		return DispositionDropped, nil
	}

	envelope := Envelope{
		Event:     job.Event,
		Timestamp: time.Now().Unix(),
		Data:      job.Data,
	}
	body, err := envelope.Marshal()
	if err != nil {
		return DispositionDropped, fmt.Errorf("marshal envelope: %w", err)
	}

	status, postErr := d.post(ctx, job.MerchantID.String(), endpoint, body)

	now := time.Now().UTC()
	attempt := &webhook.Attempt{
		ID:            uuid.New(),
		MerchantID:    job.MerchantID,
		Event:         job.Event,
		Payload:       body,
		AttemptCount:  job.Attempt,
		LastAttemptAt: now,
		CreatedAt:     now,
	}
	if status != 0 {
		attempt.ResponseStatus = &status
	}

	if postErr == nil && status >= 200 && status < 300 {
		attempt.Status = webhook.StatusSuccess
		if err := d.attempts.Append(ctx, attempt); err != nil {
			return DispositionDelivered, fmt.Errorf("append attempt: %w", err)
		}
		return DispositionDelivered, nil
	}

	if job.Attempt >= d.cfg.MaxAttempts {
		attempt.Status = webhook.StatusFailed
		if err := d.attempts.Append(ctx, attempt); err != nil {
			return DispositionExhausted, fmt.Errorf("append attempt: %w", err)
		}
		return DispositionExhausted, nil
	}

	delay := d.delayFor(job.Attempt)
	nextRetry := now.Add(delay)
	attempt.Status = webhook.StatusPending
	attempt.NextRetryAt = &nextRetry
	if err := d.attempts.Append(ctx, attempt); err != nil {
		return DispositionRetried, fmt.Errorf("append attempt: %w", err)
	}

	next := job
	next.Attempt++
	if err := d.queue.EnqueueWebhook(ctx, next, delay); err != nil {
		return DispositionRetried, fmt.Errorf("enqueue retry: %w", err)
	}
	return DispositionRetried, nil
}

// post sends the signed body through the merchant's circuit breaker.
// Transport errors feed the breaker; HTTP status codes do not, a responsive
// endpoint returning 500s is still a responsive endpoint.
func (d *Deliverer) post(ctx context.Context, merchantID string, endpoint *merchant.Endpoint, body []byte) (int, error) {
	cb := d.breakers.Get(merchantID)
	return cb.Execute(func() (int, error) {
		reqCtx, cancel := context.WithTimeout(ctx, d.cfg.Timeout)
		defer cancel()

		req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, endpoint.URL, bytes.NewReader(body))
		if err != nil {
			return 0, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set(d.cfg.SignatureHeader, Sign(endpoint.Secret, body))

		resp, err := d.client.Do(req)
		if err != nil {
			return 0, err
		}
		defer resp.Body.Close()
		return resp.StatusCode, nil
	})
}

// delayFor returns the wait before the attempt following attempt n. The
// schedule is indexed by attempt number and its last entry repeats.
func (d *Deliverer) delayFor(attempt int) time.Duration {
	if len(d.cfg.BackoffSchedule) == 0 {
		return 0
	}
	idx := attempt
	if idx >= len(d.cfg.BackoffSchedule) {
		idx = len(d.cfg.BackoffSchedule) - 1
	}
	return d.cfg.BackoffSchedule[idx]
}
