package controller

import (
	"encoding/json"
	"time"

	"github.com/rbarroso/clearway/internal/domain/payment"
	"github.com/rbarroso/clearway/internal/domain/refund"
	"github.com/rbarroso/clearway/internal/domain/webhook"
	"github.com/rbarroso/clearway/internal/infrastructure/redis"
)

// --- Request DTOs ---
// DTOs handle HTTP/JSON concerns only. Controllers convert them to use case
// requests before calling business logic. Refund amounts deliberately carry
// no gt=0 tag: the eligibility checks in the use case run in a fixed order
// and positivity is the last of them.

// CreatePaymentRequest holds the input for creating a payment.
type CreatePaymentRequest struct {
	OrderRef string `json:"order_ref" validate:"required"`
	Amount   int64  `json:"amount" validate:"required,gt=0"`
	Method   string `json:"method" validate:"required,oneof=card bank_transfer wallet"`
}

// CreateRefundRequest holds the input for refunding a payment. Amount
// carries no validation tag: the eligibility checks, including
// positivity, run in a fixed order inside the use case.
type CreateRefundRequest struct {
	Amount int64  `json:"amount"`
	Reason string `json:"reason,omitempty"`
}

// --- Response DTOs ---

// ErrorBody is the code/description pair inside every error response.
type ErrorBody struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

// ErrorResponse is the envelope for all error responses.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// PaymentResponse represents a payment in API responses.
type PaymentResponse struct {
	ID        string    `json:"id"`
	OrderRef  string    `json:"order_ref"`
	Amount    int64     `json:"amount"`
	Method    string    `json:"method"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// FromPayment converts a domain payment to its API representation.
func FromPayment(p *payment.Payment) *PaymentResponse {
	return &PaymentResponse{
		ID:        p.ID.String(),
		OrderRef:  p.OrderRef,
		Amount:    p.Amount,
		Method:    p.Method,
		Status:    string(p.Status),
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}

// RefundResponse represents a refund in API responses.
type RefundResponse struct {
	ID          string     `json:"id"`
	PaymentID   string     `json:"payment_id"`
	Amount      int64      `json:"amount"`
	Reason      string     `json:"reason,omitempty"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	ProcessedAt *time.Time `json:"processed_at,omitempty"`
}

// FromRefund converts a domain refund to its API representation.
func FromRefund(r *refund.Refund) *RefundResponse {
	return &RefundResponse{
		ID:          r.ID.String(),
		PaymentID:   r.PaymentID.String(),
		Amount:      r.Amount,
		Reason:      r.Reason,
		Status:      string(r.Status),
		CreatedAt:   r.CreatedAt,
		ProcessedAt: r.ProcessedAt,
	}
}

// WebhookAttemptResponse represents a delivery attempt in API responses.
type WebhookAttemptResponse struct {
	ID             string          `json:"id"`
	Event          string          `json:"event"`
	Payload        json.RawMessage `json:"payload"`
	Status         string          `json:"status"`
	AttemptCount   int             `json:"attempt_count"`
	LastAttemptAt  time.Time       `json:"last_attempt_at"`
	NextRetryAt    *time.Time      `json:"next_retry_at,omitempty"`
	ResponseStatus *int            `json:"response_status,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

// FromAttempt converts a domain attempt to its API representation. The
// signed payload is included verbatim so merchants can replay verification.
func FromAttempt(a *webhook.Attempt) *WebhookAttemptResponse {
	return &WebhookAttemptResponse{
		ID:             a.ID.String(),
		Event:          a.Event,
		Payload:        json.RawMessage(a.Payload),
		Status:         string(a.Status),
		AttemptCount:   a.AttemptCount,
		LastAttemptAt:  a.LastAttemptAt,
		NextRetryAt:    a.NextRetryAt,
		ResponseStatus: a.ResponseStatus,
		CreatedAt:      a.CreatedAt,
	}
}

// QueueStatsResponse represents one queue's depth counters.
type QueueStatsResponse struct {
	Waiting   int64 `json:"waiting"`
	Active    int64 `json:"active"`
	Scheduled int64 `json:"scheduled,omitempty"`
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
}

// FromQueueStats converts queue stats to their API representation.
func FromQueueStats(stats map[string]redis.Stats) map[string]QueueStatsResponse {
	out := make(map[string]QueueStatsResponse, len(stats))
	for name, s := range stats {
		out[name] = QueueStatsResponse{
			Waiting:   s.Waiting,
			Active:    s.Active,
			Scheduled: s.Scheduled,
			Completed: s.Completed,
			Failed:    s.Failed,
		}
	}
	return out
}
