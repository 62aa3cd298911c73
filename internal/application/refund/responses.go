package refund

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/rbarroso/clearway/internal/domain/refund"
)

// refundCreatedResponse is the serialized body recorded against the
// idempotency key. Replays return these exact bytes.
type refundCreatedResponse struct {
	ID        uuid.UUID `json:"id"`
	PaymentID uuid.UUID `json:"payment_id"`
	Amount    int64     `json:"amount"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

func marshalResponse(r *refund.Refund) ([]byte, error) {
	return json.Marshal(refundCreatedResponse{
		ID:        r.ID,
		PaymentID: r.PaymentID,
		Amount:    r.Amount,
		Status:    string(r.Status),
		CreatedAt: r.CreatedAt,
	})
}
