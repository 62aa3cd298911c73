package payment

import (
	"encoding/json"
	"fmt"
)

// paymentCreatedResponse is the acknowledgement payload. It is serialized
// in the use case so the stored idempotency response and the live response
// are the same bytes.
type paymentCreatedResponse struct {
	ID       string `json:"id"`
	OrderRef string `json:"order_ref"`
	Amount   int64  `json:"amount"`
	Status   string `json:"status"`
}

func marshalResponse(v any) ([]byte, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal response: %w", err)
	}
	return body, nil
}
