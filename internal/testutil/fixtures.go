package testutil

import (
	"time"

	"github.com/google/uuid"

	"github.com/rbarroso/clearway/internal/domain/merchant"
	"github.com/rbarroso/clearway/internal/domain/payment"
	"github.com/rbarroso/clearway/internal/domain/refund"
)

func NewTestPayment(merchantID uuid.UUID, amount int64, status payment.Status) *payment.Payment {
	now := time.Now().UTC()
	return &payment.Payment{
		ID:         uuid.New(),
		MerchantID: merchantID,
		OrderRef:   "order-" + uuid.NewString()[:8],
		Amount:     amount,
		Method:     "card",
		Status:     status,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func NewTestRefund(p *payment.Payment, amount int64, status refund.Status) *refund.Refund {
	r := refund.New(p.ID, p.MerchantID, amount, "requested by customer", nil)
	r.Status = status
	if status == refund.StatusProcessed {
		at := time.Now().UTC()
		r.ProcessedAt = &at
	}
	return r
}

func NewTestMerchant(webhookURL, secret string) *merchant.Merchant {
	m := &merchant.Merchant{
		ID:        uuid.New(),
		Name:      "Test Merchant",
		CreatedAt: time.Now().UTC(),
	}
	if webhookURL != "" {
		m.WebhookURL = &webhookURL
		m.WebhookSecret = &secret
	}
	return m
}

func StrPtr(s string) *string {
	return &s
}
