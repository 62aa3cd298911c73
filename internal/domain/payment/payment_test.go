package payment

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainErrors "github.com/rbarroso/clearway/internal/domain/errors"
)

func TestNew(t *testing.T) {
	merchantID := uuid.New()

	tests := []struct {
		name      string
		orderRef  string
		amount    int64
		method    string
		wantField string
	}{
		{name: "valid", orderRef: "order-1", amount: 1000, method: "card"},
		{name: "zero amount", orderRef: "order-1", amount: 0, method: "card", wantField: "amount"},
		{name: "negative amount", orderRef: "order-1", amount: -500, method: "card", wantField: "amount"},
		{name: "missing method", orderRef: "order-1", amount: 1000, method: "", wantField: "method"},
		{name: "missing order ref", orderRef: "", amount: 1000, method: "card", wantField: "order_ref"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := New(merchantID, tt.orderRef, tt.amount, tt.method)

			if tt.wantField != "" {
				var ve *domainErrors.ValidationError
				require.True(t, errors.As(err, &ve))
				assert.Equal(t, tt.wantField, ve.Field)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, StatusPending, p.Status)
			assert.Equal(t, merchantID, p.MerchantID)
			assert.False(t, p.IsTerminal())
		})
	}
}

func TestTransitionTo(t *testing.T) {
	tests := []struct {
		name    string
		from    Status
		to      Status
		wantErr bool
	}{
		{name: "pending to success", from: StatusPending, to: StatusSuccess},
		{name: "pending to failed", from: StatusPending, to: StatusFailed},
		{name: "success is terminal", from: StatusSuccess, to: StatusFailed, wantErr: true},
		{name: "failed is terminal", from: StatusFailed, to: StatusSuccess, wantErr: true},
		{name: "pending to pending", from: StatusPending, to: StatusPending, wantErr: true},
		{name: "success to success", from: StatusSuccess, to: StatusSuccess, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := New(uuid.New(), "order-1", 1000, "card")
			require.NoError(t, err)
			p.Status = tt.from

			err = p.TransitionTo(tt.to)

			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, domainErrors.ErrInvalidTransition))
				assert.Equal(t, tt.from, p.Status, "status must not change on rejected transition")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.to, p.Status)
			assert.True(t, p.IsTerminal())
		})
	}
}
