package refund

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainErrors "github.com/rbarroso/clearway/internal/domain/errors"
)

func TestMarkProcessed(t *testing.T) {
	r := New(uuid.New(), uuid.New(), 500, "duplicate charge", nil)
	require.Equal(t, StatusPending, r.Status)

	at := time.Now().UTC()
	require.NoError(t, r.MarkProcessed(at))
	assert.Equal(t, StatusProcessed, r.Status)
	require.NotNil(t, r.ProcessedAt)
	assert.Equal(t, at, *r.ProcessedAt)

	// Terminal rows reject further transitions.
	err := r.MarkProcessed(time.Now())
	require.Error(t, err)
	assert.True(t, errors.Is(err, domainErrors.ErrInvalidTransition))
}

func TestCountsAgainstLimit(t *testing.T) {
	tests := []struct {
		status Status
		counts bool
	}{
		{StatusPending, true},
		{StatusProcessed, true},
		{StatusFailed, false},
		{StatusCancelled, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			r := New(uuid.New(), uuid.New(), 500, "", nil)
			r.Status = tt.status
			assert.Equal(t, tt.counts, r.CountsAgainstLimit())
		})
	}
}
