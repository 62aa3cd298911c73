package settlement

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimulator_RateBounds(t *testing.T) {
	s := NewSimulator(map[string]float64{
		"card":          1.0,
		"bank_transfer": 0.0,
	}, WithSeed(1))

	for i := 0; i < 100; i++ {
		ok, err := s.Resolve(context.Background(), "card")
		require.NoError(t, err)
		assert.True(t, ok, "rate 1.0 always settles")

		ok, err = s.Resolve(context.Background(), "bank_transfer")
		require.NoError(t, err)
		assert.False(t, ok, "rate 0.0 never settles")
	}
}

func TestSimulator_DefaultRateForUnknownMethod(t *testing.T) {
	s := NewSimulator(nil, WithSeed(1), WithDefaultRate(1.0))

	ok, err := s.Resolve(context.Background(), "carrier_pigeon")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSimulator_CancelledContext(t *testing.T) {
	s := NewSimulator(nil, WithSeed(1))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Resolve(ctx, "card")
	assert.Error(t, err)
}
