package settlement

import (
	"context"
	"math/rand"
	"sync"
)

// Outcome resolves whether a payment settles successfully. Implementations
// must be safe for concurrent use by multiple workers.
type Outcome interface {
	Resolve(ctx context.Context, method string) (bool, error)
}

// OutcomeFunc adapts a plain function to the Outcome interface.
type OutcomeFunc func(ctx context.Context, method string) (bool, error)

func (f OutcomeFunc) Resolve(ctx context.Context, method string) (bool, error) {
	return f(ctx, method)
}

// Simulator resolves settlements by sampling a per-method success
// probability. It stands in for real gateway integrations.
type Simulator struct {
	mu          sync.Mutex
	rng         *rand.Rand
	rates       map[string]float64
	defaultRate float64
}

type SimulatorOption func(*Simulator)

// WithDefaultRate sets the success probability for unknown methods.
func WithDefaultRate(rate float64) SimulatorOption {
	return func(s *Simulator) { s.defaultRate = rate }
}

// WithSeed makes the simulator deterministic for tests.
func WithSeed(seed int64) SimulatorOption {
	return func(s *Simulator) { s.rng = rand.New(rand.NewSource(seed)) }
}

// NewSimulator creates a simulator with per-method success rates in [0, 1].
func NewSimulator(rates map[string]float64, opts ...SimulatorOption) *Simulator {
	s := &Simulator{
		rng:         rand.New(rand.NewSource(rand.Int63())),
		rates:       make(map[string]float64, len(rates)),
		defaultRate: 0.9,
	}
	for method, rate := range rates {
		s.rates[method] = rate
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Simulator) Resolve(ctx context.Context, method string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	rate, ok := s.rates[method]
	if !ok {
		rate = s.defaultRate
	}

	s.mu.Lock()
	sample := s.rng.Float64()
	s.mu.Unlock()

	return sample < rate, nil
}
