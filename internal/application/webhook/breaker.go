package webhook

import (
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
)

// BreakerRegistry keeps one circuit breaker per merchant endpoint, so a
// single unhealthy endpoint cannot slow delivery to everyone else.
type BreakerRegistry struct {
	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker[int]
}

// NewBreakerRegistry creates an empty registry.
func NewBreakerRegistry() *BreakerRegistry {
	return &BreakerRegistry{
		breakers: make(map[string]*gobreaker.CircuitBreaker[int]),
	}
}

// Get returns the breaker for a merchant, creating it on first use.
func (r *BreakerRegistry) Get(merchantID string) *gobreaker.CircuitBreaker[int] {
	r.mu.Lock()
	defer r.mu.Unlock()

	cb, ok := r.breakers[merchantID]
	if !ok {
		cb = gobreaker.NewCircuitBreaker[int](gobreaker.Settings{
			Name:        merchantID,
			MaxRequests: 10,
			Interval:    60 * time.Second,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
				return counts.Requests >= 10 && failureRatio >= 0.6
			},
		})
		r.breakers[merchantID] = cb
	}
	return cb
}
