// internal/resilience/breaker.go
package resilience

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sony/gobreaker"
)

// BreakerGroup holds one circuit breaker per provider. A breaker opens
// after a run of consecutive failures, rejects calls immediately while
// open, and allows a single trial call after the cooldown window. A
// successful trial closes it; a failed one reopens it and restarts the
// cooldown.
type BreakerGroup struct {
	mu        sync.Mutex
	breakers  map[string]*gobreaker.CircuitBreaker
	threshold int
	cooldown  time.Duration
}

// NewBreakerGroup creates a group where each provider breaker trips after
// threshold consecutive failures and cools down for the given window.
func NewBreakerGroup(threshold int, cooldown time.Duration) *BreakerGroup {
	return &BreakerGroup{
		breakers:  make(map[string]*gobreaker.CircuitBreaker),
		threshold: threshold,
		cooldown:  cooldown,
	}
}

// Execute runs fn through the provider's breaker. When the breaker is open
// (or the half-open trial slot is taken) fn is never invoked and
// ErrProviderUnavailable is returned.
func (g *BreakerGroup) Execute(provider string, fn func() error) error {
	_, err := g.breaker(provider).Execute(func() (interface{}, error) {
		return nil, fn()
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return fmt.Errorf("provider %s circuit open: %w", provider, ErrProviderUnavailable)
		}
		return err
	}
	return nil
}

// Open reports whether the provider's breaker currently rejects calls.
func (g *BreakerGroup) Open(provider string) bool {
	return g.breaker(provider).State() == gobreaker.StateOpen
}

// State returns the provider's breaker state name for logging.
func (g *BreakerGroup) State(provider string) string {
	return g.breaker(provider).State().String()
}

func (g *BreakerGroup) breaker(provider string) *gobreaker.CircuitBreaker {
	g.mu.Lock()
	defer g.mu.Unlock()

	cb, ok := g.breakers[provider]
	if !ok {
		threshold := uint32(g.threshold)
		cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        provider,
			MaxRequests: 1, // one trial call in half-open
			Timeout:     g.cooldown,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= threshold
			},
		})
		g.breakers[provider] = cb
	}
	return cb
}
