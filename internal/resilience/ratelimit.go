// internal/resilience/ratelimit.go
package resilience

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter holds one token bucket per provider. CheckLimit is
// non-blocking; Acquire optionally waits up to a bounded duration for the
// next token before giving up with ErrRateLimited.
type RateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rps      rate.Limit
	burst    int
}

// NewRateLimiter creates a limiter with the given refill rate and burst
// capacity applied to every provider bucket.
func NewRateLimiter(rps float64, burst int) *RateLimiter {
	return &RateLimiter{
		limiters: make(map[string]*rate.Limiter),
		rps:      rate.Limit(rps),
		burst:    burst,
	}
}

// SetProviderLimit overrides the bucket for one provider. Must be called
// before traffic starts for that provider.
func (r *RateLimiter) SetProviderLimit(provider string, rps float64, burst int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.limiters[provider] = rate.NewLimiter(rate.Limit(rps), burst)
}

// CheckLimit consumes a token for provider if one is available. It never
// blocks.
func (r *RateLimiter) CheckLimit(provider string) bool {
	return r.limiter(provider).Allow()
}

// Acquire consumes a token, waiting at most maxWait for one to become
// available. maxWait of 0 degrades to the non-blocking check. Returns
// ErrRateLimited (wrapped with the provider name) when no token arrives in
// time, or the context error if ctx is cancelled while waiting.
func (r *RateLimiter) Acquire(ctx context.Context, provider string, maxWait time.Duration) error {
	limiter := r.limiter(provider)

	if maxWait <= 0 {
		if limiter.Allow() {
			return nil
		}
		return fmt.Errorf("provider %s: %w", provider, ErrRateLimited)
	}

	waitCtx, cancel := context.WithTimeout(ctx, maxWait)
	defer cancel()

	if err := limiter.Wait(waitCtx); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if errors.Is(waitCtx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("provider %s: %w", provider, ErrRateLimited)
		}
		return fmt.Errorf("provider %s: %w", provider, ErrRateLimited)
	}
	return nil
}

func (r *RateLimiter) limiter(provider string) *rate.Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()

	limiter, ok := r.limiters[provider]
	if !ok {
		limiter = rate.NewLimiter(r.rps, r.burst)
		r.limiters[provider] = limiter
	}
	return limiter
}
