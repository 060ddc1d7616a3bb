package dispatcher

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter controls the frequency of outbound sends so the SMTP
// provider does not throttle or block the account.
type RateLimiter struct {
	limiter *rate.Limiter

	// additional pause after a provider throttle response
	penaltyUntil time.Time
	mu           sync.Mutex
}

// NewRateLimiter creates a limiter.
// rps - sends per second (1-2 is safe for most consumer SMTP providers)
// burst - allowed burst
func NewRateLimiter(rps float64, burst int) *RateLimiter {
	if rps <= 0 {
		rps = 1
	}
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
	}
}

// DefaultRateLimiter returns a limiter with conservative settings.
func DefaultRateLimiter() *RateLimiter {
	return NewRateLimiter(2.0, 1)
}

// Wait blocks until the next send is allowed.
func (r *RateLimiter) Wait(ctx context.Context) error {
	r.mu.Lock()
	waitUntil := r.penaltyUntil
	r.mu.Unlock()

	// if a penalty window is active - wait it out first
	if time.Now().Before(waitUntil) {
		select {
		case <-time.After(time.Until(waitUntil)):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return r.limiter.Wait(ctx)
}

// Penalize pauses all sends after a provider throttle response.
func (r *RateLimiter) Penalize(d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	until := time.Now().Add(d)
	if until.After(r.penaltyUntil) {
		r.penaltyUntil = until
	}
}
