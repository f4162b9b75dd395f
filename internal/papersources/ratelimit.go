package papersources

import (
	"context"

	"golang.org/x/time/rate"
)

// RateLimiter is the token bucket in front of every paper-source API call.
// Concurrent use is fine; rate.Limiter handles its own locking.
type RateLimiter struct {
	limiter *rate.Limiter
}

// NewRateLimiter builds a limiter sustaining ratePerSecond with the given
// burst. arXiv asks clients to stay at or below 3 requests per second, so
// its client uses NewRateLimiter(3, 3).
func NewRateLimiter(ratePerSecond float64, burst int) *RateLimiter {
	return &RateLimiter{
		limiter: rate.NewLimiter(rate.Limit(ratePerSecond), burst),
	}
}

// Wait blocks until a token is available or ctx ends.
func (r *RateLimiter) Wait(ctx context.Context) error {
	return r.limiter.Wait(ctx)
}

// Allow takes a token without blocking, reporting whether one was free.
func (r *RateLimiter) Allow() bool {
	return r.limiter.Allow()
}

// SetRate changes the sustained rate, keeping the burst. Used to back off
// when an API signals pressure.
func (r *RateLimiter) SetRate(ratePerSecond float64) {
	r.limiter.SetLimit(rate.Limit(ratePerSecond))
}

// SetBurst changes the burst size.
func (r *RateLimiter) SetBurst(burst int) {
	r.limiter.SetBurst(burst)
}

// Tokens reports how many tokens are currently available.
func (r *RateLimiter) Tokens() float64 {
	return r.limiter.Tokens()
}
