// Package ratelimiter throttles background store operations.
//
// It wraps golang.org/x/time/rate's token bucket. The sweeper uses it to cap
// how many deletes per second it issues against a shared binary store, so
// that a large purge does not starve foreground uploads.
package ratelimiter

import (
	"context"

	"golang.org/x/time/rate"
)

// RateLimiter is a token bucket. The zero rate means unlimited.
//
// Thread safety:
// All methods are safe for concurrent use.
type RateLimiter struct {
	limiter *rate.Limiter
}

// New creates a limiter allowing perSecond operations per second with the
// given burst. perSecond <= 0 disables limiting. A burst below 1 is raised to
// 1 so that Wait can ever succeed.
func New(perSecond float64, burst int) *RateLimiter {
	if perSecond <= 0 {
		return &RateLimiter{limiter: rate.NewLimiter(rate.Inf, 0)}
	}
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{limiter: rate.NewLimiter(rate.Limit(perSecond), burst)}
}

// Unlimited reports whether the limiter lets everything through.
func (r *RateLimiter) Unlimited() bool {
	return r.limiter.Limit() == rate.Inf
}

// Allow consumes a token if one is available, without waiting.
func (r *RateLimiter) Allow() bool {
	return r.limiter.Allow()
}

// Wait blocks until a token is available or ctx is done.
func (r *RateLimiter) Wait(ctx context.Context) error {
	return r.limiter.Wait(ctx)
}

// SetLimit changes the sustained rate. perSecond <= 0 disables limiting.
func (r *RateLimiter) SetLimit(perSecond float64) {
	if perSecond <= 0 {
		r.limiter.SetLimit(rate.Inf)
		return
	}
	if r.limiter.Burst() < 1 {
		r.limiter.SetBurst(1)
	}
	r.limiter.SetLimit(rate.Limit(perSecond))
}

// Limit returns the sustained rate, or 0 when unlimited.
func (r *RateLimiter) Limit() float64 {
	if r.Unlimited() {
		return 0
	}
	return float64(r.limiter.Limit())
}
