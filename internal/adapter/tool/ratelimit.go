package tool

import (
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter throttles tool invocations with a token bucket sized to allow
// limit calls per window, with the full limit available as burst.
type RateLimiter struct {
	lim *rate.Limiter
}

// NewRateLimiter creates a rate limiter that allows limit calls per window.
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	if limit <= 0 {
		limit = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &RateLimiter{
		lim: rate.NewLimiter(rate.Limit(float64(limit)/window.Seconds()), limit),
	}
}

// Allow reports whether a call is permitted right now and records it.
func (r *RateLimiter) Allow() bool {
	return r.lim.Allow()
}
