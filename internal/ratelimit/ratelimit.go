// Package ratelimit token-bucket-limits outbound calls to the external media
// server so a large pool build or a burst of concurrent stream connections
// never floods it (spec.md §5 "rate-shared, no suspension held").
package ratelimit

import (
	"context"

	"golang.org/x/time/rate"
)

// Limiter wraps an x/time/rate.Limiter with the defaults JellyStream uses for
// Jellyfin API calls: 10 requests/second sustained, burst of 20 to absorb a
// paginated fetch's initial page plus a couple of concurrent callers.
type Limiter struct {
	rl *rate.Limiter
}

// Default returns a Limiter preconfigured at 10 req/s, burst 20.
func Default() *Limiter {
	return New(10, 20)
}

// New returns a Limiter allowing ratePerSecond sustained requests with the
// given burst capacity.
func New(ratePerSecond float64, burst int) *Limiter {
	return &Limiter{rl: rate.NewLimiter(rate.Limit(ratePerSecond), burst)}
}

// Wait blocks until a token is available or ctx is cancelled. Call this
// immediately before issuing the HTTP request it is guarding.
func (l *Limiter) Wait(ctx context.Context) error {
	return l.rl.Wait(ctx)
}
