package ratelimit

import (
	"context"

	"golang.org/x/time/rate"
)

// Limiter is the ambient token-bucket bounding concurrent/aggregate LLM
// call throughput system-wide, layered underneath the per-call retry-after
// policy in retry.go (spec §4.8's "policy" cap on the computed wait is the
// per-call layer; this is the always-on layer beneath it).
type Limiter struct {
	rl *rate.Limiter
}

// NewLimiter builds a Limiter allowing burst calls immediately and ratePerSec
// sustained calls per second thereafter.
func NewLimiter(ratePerSec float64, burst int) *Limiter {
	return &Limiter{rl: rate.NewLimiter(rate.Limit(ratePerSec), burst)}
}

// Wait blocks until a token is available or ctx is cancelled.
func (l *Limiter) Wait(ctx context.Context) error {
	if l == nil || l.rl == nil {
		return nil
	}
	return l.rl.Wait(ctx)
}
