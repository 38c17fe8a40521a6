// Package ratelimit implements the LLM-call retry policy, the ambient
// concurrency limiter, post-turn pruning, and AI-summary compaction
// described in spec §4.8, grounded on the teacher's session/loop.go
// (cenkalti/backoff retry loop) and session/compact.go (summarization).
package ratelimit

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/agentrt/core/internal/apperr"
)

// RetryConfig bounds the rate-limit retry loop. DefaultWait and
// BackoffMultiplier implement spec §4.8's fallback formula
// (default_wait * backoff_multiplier^(attempt-1)) for rate-limit errors
// that don't carry a provider retry-after hint.
type RetryConfig struct {
	MaxAttempts       int
	DefaultWait       time.Duration
	BackoffMultiplier float64
	MaxWait           time.Duration
}

// DefaultRetryConfig mirrors the teacher's loop.go constants
// (RetryInitialInterval / RetryMaxInterval / MaxRetries).
var DefaultRetryConfig = RetryConfig{
	MaxAttempts:       3,
	DefaultWait:       time.Second,
	BackoffMultiplier: 2.0,
	MaxWait:           30 * time.Second,
}

// WaitDecision is what the caller should do next in the retry loop.
type WaitDecision struct {
	// Retry is true when the caller should sleep Wait and try the LLM call
	// again; false means attempts are exhausted or the error wasn't a
	// rate-limit at all (caller should propagate err as fatal).
	Retry bool
	Wait  time.Duration
}

// NextWait inspects err and the current attempt number and decides whether
// to retry. err is only ever treated as a rate limit if it carries
// apperr.RateLimited per spec §4.8 ("an error is a rate-limit if and only
// if it is the dedicated variant"); every other error is fatal.
func NextWait(cfg RetryConfig, err error, attempt int) WaitDecision {
	if apperr.KindOf(err) != apperr.RateLimited {
		return WaitDecision{Retry: false}
	}
	if attempt >= cfg.MaxAttempts {
		return WaitDecision{Retry: false}
	}

	var wait time.Duration
	var rl *apperr.Error
	if e, ok := err.(*apperr.Error); ok {
		rl = e
	}
	if rl != nil && rl.RetryAfterSecs != nil {
		wait = time.Duration(*rl.RetryAfterSecs * float64(time.Second))
	} else {
		wait = fallbackBackoff(cfg, attempt)
	}
	if cfg.MaxWait > 0 && wait > cfg.MaxWait {
		wait = cfg.MaxWait
	}
	if wait < 0 {
		wait = 0
	}
	return WaitDecision{Retry: true, Wait: wait}
}

// fallbackBackoff computes spec §4.8's default_wait * backoff_multiplier^n
// formula for rate-limit errors that didn't carry a provider retry-after
// hint, via cenkalti/backoff's ExponentialBackOff rather than hand-rolled
// exponent math — the same library the teacher's loop.go retries LLM calls
// with. RandomizationFactor is zeroed so NextWait stays deterministic.
func fallbackBackoff(cfg RetryConfig, attempt int) time.Duration {
	b := &backoff.ExponentialBackOff{
		InitialInterval:     cfg.DefaultWait,
		RandomizationFactor: 0,
		Multiplier:          cfg.BackoffMultiplier,
		MaxInterval:         365 * 24 * time.Hour, // outer MaxWait clamp below does the real capping
		MaxElapsedTime:      0,
		Stop:                backoff.Stop,
		Clock:               backoff.SystemClock,
	}
	b.Reset()
	var wait time.Duration
	for i := 0; i < attempt; i++ {
		wait = b.NextBackOff()
	}
	return wait
}

// WaitWithCancel sleeps for d or returns early if ctx is cancelled first,
// per spec §4.8's "wait-with-cancel" contract. It reports whether the wait
// completed (true) or was cut short by cancellation (false).
func WaitWithCancel(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		select {
		case <-ctx.Done():
			return false
		default:
			return true
		}
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
