package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/agentrt/core/internal/apperr"
)

func TestNextWait_NonRateLimitIsFatal(t *testing.T) {
	d := NextWait(DefaultRetryConfig, errors.New("boom"), 1)
	if d.Retry {
		t.Error("expected non-rate-limit error to not be retried")
	}
}

func TestNextWait_ExhaustedAttempts(t *testing.T) {
	err := apperr.RateLimitedErr("slow down", nil)
	d := NextWait(DefaultRetryConfig, err, DefaultRetryConfig.MaxAttempts)
	if d.Retry {
		t.Error("expected no retry once max attempts reached")
	}
}

func TestNextWait_UsesRetryAfterHint(t *testing.T) {
	wait := 5.0
	err := apperr.RateLimitedErr("slow down", &wait)
	d := NextWait(DefaultRetryConfig, err, 1)
	if !d.Retry {
		t.Fatal("expected a retry")
	}
	if d.Wait != 5*time.Second {
		t.Errorf("expected 5s wait, got %v", d.Wait)
	}
}

func TestNextWait_FallsBackToBackoffFormula(t *testing.T) {
	err := apperr.RateLimitedErr("slow down", nil)
	d := NextWait(DefaultRetryConfig, err, 2)
	if !d.Retry {
		t.Fatal("expected a retry")
	}
	want := time.Duration(float64(DefaultRetryConfig.DefaultWait) * DefaultRetryConfig.BackoffMultiplier)
	if d.Wait != want {
		t.Errorf("expected %v, got %v", want, d.Wait)
	}
}

func TestNextWait_CapsAtMaxWait(t *testing.T) {
	big := 10000.0
	err := apperr.RateLimitedErr("slow down", &big)
	cfg := DefaultRetryConfig
	d := NextWait(cfg, err, 1)
	if d.Wait != cfg.MaxWait {
		t.Errorf("expected wait capped at %v, got %v", cfg.MaxWait, d.Wait)
	}
}

func TestWaitWithCancel_CompletesNormally(t *testing.T) {
	ok := WaitWithCancel(context.Background(), 10*time.Millisecond)
	if !ok {
		t.Error("expected wait to complete")
	}
}

func TestWaitWithCancel_CancelledEarly(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	ok := WaitWithCancel(ctx, time.Second)
	if ok {
		t.Error("expected wait to be cut short by cancellation")
	}
}

func TestWaitWithCancel_ZeroDurationStillChecksCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if WaitWithCancel(ctx, 0) {
		t.Error("expected zero-duration wait to still observe cancellation")
	}
}
