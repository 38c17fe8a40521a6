package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestLimiter_AllowsBurstImmediately(t *testing.T) {
	l := NewLimiter(1, 2)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := l.Wait(ctx); err != nil {
		t.Fatalf("first wait should succeed immediately: %v", err)
	}
	if err := l.Wait(ctx); err != nil {
		t.Fatalf("second wait within burst should succeed immediately: %v", err)
	}
}

func TestLimiter_NilIsNoop(t *testing.T) {
	var l *Limiter
	if err := l.Wait(context.Background()); err != nil {
		t.Errorf("nil limiter should be a no-op, got %v", err)
	}
}

func TestLimiter_RespectsContextCancellation(t *testing.T) {
	l := NewLimiter(0.001, 1)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := l.Wait(ctx); err != nil {
		t.Fatalf("first wait should succeed from burst: %v", err)
	}
	if err := l.Wait(ctx); err == nil {
		t.Error("expected second wait to be cancelled before a token refills")
	}
}
