package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestWaitAllowsBurst(t *testing.T) {
	limiter := NewRateLimiter(1, 3)

	start := time.Now()
	for i := 0; i < 3; i++ {
		if err := limiter.Wait(context.Background()); err != nil {
			t.Fatalf("Wait() %d failed: %v", i, err)
		}
	}
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Errorf("burst of 3 took %v, expected to be immediate", elapsed)
	}
}

func TestWaitBlocksWhenDrained(t *testing.T) {
	limiter := NewRateLimiter(10, 1)
	if err := limiter.Wait(context.Background()); err != nil {
		t.Fatalf("Wait() failed: %v", err)
	}

	start := time.Now()
	if err := limiter.Wait(context.Background()); err != nil {
		t.Fatalf("Wait() failed: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 50*time.Millisecond {
		t.Errorf("drained limiter waited only %v, expected ~100ms", elapsed)
	}
}

func TestWaitHonorsCancellation(t *testing.T) {
	limiter := NewRateLimiter(0.001, 1)
	if err := limiter.Wait(context.Background()); err != nil {
		t.Fatalf("Wait() failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if err := limiter.Wait(ctx); err == nil {
		t.Error("expected an error after context cancellation")
	}
}
