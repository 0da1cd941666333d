package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestMemoryLimiterBlocksAfterLimit(t *testing.T) {
	limiter := NewMemoryLimiter()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	limit := Limit{Max: 3, Window: time.Minute}

	for i := 0; i < 3; i++ {
		result, errCheck := limiter.Check(context.Background(), "u1", ClassCommand, limit, now)
		if errCheck != nil {
			t.Fatalf("check %d: unexpected error: %v", i, errCheck)
		}
		if !result.Allowed {
			t.Fatalf("check %d: expected allowed", i)
		}
		if want := 3 - i - 1; result.Remaining != want {
			t.Fatalf("check %d: remaining = %d, want %d", i, result.Remaining, want)
		}
	}

	result, _ := limiter.Check(context.Background(), "u1", ClassCommand, limit, now)
	if result.Allowed {
		t.Fatalf("expected denial after limit")
	}
	if result.Remaining != 0 {
		t.Fatalf("remaining = %d, want 0", result.Remaining)
	}
	if result.ResetIn != time.Minute {
		t.Fatalf("resetIn = %v, want %v", result.ResetIn, time.Minute)
	}
}

func TestMemoryLimiterRecoversAfterWindow(t *testing.T) {
	limiter := NewMemoryLimiter()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	limit := Limit{Max: 1, Window: time.Minute}

	if result, _ := limiter.Check(context.Background(), "u1", ClassMessage, limit, now); !result.Allowed {
		t.Fatalf("expected first check allowed")
	}
	if result, _ := limiter.Check(context.Background(), "u1", ClassMessage, limit, now.Add(30*time.Second)); result.Allowed {
		t.Fatalf("expected denial inside window")
	}
	if result, _ := limiter.Check(context.Background(), "u1", ClassMessage, limit, now.Add(61*time.Second)); !result.Allowed {
		t.Fatalf("expected allowance after window elapsed")
	}
}

func TestMemoryLimiterDenialDoesNotConsume(t *testing.T) {
	limiter := NewMemoryLimiter()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	limit := Limit{Max: 1, Window: time.Minute}

	limiter.Check(context.Background(), "u1", ClassVoice, limit, now)
	// Denied attempts must not extend the window.
	limiter.Check(context.Background(), "u1", ClassVoice, limit, now.Add(59*time.Second))

	if result, _ := limiter.Check(context.Background(), "u1", ClassVoice, limit, now.Add(61*time.Second)); !result.Allowed {
		t.Fatalf("denied attempt consumed a slot")
	}
}

func TestMemoryLimiterPeekDoesNotMutate(t *testing.T) {
	limiter := NewMemoryLimiter()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	limit := Limit{Max: 5, Window: time.Minute}

	limiter.Check(context.Background(), "u1", ClassSubmission, limit, now)

	for i := 0; i < 10; i++ {
		result := limiter.Peek("u1", ClassSubmission, limit, now)
		if result.Remaining != 4 {
			t.Fatalf("peek %d: remaining = %d, want 4", i, result.Remaining)
		}
	}
}

func TestMemoryLimiterClassesAreIndependent(t *testing.T) {
	limiter := NewMemoryLimiter()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	limit := Limit{Max: 1, Window: time.Minute}

	if result, _ := limiter.Check(context.Background(), "u1", ClassCommand, limit, now); !result.Allowed {
		t.Fatalf("expected command check allowed")
	}
	if result, _ := limiter.Check(context.Background(), "u1", ClassApproval, limit, now); !result.Allowed {
		t.Fatalf("expected approval class unaffected by command class")
	}
	if result, _ := limiter.Check(context.Background(), "u2", ClassCommand, limit, now); !result.Allowed {
		t.Fatalf("expected second user unaffected by first")
	}
}

func TestMemoryLimiterResetAndResetAll(t *testing.T) {
	limiter := NewMemoryLimiter()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	limit := Limit{Max: 1, Window: time.Hour}

	limiter.Check(context.Background(), "u1", ClassCommand, limit, now)
	limiter.Check(context.Background(), "u1", ClassMessage, limit, now)

	limiter.Reset("u1", ClassCommand)
	if result, _ := limiter.Check(context.Background(), "u1", ClassCommand, limit, now); !result.Allowed {
		t.Fatalf("expected command bucket cleared")
	}
	if result, _ := limiter.Check(context.Background(), "u1", ClassMessage, limit, now); result.Allowed {
		t.Fatalf("expected message bucket untouched by Reset")
	}

	limiter.ResetAll("u1")
	if result, _ := limiter.Check(context.Background(), "u1", ClassMessage, limit, now); !result.Allowed {
		t.Fatalf("expected all buckets cleared")
	}
}

func TestMemoryLimiterSweepEvictsEmptyBuckets(t *testing.T) {
	limiter := NewMemoryLimiter()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	limit := Limit{Max: 2, Window: time.Minute}

	limiter.Check(context.Background(), "u1", ClassCommand, limit, now)
	limiter.Check(context.Background(), "u2", ClassCommand, limit, now)
	if limiter.Len() != 2 {
		t.Fatalf("buckets = %d, want 2", limiter.Len())
	}

	limiter.Sweep(now.Add(2 * time.Minute))
	if limiter.Len() != 0 {
		t.Fatalf("buckets after sweep = %d, want 0", limiter.Len())
	}
}
