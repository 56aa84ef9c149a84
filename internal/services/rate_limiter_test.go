package services

import (
	"context"
	"testing"
	"time"

	"github.com/printworks/api/internal/repositories"
)

func TestRateLimiterWindow(t *testing.T) {
	now := time.Date(2026, time.August, 31, 10, 0, 0, 0, time.UTC)
	limiter, err := NewRateLimiter(RateLimiterDeps{
		Windows: repositories.NewInMemoryRateWindow(),
		Window:  time.Hour,
		Limit:   3,
		Clock:   func() time.Time { return now },
	})
	if err != nil {
		t.Fatalf("NewRateLimiter: %v", err)
	}

	for i := 0; i < 3; i++ {
		decision, err := limiter.CheckAndRecord(context.Background(), "+919876543210")
		if err != nil {
			t.Fatalf("CheckAndRecord(%d): %v", i, err)
		}
		if !decision.Allowed {
			t.Fatalf("attempt %d blocked, want allowed", i)
		}
		now = now.Add(time.Minute)
	}

	decision, err := limiter.CheckAndRecord(context.Background(), "+919876543210")
	if err != nil {
		t.Fatalf("CheckAndRecord: %v", err)
	}
	if decision.Allowed {
		t.Fatal("fourth attempt allowed, want blocked")
	}
	// Oldest entry is at t0, the check at t0+3m, so the hint is 57 minutes.
	if decision.RetryAfter != 57*time.Minute {
		t.Errorf("RetryAfter = %s, want 57m", decision.RetryAfter)
	}

	// A different identity is unaffected.
	other, err := limiter.CheckAndRecord(context.Background(), "+918888888888")
	if err != nil {
		t.Fatalf("CheckAndRecord(other): %v", err)
	}
	if !other.Allowed {
		t.Error("other identity blocked, want allowed")
	}

	// Once the oldest entry ages out the identity is admitted again.
	now = now.Add(time.Hour)
	later, err := limiter.CheckAndRecord(context.Background(), "+919876543210")
	if err != nil {
		t.Fatalf("CheckAndRecord(later): %v", err)
	}
	if !later.Allowed {
		t.Error("attempt after window blocked, want allowed")
	}
}

func TestRateLimiterRetryAfterFloor(t *testing.T) {
	now := time.Date(2026, time.August, 31, 10, 0, 0, 0, time.UTC)
	limiter, err := NewRateLimiter(RateLimiterDeps{
		Windows: repositories.NewInMemoryRateWindow(),
		Window:  time.Hour,
		Limit:   1,
		Clock:   func() time.Time { return now },
	})
	if err != nil {
		t.Fatalf("NewRateLimiter: %v", err)
	}

	if _, err := limiter.CheckAndRecord(context.Background(), "+919876543210"); err != nil {
		t.Fatalf("CheckAndRecord: %v", err)
	}

	// Just before the oldest entry expires the hint floors at one second.
	now = now.Add(time.Hour - 200*time.Millisecond)
	decision, err := limiter.CheckAndRecord(context.Background(), "+919876543210")
	if err != nil {
		t.Fatalf("CheckAndRecord: %v", err)
	}
	if decision.Allowed {
		t.Fatal("attempt inside window allowed, want blocked")
	}
	if decision.RetryAfter != time.Second {
		t.Errorf("RetryAfter = %s, want 1s floor", decision.RetryAfter)
	}
}

func TestRateLimiterRequiresIdentity(t *testing.T) {
	limiter, err := NewRateLimiter(RateLimiterDeps{
		Windows: repositories.NewInMemoryRateWindow(),
		Window:  time.Hour,
		Limit:   3,
	})
	if err != nil {
		t.Fatalf("NewRateLimiter: %v", err)
	}
	if _, err := limiter.CheckAndRecord(context.Background(), "  "); err == nil {
		t.Fatal("CheckAndRecord with blank identity succeeded, want error")
	}
}
