package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/printworks/api/internal/repositories"
)

// RateLimiterDeps wires the persisted window store and limits.
type RateLimiterDeps struct {
	Windows repositories.RateWindowRepository
	Window  time.Duration
	Limit   int
	Clock   Clock
}

type slidingWindowLimiter struct {
	windows repositories.RateWindowRepository
	window  time.Duration
	limit   int
	clock   Clock
}

// NewRateLimiter validates dependencies and constructs a sliding-window
// limiter. The window store carries the state, so the verdict holds across
// replicas and restarts.
func NewRateLimiter(deps RateLimiterDeps) (RateLimiter, error) {
	if deps.Windows == nil {
		return nil, errors.New("rate limiter: window repository is required")
	}
	if deps.Window <= 0 {
		return nil, errors.New("rate limiter: window must be positive")
	}
	if deps.Limit <= 0 {
		return nil, errors.New("rate limiter: limit must be positive")
	}
	clock := deps.Clock
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}
	return &slidingWindowLimiter{
		windows: deps.Windows,
		window:  deps.Window,
		limit:   deps.Limit,
		clock:   clock,
	}, nil
}

// CheckAndRecord counts recent submissions for the identity and records this
// one when under the limit. Counting and recording happen in one atomic store
// operation, so two concurrent submissions cannot both sneak under the limit.
func (l *slidingWindowLimiter) CheckAndRecord(ctx context.Context, identity string) (Decision, error) {
	identity = strings.TrimSpace(identity)
	if identity == "" {
		return Decision{}, errors.New("rate limiter: identity is required")
	}

	now := l.clock()
	key := hashIdentity(identity)

	recorded, oldest, err := l.windows.CountAndRecord(ctx, key, now, l.window, l.limit)
	if err != nil {
		return Decision{}, fmt.Errorf("rate limit check for identity: %w", err)
	}
	if recorded {
		return Decision{Allowed: true}, nil
	}

	retryAfter := time.Second
	if !oldest.IsZero() {
		if until := oldest.Add(l.window).Sub(now); until > retryAfter {
			retryAfter = until
		}
	}
	return Decision{Allowed: false, RetryAfter: retryAfter}, nil
}

// hashIdentity keys window documents without persisting raw phone numbers.
func hashIdentity(identity string) string {
	sum := sha256.Sum256([]byte(identity))
	return hex.EncodeToString(sum[:])
}
