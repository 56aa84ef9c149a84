package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/printworks/api/internal/repositories"
)

const sequenceScopePrefix = "quotes"

// SequenceServiceDeps wires the counter repository and numbering bounds.
type SequenceServiceDeps struct {
	Counters  repositories.CounterRepository
	Prefix    string
	MaxPerDay int64
	Clock     Clock
}

type sequenceService struct {
	counters  repositories.CounterRepository
	prefix    string
	maxPerDay int64
	clock     Clock
}

// NewSequenceService validates dependencies and constructs the allocator.
func NewSequenceService(deps SequenceServiceDeps) (SequenceService, error) {
	if deps.Counters == nil {
		return nil, errors.New("sequence service: counter repository is required")
	}
	prefix := strings.TrimSpace(deps.Prefix)
	if prefix == "" {
		prefix = "Q"
	}
	maxPerDay := deps.MaxPerDay
	if maxPerDay <= 0 {
		maxPerDay = 9999
	}
	clock := deps.Clock
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}
	return &sequenceService{
		counters:  deps.Counters,
		prefix:    prefix,
		maxPerDay: maxPerDay,
		clock:     clock,
	}, nil
}

// NextQuoteNumber allocates the next number for the day scope. Values are
// unique and non-decreasing per scope; gaps are allowed. Day rollover is
// implicit in the scope key, so no reset step exists to race against.
func (s *sequenceService) NextQuoteNumber(ctx context.Context, now time.Time) (string, error) {
	if now.IsZero() {
		now = s.clock()
	}
	day := now.UTC().Format("060102")
	scope := sequenceScopePrefix + ":" + day

	value, err := s.counters.Next(ctx, scope)
	if err != nil {
		return "", fmt.Errorf("allocate quote number for %s: %w", scope, err)
	}
	if value > s.maxPerDay {
		return "", fmt.Errorf("%w: scope %s at %d", ErrSequenceExhausted, scope, value)
	}

	return fmt.Sprintf("%s-%s-%04d", s.prefix, day, value), nil
}
