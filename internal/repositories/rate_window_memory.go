package repositories

import (
	"context"
	"sync"
	"time"
)

// InMemoryRateWindow keeps sliding windows in process memory. Suitable for
// tests and single-instance local runs; production uses the Firestore
// implementation.
type InMemoryRateWindow struct {
	mu      sync.Mutex
	windows map[string][]time.Time
}

// NewInMemoryRateWindow constructs an empty window store.
func NewInMemoryRateWindow() *InMemoryRateWindow {
	return &InMemoryRateWindow{windows: make(map[string][]time.Time)}
}

// CountAndRecord implements RateWindowRepository.
func (s *InMemoryRateWindow) CountAndRecord(_ context.Context, identity string, now time.Time, window time.Duration, limit int) (bool, time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := now.Add(-window)
	kept := s.windows[identity][:0]
	for _, ts := range s.windows[identity] {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}

	if len(kept) >= limit {
		s.windows[identity] = kept
		return false, kept[0], nil
	}

	s.windows[identity] = append(kept, now)
	return true, time.Time{}, nil
}
