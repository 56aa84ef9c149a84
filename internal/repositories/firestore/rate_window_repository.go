package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	pfirestore "github.com/printworks/api/internal/platform/firestore"
)

const rateWindowsCollection = "rate_windows"

type rateWindowDocument struct {
	Timestamps []time.Time `firestore:"timestamps"`
	UpdatedAt  time.Time   `firestore:"updatedAt"`
}

// RateWindowRepository implements repositories.RateWindowRepository with one
// document per hashed identity. Pruning, counting and appending share a
// transaction, so concurrent submissions from the same identity cannot both
// pass a nearly full window.
type RateWindowRepository struct {
	provider *pfirestore.Provider
	windows  *pfirestore.BaseRepository[rateWindowDocument]
}

// NewRateWindowRepository constructs a Firestore-backed window store.
func NewRateWindowRepository(provider *pfirestore.Provider) (*RateWindowRepository, error) {
	if provider == nil {
		return nil, errors.New("rate window repository requires firestore provider")
	}
	return &RateWindowRepository{
		provider: provider,
		windows:  pfirestore.NewBaseRepository[rateWindowDocument](provider, rateWindowsCollection, nil, nil),
	}, nil
}

// CountAndRecord implements repositories.RateWindowRepository.
func (r *RateWindowRepository) CountAndRecord(ctx context.Context, identity string, now time.Time, window time.Duration, limit int) (bool, time.Time, error) {
	id := strings.TrimSpace(identity)
	if id == "" {
		return false, time.Time{}, errors.New("rate window repository: identity is required")
	}
	if window <= 0 || limit <= 0 {
		return false, time.Time{}, errors.New("rate window repository: window and limit must be positive")
	}

	var (
		recorded bool
		oldest   time.Time
	)
	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		recorded = false
		oldest = time.Time{}

		ref, err := r.windows.DocumentRef(ctx, id)
		if err != nil {
			return err
		}

		var doc rateWindowDocument
		snapshot, err := tx.Get(ref)
		switch status.Code(err) {
		case codes.NotFound:
		case codes.OK:
			if err := snapshot.DataTo(&doc); err != nil {
				return err
			}
		default:
			return err
		}

		cutoff := now.Add(-window)
		kept := make([]time.Time, 0, len(doc.Timestamps)+1)
		for _, ts := range doc.Timestamps {
			if ts.After(cutoff) {
				kept = append(kept, ts)
			}
		}

		if len(kept) >= limit {
			oldest = kept[0]
			doc.Timestamps = kept
			doc.UpdatedAt = now
			return tx.Set(ref, doc)
		}

		doc.Timestamps = append(kept, now)
		doc.UpdatedAt = now
		if err := tx.Set(ref, doc); err != nil {
			return err
		}
		recorded = true
		return nil
	})
	if err != nil {
		return false, time.Time{}, pfirestore.WrapError("rate_windows.record", err)
	}
	return recorded, oldest, nil
}
