package repositories

import (
	"context"
	"time"

	domain "github.com/printworks/api/internal/domain"
)

// RepositoryError wraps low-level persistence failures with categorisation
// used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// QuoteRepository persists quote/order documents. The pricing snapshot is
// written once by Insert and never touched by Update callers.
type QuoteRepository interface {
	Insert(ctx context.Context, quote domain.Quote) error
	Update(ctx context.Context, quote domain.Quote) error
	FindByNumber(ctx context.Context, number string) (domain.Quote, error)
	ListByPhone(ctx context.Context, phone string, limit int) ([]domain.Quote, error)
}

// CatalogRepository reads immutable product definitions.
type CatalogRepository interface {
	GetProduct(ctx context.Context, productID string) (domain.Product, error)
}

// PromotionRepository maintains promotion definitions and their redemption
// counters.
type PromotionRepository interface {
	FindByCode(ctx context.Context, code string) (domain.Promotion, error)
	// RedeemUsage increments usedCount only while it stays within the usage
	// limit; the guard and the increment happen in one atomic operation.
	RedeemUsage(ctx context.Context, code string) (domain.Promotion, error)
}

// CounterRepository provides transaction-safe sequence numbers. Next is a
// single atomic read-and-increment against the counter document for scopeKey;
// it must never be implemented as read-max-then-insert.
type CounterRepository interface {
	Next(ctx context.Context, scopeKey string) (int64, error)
}

// PaymentLedgerRepository owns applied-once records for gateway events.
type PaymentLedgerRepository interface {
	// Find reports whether the event was already applied.
	Find(ctx context.Context, eventID string) (domain.PaymentEvent, bool, error)
	// Apply atomically records the event and runs mutate in the same logical
	// operation. When the event already exists nothing runs and applied is
	// false. mutate receives a context scoped to the shared transaction and
	// returns the outcome written to the ledger record.
	Apply(ctx context.Context, event domain.PaymentEvent, mutate func(ctx context.Context) (domain.PaymentEventOutcome, error)) (applied bool, err error)
}

// RateWindowRepository persists request timestamps for sliding-window rate
// limiting keyed by a hashed identity.
type RateWindowRepository interface {
	// CountAndRecord prunes timestamps older than window, counts the rest,
	// and appends now when the count is below limit, atomically. When the
	// append is refused it returns the oldest surviving timestamp so callers
	// can compute a retry hint.
	CountAndRecord(ctx context.Context, identity string, now time.Time, window time.Duration, limit int) (recorded bool, oldest time.Time, err error)
}
