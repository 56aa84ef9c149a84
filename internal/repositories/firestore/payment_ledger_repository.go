package firestore

import (
	"context"
	"errors"
	"strings"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/printworks/api/internal/domain"
	pfirestore "github.com/printworks/api/internal/platform/firestore"
)

const paymentEventsCollection = "payment_events"

// PaymentLedgerRepository implements repositories.PaymentLedgerRepository.
// Ledger records are keyed by the gateway payment id plus event kind, so a
// redelivered webhook maps to an existing document instead of a second
// mutation.
type PaymentLedgerRepository struct {
	provider *pfirestore.Provider
	events   *pfirestore.BaseRepository[domain.PaymentEvent]
}

// NewPaymentLedgerRepository constructs a Firestore-backed event ledger.
func NewPaymentLedgerRepository(provider *pfirestore.Provider) (*PaymentLedgerRepository, error) {
	if provider == nil {
		return nil, errors.New("payment ledger repository requires firestore provider")
	}
	return &PaymentLedgerRepository{
		provider: provider,
		events:   pfirestore.NewBaseRepository[domain.PaymentEvent](provider, paymentEventsCollection, nil, nil),
	}, nil
}

// Find reports whether the event was already applied.
func (r *PaymentLedgerRepository) Find(ctx context.Context, eventID string) (domain.PaymentEvent, bool, error) {
	id := strings.TrimSpace(eventID)
	if id == "" {
		return domain.PaymentEvent{}, false, errors.New("payment ledger repository: event id is required")
	}

	doc, err := r.events.Get(ctx, id)
	if err != nil {
		var repoErr *pfirestore.Error
		if errors.As(err, &repoErr) && repoErr.IsNotFound() {
			return domain.PaymentEvent{}, false, nil
		}
		return domain.PaymentEvent{}, false, err
	}
	return doc.Data, true, nil
}

// Apply records the event and runs mutate in one transaction. The ledger
// document is read first; when it already exists the transaction ends
// without side effects and applied is false. mutate receives a context
// carrying the open transaction, so repository calls made through it join
// the same atomic commit.
func (r *PaymentLedgerRepository) Apply(ctx context.Context, event domain.PaymentEvent, mutate func(ctx context.Context) (domain.PaymentEventOutcome, error)) (bool, error) {
	id := strings.TrimSpace(event.ID)
	if id == "" {
		return false, errors.New("payment ledger repository: event id is required")
	}
	if mutate == nil {
		return false, errors.New("payment ledger repository: mutate is required")
	}

	applied := false
	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		applied = false

		ref, err := r.events.DocumentRef(ctx, id)
		if err != nil {
			return err
		}
		_, err = tx.Get(ref)
		switch status.Code(err) {
		case codes.NotFound:
		case codes.OK:
			return nil
		default:
			return err
		}

		outcome, err := mutate(pfirestore.ContextWithTx(ctx, tx))
		if err != nil {
			return err
		}

		event.Outcome = outcome
		if err := tx.Create(ref, event); err != nil {
			return err
		}
		applied = true
		return nil
	})
	if err != nil {
		return false, pfirestore.WrapError("payment_events.apply", err)
	}
	return applied, nil
}
