package firestore

import (
	"context"
	"errors"
	"strings"

	"cloud.google.com/go/firestore"

	"github.com/printworks/api/internal/domain"
	pfirestore "github.com/printworks/api/internal/platform/firestore"
)

const quotesCollection = "quotes"

// QuoteRepository implements repositories.QuoteRepository. Documents are
// keyed by quote number, so lookups from webhooks and the public API hit the
// document directly. Reads and writes honour a transaction carried in the
// context, which lets the payment ledger scope order mutations to its own
// transaction.
type QuoteRepository struct {
	provider *pfirestore.Provider
	quotes   *pfirestore.BaseRepository[domain.Quote]
}

// NewQuoteRepository constructs a Firestore-backed quote repository.
func NewQuoteRepository(provider *pfirestore.Provider) (*QuoteRepository, error) {
	if provider == nil {
		return nil, errors.New("quote repository requires firestore provider")
	}
	return &QuoteRepository{
		provider: provider,
		quotes:   pfirestore.NewBaseRepository[domain.Quote](provider, quotesCollection, nil, nil),
	}, nil
}

// Insert persists a new quote document. The quote number must be unused;
// colliding numbers surface as a conflict.
func (r *QuoteRepository) Insert(ctx context.Context, quote domain.Quote) error {
	number := strings.TrimSpace(quote.Number)
	if number == "" {
		return errors.New("quote repository: quote number is required")
	}

	ref, err := r.quotes.DocumentRef(ctx, number)
	if err != nil {
		return err
	}
	if tx, ok := pfirestore.TxFromContext(ctx); ok {
		return pfirestore.WrapError("quotes.insert", tx.Create(ref, quote))
	}
	_, err = ref.Create(ctx, quote)
	return pfirestore.WrapError("quotes.insert", err)
}

// Update replaces an existing quote document.
func (r *QuoteRepository) Update(ctx context.Context, quote domain.Quote) error {
	number := strings.TrimSpace(quote.Number)
	if number == "" {
		return errors.New("quote repository: quote number is required")
	}

	ref, err := r.quotes.DocumentRef(ctx, number)
	if err != nil {
		return err
	}
	if tx, ok := pfirestore.TxFromContext(ctx); ok {
		return pfirestore.WrapError("quotes.update", tx.Set(ref, quote))
	}
	_, err = ref.Set(ctx, quote)
	return pfirestore.WrapError("quotes.update", err)
}

// FindByNumber loads one quote document.
func (r *QuoteRepository) FindByNumber(ctx context.Context, number string) (domain.Quote, error) {
	number = strings.TrimSpace(number)
	if number == "" {
		return domain.Quote{}, errors.New("quote repository: quote number is required")
	}

	if tx, ok := pfirestore.TxFromContext(ctx); ok {
		ref, err := r.quotes.DocumentRef(ctx, number)
		if err != nil {
			return domain.Quote{}, err
		}
		snapshot, err := tx.Get(ref)
		if err != nil {
			return domain.Quote{}, pfirestore.WrapError("quotes.get", err)
		}
		var quote domain.Quote
		if err := snapshot.DataTo(&quote); err != nil {
			return domain.Quote{}, pfirestore.WrapError("quotes.get", err)
		}
		return quote, nil
	}

	doc, err := r.quotes.Get(ctx, number)
	if err != nil {
		return domain.Quote{}, err
	}
	return doc.Data, nil
}

// ListByPhone returns the most recent quotes submitted by a phone number.
func (r *QuoteRepository) ListByPhone(ctx context.Context, phone string, limit int) ([]domain.Quote, error) {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return nil, errors.New("quote repository: phone is required")
	}
	if limit <= 0 {
		limit = 20
	}

	docs, err := r.quotes.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("customer.phone", "==", phone).
			OrderBy("createdAt", firestore.Desc).
			Limit(limit)
	})
	if err != nil {
		return nil, err
	}

	quotes := make([]domain.Quote, 0, len(docs))
	for _, doc := range docs {
		quotes = append(quotes, doc.Data)
	}
	return quotes, nil
}
