package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/printworks/api/internal/domain"
	"github.com/printworks/api/internal/platform/observability"
	"github.com/printworks/api/internal/platform/requestctx"
	"github.com/printworks/api/internal/repositories"
)

var phonePattern = regexp.MustCompile(`^\+?[0-9]{10,15}$`)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
)

// RateLimitError carries the retry hint alongside the ErrRateLimited sentinel.
type RateLimitError struct {
	RetryAfter time.Duration
}

// Error implements the error interface.
func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded, retry after %s", e.RetryAfter)
}

// Unwrap makes errors.Is(err, ErrRateLimited) hold.
func (e *RateLimitError) Unwrap() error { return ErrRateLimited }

// QuoteServiceDeps wires every collaborator of the submission pipeline.
type QuoteServiceDeps struct {
	Quotes     repositories.QuoteRepository
	Catalog    repositories.CatalogRepository
	Promotions repositories.PromotionRepository
	Evaluator  PromotionService
	Pricing    PricingEngine
	Sequence   SequenceService
	Limiter    RateLimiter
	Tax        TaxPolicy
	Shipping   ShippingPolicy
	Notifier   Notifier
	URLs       URLResolver
	Sanitizer  *bluemonday.Policy
	Metrics    *observability.Metrics
	Clock      Clock
	NewID      func() string
}

type quoteService struct {
	quotes     repositories.QuoteRepository
	catalog    repositories.CatalogRepository
	promotions repositories.PromotionRepository
	evaluator  PromotionService
	pricing    PricingEngine
	sequence   SequenceService
	limiter    RateLimiter
	tax        TaxPolicy
	shipping   ShippingPolicy
	notifier   Notifier
	urls       URLResolver
	sanitizer  *bluemonday.Policy
	metrics    *observability.Metrics
	clock      Clock
	newID      func() string
}

// NewQuoteService validates dependencies and constructs the service.
func NewQuoteService(deps QuoteServiceDeps) (QuoteService, error) {
	if deps.Quotes == nil {
		return nil, errors.New("quote service: quote repository is required")
	}
	if deps.Catalog == nil {
		return nil, errors.New("quote service: catalog repository is required")
	}
	if deps.Promotions == nil {
		return nil, errors.New("quote service: promotion repository is required")
	}
	if deps.Evaluator == nil {
		return nil, errors.New("quote service: promotion evaluator is required")
	}
	if deps.Pricing == nil {
		return nil, errors.New("quote service: pricing engine is required")
	}
	if deps.Sequence == nil {
		return nil, errors.New("quote service: sequence service is required")
	}
	if deps.Limiter == nil {
		return nil, errors.New("quote service: rate limiter is required")
	}
	if deps.Tax == nil {
		return nil, errors.New("quote service: tax policy is required")
	}
	if deps.Shipping == nil {
		return nil, errors.New("quote service: shipping policy is required")
	}
	if deps.Notifier == nil {
		return nil, errors.New("quote service: notifier is required")
	}
	if deps.URLs == nil {
		return nil, errors.New("quote service: url resolver is required")
	}

	sanitizer := deps.Sanitizer
	if sanitizer == nil {
		sanitizer = bluemonday.StrictPolicy()
	}
	clock := deps.Clock
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}
	newID := deps.NewID
	if newID == nil {
		newID = func() string { return "quo_" + ulid.Make().String() }
	}

	return &quoteService{
		quotes:     deps.Quotes,
		catalog:    deps.Catalog,
		promotions: deps.Promotions,
		evaluator:  deps.Evaluator,
		pricing:    deps.Pricing,
		sequence:   deps.Sequence,
		limiter:    deps.Limiter,
		tax:        deps.Tax,
		shipping:   deps.Shipping,
		notifier:   deps.Notifier,
		urls:       deps.URLs,
		sanitizer:  sanitizer,
		metrics:    deps.Metrics,
		clock:      clock,
		newID:      newID,
	}, nil
}

// Submit runs the submission pipeline: validate, rate-limit, sanitise, price,
// allocate, persist, notify. The rate-limit gate precedes any pricing or
// allocation work so blocked requests leave no side effects.
func (s *quoteService) Submit(ctx context.Context, cmd SubmitQuoteCommand) (domain.Quote, error) {
	if err := validateSubmit(cmd); err != nil {
		return domain.Quote{}, err
	}

	// One canonical phone form everywhere: limiter identity, stored
	// document, notification recipient. Formatting variants of the same
	// number must hit the same window and the same history.
	cmd.Customer.Phone = normalizePhone(cmd.Customer.Phone)

	decision, err := s.limiter.CheckAndRecord(ctx, cmd.Customer.Phone)
	if err != nil {
		return domain.Quote{}, fmt.Errorf("rate limit gate: %w", err)
	}
	if !decision.Allowed {
		s.metrics.RecordRateLimitRejection(ctx)
		requestctx.Logger(ctx).Info("quote submission rate limited",
			zap.String("phone", observability.MaskPhone(cmd.Customer.Phone)),
			zap.Duration("retry_after", decision.RetryAfter),
		)
		return domain.Quote{}, &RateLimitError{RetryAfter: decision.RetryAfter}
	}

	now := s.clock()
	message := strings.TrimSpace(s.sanitizer.Sanitize(cmd.Message))

	var promo *domain.Promotion
	if code := strings.TrimSpace(cmd.PromotionCode); code != "" {
		found, err := s.promotions.FindByCode(ctx, code)
		if err != nil {
			var repoErr repositories.RepositoryError
			if errors.As(err, &repoErr) && repoErr.IsNotFound() {
				return domain.Quote{}, fmt.Errorf("%w: unknown promotion code %q", ErrQuoteInvalidInput, code)
			}
			return domain.Quote{}, fmt.Errorf("resolve promotion %s: %w", code, err)
		}
		promo = &found
	}

	var (
		subtotal int64
		currency string
	)
	for i, item := range cmd.Items {
		product, err := s.catalog.GetProduct(ctx, item.ProductID)
		if err != nil {
			var repoErr repositories.RepositoryError
			if errors.As(err, &repoErr) && repoErr.IsNotFound() {
				return domain.Quote{}, fmt.Errorf("%w: unknown product %q", ErrQuoteInvalidInput, item.ProductID)
			}
			return domain.Quote{}, fmt.Errorf("resolve product %s: %w", item.ProductID, err)
		}

		breakdown, err := s.pricing.PriceItem(ctx, ItemPriceCommand{
			Product:         product,
			Quantity:        item.Quantity,
			SelectedOptions: item.Options,
		})
		if err != nil {
			if errors.Is(err, ErrPricingInvalidInput) {
				return domain.Quote{}, fmt.Errorf("%w: item %d: %v", ErrQuoteInvalidInput, i, err)
			}
			return domain.Quote{}, fmt.Errorf("price item %d: %w", i, err)
		}

		if currency == "" {
			currency = breakdown.Currency
		} else if breakdown.Currency != currency {
			return domain.Quote{}, fmt.Errorf("%w: mixed currencies %s and %s", ErrQuoteInvalidInput, currency, breakdown.Currency)
		}
		subtotal += breakdown.Subtotal
	}

	snapshot := domain.PricingSnapshot{
		Subtotal:       subtotal,
		TaxAmount:      s.tax.TaxAmount(subtotal),
		ShippingAmount: s.shipping.ShippingAmount(cmd.Delivery.Method, subtotal),
		Currency:       currency,
	}
	if promo != nil {
		evaluation := s.evaluator.Evaluate(*promo, subtotal, now)
		snapshot.PromotionCode = promo.Code
		snapshot.PromotionReason = evaluation.Reason
		if evaluation.Eligible {
			snapshot.DiscountAmount = evaluation.Discount
		}
	}
	snapshot.GrandTotal = domain.ClampMin(
		snapshot.Subtotal+snapshot.TaxAmount+snapshot.ShippingAmount-snapshot.DiscountAmount, 0)

	number, err := s.sequence.NextQuoteNumber(ctx, now)
	if err != nil {
		return domain.Quote{}, err
	}

	quote := domain.Quote{
		ID:       s.newID(),
		Number:   number,
		Customer: cmd.Customer,
		Delivery: cmd.Delivery,
		Items:    cmd.Items,
		Message:  message,
		Pricing:  snapshot,
		Status:   domain.OrderStatusPending,
		Payment: domain.Payment{
			Status: domain.PaymentStatusPending,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.quotes.Insert(ctx, quote); err != nil {
		return domain.Quote{}, fmt.Errorf("persist quote %s: %w", number, err)
	}

	s.notify(ctx, domain.NotificationEvent{
		Kind:       domain.NotificationQuoteSubmitted,
		Recipient:  quote.Customer.Phone,
		Number:     quote.Number,
		GrandTotal: quote.Pricing.GrandTotal,
		Currency:   quote.Pricing.Currency,
		OccurredAt: now,
	})

	return quote, nil
}

// Get fetches a quote by number with its file keys resolved to signed URLs.
func (s *quoteService) Get(ctx context.Context, number string) (QuoteView, error) {
	number = strings.TrimSpace(number)
	if number == "" {
		return QuoteView{}, fmt.Errorf("%w: number is required", ErrQuoteInvalidInput)
	}

	quote, err := s.quotes.FindByNumber(ctx, number)
	if err != nil {
		var repoErr repositories.RepositoryError
		if errors.As(err, &repoErr) && repoErr.IsNotFound() {
			return QuoteView{}, fmt.Errorf("%w: %s", ErrQuoteNotFound, number)
		}
		return QuoteView{}, fmt.Errorf("load quote %s: %w", number, err)
	}

	urls := make([]string, 0, len(quote.Items))
	for _, item := range quote.Items {
		url, err := s.urls.ResolveURL(ctx, item.FileKey)
		if err != nil {
			return QuoteView{}, fmt.Errorf("resolve file url for %s: %w", number, err)
		}
		urls = append(urls, url)
	}

	return QuoteView{Quote: quote, FileURLs: urls}, nil
}

// History lists the most recent quotes submitted from a phone number,
// newest first. File keys stay unresolved; callers fetch individual quotes
// for download URLs.
func (s *quoteService) History(ctx context.Context, phone string, limit int) ([]domain.Quote, error) {
	phone = normalizePhone(phone)
	if !phonePattern.MatchString(phone) {
		return nil, fmt.Errorf("%w: phone must be 10-15 digits", ErrQuoteInvalidInput)
	}
	if limit <= 0 || limit > maxHistoryLimit {
		limit = defaultHistoryLimit
	}

	quotes, err := s.quotes.ListByPhone(ctx, phone, limit)
	if err != nil {
		return nil, fmt.Errorf("list quotes for customer: %w", err)
	}
	return quotes, nil
}

func (s *quoteService) notify(ctx context.Context, event domain.NotificationEvent) {
	if _, err := s.notifier.Publish(ctx, event); err != nil {
		requestctx.Logger(ctx).Warn("notification publish failed",
			zap.String("kind", string(event.Kind)),
			zap.String("number", event.Number),
			zap.Error(err),
		)
	}
}

// normalizePhone strips whitespace so formatting variants of one number
// collapse to a single canonical form.
func normalizePhone(phone string) string {
	return strings.ReplaceAll(strings.TrimSpace(phone), " ", "")
}

func validateSubmit(cmd SubmitQuoteCommand) error {
	if !phonePattern.MatchString(normalizePhone(cmd.Customer.Phone)) {
		return fmt.Errorf("%w: customer phone is invalid", ErrQuoteInvalidInput)
	}
	if len(cmd.Items) == 0 {
		return fmt.Errorf("%w: at least one file is required", ErrQuoteInvalidInput)
	}
	for i, item := range cmd.Items {
		if strings.TrimSpace(item.FileKey) == "" {
			return fmt.Errorf("%w: item %d has no file", ErrQuoteInvalidInput, i)
		}
		if strings.TrimSpace(item.ProductID) == "" {
			return fmt.Errorf("%w: item %d has no product", ErrQuoteInvalidInput, i)
		}
		if item.Quantity < 1 {
			return fmt.Errorf("%w: item %d quantity must be at least 1", ErrQuoteInvalidInput, i)
		}
	}
	if strings.TrimSpace(cmd.Delivery.Method) == "" {
		return fmt.Errorf("%w: delivery method is required", ErrQuoteInvalidInput)
	}
	return nil
}
