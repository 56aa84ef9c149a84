package services

import (
	"context"
	"errors"
	"time"

	"github.com/printworks/api/internal/domain"
)

// Sentinel errors surfaced to the HTTP layer.
var (
	ErrQuoteInvalidInput   = errors.New("quote: invalid input")
	ErrQuoteNotFound       = errors.New("quote: not found")
	ErrPricingInvalidInput = errors.New("pricing: invalid input")
	ErrRateLimited         = errors.New("rate limit exceeded")
	ErrSequenceExhausted   = errors.New("sequence: daily capacity exhausted")
	ErrSignatureInvalid    = errors.New("webhook: signature invalid")
	ErrMalformedEvent      = errors.New("webhook: event malformed")
	ErrInvalidTransition   = errors.New("order: invalid transition")
	ErrOrderNotFound       = errors.New("order: not found")
)

// Clock supplies the current time; injected so tests control it.
type Clock func() time.Time

// TaxPolicy computes the tax amount for a pre-discount subtotal.
type TaxPolicy interface {
	TaxAmount(subtotal int64) int64
}

// ShippingPolicy computes the shipping amount for a delivery method.
type ShippingPolicy interface {
	ShippingAmount(method string, subtotal int64) int64
}

// Notifier publishes notification events. Implementations must not be load
// bearing for the triggering operation.
type Notifier interface {
	Publish(ctx context.Context, event domain.NotificationEvent) (string, error)
}

// URLResolver converts opaque file keys into fetchable URLs.
type URLResolver interface {
	ResolveURL(ctx context.Context, key string) (string, error)
}

// ItemPriceCommand prices a single catalog product selection.
type ItemPriceCommand struct {
	Product         domain.Product
	Quantity        int
	SelectedOptions map[string]string
}

// ItemBreakdown is the pre-tax price of one selection.
type ItemBreakdown struct {
	UnitPrice    int64
	BaseSubtotal int64
	OptionDeltas []OptionDelta
	Subtotal     int64
	Currency     string
}

// OptionDelta records the contribution of one selected option value.
type OptionDelta struct {
	Option string
	Value  string
	Type   domain.PriceDeltaType
	Amount int64
}

// PriceCommand prices a whole order for one product selection.
type PriceCommand struct {
	Product         domain.Product
	Quantity        int
	SelectedOptions map[string]string
	Promotion       *domain.Promotion
	DeliveryMethod  string
	Now             time.Time
}

// PriceBreakdown is the full order price including tax, shipping and discount.
type PriceBreakdown struct {
	UnitPrice      int64
	Subtotal       int64
	OptionDeltas   []OptionDelta
	TaxAmount      int64
	ShippingAmount int64
	DiscountAmount int64
	DiscountReason domain.PromotionReason
	GrandTotal     int64
	Currency       string
}

// PricingEngine computes immutable price breakdowns from catalog definitions.
type PricingEngine interface {
	PriceItem(ctx context.Context, cmd ItemPriceCommand) (ItemBreakdown, error)
	Price(ctx context.Context, cmd PriceCommand) (PriceBreakdown, error)
}

// Evaluation reports promotion eligibility for a subtotal at a point in time.
type Evaluation struct {
	Eligible bool
	Discount int64
	Reason   domain.PromotionReason
}

// PromotionService gates and redeems promotions.
type PromotionService interface {
	Evaluate(promo domain.Promotion, subtotal int64, now time.Time) Evaluation
	Redeem(ctx context.Context, code string) error
}

// SequenceService allocates human-readable quote numbers.
type SequenceService interface {
	NextQuoteNumber(ctx context.Context, now time.Time) (string, error)
}

// PaymentUpdate carries the gateway outcome applied to an order.
type PaymentUpdate struct {
	Status        domain.PaymentStatus
	TransactionID string
	FailureReason string
	Amount        int64
	OccurredAt    time.Time
}

// OrderService owns every status mutation of persisted quotes.
type OrderService interface {
	ApplyPayment(ctx context.Context, orderNumber string, update PaymentUpdate) (domain.Quote, error)
	Transition(ctx context.Context, orderNumber string, target domain.OrderStatus) (domain.Quote, error)
}

// Decision is the rate limiter verdict for one submission attempt.
type Decision struct {
	Allowed    bool
	RetryAfter time.Duration
}

// RateLimiter bounds quote submissions per customer identity.
type RateLimiter interface {
	CheckAndRecord(ctx context.Context, identity string) (Decision, error)
}

// SubmitQuoteCommand is the quote submission payload after transport decoding.
type SubmitQuoteCommand struct {
	Customer      domain.Customer
	Delivery      domain.Delivery
	Items         []domain.QuoteItem
	Message       string
	PromotionCode string
}

// QuoteView is a quote with file keys resolved to fetchable URLs.
type QuoteView struct {
	Quote    domain.Quote
	FileURLs []string
}

// QuoteService orchestrates quote submission and retrieval.
type QuoteService interface {
	Submit(ctx context.Context, cmd SubmitQuoteCommand) (domain.Quote, error)
	Get(ctx context.Context, number string) (QuoteView, error)
	History(ctx context.Context, phone string, limit int) ([]domain.Quote, error)
}

// ReconcileResult reports how a webhook event was resolved.
type ReconcileResult struct {
	Outcome     domain.PaymentEventOutcome
	Duplicate   bool
	OrderNumber string
}

// PaymentReconciler processes signed gateway webhook deliveries.
type PaymentReconciler interface {
	HandleEvent(ctx context.Context, rawBody []byte, signature string) (ReconcileResult, error)
}
