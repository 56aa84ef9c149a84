package domain

import (
	"time"
)

// PricingMethod selects how a product's base amount is derived from quantity.
type PricingMethod string

const (
	// PricingMethodFlat charges the base price per unit.
	PricingMethodFlat PricingMethod = "flat"
	// PricingMethodTier charges the unit price of the largest tier whose
	// minimum quantity does not exceed the ordered quantity.
	PricingMethodTier PricingMethod = "tier"
	// PricingMethodArea charges per square foot with a minimum charge per unit.
	PricingMethodArea PricingMethod = "area"
)

// PriceDeltaType distinguishes flat and percentage option adjustments.
type PriceDeltaType string

const (
	// PriceDeltaFlat adds a fixed amount once per order.
	PriceDeltaFlat PriceDeltaType = "flat"
	// PriceDeltaPercent scales the running subtotal by (1 + delta/100).
	PriceDeltaPercent PriceDeltaType = "percent"
)

// PricingTier is a quantity breakpoint with its unit price.
type PricingTier struct {
	MinQty    int   `firestore:"minQty"`
	UnitPrice int64 `firestore:"unitPrice"`
}

// AreaPricing configures the area pricing method. SqFtPerUnit is the printed
// area of a single unit.
type AreaPricing struct {
	PricePerSqFt int64   `firestore:"pricePerSqFt"`
	MinCharge    int64   `firestore:"minCharge"`
	SqFtPerUnit  float64 `firestore:"sqFtPerUnit"`
}

// OptionValue is one selectable value of a product option.
type OptionValue struct {
	Value          string         `firestore:"value"`
	Label          string         `firestore:"label"`
	PriceDelta     float64        `firestore:"priceDelta"`
	PriceDeltaType PriceDeltaType `firestore:"priceDeltaType"`
}

// ProductOption groups the selectable values for one product attribute
// (paper size, color mode, lamination, ...).
type ProductOption struct {
	Name     string        `firestore:"name"`
	Required bool          `firestore:"required"`
	Values   []OptionValue `firestore:"values"`
}

// Product is an immutable catalog definition consumed by the pricing engine.
// Catalog management owns mutation; the engine never writes back.
type Product struct {
	ID        string          `firestore:"id"`
	Name      string          `firestore:"name"`
	Method    PricingMethod   `firestore:"pricingMethod"`
	BasePrice int64           `firestore:"basePrice"`
	Tiers     []PricingTier   `firestore:"pricingTiers,omitempty"`
	Area      *AreaPricing    `firestore:"areaPricing,omitempty"`
	Options   []ProductOption `firestore:"options,omitempty"`
	Currency  string          `firestore:"currency"`
}

// DiscountType distinguishes percentage and fixed promotions.
type DiscountType string

const (
	// DiscountPercentage computes the discount as a share of the subtotal.
	DiscountPercentage DiscountType = "percentage"
	// DiscountFixed subtracts a fixed amount.
	DiscountFixed DiscountType = "fixed"
)

// Promotion is a discount definition with an applicability window and an
// optional redemption budget. UsedCount never exceeds UsageLimit when set;
// the repository enforces that with a conditional transactional increment.
type Promotion struct {
	Code              string       `firestore:"code"`
	Discount          float64      `firestore:"discount"`
	DiscountType      DiscountType `firestore:"discountType"`
	StartsAt          time.Time    `firestore:"startDate"`
	EndsAt            time.Time    `firestore:"endDate"`
	MinOrderAmount    *int64       `firestore:"minOrderAmount,omitempty"`
	MaxDiscountAmount *int64       `firestore:"maxDiscountAmount,omitempty"`
	UsageLimit        *int64       `firestore:"usageLimit,omitempty"`
	UsedCount         int64        `firestore:"usedCount"`
	IsActive          bool         `firestore:"isActive"`
}

// PromotionReason explains why a promotion did or did not apply.
type PromotionReason string

const (
	PromotionApplied        PromotionReason = "applied"
	PromotionInactive       PromotionReason = "inactive"
	PromotionNotStarted     PromotionReason = "not_started"
	PromotionExpired        PromotionReason = "expired"
	PromotionUsageExhausted PromotionReason = "usage_exhausted"
	PromotionMinOrderNotMet PromotionReason = "min_order_not_met"
)

// OrderStatus enumerates the order lifecycle.
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusConfirmed  OrderStatus = "confirmed"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

// PaymentStatus enumerates the payment lifecycle.
type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusFailed   PaymentStatus = "failed"
	PaymentStatusRefunded PaymentStatus = "refunded"
)

// Customer identifies the submitting customer. Phone doubles as the
// rate-limiting identity.
type Customer struct {
	Phone string `firestore:"phone"`
	Email string `firestore:"email,omitempty"`
}

// Delivery captures the requested fulfilment channel.
type Delivery struct {
	Method  string `firestore:"method"`
	Address string `firestore:"address,omitempty"`
}

// QuoteItem is one uploaded file with its print configuration. FileKey is an
// opaque storage key; the core never inspects it.
type QuoteItem struct {
	FileKey   string            `firestore:"fileKey"`
	ProductID string            `firestore:"productId"`
	Quantity  int               `firestore:"quantity"`
	Options   map[string]string `firestore:"options,omitempty"`
}

// PricingSnapshot is the immutable price breakdown embedded in the quote
// document at creation. It is never recomputed from the catalog afterwards.
type PricingSnapshot struct {
	Subtotal        int64           `firestore:"subtotal"`
	TaxAmount       int64           `firestore:"taxAmount"`
	ShippingAmount  int64           `firestore:"shippingAmount"`
	DiscountAmount  int64           `firestore:"discountAmount"`
	GrandTotal      int64           `firestore:"grandTotal"`
	Currency        string          `firestore:"currency"`
	PromotionCode   string          `firestore:"promotionCode,omitempty"`
	PromotionReason PromotionReason `firestore:"promotionReason,omitempty"`
}

// Payment tracks gateway state for a quote.
type Payment struct {
	Method        string        `firestore:"method"`
	Status        PaymentStatus `firestore:"status"`
	TransactionID string        `firestore:"transactionId,omitempty"`
	FailureReason string        `firestore:"failureReason,omitempty"`
}

// Quote is the persisted quote/order document. Status and Payment.Status are
// mutated only through the order state machine.
type Quote struct {
	ID          string          `firestore:"id"`
	Number      string          `firestore:"number"`
	Customer    Customer        `firestore:"customer"`
	Delivery    Delivery        `firestore:"delivery"`
	Items       []QuoteItem     `firestore:"items"`
	Message     string          `firestore:"message,omitempty"`
	Pricing     PricingSnapshot `firestore:"pricing"`
	Status      OrderStatus     `firestore:"status"`
	Payment     Payment         `firestore:"payment"`
	CreatedAt   time.Time       `firestore:"createdAt"`
	UpdatedAt   time.Time       `firestore:"updatedAt"`
	PaidAt      *time.Time      `firestore:"paidAt,omitempty"`
	CancelledAt *time.Time      `firestore:"cancelledAt,omitempty"`
	DeliveredAt *time.Time      `firestore:"deliveredAt,omitempty"`
}

// NotificationKind tags outbound notification events.
type NotificationKind string

const (
	NotificationQuoteSubmitted NotificationKind = "quote_submitted"
	NotificationOrderConfirmed NotificationKind = "order_confirmed"
	NotificationPaymentFailed  NotificationKind = "payment_failed"
)

// NotificationEvent is the contract consumed by the external dispatcher.
// Delivery mechanics (SMS, SMTP) live outside this service.
type NotificationEvent struct {
	Kind       NotificationKind `json:"kind"`
	Recipient  string           `json:"recipient"`
	Number     string           `json:"orderOrQuoteNumber"`
	GrandTotal int64            `json:"grandTotal"`
	AmountPaid int64            `json:"amountPaid,omitempty"`
	Currency   string           `json:"currency"`
	OccurredAt time.Time        `json:"occurredAt"`
}

// PaymentEventOutcome records how a ledgered gateway event was resolved.
type PaymentEventOutcome string

const (
	// PaymentEventApplied means the event drove a state transition.
	PaymentEventApplied PaymentEventOutcome = "applied"
	// PaymentEventIgnored means the implied transition was invalid from the
	// order's state at arrival time (late or out-of-order delivery).
	PaymentEventIgnored PaymentEventOutcome = "ignored"
)

// PaymentEvent is the applied-once ledger record keyed by the gateway's
// payment id and event kind. Its existence is what makes replays harmless.
type PaymentEvent struct {
	ID               string              `firestore:"id"`
	EventType        string              `firestore:"eventType"`
	GatewayPaymentID string              `firestore:"gatewayPaymentId"`
	OrderNumber      string              `firestore:"orderNumber"`
	Outcome          PaymentEventOutcome `firestore:"outcome"`
	AppliedAt        time.Time           `firestore:"appliedAt"`
}
