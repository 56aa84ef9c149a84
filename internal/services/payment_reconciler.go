package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/printworks/api/internal/domain"
	"github.com/printworks/api/internal/gateway"
	"github.com/printworks/api/internal/platform/observability"
	"github.com/printworks/api/internal/platform/requestctx"
	"github.com/printworks/api/internal/repositories"
)

// SignatureVerifier authenticates raw webhook bodies.
type SignatureVerifier interface {
	Verify(body []byte, signature string) error
}

// PaymentReconcilerDeps wires the webhook processing pipeline.
type PaymentReconcilerDeps struct {
	Verifier   SignatureVerifier
	Ledger     repositories.PaymentLedgerRepository
	Orders     OrderService
	Promotions PromotionService
	Notifier   Notifier
	Metrics    *observability.Metrics
	Clock      Clock
}

type paymentReconciler struct {
	verifier   SignatureVerifier
	ledger     repositories.PaymentLedgerRepository
	orders     OrderService
	promotions PromotionService
	notifier   Notifier
	metrics    *observability.Metrics
	clock      Clock
}

// NewPaymentReconciler validates dependencies and constructs the reconciler.
func NewPaymentReconciler(deps PaymentReconcilerDeps) (PaymentReconciler, error) {
	if deps.Verifier == nil {
		return nil, errors.New("payment reconciler: signature verifier is required")
	}
	if deps.Ledger == nil {
		return nil, errors.New("payment reconciler: ledger repository is required")
	}
	if deps.Orders == nil {
		return nil, errors.New("payment reconciler: order service is required")
	}
	if deps.Promotions == nil {
		return nil, errors.New("payment reconciler: promotion service is required")
	}
	if deps.Notifier == nil {
		return nil, errors.New("payment reconciler: notifier is required")
	}
	clock := deps.Clock
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}
	return &paymentReconciler{
		verifier:   deps.Verifier,
		ledger:     deps.Ledger,
		orders:     deps.Orders,
		promotions: deps.Promotions,
		notifier:   deps.Notifier,
		metrics:    deps.Metrics,
		clock:      clock,
	}, nil
}

// HandleEvent verifies, parses, deduplicates and applies one gateway
// delivery. Events whose implied transition is invalid from the order's
// current state are ledgered with outcome ignored so redelivery stays
// harmless, and counted as anomalies.
func (r *paymentReconciler) HandleEvent(ctx context.Context, rawBody []byte, signature string) (ReconcileResult, error) {
	logger := requestctx.Logger(ctx)

	if err := r.verifier.Verify(rawBody, signature); err != nil {
		r.metrics.RecordSignatureFailure(ctx)
		return ReconcileResult{}, fmt.Errorf("%w: %v", ErrSignatureInvalid, err)
	}

	event, err := gateway.ParseEvent(rawBody)
	if err != nil {
		return ReconcileResult{}, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}

	key := event.LedgerKey()
	if existing, found, err := r.ledger.Find(ctx, key); err != nil {
		return ReconcileResult{}, fmt.Errorf("ledger lookup %s: %w", key, err)
	} else if found {
		logger.Info("duplicate gateway event ignored",
			zap.String("event_id", key),
			zap.String("order_number", existing.OrderNumber),
		)
		return ReconcileResult{
			Outcome:     existing.Outcome,
			Duplicate:   true,
			OrderNumber: existing.OrderNumber,
		}, nil
	}

	now := r.clock()
	update := PaymentUpdate{
		TransactionID: event.PaymentID,
		Amount:        event.Amount,
		OccurredAt:    now,
	}
	switch event.Type {
	case gateway.EventPaymentCaptured:
		update.Status = domain.PaymentStatusPaid
	case gateway.EventPaymentFailed:
		update.Status = domain.PaymentStatusFailed
		update.FailureReason = event.FailureCode
	}

	record := domain.PaymentEvent{
		ID:               key,
		EventType:        string(event.Type),
		GatewayPaymentID: event.PaymentID,
		OrderNumber:      event.OrderNumber,
		AppliedAt:        now,
	}

	var (
		updated       domain.Quote
		anomalyStatus string
	)
	applied, err := r.ledger.Apply(ctx, record, func(txCtx context.Context) (domain.PaymentEventOutcome, error) {
		// The transaction runner may call this again after contention.
		// Clear captures so a retry never sees the previous attempt.
		updated = domain.Quote{}
		anomalyStatus = ""

		quote, err := r.orders.ApplyPayment(txCtx, event.OrderNumber, update)
		if err != nil {
			if errors.Is(err, ErrInvalidTransition) {
				anomalyStatus = "invalid_transition"
				return domain.PaymentEventIgnored, nil
			}
			if errors.Is(err, ErrOrderNotFound) {
				anomalyStatus = "unknown_order"
				return domain.PaymentEventIgnored, nil
			}
			return "", err
		}
		updated = quote
		return domain.PaymentEventApplied, nil
	})
	if err != nil {
		return ReconcileResult{}, fmt.Errorf("apply gateway event %s: %w", key, err)
	}
	if !applied {
		// Lost a race with a concurrent delivery of the same event.
		existing, _, findErr := r.ledger.Find(ctx, key)
		if findErr != nil {
			return ReconcileResult{}, fmt.Errorf("ledger lookup %s: %w", key, findErr)
		}
		return ReconcileResult{
			Outcome:     existing.Outcome,
			Duplicate:   true,
			OrderNumber: existing.OrderNumber,
		}, nil
	}

	if anomalyStatus != "" {
		r.metrics.RecordWebhookAnomaly(ctx, string(event.Type), anomalyStatus)
		return ReconcileResult{
			Outcome:     domain.PaymentEventIgnored,
			OrderNumber: event.OrderNumber,
		}, nil
	}

	r.afterApply(ctx, event, updated, now)
	return ReconcileResult{
		Outcome:     domain.PaymentEventApplied,
		OrderNumber: event.OrderNumber,
	}, nil
}

// afterApply runs the post-commit side effects: customer notification and,
// for captured payments carrying an applied promotion, usage redemption.
func (r *paymentReconciler) afterApply(ctx context.Context, event gateway.Event, quote domain.Quote, now time.Time) {
	logger := requestctx.Logger(ctx)

	notification := domain.NotificationEvent{
		Recipient:  quote.Customer.Phone,
		Number:     quote.Number,
		GrandTotal: quote.Pricing.GrandTotal,
		Currency:   quote.Pricing.Currency,
		OccurredAt: now,
	}
	switch event.Type {
	case gateway.EventPaymentCaptured:
		notification.Kind = domain.NotificationOrderConfirmed
		notification.AmountPaid = event.Amount
	case gateway.EventPaymentFailed:
		notification.Kind = domain.NotificationPaymentFailed
	}
	if _, err := r.notifier.Publish(ctx, notification); err != nil {
		logger.Warn("notification publish failed",
			zap.String("kind", string(notification.Kind)),
			zap.String("number", quote.Number),
			zap.Error(err),
		)
	}

	if event.Type != gateway.EventPaymentCaptured {
		return
	}
	snapshot := quote.Pricing
	if snapshot.PromotionCode == "" || snapshot.PromotionReason != domain.PromotionApplied {
		return
	}
	if err := r.promotions.Redeem(ctx, snapshot.PromotionCode); err != nil {
		// The payment is already applied; an exhausted counter here is an
		// operational signal, not a customer-facing failure.
		logger.Warn("promotion redemption failed",
			zap.String("code", snapshot.PromotionCode),
			zap.String("number", quote.Number),
			zap.Error(err),
		)
	}
}
