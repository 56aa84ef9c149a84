package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/printworks/api/internal/domain"
	"github.com/printworks/api/internal/repositories"
)

var orderStateTransitions = map[domain.OrderStatus][]domain.OrderStatus{
	domain.OrderStatusPending:    {domain.OrderStatusConfirmed, domain.OrderStatusCancelled},
	domain.OrderStatusConfirmed:  {domain.OrderStatusProcessing, domain.OrderStatusCancelled},
	domain.OrderStatusProcessing: {domain.OrderStatusShipped},
	domain.OrderStatusShipped:    {domain.OrderStatusDelivered},
}

var paymentStateTransitions = map[domain.PaymentStatus][]domain.PaymentStatus{
	domain.PaymentStatusPending: {domain.PaymentStatusPaid, domain.PaymentStatusFailed},
	domain.PaymentStatusPaid:    {domain.PaymentStatusRefunded},
}

func canTransitionOrder(current, target domain.OrderStatus) bool {
	next, ok := orderStateTransitions[current]
	if !ok {
		return false
	}
	return slices.Contains(next, target)
}

func canTransitionPayment(current, target domain.PaymentStatus) bool {
	next, ok := paymentStateTransitions[current]
	if !ok {
		return false
	}
	return slices.Contains(next, target)
}

// OrderServiceDeps wires the quote repository and clock.
type OrderServiceDeps struct {
	Quotes repositories.QuoteRepository
	Clock  Clock
}

type orderService struct {
	quotes repositories.QuoteRepository
	clock  Clock
}

// NewOrderService validates dependencies and constructs the state machine
// owner. Notifications for applied transitions are emitted by callers after
// their transaction commits, never from inside the mutation.
func NewOrderService(deps OrderServiceDeps) (OrderService, error) {
	if deps.Quotes == nil {
		return nil, errors.New("order service: quote repository is required")
	}
	clock := deps.Clock
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}
	return &orderService{quotes: deps.Quotes, clock: clock}, nil
}

// ApplyPayment applies a gateway outcome to the order's payment state and the
// coupled order transition. It runs against whatever persistence scope the
// caller's context carries, so the reconciler can place it inside the ledger
// transaction.
func (s *orderService) ApplyPayment(ctx context.Context, orderNumber string, update PaymentUpdate) (domain.Quote, error) {
	quote, err := s.load(ctx, orderNumber)
	if err != nil {
		return domain.Quote{}, err
	}

	if !canTransitionPayment(quote.Payment.Status, update.Status) {
		return domain.Quote{}, fmt.Errorf("%w: payment %s -> %s on %s",
			ErrInvalidTransition, quote.Payment.Status, update.Status, quote.Number)
	}

	now := update.OccurredAt
	if now.IsZero() {
		now = s.clock()
	}

	quote.Payment.Status = update.Status
	if update.TransactionID != "" {
		quote.Payment.TransactionID = update.TransactionID
	}
	switch update.Status {
	case domain.PaymentStatusPaid:
		if !canTransitionOrder(quote.Status, domain.OrderStatusConfirmed) {
			return domain.Quote{}, fmt.Errorf("%w: order %s -> %s on %s",
				ErrInvalidTransition, quote.Status, domain.OrderStatusConfirmed, quote.Number)
		}
		quote.Status = domain.OrderStatusConfirmed
		paidAt := now
		quote.PaidAt = &paidAt
		quote.Payment.FailureReason = ""
	case domain.PaymentStatusFailed:
		// Order stays pending so the customer can retry payment.
		quote.Payment.FailureReason = update.FailureReason
	case domain.PaymentStatusRefunded:
	}

	quote.UpdatedAt = s.clock()
	if err := s.quotes.Update(ctx, quote); err != nil {
		return domain.Quote{}, fmt.Errorf("persist payment update for %s: %w", quote.Number, err)
	}
	return quote, nil
}

// Transition moves the order to the target status along the fulfilment path.
func (s *orderService) Transition(ctx context.Context, orderNumber string, target domain.OrderStatus) (domain.Quote, error) {
	quote, err := s.load(ctx, orderNumber)
	if err != nil {
		return domain.Quote{}, err
	}

	if !canTransitionOrder(quote.Status, target) {
		return domain.Quote{}, fmt.Errorf("%w: order %s -> %s on %s",
			ErrInvalidTransition, quote.Status, target, quote.Number)
	}

	now := s.clock()
	quote.Status = target
	quote.UpdatedAt = now
	switch target {
	case domain.OrderStatusCancelled:
		cancelledAt := now
		quote.CancelledAt = &cancelledAt
	case domain.OrderStatusDelivered:
		deliveredAt := now
		quote.DeliveredAt = &deliveredAt
	}

	if err := s.quotes.Update(ctx, quote); err != nil {
		return domain.Quote{}, fmt.Errorf("persist transition for %s: %w", quote.Number, err)
	}
	return quote, nil
}

func (s *orderService) load(ctx context.Context, orderNumber string) (domain.Quote, error) {
	number := strings.TrimSpace(orderNumber)
	if number == "" {
		return domain.Quote{}, fmt.Errorf("%w: order number is required", ErrOrderNotFound)
	}
	quote, err := s.quotes.FindByNumber(ctx, number)
	if err != nil {
		var repoErr repositories.RepositoryError
		if errors.As(err, &repoErr) && repoErr.IsNotFound() {
			return domain.Quote{}, fmt.Errorf("%w: %s", ErrOrderNotFound, number)
		}
		return domain.Quote{}, fmt.Errorf("load order %s: %w", number, err)
	}
	return quote, nil
}
