package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/printworks/api/internal/domain"
)

// PricingEngineDeps wires the collaborators required by the pricing engine.
type PricingEngineDeps struct {
	Promotions PromotionService
	Tax        TaxPolicy
	Shipping   ShippingPolicy
	Clock      Clock
}

type pricingEngine struct {
	promotions PromotionService
	tax        TaxPolicy
	shipping   ShippingPolicy
	clock      Clock
}

// NewPricingEngine validates dependencies and constructs the engine.
func NewPricingEngine(deps PricingEngineDeps) (PricingEngine, error) {
	if deps.Promotions == nil {
		return nil, errors.New("pricing engine: promotion service is required")
	}
	if deps.Tax == nil {
		return nil, errors.New("pricing engine: tax policy is required")
	}
	if deps.Shipping == nil {
		return nil, errors.New("pricing engine: shipping policy is required")
	}
	clock := deps.Clock
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}
	return &pricingEngine{
		promotions: deps.Promotions,
		tax:        deps.Tax,
		shipping:   deps.Shipping,
		clock:      clock,
	}, nil
}

// PriceItem computes the pre-tax subtotal for one product selection. Results
// are deterministic: option deltas follow the product's option declaration
// order, never the caller's map ordering.
func (e *pricingEngine) PriceItem(_ context.Context, cmd ItemPriceCommand) (ItemBreakdown, error) {
	if cmd.Quantity < 1 {
		return ItemBreakdown{}, fmt.Errorf("%w: quantity must be at least 1", ErrPricingInvalidInput)
	}

	unitPrice, err := unitPriceFor(cmd.Product, cmd.Quantity)
	if err != nil {
		return ItemBreakdown{}, err
	}

	if err := validateSelection(cmd.Product, cmd.SelectedOptions); err != nil {
		return ItemBreakdown{}, err
	}

	baseSubtotal := unitPrice * int64(cmd.Quantity)
	running := baseSubtotal
	deltas := make([]OptionDelta, 0, len(cmd.Product.Options))

	// Flat deltas first, then percent deltas, each pass in declaration order.
	for _, option := range cmd.Product.Options {
		value, selected := selectedValue(option, cmd.SelectedOptions)
		if !selected || value.PriceDeltaType != domain.PriceDeltaFlat {
			continue
		}
		amount := domain.RoundHalfUp(value.PriceDelta)
		running += amount
		deltas = append(deltas, OptionDelta{
			Option: option.Name,
			Value:  value.Value,
			Type:   domain.PriceDeltaFlat,
			Amount: amount,
		})
	}
	for _, option := range cmd.Product.Options {
		value, selected := selectedValue(option, cmd.SelectedOptions)
		if !selected || value.PriceDeltaType != domain.PriceDeltaPercent {
			continue
		}
		next := domain.ApplyPercent(running, value.PriceDelta)
		deltas = append(deltas, OptionDelta{
			Option: option.Name,
			Value:  value.Value,
			Type:   domain.PriceDeltaPercent,
			Amount: next - running,
		})
		running = next
	}

	return ItemBreakdown{
		UnitPrice:    unitPrice,
		BaseSubtotal: baseSubtotal,
		OptionDeltas: deltas,
		Subtotal:     running,
		Currency:     cmd.Product.Currency,
	}, nil
}

// Price computes the full order breakdown for a single product selection.
func (e *pricingEngine) Price(ctx context.Context, cmd PriceCommand) (PriceBreakdown, error) {
	item, err := e.PriceItem(ctx, ItemPriceCommand{
		Product:         cmd.Product,
		Quantity:        cmd.Quantity,
		SelectedOptions: cmd.SelectedOptions,
	})
	if err != nil {
		return PriceBreakdown{}, err
	}

	now := cmd.Now
	if now.IsZero() {
		now = e.clock()
	}

	breakdown := PriceBreakdown{
		UnitPrice:      item.UnitPrice,
		Subtotal:       item.Subtotal,
		OptionDeltas:   item.OptionDeltas,
		TaxAmount:      e.tax.TaxAmount(item.Subtotal),
		ShippingAmount: e.shipping.ShippingAmount(cmd.DeliveryMethod, item.Subtotal),
		Currency:       item.Currency,
	}

	if cmd.Promotion != nil {
		evaluation := e.promotions.Evaluate(*cmd.Promotion, item.Subtotal, now)
		breakdown.DiscountReason = evaluation.Reason
		if evaluation.Eligible {
			breakdown.DiscountAmount = evaluation.Discount
		}
	}

	breakdown.GrandTotal = domain.ClampMin(
		breakdown.Subtotal+breakdown.TaxAmount+breakdown.ShippingAmount-breakdown.DiscountAmount, 0)
	return breakdown, nil
}

func unitPriceFor(product domain.Product, quantity int) (int64, error) {
	switch product.Method {
	case domain.PricingMethodFlat:
		return product.BasePrice, nil
	case domain.PricingMethodTier:
		unit := product.BasePrice
		best := -1
		for _, tier := range product.Tiers {
			if tier.MinQty <= quantity && tier.MinQty > best {
				best = tier.MinQty
				unit = tier.UnitPrice
			}
		}
		return unit, nil
	case domain.PricingMethodArea:
		if product.Area == nil {
			return 0, fmt.Errorf("%w: area pricing configuration missing", ErrPricingInvalidInput)
		}
		perUnit := domain.RoundHalfUp(float64(product.Area.PricePerSqFt) * product.Area.SqFtPerUnit)
		if perUnit < product.Area.MinCharge {
			perUnit = product.Area.MinCharge
		}
		return perUnit, nil
	default:
		return 0, fmt.Errorf("%w: unknown pricing method %q", ErrPricingInvalidInput, product.Method)
	}
}

func validateSelection(product domain.Product, selected map[string]string) error {
	known := make(map[string]bool, len(product.Options))
	for _, option := range product.Options {
		known[option.Name] = true
		raw, ok := selected[option.Name]
		if !ok || strings.TrimSpace(raw) == "" {
			if option.Required {
				return fmt.Errorf("%w: option %q is required", ErrPricingInvalidInput, option.Name)
			}
			continue
		}
		if _, found := findValue(option, raw); !found {
			return fmt.Errorf("%w: option %q has no value %q", ErrPricingInvalidInput, option.Name, raw)
		}
	}
	for name := range selected {
		if !known[name] {
			return fmt.Errorf("%w: unknown option %q", ErrPricingInvalidInput, name)
		}
	}
	return nil
}

func selectedValue(option domain.ProductOption, selected map[string]string) (domain.OptionValue, bool) {
	raw, ok := selected[option.Name]
	if !ok || strings.TrimSpace(raw) == "" {
		return domain.OptionValue{}, false
	}
	return findValue(option, raw)
}

func findValue(option domain.ProductOption, value string) (domain.OptionValue, bool) {
	trimmed := strings.TrimSpace(value)
	for _, candidate := range option.Values {
		if candidate.Value == trimmed {
			return candidate, true
		}
	}
	return domain.OptionValue{}, false
}
