package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/printworks/api/internal/domain"
)

func testClock() Clock {
	fixed := time.Date(2026, time.August, 31, 10, 0, 0, 0, time.UTC)
	return func() time.Time { return fixed }
}

func newTestPricingEngine(t *testing.T) PricingEngine {
	t.Helper()
	promotions, err := NewPromotionService(PromotionServiceDeps{Promotions: newStubPromotionRepo()})
	if err != nil {
		t.Fatalf("NewPromotionService: %v", err)
	}
	engine, err := NewPricingEngine(PricingEngineDeps{
		Promotions: promotions,
		Tax:        RateTaxPolicy{Percent: 18},
		Shipping: FlatShippingPolicy{
			ByMethod: map[string]int64{"pickup": 0, "courier": 5000},
			Default:  5000,
		},
		Clock: testClock(),
	})
	if err != nil {
		t.Fatalf("NewPricingEngine: %v", err)
	}
	return engine
}

func flatProduct(basePrice int64) domain.Product {
	return domain.Product{
		ID:        "prod_flyer",
		Name:      "A5 Flyer",
		Method:    domain.PricingMethodFlat,
		BasePrice: basePrice,
		Currency:  "INR",
	}
}

func TestPriceFlatProductWithTaxAndShipping(t *testing.T) {
	engine := newTestPricingEngine(t)

	breakdown, err := engine.Price(context.Background(), PriceCommand{
		Product:        flatProduct(15000),
		Quantity:       3,
		DeliveryMethod: "courier",
	})
	if err != nil {
		t.Fatalf("Price: %v", err)
	}

	if breakdown.Subtotal != 45000 {
		t.Errorf("Subtotal = %d, want 45000", breakdown.Subtotal)
	}
	if breakdown.TaxAmount != 8100 {
		t.Errorf("TaxAmount = %d, want 8100", breakdown.TaxAmount)
	}
	if breakdown.ShippingAmount != 5000 {
		t.Errorf("ShippingAmount = %d, want 5000", breakdown.ShippingAmount)
	}
	if breakdown.GrandTotal != 58100 {
		t.Errorf("GrandTotal = %d, want 58100", breakdown.GrandTotal)
	}
}

func TestPriceItemTierSelection(t *testing.T) {
	product := domain.Product{
		ID:        "prod_card",
		Method:    domain.PricingMethodTier,
		BasePrice: 18000,
		Tiers: []domain.PricingTier{
			{MinQty: 100, UnitPrice: 16000},
			{MinQty: 250, UnitPrice: 14000},
			{MinQty: 500, UnitPrice: 12000},
		},
		Currency: "INR",
	}
	engine := newTestPricingEngine(t)

	cases := []struct {
		name         string
		quantity     int
		wantUnit     int64
		wantSubtotal int64
	}{
		{"below first tier", 99, 18000, 99 * 18000},
		{"exact tier boundary", 250, 14000, 3500000},
		{"above last tier", 600, 12000, 600 * 12000},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			item, err := engine.PriceItem(context.Background(), ItemPriceCommand{
				Product:  product,
				Quantity: tc.quantity,
			})
			if err != nil {
				t.Fatalf("PriceItem: %v", err)
			}
			if item.UnitPrice != tc.wantUnit {
				t.Errorf("UnitPrice = %d, want %d", item.UnitPrice, tc.wantUnit)
			}
			if item.Subtotal != tc.wantSubtotal {
				t.Errorf("Subtotal = %d, want %d", item.Subtotal, tc.wantSubtotal)
			}
		})
	}
}

func TestPriceItemAreaMinimumCharge(t *testing.T) {
	engine := newTestPricingEngine(t)
	product := domain.Product{
		ID:     "prod_banner",
		Method: domain.PricingMethodArea,
		Area: &domain.AreaPricing{
			PricePerSqFt: 1500,
			MinCharge:    5000,
			SqFtPerUnit:  2.5,
		},
		Currency: "INR",
	}

	item, err := engine.PriceItem(context.Background(), ItemPriceCommand{Product: product, Quantity: 2})
	if err != nil {
		t.Fatalf("PriceItem: %v", err)
	}
	// 1500 * 2.5 = 3750, below the 5000 minimum charge per unit.
	if item.UnitPrice != 5000 {
		t.Errorf("UnitPrice = %d, want 5000", item.UnitPrice)
	}
	if item.Subtotal != 10000 {
		t.Errorf("Subtotal = %d, want 10000", item.Subtotal)
	}
}

func TestPriceItemOptionOrderIsDeterministic(t *testing.T) {
	engine := newTestPricingEngine(t)
	product := domain.Product{
		ID:        "prod_poster",
		Method:    domain.PricingMethodFlat,
		BasePrice: 10000,
		Options: []domain.ProductOption{
			{
				Name: "lamination",
				Values: []domain.OptionValue{
					{Value: "gloss", PriceDelta: 2000, PriceDeltaType: domain.PriceDeltaFlat},
				},
			},
			{
				Name: "color",
				Values: []domain.OptionValue{
					{Value: "full", PriceDelta: 10, PriceDeltaType: domain.PriceDeltaPercent},
				},
			},
		},
		Currency: "INR",
	}

	first := map[string]string{"lamination": "gloss", "color": "full"}
	second := map[string]string{"color": "full", "lamination": "gloss"}

	a, err := engine.PriceItem(context.Background(), ItemPriceCommand{Product: product, Quantity: 1, SelectedOptions: first})
	if err != nil {
		t.Fatalf("PriceItem(first): %v", err)
	}
	b, err := engine.PriceItem(context.Background(), ItemPriceCommand{Product: product, Quantity: 1, SelectedOptions: second})
	if err != nil {
		t.Fatalf("PriceItem(second): %v", err)
	}

	// Flat delta first (10000 + 2000), percent applied to the running total.
	if a.Subtotal != 13200 {
		t.Errorf("Subtotal = %d, want 13200", a.Subtotal)
	}
	if a.Subtotal != b.Subtotal {
		t.Errorf("subtotals differ across map orderings: %d vs %d", a.Subtotal, b.Subtotal)
	}
	if len(a.OptionDeltas) != 2 || a.OptionDeltas[0].Type != domain.PriceDeltaFlat {
		t.Errorf("OptionDeltas = %+v, want flat delta first", a.OptionDeltas)
	}
}

func TestPriceItemRejectsInvalidSelections(t *testing.T) {
	engine := newTestPricingEngine(t)
	product := domain.Product{
		ID:        "prod_poster",
		Method:    domain.PricingMethodFlat,
		BasePrice: 10000,
		Options: []domain.ProductOption{
			{
				Name:     "size",
				Required: true,
				Values: []domain.OptionValue{
					{Value: "a4"},
					{Value: "a3", PriceDelta: 1500, PriceDeltaType: domain.PriceDeltaFlat},
				},
			},
		},
		Currency: "INR",
	}

	cases := []struct {
		name     string
		quantity int
		selected map[string]string
	}{
		{"zero quantity", 0, map[string]string{"size": "a4"}},
		{"missing required option", 1, nil},
		{"unknown option value", 1, map[string]string{"size": "a0"}},
		{"unknown option name", 1, map[string]string{"size": "a4", "finish": "matte"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := engine.PriceItem(context.Background(), ItemPriceCommand{
				Product:         product,
				Quantity:        tc.quantity,
				SelectedOptions: tc.selected,
			})
			if !errors.Is(err, ErrPricingInvalidInput) {
				t.Fatalf("PriceItem error = %v, want ErrPricingInvalidInput", err)
			}
		})
	}
}

func TestPriceAppliesPromotionDiscount(t *testing.T) {
	engine := newTestPricingEngine(t)
	cap := int64(100000)
	promo := domain.Promotion{
		Code:              "PRINT15",
		Discount:          15,
		DiscountType:      domain.DiscountPercentage,
		StartsAt:          time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC),
		EndsAt:            time.Date(2026, time.December, 31, 0, 0, 0, 0, time.UTC),
		MaxDiscountAmount: &cap,
		IsActive:          true,
	}

	breakdown, err := engine.Price(context.Background(), PriceCommand{
		Product:        flatProduct(300000),
		Quantity:       1,
		Promotion:      &promo,
		DeliveryMethod: "pickup",
	})
	if err != nil {
		t.Fatalf("Price: %v", err)
	}

	if breakdown.DiscountAmount != 45000 {
		t.Errorf("DiscountAmount = %d, want 45000", breakdown.DiscountAmount)
	}
	if breakdown.DiscountReason != domain.PromotionApplied {
		t.Errorf("DiscountReason = %q, want applied", breakdown.DiscountReason)
	}
	want := int64(300000 + 54000 - 45000)
	if breakdown.GrandTotal != want {
		t.Errorf("GrandTotal = %d, want %d", breakdown.GrandTotal, want)
	}
}

func TestPriceGrandTotalNeverNegative(t *testing.T) {
	engine := newTestPricingEngine(t)
	promo := domain.Promotion{
		Code:         "HUGE",
		Discount:     10000000,
		DiscountType: domain.DiscountFixed,
		IsActive:     true,
	}

	breakdown, err := engine.Price(context.Background(), PriceCommand{
		Product:        flatProduct(10000),
		Quantity:       1,
		Promotion:      &promo,
		DeliveryMethod: "pickup",
	})
	if err != nil {
		t.Fatalf("Price: %v", err)
	}
	if breakdown.GrandTotal < 0 {
		t.Errorf("GrandTotal = %d, want non-negative", breakdown.GrandTotal)
	}
}
