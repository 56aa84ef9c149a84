package services

import (
	"strings"

	"github.com/printworks/api/internal/domain"
)

// RateTaxPolicy applies a single percentage (GST) to the subtotal.
type RateTaxPolicy struct {
	Percent float64
}

// TaxAmount computes the tax in minor units, rounded half-up.
func (p RateTaxPolicy) TaxAmount(subtotal int64) int64 {
	if p.Percent <= 0 || subtotal <= 0 {
		return 0
	}
	return domain.PercentOf(subtotal, p.Percent)
}

// FlatShippingPolicy charges per delivery method with an optional free
// shipping threshold.
type FlatShippingPolicy struct {
	ByMethod        map[string]int64
	Default         int64
	FreeShippingMin int64
}

// ShippingAmount resolves the shipping charge for the delivery method.
func (p FlatShippingPolicy) ShippingAmount(method string, subtotal int64) int64 {
	if p.FreeShippingMin > 0 && subtotal >= p.FreeShippingMin {
		return 0
	}
	if amount, ok := p.ByMethod[strings.ToLower(strings.TrimSpace(method))]; ok {
		return amount
	}
	return p.Default
}
