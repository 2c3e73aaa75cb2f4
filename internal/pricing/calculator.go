// Package pricing computes document totals from line items. Every function is
// pure; inputs are expected to be coerced at the boundary with the Coerce helpers.
package pricing

import (
	"math"

	"fieldworks/internal/domain"
)

// Totals is the calculator output for one document.
type Totals struct {
	Subtotal         float64 `json:"subtotal"`
	TotalTax         float64 `json:"total_tax"`
	GrandTotal       float64 `json:"grand_total"`
	TotalCost        float64 `json:"total_cost"`
	TotalMargin      float64 `json:"total_margin"`
	MarginPercentage float64 `json:"margin_percentage"`
}

// CustomerTotals is the subset of Totals that may be shown to a client.
type CustomerTotals struct {
	Subtotal   float64 `json:"subtotal"`
	TotalTax   float64 `json:"total_tax"`
	GrandTotal float64 `json:"grand_total"`
}

// LineTotal returns quantity * unitPrice after the percentage discount.
func LineTotal(item *domain.LineItem) float64 {
	return item.Quantity * item.UnitPrice * (1 - item.Discount/100)
}

// LineTax returns the tax owed on one item at taxRate percent. Untaxed items owe nothing.
func LineTax(item *domain.LineItem, taxRate float64) float64 {
	if !item.Taxable {
		return 0
	}
	return LineTotal(item) * taxRate / 100
}

// Calculate sums subtotal, tax, grand total and margin over items.
// Internal cost is not discounted: margin is discounted revenue minus quantity * ourPrice.
func Calculate(items []domain.LineItem, taxRate float64) Totals {
	var t Totals
	for i := range items {
		item := &items[i]
		line := LineTotal(item)
		t.Subtotal += line
		t.TotalTax += LineTax(item, taxRate)
		t.TotalCost += item.Quantity * item.OurPrice
	}
	t.GrandTotal = t.Subtotal + t.TotalTax
	t.TotalMargin = t.Subtotal - t.TotalCost
	if t.Subtotal != 0 {
		t.MarginPercentage = t.TotalMargin / t.Subtotal * 100
	}
	return t
}

// Customer drops cost and margin figures.
func (t Totals) Customer() CustomerTotals {
	return CustomerTotals{Subtotal: t.Subtotal, TotalTax: t.TotalTax, GrandTotal: t.GrandTotal}
}

// Rounded returns a copy with every figure rounded to 2 decimals for display.
func (t Totals) Rounded() Totals {
	return Totals{
		Subtotal:         Round2(t.Subtotal),
		TotalTax:         Round2(t.TotalTax),
		GrandTotal:       Round2(t.GrandTotal),
		TotalCost:        Round2(t.TotalCost),
		TotalMargin:      Round2(t.TotalMargin),
		MarginPercentage: Round2(t.MarginPercentage),
	}
}

// Round2 rounds v half away from zero to 2 decimals.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// CoerceAmount maps NaN, infinities and negatives to 0.
func CoerceAmount(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return v
}

// CoerceDiscount clamps a discount percentage to 0..100.
func CoerceDiscount(v float64) float64 {
	v = CoerceAmount(v)
	if v > 100 {
		return 100
	}
	return v
}

// Normalize coerces every numeric input on item and recomputes Total.
func Normalize(item *domain.LineItem) {
	item.Quantity = CoerceAmount(item.Quantity)
	item.UnitPrice = CoerceAmount(item.UnitPrice)
	item.OurPrice = CoerceAmount(item.OurPrice)
	item.Discount = CoerceDiscount(item.Discount)
	item.Total = LineTotal(item)
}
