package pricing_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"fieldworks/internal/domain"
	"fieldworks/internal/pricing"
)

const eps = 1e-9

func TestCalculate_DiscountedTaxableItem(t *testing.T) {
	items := []domain.LineItem{{Quantity: 2, UnitPrice: 100, Discount: 10, Taxable: true}}

	got := pricing.Calculate(items, 13).Rounded()

	assert.Equal(t, 180.00, got.Subtotal)
	assert.Equal(t, 23.40, got.TotalTax)
	assert.Equal(t, 203.40, got.GrandTotal)
}

func TestCalculate_UntaxedWarrantyAddsExactlyItsPrice(t *testing.T) {
	items := []domain.LineItem{{Quantity: 2, UnitPrice: 100, Discount: 10, Taxable: true}}
	before := pricing.Calculate(items, 13)

	items = append(items, domain.LineItem{Description: "Extended warranty", Quantity: 1, UnitPrice: 89, Taxable: false})
	after := pricing.Calculate(items, 13)

	assert.InDelta(t, before.TotalTax, after.TotalTax, eps)
	assert.InDelta(t, before.GrandTotal+89, after.GrandTotal, eps)
}

func TestCalculate_TaxRateIgnoredForUntaxedItems(t *testing.T) {
	items := []domain.LineItem{
		{Quantity: 3, UnitPrice: 40, Taxable: false},
		{Quantity: 1, UnitPrice: 15.5, Discount: 20, Taxable: false},
	}

	for _, rate := range []float64{0, 5, 13, 27.5} {
		got := pricing.Calculate(items, rate)
		assert.InDelta(t, 132.4, got.GrandTotal, eps, "rate %v", rate)
		assert.Zero(t, got.TotalTax)
	}
}

func TestCalculate_SubtotalMatchesLineSum(t *testing.T) {
	items := []domain.LineItem{
		{Quantity: 1.5, UnitPrice: 19.99, Discount: 0, Taxable: true},
		{Quantity: 4, UnitPrice: 7.25, Discount: 12.5, Taxable: false},
		{Quantity: 10, UnitPrice: 0.33, Discount: 100, Taxable: true},
	}
	want := 0.0
	for i := range items {
		want += items[i].Quantity * items[i].UnitPrice * (1 - items[i].Discount/100)
	}

	assert.InDelta(t, want, pricing.Calculate(items, 8).Subtotal, eps)
}

func TestCalculate_Margin(t *testing.T) {
	t.Run("zero_cost_margin_equals_subtotal", func(t *testing.T) {
		items := []domain.LineItem{
			{Quantity: 2, UnitPrice: 100, Discount: 10},
			{Quantity: 1, UnitPrice: 50},
		}
		got := pricing.Calculate(items, 13)
		assert.InDelta(t, got.Subtotal, got.TotalMargin, eps)
		assert.InDelta(t, 100, got.MarginPercentage, eps)
	})

	t.Run("cost_is_not_discounted", func(t *testing.T) {
		items := []domain.LineItem{{Quantity: 2, UnitPrice: 100, Discount: 50, OurPrice: 30}}
		got := pricing.Calculate(items, 0)
		// revenue 100, cost 60
		assert.InDelta(t, 40, got.TotalMargin, eps)
		assert.InDelta(t, 40, got.MarginPercentage, eps)
	})

	t.Run("empty_subtotal_guards_percentage", func(t *testing.T) {
		got := pricing.Calculate([]domain.LineItem{{Quantity: 1, UnitPrice: 0, OurPrice: 5}}, 13)
		assert.Zero(t, got.MarginPercentage)
		assert.InDelta(t, -5, got.TotalMargin, eps)
	})

	t.Run("no_items", func(t *testing.T) {
		assert.Equal(t, pricing.Totals{}, pricing.Calculate(nil, 13))
	})
}

func TestCustomer_OmitsCost(t *testing.T) {
	got := pricing.Calculate([]domain.LineItem{{Quantity: 1, UnitPrice: 10, OurPrice: 4, Taxable: true}}, 10).Customer()
	assert.Equal(t, pricing.CustomerTotals{Subtotal: 10, TotalTax: 1, GrandTotal: 11}, got)
}

func TestCoerce(t *testing.T) {
	assert.Zero(t, pricing.CoerceAmount(math.NaN()))
	assert.Zero(t, pricing.CoerceAmount(math.Inf(1)))
	assert.Zero(t, pricing.CoerceAmount(-3))
	assert.Equal(t, 2.5, pricing.CoerceAmount(2.5))
	assert.Equal(t, 100.0, pricing.CoerceDiscount(140))
	assert.Zero(t, pricing.CoerceDiscount(-1))
}

func TestNormalize_RecomputesTotal(t *testing.T) {
	item := domain.LineItem{Quantity: 3, UnitPrice: 10, Discount: 150, Total: 999}
	pricing.Normalize(&item)
	assert.Equal(t, 100.0, item.Discount)
	assert.Zero(t, item.Total)

	item = domain.LineItem{Quantity: 3, UnitPrice: -10, Total: 999}
	pricing.Normalize(&item)
	assert.Zero(t, item.Total)

	item = domain.LineItem{Quantity: 3, UnitPrice: 10, Discount: 10}
	pricing.Normalize(&item)
	assert.InDelta(t, 27, item.Total, eps)
}

func TestRound2(t *testing.T) {
	assert.Equal(t, 23.4, pricing.Round2(23.400000000000002))
	assert.Equal(t, 0.13, pricing.Round2(0.125))
}
