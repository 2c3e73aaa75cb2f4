// Package render produces customer-facing and internal representations of
// estimates and invoices.
package render

import (
	"time"

	"github.com/google/uuid"

	"fieldworks/internal/domain"
	"fieldworks/internal/pricing"
)

// CustomerLine is a line item as a client may see it. It has no cost field.
type CustomerLine struct {
	Description string  `json:"description"`
	Quantity    float64 `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
	Discount    float64 `json:"discount"`
	Taxable     bool    `json:"taxable"`
	Total       float64 `json:"total"`
}

// CustomerDocument is an estimate or invoice stripped of internal figures.
type CustomerDocument struct {
	ID      uuid.UUID              `json:"id"`
	Kind    domain.DocumentKind    `json:"kind"`
	Number  string                 `json:"number"`
	Status  domain.DocumentStatus  `json:"status"`
	TaxRate float64                `json:"tax_rate"`
	Notes   string                 `json:"notes"`
	Items   []CustomerLine         `json:"items"`
	Totals  pricing.CustomerTotals `json:"totals"`
	SentAt  *time.Time             `json:"sent_at"`
	Created time.Time              `json:"created_at"`
}

// CustomerView builds the client-facing view of doc with totals rounded for display.
func CustomerView(doc *domain.Document) CustomerDocument {
	lines := make([]CustomerLine, len(doc.Items))
	for i := range doc.Items {
		item := doc.Items[i]
		pricing.Normalize(&item)
		lines[i] = CustomerLine{
			Description: item.Description,
			Quantity:    item.Quantity,
			UnitPrice:   pricing.Round2(item.UnitPrice),
			Discount:    item.Discount,
			Taxable:     item.Taxable,
			Total:       pricing.Round2(item.Total),
		}
	}
	totals := pricing.Calculate(doc.Items, doc.TaxRate).Rounded().Customer()
	return CustomerDocument{
		ID:      doc.ID,
		Kind:    doc.Kind,
		Number:  doc.Number,
		Status:  doc.Status,
		TaxRate: doc.TaxRate,
		Notes:   doc.Notes,
		Items:   lines,
		Totals:  totals,
		SentAt:  doc.SentAt,
		Created: doc.CreatedAt,
	}
}
