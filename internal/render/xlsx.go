package render

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"fieldworks/internal/domain"
	"fieldworks/internal/pricing"
)

const (
	documentsSheet = "Documents"
	itemsSheet     = "Line Items"
)

// documentColumns is the header row of the internal export. It carries cost
// and margin and must never be sent to clients.
var documentColumns = []string{
	"Number",
	"Kind",
	"Status",
	"Client ID",
	"Tax Rate",
	"Subtotal",
	"Tax",
	"Total",
	"Cost",
	"Margin",
	"Margin %",
	"Sent At",
	"Created At",
}

var itemColumns = []string{
	"Document Number",
	"Position",
	"Description",
	"Quantity",
	"Unit Price",
	"Our Price",
	"Discount %",
	"Taxable",
	"Total",
}

// WriteXLSX writes the internal workbook for docs to w. Items are read from
// each document's Items field.
func WriteXLSX(w io.Writer, docs []domain.Document) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", documentsSheet); err != nil {
		return fmt.Errorf("naming sheet: %w", err)
	}
	if _, err := f.NewSheet(itemsSheet); err != nil {
		return fmt.Errorf("creating sheet: %w", err)
	}

	if err := writeRow(f, documentsSheet, 1, toRow(documentColumns)); err != nil {
		return err
	}
	if err := writeRow(f, itemsSheet, 1, toRow(itemColumns)); err != nil {
		return err
	}

	itemRow := 2
	for i := range docs {
		doc := &docs[i]
		if err := writeRow(f, documentsSheet, i+2, documentToRow(doc)); err != nil {
			return err
		}
		for j := range doc.Items {
			if err := writeRow(f, itemsSheet, itemRow, itemToRow(doc.Number, &doc.Items[j])); err != nil {
				return err
			}
			itemRow++
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("writing workbook: %w", err)
	}
	return nil
}

func writeRow(f *excelize.File, sheet string, row int, values []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("writing %s row %d: %w", sheet, row, err)
	}
	return nil
}

func toRow(cols []string) []interface{} {
	row := make([]interface{}, len(cols))
	for i, c := range cols {
		row[i] = c
	}
	return row
}

// documentToRow recomputes totals from the items so cost and margin are
// available even though only revenue figures are persisted.
func documentToRow(doc *domain.Document) []interface{} {
	totals := pricing.Calculate(doc.Items, doc.TaxRate).Rounded()
	clientID := ""
	if doc.ClientID != nil {
		clientID = doc.ClientID.String()
	}
	return []interface{}{
		doc.Number,
		string(doc.Kind),
		string(doc.Status),
		clientID,
		doc.TaxRate,
		totals.Subtotal,
		totals.TotalTax,
		totals.GrandTotal,
		totals.TotalCost,
		totals.TotalMargin,
		totals.MarginPercentage,
		formatTime(doc.SentAt),
		formatTime(&doc.CreatedAt),
	}
}

func itemToRow(number string, item *domain.LineItem) []interface{} {
	it := *item
	pricing.Normalize(&it)
	return []interface{}{
		number,
		it.Position + 1,
		it.Description,
		it.Quantity,
		it.UnitPrice,
		it.OurPrice,
		it.Discount,
		formatBool(it.Taxable),
		pricing.Round2(it.Total),
	}
}

func formatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}

func formatBool(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}
