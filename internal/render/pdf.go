package render

import (
	"fmt"
	"io"

	"github.com/jung-kurt/gofpdf"

	"fieldworks/internal/domain"
)

// PDFRenderer draws the customer-facing PDF of a document.
type PDFRenderer struct {
	Issuer   string
	Compress bool
}

var pdfColumns = []struct {
	title string
	width float64
	align string
}{
	{"Description", 80, "L"},
	{"Qty", 18, "R"},
	{"Unit Price", 28, "R"},
	{"Discount", 22, "R"},
	{"Total", 32, "R"},
}

// Render writes doc to w. client may be nil.
func (r PDFRenderer) Render(w io.Writer, doc *domain.Document, client *domain.Client) error {
	view := CustomerView(doc)

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetCompression(r.Compress)
	pdf.SetTitle(fmt.Sprintf("%s %s", kindTitle(view.Kind), view.Number), true)
	pdf.SetAuthor(r.Issuer, true)
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 18)
	pdf.CellFormat(0, 10, tr(r.Issuer), "", 1, "L", false, 0, "")
	pdf.SetFont("Arial", "B", 14)
	pdf.CellFormat(0, 8, tr(fmt.Sprintf("%s %s", kindTitle(view.Kind), view.Number)), "", 1, "L", false, 0, "")

	pdf.SetFont("Arial", "", 10)
	date := view.Created
	if view.SentAt != nil {
		date = *view.SentAt
	}
	if !date.IsZero() {
		pdf.CellFormat(0, 6, "Date: "+date.Format("January 2, 2006"), "", 1, "L", false, 0, "")
	}
	if client != nil {
		pdf.Ln(2)
		pdf.SetFont("Arial", "B", 10)
		pdf.CellFormat(0, 6, "Bill To", "", 1, "L", false, 0, "")
		pdf.SetFont("Arial", "", 10)
		for _, line := range []string{client.Name, client.Address, client.Email, client.Phone} {
			if line != "" {
				pdf.CellFormat(0, 5, tr(line), "", 1, "L", false, 0, "")
			}
		}
	}
	pdf.Ln(6)

	pdf.SetFont("Arial", "B", 10)
	pdf.SetFillColor(235, 235, 235)
	for _, col := range pdfColumns {
		pdf.CellFormat(col.width, 8, col.title, "1", 0, col.align, true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Arial", "", 10)
	for _, line := range view.Items {
		desc := line.Description
		if !line.Taxable {
			desc += " *"
		}
		cells := []string{
			tr(desc),
			formatQuantity(line.Quantity),
			money(line.UnitPrice),
			formatPercent(line.Discount),
			money(line.Total),
		}
		for i, col := range pdfColumns {
			pdf.CellFormat(col.width, 7, cells[i], "1", 0, col.align, false, 0, "")
		}
		pdf.Ln(-1)
	}

	pdf.Ln(4)
	totalsRow := func(label, value string, bold bool) {
		style := ""
		if bold {
			style = "B"
		}
		pdf.SetFont("Arial", style, 10)
		pdf.CellFormat(148, 7, label, "", 0, "R", false, 0, "")
		pdf.CellFormat(32, 7, value, "", 1, "R", false, 0, "")
	}
	totalsRow("Subtotal", money(view.Totals.Subtotal), false)
	totalsRow(fmt.Sprintf("Tax (%s)", formatPercent(view.TaxRate)), money(view.Totals.TotalTax), false)
	totalsRow("Total", money(view.Totals.GrandTotal), true)

	pdf.SetFont("Arial", "I", 8)
	pdf.CellFormat(0, 6, "* not taxed", "", 1, "L", false, 0, "")

	if view.Notes != "" {
		pdf.Ln(4)
		pdf.SetFont("Arial", "B", 10)
		pdf.CellFormat(0, 6, "Notes", "", 1, "L", false, 0, "")
		pdf.SetFont("Arial", "", 10)
		pdf.MultiCell(0, 5, tr(view.Notes), "", "L", false)
	}

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("rendering pdf: %w", err)
	}
	return nil
}

func kindTitle(kind domain.DocumentKind) string {
	if kind == domain.KindInvoice {
		return "Invoice"
	}
	return "Estimate"
}

func money(v float64) string {
	return fmt.Sprintf("$%.2f", v)
}

func formatQuantity(v float64) string {
	if v == float64(int64(v)) {
		return fmt.Sprintf("%d", int64(v))
	}
	return fmt.Sprintf("%.2f", v)
}

func formatPercent(v float64) string {
	if v == float64(int64(v)) {
		return fmt.Sprintf("%d%%", int64(v))
	}
	return fmt.Sprintf("%.2f%%", v)
}
