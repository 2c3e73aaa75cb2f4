package render_test

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"fieldworks/internal/domain"
	"fieldworks/internal/render"
)

func sampleEstimate() *domain.Document {
	return &domain.Document{
		ID:        uuid.New(),
		Kind:      domain.KindEstimate,
		Number:    "EST-000001",
		Status:    domain.StatusSent,
		TaxRate:   13,
		Notes:     "Access through side gate",
		CreatedAt: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
		Items: []domain.LineItem{
			{ID: uuid.New(), Description: "Furnace install", Quantity: 2, UnitPrice: 100, OurPrice: 60, Discount: 10, Taxable: true},
			{ID: uuid.New(), Description: "Extended warranty", Quantity: 1, UnitPrice: 89, OurPrice: 777.77, Taxable: false, Position: 1},
		},
	}
}

func TestCustomerView_HidesCost(t *testing.T) {
	view := render.CustomerView(sampleEstimate())

	raw, err := json.Marshal(view)
	require.NoError(t, err)

	assert.NotContains(t, string(raw), "our_price")
	assert.NotContains(t, string(raw), "777.77")
	assert.NotContains(t, string(raw), "margin")
	assert.Equal(t, 269.0, view.Totals.Subtotal)
	assert.Equal(t, 23.4, view.Totals.TotalTax)
	assert.Equal(t, 292.4, view.Totals.GrandTotal)
	assert.Equal(t, 180.0, view.Items[0].Total)
}

func TestPDFRenderer_CustomerFacing(t *testing.T) {
	var buf bytes.Buffer
	client := &domain.Client{Name: "Pat Jones", Email: "pat@example.com"}

	err := render.PDFRenderer{Issuer: "Acme HVAC"}.Render(&buf, sampleEstimate(), client)

	require.NoError(t, err)
	out := buf.String()
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF")))
	assert.Contains(t, out, "Furnace install")
	assert.Contains(t, out, "$292.40")
	assert.Contains(t, out, "Pat Jones")
	assert.NotContains(t, out, "777.77")
}

func TestWriteXLSX_IncludesCostAndMargin(t *testing.T) {
	var buf bytes.Buffer
	est := sampleEstimate()

	require.NoError(t, render.WriteXLSX(&buf, []domain.Document{*est}))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	docs, err := f.GetRows("Documents")
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "Cost", docs[0][8])
	assert.Equal(t, "EST-000001", docs[1][0])
	assert.Equal(t, "897.77", docs[1][8])
	assert.Equal(t, "-628.77", docs[1][9])

	items, err := f.GetRows("Line Items")
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, "Extended warranty", items[2][2])
	assert.Equal(t, "777.77", items[2][5])
	assert.Equal(t, "No", items[2][7])
}
