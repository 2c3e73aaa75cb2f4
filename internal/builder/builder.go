// Package builder holds the in-memory state of one estimate or invoice while it
// is being edited, and persists it through the document and line item repositories.
//
// A Builder is not safe for concurrent use; callers serialize access.
package builder

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"fieldworks/internal/domain"
	"fieldworks/internal/port"
	"fieldworks/internal/pricing"
)

// Owner identifies who the builder creates documents for.
type Owner struct {
	TenantID uuid.UUID
	UserID   uuid.UUID
}

// LineItemPatch carries the fields of a line item an update changes. Nil fields are left alone.
type LineItemPatch struct {
	Description *string  `json:"description"`
	Quantity    *float64 `json:"quantity"`
	UnitPrice   *float64 `json:"unit_price"`
	OurPrice    *float64 `json:"our_price"`
	Discount    *float64 `json:"discount"`
	Taxable     *bool    `json:"taxable"`
}

// State is a detached copy of the builder contents.
type State struct {
	DocumentID       *uuid.UUID            `json:"document_id"`
	Number           string                `json:"number"`
	Kind             domain.DocumentKind   `json:"kind"`
	Status           domain.DocumentStatus `json:"status"`
	ClientID         *uuid.UUID            `json:"client_id"`
	TaxRate          float64               `json:"tax_rate"`
	Notes            string                `json:"notes"`
	Version          int                   `json:"version"`
	SourceEstimateID *uuid.UUID            `json:"source_estimate_id,omitempty"`
	Items            []domain.LineItem     `json:"items"`
	Totals           pricing.Totals        `json:"totals"`
}

// Builder owns the line items, notes and tax rate of one in-progress document.
type Builder struct {
	docs     port.DocumentRepository
	items    port.LineItemRepository
	notifier port.Notifier
	logger   *zap.Logger

	owner          Owner
	kind           domain.DocumentKind
	defaultTaxRate float64

	docID            *uuid.UUID
	number           string
	version          int
	status           domain.DocumentStatus
	clientID         *uuid.UUID
	taxRate          float64
	notes            string
	lineItems        []domain.LineItem
	sourceEstimateID *uuid.UUID
}

// New creates an empty Builder for documents of the given kind.
func New(
	docs port.DocumentRepository,
	items port.LineItemRepository,
	notifier port.Notifier,
	logger *zap.Logger,
	owner Owner,
	kind domain.DocumentKind,
	defaultTaxRate float64,
) *Builder {
	if notifier == nil {
		notifier = discardNotifier{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	b := &Builder{
		docs:           docs,
		items:          items,
		notifier:       notifier,
		logger:         logger,
		owner:          owner,
		kind:           kind,
		defaultTaxRate: pricing.CoerceAmount(defaultTaxRate),
	}
	b.ResetForm()
	return b
}

// Kind returns the kind of document this builder produces.
func (b *Builder) Kind() domain.DocumentKind { return b.kind }

// DocumentID returns the persisted id, or nil before the first successful save.
func (b *Builder) DocumentID() *uuid.UUID {
	if b.docID == nil {
		return nil
	}
	id := *b.docID
	return &id
}

// ItemCount returns the number of line items.
func (b *Builder) ItemCount() int { return len(b.lineItems) }

// ClientID returns the client the document is addressed to.
func (b *Builder) ClientID() *uuid.UUID { return copyID(b.clientID) }

// Items returns a copy of the line items in display order.
func (b *Builder) Items() []domain.LineItem { return copyItems(b.lineItems, false) }

// Totals runs the pricing calculator over the current items.
func (b *Builder) Totals() pricing.Totals {
	return pricing.Calculate(b.lineItems, b.taxRate)
}

// Snapshot returns a detached copy of the builder state with computed totals.
func (b *Builder) Snapshot() State {
	return State{
		DocumentID:       b.DocumentID(),
		Number:           b.number,
		Kind:             b.kind,
		Status:           b.status,
		ClientID:         copyID(b.clientID),
		TaxRate:          b.taxRate,
		Notes:            b.notes,
		Version:          b.version,
		SourceEstimateID: copyID(b.sourceEstimateID),
		Items:            b.Items(),
		Totals:           b.Totals(),
	}
}

// AddProduct appends a line item priced from a catalog product.
func (b *Builder) AddProduct(p *domain.Product) domain.LineItem {
	productID := p.ID
	desc := p.Name
	if p.Description != "" {
		desc = p.Name + " - " + p.Description
	}
	item := domain.LineItem{
		ID:          uuid.New(),
		ProductID:   &productID,
		Description: desc,
		Quantity:    1,
		UnitPrice:   p.Price,
		OurPrice:    p.OurPrice,
		Taxable:     p.Taxable,
	}
	pricing.Normalize(&item)
	b.lineItems = append(b.lineItems, item)
	b.notifier.Notify(domain.NoticeSuccess, fmt.Sprintf("%s added", p.Name))
	return item
}

// AddCustomLine appends an empty, zero-priced item for manual entry.
func (b *Builder) AddCustomLine() domain.LineItem {
	item := domain.LineItem{
		ID:       uuid.New(),
		Quantity: 1,
		Taxable:  true,
	}
	pricing.Normalize(&item)
	b.lineItems = append(b.lineItems, item)
	return item
}

// RemoveLineItem drops the item with the given id. Unknown ids are ignored.
func (b *Builder) RemoveLineItem(id uuid.UUID) {
	kept := b.lineItems[:0]
	for i := range b.lineItems {
		if b.lineItems[i].ID != id {
			kept = append(kept, b.lineItems[i])
		}
	}
	b.lineItems = kept
}

// UpdateLineItem merges patch into the item with the given id and recomputes
// its total. A quantity that is not positive is rejected and the previous one
// kept. It reports whether the item was found.
func (b *Builder) UpdateLineItem(id uuid.UUID, patch LineItemPatch) bool {
	for i := range b.lineItems {
		item := &b.lineItems[i]
		if item.ID != id {
			continue
		}
		if patch.Description != nil {
			item.Description = *patch.Description
		}
		if patch.Quantity != nil {
			if q := pricing.CoerceAmount(*patch.Quantity); q > 0 {
				item.Quantity = q
			} else {
				b.notifier.Notify(domain.NoticeError, "Quantity must be greater than zero")
			}
		}
		if patch.UnitPrice != nil {
			item.UnitPrice = *patch.UnitPrice
		}
		if patch.OurPrice != nil {
			item.OurPrice = *patch.OurPrice
		}
		if patch.Discount != nil {
			item.Discount = *patch.Discount
		}
		if patch.Taxable != nil {
			item.Taxable = *patch.Taxable
		}
		pricing.Normalize(item)
		return true
	}
	return false
}

// SetTaxRate sets the document-level tax percentage.
func (b *Builder) SetTaxRate(rate float64) { b.taxRate = pricing.CoerceAmount(rate) }

// SetNotes sets the free-text notes appended to communications.
func (b *Builder) SetNotes(notes string) { b.notes = notes }

// SetClient sets the client the document is addressed to.
func (b *Builder) SetClient(clientID *uuid.UUID) { b.clientID = copyID(clientID) }

// ResetForm clears the builder to an unsaved, empty draft.
func (b *Builder) ResetForm() {
	b.docID = nil
	b.number = ""
	b.version = 0
	b.status = domain.StatusDraft
	b.clientID = nil
	b.taxRate = b.defaultTaxRate
	b.notes = ""
	b.lineItems = nil
	b.sourceEstimateID = nil
}

// InitializeFromEstimate replaces the builder state with a deep copy of est.
// An estimate builder edits est in place; an invoice builder starts a new,
// unsaved invoice converted from est.
func (b *Builder) InitializeFromEstimate(est *domain.Document) error {
	if est.Kind != domain.KindEstimate {
		return domain.ErrNotAnEstimate
	}
	if b.kind == domain.KindEstimate {
		b.initializeForEdit(est)
		return nil
	}

	b.ResetForm()
	b.clientID = copyID(est.ClientID)
	b.taxRate = est.TaxRate
	b.notes = est.Notes
	b.lineItems = copyItems(est.Items, true)
	b.sourceEstimateID = copyID(&est.ID)
	return nil
}

// InitializeFromInvoice replaces the builder state with a deep copy of inv for editing.
func (b *Builder) InitializeFromInvoice(inv *domain.Document) error {
	if inv.Kind != domain.KindInvoice || b.kind != domain.KindInvoice {
		return domain.NewValidationError("kind", "invoice builder required to edit an invoice")
	}
	b.initializeForEdit(inv)
	return nil
}

func (b *Builder) initializeForEdit(doc *domain.Document) {
	b.ResetForm()
	b.docID = copyID(&doc.ID)
	b.number = doc.Number
	b.version = doc.Version
	b.status = doc.Status
	b.clientID = copyID(doc.ClientID)
	b.taxRate = doc.TaxRate
	b.notes = doc.Notes
	b.lineItems = copyItems(doc.Items, false)
	b.sourceEstimateID = copyID(doc.SourceEstimateID)
}

// Load fetches a persisted document of the builder's kind and initializes from it.
func (b *Builder) Load(ctx context.Context, docID uuid.UUID) error {
	doc, err := b.docs.GetByID(ctx, b.owner.TenantID, docID)
	if err != nil {
		return err
	}
	items, err := b.items.ListByParent(ctx, b.owner.TenantID, doc.Kind, doc.ID)
	if err != nil {
		return fmt.Errorf("loading line items: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	doc.Items = items
	if doc.Kind != b.kind {
		return domain.NewValidationError("kind", fmt.Sprintf("document is an %s, not an %s", doc.Kind, b.kind))
	}
	if doc.Kind == domain.KindEstimate {
		return b.InitializeFromEstimate(doc)
	}
	return b.InitializeFromInvoice(doc)
}

// Save persists the builder state, creating the document on first save and
// updating it afterwards. State is only changed once persistence succeeds.
//
// When the document row is written but its line items are not, Save returns
// the document together with domain.ErrLineItemsNotPersisted.
func (b *Builder) Save(ctx context.Context) (*domain.Document, error) {
	if len(b.lineItems) == 0 {
		b.notifier.Notify(domain.NoticeError, "Add at least one line item before saving")
		return nil, domain.ErrNoLineItems
	}
	if domain.IsTerminal(b.status) {
		b.notifier.Notify(domain.NoticeError, fmt.Sprintf("This %s is %s and can no longer be edited", b.kind, b.status))
		return nil, domain.ErrDocumentLocked
	}

	totals := b.Totals()
	doc := &domain.Document{
		TenantID:         b.owner.TenantID,
		Kind:             b.kind,
		Number:           b.number,
		ClientID:         copyID(b.clientID),
		Status:           b.status,
		TaxRate:          b.taxRate,
		Notes:            b.notes,
		Subtotal:         totals.Subtotal,
		TaxAmount:        totals.TotalTax,
		Total:            totals.GrandTotal,
		SourceEstimateID: copyID(b.sourceEstimateID),
		CreatedBy:        b.owner.UserID,
	}

	creating := b.docID == nil
	if creating {
		if err := b.docs.Create(ctx, doc); err != nil {
			b.logger.Error("builder.Save: creating document", zap.String("kind", string(b.kind)), zap.Error(err))
			b.notifier.Notify(domain.NoticeError, fmt.Sprintf("Could not save %s: %s", b.kind, userMessage(err)))
			return nil, err
		}
	} else {
		doc.ID = *b.docID
		doc.Version = b.version
		if err := b.docs.Update(ctx, doc); err != nil {
			b.logger.Error("builder.Save: updating document", zap.String("document_id", doc.ID.String()), zap.Error(err))
			b.notifier.Notify(domain.NoticeError, fmt.Sprintf("Could not save %s: %s", b.kind, userMessage(err)))
			return nil, err
		}
	}

	// The row is committed; later steps must see its id and version even if
	// ctx is canceled from here on.
	b.docID = copyID(&doc.ID)
	b.number = doc.Number
	b.version = doc.Version

	if creating && b.sourceEstimateID != nil {
		if err := b.docs.MarkConverted(ctx, b.owner.TenantID, *b.sourceEstimateID, doc.ID); err != nil {
			b.logger.Warn("builder.Save: marking estimate converted",
				zap.String("estimate_id", b.sourceEstimateID.String()), zap.Error(err))
			b.notifier.Notify(domain.NoticeWarning, "Invoice saved, but the estimate could not be marked as converted")
		}
	}

	persisted := copyItems(b.lineItems, false)
	for i := range persisted {
		persisted[i].TenantID = b.owner.TenantID
		persisted[i].ParentType = b.kind
		persisted[i].ParentID = doc.ID
		persisted[i].Position = i
	}
	doc.Items = persisted

	if err := b.items.ReplaceForParent(ctx, b.owner.TenantID, b.kind, doc.ID, persisted); err != nil {
		b.logger.Warn("builder.Save: persisting line items",
			zap.String("document_id", doc.ID.String()), zap.Error(err))
		b.notifier.Notify(domain.NoticeWarning, fmt.Sprintf("%s %s saved, but its line items could not be stored", title(b.kind), doc.Number))
		return doc, domain.ErrLineItemsNotPersisted
	}

	b.notifier.Notify(domain.NoticeSuccess, fmt.Sprintf("%s %s saved", title(b.kind), doc.Number))
	return doc, nil
}

func userMessage(err error) string {
	switch {
	case errors.Is(err, domain.ErrConflict):
		return "it was changed by someone else, reload and try again"
	case errors.Is(err, domain.ErrDocumentNotFound):
		return "it no longer exists"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "the request was interrupted"
	default:
		return "please try again"
	}
}

func title(kind domain.DocumentKind) string {
	if kind == domain.KindInvoice {
		return "Invoice"
	}
	return "Estimate"
}

func copyID(id *uuid.UUID) *uuid.UUID {
	if id == nil {
		return nil
	}
	c := *id
	return &c
}

// copyItems deep-copies items. With freshIDs every item gets a new id, which
// severs the copy from its source document.
func copyItems(items []domain.LineItem, freshIDs bool) []domain.LineItem {
	if items == nil {
		return nil
	}
	out := make([]domain.LineItem, len(items))
	for i := range items {
		out[i] = items[i]
		out[i].ProductID = copyID(items[i].ProductID)
		if freshIDs {
			out[i].ID = uuid.New()
			out[i].ParentID = uuid.Nil
		}
		pricing.Normalize(&out[i])
	}
	return out
}

type discardNotifier struct{}

func (discardNotifier) Notify(domain.NoticeLevel, string) {}
