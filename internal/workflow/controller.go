// Package workflow drives a document builder through the items, upsell and
// send steps.
package workflow

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"fieldworks/internal/builder"
	"fieldworks/internal/domain"
	"fieldworks/internal/port"
)

// Controller is the step machine on top of one Builder. Transitions move a
// single step forward or back; the send step only completes through Send.
type Controller struct {
	builder  *builder.Builder
	send     *SendStep
	products port.ProductRepository
	notifier port.Notifier
	tenantID uuid.UUID

	step      domain.Step
	completed bool
}

// NewController creates a Controller positioned on the items step.
func NewController(b *builder.Builder, send *SendStep, products port.ProductRepository, notifier port.Notifier, tenantID uuid.UUID) *Controller {
	if notifier == nil {
		notifier = discardNotifier{}
	}
	return &Controller{
		builder:  b,
		send:     send,
		products: products,
		notifier: notifier,
		tenantID: tenantID,
		step:     domain.StepItems,
	}
}

// Step returns the current step.
func (c *Controller) Step() domain.Step { return c.step }

// Completed reports whether the document was delivered.
func (c *Controller) Completed() bool { return c.completed }

// Builder returns the builder the controller drives.
func (c *Controller) Builder() *builder.Builder { return c.builder }

// SendStep returns the send form.
func (c *Controller) SendStep() *SendStep { return c.send }

// Open rewinds to the items step and loads doc into the builder. A nil doc
// starts an empty creation form. Estimates opened on an invoice builder are
// converted.
func (c *Controller) Open(doc *domain.Document) error {
	c.step = domain.StepItems
	c.completed = false
	c.send.Reset()
	if doc == nil {
		c.builder.ResetForm()
		return nil
	}
	if doc.Kind == domain.KindEstimate {
		return c.builder.InitializeFromEstimate(doc)
	}
	return c.builder.InitializeFromInvoice(doc)
}

// Next advances one step. Leaving items saves the document and stays put if
// the list is empty or the save fails.
func (c *Controller) Next(ctx context.Context) error {
	switch c.step {
	case domain.StepItems:
		if c.builder.ItemCount() == 0 {
			c.notifier.Notify(domain.NoticeError, "Add at least one line item to continue")
			return domain.ErrNoLineItems
		}
		doc, err := c.builder.Save(ctx)
		if err != nil && !errors.Is(err, domain.ErrLineItemsNotPersisted) {
			return err
		}
		if doc == nil {
			return domain.ErrDocumentNotSaved
		}
		c.step = domain.StepUpsell
		return nil
	case domain.StepUpsell:
		c.step = domain.StepSend
		return nil
	default:
		return domain.ErrStepNotCompletable
	}
}

// Back moves one step back without saving. The send form keeps its contents.
func (c *Controller) Back() error {
	switch c.step {
	case domain.StepUpsell:
		c.step = domain.StepItems
	case domain.StepSend:
		c.step = domain.StepUpsell
	default:
		return domain.ErrNoPreviousStep
	}
	return nil
}

// Suggestions lists upsell products that are not on the document yet.
func (c *Controller) Suggestions(ctx context.Context) ([]domain.Product, error) {
	products, err := c.products.List(ctx, c.tenantID, true)
	if err != nil {
		return nil, err
	}
	onDocument := make(map[uuid.UUID]bool)
	for _, item := range c.builder.Items() {
		if item.ProductID != nil {
			onDocument[*item.ProductID] = true
		}
	}
	out := make([]domain.Product, 0, len(products))
	for i := range products {
		if products[i].IsActive && !onDocument[products[i].ID] {
			out = append(out, products[i])
		}
	}
	return out, nil
}

// Send delivers the document from the send step and completes the workflow on success.
func (c *Controller) Send(ctx context.Context) (*port.DeliveryResult, error) {
	if c.step != domain.StepSend {
		return nil, domain.ErrWrongStep
	}
	res, err := c.send.Send(ctx, c.builder)
	if err != nil {
		return nil, err
	}
	c.completed = true
	return res, nil
}
