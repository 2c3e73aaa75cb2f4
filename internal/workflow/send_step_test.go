package workflow_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"fieldworks/internal/builder"
	"fieldworks/internal/domain"
	"fieldworks/internal/port"
	"fieldworks/internal/workflow"
	"fieldworks/mocks"
)

type stubLinker struct {
	url string
	err error
}

func (l stubLinker) Link(context.Context, *domain.Document) (string, error) { return l.url, l.err }

type sendHarness struct {
	docs    *mocks.MockDocumentRepo
	items   *mocks.MockLineItemRepo
	gateway *mocks.MockDeliveryGateway
	step    *workflow.SendStep
	builder *builder.Builder
	docID   uuid.UUID
}

func newSendHarness(linker workflow.Linker) *sendHarness {
	h := &sendHarness{
		docs:    new(mocks.MockDocumentRepo),
		items:   new(mocks.MockLineItemRepo),
		gateway: new(mocks.MockDeliveryGateway),
		docID:   uuid.New(),
	}
	tenantID := uuid.New()
	h.builder = builder.New(h.docs, h.items, nil, nil, builder.Owner{TenantID: tenantID}, domain.KindInvoice, 0)
	h.builder.AddProduct(&domain.Product{ID: uuid.New(), Name: "Repair", Price: 250})
	h.builder.SetNotes("Payment due in 14 days")
	h.step = workflow.NewSendStep(h.gateway, h.docs, linker, nil, nil, tenantID)

	h.docs.On("Create", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		doc := args.Get(1).(*domain.Document)
		doc.ID = h.docID
		doc.Number = "INV-000007"
		doc.Version = 1
	}).Return(nil).Maybe()
	h.docs.On("Update", mock.Anything, mock.Anything).Return(nil).Maybe()
	h.docs.On("UpdateStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()
	h.items.On("ReplaceForParent", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()
	return h
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		channel   domain.DeliveryChannel
		recipient string
		ok        bool
	}{
		{"valid email", domain.ChannelEmail, "pat@example.com", true},
		{"email without domain dot", domain.ChannelEmail, "pat@example", false},
		{"email with space", domain.ChannelEmail, "pat smith@example.com", false},
		{"formatted phone", domain.ChannelSMS, "+1 (555) 123-4567", true},
		{"ten digits", domain.ChannelSMS, "5551234567", true},
		{"nine digits", domain.ChannelSMS, "555-123-456", false},
		{"email on sms", domain.ChannelSMS, "pat@example.com", false},
		{"unknown channel", domain.DeliveryChannel("fax"), "5551234567", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			step := workflow.NewSendStep(nil, nil, nil, nil, nil, uuid.New())
			step.SetInput(workflow.SendInput{Channel: tt.channel, Recipient: tt.recipient})

			err := step.Validate()

			if tt.ok {
				assert.NoError(t, err)
				assert.Empty(t, step.State().Error)
				return
			}
			assert.ErrorIs(t, err, domain.ErrValidation)
			assert.NotEmpty(t, step.State().Error)
			assert.Equal(t, tt.recipient, step.State().Recipient)
		})
	}
}

func TestSend_InvalidRecipientBlocksWithoutSaving(t *testing.T) {
	h := newSendHarness(nil)
	h.step.SetInput(workflow.SendInput{Channel: domain.ChannelEmail, Recipient: "nope"})

	_, err := h.step.Send(context.Background(), h.builder)

	assert.ErrorIs(t, err, domain.ErrValidation)
	h.docs.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	h.gateway.AssertNotCalled(t, "Deliver", mock.Anything, mock.Anything)
}

func TestSend_RetryReusesIdempotencyKey(t *testing.T) {
	h := newSendHarness(nil)
	h.step.SetInput(workflow.SendInput{Channel: domain.ChannelEmail, Recipient: "pat@example.com"})

	var keys []string
	h.gateway.On("Deliver", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		keys = append(keys, args.Get(1).(port.DeliveryRequest).IdempotencyKey)
	}).Return(nil, &domain.DeliveryError{Provider: "ses", Message: "Throttling: rate exceeded"}).Once()
	h.gateway.On("Deliver", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		keys = append(keys, args.Get(1).(port.DeliveryRequest).IdempotencyKey)
	}).Return(&port.DeliveryResult{DeliveryID: uuid.New()}, nil).Once()

	_, err := h.step.Send(context.Background(), h.builder)
	require.ErrorIs(t, err, domain.ErrDeliveryFailed)
	assert.Equal(t, "Throttling: rate exceeded", h.step.State().Error)
	assert.Equal(t, "pat@example.com", h.step.State().Recipient)

	_, err = h.step.Send(context.Background(), h.builder)
	require.NoError(t, err)
	assert.Empty(t, h.step.State().Error)

	require.Len(t, keys, 2)
	assert.NotEmpty(t, keys[0])
	assert.Equal(t, keys[0], keys[1])
}

func TestSend_ChangedRecipientStartsNewIntent(t *testing.T) {
	h := newSendHarness(nil)
	h.step.SetInput(workflow.SendInput{Channel: domain.ChannelEmail, Recipient: "pat@example.com"})

	var keys []string
	h.gateway.On("Deliver", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		keys = append(keys, args.Get(1).(port.DeliveryRequest).IdempotencyKey)
	}).Return(nil, errors.New("boom")).Once()
	h.gateway.On("Deliver", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		keys = append(keys, args.Get(1).(port.DeliveryRequest).IdempotencyKey)
	}).Return(&port.DeliveryResult{}, nil).Once()

	_, _ = h.step.Send(context.Background(), h.builder)
	h.step.SetInput(workflow.SendInput{Channel: domain.ChannelEmail, Recipient: "sam@example.com"})
	_, err := h.step.Send(context.Background(), h.builder)

	require.NoError(t, err)
	require.Len(t, keys, 2)
	assert.NotEqual(t, keys[0], keys[1])
}

func TestSend_SaveFailureAbortsDelivery(t *testing.T) {
	h := newSendHarness(nil)
	h.docs.ExpectedCalls = nil
	h.docs.On("Create", mock.Anything, mock.Anything).Return(errors.New("db down"))
	h.step.SetInput(workflow.SendInput{Channel: domain.ChannelEmail, Recipient: "pat@example.com"})

	_, err := h.step.Send(context.Background(), h.builder)

	assert.Error(t, err)
	assert.NotEmpty(t, h.step.State().Error)
	h.gateway.AssertNotCalled(t, "Deliver", mock.Anything, mock.Anything)
}

func TestSend_MessageCarriesNotesAndLink(t *testing.T) {
	h := newSendHarness(stubLinker{url: "https://files.example.com/inv.pdf"})
	h.step.SetInput(workflow.SendInput{Channel: domain.ChannelEmail, Recipient: "pat@example.com"})

	var body string
	h.gateway.On("Deliver", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		body = args.Get(1).(port.DeliveryRequest).Message
	}).Return(&port.DeliveryResult{}, nil)

	_, err := h.step.Send(context.Background(), h.builder)

	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(body, "Your invoice INV-000007 is ready. Total: $250.00"))
	assert.Contains(t, body, "Payment due in 14 days")
	assert.Contains(t, body, "https://files.example.com/inv.pdf")
}

func TestSend_LinkFailureStillSends(t *testing.T) {
	h := newSendHarness(stubLinker{err: errors.New("s3 unavailable")})
	h.step.SetInput(workflow.SendInput{Channel: domain.ChannelEmail, Recipient: "pat@example.com", Message: "Hi Pat"})

	var body string
	h.gateway.On("Deliver", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		body = args.Get(1).(port.DeliveryRequest).Message
	}).Return(&port.DeliveryResult{}, nil)

	_, err := h.step.Send(context.Background(), h.builder)

	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(body, "Hi Pat"))
	assert.NotContains(t, body, "View it here")
}
