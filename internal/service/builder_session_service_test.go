package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"fieldworks/internal/builder"
	"fieldworks/internal/config"
	"fieldworks/internal/domain"
	"fieldworks/internal/port"
	"fieldworks/internal/service"
	"fieldworks/internal/workflow"
	"fieldworks/mocks"
)

type sessionHarness struct {
	docs     *mocks.MockDocumentRepo
	items    *mocks.MockLineItemRepo
	products *mocks.MockProductRepo
	gateway  *mocks.MockDeliveryGateway
	svc      service.BuilderSessionService
	tenantID uuid.UUID
	userID   uuid.UUID
}

func newSessionHarness() *sessionHarness {
	h := &sessionHarness{
		docs:     new(mocks.MockDocumentRepo),
		items:    new(mocks.MockLineItemRepo),
		products: new(mocks.MockProductRepo),
		gateway:  new(mocks.MockDeliveryGateway),
		tenantID: uuid.New(),
		userID:   uuid.New(),
	}
	h.svc = service.NewBuilderSessionService(h.docs, h.items, h.products, h.gateway, nil,
		config.SessionConfig{IdleTimeout: time.Minute, ReapInterval: time.Minute, DefaultTaxRate: 8},
		zap.NewNop())
	return h
}

func (h *sessionHarness) open(t *testing.T) *service.SessionView {
	t.Helper()
	view, err := h.svc.Open(context.Background(), service.OpenSessionInput{
		TenantID: h.tenantID,
		UserID:   h.userID,
		Kind:     domain.KindEstimate,
	})
	require.NoError(t, err)
	return view
}

func (h *sessionHarness) expectSaves() uuid.UUID {
	docID := uuid.New()
	h.docs.On("Create", mock.Anything, mock.AnythingOfType("*domain.Document")).
		Run(func(args mock.Arguments) {
			doc := args.Get(1).(*domain.Document)
			doc.ID = docID
			doc.Number = "EST-000001"
			doc.Version = 1
		}).Return(nil)
	h.docs.On("Update", mock.Anything, mock.AnythingOfType("*domain.Document")).
		Run(func(args mock.Arguments) {
			args.Get(1).(*domain.Document).Version++
		}).Return(nil)
	h.items.On("ReplaceForParent", mock.Anything, h.tenantID, domain.KindEstimate, docID, mock.Anything).Return(nil)
	return docID
}

func TestBuilderSession_OpenCreateStartsEmpty(t *testing.T) {
	h := newSessionHarness()

	view := h.open(t)

	assert.NotEqual(t, uuid.Nil, view.ID)
	assert.Equal(t, domain.StepItems, view.Step)
	assert.Empty(t, view.Document.Items)
	assert.Nil(t, view.Document.DocumentID)
	assert.Equal(t, 8.0, view.Document.TaxRate)
}

func TestBuilderSession_OpenEditLoadsDocument(t *testing.T) {
	h := newSessionHarness()
	docID := uuid.New()
	h.docs.On("GetByID", mock.Anything, h.tenantID, docID).Return(&domain.Document{
		ID: docID, Kind: domain.KindEstimate, Number: "EST-000007", Status: domain.StatusDraft, Version: 3,
	}, nil)
	h.items.On("ListByParent", mock.Anything, h.tenantID, domain.KindEstimate, docID).Return([]domain.LineItem{
		{ID: uuid.New(), Description: "Service call", Quantity: 1, UnitPrice: 89},
	}, nil)

	view, err := h.svc.Open(context.Background(), service.OpenSessionInput{
		TenantID: h.tenantID, Kind: domain.KindEstimate, DocumentID: &docID,
	})

	require.NoError(t, err)
	require.NotNil(t, view.Document.DocumentID)
	assert.Equal(t, docID, *view.Document.DocumentID)
	assert.Equal(t, 3, view.Document.Version)
	require.Len(t, view.Document.Items, 1)
	assert.Equal(t, 89.0, view.Document.Items[0].Total)
}

func TestBuilderSession_OpenConvertRejectsConvertedEstimate(t *testing.T) {
	h := newSessionHarness()
	estID := uuid.New()
	invID := uuid.New()
	h.docs.On("GetByID", mock.Anything, h.tenantID, estID).Return(&domain.Document{
		ID: estID, Kind: domain.KindEstimate, Status: domain.StatusConverted, ConvertedInvoiceID: &invID,
	}, nil)
	h.items.On("ListByParent", mock.Anything, h.tenantID, domain.KindEstimate, estID).Return([]domain.LineItem{}, nil)

	_, err := h.svc.Open(context.Background(), service.OpenSessionInput{
		TenantID: h.tenantID, Kind: domain.KindInvoice, Mode: domain.ModeConvert, DocumentID: &estID,
	})

	assert.ErrorIs(t, err, domain.ErrDocumentLocked)
}

func TestBuilderSession_OpenConvertCopiesItems(t *testing.T) {
	h := newSessionHarness()
	estID := uuid.New()
	itemID := uuid.New()
	h.docs.On("GetByID", mock.Anything, h.tenantID, estID).Return(&domain.Document{
		ID: estID, Kind: domain.KindEstimate, Status: domain.StatusApproved, TaxRate: 5,
	}, nil)
	h.items.On("ListByParent", mock.Anything, h.tenantID, domain.KindEstimate, estID).Return([]domain.LineItem{
		{ID: itemID, Description: "Filter", Quantity: 2, UnitPrice: 10},
	}, nil)

	view, err := h.svc.Open(context.Background(), service.OpenSessionInput{
		TenantID: h.tenantID, Kind: domain.KindInvoice, Mode: domain.ModeConvert, DocumentID: &estID,
	})

	require.NoError(t, err)
	assert.Nil(t, view.Document.DocumentID)
	require.NotNil(t, view.Document.SourceEstimateID)
	assert.Equal(t, estID, *view.Document.SourceEstimateID)
	require.Len(t, view.Document.Items, 1)
	assert.NotEqual(t, itemID, view.Document.Items[0].ID)
}

func TestBuilderSession_OpenValidatesInput(t *testing.T) {
	h := newSessionHarness()

	_, err := h.svc.Open(context.Background(), service.OpenSessionInput{TenantID: h.tenantID, Kind: "quote"})
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = h.svc.Open(context.Background(), service.OpenSessionInput{TenantID: h.tenantID, Kind: domain.KindEstimate, Mode: domain.ModeEdit})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestBuilderSession_MutationsApplyInOrder(t *testing.T) {
	h := newSessionHarness()
	view := h.open(t)
	productID := uuid.New()
	h.products.On("GetByID", mock.Anything, h.tenantID, productID).Return(&domain.Product{
		ID: productID, Name: "Drain clean", Price: 120, OurPrice: 40, Taxable: true, IsActive: true,
	}, nil)

	view, err := h.svc.AddProduct(context.Background(), h.tenantID, view.ID, productID)
	require.NoError(t, err)
	require.Len(t, view.Document.Items, 1)
	require.Len(t, view.Notices, 1)
	assert.Equal(t, domain.NoticeSuccess, view.Notices[0].Level)

	itemID := view.Document.Items[0].ID
	qty := 2.0
	discount := 10.0
	view, err = h.svc.UpdateLineItem(context.Background(), h.tenantID, view.ID, itemID, builderPatch(&qty, &discount))
	require.NoError(t, err)
	assert.InDelta(t, 216.0, view.Document.Items[0].Total, 1e-9)
	assert.Empty(t, view.Notices)

	view, err = h.svc.AddCustomLine(context.Background(), h.tenantID, view.ID)
	require.NoError(t, err)
	require.Len(t, view.Document.Items, 2)

	view, err = h.svc.RemoveLineItem(context.Background(), h.tenantID, view.ID, itemID)
	require.NoError(t, err)
	require.Len(t, view.Document.Items, 1)
	assert.NotEqual(t, itemID, view.Document.Items[0].ID)
}

func TestBuilderSession_UpdateDetails(t *testing.T) {
	h := newSessionHarness()
	view := h.open(t)
	rate := 6.5
	notes := "Gate code 4411"
	clientID := uuid.New()

	view, err := h.svc.UpdateDetails(context.Background(), h.tenantID, view.ID, service.DetailsInput{
		TaxRate: &rate, Notes: &notes, ClientID: &clientID,
	})

	require.NoError(t, err)
	assert.Equal(t, 6.5, view.Document.TaxRate)
	assert.Equal(t, notes, view.Document.Notes)
	require.NotNil(t, view.Document.ClientID)
	assert.Equal(t, clientID, *view.Document.ClientID)
}

func TestBuilderSession_NextOnEmptyStays(t *testing.T) {
	h := newSessionHarness()
	view := h.open(t)

	view, err := h.svc.Next(context.Background(), h.tenantID, view.ID)

	assert.ErrorIs(t, err, domain.ErrNoLineItems)
	require.NotNil(t, view)
	assert.Equal(t, domain.StepItems, view.Step)
	require.Len(t, view.Notices, 1)
	assert.Equal(t, domain.NoticeError, view.Notices[0].Level)
	h.docs.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestBuilderSession_FullSendClosesSession(t *testing.T) {
	h := newSessionHarness()
	docID := h.expectSaves()
	h.docs.On("UpdateStatus", mock.Anything, h.tenantID, docID, domain.StatusSent, mock.Anything).Return(nil)
	h.gateway.On("Deliver", mock.Anything, mock.MatchedBy(func(r port.DeliveryRequest) bool {
		return r.Recipient == "pat@example.com" && r.IdempotencyKey != ""
	})).Return(&port.DeliveryResult{DeliveryID: uuid.New(), ProviderRef: "ses-1"}, nil).Once()

	view := h.open(t)
	ctx := context.Background()
	view, err := h.svc.AddCustomLine(ctx, h.tenantID, view.ID)
	require.NoError(t, err)
	view, err = h.svc.Next(ctx, h.tenantID, view.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StepUpsell, view.Step)
	view, err = h.svc.Next(ctx, h.tenantID, view.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StepSend, view.Step)
	_, err = h.svc.SetRecipient(ctx, h.tenantID, view.ID, workflow.SendInput{Channel: domain.ChannelEmail, Recipient: "pat@example.com"})
	require.NoError(t, err)

	view, err = h.svc.Send(ctx, h.tenantID, view.ID)

	require.NoError(t, err)
	assert.True(t, view.Completed)
	assert.True(t, view.Closed)
	require.NotNil(t, view.Delivery)
	assert.Equal(t, "ses-1", view.Delivery.ProviderRef)

	_, err = h.svc.Get(ctx, h.tenantID, view.ID)
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestBuilderSession_SendFromWrongStep(t *testing.T) {
	h := newSessionHarness()
	view := h.open(t)

	_, err := h.svc.Send(context.Background(), h.tenantID, view.ID)

	assert.ErrorIs(t, err, domain.ErrWrongStep)
}

func TestBuilderSession_SuggestionsOnlyOnUpsellStep(t *testing.T) {
	h := newSessionHarness()
	view := h.open(t)

	_, err := h.svc.Suggestions(context.Background(), h.tenantID, view.ID)

	assert.ErrorIs(t, err, domain.ErrWrongStep)
}

func TestBuilderSession_OtherTenantCannotSeeSession(t *testing.T) {
	h := newSessionHarness()
	view := h.open(t)

	_, err := h.svc.Get(context.Background(), uuid.New(), view.ID)
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)

	err = h.svc.Close(uuid.New(), view.ID)
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestBuilderSession_CloseDuringSaveDiscardsResult(t *testing.T) {
	h := newSessionHarness()
	view := h.open(t)
	_, err := h.svc.AddCustomLine(context.Background(), h.tenantID, view.ID)
	require.NoError(t, err)

	entered := make(chan struct{})
	release := make(chan struct{})
	h.docs.On("Create", mock.Anything, mock.AnythingOfType("*domain.Document")).
		Run(func(args mock.Arguments) {
			close(entered)
			<-release
			args.Get(1).(*domain.Document).ID = uuid.New()
		}).Return(nil)

	errCh := make(chan error, 1)
	go func() {
		_, err := h.svc.Save(context.Background(), h.tenantID, view.ID)
		errCh <- err
	}()

	<-entered
	require.NoError(t, h.svc.Close(h.tenantID, view.ID))
	close(release)

	assert.ErrorIs(t, <-errCh, domain.ErrSessionClosed)
	h.items.AssertNotCalled(t, "ReplaceForParent", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestBuilderSession_DroppedRequestStillAppliesSave(t *testing.T) {
	h := newSessionHarness()
	view := h.open(t)
	_, err := h.svc.AddCustomLine(context.Background(), h.tenantID, view.ID)
	require.NoError(t, err)

	docID := uuid.New()
	reqCtx, cancel := context.WithCancel(context.Background())
	h.docs.On("Create", mock.Anything, mock.AnythingOfType("*domain.Document")).
		Run(func(args mock.Arguments) {
			doc := args.Get(1).(*domain.Document)
			doc.ID = docID
			doc.Version = 1
			cancel()
		}).Return(nil).Once()
	h.docs.On("Update", mock.Anything, mock.MatchedBy(func(d *domain.Document) bool {
		return d.ID == docID && d.Version == 1
	})).Return(nil).Once()
	h.items.On("ReplaceForParent", mock.MatchedBy(func(ctx context.Context) bool {
		return ctx.Err() == nil
	}), h.tenantID, domain.KindEstimate, docID, mock.Anything).Return(nil)

	view, err = h.svc.Save(reqCtx, h.tenantID, view.ID)
	require.NoError(t, err)
	require.NotNil(t, view.Document.DocumentID)
	assert.Equal(t, docID, *view.Document.DocumentID)

	_, err = h.svc.Save(context.Background(), h.tenantID, view.ID)
	require.NoError(t, err)
	h.docs.AssertNumberOfCalls(t, "Create", 1)
	h.docs.AssertNumberOfCalls(t, "Update", 1)
}

func TestBuilderSession_ReapIdle(t *testing.T) {
	h := newSessionHarness()
	view := h.open(t)

	assert.Equal(t, 0, h.svc.ReapIdle(time.Now()))
	assert.Equal(t, 1, h.svc.ReapIdle(time.Now().Add(2*time.Minute)))

	_, err := h.svc.Get(context.Background(), h.tenantID, view.ID)
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestBuilderSession_StartReaperClosesSessionsOnShutdown(t *testing.T) {
	h := newSessionHarness()
	view := h.open(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		h.svc.StartReaper(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("reaper did not stop")
	}
	_, err := h.svc.Get(context.Background(), h.tenantID, view.ID)
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func builderPatch(qty, discount *float64) builder.LineItemPatch {
	return builder.LineItemPatch{Quantity: qty, Discount: discount}
}
