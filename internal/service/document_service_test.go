package service_test

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"fieldworks/internal/domain"
	"fieldworks/internal/port"
	"fieldworks/internal/render"
	"fieldworks/internal/service"
	"fieldworks/mocks"
)

type documentHarness struct {
	docs     *mocks.MockDocumentRepo
	items    *mocks.MockLineItemRepo
	clients  *mocks.MockClientRepo
	storage  *mocks.MockObjectStorage
	tenantID uuid.UUID
}

func newDocumentHarness() *documentHarness {
	return &documentHarness{
		docs:     new(mocks.MockDocumentRepo),
		items:    new(mocks.MockLineItemRepo),
		clients:  new(mocks.MockClientRepo),
		storage:  new(mocks.MockObjectStorage),
		tenantID: uuid.New(),
	}
}

func (h *documentHarness) service(withStorage bool) service.DocumentService {
	var storage port.ObjectStorage
	if withStorage {
		storage = h.storage
	}
	return service.NewDocumentService(h.docs, h.items, h.clients, storage,
		render.PDFRenderer{Issuer: "Acme Plumbing"},
		service.PublishConfig{Bucket: "docs", PresignExpiry: 3600},
		zap.NewNop())
}

func TestDocumentService_GetLoadsItems(t *testing.T) {
	h := newDocumentHarness()
	docID := uuid.New()
	h.docs.On("GetByID", mock.Anything, h.tenantID, docID).Return(&domain.Document{ID: docID, Kind: domain.KindInvoice}, nil)
	h.items.On("ListByParent", mock.Anything, h.tenantID, domain.KindInvoice, docID).Return([]domain.LineItem{{Description: "Labor"}}, nil)

	doc, err := h.service(false).Get(context.Background(), h.tenantID, docID)

	require.NoError(t, err)
	assert.Len(t, doc.Items, 1)
}

func TestDocumentService_ListRejectsUnknownKind(t *testing.T) {
	h := newDocumentHarness()

	_, _, err := h.service(false).List(context.Background(), h.tenantID, port.DocumentFilter{Kind: "receipt"}, 0, 20)

	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestDocumentService_UpdateStatus(t *testing.T) {
	tests := []struct {
		name    string
		kind    domain.DocumentKind
		from    domain.DocumentStatus
		to      domain.DocumentStatus
		wantErr error
	}{
		{"invoice paid", domain.KindInvoice, domain.StatusSent, domain.StatusPaid, nil},
		{"estimate cancelled", domain.KindEstimate, domain.StatusDraft, domain.StatusCancelled, nil},
		{"draft invoice cannot be paid", domain.KindInvoice, domain.StatusDraft, domain.StatusPaid, domain.ErrInvalidTransition},
		{"paid invoice is final", domain.KindInvoice, domain.StatusPaid, domain.StatusSent, domain.ErrInvalidTransition},
		{"conversion needs an invoice", domain.KindEstimate, domain.StatusApproved, domain.StatusConverted, domain.ErrInvalidTransition},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newDocumentHarness()
			docID := uuid.New()
			h.docs.On("GetByID", mock.Anything, h.tenantID, docID).Return(&domain.Document{ID: docID, Kind: tt.kind, Status: tt.from}, nil)
			h.docs.On("UpdateStatus", mock.Anything, h.tenantID, docID, tt.to, mock.Anything).Return(nil)

			doc, err := h.service(false).UpdateStatus(context.Background(), h.tenantID, docID, tt.to)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				h.docs.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.to, doc.Status)
		})
	}
}

func TestDocumentService_DeleteOnlyDrafts(t *testing.T) {
	h := newDocumentHarness()
	draftID, sentID := uuid.New(), uuid.New()
	h.docs.On("GetByID", mock.Anything, h.tenantID, draftID).Return(&domain.Document{ID: draftID, Status: domain.StatusDraft}, nil)
	h.docs.On("GetByID", mock.Anything, h.tenantID, sentID).Return(&domain.Document{ID: sentID, Status: domain.StatusSent}, nil)
	h.docs.On("Delete", mock.Anything, h.tenantID, draftID).Return(nil).Once()
	svc := h.service(false)

	require.NoError(t, svc.Delete(context.Background(), h.tenantID, draftID))
	assert.ErrorIs(t, svc.Delete(context.Background(), h.tenantID, sentID), domain.ErrDocumentLocked)
	h.docs.AssertExpectations(t)
}

func TestDocumentService_RenderPDF(t *testing.T) {
	h := newDocumentHarness()
	docID, clientID := uuid.New(), uuid.New()
	h.docs.On("GetByID", mock.Anything, h.tenantID, docID).Return(&domain.Document{
		ID: docID, TenantID: h.tenantID, Kind: domain.KindEstimate, Number: "EST-000010", ClientID: &clientID,
	}, nil)
	h.items.On("ListByParent", mock.Anything, h.tenantID, domain.KindEstimate, docID).Return([]domain.LineItem{
		{Description: "Valve", Quantity: 1, UnitPrice: 40},
	}, nil)
	h.clients.On("GetByID", mock.Anything, h.tenantID, clientID).Return(nil, errors.New("db down"))

	var buf bytes.Buffer
	doc, err := h.service(false).RenderPDF(context.Background(), h.tenantID, docID, &buf)

	require.NoError(t, err)
	assert.Equal(t, "EST-000010", doc.Number)
	assert.True(t, strings.HasPrefix(buf.String(), "%PDF"))
}

func TestDocumentService_LinkWithoutStorage(t *testing.T) {
	h := newDocumentHarness()

	url, err := h.service(false).Link(context.Background(), &domain.Document{ID: uuid.New()})

	require.NoError(t, err)
	assert.Empty(t, url)
}

func TestDocumentService_LinkUploadsAndPresigns(t *testing.T) {
	h := newDocumentHarness()
	doc := &domain.Document{ID: uuid.New(), TenantID: h.tenantID, Kind: domain.KindInvoice, Number: "INV-000004", Version: 2,
		Items: []domain.LineItem{{Description: "Labor", Quantity: 1, UnitPrice: 100}}}
	h.storage.On("Upload", mock.Anything, mock.MatchedBy(func(in port.UploadInput) bool {
		return in.Bucket == "docs" && in.ContentType == "application/pdf" &&
			in.Filename == "INV-000004.pdf" && strings.HasSuffix(in.Key, "/INV-000004-v2.pdf")
	})).Return(&port.UploadOutput{Location: "s3://docs/x"}, nil)
	h.storage.On("GetPresignedURL", mock.Anything, "docs", mock.Anything, int64(3600)).Return("https://signed.example/inv", nil)

	url, err := h.service(true).Link(context.Background(), doc)

	require.NoError(t, err)
	assert.Equal(t, "https://signed.example/inv", url)
	h.storage.AssertExpectations(t)
}

func TestDocumentService_ExportXLSX(t *testing.T) {
	h := newDocumentHarness()
	docID := uuid.New()
	filter := port.DocumentFilter{Kind: domain.KindInvoice}
	h.docs.On("List", mock.Anything, h.tenantID, filter, 0, mock.Anything).Return([]domain.Document{
		{ID: docID, Kind: domain.KindInvoice, Number: "INV-000001"},
	}, 1, nil)
	h.items.On("ListByParent", mock.Anything, h.tenantID, domain.KindInvoice, docID).Return([]domain.LineItem{
		{Description: "Labor", Quantity: 1, UnitPrice: 100, OurPrice: 30},
	}, nil)

	var buf bytes.Buffer
	err := h.service(false).ExportXLSX(context.Background(), h.tenantID, filter, &buf)

	require.NoError(t, err)
	// xlsx files are zip archives.
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("PK")))
}
