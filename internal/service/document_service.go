package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"fieldworks/internal/domain"
	"fieldworks/internal/port"
	"fieldworks/internal/render"
)

const maxExportDocuments = 5000

// PublishConfig controls where customer copies of documents are stored.
type PublishConfig struct {
	Bucket        string
	PresignExpiry int64
}

// DocumentService defines the estimate and invoice management contract.
type DocumentService interface {
	List(ctx context.Context, tenantID uuid.UUID, filter port.DocumentFilter, offset, limit int) ([]domain.Document, int, error)
	Get(ctx context.Context, tenantID, docID uuid.UUID) (*domain.Document, error)
	UpdateStatus(ctx context.Context, tenantID, docID uuid.UUID, status domain.DocumentStatus) (*domain.Document, error)
	Delete(ctx context.Context, tenantID, docID uuid.UUID) error
	RenderPDF(ctx context.Context, tenantID, docID uuid.UUID, w io.Writer) (*domain.Document, error)
	ExportXLSX(ctx context.Context, tenantID uuid.UUID, filter port.DocumentFilter, w io.Writer) error
	// Link uploads a customer PDF of doc and returns a time-limited URL to it.
	Link(ctx context.Context, doc *domain.Document) (string, error)
}

type documentService struct {
	docs    port.DocumentRepository
	items   port.LineItemRepository
	clients port.ClientRepository
	storage port.ObjectStorage
	pdf     render.PDFRenderer
	publish PublishConfig
	logger  *zap.Logger
}

// NewDocumentService creates a new DocumentService. storage may be nil, in
// which case Link returns no URL.
func NewDocumentService(
	docs port.DocumentRepository,
	items port.LineItemRepository,
	clients port.ClientRepository,
	storage port.ObjectStorage,
	pdf render.PDFRenderer,
	publish PublishConfig,
	logger *zap.Logger,
) DocumentService {
	if publish.PresignExpiry <= 0 {
		publish.PresignExpiry = 7 * 24 * 3600
	}
	return &documentService{
		docs:    docs,
		items:   items,
		clients: clients,
		storage: storage,
		pdf:     pdf,
		publish: publish,
		logger:  logger,
	}
}

func (s *documentService) List(ctx context.Context, tenantID uuid.UUID, filter port.DocumentFilter, offset, limit int) ([]domain.Document, int, error) {
	if filter.Kind != "" && !filter.Kind.Valid() {
		return nil, 0, domain.NewValidationError("kind", "kind must be estimate or invoice")
	}
	return s.docs.List(ctx, tenantID, filter, offset, limit)
}

func (s *documentService) Get(ctx context.Context, tenantID, docID uuid.UUID) (*domain.Document, error) {
	doc, err := s.docs.GetByID(ctx, tenantID, docID)
	if err != nil {
		return nil, err
	}
	items, err := s.items.ListByParent(ctx, tenantID, doc.Kind, doc.ID)
	if err != nil {
		return nil, fmt.Errorf("document.Get: %w", err)
	}
	doc.Items = items
	return doc, nil
}

func (s *documentService) UpdateStatus(ctx context.Context, tenantID, docID uuid.UUID, status domain.DocumentStatus) (*domain.Document, error) {
	doc, err := s.docs.GetByID(ctx, tenantID, docID)
	if err != nil {
		return nil, err
	}
	if !domain.CanTransition(doc.Kind, doc.Status, status) {
		return nil, fmt.Errorf("%w: %s %s cannot move from %s to %s",
			domain.ErrInvalidTransition, doc.Kind, doc.Number, doc.Status, status)
	}
	// Conversion happens through a builder session so the invoice exists first.
	if status == domain.StatusConverted {
		return nil, fmt.Errorf("%w: convert the estimate by creating an invoice from it", domain.ErrInvalidTransition)
	}

	var sentAt *time.Time
	if status == domain.StatusSent {
		now := time.Now().UTC()
		sentAt = &now
	}
	if err := s.docs.UpdateStatus(ctx, tenantID, docID, status, sentAt); err != nil {
		return nil, fmt.Errorf("document.UpdateStatus: %w", err)
	}
	s.logger.Info("document.UpdateStatus: status changed",
		zap.String("document_id", docID.String()),
		zap.String("from", string(doc.Status)),
		zap.String("to", string(status)))

	doc.Status = status
	if sentAt != nil {
		doc.SentAt = sentAt
	}
	return doc, nil
}

// Delete removes a draft. Any other document has to be cancelled instead.
func (s *documentService) Delete(ctx context.Context, tenantID, docID uuid.UUID) error {
	doc, err := s.docs.GetByID(ctx, tenantID, docID)
	if err != nil {
		return err
	}
	if doc.Status != domain.StatusDraft {
		return fmt.Errorf("%w: only drafts can be deleted", domain.ErrDocumentLocked)
	}
	if err := s.docs.Delete(ctx, tenantID, docID); err != nil {
		return fmt.Errorf("document.Delete: %w", err)
	}
	return nil
}

func (s *documentService) RenderPDF(ctx context.Context, tenantID, docID uuid.UUID, w io.Writer) (*domain.Document, error) {
	doc, err := s.Get(ctx, tenantID, docID)
	if err != nil {
		return nil, err
	}
	client := s.lookupClient(ctx, doc)
	if err := s.pdf.Render(w, doc, client); err != nil {
		return nil, fmt.Errorf("document.RenderPDF: %w", err)
	}
	return doc, nil
}

func (s *documentService) ExportXLSX(ctx context.Context, tenantID uuid.UUID, filter port.DocumentFilter, w io.Writer) error {
	docs, _, err := s.List(ctx, tenantID, filter, 0, maxExportDocuments)
	if err != nil {
		return err
	}
	for i := range docs {
		items, err := s.items.ListByParent(ctx, tenantID, docs[i].Kind, docs[i].ID)
		if err != nil {
			return fmt.Errorf("document.ExportXLSX: loading items of %s: %w", docs[i].Number, err)
		}
		docs[i].Items = items
	}
	if err := render.WriteXLSX(w, docs); err != nil {
		return fmt.Errorf("document.ExportXLSX: %w", err)
	}
	return nil
}

func (s *documentService) Link(ctx context.Context, doc *domain.Document) (string, error) {
	if s.storage == nil {
		return "", nil
	}

	var buf bytes.Buffer
	if err := s.pdf.Render(&buf, doc, s.lookupClient(ctx, doc)); err != nil {
		return "", fmt.Errorf("document.Link: rendering: %w", err)
	}

	key := fmt.Sprintf("tenants/%s/%ss/%s/%s-v%d.pdf", doc.TenantID, doc.Kind, doc.ID, doc.Number, doc.Version)
	_, err := s.storage.Upload(ctx, port.UploadInput{
		Bucket:      s.publish.Bucket,
		Key:         key,
		Body:        &buf,
		ContentType: "application/pdf",
		Filename:    doc.Number + ".pdf",
	})
	if err != nil {
		return "", fmt.Errorf("document.Link: uploading: %w", err)
	}

	url, err := s.storage.GetPresignedURL(ctx, s.publish.Bucket, key, s.publish.PresignExpiry)
	if err != nil {
		return "", fmt.Errorf("document.Link: presigning: %w", err)
	}
	return url, nil
}

// lookupClient returns the document's client, or nil when it has none or the
// lookup fails. A missing client only drops the bill-to block.
func (s *documentService) lookupClient(ctx context.Context, doc *domain.Document) *domain.Client {
	if doc.ClientID == nil {
		return nil
	}
	client, err := s.clients.GetByID(ctx, doc.TenantID, *doc.ClientID)
	if err != nil {
		if !errors.Is(err, domain.ErrClientNotFound) && !errors.Is(err, domain.ErrNotFound) {
			s.logger.Warn("document.lookupClient: loading client",
				zap.String("client_id", doc.ClientID.String()), zap.Error(err))
		}
		return nil
	}
	return client
}
