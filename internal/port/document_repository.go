package port

import (
	"context"
	"time"

	"github.com/google/uuid"

	"fieldworks/internal/domain"
)

// DocumentFilter narrows a document listing.
type DocumentFilter struct {
	Kind     domain.DocumentKind
	Status   domain.DocumentStatus
	ClientID *uuid.UUID
}

// DocumentRepository defines the contract for estimate and invoice persistence.
// Items are not persisted by this repository; see LineItemRepository.
type DocumentRepository interface {
	// Create inserts doc, assigning ID when unset, Number, Version and timestamps.
	Create(ctx context.Context, doc *domain.Document) error
	GetByID(ctx context.Context, tenantID, docID uuid.UUID) (*domain.Document, error)
	List(ctx context.Context, tenantID uuid.UUID, filter DocumentFilter, offset, limit int) ([]domain.Document, int, error)
	// Update writes doc only if the stored version equals doc.Version and
	// increments it; a stale version yields domain.ErrConflict.
	Update(ctx context.Context, doc *domain.Document) error
	UpdateStatus(ctx context.Context, tenantID, docID uuid.UUID, status domain.DocumentStatus, sentAt *time.Time) error
	MarkConverted(ctx context.Context, tenantID, estimateID, invoiceID uuid.UUID) error
	Delete(ctx context.Context, tenantID, docID uuid.UUID) error
}

// LineItemRepository persists line items polymorphically by parent_type/parent_id.
type LineItemRepository interface {
	ReplaceForParent(ctx context.Context, tenantID uuid.UUID, parentType domain.DocumentKind, parentID uuid.UUID, items []domain.LineItem) error
	ListByParent(ctx context.Context, tenantID uuid.UUID, parentType domain.DocumentKind, parentID uuid.UUID) ([]domain.LineItem, error)
}
