package mocks

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"fieldworks/internal/domain"
	"fieldworks/internal/port"
)

// MockDocumentRepo is a mock implementation of port.DocumentRepository.
type MockDocumentRepo struct {
	mock.Mock
}

func (m *MockDocumentRepo) Create(ctx context.Context, doc *domain.Document) error {
	args := m.Called(ctx, doc)
	return args.Error(0)
}

func (m *MockDocumentRepo) GetByID(ctx context.Context, tenantID, docID uuid.UUID) (*domain.Document, error) {
	args := m.Called(ctx, tenantID, docID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Document), args.Error(1)
}

func (m *MockDocumentRepo) List(ctx context.Context, tenantID uuid.UUID, filter port.DocumentFilter, offset, limit int) ([]domain.Document, int, error) {
	args := m.Called(ctx, tenantID, filter, offset, limit)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]domain.Document), args.Int(1), args.Error(2)
}

func (m *MockDocumentRepo) Update(ctx context.Context, doc *domain.Document) error {
	args := m.Called(ctx, doc)
	return args.Error(0)
}

func (m *MockDocumentRepo) UpdateStatus(ctx context.Context, tenantID, docID uuid.UUID, status domain.DocumentStatus, sentAt *time.Time) error {
	args := m.Called(ctx, tenantID, docID, status, sentAt)
	return args.Error(0)
}

func (m *MockDocumentRepo) MarkConverted(ctx context.Context, tenantID, estimateID, invoiceID uuid.UUID) error {
	args := m.Called(ctx, tenantID, estimateID, invoiceID)
	return args.Error(0)
}

func (m *MockDocumentRepo) Delete(ctx context.Context, tenantID, docID uuid.UUID) error {
	args := m.Called(ctx, tenantID, docID)
	return args.Error(0)
}

// MockLineItemRepo is a mock implementation of port.LineItemRepository.
type MockLineItemRepo struct {
	mock.Mock
}

func (m *MockLineItemRepo) ReplaceForParent(ctx context.Context, tenantID uuid.UUID, parentType domain.DocumentKind, parentID uuid.UUID, items []domain.LineItem) error {
	args := m.Called(ctx, tenantID, parentType, parentID, items)
	return args.Error(0)
}

func (m *MockLineItemRepo) ListByParent(ctx context.Context, tenantID uuid.UUID, parentType domain.DocumentKind, parentID uuid.UUID) ([]domain.LineItem, error) {
	args := m.Called(ctx, tenantID, parentType, parentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.LineItem), args.Error(1)
}
