package mocks

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"fieldworks/internal/builder"
	"fieldworks/internal/domain"
	"fieldworks/internal/port"
	"fieldworks/internal/render"
	"fieldworks/internal/service"
	"fieldworks/internal/workflow"
)

// MockAuthService is a mock implementation of service.AuthService.
type MockAuthService struct {
	mock.Mock
}

func (m *MockAuthService) ValidateToken(tokenString string) (*service.Claims, error) {
	args := m.Called(tokenString)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.Claims), args.Error(1)
}

func (m *MockAuthService) IssuePortalToken(tenantID, clientID uuid.UUID) (*service.PortalToken, error) {
	args := m.Called(tenantID, clientID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.PortalToken), args.Error(1)
}

func (m *MockAuthService) ValidatePortalToken(tokenString string) (*service.PortalClaims, error) {
	args := m.Called(tokenString)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.PortalClaims), args.Error(1)
}

// MockBuilderSessionService is a mock implementation of service.BuilderSessionService.
type MockBuilderSessionService struct {
	mock.Mock
}

func (m *MockBuilderSessionService) view(args mock.Arguments) (*service.SessionView, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.SessionView), args.Error(1)
}

func (m *MockBuilderSessionService) Open(ctx context.Context, input service.OpenSessionInput) (*service.SessionView, error) {
	return m.view(m.Called(ctx, input))
}

func (m *MockBuilderSessionService) Get(ctx context.Context, tenantID, sessionID uuid.UUID) (*service.SessionView, error) {
	return m.view(m.Called(ctx, tenantID, sessionID))
}

func (m *MockBuilderSessionService) AddProduct(ctx context.Context, tenantID, sessionID, productID uuid.UUID) (*service.SessionView, error) {
	return m.view(m.Called(ctx, tenantID, sessionID, productID))
}

func (m *MockBuilderSessionService) AddCustomLine(ctx context.Context, tenantID, sessionID uuid.UUID) (*service.SessionView, error) {
	return m.view(m.Called(ctx, tenantID, sessionID))
}

func (m *MockBuilderSessionService) UpdateLineItem(ctx context.Context, tenantID, sessionID, itemID uuid.UUID, patch builder.LineItemPatch) (*service.SessionView, error) {
	return m.view(m.Called(ctx, tenantID, sessionID, itemID, patch))
}

func (m *MockBuilderSessionService) RemoveLineItem(ctx context.Context, tenantID, sessionID, itemID uuid.UUID) (*service.SessionView, error) {
	return m.view(m.Called(ctx, tenantID, sessionID, itemID))
}

func (m *MockBuilderSessionService) UpdateDetails(ctx context.Context, tenantID, sessionID uuid.UUID, input service.DetailsInput) (*service.SessionView, error) {
	return m.view(m.Called(ctx, tenantID, sessionID, input))
}

func (m *MockBuilderSessionService) Save(ctx context.Context, tenantID, sessionID uuid.UUID) (*service.SessionView, error) {
	return m.view(m.Called(ctx, tenantID, sessionID))
}

func (m *MockBuilderSessionService) Next(ctx context.Context, tenantID, sessionID uuid.UUID) (*service.SessionView, error) {
	return m.view(m.Called(ctx, tenantID, sessionID))
}

func (m *MockBuilderSessionService) Back(ctx context.Context, tenantID, sessionID uuid.UUID) (*service.SessionView, error) {
	return m.view(m.Called(ctx, tenantID, sessionID))
}

func (m *MockBuilderSessionService) Suggestions(ctx context.Context, tenantID, sessionID uuid.UUID) ([]domain.Product, error) {
	args := m.Called(ctx, tenantID, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Product), args.Error(1)
}

func (m *MockBuilderSessionService) SetRecipient(ctx context.Context, tenantID, sessionID uuid.UUID, input workflow.SendInput) (*service.SessionView, error) {
	return m.view(m.Called(ctx, tenantID, sessionID, input))
}

func (m *MockBuilderSessionService) Send(ctx context.Context, tenantID, sessionID uuid.UUID) (*service.SessionView, error) {
	return m.view(m.Called(ctx, tenantID, sessionID))
}

func (m *MockBuilderSessionService) Close(tenantID, sessionID uuid.UUID) error {
	args := m.Called(tenantID, sessionID)
	return args.Error(0)
}

func (m *MockBuilderSessionService) ReapIdle(now time.Time) int {
	args := m.Called(now)
	return args.Int(0)
}

func (m *MockBuilderSessionService) StartReaper(ctx context.Context) {
	m.Called(ctx)
}

// MockDocumentService is a mock implementation of service.DocumentService.
type MockDocumentService struct {
	mock.Mock
}

func (m *MockDocumentService) List(ctx context.Context, tenantID uuid.UUID, filter port.DocumentFilter, offset, limit int) ([]domain.Document, int, error) {
	args := m.Called(ctx, tenantID, filter, offset, limit)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]domain.Document), args.Int(1), args.Error(2)
}

func (m *MockDocumentService) Get(ctx context.Context, tenantID, docID uuid.UUID) (*domain.Document, error) {
	args := m.Called(ctx, tenantID, docID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Document), args.Error(1)
}

func (m *MockDocumentService) UpdateStatus(ctx context.Context, tenantID, docID uuid.UUID, status domain.DocumentStatus) (*domain.Document, error) {
	args := m.Called(ctx, tenantID, docID, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Document), args.Error(1)
}

func (m *MockDocumentService) Delete(ctx context.Context, tenantID, docID uuid.UUID) error {
	args := m.Called(ctx, tenantID, docID)
	return args.Error(0)
}

// RenderPDF writes the "pdf" argument (a string) to w when the call succeeds.
func (m *MockDocumentService) RenderPDF(ctx context.Context, tenantID, docID uuid.UUID, w io.Writer) (*domain.Document, error) {
	args := m.Called(ctx, tenantID, docID, w)
	if args.Get(0) == nil {
		return nil, args.Error(2)
	}
	_, _ = io.WriteString(w, args.String(1))
	return args.Get(0).(*domain.Document), args.Error(2)
}

// ExportXLSX writes the "body" argument (a string) to w when the call succeeds.
func (m *MockDocumentService) ExportXLSX(ctx context.Context, tenantID uuid.UUID, filter port.DocumentFilter, w io.Writer) error {
	args := m.Called(ctx, tenantID, filter, w)
	if args.Error(1) == nil {
		_, _ = io.WriteString(w, args.String(0))
	}
	return args.Error(1)
}

func (m *MockDocumentService) Link(ctx context.Context, doc *domain.Document) (string, error) {
	args := m.Called(ctx, doc)
	return args.String(0), args.Error(1)
}

// MockProductService is a mock implementation of service.ProductService.
type MockProductService struct {
	mock.Mock
}

func (m *MockProductService) List(ctx context.Context, tenantID uuid.UUID, upsellOnly bool) ([]domain.Product, error) {
	args := m.Called(ctx, tenantID, upsellOnly)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Product), args.Error(1)
}

func (m *MockProductService) Get(ctx context.Context, tenantID, productID uuid.UUID) (*domain.Product, error) {
	args := m.Called(ctx, tenantID, productID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Product), args.Error(1)
}

// MockConversationService is a mock implementation of service.ConversationService.
type MockConversationService struct {
	mock.Mock
}

func (m *MockConversationService) List(ctx context.Context, tenantID uuid.UUID) ([]domain.Conversation, error) {
	args := m.Called(ctx, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Conversation), args.Error(1)
}

func (m *MockConversationService) Messages(ctx context.Context, tenantID, conversationID uuid.UUID, offset, limit int) ([]domain.Message, int, error) {
	args := m.Called(ctx, tenantID, conversationID, offset, limit)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]domain.Message), args.Int(1), args.Error(2)
}

func (m *MockConversationService) SendMessage(ctx context.Context, input service.SendMessageInput) (*domain.Message, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Message), args.Error(1)
}

func (m *MockConversationService) MarkRead(ctx context.Context, tenantID, conversationID uuid.UUID) error {
	args := m.Called(ctx, tenantID, conversationID)
	return args.Error(0)
}

// MockPortalService is a mock implementation of service.PortalService.
type MockPortalService struct {
	mock.Mock
}

func (m *MockPortalService) Authenticate(ctx context.Context, input service.PortalLoginInput) (*service.PortalToken, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.PortalToken), args.Error(1)
}

func (m *MockPortalService) Dashboard(ctx context.Context, tenantID, clientID uuid.UUID) (*service.PortalDashboard, error) {
	args := m.Called(ctx, tenantID, clientID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.PortalDashboard), args.Error(1)
}

func (m *MockPortalService) ApproveEstimate(ctx context.Context, tenantID, clientID, estimateID uuid.UUID) (*render.CustomerDocument, error) {
	args := m.Called(ctx, tenantID, clientID, estimateID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*render.CustomerDocument), args.Error(1)
}

func (m *MockPortalService) RejectEstimate(ctx context.Context, tenantID, clientID, estimateID uuid.UUID) (*render.CustomerDocument, error) {
	args := m.Called(ctx, tenantID, clientID, estimateID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*render.CustomerDocument), args.Error(1)
}
