package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"fieldworks/internal/domain"
	"fieldworks/internal/port"
)

// MockConversationRepo is a mock implementation of port.ConversationRepository.
type MockConversationRepo struct {
	mock.Mock
}

func (m *MockConversationRepo) GetByID(ctx context.Context, tenantID, conversationID uuid.UUID) (*domain.Conversation, error) {
	args := m.Called(ctx, tenantID, conversationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Conversation), args.Error(1)
}

func (m *MockConversationRepo) ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]domain.Conversation, error) {
	args := m.Called(ctx, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Conversation), args.Error(1)
}

func (m *MockConversationRepo) MarkRead(ctx context.Context, tenantID, conversationID uuid.UUID) error {
	args := m.Called(ctx, tenantID, conversationID)
	return args.Error(0)
}

// MockMessageRepo is a mock implementation of port.MessageRepository.
type MockMessageRepo struct {
	mock.Mock
}

func (m *MockMessageRepo) Create(ctx context.Context, msg *domain.Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

func (m *MockMessageRepo) UpdateStatus(ctx context.Context, tenantID, messageID uuid.UUID, status domain.DeliveryStatus) error {
	args := m.Called(ctx, tenantID, messageID, status)
	return args.Error(0)
}

func (m *MockMessageRepo) ListByConversation(ctx context.Context, tenantID, conversationID uuid.UUID, offset, limit int) ([]domain.Message, int, error) {
	args := m.Called(ctx, tenantID, conversationID, offset, limit)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]domain.Message), args.Int(1), args.Error(2)
}

// MockChangeFeed is a mock implementation of port.ChangeFeed.
// A func(ctx, events) error return value is invoked in place of a plain error.
type MockChangeFeed struct {
	mock.Mock
}

func (m *MockChangeFeed) Listen(ctx context.Context, events chan<- port.ChangeEvent) error {
	args := m.Called(ctx, events)
	if fn, ok := args.Get(0).(func(context.Context, chan<- port.ChangeEvent) error); ok {
		return fn(ctx, events)
	}
	return args.Error(0)
}
