package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"fieldworks/internal/domain"
	"fieldworks/internal/port"
)

// MockDeliveryRepo is a mock implementation of port.DeliveryRepository.
type MockDeliveryRepo struct {
	mock.Mock
}

func (m *MockDeliveryRepo) Claim(ctx context.Context, d *domain.Delivery) (*domain.Delivery, bool, error) {
	args := m.Called(ctx, d)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*domain.Delivery), args.Bool(1), args.Error(2)
}

func (m *MockDeliveryRepo) Update(ctx context.Context, d *domain.Delivery) error {
	args := m.Called(ctx, d)
	return args.Error(0)
}

// MockDeliveryGateway is a mock implementation of port.DeliveryGateway.
type MockDeliveryGateway struct {
	mock.Mock
}

func (m *MockDeliveryGateway) Deliver(ctx context.Context, req port.DeliveryRequest) (*port.DeliveryResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*port.DeliveryResult), args.Error(1)
}

// MockChannelSender is a mock implementation of port.ChannelSender.
type MockChannelSender struct {
	mock.Mock
}

func (m *MockChannelSender) Channel() domain.DeliveryChannel {
	args := m.Called()
	return args.Get(0).(domain.DeliveryChannel)
}

func (m *MockChannelSender) Name() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockChannelSender) Send(ctx context.Context, msg port.OutboundMessage) (string, error) {
	args := m.Called(ctx, msg)
	return args.String(0), args.Error(1)
}

// RecordingNotifier is a port.Notifier that keeps every notice it receives.
type RecordingNotifier struct {
	Notices []Notice
}

// Notice is one recorded notification.
type Notice struct {
	Level   domain.NoticeLevel
	Message string
}

func (n *RecordingNotifier) Notify(level domain.NoticeLevel, message string) {
	n.Notices = append(n.Notices, Notice{Level: level, Message: message})
}

// Levels returns the level of each recorded notice in order.
func (n *RecordingNotifier) Levels() []domain.NoticeLevel {
	out := make([]domain.NoticeLevel, len(n.Notices))
	for i := range n.Notices {
		out[i] = n.Notices[i].Level
	}
	return out
}
