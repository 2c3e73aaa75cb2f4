package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"fieldworks/internal/domain"
	"fieldworks/internal/port"
	"fieldworks/internal/service"
	"fieldworks/mocks"
)

type conversationHarness struct {
	convos   *mocks.MockConversationRepo
	messages *mocks.MockMessageRepo
	gateway  *mocks.MockDeliveryGateway
	svc      service.ConversationService
	tenantID uuid.UUID
	conv     *domain.Conversation
}

func newConversationHarness() *conversationHarness {
	h := &conversationHarness{
		convos:   new(mocks.MockConversationRepo),
		messages: new(mocks.MockMessageRepo),
		gateway:  new(mocks.MockDeliveryGateway),
		tenantID: uuid.New(),
	}
	h.conv = &domain.Conversation{ID: uuid.New(), TenantID: h.tenantID, Channel: domain.ChannelSMS, Recipient: "+15551234567"}
	h.convos.On("GetByID", mock.Anything, h.tenantID, h.conv.ID).Return(h.conv, nil)
	h.svc = service.NewConversationService(h.convos, h.messages, h.gateway, "Message from Acme", zap.NewNop())
	return h
}

func (h *conversationHarness) input(key string) service.SendMessageInput {
	return service.SendMessageInput{
		TenantID:       h.tenantID,
		UserID:         uuid.New(),
		ConversationID: h.conv.ID,
		Body:           "  On our way  ",
		IdempotencyKey: key,
	}
}

func TestConversation_SendMessageDelivers(t *testing.T) {
	h := newConversationHarness()
	h.messages.On("Create", mock.Anything, mock.MatchedBy(func(m *domain.Message) bool {
		return m.Body == "On our way" && m.Direction == domain.DirectionOutbound && m.Status == domain.DeliveryPending
	})).Return(nil)
	h.gateway.On("Deliver", mock.Anything, mock.MatchedBy(func(r port.DeliveryRequest) bool {
		return r.Channel == domain.ChannelSMS && r.Recipient == "+15551234567" && r.IdempotencyKey == "k-1" && r.MessageID != nil
	})).Return(&port.DeliveryResult{ProviderRef: "sqs-1"}, nil)
	h.messages.On("UpdateStatus", mock.Anything, h.tenantID, mock.Anything, domain.DeliverySent).Return(nil)

	msg, err := h.svc.SendMessage(context.Background(), h.input("k-1"))

	require.NoError(t, err)
	assert.Equal(t, domain.DeliverySent, msg.Status)
	h.gateway.AssertExpectations(t)
}

func TestConversation_RetryReusesMessageID(t *testing.T) {
	h := newConversationHarness()
	var ids []uuid.UUID
	h.messages.On("Create", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		ids = append(ids, args.Get(1).(*domain.Message).ID)
	}).Return(nil)
	h.gateway.On("Deliver", mock.Anything, mock.Anything).Return(nil, &domain.DeliveryError{Provider: "sqs", Message: "throttled"}).Once()
	h.gateway.On("Deliver", mock.Anything, mock.Anything).Return(&port.DeliveryResult{ProviderRef: "sqs-2"}, nil).Once()
	h.messages.On("UpdateStatus", mock.Anything, h.tenantID, mock.Anything, mock.Anything).Return(nil)

	msg, err := h.svc.SendMessage(context.Background(), h.input("k-2"))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrDeliveryFailed)
	require.NotNil(t, msg)
	assert.Equal(t, domain.DeliveryFailed, msg.Status)

	msg, err = h.svc.SendMessage(context.Background(), h.input("k-2"))
	require.NoError(t, err)
	assert.Equal(t, domain.DeliverySent, msg.Status)

	require.Len(t, ids, 2)
	assert.Equal(t, ids[0], ids[1])
}

func TestConversation_InFlightDeliveryLeavesMessagePending(t *testing.T) {
	h := newConversationHarness()
	h.messages.On("Create", mock.Anything, mock.Anything).Return(nil)
	h.gateway.On("Deliver", mock.Anything, mock.Anything).Return(nil, &domain.DeliveryError{
		Provider: "sqs", Message: "A previous attempt for this message is still in progress", Err: domain.ErrDeliveryInProgress,
	})

	msg, err := h.svc.SendMessage(context.Background(), h.input("k-busy"))

	assert.ErrorIs(t, err, domain.ErrDeliveryInProgress)
	require.NotNil(t, msg)
	assert.Equal(t, domain.DeliveryPending, msg.Status)
	h.messages.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestConversation_SendMessageRejectsEmptyBody(t *testing.T) {
	h := newConversationHarness()
	in := h.input("")
	in.Body = "   "

	_, err := h.svc.SendMessage(context.Background(), in)

	assert.ErrorIs(t, err, domain.ErrValidation)
	h.messages.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestConversation_SendMessageStoreFailure(t *testing.T) {
	h := newConversationHarness()
	h.messages.On("Create", mock.Anything, mock.Anything).Return(errors.New("db down"))

	_, err := h.svc.SendMessage(context.Background(), h.input(""))

	assert.Error(t, err)
	h.gateway.AssertNotCalled(t, "Deliver", mock.Anything, mock.Anything)
}

func TestConversation_MessagesRequiresConversation(t *testing.T) {
	h := newConversationHarness()
	missing := uuid.New()
	h.convos.On("GetByID", mock.Anything, h.tenantID, missing).Return(nil, domain.ErrConversationNotFound)

	_, _, err := h.svc.Messages(context.Background(), h.tenantID, missing, 0, 50)

	assert.ErrorIs(t, err, domain.ErrConversationNotFound)
}
