package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"fieldworks/internal/domain"
	"fieldworks/internal/port"
)

// SendMessageInput is the DTO for posting a message to a conversation.
type SendMessageInput struct {
	TenantID       uuid.UUID `json:"-"`
	UserID         uuid.UUID `json:"-"`
	ConversationID uuid.UUID `json:"-"`
	Body           string    `json:"body" binding:"required"`
	// IdempotencyKey identifies the send intent across retries. One is minted when empty.
	IdempotencyKey string `json:"idempotency_key"`
}

// ConversationService defines the client messaging contract.
type ConversationService interface {
	List(ctx context.Context, tenantID uuid.UUID) ([]domain.Conversation, error)
	Messages(ctx context.Context, tenantID, conversationID uuid.UUID, offset, limit int) ([]domain.Message, int, error)
	SendMessage(ctx context.Context, input SendMessageInput) (*domain.Message, error)
	MarkRead(ctx context.Context, tenantID, conversationID uuid.UUID) error
}

type conversationService struct {
	convos   port.ConversationRepository
	messages port.MessageRepository
	gateway  port.DeliveryGateway
	subject  string
	logger   *zap.Logger
}

// NewConversationService creates a new ConversationService. subject is used
// for messages that go out over email.
func NewConversationService(
	convos port.ConversationRepository,
	messages port.MessageRepository,
	gateway port.DeliveryGateway,
	subject string,
	logger *zap.Logger,
) ConversationService {
	return &conversationService{
		convos:   convos,
		messages: messages,
		gateway:  gateway,
		subject:  subject,
		logger:   logger,
	}
}

func (s *conversationService) List(ctx context.Context, tenantID uuid.UUID) ([]domain.Conversation, error) {
	return s.convos.ListByTenant(ctx, tenantID)
}

func (s *conversationService) Messages(ctx context.Context, tenantID, conversationID uuid.UUID, offset, limit int) ([]domain.Message, int, error) {
	if _, err := s.convos.GetByID(ctx, tenantID, conversationID); err != nil {
		return nil, 0, err
	}
	return s.messages.ListByConversation(ctx, tenantID, conversationID, offset, limit)
}

// SendMessage records the outbound message and delivers it over the
// conversation's channel. Retries with the same idempotency key reuse the
// message row and never deliver twice.
func (s *conversationService) SendMessage(ctx context.Context, input SendMessageInput) (*domain.Message, error) {
	body := strings.TrimSpace(input.Body)
	if body == "" {
		return nil, domain.NewValidationError("body", "message cannot be empty")
	}

	conv, err := s.convos.GetByID(ctx, input.TenantID, input.ConversationID)
	if err != nil {
		return nil, err
	}

	key := input.IdempotencyKey
	if key == "" {
		key = uuid.NewString()
	}
	userID := input.UserID
	msg := &domain.Message{
		ID:             messageID(input.TenantID, key),
		TenantID:       input.TenantID,
		ConversationID: conv.ID,
		Direction:      domain.DirectionOutbound,
		Body:           body,
		Status:         domain.DeliveryPending,
		SentBy:         &userID,
	}
	if err := s.messages.Create(ctx, msg); err != nil {
		return nil, fmt.Errorf("conversation.SendMessage: %w", err)
	}

	msgID := msg.ID
	_, err = s.gateway.Deliver(ctx, port.DeliveryRequest{
		TenantID:       input.TenantID,
		MessageID:      &msgID,
		Channel:        conv.Channel,
		Recipient:      conv.Recipient,
		Subject:        s.subject,
		Message:        body,
		IdempotencyKey: key,
	})

	// An attempt still in flight owns the message status.
	if !errors.Is(err, domain.ErrDeliveryInProgress) {
		status := domain.DeliverySent
		if err != nil {
			status = domain.DeliveryFailed
		}
		if uerr := s.messages.UpdateStatus(ctx, input.TenantID, msg.ID, status); uerr != nil {
			s.logger.Warn("conversation.SendMessage: updating message status",
				zap.String("message_id", msg.ID.String()), zap.Error(uerr))
		}
		msg.Status = status
	}

	if err != nil {
		var de *domain.DeliveryError
		if !errors.As(err, &de) && !errors.Is(err, domain.ErrChannelUnavailable) {
			return nil, fmt.Errorf("conversation.SendMessage: %w", err)
		}
		return msg, err
	}
	return msg, nil
}

func (s *conversationService) MarkRead(ctx context.Context, tenantID, conversationID uuid.UUID) error {
	return s.convos.MarkRead(ctx, tenantID, conversationID)
}

// messageID derives a stable message id from the send intent.
func messageID(tenantID uuid.UUID, key string) uuid.UUID {
	return uuid.NewSHA1(tenantID, []byte("message:"+key))
}
