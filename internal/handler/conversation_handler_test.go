package handler_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	"fieldworks/internal/domain"
	"fieldworks/internal/handler"
	"fieldworks/internal/service"
	"fieldworks/mocks"
)

type fakeFeed struct {
	updates  chan []domain.Conversation
	degraded bool
	canceled bool
}

func (f *fakeFeed) Subscribe(uuid.UUID) (<-chan []domain.Conversation, func()) {
	return f.updates, func() { f.canceled = true }
}

func (f *fakeFeed) Degraded() bool { return f.degraded }

func newConversationHandler(feed handler.ConversationFeed) (*handler.ConversationHandler, *mocks.MockConversationService) {
	mockSvc := new(mocks.MockConversationService)
	return handler.NewConversationHandler(mockSvc, feed, zap.NewNop()), mockSvc
}

func TestConversationHandler_SendMessage_HeaderKeyWins(t *testing.T) {
	h, mockSvc := newConversationHandler(&fakeFeed{})
	tenantID, userID, convID := uuid.New(), uuid.New(), uuid.New()

	mockSvc.On("SendMessage", mock.Anything, service.SendMessageInput{
		TenantID:       tenantID,
		UserID:         userID,
		ConversationID: convID,
		Body:           "On our way",
		IdempotencyKey: "header-key",
	}).Return(&domain.Message{ID: uuid.New(), Body: "On our way"}, nil)

	c, w := newContext(t, http.MethodPost, "/", map[string]string{"body": "On our way", "idempotency_key": "body-key"},
		gin.Param{Key: "id", Value: convID.String()})
	c.Request.Header.Set("Idempotency-Key", "header-key")
	setAuthContext(c, tenantID, userID)
	h.SendMessage(c)

	assert.Equal(t, http.StatusCreated, w.Code)
	mockSvc.AssertExpectations(t)
}

func TestConversationHandler_SendMessage_FailedDeliveryReturnsMessage(t *testing.T) {
	h, mockSvc := newConversationHandler(&fakeFeed{})
	tenantID, convID := uuid.New(), uuid.New()
	msg := &domain.Message{ID: uuid.New(), Status: domain.DeliveryFailed}

	mockSvc.On("SendMessage", mock.Anything, mock.Anything).
		Return(msg, &domain.DeliveryError{Provider: "sqs", Message: "queue unavailable"})

	c, w := newContext(t, http.MethodPost, "/", map[string]string{"body": "hi"},
		gin.Param{Key: "id", Value: convID.String()})
	setAuthContext(c, tenantID, uuid.New())
	h.SendMessage(c)

	assert.Equal(t, http.StatusBadGateway, w.Code)
	resp := decode(t, w)
	assert.False(t, resp.Success)
	assert.NotNil(t, resp.Data)
}

func TestConversationHandler_SendMessage_EmptyBody(t *testing.T) {
	h, _ := newConversationHandler(&fakeFeed{})

	c, w := newContext(t, http.MethodPost, "/", map[string]string{},
		gin.Param{Key: "id", Value: uuid.New().String()})
	setAuthContext(c, uuid.New(), uuid.New())
	h.SendMessage(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestConversationHandler_MarkRead_NotFound(t *testing.T) {
	h, mockSvc := newConversationHandler(&fakeFeed{})
	tenantID, convID := uuid.New(), uuid.New()
	mockSvc.On("MarkRead", mock.Anything, tenantID, convID).Return(domain.ErrConversationNotFound)

	c, w := newContext(t, http.MethodPost, "/", nil, gin.Param{Key: "id", Value: convID.String()})
	setAuthContext(c, tenantID, uuid.New())
	h.MarkRead(c)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestConversationHandler_Stream(t *testing.T) {
	feed := &fakeFeed{updates: make(chan []domain.Conversation, 1), degraded: true}
	h, mockSvc := newConversationHandler(feed)
	tenantID := uuid.New()

	mockSvc.On("List", mock.Anything, tenantID).Return([]domain.Conversation{{ID: uuid.New(), Recipient: "first@test.com"}}, nil)
	feed.updates <- []domain.Conversation{{ID: uuid.New(), Recipient: "second@test.com"}}

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequestWithContext(ctx, http.MethodGet, "/stream", http.NoBody)
	setAuthContext(c, tenantID, uuid.New())
	h.Stream(c)

	body := w.Body.String()
	assert.Equal(t, 2, strings.Count(body, "event:conversations"))
	assert.Contains(t, body, "event:degraded")
	assert.True(t, strings.Index(body, "first@test.com") < strings.Index(body, "second@test.com"))
	assert.True(t, feed.canceled)
}
