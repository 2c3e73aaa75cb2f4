package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"fieldworks/internal/domain"
	"fieldworks/internal/service"
)

// ConversationFeed pushes fresh conversation lists per tenant.
type ConversationFeed interface {
	Subscribe(tenantID uuid.UUID) (updates <-chan []domain.Conversation, cancel func())
	Degraded() bool
}

// ConversationHandler handles client messaging endpoints.
type ConversationHandler struct {
	conversations service.ConversationService
	feed          ConversationFeed
	logger        *zap.Logger
}

// NewConversationHandler creates a new ConversationHandler.
func NewConversationHandler(conversations service.ConversationService, feed ConversationFeed, logger *zap.Logger) *ConversationHandler {
	return &ConversationHandler{conversations: conversations, feed: feed, logger: logger}
}

// List handles GET /api/v1/conversations
// @Summary List conversations
// @Description Conversations with their latest message and unread count, most recent first
// @Tags conversations
// @Produce json
// @Success 200 {object} Response{data=[]domain.Conversation} "Conversations"
// @Failure 401 {object} ErrorResponseBody "Unauthorized"
// @Security BearerAuth
// @Router /conversations [get]
func (h *ConversationHandler) List(c *gin.Context) {
	tenantID, _, ok := extractAuthContext(c)
	if !ok {
		return
	}

	convos, err := h.conversations.List(c.Request.Context(), tenantID)
	if err != nil {
		HandleError(c, h.logger, err)
		return
	}

	RespondOK(c, convos)
}

// Stream handles GET /api/v1/conversations/stream
// @Summary Stream conversation updates
// @Description Server-sent events. Each "conversations" event carries the full list.
// @Tags conversations
// @Produce text/event-stream
// @Success 200 {array} domain.Conversation "Event stream"
// @Security BearerAuth
// @Router /conversations/stream [get]
func (h *ConversationHandler) Stream(c *gin.Context) {
	tenantID, _, ok := extractAuthContext(c)
	if !ok {
		return
	}

	// Subscribe before the initial load so no change slips between them.
	updates, cancel := h.feed.Subscribe(tenantID)
	defer cancel()

	initial, err := h.conversations.List(c.Request.Context(), tenantID)
	if err != nil {
		HandleError(c, h.logger, err)
		return
	}

	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	c.SSEvent("conversations", initial)
	if h.feed.Degraded() {
		c.SSEvent("degraded", gin.H{"polling": true})
	}
	c.Writer.Flush()

	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case convos, ok := <-updates:
			if !ok {
				return
			}
			c.SSEvent("conversations", convos)
			c.Writer.Flush()
		}
	}
}

// Messages handles GET /api/v1/conversations/:id/messages
// @Summary List messages
// @Description Messages of a conversation in chronological order
// @Tags conversations
// @Produce json
// @Param id path string true "Conversation ID (UUID)"
// @Param offset query int false "Offset for pagination" default(0)
// @Param limit query int false "Limit for pagination (max 100)" default(20)
// @Success 200 {object} Response{data=[]domain.Message,meta=PagMeta} "Messages"
// @Failure 404 {object} ErrorResponseBody "Conversation not found"
// @Security BearerAuth
// @Router /conversations/{id}/messages [get]
func (h *ConversationHandler) Messages(c *gin.Context) {
	tenantID, _, ok := extractAuthContext(c)
	if !ok {
		return
	}
	conversationID, ok := parseIDParam(c, "id", "conversation")
	if !ok {
		return
	}
	offset, limit := parsePagination(c)

	msgs, total, err := h.conversations.Messages(c.Request.Context(), tenantID, conversationID, offset, limit)
	if err != nil {
		HandleError(c, h.logger, err)
		return
	}

	RespondPaginated(c, msgs, PagMeta{Total: total, Offset: offset, Limit: limit})
}

// SendMessage handles POST /api/v1/conversations/:id/messages
// @Summary Send a message
// @Description Reply to a client. Retrying with the same idempotency key never sends twice.
// @Tags conversations
// @Accept json
// @Produce json
// @Param id path string true "Conversation ID (UUID)"
// @Param Idempotency-Key header string false "Send intent key; overrides the body field"
// @Param request body service.SendMessageInput true "Message"
// @Success 201 {object} Response{data=domain.Message} "Message sent"
// @Failure 400 {object} ErrorResponseBody "Empty message"
// @Failure 404 {object} ErrorResponseBody "Conversation not found"
// @Failure 502 {object} ErrorResponseBody "Provider rejected the message; data holds the failed message"
// @Security BearerAuth
// @Router /conversations/{id}/messages [post]
func (h *ConversationHandler) SendMessage(c *gin.Context) {
	tenantID, userID, ok := extractAuthContext(c)
	if !ok {
		return
	}
	conversationID, ok := parseIDParam(c, "id", "conversation")
	if !ok {
		return
	}

	var input service.SendMessageInput
	if err := c.ShouldBindJSON(&input); err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_REQUEST", "body is required")
		return
	}
	input.TenantID = tenantID
	input.UserID = userID
	input.ConversationID = conversationID
	if key := c.GetHeader("Idempotency-Key"); key != "" {
		input.IdempotencyKey = key
	}

	msg, err := h.conversations.SendMessage(c.Request.Context(), input)
	if err != nil {
		if msg != nil && (errors.Is(err, domain.ErrDeliveryFailed) || errors.Is(err, domain.ErrChannelUnavailable)) {
			status, code, text := MapDomainError(err)
			c.JSON(status, APIResponse{Success: false, Data: msg, Error: &APIError{Code: code, Message: text}})
			return
		}
		HandleError(c, h.logger, err)
		return
	}

	RespondCreated(c, msg)
}

// MarkRead handles POST /api/v1/conversations/:id/read
// @Summary Mark conversation read
// @Tags conversations
// @Produce json
// @Param id path string true "Conversation ID (UUID)"
// @Success 200 {object} Response "Marked read"
// @Failure 404 {object} ErrorResponseBody "Conversation not found"
// @Security BearerAuth
// @Router /conversations/{id}/read [post]
func (h *ConversationHandler) MarkRead(c *gin.Context) {
	tenantID, _, ok := extractAuthContext(c)
	if !ok {
		return
	}
	conversationID, ok := parseIDParam(c, "id", "conversation")
	if !ok {
		return
	}

	if err := h.conversations.MarkRead(c.Request.Context(), tenantID, conversationID); err != nil {
		HandleError(c, h.logger, err)
		return
	}

	RespondOK(c, gin.H{"message": "conversation marked read"})
}
