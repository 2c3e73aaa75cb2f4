package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"fieldworks/internal/builder"
	"fieldworks/internal/middleware"
	"fieldworks/internal/service"
	"fieldworks/internal/workflow"
)

// SessionHandler exposes the estimate and invoice builder workflow.
type SessionHandler struct {
	sessions service.BuilderSessionService
	logger   *zap.Logger
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(sessions service.BuilderSessionService, logger *zap.Logger) *SessionHandler {
	return &SessionHandler{sessions: sessions, logger: logger}
}

// respondSession writes view with its notices. A failed operation still
// carries the notices raised before it failed.
func (h *SessionHandler) respondSession(c *gin.Context, status int, view *service.SessionView, err error) {
	if err != nil {
		code, errCode, msg := MapDomainError(err)
		if code >= 500 {
			h.logger.Error("session request failed",
				zap.String("request_id", c.GetString(middleware.ContextKeyRequestID)),
				zap.String("code", errCode),
				zap.Error(err))
		}
		resp := APIResponse{Success: false, Error: &APIError{Code: errCode, Message: msg}}
		if view != nil {
			resp.Notices = view.Notices
		}
		c.JSON(code, resp)
		return
	}
	c.JSON(status, APIResponse{Success: true, Data: view, Notices: view.Notices})
}

// Open handles POST /api/v1/sessions
// @Summary Open a builder session
// @Description Start building a new estimate or invoice, edit an existing one, or convert an estimate into an invoice
// @Tags sessions
// @Accept json
// @Produce json
// @Param request body service.OpenSessionInput true "Session options"
// @Success 201 {object} SessionResponse{data=service.SessionView} "Session opened"
// @Failure 400 {object} ErrorResponseBody "Invalid request"
// @Failure 404 {object} ErrorResponseBody "Document not found"
// @Failure 409 {object} ErrorResponseBody "Document locked or already converted"
// @Security BearerAuth
// @Router /sessions [post]
func (h *SessionHandler) Open(c *gin.Context) {
	tenantID, userID, ok := extractAuthContext(c)
	if !ok {
		return
	}

	var input service.OpenSessionInput
	if err := c.ShouldBindJSON(&input); err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_REQUEST", "kind is required")
		return
	}
	input.TenantID = tenantID
	input.UserID = userID

	view, err := h.sessions.Open(c.Request.Context(), input)
	h.respondSession(c, http.StatusCreated, view, err)
}

// Get handles GET /api/v1/sessions/:id
// @Summary Get a builder session
// @Tags sessions
// @Produce json
// @Param id path string true "Session ID (UUID)"
// @Success 200 {object} SessionResponse{data=service.SessionView} "Session state"
// @Failure 404 {object} ErrorResponseBody "Session not found or expired"
// @Security BearerAuth
// @Router /sessions/{id} [get]
func (h *SessionHandler) Get(c *gin.Context) {
	tenantID, _, ok := extractAuthContext(c)
	if !ok {
		return
	}
	sessionID, ok := parseIDParam(c, "id", "session")
	if !ok {
		return
	}

	view, err := h.sessions.Get(c.Request.Context(), tenantID, sessionID)
	h.respondSession(c, http.StatusOK, view, err)
}

// Close handles DELETE /api/v1/sessions/:id
// @Summary Close a builder session
// @Description Discard the session. Operations still running on it are canceled.
// @Tags sessions
// @Param id path string true "Session ID (UUID)"
// @Success 204 "Session closed"
// @Failure 404 {object} ErrorResponseBody "Session not found or expired"
// @Security BearerAuth
// @Router /sessions/{id} [delete]
func (h *SessionHandler) Close(c *gin.Context) {
	tenantID, _, ok := extractAuthContext(c)
	if !ok {
		return
	}
	sessionID, ok := parseIDParam(c, "id", "session")
	if !ok {
		return
	}

	if err := h.sessions.Close(tenantID, sessionID); err != nil {
		HandleError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// AddProduct handles POST /api/v1/sessions/:id/items/product
// @Summary Add a catalog product
// @Description Append a line item copied from a catalog product
// @Tags sessions
// @Accept json
// @Produce json
// @Param id path string true "Session ID (UUID)"
// @Param request body AddProductRequest true "Product to add"
// @Success 200 {object} SessionResponse{data=service.SessionView} "Updated session"
// @Failure 400 {object} ErrorResponseBody "Invalid request"
// @Failure 404 {object} ErrorResponseBody "Session or product not found"
// @Security BearerAuth
// @Router /sessions/{id}/items/product [post]
func (h *SessionHandler) AddProduct(c *gin.Context) {
	tenantID, _, ok := extractAuthContext(c)
	if !ok {
		return
	}
	sessionID, ok := parseIDParam(c, "id", "session")
	if !ok {
		return
	}

	var req AddProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_REQUEST", "product_id is required")
		return
	}

	view, err := h.sessions.AddProduct(c.Request.Context(), tenantID, sessionID, req.ProductID)
	h.respondSession(c, http.StatusOK, view, err)
}

// AddCustomLine handles POST /api/v1/sessions/:id/items/custom
// @Summary Add a custom line
// @Description Append a blank line item to be filled in
// @Tags sessions
// @Produce json
// @Param id path string true "Session ID (UUID)"
// @Success 200 {object} SessionResponse{data=service.SessionView} "Updated session"
// @Failure 404 {object} ErrorResponseBody "Session not found"
// @Security BearerAuth
// @Router /sessions/{id}/items/custom [post]
func (h *SessionHandler) AddCustomLine(c *gin.Context) {
	tenantID, _, ok := extractAuthContext(c)
	if !ok {
		return
	}
	sessionID, ok := parseIDParam(c, "id", "session")
	if !ok {
		return
	}

	view, err := h.sessions.AddCustomLine(c.Request.Context(), tenantID, sessionID)
	h.respondSession(c, http.StatusOK, view, err)
}

// UpdateLineItem handles PATCH /api/v1/sessions/:id/items/:item_id
// @Summary Edit a line item
// @Description Change any of description, quantity, unit_price, our_price, discount or taxable. Totals are recomputed.
// @Tags sessions
// @Accept json
// @Produce json
// @Param id path string true "Session ID (UUID)"
// @Param item_id path string true "Line item ID (UUID)"
// @Param request body builder.LineItemPatch true "Fields to change"
// @Success 200 {object} SessionResponse{data=service.SessionView} "Updated session"
// @Failure 400 {object} ErrorResponseBody "Invalid value"
// @Failure 404 {object} ErrorResponseBody "Session or line item not found"
// @Security BearerAuth
// @Router /sessions/{id}/items/{item_id} [patch]
func (h *SessionHandler) UpdateLineItem(c *gin.Context) {
	tenantID, _, ok := extractAuthContext(c)
	if !ok {
		return
	}
	sessionID, ok := parseIDParam(c, "id", "session")
	if !ok {
		return
	}
	itemID, ok := parseIDParam(c, "item_id", "line item")
	if !ok {
		return
	}

	var patch builder.LineItemPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_REQUEST", "invalid line item fields")
		return
	}

	view, err := h.sessions.UpdateLineItem(c.Request.Context(), tenantID, sessionID, itemID, patch)
	h.respondSession(c, http.StatusOK, view, err)
}

// RemoveLineItem handles DELETE /api/v1/sessions/:id/items/:item_id
// @Summary Remove a line item
// @Tags sessions
// @Produce json
// @Param id path string true "Session ID (UUID)"
// @Param item_id path string true "Line item ID (UUID)"
// @Success 200 {object} SessionResponse{data=service.SessionView} "Updated session"
// @Failure 404 {object} ErrorResponseBody "Session or line item not found"
// @Security BearerAuth
// @Router /sessions/{id}/items/{item_id} [delete]
func (h *SessionHandler) RemoveLineItem(c *gin.Context) {
	tenantID, _, ok := extractAuthContext(c)
	if !ok {
		return
	}
	sessionID, ok := parseIDParam(c, "id", "session")
	if !ok {
		return
	}
	itemID, ok := parseIDParam(c, "item_id", "line item")
	if !ok {
		return
	}

	view, err := h.sessions.RemoveLineItem(c.Request.Context(), tenantID, sessionID, itemID)
	h.respondSession(c, http.StatusOK, view, err)
}

// UpdateDetails handles PATCH /api/v1/sessions/:id/details
// @Summary Edit document details
// @Description Set the tax rate, notes or client. A nil UUID client_id clears the client.
// @Tags sessions
// @Accept json
// @Produce json
// @Param id path string true "Session ID (UUID)"
// @Param request body service.DetailsInput true "Details to change"
// @Success 200 {object} SessionResponse{data=service.SessionView} "Updated session"
// @Failure 400 {object} ErrorResponseBody "Invalid value"
// @Failure 404 {object} ErrorResponseBody "Session not found"
// @Security BearerAuth
// @Router /sessions/{id}/details [patch]
func (h *SessionHandler) UpdateDetails(c *gin.Context) {
	tenantID, _, ok := extractAuthContext(c)
	if !ok {
		return
	}
	sessionID, ok := parseIDParam(c, "id", "session")
	if !ok {
		return
	}

	var input service.DetailsInput
	if err := c.ShouldBindJSON(&input); err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_REQUEST", "invalid details")
		return
	}

	view, err := h.sessions.UpdateDetails(c.Request.Context(), tenantID, sessionID, input)
	h.respondSession(c, http.StatusOK, view, err)
}

// Save handles POST /api/v1/sessions/:id/save
// @Summary Save the document
// @Description Persist the document and its line items. Fails with 409 when another editor saved first.
// @Tags sessions
// @Produce json
// @Param id path string true "Session ID (UUID)"
// @Success 200 {object} SessionResponse{data=service.SessionView} "Saved"
// @Failure 404 {object} ErrorResponseBody "Session not found"
// @Failure 409 {object} ErrorResponseBody "Concurrent edit or locked document"
// @Failure 410 {object} ErrorResponseBody "Session closed while saving"
// @Security BearerAuth
// @Router /sessions/{id}/save [post]
func (h *SessionHandler) Save(c *gin.Context) {
	h.step(c, h.sessions.Save)
}

// Next handles POST /api/v1/sessions/:id/next
// @Summary Advance to the next step
// @Description Completes the current step. Leaving the items step saves the document.
// @Tags sessions
// @Produce json
// @Param id path string true "Session ID (UUID)"
// @Success 200 {object} SessionResponse{data=service.SessionView} "Advanced"
// @Failure 409 {object} ErrorResponseBody "Step cannot be completed"
// @Failure 422 {object} ErrorResponseBody "No line items"
// @Security BearerAuth
// @Router /sessions/{id}/next [post]
func (h *SessionHandler) Next(c *gin.Context) {
	h.step(c, h.sessions.Next)
}

// Back handles POST /api/v1/sessions/:id/back
// @Summary Return to the previous step
// @Tags sessions
// @Produce json
// @Param id path string true "Session ID (UUID)"
// @Success 200 {object} SessionResponse{data=service.SessionView} "Moved back"
// @Failure 409 {object} ErrorResponseBody "Already on the first step"
// @Security BearerAuth
// @Router /sessions/{id}/back [post]
func (h *SessionHandler) Back(c *gin.Context) {
	h.step(c, h.sessions.Back)
}

// Send handles POST /api/v1/sessions/:id/send
// @Summary Send the document
// @Description Deliver the saved document by email or SMS. A repeated send of the same intent is not delivered twice.
// @Tags sessions
// @Produce json
// @Param id path string true "Session ID (UUID)"
// @Success 200 {object} SessionResponse{data=service.SessionView} "Sent; the session is closed"
// @Failure 400 {object} ErrorResponseBody "Missing recipient"
// @Failure 409 {object} ErrorResponseBody "Not on the send step"
// @Failure 502 {object} ErrorResponseBody "Provider rejected the message"
// @Security BearerAuth
// @Router /sessions/{id}/send [post]
func (h *SessionHandler) Send(c *gin.Context) {
	h.step(c, h.sessions.Send)
}

func (h *SessionHandler) step(c *gin.Context, op func(ctx context.Context, tenantID, sessionID uuid.UUID) (*service.SessionView, error)) {
	tenantID, _, ok := extractAuthContext(c)
	if !ok {
		return
	}
	sessionID, ok := parseIDParam(c, "id", "session")
	if !ok {
		return
	}

	view, err := op(c.Request.Context(), tenantID, sessionID)
	h.respondSession(c, http.StatusOK, view, err)
}

// Suggestions handles GET /api/v1/sessions/:id/suggestions
// @Summary List upsell suggestions
// @Description Catalog products offered on the upsell step
// @Tags sessions
// @Produce json
// @Param id path string true "Session ID (UUID)"
// @Success 200 {object} Response{data=[]domain.Product} "Suggested products"
// @Failure 409 {object} ErrorResponseBody "Not on the upsell step"
// @Security BearerAuth
// @Router /sessions/{id}/suggestions [get]
func (h *SessionHandler) Suggestions(c *gin.Context) {
	tenantID, _, ok := extractAuthContext(c)
	if !ok {
		return
	}
	sessionID, ok := parseIDParam(c, "id", "session")
	if !ok {
		return
	}

	products, err := h.sessions.Suggestions(c.Request.Context(), tenantID, sessionID)
	if err != nil {
		HandleError(c, h.logger, err)
		return
	}
	RespondOK(c, products)
}

// SetRecipient handles PUT /api/v1/sessions/:id/recipient
// @Summary Set delivery details
// @Description Choose channel, recipient and message for the send step
// @Tags sessions
// @Accept json
// @Produce json
// @Param id path string true "Session ID (UUID)"
// @Param request body workflow.SendInput true "Delivery details"
// @Success 200 {object} SessionResponse{data=service.SessionView} "Updated session"
// @Failure 400 {object} ErrorResponseBody "Invalid channel"
// @Failure 409 {object} ErrorResponseBody "Not on the send step"
// @Security BearerAuth
// @Router /sessions/{id}/recipient [put]
func (h *SessionHandler) SetRecipient(c *gin.Context) {
	tenantID, _, ok := extractAuthContext(c)
	if !ok {
		return
	}
	sessionID, ok := parseIDParam(c, "id", "session")
	if !ok {
		return
	}

	var input workflow.SendInput
	if err := c.ShouldBindJSON(&input); err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_REQUEST", "invalid delivery details")
		return
	}

	view, err := h.sessions.SetRecipient(c.Request.Context(), tenantID, sessionID, input)
	h.respondSession(c, http.StatusOK, view, err)
}
