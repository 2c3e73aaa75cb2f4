package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"fieldworks/internal/render"
	"fieldworks/internal/service"
)

// PortalHandler serves the client portal.
type PortalHandler struct {
	portalService service.PortalService
	logger        *zap.Logger
}

// NewPortalHandler creates a new PortalHandler.
func NewPortalHandler(portalService service.PortalService, logger *zap.Logger) *PortalHandler {
	return &PortalHandler{portalService: portalService, logger: logger}
}

// Login handles POST /api/v1/portal/login
// @Summary Portal login
// @Description Exchange a client id and access code for a portal token
// @Tags portal
// @Accept json
// @Produce json
// @Param request body service.PortalLoginInput true "Credentials"
// @Success 200 {object} Response{data=service.PortalToken} "Portal token"
// @Failure 400 {object} ErrorResponseBody "Invalid request"
// @Failure 401 {object} ErrorResponseBody "Invalid credentials"
// @Failure 403 {object} ErrorResponseBody "Portal access disabled"
// @Failure 429 {object} ErrorResponseBody "Too many attempts"
// @Router /portal/login [post]
func (h *PortalHandler) Login(c *gin.Context) {
	var input service.PortalLoginInput
	if err := c.ShouldBindJSON(&input); err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_REQUEST", "client_id and access_code are required")
		return
	}

	token, err := h.portalService.Authenticate(c.Request.Context(), input)
	if err != nil {
		HandleError(c, h.logger, err)
		return
	}

	RespondOK(c, token)
}

// Dashboard handles GET /api/v1/portal/dashboard
// @Summary Portal dashboard
// @Description The signed-in client's estimates, invoices and outstanding balance
// @Tags portal
// @Produce json
// @Success 200 {object} Response{data=service.PortalDashboard} "Dashboard"
// @Failure 401 {object} ErrorResponseBody "Unauthorized"
// @Security PortalAuth
// @Router /portal/dashboard [get]
func (h *PortalHandler) Dashboard(c *gin.Context) {
	tenantID, clientID, ok := extractPortalContext(c)
	if !ok {
		return
	}

	dashboard, err := h.portalService.Dashboard(c.Request.Context(), tenantID, clientID)
	if err != nil {
		HandleError(c, h.logger, err)
		return
	}

	RespondOK(c, dashboard)
}

// Approve handles POST /api/v1/portal/estimates/:id/approve
// @Summary Approve an estimate
// @Tags portal
// @Produce json
// @Param id path string true "Estimate ID (UUID)"
// @Success 200 {object} Response{data=render.CustomerDocument} "Approved estimate"
// @Failure 404 {object} ErrorResponseBody "Estimate not found"
// @Failure 409 {object} ErrorResponseBody "Estimate is not awaiting a decision"
// @Security PortalAuth
// @Router /portal/estimates/{id}/approve [post]
func (h *PortalHandler) Approve(c *gin.Context) {
	h.decide(c, h.portalService.ApproveEstimate)
}

// Reject handles POST /api/v1/portal/estimates/:id/reject
// @Summary Reject an estimate
// @Tags portal
// @Produce json
// @Param id path string true "Estimate ID (UUID)"
// @Success 200 {object} Response{data=render.CustomerDocument} "Rejected estimate"
// @Failure 404 {object} ErrorResponseBody "Estimate not found"
// @Failure 409 {object} ErrorResponseBody "Estimate is not awaiting a decision"
// @Security PortalAuth
// @Router /portal/estimates/{id}/reject [post]
func (h *PortalHandler) Reject(c *gin.Context) {
	h.decide(c, h.portalService.RejectEstimate)
}

type portalDecision func(ctx context.Context, tenantID, clientID, estimateID uuid.UUID) (*render.CustomerDocument, error)

func (h *PortalHandler) decide(c *gin.Context, decide portalDecision) {
	tenantID, clientID, ok := extractPortalContext(c)
	if !ok {
		return
	}
	estimateID, ok := parseIDParam(c, "id", "estimate")
	if !ok {
		return
	}

	doc, err := decide(c.Request.Context(), tenantID, clientID, estimateID)
	if err != nil {
		HandleError(c, h.logger, err)
		return
	}

	RespondOK(c, doc)
}
