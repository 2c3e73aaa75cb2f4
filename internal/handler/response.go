package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"fieldworks/internal/domain"
	"fieldworks/internal/middleware"
	"fieldworks/internal/service"
)

// APIResponse is the standard envelope for all API responses.
type APIResponse struct {
	Success bool             `json:"success"`
	Data    interface{}      `json:"data,omitempty"`
	Error   *APIError        `json:"error,omitempty"`
	Meta    *PagMeta         `json:"meta,omitempty"`
	Notices []service.Notice `json:"notices,omitempty"`
}

// APIError holds error details in the response.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

// PagMeta holds pagination metadata.
type PagMeta struct {
	Total  int `json:"total"`
	Offset int `json:"offset"`
	Limit  int `json:"limit"`
}

// RespondOK sends a 200 success response.
func RespondOK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, APIResponse{Success: true, Data: data})
}

// RespondCreated sends a 201 success response.
func RespondCreated(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, APIResponse{Success: true, Data: data})
}

// RespondPaginated sends a 200 success response with pagination metadata.
func RespondPaginated(c *gin.Context, data interface{}, meta PagMeta) {
	c.JSON(http.StatusOK, APIResponse{Success: true, Data: data, Meta: &meta})
}

// RespondError sends an error response with the given status code.
func RespondError(c *gin.Context, status int, code, msg string) {
	c.JSON(status, APIResponse{
		Success: false,
		Error:   &APIError{Code: code, Message: msg},
	})
}

// MapDomainError translates domain errors to HTTP status codes and error codes.
func MapDomainError(err error) (status int, code, msg string) {
	var verr *domain.ValidationError
	var derr *domain.DeliveryError
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest, "VALIDATION_FAILED", verr.Error()
	case errors.As(err, &derr):
		return http.StatusBadGateway, "DELIVERY_FAILED", derr.Error()
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest, "VALIDATION_FAILED", "validation failed"
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized, "UNAUTHORIZED", "unauthorized"
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden, "FORBIDDEN", "forbidden"
	case errors.Is(err, domain.ErrInvalidCredentials):
		return http.StatusUnauthorized, "INVALID_CREDENTIALS", "invalid client id or access code"
	case errors.Is(err, domain.ErrPortalAccessRevoked):
		return http.StatusForbidden, "PORTAL_ACCESS_REVOKED", "portal access is disabled for this client"
	case errors.Is(err, domain.ErrDocumentNotFound):
		return http.StatusNotFound, "DOCUMENT_NOT_FOUND", "document not found"
	case errors.Is(err, domain.ErrClientNotFound):
		return http.StatusNotFound, "CLIENT_NOT_FOUND", "client not found"
	case errors.Is(err, domain.ErrProductNotFound):
		return http.StatusNotFound, "PRODUCT_NOT_FOUND", "product not found"
	case errors.Is(err, domain.ErrConversationNotFound):
		return http.StatusNotFound, "CONVERSATION_NOT_FOUND", "conversation not found"
	case errors.Is(err, domain.ErrSessionNotFound):
		return http.StatusNotFound, "SESSION_NOT_FOUND", "builder session not found or expired"
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "NOT_FOUND", "resource not found"
	case errors.Is(err, domain.ErrSessionClosed):
		return http.StatusGone, "SESSION_CLOSED", "builder session is closed"
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict, "CONFLICT", "document was modified by another editor; reload and retry"
	case errors.Is(err, domain.ErrDocumentLocked):
		return http.StatusConflict, "DOCUMENT_LOCKED", "document can no longer be edited"
	case errors.Is(err, domain.ErrInvalidTransition):
		return http.StatusConflict, "INVALID_TRANSITION", "status change not allowed"
	case errors.Is(err, domain.ErrNotAnEstimate):
		return http.StatusBadRequest, "NOT_AN_ESTIMATE", "only estimates can be converted"
	case errors.Is(err, domain.ErrNoLineItems):
		return http.StatusUnprocessableEntity, "NO_LINE_ITEMS", "add at least one line item"
	case errors.Is(err, domain.ErrDocumentNotSaved):
		return http.StatusUnprocessableEntity, "DOCUMENT_NOT_SAVED", "save the document first"
	case errors.Is(err, domain.ErrWrongStep):
		return http.StatusConflict, "WRONG_STEP", "operation not allowed on the current step"
	case errors.Is(err, domain.ErrStepNotCompletable):
		return http.StatusConflict, "STEP_NOT_COMPLETABLE", "use send to finish this step"
	case errors.Is(err, domain.ErrNoPreviousStep):
		return http.StatusConflict, "NO_PREVIOUS_STEP", "already on the first step"
	case errors.Is(err, domain.ErrLineItemsNotPersisted):
		return http.StatusInternalServerError, "LINE_ITEMS_NOT_PERSISTED", "document saved but line items failed to persist"
	case errors.Is(err, domain.ErrChannelUnavailable):
		return http.StatusServiceUnavailable, "CHANNEL_UNAVAILABLE", "delivery channel is not configured"
	case errors.Is(err, domain.ErrDeliveryFailed):
		return http.StatusBadGateway, "DELIVERY_FAILED", "delivery failed"
	default:
		return http.StatusInternalServerError, "INTERNAL_ERROR", "an internal error occurred"
	}
}

// extractAuthContext extracts tenant ID and user ID from the request context.
// Returns false if auth context is missing (error response already written).
func extractAuthContext(c *gin.Context) (tenantID, userID uuid.UUID, ok bool) {
	var err error
	tenantID, err = middleware.GetTenantID(c)
	if err != nil {
		RespondError(c, http.StatusUnauthorized, "UNAUTHORIZED", "missing tenant context")
		return uuid.Nil, uuid.Nil, false
	}
	userID, err = middleware.GetUserID(c)
	if err != nil {
		RespondError(c, http.StatusUnauthorized, "UNAUTHORIZED", "missing user context")
		return uuid.Nil, uuid.Nil, false
	}
	return tenantID, userID, true
}

// extractPortalContext extracts tenant ID and client ID set by PortalAuth.
func extractPortalContext(c *gin.Context) (tenantID, clientID uuid.UUID, ok bool) {
	var err error
	tenantID, err = middleware.GetTenantID(c)
	if err != nil {
		RespondError(c, http.StatusUnauthorized, "UNAUTHORIZED", "missing tenant context")
		return uuid.Nil, uuid.Nil, false
	}
	clientID, err = middleware.GetClientID(c)
	if err != nil {
		RespondError(c, http.StatusUnauthorized, "UNAUTHORIZED", "missing client context")
		return uuid.Nil, uuid.Nil, false
	}
	return tenantID, clientID, true
}

func parseIDParam(c *gin.Context, name, label string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_ID", "invalid "+label+" ID")
		return uuid.Nil, false
	}
	return id, true
}

// parsePagination reads offset and limit, clamping limit to 1..100.
func parsePagination(c *gin.Context) (offset, limit int) {
	offset, _ = strconv.Atoi(c.DefaultQuery("offset", "0"))
	limit, _ = strconv.Atoi(c.DefaultQuery("limit", "20"))
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return offset, limit
}

// HandleError maps a domain error and sends the appropriate error response.
func HandleError(c *gin.Context, logger *zap.Logger, err error) {
	status, code, msg := MapDomainError(err)
	if status >= 500 && logger != nil {
		logger.Error("request failed",
			zap.String("request_id", c.GetString(middleware.ContextKeyRequestID)),
			zap.String("code", code),
			zap.Error(err))
	}
	resp := APIResponse{Success: false, Error: &APIError{Code: code, Message: msg}}
	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		resp.Error.Field = verr.Field
	}
	c.JSON(status, resp)
}
