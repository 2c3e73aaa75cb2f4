package handler

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"fieldworks/internal/domain"
	"fieldworks/internal/port"
	"fieldworks/internal/service"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// DocumentHandler handles estimate and invoice endpoints outside the builder.
type DocumentHandler struct {
	documentService service.DocumentService
	logger          *zap.Logger
}

// NewDocumentHandler creates a new DocumentHandler.
func NewDocumentHandler(documentService service.DocumentService, logger *zap.Logger) *DocumentHandler {
	return &DocumentHandler{documentService: documentService, logger: logger}
}

// List handles GET /api/v1/documents
// @Summary List documents
// @Description List estimates and invoices, newest first
// @Tags documents
// @Produce json
// @Param offset query int false "Offset for pagination" default(0)
// @Param limit query int false "Limit for pagination (max 100)" default(20)
// @Param kind query string false "estimate or invoice"
// @Param status query string false "Filter by status"
// @Param client_id query string false "Filter by client ID"
// @Success 200 {object} Response{data=[]domain.Document,meta=PagMeta} "List of documents"
// @Failure 400 {object} ErrorResponseBody "Invalid filter"
// @Failure 401 {object} ErrorResponseBody "Unauthorized"
// @Security BearerAuth
// @Router /documents [get]
func (h *DocumentHandler) List(c *gin.Context) {
	tenantID, _, ok := extractAuthContext(c)
	if !ok {
		return
	}
	filter, ok := parseDocumentFilter(c)
	if !ok {
		return
	}
	offset, limit := parsePagination(c)

	docs, total, err := h.documentService.List(c.Request.Context(), tenantID, filter, offset, limit)
	if err != nil {
		HandleError(c, h.logger, err)
		return
	}

	RespondPaginated(c, docs, PagMeta{Total: total, Offset: offset, Limit: limit})
}

// GetByID handles GET /api/v1/documents/:id
// @Summary Get document by ID
// @Description Get an estimate or invoice with its line items
// @Tags documents
// @Produce json
// @Param id path string true "Document ID (UUID)"
// @Success 200 {object} Response{data=domain.Document} "Document details"
// @Failure 400 {object} ErrorResponseBody "Invalid ID"
// @Failure 404 {object} ErrorResponseBody "Document not found"
// @Security BearerAuth
// @Router /documents/{id} [get]
func (h *DocumentHandler) GetByID(c *gin.Context) {
	tenantID, _, ok := extractAuthContext(c)
	if !ok {
		return
	}
	docID, ok := parseIDParam(c, "id", "document")
	if !ok {
		return
	}

	doc, err := h.documentService.Get(c.Request.Context(), tenantID, docID)
	if err != nil {
		HandleError(c, h.logger, err)
		return
	}

	RespondOK(c, doc)
}

// UpdateStatus handles PUT /api/v1/documents/:id/status
// @Summary Change document status
// @Description Move a document through its lifecycle, e.g. mark an invoice paid or cancel an estimate
// @Tags documents
// @Accept json
// @Produce json
// @Param id path string true "Document ID (UUID)"
// @Param request body UpdateStatusRequest true "New status"
// @Success 200 {object} Response{data=domain.Document} "Updated document"
// @Failure 400 {object} ErrorResponseBody "Invalid request"
// @Failure 404 {object} ErrorResponseBody "Document not found"
// @Failure 409 {object} ErrorResponseBody "Transition not allowed"
// @Security BearerAuth
// @Router /documents/{id}/status [put]
func (h *DocumentHandler) UpdateStatus(c *gin.Context) {
	tenantID, _, ok := extractAuthContext(c)
	if !ok {
		return
	}
	docID, ok := parseIDParam(c, "id", "document")
	if !ok {
		return
	}

	var req UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_REQUEST", "status is required")
		return
	}

	doc, err := h.documentService.UpdateStatus(c.Request.Context(), tenantID, docID, req.Status)
	if err != nil {
		HandleError(c, h.logger, err)
		return
	}

	RespondOK(c, doc)
}

// Delete handles DELETE /api/v1/documents/:id
// @Summary Delete a draft
// @Description Only drafts can be deleted; sent documents must be cancelled
// @Tags documents
// @Produce json
// @Param id path string true "Document ID (UUID)"
// @Success 200 {object} Response "Document deleted"
// @Failure 404 {object} ErrorResponseBody "Document not found"
// @Failure 409 {object} ErrorResponseBody "Document is not a draft"
// @Security BearerAuth
// @Router /documents/{id} [delete]
func (h *DocumentHandler) Delete(c *gin.Context) {
	tenantID, _, ok := extractAuthContext(c)
	if !ok {
		return
	}
	docID, ok := parseIDParam(c, "id", "document")
	if !ok {
		return
	}

	if err := h.documentService.Delete(c.Request.Context(), tenantID, docID); err != nil {
		HandleError(c, h.logger, err)
		return
	}

	RespondOK(c, gin.H{"message": "document deleted"})
}

// PDF handles GET /api/v1/documents/:id/pdf
// @Summary Download document PDF
// @Description Render the customer copy of an estimate or invoice
// @Tags documents
// @Produce application/pdf
// @Param id path string true "Document ID (UUID)"
// @Success 200 {file} binary "PDF file"
// @Failure 404 {object} ErrorResponseBody "Document not found"
// @Security BearerAuth
// @Router /documents/{id}/pdf [get]
func (h *DocumentHandler) PDF(c *gin.Context) {
	tenantID, _, ok := extractAuthContext(c)
	if !ok {
		return
	}
	docID, ok := parseIDParam(c, "id", "document")
	if !ok {
		return
	}

	// Rendered to a buffer so a failure can still produce a JSON error.
	var buf bytes.Buffer
	doc, err := h.documentService.RenderPDF(c.Request.Context(), tenantID, docID, &buf)
	if err != nil {
		HandleError(c, h.logger, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.pdf"`, doc.Number))
	c.Data(http.StatusOK, "application/pdf", buf.Bytes())
}

// Export handles GET /api/v1/documents/export
// @Summary Export documents to Excel
// @Description Download matching documents and their line items as an XLSX workbook
// @Tags documents
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param kind query string false "estimate or invoice"
// @Param status query string false "Filter by status"
// @Param client_id query string false "Filter by client ID"
// @Success 200 {file} binary "XLSX file"
// @Failure 400 {object} ErrorResponseBody "Invalid filter"
// @Security BearerAuth
// @Router /documents/export [get]
func (h *DocumentHandler) Export(c *gin.Context) {
	tenantID, _, ok := extractAuthContext(c)
	if !ok {
		return
	}
	filter, ok := parseDocumentFilter(c)
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := h.documentService.ExportXLSX(c.Request.Context(), tenantID, filter, &buf); err != nil {
		HandleError(c, h.logger, err)
		return
	}

	name := "documents"
	if filter.Kind != "" {
		name = string(filter.Kind) + "s"
	}
	filename := fmt.Sprintf("%s-%s.xlsx", name, time.Now().UTC().Format("20060102"))
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}

func parseDocumentFilter(c *gin.Context) (port.DocumentFilter, bool) {
	filter := port.DocumentFilter{
		Kind:   domain.DocumentKind(c.Query("kind")),
		Status: domain.DocumentStatus(c.Query("status")),
	}
	if v := c.Query("client_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			RespondError(c, http.StatusBadRequest, "INVALID_ID", "invalid client_id")
			return filter, false
		}
		filter.ClientID = &id
	}
	return filter, true
}
