package handler

import (
	"github.com/google/uuid"

	"fieldworks/internal/domain"
)

// Swagger type definitions for API documentation.
// These types are used by swag to generate OpenAPI documentation.

// --- Request Types ---

// AddProductRequest represents the add catalog product request body.
type AddProductRequest struct {
	ProductID uuid.UUID `json:"product_id" binding:"required" example:"550e8400-e29b-41d4-a716-446655440000"`
}

// UpdateStatusRequest represents the document status change request body.
type UpdateStatusRequest struct {
	Status domain.DocumentStatus `json:"status" binding:"required" example:"paid"`
}

// --- Response Types ---

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status   string `json:"status" example:"ok"`
	Error    string `json:"error,omitempty" example:"database not reachable"`
	Realtime string `json:"realtime,omitempty" example:"live"`
}

// Response wraps a successful response.
type Response struct {
	Success bool        `json:"success" example:"true"`
	Data    interface{} `json:"data,omitempty"`
	Meta    *PagMeta    `json:"meta,omitempty"`
}

// SessionResponse wraps a builder session response with its notifications.
type SessionResponse struct {
	Success bool        `json:"success" example:"true"`
	Data    interface{} `json:"data,omitempty"`
	Notices []struct {
		Level   string `json:"level" example:"success"`
		Message string `json:"message" example:"Estimate EST-000042 saved"`
	} `json:"notices,omitempty"`
}

// ErrorResponseBody wraps an error response.
type ErrorResponseBody struct {
	Success bool      `json:"success" example:"false"`
	Error   *APIError `json:"error"`
}
