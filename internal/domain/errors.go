package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound           = errors.New("resource not found")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrValidation         = errors.New("validation failed")
	ErrInvalidCredentials = errors.New("invalid credentials")

	ErrDocumentNotFound      = errors.New("document not found")
	ErrClientNotFound        = errors.New("client not found")
	ErrProductNotFound       = errors.New("product not found")
	ErrConversationNotFound  = errors.New("conversation not found")
	ErrNoLineItems           = errors.New("document has no line items")
	ErrConflict              = errors.New("document was modified by another editor")
	ErrDocumentLocked        = errors.New("document is in a terminal status")
	ErrInvalidTransition     = errors.New("invalid status transition")
	ErrLineItemsNotPersisted = errors.New("document saved but line items failed to persist")
	ErrNotAnEstimate         = errors.New("document is not an estimate")

	ErrSessionNotFound    = errors.New("builder session not found")
	ErrSessionClosed      = errors.New("builder session is closed")
	ErrStepNotCompletable = errors.New("step cannot be completed by advancing")
	ErrNoPreviousStep     = errors.New("no previous step")
	ErrWrongStep          = errors.New("operation not allowed on the current step")
	ErrDocumentNotSaved   = errors.New("document has not been saved")

	ErrDeliveryFailed      = errors.New("delivery failed")
	ErrDeliveryInProgress  = errors.New("delivery already in progress")
	ErrChannelUnavailable  = errors.New("delivery channel not configured")
	ErrPortalAccessRevoked = errors.New("portal access is disabled")
)

// ValidationError describes a rejected input field. It unwraps to ErrValidation.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// NewValidationError creates a ValidationError for field.
func NewValidationError(field, msg string) error {
	return &ValidationError{Field: field, Message: msg}
}

// DeliveryError carries the provider's error text for a failed send.
type DeliveryError struct {
	Provider string
	Message  string
	Err      error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("%s: %s", e.Provider, e.Message)
}

func (e *DeliveryError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrDeliveryFailed
}

// Is lets errors.Is(err, ErrDeliveryFailed) match every DeliveryError.
func (e *DeliveryError) Is(target error) bool {
	return target == ErrDeliveryFailed
}
