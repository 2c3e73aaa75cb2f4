package port

import (
	"context"

	"github.com/google/uuid"

	"fieldworks/internal/domain"
)

// DeliveryRequest is one logical send intent.
type DeliveryRequest struct {
	TenantID       uuid.UUID
	DocumentID     *uuid.UUID
	MessageID      *uuid.UUID
	Channel        domain.DeliveryChannel
	Recipient      string
	Subject        string
	Message        string
	IdempotencyKey string
}

// DeliveryResult reports the outcome of a send intent.
type DeliveryResult struct {
	DeliveryID  uuid.UUID
	ProviderRef string
	// Duplicate is true when the intent had already been delivered and no new
	// outbound message was produced.
	Duplicate bool
}

// DeliveryGateway sends messages to clients with at-most-once semantics per idempotency key.
type DeliveryGateway interface {
	Deliver(ctx context.Context, req DeliveryRequest) (*DeliveryResult, error)
}

// OutboundMessage is what a channel sender transmits.
type OutboundMessage struct {
	Recipient      string
	Subject        string
	Body           string
	IdempotencyKey string
}

// ChannelSender is a provider adapter for one delivery channel.
type ChannelSender interface {
	Channel() domain.DeliveryChannel
	Name() string
	Send(ctx context.Context, msg OutboundMessage) (providerRef string, err error)
}
