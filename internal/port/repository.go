package port

import (
	"context"

	"github.com/google/uuid"

	"fieldworks/internal/domain"
)

// ClientRepository defines the contract for client lookups.
type ClientRepository interface {
	GetByID(ctx context.Context, tenantID, clientID uuid.UUID) (*domain.Client, error)
}

// PortalAccessRepository stores hashed portal access codes per client.
type PortalAccessRepository interface {
	GetByClient(ctx context.Context, clientID uuid.UUID) (*domain.PortalAccess, error)
	Touch(ctx context.Context, clientID uuid.UUID) error
}

// ProductRepository defines the contract for the product catalog.
type ProductRepository interface {
	GetByID(ctx context.Context, tenantID, productID uuid.UUID) (*domain.Product, error)
	List(ctx context.Context, tenantID uuid.UUID, upsellOnly bool) ([]domain.Product, error)
}

// ConversationRepository defines the contract for conversation persistence.
type ConversationRepository interface {
	GetByID(ctx context.Context, tenantID, conversationID uuid.UUID) (*domain.Conversation, error)
	ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]domain.Conversation, error)
	MarkRead(ctx context.Context, tenantID, conversationID uuid.UUID) error
}

// MessageRepository defines the contract for message persistence.
type MessageRepository interface {
	// Create is idempotent on msg.ID: an existing row is loaded into msg.
	Create(ctx context.Context, msg *domain.Message) error
	UpdateStatus(ctx context.Context, tenantID, messageID uuid.UUID, status domain.DeliveryStatus) error
	ListByConversation(ctx context.Context, tenantID, conversationID uuid.UUID, offset, limit int) ([]domain.Message, int, error)
}

// DeliveryRepository records outbound send intents keyed by idempotency key.
type DeliveryRepository interface {
	// Claim inserts d unless a delivery with the same tenant and idempotency key
	// exists, in which case the existing row is returned and created is false.
	Claim(ctx context.Context, d *domain.Delivery) (existing *domain.Delivery, created bool, err error)
	Update(ctx context.Context, d *domain.Delivery) error
}
