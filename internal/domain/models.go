package domain

import (
	"time"

	"github.com/google/uuid"
)

// Client is a customer of the tenant that estimates and invoices are addressed to.
type Client struct {
	ID        uuid.UUID `db:"id" json:"id"`
	TenantID  uuid.UUID `db:"tenant_id" json:"tenant_id"`
	Name      string    `db:"name" json:"name"`
	Email     string    `db:"email" json:"email"`
	Phone     string    `db:"phone" json:"phone"`
	Address   string    `db:"address" json:"address"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// PortalAccess holds the hashed access code behind a client's portal link.
type PortalAccess struct {
	ClientID       uuid.UUID  `db:"client_id" json:"client_id"`
	TenantID       uuid.UUID  `db:"tenant_id" json:"tenant_id"`
	AccessCodeHash string     `db:"access_code_hash" json:"-"`
	IsActive       bool       `db:"is_active" json:"is_active"`
	LastUsedAt     *time.Time `db:"last_used_at" json:"last_used_at"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
}

// Product is a catalog entry that can be added to a document as a line item.
type Product struct {
	ID          uuid.UUID `db:"id" json:"id"`
	TenantID    uuid.UUID `db:"tenant_id" json:"tenant_id"`
	Name        string    `db:"name" json:"name"`
	Description string    `db:"description" json:"description"`
	Price       float64   `db:"price" json:"price"`
	OurPrice    float64   `db:"our_price" json:"our_price"`
	Taxable     bool      `db:"taxable" json:"taxable"`
	IsUpsell    bool      `db:"is_upsell" json:"is_upsell"`
	IsActive    bool      `db:"is_active" json:"is_active"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// LineItem is one billable row on an estimate or invoice.
// Total is derived from Quantity, UnitPrice and Discount and is never trusted as input.
type LineItem struct {
	ID          uuid.UUID    `db:"id" json:"id"`
	TenantID    uuid.UUID    `db:"tenant_id" json:"-"`
	ParentType  DocumentKind `db:"parent_type" json:"-"`
	ParentID    uuid.UUID    `db:"parent_id" json:"-"`
	ProductID   *uuid.UUID   `db:"product_id" json:"product_id,omitempty"`
	Description string       `db:"description" json:"description"`
	Quantity    float64      `db:"quantity" json:"quantity"`
	UnitPrice   float64      `db:"unit_price" json:"unit_price"`
	OurPrice    float64      `db:"our_price" json:"our_price"`
	Discount    float64      `db:"discount" json:"discount"`
	Taxable     bool         `db:"taxable" json:"taxable"`
	Total       float64      `db:"total" json:"total"`
	Position    int          `db:"position" json:"position"`
	CreatedAt   time.Time    `db:"created_at" json:"-"`
}

// Document is an estimate or an invoice. Subtotal, TaxAmount and Total are a
// snapshot of the pricing calculator output taken at save time.
type Document struct {
	ID                 uuid.UUID      `db:"id" json:"id"`
	TenantID           uuid.UUID      `db:"tenant_id" json:"tenant_id"`
	Kind               DocumentKind   `db:"kind" json:"kind"`
	Number             string         `db:"number" json:"number"`
	ClientID           *uuid.UUID     `db:"client_id" json:"client_id"`
	Status             DocumentStatus `db:"status" json:"status"`
	TaxRate            float64        `db:"tax_rate" json:"tax_rate"`
	Notes              string         `db:"notes" json:"notes"`
	Subtotal           float64        `db:"subtotal" json:"subtotal"`
	TaxAmount          float64        `db:"tax_amount" json:"tax_amount"`
	Total              float64        `db:"total" json:"total"`
	SourceEstimateID   *uuid.UUID     `db:"source_estimate_id" json:"source_estimate_id,omitempty"`
	ConvertedInvoiceID *uuid.UUID     `db:"converted_invoice_id" json:"converted_invoice_id,omitempty"`
	Version            int            `db:"version" json:"version"`
	SentAt             *time.Time     `db:"sent_at" json:"sent_at"`
	CreatedBy          uuid.UUID      `db:"created_by" json:"created_by"`
	CreatedAt          time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time      `db:"updated_at" json:"updated_at"`

	Items []LineItem `db:"-" json:"items"`
}

// Conversation is a message thread with one client over one channel.
type Conversation struct {
	ID            uuid.UUID       `db:"id" json:"id"`
	TenantID      uuid.UUID       `db:"tenant_id" json:"tenant_id"`
	ClientID      uuid.UUID       `db:"client_id" json:"client_id"`
	ClientName    string          `db:"client_name" json:"client_name"`
	Channel       DeliveryChannel `db:"channel" json:"channel"`
	Recipient     string          `db:"recipient" json:"recipient"`
	LastMessage   string          `db:"last_message" json:"last_message"`
	LastMessageAt *time.Time      `db:"last_message_at" json:"last_message_at"`
	UnreadCount   int             `db:"unread_count" json:"unread_count"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time       `db:"updated_at" json:"updated_at"`
}

// Message is a single inbound or outbound entry in a conversation.
type Message struct {
	ID             uuid.UUID        `db:"id" json:"id"`
	TenantID       uuid.UUID        `db:"tenant_id" json:"tenant_id"`
	ConversationID uuid.UUID        `db:"conversation_id" json:"conversation_id"`
	Direction      MessageDirection `db:"direction" json:"direction"`
	Body           string           `db:"body" json:"body"`
	Status         DeliveryStatus   `db:"status" json:"status"`
	ReadAt         *time.Time       `db:"read_at" json:"read_at"`
	SentBy         *uuid.UUID       `db:"sent_by" json:"sent_by"`
	CreatedAt      time.Time        `db:"created_at" json:"created_at"`
}

// Delivery records one outbound send intent, keyed by its idempotency key.
type Delivery struct {
	ID             uuid.UUID       `db:"id" json:"id"`
	TenantID       uuid.UUID       `db:"tenant_id" json:"tenant_id"`
	IdempotencyKey string          `db:"idempotency_key" json:"idempotency_key"`
	DocumentID     *uuid.UUID      `db:"document_id" json:"document_id"`
	MessageID      *uuid.UUID      `db:"message_id" json:"message_id"`
	Channel        DeliveryChannel `db:"channel" json:"channel"`
	Recipient      string          `db:"recipient" json:"recipient"`
	Status         DeliveryStatus  `db:"status" json:"status"`
	ProviderRef    string          `db:"provider_ref" json:"provider_ref"`
	Error          string          `db:"error" json:"error"`
	Attempts       int             `db:"attempts" json:"attempts"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time       `db:"updated_at" json:"updated_at"`
}
