package domain

// DocumentKind distinguishes estimates from invoices. It is also the
// parent_type of a line item.
type DocumentKind string

const (
	KindEstimate DocumentKind = "estimate"
	KindInvoice  DocumentKind = "invoice"
)

// Valid reports whether k is a known document kind.
func (k DocumentKind) Valid() bool {
	return k == KindEstimate || k == KindInvoice
}

// NumberPrefix is the prefix of the human-readable document number.
func (k DocumentKind) NumberPrefix() string {
	if k == KindInvoice {
		return "INV"
	}
	return "EST"
}

// DocumentStatus is the lifecycle state of an estimate or invoice.
type DocumentStatus string

const (
	StatusDraft     DocumentStatus = "draft"
	StatusSent      DocumentStatus = "sent"
	StatusApproved  DocumentStatus = "approved"
	StatusRejected  DocumentStatus = "rejected"
	StatusConverted DocumentStatus = "converted"
	StatusPaid      DocumentStatus = "paid"
	StatusCancelled DocumentStatus = "cancelled"
)

// Step is a state of the document builder wizard.
type Step string

const (
	StepItems  Step = "items"
	StepUpsell Step = "upsell"
	StepSend   Step = "send"
)

// DeliveryChannel is the medium an outbound message is sent over.
type DeliveryChannel string

const (
	ChannelEmail DeliveryChannel = "email"
	ChannelSMS   DeliveryChannel = "sms"
)

// Valid reports whether c is a supported channel.
func (c DeliveryChannel) Valid() bool {
	return c == ChannelEmail || c == ChannelSMS
}

// DeliveryStatus tracks an outbound send.
type DeliveryStatus string

const (
	DeliveryPending  DeliveryStatus = "pending"
	DeliverySent     DeliveryStatus = "sent"
	DeliveryFailed   DeliveryStatus = "failed"
	DeliveryReceived DeliveryStatus = "received"
)

// MessageDirection tells inbound client messages from outbound staff messages.
type MessageDirection string

const (
	DirectionInbound  MessageDirection = "inbound"
	DirectionOutbound MessageDirection = "outbound"
)

// NoticeLevel is the severity of a user-visible notification.
type NoticeLevel string

const (
	NoticeSuccess NoticeLevel = "success"
	NoticeWarning NoticeLevel = "warning"
	NoticeError   NoticeLevel = "error"
)

// SessionMode selects how a builder session is initialized.
type SessionMode string

const (
	ModeCreate  SessionMode = "create"
	ModeEdit    SessionMode = "edit"
	ModeConvert SessionMode = "convert"
)
