package workflow

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"fieldworks/internal/builder"
	"fieldworks/internal/domain"
	"fieldworks/internal/port"
	"fieldworks/internal/pricing"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

const minPhoneDigits = 10

// Linker publishes a customer-facing copy of a saved document and returns a
// link to it that can be appended to an outbound message.
type Linker interface {
	Link(ctx context.Context, doc *domain.Document) (string, error)
}

// SendInput is the recipient form of the send step.
type SendInput struct {
	Channel   domain.DeliveryChannel `json:"channel"`
	Recipient string                 `json:"recipient"`
	Message   string                 `json:"message"`
}

// SendState is a detached copy of the send form.
type SendState struct {
	SendInput
	Error          string `json:"error,omitempty"`
	IdempotencyKey string `json:"idempotency_key,omitempty"`
}

// SendStep collects the recipient of a document and hands it to the delivery
// gateway. One idempotency key covers every retry of the same intent; it is
// replaced only when the channel, recipient or message change.
type SendStep struct {
	gateway  port.DeliveryGateway
	docs     port.DocumentRepository
	linker   Linker
	notifier port.Notifier
	logger   *zap.Logger
	tenantID uuid.UUID

	input     SendInput
	errMsg    string
	intentKey string
}

// NewSendStep creates a SendStep. linker may be nil.
func NewSendStep(
	gateway port.DeliveryGateway,
	docs port.DocumentRepository,
	linker Linker,
	notifier port.Notifier,
	logger *zap.Logger,
	tenantID uuid.UUID,
) *SendStep {
	if notifier == nil {
		notifier = discardNotifier{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SendStep{
		gateway:  gateway,
		docs:     docs,
		linker:   linker,
		notifier: notifier,
		logger:   logger,
		tenantID: tenantID,
		input:    SendInput{Channel: domain.ChannelEmail},
	}
}

// State returns the current form contents.
func (s *SendStep) State() SendState {
	return SendState{SendInput: s.input, Error: s.errMsg, IdempotencyKey: s.intentKey}
}

// SetInput replaces the form contents. Any change starts a new send intent.
func (s *SendStep) SetInput(in SendInput) {
	if in.Channel == "" {
		in.Channel = s.input.Channel
	}
	if in != s.input {
		s.intentKey = ""
	}
	s.input = in
	s.errMsg = ""
}

// Reset clears the form and forgets the current intent.
func (s *SendStep) Reset() {
	s.input = SendInput{Channel: domain.ChannelEmail}
	s.errMsg = ""
	s.intentKey = ""
}

// Validate checks the recipient against the chosen channel. On failure the
// error message is kept on the step and the entered text is left untouched.
func (s *SendStep) Validate() error {
	err := validateRecipient(s.input.Channel, s.input.Recipient)
	if err != nil {
		var ve *domain.ValidationError
		if errors.As(err, &ve) {
			s.errMsg = ve.Message
		} else {
			s.errMsg = err.Error()
		}
		return err
	}
	s.errMsg = ""
	return nil
}

func validateRecipient(channel domain.DeliveryChannel, recipient string) error {
	recipient = strings.TrimSpace(recipient)
	switch channel {
	case domain.ChannelEmail:
		if !emailPattern.MatchString(recipient) {
			return domain.NewValidationError("recipient", "Enter a valid email address")
		}
	case domain.ChannelSMS:
		if countDigits(recipient) < minPhoneDigits {
			return domain.NewValidationError("recipient", "Enter a phone number with at least 10 digits")
		}
	default:
		return domain.NewValidationError("channel", "Choose email or sms")
	}
	return nil
}

func countDigits(s string) int {
	n := 0
	for _, r := range s {
		if r >= '0' && r <= '9' {
			n++
		}
	}
	return n
}

// Send re-saves the builder, delivers the document to the recipient and marks
// it sent. On failure the provider's message is kept on the step so the same
// intent can be retried.
func (s *SendStep) Send(ctx context.Context, b *builder.Builder) (*port.DeliveryResult, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}

	doc, err := b.Save(ctx)
	if err != nil && !errors.Is(err, domain.ErrLineItemsNotPersisted) {
		s.errMsg = "The document could not be saved before sending"
		return nil, err
	}
	if doc == nil {
		return nil, domain.ErrDocumentNotSaved
	}

	if s.intentKey == "" {
		s.intentKey = uuid.NewString()
	}

	docID := doc.ID
	req := port.DeliveryRequest{
		TenantID:       s.tenantID,
		DocumentID:     &docID,
		Channel:        s.input.Channel,
		Recipient:      strings.TrimSpace(s.input.Recipient),
		Subject:        fmt.Sprintf("%s %s", title(doc.Kind), doc.Number),
		Message:        s.compose(ctx, doc),
		IdempotencyKey: s.intentKey,
	}

	res, err := s.gateway.Deliver(ctx, req)
	if err != nil {
		s.errMsg = deliveryMessage(err)
		s.logger.Error("workflow.Send: delivery failed",
			zap.String("document_id", doc.ID.String()),
			zap.String("channel", string(req.Channel)),
			zap.Error(err))
		s.notifier.Notify(domain.NoticeError, s.errMsg)
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if domain.CanTransition(doc.Kind, doc.Status, domain.StatusSent) {
		now := time.Now().UTC()
		if err := s.docs.UpdateStatus(ctx, s.tenantID, doc.ID, domain.StatusSent, &now); err != nil {
			s.logger.Warn("workflow.Send: marking document sent",
				zap.String("document_id", doc.ID.String()), zap.Error(err))
			s.notifier.Notify(domain.NoticeWarning, fmt.Sprintf("%s %s was sent, but its status could not be updated", title(doc.Kind), doc.Number))
		}
	}

	s.errMsg = ""
	if res.Duplicate {
		s.notifier.Notify(domain.NoticeSuccess, fmt.Sprintf("%s %s was already sent to %s", title(doc.Kind), doc.Number, req.Recipient))
	} else {
		s.notifier.Notify(domain.NoticeSuccess, fmt.Sprintf("%s %s sent to %s", title(doc.Kind), doc.Number, req.Recipient))
	}
	return res, nil
}

// compose builds the outbound text: the user's message, a default line when
// it is empty, the document notes and, when available, a link to the document.
func (s *SendStep) compose(ctx context.Context, doc *domain.Document) string {
	var parts []string
	if msg := strings.TrimSpace(s.input.Message); msg != "" {
		parts = append(parts, msg)
	} else {
		parts = append(parts, fmt.Sprintf("Your %s %s is ready. Total: $%.2f", doc.Kind, doc.Number, pricing.Round2(doc.Total)))
	}
	if notes := strings.TrimSpace(doc.Notes); notes != "" {
		parts = append(parts, notes)
	}
	if s.linker != nil {
		link, err := s.linker.Link(ctx, doc)
		if err != nil {
			s.logger.Warn("workflow.Send: publishing document link",
				zap.String("document_id", doc.ID.String()), zap.Error(err))
		} else if link != "" {
			parts = append(parts, "View it here: "+link)
		}
	}
	return strings.Join(parts, "\n\n")
}

func deliveryMessage(err error) string {
	var de *domain.DeliveryError
	if errors.As(err, &de) && de.Message != "" {
		return de.Message
	}
	if errors.Is(err, domain.ErrChannelUnavailable) {
		return "This delivery channel is not available"
	}
	return "Sending failed, please try again"
}

func title(kind domain.DocumentKind) string {
	if kind == domain.KindInvoice {
		return "Invoice"
	}
	return "Estimate"
}

type discardNotifier struct{}

func (discardNotifier) Notify(domain.NoticeLevel, string) {}
