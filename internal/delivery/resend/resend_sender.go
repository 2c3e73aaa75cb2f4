package resend

import (
	"context"
	"fmt"
	"html"
	"strings"

	"github.com/resend/resend-go/v2"

	"fieldworks/internal/domain"
	"fieldworks/internal/port"
)

// EmailAPI is the part of the Resend client the sender uses.
type EmailAPI interface {
	Send(params *resend.SendEmailRequest) (*resend.SendEmailResponse, error)
}

type resendSender struct {
	emails    EmailAPI
	fromEmail string
	fromName  string
}

// NewResendSender creates a Resend-backed email ChannelSender.
func NewResendSender(apiKey, fromEmail, fromName string) port.ChannelSender {
	client := resend.NewClient(apiKey)
	return New(client.Emails, fromEmail, fromName)
}

// New creates an email ChannelSender over an existing Resend emails service.
func New(emails EmailAPI, fromEmail, fromName string) port.ChannelSender {
	return &resendSender{emails: emails, fromEmail: fromEmail, fromName: fromName}
}

func (s *resendSender) Channel() domain.DeliveryChannel { return domain.ChannelEmail }

func (s *resendSender) Name() string { return "resend" }

func (s *resendSender) Send(ctx context.Context, msg port.OutboundMessage) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	params := &resend.SendEmailRequest{
		From:    fmt.Sprintf("%s <%s>", s.fromName, s.fromEmail),
		To:      []string{msg.Recipient},
		Subject: msg.Subject,
		Html:    toHTML(msg.Body),
		Text:    msg.Body,
		Headers: map[string]string{
			"X-Entity-Ref-ID": msg.IdempotencyKey,
		},
		Tags: []resend.Tag{
			{Name: "category", Value: "document"},
		},
	}

	sent, err := s.emails.Send(params)
	if err != nil {
		return "", &domain.DeliveryError{Provider: "resend", Message: err.Error(), Err: err}
	}
	return sent.Id, nil
}

func toHTML(body string) string {
	var sb strings.Builder
	for _, p := range strings.Split(body, "\n\n") {
		sb.WriteString("<p>")
		sb.WriteString(strings.ReplaceAll(html.EscapeString(p), "\n", "<br>"))
		sb.WriteString("</p>")
	}
	return sb.String()
}
