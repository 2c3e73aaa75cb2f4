package ses

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"github.com/aws/smithy-go"

	"fieldworks/internal/domain"
	"fieldworks/internal/port"
)

// API is the subset of the SES v2 client the sender uses.
type API interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

type sesSender struct {
	client      API
	fromAddress string
	fromName    string
}

// NewSESSender creates a new SES-backed email ChannelSender.
func NewSESSender(region, fromAddress, fromName string) (port.ChannelSender, error) {
	cfg, err := awsconfig.LoadDefaultConfig(context.Background(), awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("loading AWS config for SES: %w", err)
	}
	return New(sesv2.NewFromConfig(cfg), fromAddress, fromName), nil
}

// New creates an email ChannelSender over an existing SES client.
func New(client API, fromAddress, fromName string) port.ChannelSender {
	return &sesSender{client: client, fromAddress: fromAddress, fromName: fromName}
}

func (s *sesSender) Channel() domain.DeliveryChannel { return domain.ChannelEmail }

func (s *sesSender) Name() string { return "ses" }

func (s *sesSender) Send(ctx context.Context, msg port.OutboundMessage) (string, error) {
	from := fmt.Sprintf("%s <%s>", s.fromName, s.fromAddress)
	htmlBody := buildHTML(msg.Body)

	out, err := s.client.SendEmail(ctx, &sesv2.SendEmailInput{
		FromEmailAddress: &from,
		Destination: &types.Destination{
			ToAddresses: []string{msg.Recipient},
		},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(msg.Subject)},
				Body: &types.Body{
					Html: &types.Content{Data: &htmlBody},
					Text: &types.Content{Data: aws.String(msg.Body)},
				},
			},
		},
		EmailTags: []types.MessageTag{
			{Name: aws.String("idempotency_key"), Value: aws.String(msg.IdempotencyKey)},
		},
	})
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) {
			de := &domain.DeliveryError{Provider: "ses", Message: apiErr.ErrorMessage(), Err: err}
			if apiErr.ErrorCode() == "BadRequestException" {
				return "", fmt.Errorf("SES SendEmail: %w: %w", domain.ErrValidation, de)
			}
			return "", de
		}
		return "", fmt.Errorf("SES SendEmail: %w", err)
	}
	return aws.ToString(out.MessageId), nil
}

func buildHTML(body string) string {
	paragraphs := strings.Split(body, "\n\n")
	var sb strings.Builder
	for _, p := range paragraphs {
		sb.WriteString(`  <p>`)
		sb.WriteString(strings.ReplaceAll(html.EscapeString(p), "\n", "<br>"))
		sb.WriteString("</p>\n")
	}
	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"></head>
<body style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto; padding: 20px;">
%s</body>
</html>`, sb.String())
}
