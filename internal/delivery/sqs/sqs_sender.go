// Package sqs hands SMS messages to a queue consumed by the SMS delivery function.
package sqs

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"fieldworks/internal/domain"
	"fieldworks/internal/port"
)

// API is the subset of the SQS client the sender uses.
type API interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// smsJob is the queue payload.
type smsJob struct {
	To             string `json:"to"`
	Body           string `json:"body"`
	IdempotencyKey string `json:"idempotency_key"`
}

type sqsSender struct {
	client   API
	queueURL string
	fifo     bool
}

// NewSQSSender creates an SMS ChannelSender that enqueues onto queueURL.
func NewSQSSender(region, queueURL string) (port.ChannelSender, error) {
	cfg, err := awsconfig.LoadDefaultConfig(context.Background(), awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("loading AWS config for SQS: %w", err)
	}
	return New(sqs.NewFromConfig(cfg), queueURL), nil
}

// New creates an SMS ChannelSender over an existing SQS client. FIFO queues
// additionally deduplicate on the idempotency key.
func New(client API, queueURL string) port.ChannelSender {
	return &sqsSender{client: client, queueURL: queueURL, fifo: strings.HasSuffix(queueURL, ".fifo")}
}

func (s *sqsSender) Channel() domain.DeliveryChannel { return domain.ChannelSMS }

func (s *sqsSender) Name() string { return "sqs" }

func (s *sqsSender) Send(ctx context.Context, msg port.OutboundMessage) (string, error) {
	body, err := json.Marshal(smsJob{To: msg.Recipient, Body: msg.Body, IdempotencyKey: msg.IdempotencyKey})
	if err != nil {
		return "", fmt.Errorf("marshaling sms job: %w", err)
	}

	input := &sqs.SendMessageInput{
		QueueUrl:    &s.queueURL,
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"Channel": {
				StringValue: aws.String(string(domain.ChannelSMS)),
				DataType:    aws.String("String"),
			},
			"IdempotencyKey": {
				StringValue: aws.String(msg.IdempotencyKey),
				DataType:    aws.String("String"),
			},
		},
	}
	if s.fifo {
		input.MessageDeduplicationId = aws.String(msg.IdempotencyKey)
		input.MessageGroupId = aws.String(msg.Recipient)
	}

	out, err := s.client.SendMessage(ctx, input)
	if err != nil {
		return "", fmt.Errorf("SQS SendMessage: %w", err)
	}
	return aws.ToString(out.MessageId), nil
}
