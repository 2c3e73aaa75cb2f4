package sqs_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	fwsqs "fieldworks/internal/delivery/sqs"
	"fieldworks/internal/domain"
	"fieldworks/internal/port"
)

type fakeSQS struct {
	input *sqs.SendMessageInput
}

func (f *fakeSQS) SendMessage(_ context.Context, params *sqs.SendMessageInput, _ ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	f.input = params
	return &sqs.SendMessageOutput{MessageId: aws.String("m-1")}, nil
}

func TestSend_EnqueuesJob(t *testing.T) {
	client := &fakeSQS{}
	sender := fwsqs.New(client, "https://sqs.us-east-1.amazonaws.com/123/sms")

	ref, err := sender.Send(context.Background(), port.OutboundMessage{Recipient: "+15551234567", Body: "Your estimate is ready", IdempotencyKey: "k1"})

	require.NoError(t, err)
	assert.Equal(t, "m-1", ref)
	assert.Equal(t, domain.ChannelSMS, sender.Channel())
	assert.Nil(t, client.input.MessageDeduplicationId)

	var job map[string]string
	require.NoError(t, json.Unmarshal([]byte(aws.ToString(client.input.MessageBody)), &job))
	assert.Equal(t, "+15551234567", job["to"])
	assert.Equal(t, "k1", job["idempotency_key"])
	assert.Equal(t, "k1", aws.ToString(client.input.MessageAttributes["IdempotencyKey"].StringValue))
}

func TestSend_FIFOQueueDeduplicatesOnKey(t *testing.T) {
	client := &fakeSQS{}
	sender := fwsqs.New(client, "https://sqs.us-east-1.amazonaws.com/123/sms.fifo")

	_, err := sender.Send(context.Background(), port.OutboundMessage{Recipient: "+15551234567", IdempotencyKey: "k2"})

	require.NoError(t, err)
	assert.Equal(t, "k2", aws.ToString(client.input.MessageDeduplicationId))
	assert.Equal(t, "+15551234567", aws.ToString(client.input.MessageGroupId))
}
