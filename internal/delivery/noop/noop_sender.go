package noop

import (
	"context"

	"go.uber.org/zap"

	"fieldworks/internal/domain"
	"fieldworks/internal/port"
)

type noopSender struct {
	channel domain.DeliveryChannel
	logger  *zap.Logger
}

// NewNoopSender creates a ChannelSender that only logs the outbound message.
func NewNoopSender(channel domain.DeliveryChannel, logger *zap.Logger) port.ChannelSender {
	return &noopSender{channel: channel, logger: logger}
}

func (s *noopSender) Channel() domain.DeliveryChannel { return s.channel }

func (s *noopSender) Name() string { return "noop" }

func (s *noopSender) Send(_ context.Context, msg port.OutboundMessage) (string, error) {
	s.logger.Info("[NOOP DELIVERY]",
		zap.String("channel", string(s.channel)),
		zap.String("recipient", msg.Recipient),
		zap.String("subject", msg.Subject),
		zap.String("idempotency_key", msg.IdempotencyKey),
		zap.String("body", msg.Body))
	return "noop-" + msg.IdempotencyKey, nil
}
