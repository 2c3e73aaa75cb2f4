// Package delivery routes outbound messages to channel senders with at-most-once
// semantics per idempotency key.
package delivery

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"fieldworks/internal/domain"
	"fieldworks/internal/port"
)

// RetryConfig bounds the retries of one delivery attempt.
type RetryConfig struct {
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	// MaxElapsed caps the total time spent retrying. Zero means no cap.
	MaxElapsed time.Duration
	// StaleAfter is how long a pending intent may go without an update before
	// it is taken over as failed. Defaults to MaxElapsed, or one minute.
	StaleAfter time.Duration
}

type dispatcher struct {
	repo    port.DeliveryRepository
	senders map[domain.DeliveryChannel]port.ChannelSender
	retry   RetryConfig
	logger  *zap.Logger
}

// NewDispatcher creates a DeliveryGateway that records every intent in repo
// before handing it to the sender registered for its channel.
func NewDispatcher(repo port.DeliveryRepository, senders []port.ChannelSender, retry RetryConfig, logger *zap.Logger) port.DeliveryGateway {
	byChannel := make(map[domain.DeliveryChannel]port.ChannelSender, len(senders))
	for _, s := range senders {
		byChannel[s.Channel()] = s
	}
	if retry.InitialInterval <= 0 {
		retry.InitialInterval = 500 * time.Millisecond
	}
	if retry.MaxInterval <= 0 {
		retry.MaxInterval = 5 * time.Second
	}
	if retry.StaleAfter <= 0 {
		retry.StaleAfter = retry.MaxElapsed
	}
	if retry.StaleAfter <= 0 {
		retry.StaleAfter = time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &dispatcher{repo: repo, senders: byChannel, retry: retry, logger: logger}
}

func (d *dispatcher) Deliver(ctx context.Context, req port.DeliveryRequest) (*port.DeliveryResult, error) {
	if req.IdempotencyKey == "" {
		return nil, domain.NewValidationError("idempotency_key", "idempotency key is required")
	}
	sender, ok := d.senders[req.Channel]
	if !ok {
		return nil, domain.ErrChannelUnavailable
	}

	record := &domain.Delivery{
		ID:             uuid.New(),
		TenantID:       req.TenantID,
		IdempotencyKey: req.IdempotencyKey,
		DocumentID:     req.DocumentID,
		MessageID:      req.MessageID,
		Channel:        req.Channel,
		Recipient:      req.Recipient,
		Status:         domain.DeliveryPending,
	}
	existing, created, err := d.repo.Claim(ctx, record)
	if err != nil {
		return nil, fmt.Errorf("delivery.Deliver: claiming intent: %w", err)
	}
	if !created {
		switch existing.Status {
		case domain.DeliverySent:
			d.logger.Info("delivery.Deliver: duplicate intent suppressed",
				zap.String("idempotency_key", req.IdempotencyKey),
				zap.String("delivery_id", existing.ID.String()))
			return &port.DeliveryResult{DeliveryID: existing.ID, ProviderRef: existing.ProviderRef, Duplicate: true}, nil
		case domain.DeliveryFailed:
			record = existing
			record.Recipient = req.Recipient
		default:
			// A pending row that stopped changing belongs to an attempt that never
			// recorded its outcome.
			if time.Since(existing.UpdatedAt) < d.retry.StaleAfter {
				return nil, &domain.DeliveryError{
					Provider: sender.Name(),
					Message:  "A previous attempt for this message is still in progress",
					Err:      domain.ErrDeliveryInProgress,
				}
			}
			d.logger.Warn("delivery.Deliver: taking over stale pending intent",
				zap.String("idempotency_key", req.IdempotencyKey),
				zap.String("delivery_id", existing.ID.String()),
				zap.Time("updated_at", existing.UpdatedAt))
			record = existing
			record.Recipient = req.Recipient
		}
	}

	msg := port.OutboundMessage{
		Recipient:      req.Recipient,
		Subject:        req.Subject,
		Body:           req.Message,
		IdempotencyKey: req.IdempotencyKey,
	}
	ref, attempts, sendErr := d.send(ctx, sender, msg)
	record.Attempts += attempts

	if sendErr != nil {
		record.Status = domain.DeliveryFailed
		record.Error = sendErr.Error()
		d.persist(record)
		d.logger.Error("delivery.Deliver: send failed",
			zap.String("provider", sender.Name()),
			zap.String("idempotency_key", req.IdempotencyKey),
			zap.Int("attempts", record.Attempts),
			zap.Error(sendErr))
		var de *domain.DeliveryError
		if errors.As(sendErr, &de) {
			return nil, sendErr
		}
		return nil, &domain.DeliveryError{Provider: sender.Name(), Message: sendErr.Error(), Err: sendErr}
	}

	record.Status = domain.DeliverySent
	record.ProviderRef = ref
	record.Error = ""
	d.persist(record)
	d.logger.Info("delivery.Deliver: sent",
		zap.String("provider", sender.Name()),
		zap.String("delivery_id", record.ID.String()),
		zap.String("provider_ref", ref))
	return &port.DeliveryResult{DeliveryID: record.ID, ProviderRef: ref}, nil
}

// send calls the sender with exponential backoff. Validation failures are not retried.
func (d *dispatcher) send(ctx context.Context, sender port.ChannelSender, msg port.OutboundMessage) (string, int, error) {
	var ref string
	attempts := 0
	operation := func() error {
		attempts++
		var err error
		ref, err = sender.Send(ctx, msg)
		if errors.Is(err, domain.ErrValidation) {
			return backoff.Permanent(err)
		}
		return err
	}

	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = d.retry.InitialInterval
	expBackoff.MaxInterval = d.retry.MaxInterval
	expBackoff.MaxElapsedTime = d.retry.MaxElapsed

	err := backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(expBackoff, uint64(d.retry.MaxRetries)), ctx))
	return ref, attempts, err
}

// persist records the outcome. The send already happened, so a failure here
// is logged and never reported to the caller.
func (d *dispatcher) persist(record *domain.Delivery) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := d.repo.Update(ctx, record); err != nil {
		d.logger.Error("delivery.persist: updating delivery record",
			zap.String("delivery_id", record.ID.String()), zap.Error(err))
	}
}
