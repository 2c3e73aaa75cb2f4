// Package realtime turns Postgres notifications into refresh triggers.
package realtime

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"fieldworks/internal/port"
)

type pgListener struct {
	dsn     string
	channel string
	logger  *zap.Logger
}

// NewPGListener creates a ChangeFeed that LISTENs on channel over a dedicated
// connection. Notification payloads are tenant ids; anything else refreshes
// every tenant.
func NewPGListener(dsn, channel string, logger *zap.Logger) port.ChangeFeed {
	return &pgListener{dsn: dsn, channel: channel, logger: logger}
}

func (l *pgListener) Listen(ctx context.Context, events chan<- port.ChangeEvent) error {
	conn, err := pgx.Connect(ctx, l.dsn)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("realtime.Listen: connecting: %w", err)
	}
	defer conn.Close(context.Background())

	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{l.channel}.Sanitize()); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("realtime.Listen: subscribing to %s: %w", l.channel, err)
	}
	l.logger.Info("realtime.Listen: subscribed", zap.String("channel", l.channel))

	if !emit(ctx, events, port.ChangeEvent{Kind: port.ChangeConnected}) {
		return nil
	}

	for {
		n, err := conn.WaitForNotification(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("realtime.Listen: waiting for notification: %w", err)
		}
		if !emit(ctx, events, ParsePayload(n.Payload)) {
			return nil
		}
	}
}

// ParsePayload maps a notification payload to a change event. A payload that
// is not a tenant id yields uuid.Nil, meaning every tenant.
func ParsePayload(payload string) port.ChangeEvent {
	tenantID, err := uuid.Parse(payload)
	if err != nil {
		tenantID = uuid.Nil
	}
	return port.ChangeEvent{Kind: port.ChangeRows, TenantID: tenantID}
}

func emit(ctx context.Context, events chan<- port.ChangeEvent, ev port.ChangeEvent) bool {
	select {
	case events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}
