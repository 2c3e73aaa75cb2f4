package port

import (
	"context"

	"github.com/google/uuid"
)

// ChangeKind classifies a ChangeEvent.
type ChangeKind int

const (
	// ChangeConnected is emitted once the feed is subscribed and delivering.
	ChangeConnected ChangeKind = iota
	// ChangeRows is emitted when rows of a tenant changed.
	ChangeRows
)

// ChangeEvent is a refresh trigger. It never carries row contents.
type ChangeEvent struct {
	Kind     ChangeKind
	TenantID uuid.UUID
}

// ChangeFeed is a push subscription to row changes.
type ChangeFeed interface {
	// Listen blocks, sending events until ctx is done or the subscription
	// drops. It returns nil only when ctx is done.
	Listen(ctx context.Context, events chan<- ChangeEvent) error
}
