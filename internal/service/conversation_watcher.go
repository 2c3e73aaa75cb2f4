package service

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"fieldworks/internal/domain"
	"fieldworks/internal/port"
)

// WatcherConfig holds settings for the conversation watcher.
type WatcherConfig struct {
	PollInterval   time.Duration
	ReconnectDelay time.Duration
}

// ConversationWatcher pushes fresh conversation lists to subscribers. Change
// notifications drive refreshes; the poll ticker only refreshes while the
// change feed is disconnected.
type ConversationWatcher struct {
	convos port.ConversationRepository
	feed   port.ChangeFeed
	cfg    WatcherConfig
	logger *zap.Logger

	connected atomic.Bool
	polls     atomic.Int64

	mu     sync.Mutex
	subs   map[uuid.UUID]map[int]chan []domain.Conversation
	nextID int
	wg     sync.WaitGroup
}

// NewConversationWatcher creates a new ConversationWatcher.
func NewConversationWatcher(convos port.ConversationRepository, feed port.ChangeFeed, cfg WatcherConfig, logger *zap.Logger) *ConversationWatcher {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 15 * time.Second
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = 5 * time.Second
	}
	return &ConversationWatcher{
		convos: convos,
		feed:   feed,
		cfg:    cfg,
		logger: logger,
		subs:   make(map[uuid.UUID]map[int]chan []domain.Conversation),
	}
}

// Subscribe registers for conversation lists of tenantID. The channel holds
// at most the latest list; cancel must be called to release it.
func (w *ConversationWatcher) Subscribe(tenantID uuid.UUID) (updates <-chan []domain.Conversation, cancel func()) {
	ch := make(chan []domain.Conversation, 1)

	w.mu.Lock()
	id := w.nextID
	w.nextID++
	if w.subs[tenantID] == nil {
		w.subs[tenantID] = make(map[int]chan []domain.Conversation)
	}
	w.subs[tenantID][id] = ch
	w.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			w.mu.Lock()
			delete(w.subs[tenantID], id)
			if len(w.subs[tenantID]) == 0 {
				delete(w.subs, tenantID)
			}
			w.mu.Unlock()
		})
	}
}

// Degraded reports whether the watcher is falling back to polling.
func (w *ConversationWatcher) Degraded() bool { return !w.connected.Load() }

// Polls returns how many fallback poll rounds have run.
func (w *ConversationWatcher) Polls() int64 { return w.polls.Load() }

// Start runs until ctx is canceled, then waits for the feed goroutine to exit.
func (w *ConversationWatcher) Start(ctx context.Context) {
	events := make(chan port.ChangeEvent, 16)

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.listen(ctx, events)
	}()

	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	w.logger.Info("conversationWatcher: started", zap.Duration("poll_interval", w.cfg.PollInterval))

	for {
		select {
		case <-ctx.Done():
			w.wg.Wait()
			w.logger.Info("conversationWatcher: shutdown complete")
			return
		case ev := <-events:
			switch ev.Kind {
			case port.ChangeConnected:
				w.connected.Store(true)
				// Catch up on anything missed while disconnected.
				w.refreshAll(ctx)
			case port.ChangeRows:
				if ev.TenantID == uuid.Nil {
					w.refreshAll(ctx)
				} else {
					w.refresh(ctx, ev.TenantID)
				}
			}
		case <-ticker.C:
			if w.connected.Load() {
				continue
			}
			w.polls.Add(1)
			w.refreshAll(ctx)
		}
	}
}

// listen keeps the change feed subscribed, reconnecting after failures.
func (w *ConversationWatcher) listen(ctx context.Context, events chan<- port.ChangeEvent) {
	for {
		err := w.feed.Listen(ctx, events)
		w.connected.Store(false)
		if ctx.Err() != nil {
			return
		}
		w.logger.Warn("conversationWatcher: change feed dropped, polling until reconnected",
			zap.Error(err), zap.Duration("retry_in", w.cfg.ReconnectDelay))

		select {
		case <-ctx.Done():
			return
		case <-time.After(w.cfg.ReconnectDelay):
		}
	}
}

func (w *ConversationWatcher) refreshAll(ctx context.Context) {
	w.mu.Lock()
	tenants := make([]uuid.UUID, 0, len(w.subs))
	for tenantID := range w.subs {
		tenants = append(tenants, tenantID)
	}
	w.mu.Unlock()

	for _, tenantID := range tenants {
		w.refresh(ctx, tenantID)
	}
}

func (w *ConversationWatcher) refresh(ctx context.Context, tenantID uuid.UUID) {
	w.mu.Lock()
	n := len(w.subs[tenantID])
	w.mu.Unlock()
	if n == 0 {
		return
	}

	list, err := w.convos.ListByTenant(ctx, tenantID)
	if err != nil {
		if ctx.Err() == nil {
			w.logger.Error("conversationWatcher: refreshing conversations",
				zap.String("tenant_id", tenantID.String()), zap.Error(err))
		}
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	for _, ch := range w.subs[tenantID] {
		// Replace an unread list rather than block on a slow subscriber.
		select {
		case <-ch:
		default:
		}
		ch <- list
	}
}
