package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"fieldworks/internal/builder"
	"fieldworks/internal/config"
	"fieldworks/internal/domain"
	"fieldworks/internal/port"
	"fieldworks/internal/workflow"
)

// OpenSessionInput is the DTO for opening a builder session.
type OpenSessionInput struct {
	TenantID   uuid.UUID           `json:"-"`
	UserID     uuid.UUID           `json:"-"`
	Kind       domain.DocumentKind `json:"kind" binding:"required"`
	Mode       domain.SessionMode  `json:"mode"`
	DocumentID *uuid.UUID          `json:"document_id"`
}

// DetailsInput carries document-level fields. Nil fields are left alone.
type DetailsInput struct {
	TaxRate  *float64   `json:"tax_rate"`
	Notes    *string    `json:"notes"`
	ClientID *uuid.UUID `json:"client_id"`
}

// Notice is a user-visible message raised while an operation ran.
type Notice struct {
	Level   domain.NoticeLevel `json:"level"`
	Message string             `json:"message"`
}

// SessionView is the state of a builder session after an operation.
type SessionView struct {
	ID        uuid.UUID          `json:"id"`
	Step      domain.Step        `json:"step"`
	Completed bool               `json:"completed"`
	Closed    bool               `json:"closed"`
	Document  builder.State      `json:"document"`
	Send      workflow.SendState `json:"send"`
	Delivery  *SessionDelivery   `json:"delivery,omitempty"`
	Notices   []Notice           `json:"-"`
}

// SessionDelivery reports the result of a successful send.
type SessionDelivery struct {
	DeliveryID  uuid.UUID `json:"delivery_id"`
	ProviderRef string    `json:"provider_ref"`
	Duplicate   bool      `json:"duplicate"`
}

// BuilderSessionService owns the in-memory builder sessions. Operations on one
// session are serialized; results are applied only while the session is open.
type BuilderSessionService interface {
	Open(ctx context.Context, input OpenSessionInput) (*SessionView, error)
	Get(ctx context.Context, tenantID, sessionID uuid.UUID) (*SessionView, error)
	AddProduct(ctx context.Context, tenantID, sessionID, productID uuid.UUID) (*SessionView, error)
	AddCustomLine(ctx context.Context, tenantID, sessionID uuid.UUID) (*SessionView, error)
	UpdateLineItem(ctx context.Context, tenantID, sessionID, itemID uuid.UUID, patch builder.LineItemPatch) (*SessionView, error)
	RemoveLineItem(ctx context.Context, tenantID, sessionID, itemID uuid.UUID) (*SessionView, error)
	UpdateDetails(ctx context.Context, tenantID, sessionID uuid.UUID, input DetailsInput) (*SessionView, error)
	Save(ctx context.Context, tenantID, sessionID uuid.UUID) (*SessionView, error)
	Next(ctx context.Context, tenantID, sessionID uuid.UUID) (*SessionView, error)
	Back(ctx context.Context, tenantID, sessionID uuid.UUID) (*SessionView, error)
	Suggestions(ctx context.Context, tenantID, sessionID uuid.UUID) ([]domain.Product, error)
	SetRecipient(ctx context.Context, tenantID, sessionID uuid.UUID, input workflow.SendInput) (*SessionView, error)
	Send(ctx context.Context, tenantID, sessionID uuid.UUID) (*SessionView, error)
	Close(tenantID, sessionID uuid.UUID) error
	ReapIdle(now time.Time) int
	StartReaper(ctx context.Context)
}

type builderSession struct {
	id       uuid.UUID
	tenantID uuid.UUID

	// ctx is canceled when the session is closed or expires.
	ctx    context.Context
	cancel context.CancelFunc

	mu         sync.Mutex
	controller *workflow.Controller
	notices    *noticeBuffer
	lastUsed   time.Time
}

type builderSessionService struct {
	docs     port.DocumentRepository
	items    port.LineItemRepository
	products port.ProductRepository
	gateway  port.DeliveryGateway
	linker   workflow.Linker
	cfg      config.SessionConfig
	logger   *zap.Logger

	mu       sync.Mutex
	sessions map[uuid.UUID]*builderSession
}

// NewBuilderSessionService creates a new BuilderSessionService. linker may be nil.
func NewBuilderSessionService(
	docs port.DocumentRepository,
	items port.LineItemRepository,
	products port.ProductRepository,
	gateway port.DeliveryGateway,
	linker workflow.Linker,
	cfg config.SessionConfig,
	logger *zap.Logger,
) BuilderSessionService {
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = 30 * time.Minute
	}
	if cfg.ReapInterval <= 0 {
		cfg.ReapInterval = time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &builderSessionService{
		docs:     docs,
		items:    items,
		products: products,
		gateway:  gateway,
		linker:   linker,
		cfg:      cfg,
		logger:   logger,
		sessions: make(map[uuid.UUID]*builderSession),
	}
}

func (s *builderSessionService) Open(ctx context.Context, input OpenSessionInput) (*SessionView, error) {
	if !input.Kind.Valid() {
		return nil, domain.NewValidationError("kind", "kind must be estimate or invoice")
	}
	if input.Mode == "" {
		input.Mode = domain.ModeCreate
		if input.DocumentID != nil {
			input.Mode = domain.ModeEdit
		}
	}

	var source *domain.Document
	switch input.Mode {
	case domain.ModeCreate:
	case domain.ModeEdit, domain.ModeConvert:
		if input.DocumentID == nil {
			return nil, domain.NewValidationError("document_id", "document_id is required")
		}
		doc, err := s.loadDocument(ctx, input.TenantID, *input.DocumentID)
		if err != nil {
			return nil, err
		}
		if input.Mode == domain.ModeConvert {
			if input.Kind != domain.KindInvoice || doc.Kind != domain.KindEstimate {
				return nil, domain.NewValidationError("mode", "only estimates can be converted into invoices")
			}
			if doc.ConvertedInvoiceID != nil || domain.IsTerminal(doc.Status) {
				return nil, domain.ErrDocumentLocked
			}
		} else if doc.Kind != input.Kind {
			return nil, domain.NewValidationError("kind", fmt.Sprintf("document is an %s", doc.Kind))
		}
		source = doc
	default:
		return nil, domain.NewValidationError("mode", "mode must be create, edit or convert")
	}

	sess := s.newSession(input)
	if err := sess.controller.Open(source); err != nil {
		sess.cancel()
		return nil, err
	}

	s.mu.Lock()
	s.sessions[sess.id] = sess
	s.mu.Unlock()

	s.logger.Info("builderSession.Open: session opened",
		zap.String("session_id", sess.id.String()),
		zap.String("kind", string(input.Kind)),
		zap.String("mode", string(input.Mode)))

	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.view(), nil
}

func (s *builderSessionService) newSession(input OpenSessionInput) *builderSession {
	ctx, cancel := context.WithCancel(context.Background())
	notices := &noticeBuffer{}
	owner := builder.Owner{TenantID: input.TenantID, UserID: input.UserID}
	sessionLogger := s.logger.With(zap.String("tenant_id", input.TenantID.String()))

	b := builder.New(s.docs, s.items, notices, sessionLogger, owner, input.Kind, s.cfg.DefaultTaxRate)
	send := workflow.NewSendStep(s.gateway, s.docs, s.linker, notices, sessionLogger, input.TenantID)
	return &builderSession{
		id:         uuid.New(),
		tenantID:   input.TenantID,
		ctx:        ctx,
		cancel:     cancel,
		controller: workflow.NewController(b, send, s.products, notices, input.TenantID),
		notices:    notices,
		lastUsed:   time.Now(),
	}
}

func (s *builderSessionService) loadDocument(ctx context.Context, tenantID, docID uuid.UUID) (*domain.Document, error) {
	doc, err := s.docs.GetByID(ctx, tenantID, docID)
	if err != nil {
		return nil, err
	}
	items, err := s.items.ListByParent(ctx, tenantID, doc.Kind, doc.ID)
	if err != nil {
		return nil, fmt.Errorf("builderSession.loadDocument: %w", err)
	}
	doc.Items = items
	return doc, nil
}

func (s *builderSessionService) Get(ctx context.Context, tenantID, sessionID uuid.UUID) (*SessionView, error) {
	return s.run(ctx, tenantID, sessionID, func(context.Context, *workflow.Controller) error { return nil })
}

func (s *builderSessionService) AddProduct(ctx context.Context, tenantID, sessionID, productID uuid.UUID) (*SessionView, error) {
	return s.run(ctx, tenantID, sessionID, func(ctx context.Context, c *workflow.Controller) error {
		product, err := s.products.GetByID(ctx, tenantID, productID)
		if err != nil {
			return err
		}
		if !product.IsActive {
			return domain.ErrProductNotFound
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		c.Builder().AddProduct(product)
		return nil
	})
}

func (s *builderSessionService) AddCustomLine(ctx context.Context, tenantID, sessionID uuid.UUID) (*SessionView, error) {
	return s.run(ctx, tenantID, sessionID, func(_ context.Context, c *workflow.Controller) error {
		c.Builder().AddCustomLine()
		return nil
	})
}

func (s *builderSessionService) UpdateLineItem(ctx context.Context, tenantID, sessionID, itemID uuid.UUID, patch builder.LineItemPatch) (*SessionView, error) {
	return s.run(ctx, tenantID, sessionID, func(_ context.Context, c *workflow.Controller) error {
		c.Builder().UpdateLineItem(itemID, patch)
		return nil
	})
}

func (s *builderSessionService) RemoveLineItem(ctx context.Context, tenantID, sessionID, itemID uuid.UUID) (*SessionView, error) {
	return s.run(ctx, tenantID, sessionID, func(_ context.Context, c *workflow.Controller) error {
		c.Builder().RemoveLineItem(itemID)
		return nil
	})
}

func (s *builderSessionService) UpdateDetails(ctx context.Context, tenantID, sessionID uuid.UUID, input DetailsInput) (*SessionView, error) {
	return s.run(ctx, tenantID, sessionID, func(_ context.Context, c *workflow.Controller) error {
		b := c.Builder()
		if input.TaxRate != nil {
			b.SetTaxRate(*input.TaxRate)
		}
		if input.Notes != nil {
			b.SetNotes(*input.Notes)
		}
		if input.ClientID != nil {
			if *input.ClientID == uuid.Nil {
				b.SetClient(nil)
			} else {
				b.SetClient(input.ClientID)
			}
		}
		return nil
	})
}

func (s *builderSessionService) Save(ctx context.Context, tenantID, sessionID uuid.UUID) (*SessionView, error) {
	return s.run(ctx, tenantID, sessionID, func(ctx context.Context, c *workflow.Controller) error {
		_, err := c.Builder().Save(ctx)
		return err
	})
}

func (s *builderSessionService) Next(ctx context.Context, tenantID, sessionID uuid.UUID) (*SessionView, error) {
	return s.run(ctx, tenantID, sessionID, func(ctx context.Context, c *workflow.Controller) error {
		return c.Next(ctx)
	})
}

func (s *builderSessionService) Back(ctx context.Context, tenantID, sessionID uuid.UUID) (*SessionView, error) {
	return s.run(ctx, tenantID, sessionID, func(_ context.Context, c *workflow.Controller) error {
		return c.Back()
	})
}

func (s *builderSessionService) Suggestions(ctx context.Context, tenantID, sessionID uuid.UUID) ([]domain.Product, error) {
	var out []domain.Product
	_, err := s.run(ctx, tenantID, sessionID, func(ctx context.Context, c *workflow.Controller) error {
		if c.Step() != domain.StepUpsell {
			return domain.ErrWrongStep
		}
		products, err := c.Suggestions(ctx)
		if err != nil {
			return err
		}
		out = products
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *builderSessionService) SetRecipient(ctx context.Context, tenantID, sessionID uuid.UUID, input workflow.SendInput) (*SessionView, error) {
	return s.run(ctx, tenantID, sessionID, func(_ context.Context, c *workflow.Controller) error {
		c.SendStep().SetInput(input)
		return nil
	})
}

// Send delivers the document. A completed session is closed and the returned
// view reports Closed.
func (s *builderSessionService) Send(ctx context.Context, tenantID, sessionID uuid.UUID) (*SessionView, error) {
	var delivered *SessionDelivery
	view, err := s.run(ctx, tenantID, sessionID, func(ctx context.Context, c *workflow.Controller) error {
		res, err := c.Send(ctx)
		if err != nil {
			return err
		}
		delivered = &SessionDelivery{DeliveryID: res.DeliveryID, ProviderRef: res.ProviderRef, Duplicate: res.Duplicate}
		return nil
	})
	if view != nil {
		view.Delivery = delivered
		if view.Completed {
			s.remove(sessionID)
			view.Closed = true
		}
	}
	return view, err
}

func (s *builderSessionService) Close(tenantID, sessionID uuid.UUID) error {
	s.mu.Lock()
	sess, ok := s.sessions[sessionID]
	if !ok || sess.tenantID != tenantID {
		s.mu.Unlock()
		return domain.ErrSessionNotFound
	}
	delete(s.sessions, sessionID)
	s.mu.Unlock()

	sess.cancel()
	s.logger.Info("builderSession.Close: session closed", zap.String("session_id", sessionID.String()))
	return nil
}

// ReapIdle closes sessions unused since before now minus the idle timeout and
// returns how many were closed. A session busy with an operation is skipped.
func (s *builderSessionService) ReapIdle(now time.Time) int {
	cutoff := now.Add(-s.cfg.IdleTimeout)

	s.mu.Lock()
	var expired []*builderSession
	for id, sess := range s.sessions {
		if !sess.mu.TryLock() {
			continue
		}
		idle := sess.lastUsed.Before(cutoff)
		sess.mu.Unlock()
		if idle {
			delete(s.sessions, id)
			expired = append(expired, sess)
		}
	}
	s.mu.Unlock()

	for _, sess := range expired {
		sess.cancel()
		s.logger.Info("builderSession.ReapIdle: session expired", zap.String("session_id", sess.id.String()))
	}
	return len(expired)
}

// StartReaper expires idle sessions until ctx is canceled, then closes every remaining session.
func (s *builderSessionService) StartReaper(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.ReapInterval)
	defer ticker.Stop()

	s.logger.Info("builderSession.StartReaper: started",
		zap.Duration("idle_timeout", s.cfg.IdleTimeout),
		zap.Duration("interval", s.cfg.ReapInterval))

	for {
		select {
		case <-ctx.Done():
			s.closeAll()
			s.logger.Info("builderSession.StartReaper: shutdown complete")
			return
		case now := <-ticker.C:
			s.ReapIdle(now)
		}
	}
}

func (s *builderSessionService) closeAll() {
	s.mu.Lock()
	sessions := s.sessions
	s.sessions = make(map[uuid.UUID]*builderSession)
	s.mu.Unlock()
	for _, sess := range sessions {
		sess.cancel()
	}
}

func (s *builderSessionService) lookup(tenantID, sessionID uuid.UUID) (*builderSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionID]
	if !ok || sess.tenantID != tenantID {
		return nil, domain.ErrSessionNotFound
	}
	return sess, nil
}

func (s *builderSessionService) remove(sessionID uuid.UUID) {
	s.mu.Lock()
	sess, ok := s.sessions[sessionID]
	delete(s.sessions, sessionID)
	s.mu.Unlock()
	if ok {
		sess.cancel()
	}
}

// run executes op on the session's controller under the session lock. The op
// context keeps the request's values but is canceled only when the session
// closes, so a dropped client cannot abort a write halfway. If the session was
// closed while op ran, the outcome is reported as domain.ErrSessionClosed.
func (s *builderSessionService) run(
	ctx context.Context,
	tenantID, sessionID uuid.UUID,
	op func(ctx context.Context, c *workflow.Controller) error,
) (*SessionView, error) {
	sess, err := s.lookup(tenantID, sessionID)
	if err != nil {
		return nil, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.ctx.Err() != nil {
		return nil, domain.ErrSessionClosed
	}

	opCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	defer cancel()
	stop := context.AfterFunc(sess.ctx, cancel)
	defer stop()

	opErr := op(opCtx, sess.controller)
	if sess.ctx.Err() != nil {
		sess.notices.drain()
		return nil, domain.ErrSessionClosed
	}
	sess.lastUsed = time.Now()

	return sess.view(), opErr
}

// view must be called with sess.mu held. It drains pending notices.
func (sess *builderSession) view() *SessionView {
	c := sess.controller
	return &SessionView{
		ID:        sess.id,
		Step:      c.Step(),
		Completed: c.Completed(),
		Document:  c.Builder().Snapshot(),
		Send:      c.SendStep().State(),
		Notices:   sess.notices.drain(),
	}
}

// noticeBuffer collects notices raised during one operation.
type noticeBuffer struct {
	mu      sync.Mutex
	notices []Notice
}

func (n *noticeBuffer) Notify(level domain.NoticeLevel, message string) {
	n.mu.Lock()
	n.notices = append(n.notices, Notice{Level: level, Message: message})
	n.mu.Unlock()
}

func (n *noticeBuffer) drain() []Notice {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := n.notices
	n.notices = nil
	return out
}
