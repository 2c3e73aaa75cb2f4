package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"fieldworks/internal/domain"
	"fieldworks/internal/port"
	"fieldworks/internal/pricing"
	"fieldworks/internal/render"
)

const maxPortalDocuments = 500

// PortalLoginInput is the DTO for a client portal login.
type PortalLoginInput struct {
	ClientID   uuid.UUID `json:"client_id" binding:"required"`
	AccessCode string    `json:"access_code" binding:"required"`
}

// PortalDashboard is everything a client sees on their portal page.
type PortalDashboard struct {
	Client             PortalClient              `json:"client"`
	Estimates          []render.CustomerDocument `json:"estimates"`
	Invoices           []render.CustomerDocument `json:"invoices"`
	OutstandingBalance float64                   `json:"outstanding_balance"`
}

// PortalClient is the client's own contact record.
type PortalClient struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Email string    `json:"email"`
	Phone string    `json:"phone"`
}

// PortalService defines the client portal contract.
type PortalService interface {
	Authenticate(ctx context.Context, input PortalLoginInput) (*PortalToken, error)
	Dashboard(ctx context.Context, tenantID, clientID uuid.UUID) (*PortalDashboard, error)
	ApproveEstimate(ctx context.Context, tenantID, clientID, estimateID uuid.UUID) (*render.CustomerDocument, error)
	RejectEstimate(ctx context.Context, tenantID, clientID, estimateID uuid.UUID) (*render.CustomerDocument, error)
}

type portalService struct {
	access  port.PortalAccessRepository
	clients port.ClientRepository
	docs    port.DocumentRepository
	items   port.LineItemRepository
	auth    AuthService
	logger  *zap.Logger
}

// NewPortalService creates a new PortalService.
func NewPortalService(
	access port.PortalAccessRepository,
	clients port.ClientRepository,
	docs port.DocumentRepository,
	items port.LineItemRepository,
	auth AuthService,
	logger *zap.Logger,
) PortalService {
	return &portalService{
		access:  access,
		clients: clients,
		docs:    docs,
		items:   items,
		auth:    auth,
		logger:  logger,
	}
}

func (s *portalService) Authenticate(ctx context.Context, input PortalLoginInput) (*PortalToken, error) {
	access, err := s.access.GetByClient(ctx, input.ClientID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("portal.Authenticate: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(access.AccessCodeHash), []byte(input.AccessCode)); err != nil {
		return nil, domain.ErrInvalidCredentials
	}
	if !access.IsActive {
		return nil, domain.ErrPortalAccessRevoked
	}

	if err := s.access.Touch(ctx, input.ClientID); err != nil {
		s.logger.Warn("portal.Authenticate: recording last use",
			zap.String("client_id", input.ClientID.String()), zap.Error(err))
	}
	return s.auth.IssuePortalToken(access.TenantID, input.ClientID)
}

// Dashboard lists the client's documents that have been sent to them. Drafts
// and cancelled documents are left out.
func (s *portalService) Dashboard(ctx context.Context, tenantID, clientID uuid.UUID) (*PortalDashboard, error) {
	client, err := s.clients.GetByID(ctx, tenantID, clientID)
	if err != nil {
		return nil, err
	}

	docs, _, err := s.docs.List(ctx, tenantID, port.DocumentFilter{ClientID: &clientID}, 0, maxPortalDocuments)
	if err != nil {
		return nil, fmt.Errorf("portal.Dashboard: %w", err)
	}

	dash := &PortalDashboard{
		Client:    PortalClient{ID: client.ID, Name: client.Name, Email: client.Email, Phone: client.Phone},
		Estimates: []render.CustomerDocument{},
		Invoices:  []render.CustomerDocument{},
	}
	outstanding := 0.0
	for i := range docs {
		doc := &docs[i]
		if !visibleToClient(doc.Status) {
			continue
		}
		items, err := s.items.ListByParent(ctx, tenantID, doc.Kind, doc.ID)
		if err != nil {
			return nil, fmt.Errorf("portal.Dashboard: loading items of %s: %w", doc.Number, err)
		}
		doc.Items = items
		view := render.CustomerView(doc)
		if doc.Kind == domain.KindInvoice {
			dash.Invoices = append(dash.Invoices, view)
			if doc.Status == domain.StatusSent {
				outstanding += pricing.Calculate(doc.Items, doc.TaxRate).GrandTotal
			}
		} else {
			dash.Estimates = append(dash.Estimates, view)
		}
	}
	dash.OutstandingBalance = pricing.Round2(outstanding)
	return dash, nil
}

func (s *portalService) ApproveEstimate(ctx context.Context, tenantID, clientID, estimateID uuid.UUID) (*render.CustomerDocument, error) {
	return s.decide(ctx, tenantID, clientID, estimateID, domain.StatusApproved)
}

func (s *portalService) RejectEstimate(ctx context.Context, tenantID, clientID, estimateID uuid.UUID) (*render.CustomerDocument, error) {
	return s.decide(ctx, tenantID, clientID, estimateID, domain.StatusRejected)
}

func (s *portalService) decide(ctx context.Context, tenantID, clientID, estimateID uuid.UUID, status domain.DocumentStatus) (*render.CustomerDocument, error) {
	doc, err := s.docs.GetByID(ctx, tenantID, estimateID)
	if err != nil {
		return nil, err
	}
	// Documents of other clients are reported as missing.
	if doc.ClientID == nil || *doc.ClientID != clientID || doc.Kind != domain.KindEstimate {
		return nil, domain.ErrDocumentNotFound
	}
	if doc.Status != domain.StatusSent || !domain.CanTransition(doc.Kind, doc.Status, status) {
		return nil, fmt.Errorf("%w: estimate %s is %s", domain.ErrInvalidTransition, doc.Number, doc.Status)
	}
	if err := s.docs.UpdateStatus(ctx, tenantID, estimateID, status, nil); err != nil {
		return nil, fmt.Errorf("portal.decide: %w", err)
	}
	s.logger.Info("portal.decide: estimate answered by client",
		zap.String("document_id", estimateID.String()),
		zap.String("status", string(status)))

	items, err := s.items.ListByParent(ctx, tenantID, doc.Kind, doc.ID)
	if err != nil {
		return nil, fmt.Errorf("portal.decide: %w", err)
	}
	doc.Items = items
	doc.Status = status
	view := render.CustomerView(doc)
	return &view, nil
}

func visibleToClient(status domain.DocumentStatus) bool {
	switch status {
	case domain.StatusDraft, domain.StatusCancelled:
		return false
	}
	return true
}
