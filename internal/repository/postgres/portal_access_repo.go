package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"fieldworks/internal/domain"
	"fieldworks/internal/port"
)

type portalAccessRepo struct {
	db *sqlx.DB
}

// NewPortalAccessRepo creates a new PostgreSQL-backed PortalAccessRepository.
func NewPortalAccessRepo(db *sqlx.DB) port.PortalAccessRepository {
	return &portalAccessRepo{db: db}
}

func (r *portalAccessRepo) GetByClient(ctx context.Context, clientID uuid.UUID) (*domain.PortalAccess, error) {
	var access domain.PortalAccess
	err := r.db.GetContext(ctx, &access,
		"SELECT * FROM portal_access WHERE client_id = $1", clientID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("portalAccessRepo.GetByClient: %w", err)
	}
	return &access, nil
}

func (r *portalAccessRepo) Touch(ctx context.Context, clientID uuid.UUID) error {
	_, err := r.db.ExecContext(ctx,
		"UPDATE portal_access SET last_used_at = $1 WHERE client_id = $2", time.Now().UTC(), clientID)
	if err != nil {
		return fmt.Errorf("portalAccessRepo.Touch: %w", err)
	}
	return nil
}
