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

const conversationSelect = `SELECT c.id, c.tenant_id, c.client_id, cl.name AS client_name,
	c.channel, c.recipient,
	COALESCE(lm.body, '') AS last_message, lm.created_at AS last_message_at,
	(SELECT COUNT(*) FROM messages u
	  WHERE u.conversation_id = c.id AND u.direction = 'inbound' AND u.read_at IS NULL) AS unread_count,
	c.created_at, c.updated_at
FROM conversations c
JOIN clients cl ON cl.id = c.client_id
LEFT JOIN LATERAL (
	SELECT body, created_at FROM messages m
	WHERE m.conversation_id = c.id ORDER BY m.created_at DESC LIMIT 1
) lm ON TRUE`

type conversationRepo struct {
	db *sqlx.DB
}

// NewConversationRepo creates a new PostgreSQL-backed ConversationRepository.
func NewConversationRepo(db *sqlx.DB) port.ConversationRepository {
	return &conversationRepo{db: db}
}

func (r *conversationRepo) GetByID(ctx context.Context, tenantID, conversationID uuid.UUID) (*domain.Conversation, error) {
	var conv domain.Conversation
	err := r.db.GetContext(ctx, &conv,
		conversationSelect+" WHERE c.id = $1 AND c.tenant_id = $2", conversationID, tenantID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrConversationNotFound
		}
		return nil, fmt.Errorf("conversationRepo.GetByID: %w", err)
	}
	return &conv, nil
}

// ListByTenant returns every conversation of the tenant, most recent activity first.
func (r *conversationRepo) ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]domain.Conversation, error) {
	convs := []domain.Conversation{}
	err := r.db.SelectContext(ctx, &convs,
		conversationSelect+" WHERE c.tenant_id = $1 ORDER BY COALESCE(lm.created_at, c.created_at) DESC",
		tenantID)
	if err != nil {
		return nil, fmt.Errorf("conversationRepo.ListByTenant: %w", err)
	}
	return convs, nil
}

func (r *conversationRepo) MarkRead(ctx context.Context, tenantID, conversationID uuid.UUID) error {
	var exists bool
	err := r.db.GetContext(ctx, &exists,
		"SELECT EXISTS (SELECT 1 FROM conversations WHERE id = $1 AND tenant_id = $2)",
		conversationID, tenantID)
	if err != nil {
		return fmt.Errorf("conversationRepo.MarkRead: %w", err)
	}
	if !exists {
		return domain.ErrConversationNotFound
	}

	_, err = r.db.ExecContext(ctx,
		`UPDATE messages SET read_at = $1
		 WHERE conversation_id = $2 AND tenant_id = $3 AND direction = 'inbound' AND read_at IS NULL`,
		time.Now().UTC(), conversationID, tenantID)
	if err != nil {
		return fmt.Errorf("conversationRepo.MarkRead: %w", err)
	}
	return nil
}
