package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"fieldworks/internal/domain"
	"fieldworks/internal/port"
)

type messageRepo struct {
	db *sqlx.DB
}

// NewMessageRepo creates a new PostgreSQL-backed MessageRepository.
func NewMessageRepo(db *sqlx.DB) port.MessageRepository {
	return &messageRepo{db: db}
}

// Create inserts msg. When a message with the same id exists, msg is
// overwritten with the stored row instead.
func (r *messageRepo) Create(ctx context.Context, msg *domain.Message) error {
	if msg.ID == uuid.Nil {
		msg.ID = uuid.New()
	}
	msg.CreatedAt = time.Now().UTC()

	result, err := r.db.ExecContext(ctx,
		`INSERT INTO messages (id, tenant_id, conversation_id, direction, body, status, read_at, sent_by, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (id) DO NOTHING`,
		msg.ID, msg.TenantID, msg.ConversationID, msg.Direction, msg.Body, msg.Status,
		msg.ReadAt, msg.SentBy, msg.CreatedAt)
	if err != nil {
		return fmt.Errorf("messageRepo.Create: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows > 0 {
		return nil
	}

	if err := r.db.GetContext(ctx, msg,
		"SELECT * FROM messages WHERE id = $1 AND tenant_id = $2", msg.ID, msg.TenantID); err != nil {
		return fmt.Errorf("messageRepo.Create existing: %w", err)
	}
	return nil
}

func (r *messageRepo) UpdateStatus(ctx context.Context, tenantID, messageID uuid.UUID, status domain.DeliveryStatus) error {
	result, err := r.db.ExecContext(ctx,
		"UPDATE messages SET status = $1 WHERE id = $2 AND tenant_id = $3", status, messageID, tenantID)
	if err != nil {
		return fmt.Errorf("messageRepo.UpdateStatus: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *messageRepo) ListByConversation(ctx context.Context, tenantID, conversationID uuid.UUID, offset, limit int) ([]domain.Message, int, error) {
	var total int
	err := r.db.GetContext(ctx, &total,
		"SELECT COUNT(*) FROM messages WHERE tenant_id = $1 AND conversation_id = $2",
		tenantID, conversationID)
	if err != nil {
		return nil, 0, fmt.Errorf("messageRepo.ListByConversation count: %w", err)
	}

	messages := []domain.Message{}
	err = r.db.SelectContext(ctx, &messages,
		`SELECT * FROM messages WHERE tenant_id = $1 AND conversation_id = $2
		 ORDER BY created_at ASC LIMIT $3 OFFSET $4`,
		tenantID, conversationID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("messageRepo.ListByConversation: %w", err)
	}
	return messages, total, nil
}
