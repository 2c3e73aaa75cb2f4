package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"fieldworks/internal/domain"
	"fieldworks/internal/port"
)

type deliveryRepo struct {
	db *sqlx.DB
}

// NewDeliveryRepo creates a new PostgreSQL-backed DeliveryRepository.
func NewDeliveryRepo(db *sqlx.DB) port.DeliveryRepository {
	return &deliveryRepo{db: db}
}

// Claim relies on the unique (tenant_id, idempotency_key) index: the first
// caller inserts the row, later callers get the stored one back.
func (r *deliveryRepo) Claim(ctx context.Context, d *domain.Delivery) (*domain.Delivery, bool, error) {
	now := time.Now().UTC()
	d.CreatedAt = now
	d.UpdatedAt = now

	result, err := r.db.ExecContext(ctx,
		`INSERT INTO deliveries (
			id, tenant_id, idempotency_key, document_id, message_id, channel, recipient,
			status, provider_ref, error, attempts, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (tenant_id, idempotency_key) DO NOTHING`,
		d.ID, d.TenantID, d.IdempotencyKey, d.DocumentID, d.MessageID, d.Channel, d.Recipient,
		d.Status, d.ProviderRef, d.Error, d.Attempts, d.CreatedAt, d.UpdatedAt)
	if err != nil {
		return nil, false, fmt.Errorf("deliveryRepo.Claim: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows > 0 {
		return nil, true, nil
	}

	var existing domain.Delivery
	err = r.db.GetContext(ctx, &existing,
		"SELECT * FROM deliveries WHERE tenant_id = $1 AND idempotency_key = $2",
		d.TenantID, d.IdempotencyKey)
	if err != nil {
		return nil, false, fmt.Errorf("deliveryRepo.Claim existing: %w", err)
	}
	return &existing, false, nil
}

func (r *deliveryRepo) Update(ctx context.Context, d *domain.Delivery) error {
	d.UpdatedAt = time.Now().UTC()
	result, err := r.db.ExecContext(ctx,
		`UPDATE deliveries SET recipient = $1, status = $2, provider_ref = $3, error = $4,
		 attempts = $5, updated_at = $6
		 WHERE id = $7 AND tenant_id = $8`,
		d.Recipient, d.Status, d.ProviderRef, d.Error, d.Attempts, d.UpdatedAt, d.ID, d.TenantID)
	if err != nil {
		return fmt.Errorf("deliveryRepo.Update: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}
