package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"fieldworks/internal/domain"
	"fieldworks/internal/port"
)

const lineItemColumns = 14

type lineItemRepo struct {
	db *sqlx.DB
}

// NewLineItemRepo creates a new PostgreSQL-backed LineItemRepository.
func NewLineItemRepo(db *sqlx.DB) port.LineItemRepository {
	return &lineItemRepo{db: db}
}

// ReplaceForParent swaps the stored items of a document for items in one transaction.
func (r *lineItemRepo) ReplaceForParent(ctx context.Context, tenantID uuid.UUID, parentType domain.DocumentKind, parentID uuid.UUID, items []domain.LineItem) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("lineItemRepo.ReplaceForParent begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM line_items WHERE tenant_id = $1 AND parent_type = $2 AND parent_id = $3",
		tenantID, parentType, parentID); err != nil {
		return fmt.Errorf("lineItemRepo.ReplaceForParent delete: %w", err)
	}

	if len(items) > 0 {
		now := time.Now().UTC()
		valueStrings := make([]string, 0, len(items))
		valueArgs := make([]interface{}, 0, len(items)*lineItemColumns)
		for i := range items {
			item := &items[i]
			base := i * lineItemColumns
			placeholders := make([]string, lineItemColumns)
			for j := range placeholders {
				placeholders[j] = fmt.Sprintf("$%d", base+j+1)
			}
			valueStrings = append(valueStrings, "("+strings.Join(placeholders, ", ")+")")
			valueArgs = append(valueArgs,
				item.ID, tenantID, parentType, parentID, item.ProductID, item.Description,
				item.Quantity, item.UnitPrice, item.OurPrice, item.Discount, item.Taxable,
				item.Total, i, now)
		}

		query := fmt.Sprintf(`INSERT INTO line_items (
			id, tenant_id, parent_type, parent_id, product_id, description,
			quantity, unit_price, our_price, discount, taxable,
			total, position, created_at
		) VALUES %s`, strings.Join(valueStrings, ", "))
		if _, err := tx.ExecContext(ctx, query, valueArgs...); err != nil {
			return fmt.Errorf("lineItemRepo.ReplaceForParent insert: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("lineItemRepo.ReplaceForParent commit: %w", err)
	}
	return nil
}

func (r *lineItemRepo) ListByParent(ctx context.Context, tenantID uuid.UUID, parentType domain.DocumentKind, parentID uuid.UUID) ([]domain.LineItem, error) {
	items := []domain.LineItem{}
	err := r.db.SelectContext(ctx, &items,
		`SELECT * FROM line_items WHERE tenant_id = $1 AND parent_type = $2 AND parent_id = $3
		 ORDER BY position`,
		tenantID, parentType, parentID)
	if err != nil {
		return nil, fmt.Errorf("lineItemRepo.ListByParent: %w", err)
	}
	return items, nil
}
