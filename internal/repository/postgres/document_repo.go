package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"fieldworks/internal/domain"
	"fieldworks/internal/port"
)

type documentRepo struct {
	db *sqlx.DB
}

// NewDocumentRepo creates a new PostgreSQL-backed DocumentRepository.
func NewDocumentRepo(db *sqlx.DB) port.DocumentRepository {
	return &documentRepo{db: db}
}

func (r *documentRepo) Create(ctx context.Context, doc *domain.Document) error {
	if doc.ID == uuid.Nil {
		doc.ID = uuid.New()
	}
	if doc.Status == "" {
		doc.Status = domain.StatusDraft
	}
	now := time.Now().UTC()
	doc.CreatedAt = now
	doc.UpdatedAt = now
	doc.Version = 1

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("documentRepo.Create begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if doc.Number == "" {
		var seq int
		err = tx.GetContext(ctx, &seq,
			`INSERT INTO document_counters (tenant_id, kind, last_number) VALUES ($1, $2, 1)
			 ON CONFLICT (tenant_id, kind) DO UPDATE SET last_number = document_counters.last_number + 1
			 RETURNING last_number`,
			doc.TenantID, doc.Kind)
		if err != nil {
			return fmt.Errorf("documentRepo.Create number: %w", err)
		}
		doc.Number = fmt.Sprintf("%s-%06d", doc.Kind.NumberPrefix(), seq)
	}

	query := `INSERT INTO documents (
		id, tenant_id, kind, number, client_id, status, tax_rate, notes,
		subtotal, tax_amount, total, source_estimate_id, converted_invoice_id,
		version, sent_at, created_by, created_at, updated_at
	) VALUES (
		$1, $2, $3, $4, $5, $6, $7, $8,
		$9, $10, $11, $12, $13,
		$14, $15, $16, $17, $18
	)`
	_, err = tx.ExecContext(ctx, query,
		doc.ID, doc.TenantID, doc.Kind, doc.Number, doc.ClientID, doc.Status, doc.TaxRate, doc.Notes,
		doc.Subtotal, doc.TaxAmount, doc.Total, doc.SourceEstimateID, doc.ConvertedInvoiceID,
		doc.Version, doc.SentAt, doc.CreatedBy, doc.CreatedAt, doc.UpdatedAt)
	if err != nil {
		if strings.Contains(err.Error(), "duplicate key") && strings.Contains(err.Error(), "source_estimate") {
			return fmt.Errorf("%w: the estimate was already converted", domain.ErrConflict)
		}
		return fmt.Errorf("documentRepo.Create: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("documentRepo.Create commit: %w", err)
	}
	return nil
}

func (r *documentRepo) GetByID(ctx context.Context, tenantID, docID uuid.UUID) (*domain.Document, error) {
	var doc domain.Document
	err := r.db.GetContext(ctx, &doc,
		"SELECT * FROM documents WHERE id = $1 AND tenant_id = $2", docID, tenantID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrDocumentNotFound
		}
		return nil, fmt.Errorf("documentRepo.GetByID: %w", err)
	}
	return &doc, nil
}

func (r *documentRepo) List(ctx context.Context, tenantID uuid.UUID, filter port.DocumentFilter, offset, limit int) ([]domain.Document, int, error) {
	where := []string{"tenant_id = $1"}
	args := []interface{}{tenantID}
	if filter.Kind != "" {
		args = append(args, filter.Kind)
		where = append(where, fmt.Sprintf("kind = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.ClientID != nil {
		args = append(args, *filter.ClientID)
		where = append(where, fmt.Sprintf("client_id = $%d", len(args)))
	}
	clause := strings.Join(where, " AND ")

	var total int
	err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM documents WHERE "+clause, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("documentRepo.List count: %w", err)
	}

	query := fmt.Sprintf(`SELECT * FROM documents WHERE %s
		ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, clause, len(args)+1, len(args)+2)
	var docs []domain.Document
	if err := r.db.SelectContext(ctx, &docs, query, append(args, limit, offset)...); err != nil {
		return nil, 0, fmt.Errorf("documentRepo.List: %w", err)
	}
	return docs, total, nil
}

// Update writes the editable fields if the stored version still matches and
// the document is not in a terminal status.
func (r *documentRepo) Update(ctx context.Context, doc *domain.Document) error {
	doc.UpdatedAt = time.Now().UTC()

	var updated struct {
		Version int    `db:"version"`
		Number  string `db:"number"`
		Status  string `db:"status"`
	}
	err := r.db.GetContext(ctx, &updated,
		`UPDATE documents SET client_id = $1, tax_rate = $2, notes = $3,
		 subtotal = $4, tax_amount = $5, total = $6, version = version + 1, updated_at = $7
		 WHERE id = $8 AND tenant_id = $9 AND version = $10
		   AND status NOT IN ('converted', 'paid', 'rejected', 'cancelled')
		 RETURNING version, number, status`,
		doc.ClientID, doc.TaxRate, doc.Notes,
		doc.Subtotal, doc.TaxAmount, doc.Total, doc.UpdatedAt,
		doc.ID, doc.TenantID, doc.Version)
	if err == nil {
		doc.Version = updated.Version
		doc.Number = updated.Number
		doc.Status = domain.DocumentStatus(updated.Status)
		return nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("documentRepo.Update: %w", err)
	}

	current, err := r.GetByID(ctx, doc.TenantID, doc.ID)
	if err != nil {
		return err
	}
	if domain.IsTerminal(current.Status) {
		return domain.ErrDocumentLocked
	}
	return domain.ErrConflict
}

// UpdateStatus changes the status without touching the version, so a builder
// holding the document can still save its contents afterwards.
func (r *documentRepo) UpdateStatus(ctx context.Context, tenantID, docID uuid.UUID, status domain.DocumentStatus, sentAt *time.Time) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE documents SET status = $1, sent_at = COALESCE($2, sent_at), updated_at = $3
		 WHERE id = $4 AND tenant_id = $5`,
		status, sentAt, time.Now().UTC(), docID, tenantID)
	if err != nil {
		return fmt.Errorf("documentRepo.UpdateStatus: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.ErrDocumentNotFound
	}
	return nil
}

func (r *documentRepo) MarkConverted(ctx context.Context, tenantID, estimateID, invoiceID uuid.UUID) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE documents SET status = 'converted', converted_invoice_id = $1,
		 version = version + 1, updated_at = $2
		 WHERE id = $3 AND tenant_id = $4 AND kind = 'estimate'`,
		invoiceID, time.Now().UTC(), estimateID, tenantID)
	if err != nil {
		return fmt.Errorf("documentRepo.MarkConverted: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.ErrDocumentNotFound
	}
	return nil
}

func (r *documentRepo) Delete(ctx context.Context, tenantID, docID uuid.UUID) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("documentRepo.Delete begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM line_items WHERE tenant_id = $1 AND parent_id = $2", tenantID, docID); err != nil {
		return fmt.Errorf("documentRepo.Delete items: %w", err)
	}
	result, err := tx.ExecContext(ctx,
		"DELETE FROM documents WHERE id = $1 AND tenant_id = $2", docID, tenantID)
	if err != nil {
		return fmt.Errorf("documentRepo.Delete: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.ErrDocumentNotFound
	}
	return tx.Commit()
}
