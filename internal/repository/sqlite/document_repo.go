package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"ordenapp/internal/domain"
	"ordenapp/internal/repository"
)

// DocumentRepo implements repository.DocumentRepository
type DocumentRepo struct {
	q querier
}

// NewDocumentRepo creates a new DocumentRepo
func NewDocumentRepo(db *DB) repository.DocumentRepository {
	return &DocumentRepo{q: db}
}

// Upsert stores doc as the current document of its (order, type), replacing any previous one
func (r *DocumentRepo) Upsert(ctx context.Context, d *domain.GeneratedDocument) error {
	query := `
		INSERT INTO generated_documents (order_id, document_type, url, object_key, content_type, size_bytes,
			template_id, generated_by, generated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(order_id, document_type) DO UPDATE SET
			url = excluded.url,
			object_key = excluded.object_key,
			content_type = excluded.content_type,
			size_bytes = excluded.size_bytes,
			template_id = excluded.template_id,
			generated_by = excluded.generated_by,
			generated_at = excluded.generated_at
	`
	_, err := r.q.ExecContext(ctx, query,
		d.OrderID, d.DocumentType, d.URL, d.ObjectKey, d.ContentType, d.SizeBytes,
		d.TemplateID, d.GeneratedBy, d.GeneratedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to upsert document: %w", err)
	}

	err = r.q.QueryRowContext(ctx,
		`SELECT id FROM generated_documents WHERE order_id = ? AND document_type = ?`,
		d.OrderID, d.DocumentType).Scan(&d.ID)
	if err != nil {
		return fmt.Errorf("failed to get document ID: %w", err)
	}
	return nil
}

const documentSelect = `
	SELECT id, order_id, document_type, url, object_key, COALESCE(content_type, ''), size_bytes,
		   COALESCE(template_id, ''), COALESCE(generated_by, 0), generated_at
	FROM generated_documents
`

func scanDocument(s rowScanner) (domain.GeneratedDocument, error) {
	var d domain.GeneratedDocument
	err := s.Scan(&d.ID, &d.OrderID, &d.DocumentType, &d.URL, &d.ObjectKey, &d.ContentType, &d.SizeBytes,
		&d.TemplateID, &d.GeneratedBy, &d.GeneratedAt)
	return d, err
}

func (r *DocumentRepo) GetCurrent(ctx context.Context, orderID int64, documentType string) (*domain.GeneratedDocument, error) {
	d, err := scanDocument(r.q.QueryRowContext(ctx, documentSelect+` WHERE order_id = ? AND document_type = ?`,
		orderID, documentType))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get document: %w", err)
	}
	return &d, nil
}

func (r *DocumentRepo) ListByOrder(ctx context.Context, orderID int64) ([]domain.GeneratedDocument, error) {
	rows, err := r.q.QueryContext(ctx, documentSelect+` WHERE order_id = ? ORDER BY document_type`, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	var docs []domain.GeneratedDocument
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}
