package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"ordenapp/internal/domain"
	"ordenapp/internal/repository"
)

// openOrderGuard makes an INSERT ... SELECT a no-op once the order is terminal
const openOrderGuard = `WHERE EXISTS (SELECT 1 FROM service_orders WHERE id = ? AND status NOT IN ('COMPLETED', 'CANCELLED'))`

// EvidenceRepo implements repository.EvidenceRepository
type EvidenceRepo struct {
	q querier
}

// NewEvidenceRepo creates a new EvidenceRepo
func NewEvidenceRepo(db *DB) repository.EvidenceRepository {
	return &EvidenceRepo{q: db}
}

// Create stores the evidence reference unless the order is already terminal
func (r *EvidenceRepo) Create(ctx context.Context, e *domain.Evidence) error {
	query := `
		INSERT INTO evidence (order_id, phase, url, object_key, content_type, size_bytes, description, captured_at, uploaded_by)
		SELECT ?, ?, ?, ?, ?, ?, ?, ?, ?
	` + openOrderGuard
	result, err := r.q.ExecContext(ctx, query,
		e.OrderID, e.Phase, e.URL, e.ObjectKey, e.ContentType, e.SizeBytes, e.Description, e.CapturedAt.UTC(), e.UploadedBy,
		e.OrderID)
	if err != nil {
		return fmt.Errorf("failed to create evidence: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check inserted evidence: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("evidence for order %d: %w", e.OrderID, domain.ErrOrderLocked)
	}
	e.ID, err = result.LastInsertId()
	return err
}

func (r *EvidenceRepo) ListByOrder(ctx context.Context, orderID int64) ([]domain.Evidence, error) {
	query := `
		SELECT id, order_id, phase, url, object_key, COALESCE(content_type, ''), size_bytes,
			   COALESCE(description, ''), captured_at, COALESCE(uploaded_by, 0)
		FROM evidence
		WHERE order_id = ?
		ORDER BY captured_at, id
	`
	rows, err := r.q.QueryContext(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to list evidence: %w", err)
	}
	defer rows.Close()

	var out []domain.Evidence
	for rows.Next() {
		var e domain.Evidence
		if err := rows.Scan(&e.ID, &e.OrderID, &e.Phase, &e.URL, &e.ObjectKey, &e.ContentType, &e.SizeBytes,
			&e.Description, &e.CapturedAt, &e.UploadedBy); err != nil {
			return nil, fmt.Errorf("failed to scan evidence: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// SignatureRepo implements repository.SignatureRepository
type SignatureRepo struct {
	q querier
}

// NewSignatureRepo creates a new SignatureRepo
func NewSignatureRepo(db *DB) repository.SignatureRepository {
	return &SignatureRepo{q: db}
}

// Create stores the signature reference unless the order is already terminal
func (r *SignatureRepo) Create(ctx context.Context, s *domain.DigitalSignature) error {
	query := `
		INSERT INTO signatures (order_id, role, signer_id, signer_name, url, object_key, captured_at)
		SELECT ?, ?, ?, ?, ?, ?, ?
	` + openOrderGuard
	result, err := r.q.ExecContext(ctx, query,
		s.OrderID, s.Role, s.SignerID, s.SignerName, s.URL, s.ObjectKey, s.CapturedAt.UTC(),
		s.OrderID)
	if err != nil {
		return fmt.Errorf("failed to create signature: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check inserted signature: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("signature for order %d: %w", s.OrderID, domain.ErrOrderLocked)
	}
	s.ID, err = result.LastInsertId()
	return err
}

func (r *SignatureRepo) ListByOrder(ctx context.Context, orderID int64) ([]domain.DigitalSignature, error) {
	query := `
		SELECT id, order_id, role, signer_id, signer_name, url, object_key, captured_at
		FROM signatures
		WHERE order_id = ?
		ORDER BY captured_at, id
	`
	rows, err := r.q.QueryContext(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to list signatures: %w", err)
	}
	defer rows.Close()

	var out []domain.DigitalSignature
	for rows.Next() {
		var s domain.DigitalSignature
		var signerID sql.NullInt64
		if err := rows.Scan(&s.ID, &s.OrderID, &s.Role, &signerID, &s.SignerName, &s.URL, &s.ObjectKey, &s.CapturedAt); err != nil {
			return nil, fmt.Errorf("failed to scan signature: %w", err)
		}
		s.SignerID = nullInt(signerID)
		out = append(out, s)
	}
	return out, rows.Err()
}
