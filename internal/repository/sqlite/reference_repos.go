package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"ordenapp/internal/domain"
)

// ClientRepo implements repository.ClientRepository
type ClientRepo struct {
	q querier
}

func (r *ClientRepo) GetByID(ctx context.Context, id int64) (*domain.Client, error) {
	query := `
		SELECT id, name, COALESCE(tax_id, ''), COALESCE(email, ''), COALESCE(phone, ''), COALESCE(address, '')
		FROM clients WHERE id = ?
	`
	c := &domain.Client{}
	err := r.q.QueryRowContext(ctx, query, id).Scan(&c.ID, &c.Name, &c.TaxID, &c.Email, &c.Phone, &c.Address)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get client: %w", err)
	}
	return c, nil
}

// Create inserts a client, used by seeding and tests
func (r *ClientRepo) Create(ctx context.Context, c *domain.Client) error {
	result, err := r.q.ExecContext(ctx,
		`INSERT INTO clients (name, tax_id, email, phone, address) VALUES (?, ?, ?, ?, ?)`,
		c.Name, c.TaxID, c.Email, c.Phone, c.Address)
	if err != nil {
		return fmt.Errorf("failed to create client: %w", err)
	}
	c.ID, err = result.LastInsertId()
	return err
}

// EquipmentRepo implements repository.EquipmentRepository
type EquipmentRepo struct {
	q querier
}

func (r *EquipmentRepo) GetByID(ctx context.Context, id int64) (*domain.Equipment, error) {
	query := `
		SELECT id, client_id, code, COALESCE(description, ''), COALESCE(brand, ''), COALESCE(model, ''), COALESCE(serial_number, '')
		FROM equipment WHERE id = ?
	`
	e := &domain.Equipment{}
	err := r.q.QueryRowContext(ctx, query, id).Scan(
		&e.ID, &e.ClientID, &e.Code, &e.Description, &e.Brand, &e.Model, &e.SerialNumber)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get equipment: %w", err)
	}
	return e, nil
}

// Create inserts an equipment unit, used by seeding and tests
func (r *EquipmentRepo) Create(ctx context.Context, e *domain.Equipment) error {
	result, err := r.q.ExecContext(ctx,
		`INSERT INTO equipment (client_id, code, description, brand, model, serial_number) VALUES (?, ?, ?, ?, ?, ?)`,
		e.ClientID, e.Code, e.Description, e.Brand, e.Model, e.SerialNumber)
	if err != nil {
		return fmt.Errorf("failed to create equipment: %w", err)
	}
	e.ID, err = result.LastInsertId()
	return err
}
