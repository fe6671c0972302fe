package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"ordenapp/internal/domain"
	"ordenapp/internal/repository"
)

// CatalogRepo implements repository.CatalogRepository over the catalog tables
type CatalogRepo struct {
	q querier
}

// NewCatalogRepo creates a new CatalogRepo
func NewCatalogRepo(db *DB) repository.CatalogRepository {
	return &CatalogRepo{q: db}
}

const activitySelect = `
	SELECT a.id, a.service_type_id, a.name, a.kind, a.execution_order, a.mandatory, a.active,
		   g.id, g.name, g.display_order,
		   p.id, COALESCE(p.name, ''), COALESCE(p.unit, ''), p.min_value, p.max_value
	FROM activity_definitions a
	JOIN system_groups g ON g.id = a.system_group_id
	LEFT JOIN measurement_parameters p ON p.id = a.parameter_id
`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanActivity(s rowScanner) (domain.ActivityDefinition, error) {
	var d domain.ActivityDefinition
	var paramID sql.NullInt64
	var paramName, paramUnit string
	var minValue, maxValue sql.NullFloat64

	err := s.Scan(
		&d.ID, &d.ServiceTypeID, &d.Name, &d.Kind, &d.ExecutionOrder, &d.Mandatory, &d.Active,
		&d.Group.ID, &d.Group.Name, &d.Group.DisplayOrder,
		&paramID, &paramName, &paramUnit, &minValue, &maxValue,
	)
	if err != nil {
		return d, err
	}
	if paramID.Valid {
		d.Parameter = &domain.MeasurementParameter{
			ID:       paramID.Int64,
			Name:     paramName,
			Unit:     paramUnit,
			MinValue: nullFloat(minValue),
			MaxValue: nullFloat(maxValue),
		}
	}
	return d, nil
}

func (r *CatalogRepo) GetServiceType(ctx context.Context, id int64) (*domain.ServiceType, error) {
	st := &domain.ServiceType{}
	err := r.q.QueryRowContext(ctx, `SELECT id, code, name, active FROM service_types WHERE id = ?`, id).
		Scan(&st.ID, &st.Code, &st.Name, &st.Active)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get service type: %w", err)
	}
	return st, nil
}

// ListActivities returns the active activities of a service type in execution order
func (r *CatalogRepo) ListActivities(ctx context.Context, serviceTypeID int64) ([]domain.ActivityDefinition, error) {
	query := activitySelect + `
		WHERE a.service_type_id = ? AND a.active = 1
		ORDER BY g.display_order, a.execution_order, a.id
	`
	rows, err := r.q.QueryContext(ctx, query, serviceTypeID)
	if err != nil {
		return nil, fmt.Errorf("failed to list activities: %w", err)
	}
	defer rows.Close()

	var defs []domain.ActivityDefinition
	for rows.Next() {
		d, err := scanActivity(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan activity: %w", err)
		}
		defs = append(defs, d)
	}
	return defs, rows.Err()
}

func (r *CatalogRepo) GetActivity(ctx context.Context, id int64) (*domain.ActivityDefinition, error) {
	d, err := scanActivity(r.q.QueryRowContext(ctx, activitySelect+` WHERE a.id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get activity: %w", err)
	}
	return &d, nil
}

// CreateServiceType inserts a service type, used by seeding and tests
func (r *CatalogRepo) CreateServiceType(ctx context.Context, st *domain.ServiceType) error {
	result, err := r.q.ExecContext(ctx, `INSERT INTO service_types (code, name, active) VALUES (?, ?, ?)`,
		st.Code, st.Name, st.Active)
	if err != nil {
		return fmt.Errorf("failed to create service type: %w", err)
	}
	st.ID, err = result.LastInsertId()
	return err
}

// CreateSystemGroup inserts a system group, used by seeding and tests
func (r *CatalogRepo) CreateSystemGroup(ctx context.Context, g *domain.SystemGroup) error {
	result, err := r.q.ExecContext(ctx, `INSERT INTO system_groups (name, display_order) VALUES (?, ?)`,
		g.Name, g.DisplayOrder)
	if err != nil {
		return fmt.Errorf("failed to create system group: %w", err)
	}
	g.ID, err = result.LastInsertId()
	return err
}

// CreateParameter inserts a measurement parameter, used by seeding and tests
func (r *CatalogRepo) CreateParameter(ctx context.Context, p *domain.MeasurementParameter) error {
	result, err := r.q.ExecContext(ctx,
		`INSERT INTO measurement_parameters (name, unit, min_value, max_value) VALUES (?, ?, ?, ?)`,
		p.Name, p.Unit, p.MinValue, p.MaxValue)
	if err != nil {
		return fmt.Errorf("failed to create measurement parameter: %w", err)
	}
	p.ID, err = result.LastInsertId()
	return err
}

// CreateActivity inserts an activity definition, used by seeding and tests
func (r *CatalogRepo) CreateActivity(ctx context.Context, d *domain.ActivityDefinition) error {
	var paramID *int64
	if d.Parameter != nil {
		paramID = &d.Parameter.ID
	}
	result, err := r.q.ExecContext(ctx, `
		INSERT INTO activity_definitions (service_type_id, system_group_id, name, kind, execution_order, mandatory, active, parameter_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, d.ServiceTypeID, d.Group.ID, d.Name, d.Kind, d.ExecutionOrder, d.Mandatory, d.Active, paramID)
	if err != nil {
		return fmt.Errorf("failed to create activity: %w", err)
	}
	d.ID, err = result.LastInsertId()
	return err
}
