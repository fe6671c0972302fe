package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"ordenapp/internal/domain"
	"ordenapp/internal/repository"
)

// PlanRepo implements repository.PlanRepository
type PlanRepo struct {
	q querier
}

// NewPlanRepo creates a new PlanRepo
func NewPlanRepo(db *DB) repository.PlanRepository {
	return &PlanRepo{q: db}
}

const planSelect = `
	SELECT id, order_id, activity_id, activity_name, kind, COALESCE(system_group, ''),
		   parameter_id, COALESCE(unit, ''), min_value, max_value, sequence, mandatory, origin,
		   completed, measured_value, COALESCE(observation, ''), completed_at, created_at
	FROM plan_items
`

func scanPlanItem(s rowScanner) (domain.ActivityPlanItem, error) {
	var it domain.ActivityPlanItem
	var paramID sql.NullInt64
	var minValue, maxValue, measured sql.NullFloat64
	var completedAt sql.NullTime

	err := s.Scan(
		&it.ID, &it.OrderID, &it.ActivityID, &it.ActivityName, &it.Kind, &it.SystemGroup,
		&paramID, &it.Unit, &minValue, &maxValue, &it.Sequence, &it.Mandatory, &it.Origin,
		&it.Completed, &measured, &it.Observation, &completedAt, &it.CreatedAt,
	)
	if err != nil {
		return it, err
	}
	it.ParameterID = nullInt(paramID)
	it.MinValue = nullFloat(minValue)
	it.MaxValue = nullFloat(maxValue)
	it.MeasuredValue = nullFloat(measured)
	it.CompletedAt = nullTime(completedAt)
	return it, nil
}

// ListByOrder returns the plan of an order by sequence
func (r *PlanRepo) ListByOrder(ctx context.Context, orderID int64) ([]domain.ActivityPlanItem, error) {
	rows, err := r.q.QueryContext(ctx, planSelect+` WHERE order_id = ? ORDER BY sequence`, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to list plan items: %w", err)
	}
	defer rows.Close()

	var items []domain.ActivityPlanItem
	for rows.Next() {
		it, err := scanPlanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan plan item: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (r *PlanRepo) GetByID(ctx context.Context, id int64) (*domain.ActivityPlanItem, error) {
	it, err := scanPlanItem(r.q.QueryRowContext(ctx, planSelect+` WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get plan item: %w", err)
	}
	return &it, nil
}

// Insert adds items and sets their IDs in place
func (r *PlanRepo) Insert(ctx context.Context, items []domain.ActivityPlanItem) error {
	query := `
		INSERT INTO plan_items (order_id, activity_id, activity_name, kind, system_group, parameter_id, unit,
			min_value, max_value, sequence, mandatory, origin, completed, measured_value, observation, completed_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	now := time.Now().UTC()
	for i := range items {
		it := &items[i]
		it.CreatedAt = now
		result, err := r.q.ExecContext(ctx, query,
			it.OrderID, it.ActivityID, it.ActivityName, it.Kind, it.SystemGroup, it.ParameterID, it.Unit,
			it.MinValue, it.MaxValue, it.Sequence, it.Mandatory, it.Origin, it.Completed, it.MeasuredValue,
			it.Observation, utc(it.CompletedAt), now)
		if err != nil {
			return fmt.Errorf("failed to insert plan item %d: %w", it.Sequence, err)
		}
		if it.ID, err = result.LastInsertId(); err != nil {
			return fmt.Errorf("failed to get plan item ID: %w", err)
		}
	}
	return nil
}

// Update writes the execution state of an item
func (r *PlanRepo) Update(ctx context.Context, it *domain.ActivityPlanItem) error {
	query := `
		UPDATE plan_items SET completed = ?, measured_value = ?, observation = ?, completed_at = ?
		WHERE id = ? AND order_id = ?
	`
	result, err := r.q.ExecContext(ctx, query,
		it.Completed, it.MeasuredValue, it.Observation, utc(it.CompletedAt), it.ID, it.OrderID)
	if err != nil {
		return fmt.Errorf("failed to update plan item: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("plan item %d: %w", it.ID, domain.ErrNotFound)
	}
	return nil
}

func (r *PlanRepo) Delete(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	_, err := r.q.ExecContext(ctx, `DELETE FROM plan_items WHERE id IN (`+placeholders(len(ids))+`)`, args...)
	if err != nil {
		return fmt.Errorf("failed to delete plan items: %w", err)
	}
	return nil
}
