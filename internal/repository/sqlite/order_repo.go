package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"ordenapp/internal/domain"
	"ordenapp/internal/repository"
)

// OrderRepo implements repository.OrderRepository
type OrderRepo struct {
	q querier
}

// NewOrderRepo creates a new OrderRepo
func NewOrderRepo(db *DB) repository.OrderRepository {
	return &OrderRepo{q: db}
}

const orderSelect = `
	SELECT o.id, o.number, o.client_id, o.technician_id, o.service_type_id,
		   o.scheduled_start, o.scheduled_end, o.priority, o.origin, o.status,
		   COALESCE(o.initial_description, ''), COALESCE(o.work_performed, ''), COALESCE(o.technician_remarks, ''),
		   o.requires_client_signature, o.started_at, o.completed_at, o.cancelled_at,
		   COALESCE(o.cancellation_reason, ''), o.execution_recorded_at, o.version,
		   COALESCE(o.created_by, 0), COALESCE(o.updated_by, 0), o.created_at, o.updated_at
	FROM service_orders o
`

func scanOrder(s rowScanner) (*domain.ServiceOrder, error) {
	o := &domain.ServiceOrder{}
	var techID sql.NullInt64
	var schedStart, schedEnd, started, completed, cancelled, recorded, updated sql.NullTime

	err := s.Scan(
		&o.ID, &o.Number, &o.ClientID, &techID, &o.ServiceTypeID,
		&schedStart, &schedEnd, &o.Priority, &o.Origin, &o.Status,
		&o.InitialDescription, &o.WorkPerformed, &o.TechnicianRemarks,
		&o.RequiresClientSignature, &started, &completed, &cancelled,
		&o.CancellationReason, &recorded, &o.Version,
		&o.CreatedBy, &o.UpdatedBy, &o.CreatedAt, &updated,
	)
	if err != nil {
		return nil, err
	}
	o.TechnicianID = nullInt(techID)
	o.ScheduledStart = nullTime(schedStart)
	o.ScheduledEnd = nullTime(schedEnd)
	o.StartedAt = nullTime(started)
	o.CompletedAt = nullTime(completed)
	o.CancelledAt = nullTime(cancelled)
	o.ExecutionRecordedAt = nullTime(recorded)
	if updated.Valid {
		o.UpdatedAt = updated.Time
	}
	return o, nil
}

// Create inserts the order, its equipment lines and the initial history record.
// The order number is allocated as OS-<year>-<sequence>.
func (r *OrderRepo) Create(ctx context.Context, o *domain.ServiceOrder) error {
	now := time.Now().UTC()

	if o.Number == "" {
		number, err := r.nextNumber(ctx, now.Year())
		if err != nil {
			return err
		}
		o.Number = number
	}
	if o.Status == "" {
		o.Status = domain.OrderStatusPending
	}
	o.Version = 1
	o.CreatedAt = now
	o.UpdatedAt = now

	query := `
		INSERT INTO service_orders (number, client_id, technician_id, service_type_id, scheduled_start, scheduled_end,
			priority, origin, status, initial_description, requires_client_signature, version, created_by, updated_by,
			created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	result, err := r.q.ExecContext(ctx, query,
		o.Number, o.ClientID, o.TechnicianID, o.ServiceTypeID, utc(o.ScheduledStart), utc(o.ScheduledEnd),
		o.Priority, o.Origin, o.Status, o.InitialDescription, o.RequiresClientSignature, o.Version,
		o.CreatedBy, o.CreatedBy, now, now)
	if err != nil {
		return fmt.Errorf("failed to create order: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get order ID: %w", err)
	}
	o.ID = id

	for i := range o.Equipment {
		line := &o.Equipment[i]
		line.OrderID = id
		res, err := r.q.ExecContext(ctx,
			`INSERT INTO order_equipment (order_id, equipment_id, sequence, system_label) VALUES (?, ?, ?, ?)`,
			id, line.EquipmentID, line.Sequence, line.SystemLabel)
		if err != nil {
			return fmt.Errorf("failed to add equipment %d to order: %w", line.EquipmentID, err)
		}
		if line.ID, err = res.LastInsertId(); err != nil {
			return fmt.Errorf("failed to get equipment line ID: %w", err)
		}
	}

	return r.CreateStatusHistory(ctx, &domain.OrderStatusChange{
		OrderID:   id,
		Status:    o.Status,
		ChangedBy: o.CreatedBy,
		Notes:     "Orden creada",
		CreatedAt: now,
	})
}

func (r *OrderRepo) nextNumber(ctx context.Context, year int) (string, error) {
	prefix := fmt.Sprintf("OS-%d-", year)
	var last int64
	err := r.q.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(CAST(substr(number, ?) AS INTEGER)), 0) FROM service_orders WHERE number LIKE ?`,
		len(prefix)+1, prefix+"%").Scan(&last)
	if err != nil {
		return "", fmt.Errorf("failed to allocate order number: %w", err)
	}
	return fmt.Sprintf("%s%06d", prefix, last+1), nil
}

func (r *OrderRepo) GetByID(ctx context.Context, id int64) (*domain.ServiceOrder, error) {
	return r.getOne(ctx, `WHERE o.id = ?`, id)
}

func (r *OrderRepo) GetByNumber(ctx context.Context, number string) (*domain.ServiceOrder, error) {
	return r.getOne(ctx, `WHERE o.number = ?`, number)
}

func (r *OrderRepo) getOne(ctx context.Context, where string, arg any) (*domain.ServiceOrder, error) {
	o, err := scanOrder(r.q.QueryRowContext(ctx, orderSelect+where, arg))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	if o.Equipment, err = r.listEquipment(ctx, o.ID); err != nil {
		return nil, err
	}
	return o, nil
}

func (r *OrderRepo) listEquipment(ctx context.Context, orderID int64) ([]domain.OrderEquipment, error) {
	query := `
		SELECT l.id, l.order_id, l.equipment_id, l.sequence, COALESCE(l.system_label, ''),
			   e.client_id, e.code, COALESCE(e.description, ''), COALESCE(e.brand, ''), COALESCE(e.model, ''), COALESCE(e.serial_number, '')
		FROM order_equipment l
		JOIN equipment e ON e.id = l.equipment_id
		WHERE l.order_id = ?
		ORDER BY l.sequence
	`
	rows, err := r.q.QueryContext(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to list order equipment: %w", err)
	}
	defer rows.Close()

	var lines []domain.OrderEquipment
	for rows.Next() {
		var l domain.OrderEquipment
		e := &domain.Equipment{}
		if err := rows.Scan(&l.ID, &l.OrderID, &l.EquipmentID, &l.Sequence, &l.SystemLabel,
			&e.ClientID, &e.Code, &e.Description, &e.Brand, &e.Model, &e.SerialNumber); err != nil {
			return nil, fmt.Errorf("failed to scan order equipment: %w", err)
		}
		e.ID = l.EquipmentID
		l.Equipment = e
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

func (r *OrderRepo) List(ctx context.Context, f repository.OrderFilter) ([]domain.ServiceOrder, error) {
	query := orderSelect + ` WHERE 1 = 1`
	var args []any
	if f.Status != "" {
		query += ` AND o.status = ?`
		args = append(args, f.Status)
	}
	if f.TechnicianID > 0 {
		query += ` AND o.technician_id = ?`
		args = append(args, f.TechnicianID)
	}
	if f.ClientID > 0 {
		query += ` AND o.client_id = ?`
		args = append(args, f.ClientID)
	}
	if f.Limit <= 0 {
		f.Limit = 50
	}
	query += ` ORDER BY o.created_at DESC, o.id DESC LIMIT ? OFFSET ?`
	args = append(args, f.Limit, f.Offset)

	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	defer rows.Close()

	var orders []domain.ServiceOrder
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, *o)
	}
	return orders, rows.Err()
}

// Update writes every mutable column when the stored version still matches
// o.Version, then bumps o.Version.
func (r *OrderRepo) Update(ctx context.Context, o *domain.ServiceOrder) error {
	query := `
		UPDATE service_orders SET
			technician_id = ?, service_type_id = ?, scheduled_start = ?, scheduled_end = ?,
			priority = ?, status = ?, initial_description = ?, work_performed = ?, technician_remarks = ?,
			requires_client_signature = ?, started_at = ?, completed_at = ?, cancelled_at = ?,
			cancellation_reason = ?, execution_recorded_at = ?, updated_by = ?, updated_at = ?,
			version = version + 1
		WHERE id = ? AND version = ?
	`
	now := time.Now().UTC()
	result, err := r.q.ExecContext(ctx, query,
		o.TechnicianID, o.ServiceTypeID, utc(o.ScheduledStart), utc(o.ScheduledEnd),
		o.Priority, o.Status, o.InitialDescription, o.WorkPerformed, o.TechnicianRemarks,
		o.RequiresClientSignature, utc(o.StartedAt), utc(o.CompletedAt), utc(o.CancelledAt),
		o.CancellationReason, utc(o.ExecutionRecordedAt), o.UpdatedBy, now,
		o.ID, o.Version)
	if err != nil {
		return fmt.Errorf("failed to update order: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check updated rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("order %d version %d: %w", o.ID, o.Version, domain.ErrConcurrentModification)
	}

	o.Version++
	o.UpdatedAt = now
	return nil
}

func (r *OrderRepo) CreateStatusHistory(ctx context.Context, h *domain.OrderStatusChange) error {
	if h.CreatedAt.IsZero() {
		h.CreatedAt = time.Now().UTC()
	}
	result, err := r.q.ExecContext(ctx,
		`INSERT INTO order_status_history (order_id, status, changed_by, notes, created_at) VALUES (?, ?, ?, ?, ?)`,
		h.OrderID, h.Status, h.ChangedBy, h.Notes, h.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to create status history: %w", err)
	}
	h.ID, err = result.LastInsertId()
	return err
}

func (r *OrderRepo) GetStatusHistory(ctx context.Context, orderID int64) ([]domain.OrderStatusChange, error) {
	query := `
		SELECT id, order_id, status, COALESCE(changed_by, 0), COALESCE(notes, ''), created_at
		FROM order_status_history
		WHERE order_id = ?
		ORDER BY created_at, id
	`
	rows, err := r.q.QueryContext(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to get status history: %w", err)
	}
	defer rows.Close()

	var history []domain.OrderStatusChange
	for rows.Next() {
		var h domain.OrderStatusChange
		if err := rows.Scan(&h.ID, &h.OrderID, &h.Status, &h.ChangedBy, &h.Notes, &h.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan status history: %w", err)
		}
		history = append(history, h)
	}
	return history, rows.Err()
}
