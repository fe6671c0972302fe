package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"ordenapp/internal/domain"
	"ordenapp/internal/repository"
)

// UserRepo implements repository.UserRepository
type UserRepo struct {
	q querier
}

// NewUserRepo creates a new UserRepo
func NewUserRepo(db *DB) repository.UserRepository {
	return &UserRepo{q: db}
}

func (r *UserRepo) Create(ctx context.Context, user *domain.User) error {
	query := `
		INSERT INTO users (email, name, phone, role, created_at)
		VALUES (?, ?, ?, ?, ?)
	`
	now := time.Now().UTC()
	result, err := r.q.ExecContext(ctx, query, user.Email, user.Name, user.Phone, user.Role, now)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get user ID: %w", err)
	}
	user.ID = id
	user.CreatedAt = now
	return nil
}

func (r *UserRepo) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	query := `SELECT id, email, name, COALESCE(phone, ''), role, created_at FROM users WHERE id = ?`
	user := &domain.User{}
	err := r.q.QueryRowContext(ctx, query, id).Scan(
		&user.ID, &user.Email, &user.Name, &user.Phone, &user.Role, &user.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

func (r *UserRepo) List(ctx context.Context, role string) ([]domain.User, error) {
	query := `SELECT id, email, name, COALESCE(phone, ''), role, created_at FROM users`
	var args []any
	if role != "" {
		query += ` WHERE role = ?`
		args = append(args, role)
	}
	query += ` ORDER BY name`

	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []domain.User
	for rows.Next() {
		var u domain.User
		if err := rows.Scan(&u.ID, &u.Email, &u.Name, &u.Phone, &u.Role, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}
