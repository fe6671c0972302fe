// Package sqlite provides SQLite implementation of repository interfaces
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"ordenapp/internal/repository"

	_ "modernc.org/sqlite"
)

// DB wraps the sql.DB with SQLite-specific optimizations
type DB struct {
	*sql.DB
}

// querier is satisfied by both *DB and *sql.Tx so every repository can run
// inside or outside a transaction.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// New creates a new SQLite database connection
func New(dbPath string) (*DB, error) {
	cleanPath := filepath.Clean(dbPath)

	if !filepath.IsLocal(cleanPath) && !filepath.IsAbs(cleanPath) {
		return nil, fmt.Errorf("invalid database path: potential path traversal detected")
	}

	dir := filepath.Dir(cleanPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// WAL mode for concurrent reads, busy_timeout to absorb lock contention
	dsn := fmt.Sprintf("%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)&_pragma=cache_size(2000)&_pragma=foreign_keys(1)", cleanPath)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// A single connection serializes writers; transactions must only use their own tx handle.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return &DB{db}, nil
}

// Migrate runs database migrations
func (db *DB) Migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			email TEXT UNIQUE NOT NULL,
			name TEXT NOT NULL,
			phone TEXT,
			role TEXT DEFAULT 'technician',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS clients (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			tax_id TEXT,
			email TEXT,
			phone TEXT,
			address TEXT
		)`,

		`CREATE TABLE IF NOT EXISTS equipment (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			client_id INTEGER REFERENCES clients(id),
			code TEXT NOT NULL,
			description TEXT,
			brand TEXT,
			model TEXT,
			serial_number TEXT
		)`,

		`CREATE TABLE IF NOT EXISTS service_types (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			code TEXT UNIQUE NOT NULL,
			name TEXT NOT NULL,
			active BOOLEAN DEFAULT 1
		)`,

		`CREATE TABLE IF NOT EXISTS system_groups (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			display_order INTEGER NOT NULL DEFAULT 0
		)`,

		`CREATE TABLE IF NOT EXISTS measurement_parameters (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			unit TEXT,
			min_value REAL,
			max_value REAL
		)`,

		`CREATE TABLE IF NOT EXISTS activity_definitions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			service_type_id INTEGER NOT NULL REFERENCES service_types(id),
			system_group_id INTEGER NOT NULL REFERENCES system_groups(id),
			name TEXT NOT NULL,
			kind TEXT NOT NULL DEFAULT 'TASK',
			execution_order INTEGER NOT NULL DEFAULT 0,
			mandatory BOOLEAN DEFAULT 0,
			active BOOLEAN DEFAULT 1,
			parameter_id INTEGER REFERENCES measurement_parameters(id)
		)`,

		// service_type_id has no foreign key: the catalog may be served from DynamoDB
		`CREATE TABLE IF NOT EXISTS service_orders (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			number TEXT UNIQUE NOT NULL,
			client_id INTEGER NOT NULL REFERENCES clients(id),
			technician_id INTEGER REFERENCES users(id),
			service_type_id INTEGER NOT NULL,
			scheduled_start DATETIME,
			scheduled_end DATETIME,
			priority TEXT NOT NULL DEFAULT 'NORMAL',
			origin TEXT NOT NULL DEFAULT 'SCHEDULED',
			status TEXT NOT NULL DEFAULT 'PENDING',
			initial_description TEXT,
			work_performed TEXT,
			technician_remarks TEXT,
			requires_client_signature BOOLEAN DEFAULT 0,
			started_at DATETIME,
			completed_at DATETIME,
			cancelled_at DATETIME,
			cancellation_reason TEXT,
			execution_recorded_at DATETIME,
			version INTEGER NOT NULL DEFAULT 1,
			created_by INTEGER,
			updated_by INTEGER,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME
		)`,

		`CREATE TABLE IF NOT EXISTS order_equipment (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			order_id INTEGER NOT NULL REFERENCES service_orders(id),
			equipment_id INTEGER NOT NULL REFERENCES equipment(id),
			sequence INTEGER NOT NULL,
			system_label TEXT,
			UNIQUE(order_id, sequence)
		)`,

		`CREATE TABLE IF NOT EXISTS order_status_history (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			order_id INTEGER NOT NULL REFERENCES service_orders(id),
			status TEXT NOT NULL,
			changed_by INTEGER,
			notes TEXT,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS plan_items (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			order_id INTEGER NOT NULL REFERENCES service_orders(id),
			activity_id INTEGER NOT NULL,
			activity_name TEXT NOT NULL,
			kind TEXT NOT NULL DEFAULT 'TASK',
			system_group TEXT,
			parameter_id INTEGER,
			unit TEXT,
			min_value REAL,
			max_value REAL,
			sequence INTEGER NOT NULL,
			mandatory BOOLEAN DEFAULT 0,
			origin TEXT NOT NULL DEFAULT 'ADMIN',
			completed BOOLEAN DEFAULT 0,
			measured_value REAL,
			observation TEXT,
			completed_at DATETIME,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			UNIQUE(order_id, sequence)
		)`,

		`CREATE TABLE IF NOT EXISTS evidence (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			order_id INTEGER NOT NULL REFERENCES service_orders(id),
			phase TEXT NOT NULL,
			url TEXT NOT NULL,
			object_key TEXT NOT NULL,
			content_type TEXT,
			size_bytes INTEGER DEFAULT 0,
			description TEXT,
			captured_at DATETIME NOT NULL,
			uploaded_by INTEGER
		)`,

		`CREATE TABLE IF NOT EXISTS signatures (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			order_id INTEGER NOT NULL REFERENCES service_orders(id),
			role TEXT NOT NULL,
			signer_id INTEGER,
			signer_name TEXT NOT NULL,
			url TEXT NOT NULL,
			object_key TEXT NOT NULL,
			captured_at DATETIME NOT NULL
		)`,

		// Documents reference the order weakly: no foreign key, no cascade
		`CREATE TABLE IF NOT EXISTS generated_documents (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			order_id INTEGER NOT NULL,
			document_type TEXT NOT NULL,
			url TEXT NOT NULL,
			object_key TEXT NOT NULL,
			content_type TEXT,
			size_bytes INTEGER DEFAULT 0,
			template_id TEXT,
			generated_by INTEGER,
			generated_at DATETIME NOT NULL,
			UNIQUE(order_id, document_type)
		)`,

		`CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		// Indexes for performance
		`CREATE INDEX IF NOT EXISTS idx_orders_status ON service_orders(status)`,
		`CREATE INDEX IF NOT EXISTS idx_orders_technician ON service_orders(technician_id)`,
		`CREATE INDEX IF NOT EXISTS idx_orders_client ON service_orders(client_id)`,
		`CREATE INDEX IF NOT EXISTS idx_order_history_order ON order_status_history(order_id)`,
		`CREATE INDEX IF NOT EXISTS idx_activities_service_type ON activity_definitions(service_type_id)`,
		`CREATE INDEX IF NOT EXISTS idx_evidence_order ON evidence(order_id)`,
		`CREATE INDEX IF NOT EXISTS idx_signatures_order ON signatures(order_id)`,
	}

	for _, migration := range migrations {
		if _, err := db.Exec(migration); err != nil {
			return fmt.Errorf("migration failed: %w\nSQL: %s", err, migration)
		}
	}

	return nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.DB.Close()
}

// NewRepositories builds the full repository bundle backed by this database
func NewRepositories(db *DB) *repository.Repositories {
	repos := bind(db)
	repos.Tx = db
	return repos
}

func bind(q querier) *repository.Repositories {
	return &repository.Repositories{
		Users:      &UserRepo{q: q},
		Clients:    &ClientRepo{q: q},
		Equipment:  &EquipmentRepo{q: q},
		Catalog:    &CatalogRepo{q: q},
		Orders:     &OrderRepo{q: q},
		Plans:      &PlanRepo{q: q},
		Evidence:   &EvidenceRepo{q: q},
		Signatures: &SignatureRepo{q: q},
		Documents:  &DocumentRepo{q: q},
		Settings:   &SettingsRepo{q: q},
	}
}

// WithinTx implements repository.Transactor
func (db *DB) WithinTx(ctx context.Context, fn func(tx *repository.Repositories) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	repos := bind(tx)
	repos.Tx = nestedTx{repos: repos}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(repos); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			log.Printf("[sqlite][tx] rollback failed: %v", rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// nestedTx joins the enclosing transaction instead of opening a new one
type nestedTx struct {
	repos *repository.Repositories
}

func (n nestedTx) WithinTx(ctx context.Context, fn func(tx *repository.Repositories) error) error {
	return fn(n.repos)
}

func nullTime(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	t := v.Time
	return &t
}

func nullInt(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	i := v.Int64
	return &i
}

func nullFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func utc(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

// placeholders returns "?, ?, ?" for n arguments
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
