// Package repository defines interfaces for data persistence
package repository

import (
	"context"

	"ordenapp/internal/domain"
)

// UserRepository defines the interface for user data operations
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id int64) (*domain.User, error)
	List(ctx context.Context, role string) ([]domain.User, error)
}

// ClientRepository defines read access to contracted clients
type ClientRepository interface {
	GetByID(ctx context.Context, id int64) (*domain.Client, error)
}

// EquipmentRepository defines read access to the equipment fleet
type EquipmentRepository interface {
	GetByID(ctx context.Context, id int64) (*domain.Equipment, error)
}

// CatalogRepository resolves service types into their required activities
type CatalogRepository interface {
	GetServiceType(ctx context.Context, id int64) (*domain.ServiceType, error)
	ListActivities(ctx context.Context, serviceTypeID int64) ([]domain.ActivityDefinition, error)
	GetActivity(ctx context.Context, id int64) (*domain.ActivityDefinition, error)
}

// OrderFilter narrows order listings
type OrderFilter struct {
	Status       string
	TechnicianID int64
	ClientID     int64
	Limit        int
	Offset       int
}

// OrderRepository defines the interface for service order data operations.
// Update is guarded by the order version and returns domain.ErrConcurrentModification
// when the stored version differs.
type OrderRepository interface {
	Create(ctx context.Context, order *domain.ServiceOrder) error
	GetByID(ctx context.Context, id int64) (*domain.ServiceOrder, error)
	GetByNumber(ctx context.Context, number string) (*domain.ServiceOrder, error)
	List(ctx context.Context, filter OrderFilter) ([]domain.ServiceOrder, error)
	Update(ctx context.Context, order *domain.ServiceOrder) error
	CreateStatusHistory(ctx context.Context, change *domain.OrderStatusChange) error
	GetStatusHistory(ctx context.Context, orderID int64) ([]domain.OrderStatusChange, error)
}

// PlanRepository defines the interface for activity plan items
type PlanRepository interface {
	ListByOrder(ctx context.Context, orderID int64) ([]domain.ActivityPlanItem, error)
	GetByID(ctx context.Context, id int64) (*domain.ActivityPlanItem, error)
	Insert(ctx context.Context, items []domain.ActivityPlanItem) error
	Update(ctx context.Context, item *domain.ActivityPlanItem) error
	Delete(ctx context.Context, ids []int64) error
}

// EvidenceRepository stores evidence references.
// Create returns domain.ErrOrderLocked when the order is terminal at write time.
type EvidenceRepository interface {
	Create(ctx context.Context, evidence *domain.Evidence) error
	ListByOrder(ctx context.Context, orderID int64) ([]domain.Evidence, error)
}

// SignatureRepository stores signature references.
// Create returns domain.ErrOrderLocked when the order is terminal at write time.
type SignatureRepository interface {
	Create(ctx context.Context, signature *domain.DigitalSignature) error
	ListByOrder(ctx context.Context, orderID int64) ([]domain.DigitalSignature, error)
}

// DocumentRepository keeps the current generated document per order and type
type DocumentRepository interface {
	Upsert(ctx context.Context, doc *domain.GeneratedDocument) error
	GetCurrent(ctx context.Context, orderID int64, documentType string) (*domain.GeneratedDocument, error)
	ListByOrder(ctx context.Context, orderID int64) ([]domain.GeneratedDocument, error)
}

// SettingsRepository defines the interface for key/value settings
type SettingsRepository interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
}

// Transactor runs fn with repositories bound to a single database transaction.
// The transaction commits when fn returns nil and rolls back otherwise.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(tx *Repositories) error) error
}

// Repositories holds all repository instances
type Repositories struct {
	Users      UserRepository
	Clients    ClientRepository
	Equipment  EquipmentRepository
	Catalog    CatalogRepository
	Orders     OrderRepository
	Plans      PlanRepository
	Evidence   EvidenceRepository
	Signatures SignatureRepository
	Documents  DocumentRepository
	Settings   SettingsRepository
	Tx         Transactor
}
