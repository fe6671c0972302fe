// Package domain defines core business entities
package domain

import (
	"time"
)

// User represents a system user (admin, supervisor or technician)
type User struct {
	ID        int64     `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone,omitempty"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
}

// Client represents a contracted customer owning an equipment fleet
type Client struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	TaxID   string `json:"taxId,omitempty"`
	Email   string `json:"email,omitempty"`
	Phone   string `json:"phone,omitempty"`
	Address string `json:"address,omitempty"`
}

// Equipment represents a generator, pump or similar unit in a client fleet
type Equipment struct {
	ID           int64  `json:"id"`
	ClientID     int64  `json:"clientId"`
	Code         string `json:"code"`
	Description  string `json:"description"`
	Brand        string `json:"brand,omitempty"`
	Model        string `json:"model,omitempty"`
	SerialNumber string `json:"serialNumber,omitempty"`
}

// OrderEquipment is one equipment line of a service order
type OrderEquipment struct {
	ID          int64      `json:"id"`
	OrderID     int64      `json:"orderId"`
	EquipmentID int64      `json:"equipmentId"`
	Equipment   *Equipment `json:"equipment,omitempty"`
	Sequence    int        `json:"sequence"`
	SystemLabel string     `json:"systemLabel,omitempty"`
}

// ServiceOrder represents a field-service work order
type ServiceOrder struct {
	ID                      int64            `json:"id"`
	Number                  string           `json:"number"`
	ClientID                int64            `json:"clientId"`
	Client                  *Client          `json:"client,omitempty"`
	Equipment               []OrderEquipment `json:"equipment"`
	TechnicianID            *int64           `json:"technicianId,omitempty"`
	Technician              *User            `json:"technician,omitempty"`
	ServiceTypeID           int64            `json:"serviceTypeId"`
	ScheduledStart          *time.Time       `json:"scheduledStart,omitempty"`
	ScheduledEnd            *time.Time       `json:"scheduledEnd,omitempty"`
	Priority                string           `json:"priority"`
	Origin                  string           `json:"origin"`
	Status                  string           `json:"status"`
	InitialDescription      string           `json:"initialDescription,omitempty"`
	WorkPerformed           string           `json:"workPerformed,omitempty"`
	TechnicianRemarks       string           `json:"technicianRemarks,omitempty"`
	RequiresClientSignature bool             `json:"requiresClientSignature"`
	StartedAt               *time.Time       `json:"startedAt,omitempty"`
	CompletedAt             *time.Time       `json:"completedAt,omitempty"`
	CancelledAt             *time.Time       `json:"cancelledAt,omitempty"`
	CancellationReason      string           `json:"cancellationReason,omitempty"`
	ExecutionRecordedAt     *time.Time       `json:"executionRecordedAt,omitempty"`
	Version                 int              `json:"version"`
	CreatedBy               int64            `json:"createdBy,omitempty"`
	UpdatedBy               int64            `json:"updatedBy,omitempty"`
	CreatedAt               time.Time        `json:"createdAt"`
	UpdatedAt               time.Time        `json:"updatedAt"`
}

// HasTechnician reports whether a technician has been assigned
func (o *ServiceOrder) HasTechnician() bool {
	return o.TechnicianID != nil && *o.TechnicianID > 0
}

// ActivityPlanItem is one activity (task or measurement) to execute on an order
type ActivityPlanItem struct {
	ID            int64      `json:"id"`
	OrderID       int64      `json:"orderId"`
	ActivityID    int64      `json:"activityId"`
	ActivityName  string     `json:"activityName"`
	Kind          string     `json:"kind"`
	SystemGroup   string     `json:"systemGroup,omitempty"`
	ParameterID   *int64     `json:"parameterId,omitempty"`
	Unit          string     `json:"unit,omitempty"`
	MinValue      *float64   `json:"minValue,omitempty"`
	MaxValue      *float64   `json:"maxValue,omitempty"`
	Sequence      int        `json:"sequence"`
	Mandatory     bool       `json:"mandatory"`
	Origin        string     `json:"origin"`
	Completed     bool       `json:"completed"`
	MeasuredValue *float64   `json:"measuredValue,omitempty"`
	Observation   string     `json:"observation,omitempty"`
	CompletedAt   *time.Time `json:"completedAt,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
}

// Evidence is a photo taken by the technician during execution
type Evidence struct {
	ID          int64     `json:"id"`
	OrderID     int64     `json:"orderId"`
	Phase       string    `json:"phase"`
	URL         string    `json:"url"`
	ObjectKey   string    `json:"-"`
	ContentType string    `json:"contentType,omitempty"`
	SizeBytes   int64     `json:"sizeBytes"`
	Description string    `json:"description,omitempty"`
	CapturedAt  time.Time `json:"capturedAt"`
	UploadedBy  int64     `json:"uploadedBy,omitempty"`
}

// DigitalSignature is a signature image captured on the device
type DigitalSignature struct {
	ID         int64     `json:"id"`
	OrderID    int64     `json:"orderId"`
	Role       string    `json:"role"`
	SignerID   *int64    `json:"signerId,omitempty"`
	SignerName string    `json:"signerName"`
	URL        string    `json:"url"`
	ObjectKey  string    `json:"-"`
	CapturedAt time.Time `json:"capturedAt"`
}

// GeneratedDocument is the current rendered document of a given type for an order
type GeneratedDocument struct {
	ID           int64     `json:"id"`
	OrderID      int64     `json:"orderId"`
	DocumentType string    `json:"documentType"`
	URL          string    `json:"url"`
	ObjectKey    string    `json:"objectKey"`
	ContentType  string    `json:"contentType"`
	SizeBytes    int64     `json:"sizeBytes"`
	TemplateID   string    `json:"templateId,omitempty"`
	GeneratedBy  int64     `json:"generatedBy"`
	GeneratedAt  time.Time `json:"generatedAt"`
	SignedURL    string    `json:"signedUrl,omitempty"`
}

// OrderStatusChange represents a record of an order status change
type OrderStatusChange struct {
	ID        int64     `json:"id"`
	OrderID   int64     `json:"orderId"`
	Status    string    `json:"status"`
	ChangedBy int64     `json:"changedBy,omitempty"`
	Notes     string    `json:"notes,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Status constants
const (
	// Order statuses
	OrderStatusPending    = "PENDING"
	OrderStatusAssigned   = "ASSIGNED"
	OrderStatusScheduled  = "SCHEDULED"
	OrderStatusInProgress = "IN_PROGRESS"
	OrderStatusCompleted  = "COMPLETED"
	OrderStatusCancelled  = "CANCELLED"

	// Priorities, lowest first
	PriorityNormal     = "NORMAL"
	PriorityAlta       = "ALTA"
	PriorityUrgente    = "URGENTE"
	PriorityEmergencia = "EMERGENCIA"

	// Order origins
	OriginScheduled     = "SCHEDULED"
	OriginClientRequest = "CLIENT_REQUEST"
	OriginInternal      = "INTERNAL"
	OriginEmergency     = "EMERGENCY"
	OriginWarranty      = "WARRANTY"

	// Plan item origins
	PlanOriginAdmin  = "ADMIN"
	PlanOriginMobile = "MOBILE"

	// Activity kinds
	ActivityKindTask        = "TASK"
	ActivityKindMeasurement = "MEASUREMENT"

	// Evidence phases
	PhaseBefore = "BEFORE"
	PhaseDuring = "DURING"
	PhaseAfter  = "AFTER"

	// Signer roles
	SignerTechnician = "TECHNICIAN"
	SignerClient     = "CLIENT"

	// Document types
	DocumentServiceReport = "SERVICE_REPORT"

	// User roles
	RoleTechnician = "technician"
	RoleSupervisor = "supervisor"
	RoleAdmin      = "admin"
)

var priorityRank = map[string]int{
	PriorityNormal:     0,
	PriorityAlta:       1,
	PriorityUrgente:    2,
	PriorityEmergencia: 3,
}

// PriorityRank returns the ordinal of a priority, -1 if unknown
func PriorityRank(priority string) int {
	if r, ok := priorityRank[priority]; ok {
		return r
	}
	return -1
}

// ValidPriority reports whether priority is a known value
func ValidPriority(priority string) bool {
	_, ok := priorityRank[priority]
	return ok
}

// ValidOrigin reports whether origin is a known order origin
func ValidOrigin(origin string) bool {
	switch origin {
	case OriginScheduled, OriginClientRequest, OriginInternal, OriginEmergency, OriginWarranty:
		return true
	}
	return false
}

// ValidPhase reports whether phase is a known evidence phase
func ValidPhase(phase string) bool {
	switch phase {
	case PhaseBefore, PhaseDuring, PhaseAfter:
		return true
	}
	return false
}

// ValidSignerRole reports whether role is a known signer role
func ValidSignerRole(role string) bool {
	return role == SignerTechnician || role == SignerClient
}

// OrderStatusLabel returns a human-readable label for an order status
func OrderStatusLabel(status string) string {
	labels := map[string]string{
		OrderStatusPending:    "Pendiente",
		OrderStatusAssigned:   "Asignada",
		OrderStatusScheduled:  "Programada",
		OrderStatusInProgress: "En Ejecución",
		OrderStatusCompleted:  "Completada",
		OrderStatusCancelled:  "Cancelada",
	}
	if label, ok := labels[status]; ok {
		return label
	}
	return status
}

// PhaseLabel returns a human-readable label for an evidence phase
func PhaseLabel(phase string) string {
	switch phase {
	case PhaseBefore:
		return "Antes"
	case PhaseDuring:
		return "Durante"
	case PhaseAfter:
		return "Después"
	}
	return phase
}
