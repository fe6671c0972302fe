// Package usecase implements the order lifecycle, the evidence collector and the
// finalization pipeline on top of the repositories and external collaborators.
package usecase

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"ordenapp/internal/domain"
	"ordenapp/internal/events"
	"ordenapp/internal/repository"
	"ordenapp/internal/usecase/interfaces"
)

const eventPublishTimeout = 5 * time.Second

// CreateOrderInput holds the data needed to open an order
type CreateOrderInput struct {
	ClientID                int64   `json:"clientId"`
	EquipmentIDs            []int64 `json:"equipmentIds"`
	ServiceTypeID           int64   `json:"serviceTypeId"`
	Priority                string  `json:"priority"`
	Origin                  string  `json:"origin"`
	InitialDescription      string  `json:"initialDescription"`
	RequiresClientSignature bool    `json:"requiresClientSignature"`
	CreatedBy               int64   `json:"-"`
}

// UpdateOrderInput carries the descriptive fields that may change before closure.
// ExpectedVersion, when set, must match the stored version.
type UpdateOrderInput struct {
	InitialDescription      *string `json:"initialDescription,omitempty"`
	TechnicianRemarks       *string `json:"technicianRemarks,omitempty"`
	Priority                *string `json:"priority,omitempty"`
	RequiresClientSignature *bool   `json:"requiresClientSignature,omitempty"`
	ExpectedVersion         int     `json:"version,omitempty"`
}

// IOrderUseCase exposes order lifecycle operations
type IOrderUseCase interface {
	Create(ctx context.Context, in CreateOrderInput) (*domain.ServiceOrder, error)
	List(ctx context.Context, filter repository.OrderFilter) ([]domain.ServiceOrder, error)
	Get(ctx context.Context, id int64) (*domain.ServiceOrder, error)
	Update(ctx context.Context, id, actor int64, in UpdateOrderInput) (*domain.ServiceOrder, error)
	Assign(ctx context.Context, id, actor, technicianID int64) (*domain.ServiceOrder, error)
	Schedule(ctx context.Context, id, actor int64, start, end time.Time) (*domain.ServiceOrder, error)
	Start(ctx context.Context, id, actor int64) (*domain.ServiceOrder, error)
	Cancel(ctx context.Context, id, actor int64, reason string) (*domain.ServiceOrder, error)
	ChangeServiceType(ctx context.Context, id, actor, serviceTypeID int64) ([]domain.ActivityPlanItem, error)
	History(ctx context.Context, id int64) ([]domain.OrderStatusChange, error)
	Plan(ctx context.Context, id int64) ([]domain.ActivityPlanItem, error)
	AddPlanItem(ctx context.Context, id, actor, activityID int64) (*domain.ActivityPlanItem, error)
	UpdatePlanItem(ctx context.Context, id, actor int64, result domain.PlanItemResult) (*domain.ActivityPlanItem, error)
	PreviewPlan(ctx context.Context, serviceTypeID int64) ([]domain.ActivityPlanItem, error)
}

// OrderUseCase drives the order state machine and plan instantiation
type OrderUseCase struct {
	repos     *repository.Repositories
	publisher interfaces.IEventPublisher
	now       func() time.Time
}

var _ IOrderUseCase = (*OrderUseCase)(nil)

// NewOrderUseCase creates the order use case; publisher may be nil
func NewOrderUseCase(repos *repository.Repositories, publisher interfaces.IEventPublisher) *OrderUseCase {
	return &OrderUseCase{
		repos:     repos,
		publisher: publisher,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (u *OrderUseCase) Create(ctx context.Context, in CreateOrderInput) (*domain.ServiceOrder, error) {
	if in.ClientID <= 0 {
		return nil, domain.NewValidationError("clientId", "client is required")
	}
	if len(in.EquipmentIDs) == 0 {
		return nil, domain.NewValidationError("equipmentIds", "at least one equipment is required")
	}
	if in.ServiceTypeID <= 0 {
		return nil, domain.NewValidationError("serviceTypeId", "service type is required")
	}
	if in.Priority == "" {
		in.Priority = domain.PriorityNormal
	}
	if !domain.ValidPriority(in.Priority) {
		return nil, domain.NewValidationError("priority", fmt.Sprintf("unknown priority %q", in.Priority))
	}
	if in.Origin == "" {
		in.Origin = domain.OriginInternal
	}
	if !domain.ValidOrigin(in.Origin) {
		return nil, domain.NewValidationError("origin", fmt.Sprintf("unknown origin %q", in.Origin))
	}

	client, err := u.repos.Clients.GetByID(ctx, in.ClientID)
	if err != nil {
		return nil, err
	}
	if client == nil {
		return nil, domain.NewValidationError("clientId", "client not found")
	}

	lines := make([]domain.OrderEquipment, 0, len(in.EquipmentIDs))
	seen := make(map[int64]bool, len(in.EquipmentIDs))
	for i, eqID := range in.EquipmentIDs {
		if seen[eqID] {
			return nil, domain.NewValidationError("equipmentIds", fmt.Sprintf("equipment %d is listed twice", eqID))
		}
		seen[eqID] = true
		eq, err := u.repos.Equipment.GetByID(ctx, eqID)
		if err != nil {
			return nil, err
		}
		if eq == nil || eq.ClientID != client.ID {
			return nil, domain.NewValidationError("equipmentIds", fmt.Sprintf("equipment %d does not belong to the client", eqID))
		}
		lines = append(lines, domain.OrderEquipment{EquipmentID: eq.ID, Equipment: eq, Sequence: i + 1, SystemLabel: eq.Description})
	}

	defs, err := u.resolveCatalog(ctx, in.ServiceTypeID)
	if err != nil {
		return nil, err
	}

	order := &domain.ServiceOrder{
		ClientID:                client.ID,
		Equipment:               lines,
		ServiceTypeID:           in.ServiceTypeID,
		Priority:                in.Priority,
		Origin:                  in.Origin,
		Status:                  domain.OrderStatusPending,
		InitialDescription:      strings.TrimSpace(in.InitialDescription),
		RequiresClientSignature: in.RequiresClientSignature,
		CreatedBy:               in.CreatedBy,
	}

	err = u.repos.Tx.WithinTx(ctx, func(tx *repository.Repositories) error {
		if err := tx.Orders.Create(ctx, order); err != nil {
			return err
		}
		return tx.Plans.Insert(ctx, domain.BuildPlan(order.ID, defs, 1))
	})
	if err != nil {
		return nil, err
	}

	log.Printf("[order][usecase] created order_id=%d number=%s activities=%d", order.ID, order.Number, len(defs))
	u.publishStatus(ctx, order, in.CreatedBy)
	return u.Get(ctx, order.ID)
}

// resolveCatalog returns the active activities of an active service type
func (u *OrderUseCase) resolveCatalog(ctx context.Context, serviceTypeID int64) ([]domain.ActivityDefinition, error) {
	st, err := u.repos.Catalog.GetServiceType(ctx, serviceTypeID)
	if err != nil {
		return nil, err
	}
	if st == nil {
		return nil, fmt.Errorf("service type %d: %w", serviceTypeID, domain.ErrNotFound)
	}
	if !st.Active {
		return nil, domain.NewValidationError("serviceTypeId", "service type is inactive")
	}
	return u.repos.Catalog.ListActivities(ctx, serviceTypeID)
}

func (u *OrderUseCase) List(ctx context.Context, filter repository.OrderFilter) ([]domain.ServiceOrder, error) {
	if filter.Status != "" {
		if _, ok := statusSet[filter.Status]; !ok {
			return nil, domain.NewValidationError("status", fmt.Sprintf("unknown status %q", filter.Status))
		}
	}
	return u.repos.Orders.List(ctx, filter)
}

var statusSet = map[string]struct{}{
	domain.OrderStatusPending:    {},
	domain.OrderStatusAssigned:   {},
	domain.OrderStatusScheduled:  {},
	domain.OrderStatusInProgress: {},
	domain.OrderStatusCompleted:  {},
	domain.OrderStatusCancelled:  {},
}

// Get returns an order with its client and technician
func (u *OrderUseCase) Get(ctx context.Context, id int64) (*domain.ServiceOrder, error) {
	o, err := loadOrder(ctx, u.repos, id)
	if err != nil {
		return nil, err
	}
	if o.Client, err = u.repos.Clients.GetByID(ctx, o.ClientID); err != nil {
		return nil, err
	}
	if o.HasTechnician() {
		if o.Technician, err = u.repos.Users.GetByID(ctx, *o.TechnicianID); err != nil {
			return nil, err
		}
	}
	return o, nil
}

func loadOrder(ctx context.Context, repos *repository.Repositories, id int64) (*domain.ServiceOrder, error) {
	o, err := repos.Orders.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if o == nil {
		return nil, fmt.Errorf("%d: %w", id, domain.ErrOrderNotFound)
	}
	return o, nil
}

func (u *OrderUseCase) Update(ctx context.Context, id, actor int64, in UpdateOrderInput) (*domain.ServiceOrder, error) {
	o, err := loadOrder(ctx, u.repos, id)
	if err != nil {
		return nil, err
	}
	if err := domain.CheckEditable(o); err != nil {
		return nil, err
	}
	if in.ExpectedVersion > 0 && in.ExpectedVersion != o.Version {
		return nil, fmt.Errorf("order %d is at version %d: %w", o.ID, o.Version, domain.ErrConcurrentModification)
	}

	if in.Priority != nil {
		if !domain.ValidPriority(*in.Priority) {
			return nil, domain.NewValidationError("priority", fmt.Sprintf("unknown priority %q", *in.Priority))
		}
		o.Priority = *in.Priority
	}
	if in.InitialDescription != nil {
		o.InitialDescription = strings.TrimSpace(*in.InitialDescription)
	}
	if in.TechnicianRemarks != nil {
		o.TechnicianRemarks = strings.TrimSpace(*in.TechnicianRemarks)
	}
	if in.RequiresClientSignature != nil {
		o.RequiresClientSignature = *in.RequiresClientSignature
	}
	o.UpdatedBy = actor

	if err := u.repos.Orders.Update(ctx, o); err != nil {
		return nil, err
	}
	return u.Get(ctx, o.ID)
}

// transition applies mutate to a fresh copy of the order and persists it with
// a status history row in one transaction
func (u *OrderUseCase) transition(ctx context.Context, id, actor int64, notes string, mutate func(o *domain.ServiceOrder) error) (*domain.ServiceOrder, error) {
	o, err := loadOrder(ctx, u.repos, id)
	if err != nil {
		return nil, err
	}
	if err := mutate(o); err != nil {
		return nil, err
	}
	o.UpdatedBy = actor

	err = u.repos.Tx.WithinTx(ctx, func(tx *repository.Repositories) error {
		if err := tx.Orders.Update(ctx, o); err != nil {
			return err
		}
		return tx.Orders.CreateStatusHistory(ctx, &domain.OrderStatusChange{
			OrderID:   o.ID,
			Status:    o.Status,
			ChangedBy: actor,
			Notes:     notes,
		})
	})
	if err != nil {
		return nil, err
	}

	log.Printf("[order][usecase] transition order_id=%d status=%s actor=%d", o.ID, o.Status, actor)
	u.publishStatus(ctx, o, actor)
	return u.Get(ctx, o.ID)
}

func (u *OrderUseCase) Assign(ctx context.Context, id, actor, technicianID int64) (*domain.ServiceOrder, error) {
	if technicianID <= 0 {
		return nil, domain.NewValidationError("technicianId", "technician is required")
	}
	tech, err := u.repos.Users.GetByID(ctx, technicianID)
	if err != nil {
		return nil, err
	}
	if tech == nil || tech.Role != domain.RoleTechnician {
		return nil, domain.NewValidationError("technicianId", "user is not a technician")
	}

	return u.transition(ctx, id, actor, "Técnico asignado: "+tech.Name, func(o *domain.ServiceOrder) error {
		return domain.Assign(o, technicianID, u.now())
	})
}

func (u *OrderUseCase) Schedule(ctx context.Context, id, actor int64, start, end time.Time) (*domain.ServiceOrder, error) {
	notes := "Visita programada para " + start.Format("02/01/2006 15:04")
	return u.transition(ctx, id, actor, notes, func(o *domain.ServiceOrder) error {
		return domain.Schedule(o, start, end, u.now())
	})
}

// Start is idempotent: an order already in progress is returned unchanged
func (u *OrderUseCase) Start(ctx context.Context, id, actor int64) (*domain.ServiceOrder, error) {
	o, err := loadOrder(ctx, u.repos, id)
	if err != nil {
		return nil, err
	}
	if o.Status == domain.OrderStatusInProgress {
		return u.Get(ctx, id)
	}

	return u.transition(ctx, id, actor, "Ejecución iniciada", func(o *domain.ServiceOrder) error {
		_, err := domain.Start(o, u.now())
		return err
	})
}

func (u *OrderUseCase) Cancel(ctx context.Context, id, actor int64, reason string) (*domain.ServiceOrder, error) {
	return u.transition(ctx, id, actor, strings.TrimSpace(reason), func(o *domain.ServiceOrder) error {
		return domain.Cancel(o, reason, u.now())
	})
}

// ChangeServiceType re-instantiates the plan from another service type.
// Completed items are kept; pending ones are replaced.
func (u *OrderUseCase) ChangeServiceType(ctx context.Context, id, actor, serviceTypeID int64) ([]domain.ActivityPlanItem, error) {
	o, err := loadOrder(ctx, u.repos, id)
	if err != nil {
		return nil, err
	}
	if serviceTypeID <= 0 {
		return nil, domain.NewValidationError("serviceTypeId", "service type is required")
	}
	defs, err := u.resolveCatalog(ctx, serviceTypeID)
	if err != nil {
		return nil, err
	}
	current, err := u.repos.Plans.ListByOrder(ctx, o.ID)
	if err != nil {
		return nil, err
	}

	change, err := domain.ReplacePlan(o, current, defs)
	if err != nil {
		return nil, err
	}

	o.ServiceTypeID = serviceTypeID
	o.UpdatedBy = actor
	err = u.repos.Tx.WithinTx(ctx, func(tx *repository.Repositories) error {
		if err := tx.Orders.Update(ctx, o); err != nil {
			return err
		}
		if err := tx.Plans.Delete(ctx, change.RemoveIDs); err != nil {
			return err
		}
		return tx.Plans.Insert(ctx, change.Add)
	})
	if err != nil {
		return nil, err
	}

	log.Printf("[order][usecase] service type changed order_id=%d service_type_id=%d removed=%d added=%d",
		o.ID, serviceTypeID, len(change.RemoveIDs), len(change.Add))
	return u.repos.Plans.ListByOrder(ctx, o.ID)
}

func (u *OrderUseCase) History(ctx context.Context, id int64) ([]domain.OrderStatusChange, error) {
	if _, err := loadOrder(ctx, u.repos, id); err != nil {
		return nil, err
	}
	return u.repos.Orders.GetStatusHistory(ctx, id)
}

func (u *OrderUseCase) Plan(ctx context.Context, id int64) ([]domain.ActivityPlanItem, error) {
	if _, err := loadOrder(ctx, u.repos, id); err != nil {
		return nil, err
	}
	return u.repos.Plans.ListByOrder(ctx, id)
}

// AddPlanItem appends a non-mandatory activity chosen by the technician in the field
func (u *OrderUseCase) AddPlanItem(ctx context.Context, id, actor, activityID int64) (*domain.ActivityPlanItem, error) {
	def, err := u.repos.Catalog.GetActivity(ctx, activityID)
	if err != nil {
		return nil, err
	}
	if def == nil {
		return nil, domain.NewValidationError("activityId", "activity not found")
	}

	var item domain.ActivityPlanItem
	err = u.repos.Tx.WithinTx(ctx, func(tx *repository.Repositories) error {
		o, err := loadOrder(ctx, tx, id)
		if err != nil {
			return err
		}
		current, err := tx.Plans.ListByOrder(ctx, o.ID)
		if err != nil {
			return err
		}
		if item, err = domain.NewMobileItem(o, current, *def); err != nil {
			return err
		}
		items := []domain.ActivityPlanItem{item}
		if err := tx.Plans.Insert(ctx, items); err != nil {
			return err
		}
		item = items[0]
		return touchOrder(ctx, tx, o, actor)
	})
	if err != nil {
		return nil, err
	}

	log.Printf("[order][usecase] mobile plan item added order_id=%d item_id=%d actor=%d", id, item.ID, actor)
	return &item, nil
}

// UpdatePlanItem records execution progress. The order status is read inside the
// write transaction so an item cannot change after the order is closed, and the
// order version moves with the item so an in-flight finalization sees the edit.
func (u *OrderUseCase) UpdatePlanItem(ctx context.Context, id, actor int64, result domain.PlanItemResult) (*domain.ActivityPlanItem, error) {
	var item *domain.ActivityPlanItem
	err := u.repos.Tx.WithinTx(ctx, func(tx *repository.Repositories) error {
		o, err := loadOrder(ctx, tx, id)
		if err != nil {
			return err
		}
		item, err = tx.Plans.GetByID(ctx, result.ItemID)
		if err != nil {
			return err
		}
		if item == nil || item.OrderID != o.ID {
			return fmt.Errorf("plan item %d: %w", result.ItemID, domain.ErrNotFound)
		}
		if err := domain.ApplyResult(o, item, result, u.now()); err != nil {
			return err
		}
		if err := tx.Plans.Update(ctx, item); err != nil {
			return err
		}
		return touchOrder(ctx, tx, o, actor)
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

// touchOrder bumps the order version inside tx. Plan edits go through it so a
// finalization that read the plan earlier fails its versioned commit.
func touchOrder(ctx context.Context, tx *repository.Repositories, o *domain.ServiceOrder, actor int64) error {
	if actor != 0 {
		o.UpdatedBy = actor
	}
	return tx.Orders.Update(ctx, o)
}

// PreviewPlan resolves the plan a new order of the service type would receive
func (u *OrderUseCase) PreviewPlan(ctx context.Context, serviceTypeID int64) ([]domain.ActivityPlanItem, error) {
	defs, err := u.resolveCatalog(ctx, serviceTypeID)
	if err != nil {
		return nil, err
	}
	return domain.BuildPlan(0, defs, 1), nil
}

// publishStatus emits a status change event without failing the caller
func (u *OrderUseCase) publishStatus(ctx context.Context, o *domain.ServiceOrder, actor int64) {
	if u.publisher == nil {
		return
	}
	evt := events.NewOrderEvent(events.EventOrderStatusChanged, u.now())
	evt.OrderID = o.ID
	evt.OrderNumber = o.Number
	evt.Status = o.Status
	evt.ClientID = o.ClientID
	evt.ChangedBy = actor

	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), eventPublishTimeout)
	defer cancel()
	if err := u.publisher.Publish(pubCtx, evt); err != nil {
		log.Printf("[order][usecase] event publish failed order_id=%d status=%s err=%v", o.ID, o.Status, err)
	}
}

// isConflict reports errors the caller may resolve by retrying the whole operation
func isConflict(err error) bool {
	return errors.Is(err, domain.ErrConcurrentModification)
}
