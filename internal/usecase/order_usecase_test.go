package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"ordenapp/internal/domain"
	"ordenapp/internal/events"
	"ordenapp/internal/repository"
)

func TestOrderUseCase_CreateInstantiatesPlan(t *testing.T) {
	h := newHarness(t)
	o := h.createOrder(false)

	if o.Status != domain.OrderStatusPending || o.Number == "" || o.Version != 1 {
		t.Fatalf("unexpected order: %+v", o)
	}
	if o.Client == nil || o.Client.ID != h.data.ClientID {
		t.Fatalf("expected hydrated client, got %+v", o.Client)
	}

	items, err := h.orders.Plan(context.Background(), o.ID)
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	want := []string{
		"Revisar nivel de aceite",
		"Cambio de filtro de aire",
		"Medir voltaje de salida",
		"Inspección de tablero",
		"Revisar nivel de refrigerante",
	}
	if len(items) != len(want) {
		t.Fatalf("expected %d items, got %d", len(want), len(items))
	}
	for i, it := range items {
		if it.Sequence != i+1 || it.ActivityName != want[i] {
			t.Fatalf("item %d: got seq=%d name=%q", i, it.Sequence, it.ActivityName)
		}
		if it.Origin != domain.PlanOriginAdmin || it.Completed {
			t.Fatalf("item %d: unexpected origin or state: %+v", i, it)
		}
	}
	if items[2].Kind != domain.ActivityKindMeasurement || items[2].Unit != "V" || *items[2].MinValue != 380 {
		t.Fatalf("measurement item not copied from catalog: %+v", items[2])
	}

	if len(h.published) != 1 || h.published[0].EventType != events.EventOrderStatusChanged || h.published[0].Status != domain.OrderStatusPending {
		t.Fatalf("expected a PENDING status event, got %+v", h.published)
	}
}

func TestOrderUseCase_CreateValidation(t *testing.T) {
	h := newHarness(t)
	base := func() CreateOrderInput {
		return CreateOrderInput{
			ClientID:      h.data.ClientID,
			EquipmentIDs:  h.data.EquipmentIDs,
			ServiceTypeID: h.data.ServiceTypeID,
			CreatedBy:     h.data.AdminID,
		}
	}

	cases := []struct {
		name   string
		mutate func(in *CreateOrderInput)
		want   error
	}{
		{"no equipment", func(in *CreateOrderInput) { in.EquipmentIDs = nil }, domain.ErrValidation},
		{"unknown equipment", func(in *CreateOrderInput) { in.EquipmentIDs = []int64{999} }, domain.ErrValidation},
		{"duplicated equipment", func(in *CreateOrderInput) { in.EquipmentIDs = []int64{h.data.EquipmentIDs[0], h.data.EquipmentIDs[0]} }, domain.ErrValidation},
		{"bad priority", func(in *CreateOrderInput) { in.Priority = "CRITICA" }, domain.ErrValidation},
		{"bad origin", func(in *CreateOrderInput) { in.Origin = "PHONE" }, domain.ErrValidation},
		{"unknown client", func(in *CreateOrderInput) { in.ClientID = 999 }, domain.ErrValidation},
		{"unknown service type", func(in *CreateOrderInput) { in.ServiceTypeID = 999 }, domain.ErrNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := base()
			tc.mutate(&in)
			if _, err := h.orders.Create(context.Background(), in); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}

	orders, err := h.orders.List(context.Background(), repository.OrderFilter{})
	if err != nil || len(orders) != 0 {
		t.Fatalf("rejected inputs must not create orders, got %d (%v)", len(orders), err)
	}
}

func TestOrderUseCase_Lifecycle(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	o := h.createOrder(false)

	assigned, err := h.orders.Assign(ctx, o.ID, h.data.AdminID, h.data.TechnicianID)
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if assigned.Technician == nil || assigned.Technician.Name != "Juan Pérez" {
		t.Fatalf("expected technician on assigned order, got %+v", assigned.Technician)
	}

	start := time.Date(2026, 11, 3, 9, 0, 0, 0, time.UTC)
	if _, err := h.orders.Schedule(ctx, o.ID, h.data.AdminID, start, start.Add(-time.Hour)); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error for inverted window, got %v", err)
	}
	scheduled, err := h.orders.Schedule(ctx, o.ID, h.data.AdminID, start, start.Add(2*time.Hour))
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}
	if scheduled.ScheduledStart == nil || !scheduled.ScheduledStart.Equal(start) {
		t.Fatalf("unexpected scheduled start: %v", scheduled.ScheduledStart)
	}

	started, err := h.orders.Start(ctx, o.ID, h.data.TechnicianID)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if started.Status != domain.OrderStatusInProgress || started.StartedAt == nil {
		t.Fatalf("unexpected started order: %+v", started)
	}

	again, err := h.orders.Start(ctx, o.ID, h.data.TechnicianID)
	if err != nil {
		t.Fatalf("second start: %v", err)
	}
	if again.Version != started.Version || !again.StartedAt.Equal(*started.StartedAt) {
		t.Fatalf("start must be idempotent: version %d -> %d", started.Version, again.Version)
	}

	history, err := h.orders.History(ctx, o.ID)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	want := []string{domain.OrderStatusAssigned, domain.OrderStatusScheduled, domain.OrderStatusInProgress}
	if len(history) != len(want) {
		t.Fatalf("expected %d history rows, got %+v", len(want), history)
	}
	for i, c := range history {
		if c.Status != want[i] {
			t.Fatalf("history[%d]: expected %s, got %s", i, want[i], c.Status)
		}
	}

	statuses := make([]string, 0, len(h.published))
	for _, evt := range h.published {
		statuses = append(statuses, evt.Status)
	}
	if len(statuses) != 4 || statuses[3] != domain.OrderStatusInProgress {
		t.Fatalf("unexpected published statuses: %v", statuses)
	}
}

func TestOrderUseCase_AssignRules(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	o := h.createOrder(false)

	if _, err := h.orders.Assign(ctx, o.ID, h.data.AdminID, h.data.AdminID); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error for non technician, got %v", err)
	}
	if _, err := h.orders.Assign(ctx, o.ID, h.data.AdminID, h.data.TechnicianID); err != nil {
		t.Fatalf("assign: %v", err)
	}
	if _, err := h.orders.Assign(ctx, o.ID, h.data.AdminID, h.data.TechnicianID); err != nil {
		t.Fatalf("reassign: %v", err)
	}
	if _, err := h.orders.Cancel(ctx, o.ID, h.data.AdminID, "Equipo dado de baja"); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	_, err := h.orders.Assign(ctx, o.ID, h.data.AdminID, h.data.TechnicianID)
	if !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("expected invalid transition on cancelled order, got %v", err)
	}
	if _, err := h.orders.Cancel(ctx, o.ID, h.data.AdminID, "Segundo intento de cancelar"); !errors.Is(err, domain.ErrOrderLocked) {
		t.Fatalf("expected locked order, got %v", err)
	}
}

func TestOrderUseCase_Update(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	o := h.createOrder(false)

	priority := domain.PriorityUrgente
	desc := "Ruido anormal en el motor"
	updated, err := h.orders.Update(ctx, o.ID, h.data.AdminID, UpdateOrderInput{Priority: &priority, InitialDescription: &desc, ExpectedVersion: o.Version})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Priority != priority || updated.InitialDescription != desc || updated.Version != o.Version+1 {
		t.Fatalf("unexpected updated order: %+v", updated)
	}

	if _, err := h.orders.Update(ctx, o.ID, h.data.AdminID, UpdateOrderInput{Priority: &priority, ExpectedVersion: o.Version}); !errors.Is(err, domain.ErrConcurrentModification) {
		t.Fatalf("expected concurrent modification for stale version, got %v", err)
	}

	bad := "CRITICA"
	if _, err := h.orders.Update(ctx, o.ID, h.data.AdminID, UpdateOrderInput{Priority: &bad}); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}

	if _, err := h.orders.Cancel(ctx, o.ID, h.data.AdminID, "Cliente sin contrato vigente"); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if _, err := h.orders.Update(ctx, o.ID, h.data.AdminID, UpdateOrderInput{InitialDescription: &desc}); !errors.Is(err, domain.ErrOrderLocked) {
		t.Fatalf("expected locked order, got %v", err)
	}

	if _, err := h.orders.Get(ctx, 9999); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestOrderUseCase_ListFilters(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.createOrder(false)
	h.startedOrder(false)

	if _, err := h.orders.List(ctx, repository.OrderFilter{Status: "DONE"}); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error for unknown status, got %v", err)
	}
	pending, err := h.orders.List(ctx, repository.OrderFilter{Status: domain.OrderStatusPending})
	if err != nil || len(pending) != 1 {
		t.Fatalf("expected 1 pending order, got %d (%v)", len(pending), err)
	}
	mine, err := h.orders.List(ctx, repository.OrderFilter{TechnicianID: h.data.TechnicianID})
	if err != nil || len(mine) != 1 || mine[0].Status != domain.OrderStatusInProgress {
		t.Fatalf("expected the technician's order, got %+v (%v)", mine, err)
	}
}

func TestOrderUseCase_ChangeServiceType(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	o := h.createOrder(false)
	items, err := h.orders.ChangeServiceType(ctx, o.ID, h.data.AdminID, h.data.AltServiceTypeID)
	if err != nil {
		t.Fatalf("change service type: %v", err)
	}
	if len(items) != 2 || items[0].ActivityName != "Diagnóstico de falla" || items[0].Sequence != 1 {
		t.Fatalf("unexpected replaced plan: %+v", items)
	}
	if got := h.reload(o.ID).ServiceTypeID; got != h.data.AltServiceTypeID {
		t.Fatalf("service type not updated, got %d", got)
	}

	started := h.startedOrder(false)
	plan, _ := h.orders.Plan(ctx, started.ID)
	done := true
	if _, err := h.orders.UpdatePlanItem(ctx, started.ID, h.data.TechnicianID, domain.PlanItemResult{ItemID: plan[0].ID, Completed: &done}); err != nil {
		t.Fatalf("complete item: %v", err)
	}
	if _, err := h.orders.ChangeServiceType(ctx, started.ID, h.data.AdminID, h.data.AltServiceTypeID); !errors.Is(err, domain.ErrPlanFrozen) {
		t.Fatalf("expected frozen plan, got %v", err)
	}
}

func TestOrderUseCase_PlanExecution(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	pending := h.createOrder(false)
	pendingPlan, _ := h.orders.Plan(ctx, pending.ID)
	done := true
	if _, err := h.orders.UpdatePlanItem(ctx, pending.ID, h.data.AdminID, domain.PlanItemResult{ItemID: pendingPlan[0].ID, Completed: &done}); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error before start, got %v", err)
	}

	o := h.startedOrder(false)
	plan, _ := h.orders.Plan(ctx, o.ID)
	voltage := plan[2]

	if _, err := h.orders.UpdatePlanItem(ctx, o.ID, h.data.TechnicianID, domain.PlanItemResult{ItemID: voltage.ID, Completed: &done}); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected missing measurement error, got %v", err)
	}
	high := 421.0
	if _, err := h.orders.UpdatePlanItem(ctx, o.ID, h.data.TechnicianID, domain.PlanItemResult{ItemID: voltage.ID, MeasuredValue: &high}); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected out of range error, got %v", err)
	}
	ok := 398.5
	note := "Lectura estable"
	item, err := h.orders.UpdatePlanItem(ctx, o.ID, h.data.TechnicianID, domain.PlanItemResult{ItemID: voltage.ID, MeasuredValue: &ok, Completed: &done, Observation: &note})
	if err != nil {
		t.Fatalf("update item: %v", err)
	}
	if !item.Completed || *item.MeasuredValue != ok || item.Observation != note || item.CompletedAt == nil {
		t.Fatalf("unexpected item: %+v", item)
	}

	if _, err := h.orders.UpdatePlanItem(ctx, o.ID, h.data.TechnicianID, domain.PlanItemResult{ItemID: pendingPlan[0].ID, Completed: &done}); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found for item of another order, got %v", err)
	}
	if _, err := h.orders.UpdatePlanItem(ctx, o.ID, h.data.TechnicianID, domain.PlanItemResult{ItemID: 9999, Completed: &done}); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found for unknown item, got %v", err)
	}
}

func TestOrderUseCase_AddPlanItem(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	alt, err := h.repos.Catalog.ListActivities(ctx, h.data.AltServiceTypeID)
	if err != nil || len(alt) == 0 {
		t.Fatalf("list alt activities: %v", err)
	}
	activityID := alt[0].ID

	pending := h.createOrder(false)
	if _, err := h.orders.AddPlanItem(ctx, pending.ID, h.data.TechnicianID, activityID); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error before start, got %v", err)
	}
	if _, err := h.orders.AddPlanItem(ctx, pending.ID, h.data.TechnicianID, 9999); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error for unknown activity, got %v", err)
	}

	o := h.startedOrder(false)
	item, err := h.orders.AddPlanItem(ctx, o.ID, h.data.TechnicianID, activityID)
	if err != nil {
		t.Fatalf("add plan item: %v", err)
	}
	if item.ID == 0 || item.Sequence != 6 || item.Origin != domain.PlanOriginMobile || item.Mandatory {
		t.Fatalf("unexpected mobile item: %+v", item)
	}
	plan, _ := h.orders.Plan(ctx, o.ID)
	if len(plan) != 6 {
		t.Fatalf("expected 6 plan items, got %d", len(plan))
	}
}

func TestOrderUseCase_PreviewPlan(t *testing.T) {
	h := newHarness(t)
	items, err := h.orders.PreviewPlan(context.Background(), h.data.ServiceTypeID)
	if err != nil {
		t.Fatalf("preview: %v", err)
	}
	if len(items) != 5 || items[0].Sequence != 1 || items[4].Sequence != 5 {
		t.Fatalf("unexpected preview: %+v", items)
	}
	if _, err := h.orders.PreviewPlan(context.Background(), 9999); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

// staticCatalog serves service types that do not exist in the order database
type staticCatalog struct {
	types      map[int64]domain.ServiceType
	activities []domain.ActivityDefinition
}

func (c *staticCatalog) GetServiceType(_ context.Context, id int64) (*domain.ServiceType, error) {
	st, ok := c.types[id]
	if !ok {
		return nil, nil
	}
	return &st, nil
}

func (c *staticCatalog) ListActivities(_ context.Context, serviceTypeID int64) ([]domain.ActivityDefinition, error) {
	var out []domain.ActivityDefinition
	for _, a := range c.activities {
		if a.ServiceTypeID == serviceTypeID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (c *staticCatalog) GetActivity(_ context.Context, id int64) (*domain.ActivityDefinition, error) {
	for _, a := range c.activities {
		if a.ID == id {
			return &a, nil
		}
	}
	return nil, nil
}

func TestOrderUseCase_ExternalCatalog(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	motor := domain.SystemGroup{ID: 1, Name: "Motor", DisplayOrder: 1}
	catalog := &staticCatalog{
		types: map[int64]domain.ServiceType{
			9001: {ID: 9001, Code: "INS-REM", Name: "Inspección remota", Active: true},
			9002: {ID: 9002, Code: "MC-COMP", Name: "Correctivo compresor", Active: true},
		},
		activities: []domain.ActivityDefinition{
			{ID: 9101, ServiceTypeID: 9001, Group: motor, Name: "Lectura de horómetro", Kind: domain.ActivityKindTask, ExecutionOrder: 1, Mandatory: true, Active: true},
			{ID: 9201, ServiceTypeID: 9002, Group: motor, Name: "Cambio de válvulas", Kind: domain.ActivityKindTask, ExecutionOrder: 2, Active: true},
			{ID: 9202, ServiceTypeID: 9002, Group: motor, Name: "Prueba de presión", Kind: domain.ActivityKindTask, ExecutionOrder: 1, Mandatory: true, Active: true},
		},
	}
	repos := *h.repos
	repos.Catalog = catalog
	orders := NewOrderUseCase(&repos, h.publisher)

	o, err := orders.Create(ctx, CreateOrderInput{
		ClientID:      h.data.ClientID,
		EquipmentIDs:  h.data.EquipmentIDs[:1],
		ServiceTypeID: 9001,
		Priority:      domain.PriorityAlta,
		Origin:        domain.OriginScheduled,
		CreatedBy:     h.data.AdminID,
	})
	if err != nil {
		t.Fatalf("create with external catalog: %v", err)
	}
	items, err := orders.Plan(ctx, o.ID)
	if err != nil || len(items) != 1 || items[0].ActivityName != "Lectura de horómetro" {
		t.Fatalf("unexpected plan: %+v err=%v", items, err)
	}

	items, err = orders.ChangeServiceType(ctx, o.ID, h.data.AdminID, 9002)
	if err != nil {
		t.Fatalf("change service type: %v", err)
	}
	if len(items) != 2 || items[0].ActivityName != "Prueba de presión" || items[1].ActivityName != "Cambio de válvulas" {
		t.Fatalf("unexpected plan after change: %+v", items)
	}
	if stored := h.reload(o.ID); stored.ServiceTypeID != 9002 {
		t.Fatalf("expected service type 9002, got %d", stored.ServiceTypeID)
	}
}
