package sqlite

import (
	"context"
	"fmt"

	"ordenapp/internal/domain"
)

// SampleData holds the identifiers created by SeedSampleData
type SampleData struct {
	AdminID      int64
	TechnicianID int64
	ClientID     int64
	EquipmentIDs []int64
	// Preventive generator maintenance: 3 mandatory and 2 optional activities
	ServiceTypeID int64
	// Corrective pump service, used when an order changes service type
	AltServiceTypeID int64
}

// SeedSampleData creates a small catalog, one client with two units and two users
func SeedSampleData(ctx context.Context, db *DB) (*SampleData, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin seed transaction: %w", err)
	}
	defer tx.Rollback()

	users := &UserRepo{q: tx}
	clients := &ClientRepo{q: tx}
	equipment := &EquipmentRepo{q: tx}
	catalog := &CatalogRepo{q: tx}

	var data SampleData

	admin := &domain.User{Email: "admin@ordenapp.local", Name: "Administrador", Role: domain.RoleAdmin}
	if err := users.Create(ctx, admin); err != nil {
		return nil, err
	}
	tech := &domain.User{Email: "tecnico@ordenapp.local", Name: "Juan Pérez", Phone: "+56 9 5555 0101", Role: domain.RoleTechnician}
	if err := users.Create(ctx, tech); err != nil {
		return nil, err
	}
	data.AdminID, data.TechnicianID = admin.ID, tech.ID

	client := &domain.Client{
		Name:    "Hospital Regional",
		TaxID:   "61.602.000-0",
		Email:   "mantenimiento@hospital.example",
		Phone:   "+56 2 2555 0100",
		Address: "Av. Principal 1000",
	}
	if err := clients.Create(ctx, client); err != nil {
		return nil, err
	}
	data.ClientID = client.ID

	units := []domain.Equipment{
		{ClientID: client.ID, Code: "GE-001", Description: "Generador 500 kVA", Brand: "Cummins", Model: "C500D5", SerialNumber: "K150012345"},
		{ClientID: client.ID, Code: "BB-002", Description: "Bomba de agua potable", Brand: "Grundfos", Model: "CR 32-4", SerialNumber: "GF-99812"},
	}
	for i := range units {
		if err := equipment.Create(ctx, &units[i]); err != nil {
			return nil, err
		}
		data.EquipmentIDs = append(data.EquipmentIDs, units[i].ID)
	}

	groups := []*domain.SystemGroup{
		{Name: "Motor", DisplayOrder: 1},
		{Name: "Eléctrico", DisplayOrder: 2},
		{Name: "Refrigeración", DisplayOrder: 3},
	}
	for _, g := range groups {
		if err := catalog.CreateSystemGroup(ctx, g); err != nil {
			return nil, err
		}
	}

	minV, maxV := 380.0, 420.0
	voltage := &domain.MeasurementParameter{Name: "Voltaje de salida", Unit: "V", MinValue: &minV, MaxValue: &maxV}
	if err := catalog.CreateParameter(ctx, voltage); err != nil {
		return nil, err
	}

	preventive := &domain.ServiceType{Code: "MP-GEN", Name: "Mantenimiento preventivo generador", Active: true}
	corrective := &domain.ServiceType{Code: "MC-BOM", Name: "Mantenimiento correctivo bomba", Active: true}
	for _, st := range []*domain.ServiceType{preventive, corrective} {
		if err := catalog.CreateServiceType(ctx, st); err != nil {
			return nil, err
		}
	}
	data.ServiceTypeID, data.AltServiceTypeID = preventive.ID, corrective.ID

	activities := []domain.ActivityDefinition{
		{ServiceTypeID: preventive.ID, Group: *groups[2], Name: "Revisar nivel de refrigerante", Kind: domain.ActivityKindTask, ExecutionOrder: 1, Mandatory: true, Active: true},
		{ServiceTypeID: preventive.ID, Group: *groups[0], Name: "Revisar nivel de aceite", Kind: domain.ActivityKindTask, ExecutionOrder: 1, Mandatory: true, Active: true},
		{ServiceTypeID: preventive.ID, Group: *groups[0], Name: "Cambio de filtro de aire", Kind: domain.ActivityKindTask, ExecutionOrder: 2, Active: true},
		{ServiceTypeID: preventive.ID, Group: *groups[1], Name: "Medir voltaje de salida", Kind: domain.ActivityKindMeasurement, ExecutionOrder: 1, Mandatory: true, Active: true, Parameter: voltage},
		{ServiceTypeID: preventive.ID, Group: *groups[1], Name: "Inspección de tablero", Kind: domain.ActivityKindTask, ExecutionOrder: 2, Active: true},
		{ServiceTypeID: preventive.ID, Group: *groups[1], Name: "Prueba de transferencia (retirada)", Kind: domain.ActivityKindTask, ExecutionOrder: 3, Active: false},
		{ServiceTypeID: corrective.ID, Group: *groups[0], Name: "Diagnóstico de falla", Kind: domain.ActivityKindTask, ExecutionOrder: 1, Mandatory: true, Active: true},
		{ServiceTypeID: corrective.ID, Group: *groups[0], Name: "Reemplazo de sello mecánico", Kind: domain.ActivityKindTask, ExecutionOrder: 2, Active: true},
	}
	for i := range activities {
		if err := catalog.CreateActivity(ctx, &activities[i]); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit seed data: %w", err)
	}
	return &data, nil
}
