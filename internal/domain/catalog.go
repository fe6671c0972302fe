package domain

// ServiceType is a catalog entry (e.g. preventive maintenance of a generator)
type ServiceType struct {
	ID     int64  `json:"id"`
	Code   string `json:"code"`
	Name   string `json:"name"`
	Active bool   `json:"active"`
}

// SystemGroup groups activities by equipment subsystem (engine, electrical, cooling...)
type SystemGroup struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	DisplayOrder int    `json:"displayOrder"`
}

// MeasurementParameter describes a value a technician must read on site
type MeasurementParameter struct {
	ID       int64    `json:"id"`
	Name     string   `json:"name"`
	Unit     string   `json:"unit"`
	MinValue *float64 `json:"minValue,omitempty"`
	MaxValue *float64 `json:"maxValue,omitempty"`
}

// ActivityDefinition is a catalog activity required by a service type
type ActivityDefinition struct {
	ID             int64                 `json:"id"`
	ServiceTypeID  int64                 `json:"serviceTypeId"`
	Group          SystemGroup           `json:"group"`
	Name           string                `json:"name"`
	Kind           string                `json:"kind"`
	ExecutionOrder int                   `json:"executionOrder"`
	Mandatory      bool                  `json:"mandatory"`
	Active         bool                  `json:"active"`
	Parameter      *MeasurementParameter `json:"parameter,omitempty"`
}
