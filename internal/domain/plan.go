package domain

import (
	"fmt"
	"sort"
	"time"
)

// PlanChange describes how an order plan must be rewritten
type PlanChange struct {
	RemoveIDs []int64
	Add       []ActivityPlanItem
}

// PlanItemResult is the technician's execution result for one plan item
type PlanItemResult struct {
	ItemID        int64    `json:"itemId"`
	Completed     *bool    `json:"completed,omitempty"`
	MeasuredValue *float64 `json:"measuredValue,omitempty"`
	Observation   *string  `json:"observation,omitempty"`
}

// FinalizationRequirements are the configurable parts of the finalization precondition
type FinalizationRequirements struct {
	EvidencePhases []string
}

// SortActivities returns the active definitions ordered by system group display
// order, then execution order, then id.
func SortActivities(defs []ActivityDefinition) []ActivityDefinition {
	out := make([]ActivityDefinition, 0, len(defs))
	for _, d := range defs {
		if d.Active {
			out = append(out, d)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Group.DisplayOrder != b.Group.DisplayOrder {
			return a.Group.DisplayOrder < b.Group.DisplayOrder
		}
		if a.ExecutionOrder != b.ExecutionOrder {
			return a.ExecutionOrder < b.ExecutionOrder
		}
		return a.ID < b.ID
	})
	return out
}

// BuildPlan expands catalog activities into plan items numbered from firstSequence
func BuildPlan(orderID int64, defs []ActivityDefinition, firstSequence int) []ActivityPlanItem {
	if firstSequence < 1 {
		firstSequence = 1
	}
	sorted := SortActivities(defs)
	items := make([]ActivityPlanItem, 0, len(sorted))
	for i, d := range sorted {
		items = append(items, PlanItemFromActivity(orderID, d, firstSequence+i, PlanOriginAdmin))
	}
	return items
}

// PlanItemFromActivity creates a pending plan item for a catalog activity
func PlanItemFromActivity(orderID int64, d ActivityDefinition, sequence int, origin string) ActivityPlanItem {
	item := ActivityPlanItem{
		OrderID:      orderID,
		ActivityID:   d.ID,
		ActivityName: d.Name,
		Kind:         d.Kind,
		SystemGroup:  d.Group.Name,
		Sequence:     sequence,
		Mandatory:    d.Mandatory,
		Origin:       origin,
	}
	if item.Kind == "" {
		item.Kind = ActivityKindTask
	}
	if d.Parameter != nil {
		pid := d.Parameter.ID
		item.ParameterID = &pid
		item.Unit = d.Parameter.Unit
		item.MinValue = d.Parameter.MinValue
		item.MaxValue = d.Parameter.MaxValue
	}
	return item
}

// NextSequence returns the sequence following the highest one in items
func NextSequence(items []ActivityPlanItem) int {
	max := 0
	for _, it := range items {
		if it.Sequence > max {
			max = it.Sequence
		}
	}
	return max + 1
}

// ReplacePlan computes the plan rewrite needed after a service type change.
// Completed items are kept and the new activities are numbered after them.
func ReplacePlan(o *ServiceOrder, current []ActivityPlanItem, defs []ActivityDefinition) (PlanChange, error) {
	switch o.Status {
	case OrderStatusCompleted:
		return PlanChange{}, ErrPlanFrozen
	case OrderStatusCancelled:
		return PlanChange{}, ErrOrderLocked
	}

	var kept []ActivityPlanItem
	var change PlanChange
	for _, it := range current {
		if it.Completed {
			kept = append(kept, it)
			continue
		}
		change.RemoveIDs = append(change.RemoveIDs, it.ID)
	}
	if o.Status == OrderStatusInProgress && len(kept) > 0 {
		return PlanChange{}, ErrPlanFrozen
	}

	change.Add = BuildPlan(o.ID, defs, NextSequence(kept))
	return change, nil
}

// CheckPlanExecutable verifies plan items of the order may be executed or added
func CheckPlanExecutable(o *ServiceOrder) error {
	switch o.Status {
	case OrderStatusInProgress:
		return nil
	case OrderStatusCompleted:
		return ErrPlanFrozen
	case OrderStatusCancelled:
		return ErrOrderLocked
	}
	return NewValidationError("status", "plan items can only be executed while the order is in progress")
}

// NewMobileItem creates an extra plan item added from the field
func NewMobileItem(o *ServiceOrder, current []ActivityPlanItem, d ActivityDefinition) (ActivityPlanItem, error) {
	if err := CheckPlanExecutable(o); err != nil {
		return ActivityPlanItem{}, err
	}
	if !d.Active {
		return ActivityPlanItem{}, NewValidationError("activityId", "activity is not active")
	}
	item := PlanItemFromActivity(o.ID, d, NextSequence(current), PlanOriginMobile)
	item.Mandatory = false
	return item, nil
}

// ApplyResult records an execution result on a single plan item
func ApplyResult(o *ServiceOrder, item *ActivityPlanItem, r PlanItemResult, now time.Time) error {
	if err := CheckPlanExecutable(o); err != nil {
		return err
	}
	if r.MeasuredValue != nil {
		if item.Kind != ActivityKindMeasurement {
			return NewValidationError("measuredValue", fmt.Sprintf("item %d does not take measurements", item.Sequence))
		}
		v := *r.MeasuredValue
		if item.MinValue != nil && item.MaxValue != nil && (v < *item.MinValue || v > *item.MaxValue) {
			return NewValidationError("measuredValue",
				fmt.Sprintf("value %g for item %d is outside [%g, %g]", v, item.Sequence, *item.MinValue, *item.MaxValue))
		}
		mv := v
		item.MeasuredValue = &mv
	}
	if r.Observation != nil {
		item.Observation = *r.Observation
	}
	if r.Completed != nil {
		if *r.Completed && item.Kind == ActivityKindMeasurement && item.MeasuredValue == nil {
			return NewValidationError("measuredValue", fmt.Sprintf("item %d requires a measured value", item.Sequence))
		}
		item.Completed = *r.Completed
		if item.Completed {
			done := now
			item.CompletedAt = &done
		} else {
			item.CompletedAt = nil
		}
	}
	return nil
}

// ApplyResults returns a copy of items with results applied.
// Only the items that changed are reported in changed.
func ApplyResults(o *ServiceOrder, items []ActivityPlanItem, results []PlanItemResult, now time.Time) (all []ActivityPlanItem, changed []ActivityPlanItem, err error) {
	all = make([]ActivityPlanItem, len(items))
	copy(all, items)
	index := make(map[int64]int, len(all))
	for i, it := range all {
		index[it.ID] = i
	}
	for _, r := range results {
		i, ok := index[r.ItemID]
		if !ok {
			return nil, nil, NewValidationError("results", fmt.Sprintf("plan item %d does not belong to order %d", r.ItemID, o.ID))
		}
		if err := ApplyResult(o, &all[i], r, now); err != nil {
			return nil, nil, err
		}
		changed = append(changed, all[i])
	}
	return all, changed, nil
}

// PendingMandatory returns mandatory items not yet completed
func PendingMandatory(items []ActivityPlanItem) []ActivityPlanItem {
	var pending []ActivityPlanItem
	for _, it := range items {
		if it.Mandatory && !it.Completed {
			pending = append(pending, it)
		}
	}
	return pending
}

// CheckFinalizationPreconditions validates an in-progress order can be closed.
// It returns a *FinalizationRejectedError listing every unmet requirement.
func CheckFinalizationPreconditions(o *ServiceOrder, items []ActivityPlanItem, evidence []Evidence, signatures []DigitalSignature, req FinalizationRequirements) error {
	var reasons []string

	for _, it := range PendingMandatory(items) {
		reasons = append(reasons, fmt.Sprintf("mandatory activity %d (%s) is not completed", it.Sequence, it.ActivityName))
	}

	var hasTech, hasClient bool
	for _, s := range signatures {
		switch s.Role {
		case SignerTechnician:
			hasTech = true
		case SignerClient:
			hasClient = true
		}
	}
	if !hasTech {
		reasons = append(reasons, "technician signature is missing")
	}
	if o.RequiresClientSignature && !hasClient {
		reasons = append(reasons, "client signature is required but missing")
	}

	phases := make(map[string]bool, len(evidence))
	for _, e := range evidence {
		phases[e.Phase] = true
	}
	for _, p := range req.EvidencePhases {
		if !phases[p] {
			reasons = append(reasons, fmt.Sprintf("evidence for phase %s is missing", p))
		}
	}

	if len(reasons) > 0 {
		return &FinalizationRejectedError{Reasons: reasons}
	}
	return nil
}
