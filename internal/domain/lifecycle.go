package domain

import (
	"strings"
	"time"
	"unicode/utf8"
)

// MinCancellationReasonLength is the minimum number of characters of a cancellation reason
const MinCancellationReasonLength = 10

var allowedTransitions = map[string]map[string]struct{}{
	OrderStatusPending: {
		OrderStatusAssigned:  {},
		OrderStatusCancelled: {},
	},
	OrderStatusAssigned: {
		OrderStatusAssigned:   {},
		OrderStatusScheduled:  {},
		OrderStatusInProgress: {},
		OrderStatusCancelled:  {},
	},
	OrderStatusScheduled: {
		OrderStatusInProgress: {},
		OrderStatusCancelled:  {},
	},
	OrderStatusInProgress: {
		OrderStatusCompleted: {},
		OrderStatusCancelled: {},
	},
	OrderStatusCompleted: {},
	OrderStatusCancelled: {},
}

// IsTerminal reports whether status accepts no further changes
func IsTerminal(status string) bool {
	return status == OrderStatusCompleted || status == OrderStatusCancelled
}

// CanTransition reports whether the status graph has an edge from -> to
func CanTransition(from, to string) bool {
	next, ok := allowedTransitions[from]
	if !ok {
		return false
	}
	_, ok = next[to]
	return ok
}

// ValidateTransition returns a *TransitionError when from -> to is not allowed
func ValidateTransition(from, to string) error {
	if !CanTransition(from, to) {
		return &TransitionError{From: from, To: to}
	}
	return nil
}

// CheckEditable rejects changes to descriptive fields of a terminal order
func CheckEditable(o *ServiceOrder) error {
	if IsTerminal(o.Status) {
		return ErrOrderLocked
	}
	return nil
}

// Assign sets the technician of an order and moves it to ASSIGNED
func Assign(o *ServiceOrder, technicianID int64, now time.Time) error {
	if technicianID <= 0 {
		return NewValidationError("technicianId", "technician is required")
	}
	if err := ValidateTransition(o.Status, OrderStatusAssigned); err != nil {
		return err
	}
	id := technicianID
	o.TechnicianID = &id
	o.Technician = nil
	o.Status = OrderStatusAssigned
	o.UpdatedAt = now
	return nil
}

// Schedule fixes the visit window of an assigned order
func Schedule(o *ServiceOrder, start, end time.Time, now time.Time) error {
	if start.IsZero() {
		return NewValidationError("date", "scheduled date is required")
	}
	if !end.IsZero() && !end.After(start) {
		return NewValidationError("time", "scheduled end must be after start")
	}
	if err := ValidateTransition(o.Status, OrderStatusScheduled); err != nil {
		return err
	}
	if !o.HasTechnician() {
		return NewValidationError("technicianId", "a technician must be assigned before scheduling")
	}
	s := start
	o.ScheduledStart = &s
	if !end.IsZero() {
		e := end
		o.ScheduledEnd = &e
	} else {
		o.ScheduledEnd = nil
	}
	o.Status = OrderStatusScheduled
	o.UpdatedAt = now
	return nil
}

// Start moves an order to IN_PROGRESS and records the actual start.
// It reports false without error when the order is already in progress.
func Start(o *ServiceOrder, now time.Time) (bool, error) {
	if o.Status == OrderStatusInProgress {
		return false, nil
	}
	if err := ValidateTransition(o.Status, OrderStatusInProgress); err != nil {
		return false, err
	}
	if !o.HasTechnician() {
		return false, NewValidationError("technicianId", "a technician must be assigned before starting")
	}
	started := now
	o.StartedAt = &started
	o.Status = OrderStatusInProgress
	o.UpdatedAt = now
	return true, nil
}

// Cancel terminates an order irreversibly
func Cancel(o *ServiceOrder, reason string, now time.Time) error {
	reason = strings.TrimSpace(reason)
	if utf8.RuneCountInString(reason) < MinCancellationReasonLength {
		return NewValidationError("reason", "cancellation reason must have at least 10 characters")
	}
	if err := ValidateTransition(o.Status, OrderStatusCancelled); err != nil {
		return err
	}
	cancelled := now
	o.CancelledAt = &cancelled
	o.CancellationReason = reason
	o.Status = OrderStatusCancelled
	o.UpdatedAt = now
	return nil
}

// CheckFinalizable verifies the order status allows finalization
func CheckFinalizable(o *ServiceOrder) error {
	if o.Status == OrderStatusInProgress {
		return nil
	}
	if IsTerminal(o.Status) {
		return &TransitionError{From: o.Status, To: OrderStatusCompleted}
	}
	return ErrIllegalFinalization
}

// Complete moves an in-progress order to COMPLETED
func Complete(o *ServiceOrder, now time.Time) error {
	if err := CheckFinalizable(o); err != nil {
		return err
	}
	completed := now
	o.CompletedAt = &completed
	o.Status = OrderStatusCompleted
	o.UpdatedAt = now
	return nil
}
