package domain

import (
	"errors"
	"fmt"
)

var (
	ErrValidation             = errors.New("validation error")
	ErrNotFound               = errors.New("not found")
	ErrOrderNotFound          = fmt.Errorf("order %w", ErrNotFound)
	ErrInvalidTransition      = errors.New("invalid status transition")
	ErrIllegalFinalization    = errors.New("order cannot be finalized in its current status")
	ErrOrderLocked            = errors.New("order is locked")
	ErrPlanFrozen             = errors.New("activity plan is frozen")
	ErrConcurrentModification = errors.New("order was modified concurrently")
	ErrFinalizationRejected   = errors.New("finalization rejected")
	ErrRenderingFailed        = errors.New("document rendering failed")
	ErrUploadFailed           = errors.New("document upload failed")
	ErrPersistenceFailure     = errors.New("persistence failure")
	ErrUnsupportedPhase       = errors.New("unsupported evidence phase")
	ErrUnsupportedRole        = errors.New("unsupported signer role")
)

// ValidationError reports an invalid input field
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// NewValidationError creates a ValidationError for field
func NewValidationError(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// FinalizationRejectedError carries the reasons an order failed the finalization precondition
type FinalizationRejectedError struct {
	Reasons []string
}

func (e *FinalizationRejectedError) Error() string {
	return fmt.Sprintf("finalization rejected: %s", e.Reason())
}

// Reason joins all rejection reasons
func (e *FinalizationRejectedError) Reason() string {
	out := ""
	for i, r := range e.Reasons {
		if i > 0 {
			out += "; "
		}
		out += r
	}
	return out
}

func (e *FinalizationRejectedError) Is(target error) bool {
	return target == ErrFinalizationRejected
}

// TransitionError reports a status change the state machine does not allow.
// It matches ErrInvalidTransition, plus ErrOrderLocked when the order is terminal
// and ErrIllegalFinalization when the target is COMPLETED.
type TransitionError struct {
	From string
	To   string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid status transition from %s to %s", e.From, e.To)
}

func (e *TransitionError) Is(target error) bool {
	switch target {
	case ErrInvalidTransition:
		return true
	case ErrOrderLocked:
		return IsTerminal(e.From)
	case ErrIllegalFinalization:
		return e.To == OrderStatusCompleted
	}
	return false
}
