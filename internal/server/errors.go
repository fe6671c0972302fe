package server

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"ordenapp/internal/domain"
)

// AppError is the JSON error body returned by the API
type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	HTTPStatus int    `json:"-"`
}

func (e *AppError) Error() string {
	return e.Code + ": " + e.Message
}

func newAppError(code, message string, status int) *AppError {
	return &AppError{Code: code, Message: message, HTTPStatus: status}
}

var (
	errUnauthorized   = newAppError("UNAUTHORIZED", "Missing or invalid token", http.StatusUnauthorized)
	errForbidden      = newAppError("FORBIDDEN", "Role not allowed", http.StatusForbidden)
	errInvalidPayload = newAppError("INVALID_REQUEST", "Invalid request payload", http.StatusBadRequest)
	errInvalidID      = newAppError("INVALID_REQUEST", "Invalid identifier", http.StatusBadRequest)
)

// mapError translates use case errors into API errors
func mapError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	// Re-assigning a closed order is reported as a transition error, not a lock
	var transition *domain.TransitionError
	if errors.As(err, &transition) && transition.To == domain.OrderStatusAssigned {
		return newAppError("INVALID_TRANSITION", err.Error(), http.StatusConflict)
	}

	switch {
	case errors.Is(err, domain.ErrValidation):
		return newAppError("VALIDATION_ERROR", err.Error(), http.StatusBadRequest)
	case errors.Is(err, domain.ErrUnsupportedPhase):
		return newAppError("UNSUPPORTED_PHASE", err.Error(), http.StatusBadRequest)
	case errors.Is(err, domain.ErrUnsupportedRole):
		return newAppError("UNSUPPORTED_ROLE", err.Error(), http.StatusBadRequest)
	case errors.Is(err, domain.ErrNotFound):
		return newAppError("NOT_FOUND", err.Error(), http.StatusNotFound)
	case errors.Is(err, domain.ErrConcurrentModification):
		return newAppError("CONCURRENT_MODIFICATION", "The order was modified by another request, reload and retry", http.StatusConflict)
	case errors.Is(err, domain.ErrOrderLocked):
		return newAppError("ORDER_LOCKED", err.Error(), http.StatusConflict)
	case errors.Is(err, domain.ErrIllegalFinalization):
		return newAppError("ILLEGAL_FINALIZATION", err.Error(), http.StatusConflict)
	case errors.Is(err, domain.ErrInvalidTransition):
		return newAppError("INVALID_TRANSITION", err.Error(), http.StatusConflict)
	case errors.Is(err, domain.ErrPlanFrozen):
		return newAppError("PLAN_FROZEN", err.Error(), http.StatusConflict)
	case errors.Is(err, domain.ErrFinalizationRejected):
		return newAppError("FINALIZATION_REJECTED", err.Error(), http.StatusUnprocessableEntity)
	case errors.Is(err, domain.ErrRenderingFailed):
		return newAppError("RENDERING_FAILED", "The service report could not be generated", http.StatusBadGateway)
	case errors.Is(err, domain.ErrUploadFailed):
		return newAppError("UPLOAD_FAILED", "The file could not be stored", http.StatusBadGateway)
	default:
		return newAppError("INTERNAL_ERROR", "An internal error occurred", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[http][server] failed to encode response: %v", err)
	}
}

func writeAppError(w http.ResponseWriter, appErr *AppError) {
	writeJSON(w, appErr.HTTPStatus, appErr)
}

// writeError maps err and writes it, logging anything that is not a client error
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	appErr := mapError(err)
	if appErr.HTTPStatus >= http.StatusInternalServerError {
		log.Printf("[http][server] %s %s failed: %v", r.Method, r.URL.Path, err)
	}
	writeAppError(w, appErr)
}
