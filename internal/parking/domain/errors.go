package domain

import (
	"errors"

	capacitydomain "github.com/railzwaylabs/parkway/internal/capacity/domain"
	durationdomain "github.com/railzwaylabs/parkway/internal/duration/domain"
	sessiondomain "github.com/railzwaylabs/parkway/internal/session/domain"
)

// Business rejections. They are returned to callers as-is and never logged
// as failures.
var (
	ErrInvalidVehicle    = errors.New("invalid_vehicle")
	ErrUnknownVehicle    = errors.New("unknown_vehicle")
	ErrAlreadyActive     = sessiondomain.ErrAlreadyActive
	ErrNoActiveSession   = sessiondomain.ErrNoActiveSession
	ErrFacilityNotFound  = capacitydomain.ErrFacilityNotFound
	ErrCapacityExhausted = capacitydomain.ErrCapacityExhausted
)

// Internal failures.
var (
	ErrAlreadyClosed = durationdomain.ErrAlreadyClosed
	ErrPersistence   = errors.New("persistence_error")
	// ErrBillingFailed marks a Leave that removed the session and released
	// capacity but could not produce a transaction record.
	ErrBillingFailed = errors.New("billing_failed")
)

// PersistenceError wraps a transient collaborator failure: a timeout, a lost
// connection or an optimistic conflict that kept recurring.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return "persistence_error: " + e.Op + ": " + e.Err.Error()
}

func (e *PersistenceError) Unwrap() error { return e.Err }

func (e *PersistenceError) Is(target error) bool { return target == ErrPersistence }

// Retryable reports whether the caller may retry the whole operation.
func (e *PersistenceError) Retryable() bool { return true }

// IsRejection reports whether err is a business rule rejection.
func IsRejection(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidVehicle),
		errors.Is(err, ErrUnknownVehicle),
		errors.Is(err, ErrAlreadyActive),
		errors.Is(err, ErrNoActiveSession),
		errors.Is(err, ErrFacilityNotFound),
		errors.Is(err, ErrCapacityExhausted):
		return true
	}
	return false
}

// Code returns a stable snake_case identifier for err, suitable for metrics
// labels and API error bodies.
func Code(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrBillingFailed):
		return "billing_failed"
	case errors.Is(err, ErrPersistence):
		return "persistence_error"
	case errors.Is(err, ErrInvalidVehicle):
		return "invalid_vehicle"
	case errors.Is(err, ErrUnknownVehicle):
		return "unknown_vehicle"
	case errors.Is(err, ErrAlreadyActive):
		return "already_active"
	case errors.Is(err, ErrNoActiveSession):
		return "no_active_session"
	case errors.Is(err, ErrFacilityNotFound):
		return "facility_not_found"
	case errors.Is(err, ErrCapacityExhausted):
		return "capacity_exhausted"
	case errors.Is(err, ErrAlreadyClosed):
		return "already_closed"
	default:
		return "internal_error"
	}
}
