package domain

import (
	"context"
	"errors"
)

var (
	ErrAlreadyActive   = errors.New("session_already_active")
	ErrNoActiveSession = errors.New("no_active_session")
	// ErrConflict reports that a concurrent caller claimed the session first.
	ErrConflict = errors.New("session_conflict")
)

type Registry interface {
	// TryOpen inserts s unless the vehicle already has an active session.
	TryOpen(ctx context.Context, s *Session) error
	// TakeActive removes and returns the vehicle's active session.
	TakeActive(ctx context.Context, vehicleID string) (*Session, error)
	Peek(ctx context.Context, vehicleID string) (*Session, error)
}
