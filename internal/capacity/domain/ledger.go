package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

var (
	ErrFacilityNotFound  = errors.New("facility_not_found")
	ErrCapacityExhausted = errors.New("capacity_exhausted")
	ErrInvalidTotal      = errors.New("invalid_capacity_total")
	// ErrConflict reports a lost optimistic race; the operation may be retried.
	ErrConflict = errors.New("capacity_conflict")
	// ErrInvariant means a release found no taken slot. Never user facing.
	ErrInvariant = errors.New("capacity_invariant_violated")
)

// Ledger performs linearizable reserve/release per facility.
type Ledger interface {
	Provision(ctx context.Context, facilityID snowflake.ID, total int64) error
	Reserve(ctx context.Context, facilityID snowflake.ID) error
	Release(ctx context.Context, facilityID snowflake.ID) error
	Snapshot(ctx context.Context, facilityID snowflake.ID) (*Capacity, error)
}
