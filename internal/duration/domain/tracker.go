package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

var (
	ErrNotFound      = errors.New("duration_not_found")
	ErrAlreadyClosed = errors.New("duration_already_closed")
	ErrStillOpen     = errors.New("duration_still_open")
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, d *Duration) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Duration, error)
	// MarkEnded sets ended_at only if it is still empty and reports whether
	// a row was updated.
	MarkEnded(ctx context.Context, db *gorm.DB, id snowflake.ID, endedAt time.Time) (bool, error)
	// MarkOrphaned flags an open, unflagged duration as abandoned.
	MarkOrphaned(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time) (bool, error)
	Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) error
}

type Tracker interface {
	Open(ctx context.Context) (*Duration, error)
	Close(ctx context.Context, id snowflake.ID) (*Duration, error)
	// Discard flags the duration as orphaned, then deletes it. A failed
	// delete leaves the flag for the scheduler to prune.
	Discard(ctx context.Context, id snowflake.ID) error
	ElapsedMinutes(d Duration) (float64, error)
}
