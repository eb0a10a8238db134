package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Duration is the occupancy interval of one stay. EndedAt is set exactly once.
// OrphanedAt marks a duration whose Park was rolled back; only flagged rows
// are ever pruned.
type Duration struct {
	ID         snowflake.ID `gorm:"primaryKey" json:"id"`
	StartedAt  time.Time    `gorm:"not null" json:"started_at"`
	EndedAt    *time.Time   `json:"ended_at,omitempty"`
	OrphanedAt *time.Time   `gorm:"index" json:"orphaned_at,omitempty"`
	CreatedAt  time.Time    `gorm:"not null" json:"created_at"`
}

func (Duration) TableName() string { return "durations" }

func (d Duration) Closed() bool {
	return d.EndedAt != nil
}
