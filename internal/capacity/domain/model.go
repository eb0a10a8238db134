// Package domain contains the per-facility capacity counters.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Capacity keeps Available + Taken == Total. It is only mutated through a
// Ledger.
type Capacity struct {
	FacilityID snowflake.ID `gorm:"primaryKey" json:"facility_id"`
	Total      int64        `gorm:"not null" json:"total"`
	Available  int64        `gorm:"not null" json:"available"`
	Taken      int64        `gorm:"not null" json:"taken"`
	UpdatedAt  time.Time    `gorm:"not null" json:"updated_at"`
}

func (Capacity) TableName() string { return "capacities" }
