package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Session is the active stay of one vehicle. The unique index on VehicleID
// is what guarantees at most one active session per vehicle.
type Session struct {
	ID         snowflake.ID `gorm:"primaryKey" json:"id"`
	VehicleID  string       `gorm:"type:varchar(32);not null;uniqueIndex" json:"vehicle_id"`
	FacilityID snowflake.ID `gorm:"not null;index" json:"facility_id"`
	DurationID snowflake.ID `gorm:"not null" json:"duration_id"`
	AccountID  snowflake.ID `gorm:"not null;index" json:"account_id"`
	CreatedAt  time.Time    `gorm:"not null" json:"created_at"`
}

func (Session) TableName() string { return "active_sessions" }
