package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

var (
	ErrNotFound       = errors.New("vehicle_not_found")
	ErrInvalidVehicle = errors.New("invalid_vehicle")
	ErrInvalidAccount = errors.New("invalid_account")
)

// Vehicle links a licence plate to the account billed for its stays.
type Vehicle struct {
	Plate     string       `gorm:"primaryKey;type:varchar(32)" json:"plate"`
	AccountID snowflake.ID `gorm:"not null;index" json:"account_id"`
	CreatedAt time.Time    `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time    `gorm:"not null" json:"updated_at"`
}

func (Vehicle) TableName() string { return "vehicles" }

type Directory interface {
	ResolveAccount(ctx context.Context, plate string) (snowflake.ID, error)
	Register(ctx context.Context, plate string, accountID snowflake.ID) error
}
