package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/railzwaylabs/parkway/internal/account/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type directory struct {
	db *gorm.DB
}

func NewDirectory(db *gorm.DB) domain.Directory {
	return &directory{db: db}
}

func (d *directory) ResolveAccount(ctx context.Context, plate string) (snowflake.ID, error) {
	var v domain.Vehicle
	if err := d.db.WithContext(ctx).First(&v, "plate = ?", plate).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, domain.ErrNotFound
		}
		return 0, err
	}
	return v.AccountID, nil
}

// Register creates or re-points the plate to accountID.
func (d *directory) Register(ctx context.Context, plate string, accountID snowflake.ID) error {
	plate = strings.TrimSpace(plate)
	if plate == "" {
		return domain.ErrInvalidVehicle
	}
	if accountID == 0 {
		return domain.ErrInvalidAccount
	}

	return d.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "plate"}},
			DoUpdates: clause.AssignmentColumns([]string{"account_id", "updated_at"}),
		}).
		Create(&domain.Vehicle{Plate: plate, AccountID: accountID}).Error
}
