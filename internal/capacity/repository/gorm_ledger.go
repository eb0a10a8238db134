package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/railzwaylabs/parkway/internal/capacity/domain"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// gormLedger mutates counters with single conditional UPDATE statements so
// the check and the write are one step inside the database.
type gormLedger struct {
	db  *gorm.DB
	log *zap.Logger
}

func NewGormLedger(db *gorm.DB, log *zap.Logger) domain.Ledger {
	return &gormLedger{db: db, log: log}
}

func (l *gormLedger) Provision(ctx context.Context, facilityID snowflake.ID, total int64) error {
	if total < 0 {
		return domain.ErrInvalidTotal
	}
	return l.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&domain.Capacity{
			FacilityID: facilityID,
			Total:      total,
			Available:  total,
			Taken:      0,
		}).Error
}

func (l *gormLedger) Reserve(ctx context.Context, facilityID snowflake.ID) error {
	result := l.db.WithContext(ctx).
		Model(&domain.Capacity{}).
		Where("facility_id = ? AND available > 0", facilityID).
		Updates(map[string]any{
			"available": gorm.Expr("available - 1"),
			"taken":     gorm.Expr("taken + 1"),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 1 {
		return nil
	}

	exists, err := l.exists(ctx, facilityID)
	if err != nil {
		return err
	}
	if !exists {
		return domain.ErrFacilityNotFound
	}
	return domain.ErrCapacityExhausted
}

func (l *gormLedger) Release(ctx context.Context, facilityID snowflake.ID) error {
	result := l.db.WithContext(ctx).
		Model(&domain.Capacity{}).
		Where("facility_id = ? AND taken > 0", facilityID).
		Updates(map[string]any{
			"available": gorm.Expr("available + 1"),
			"taken":     gorm.Expr("taken - 1"),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 1 {
		return nil
	}

	exists, err := l.exists(ctx, facilityID)
	if err != nil {
		return err
	}
	if !exists {
		return domain.ErrFacilityNotFound
	}
	l.log.Error("release with no taken slot", zap.String("facility_id", facilityID.String()))
	return domain.ErrInvariant
}

func (l *gormLedger) Snapshot(ctx context.Context, facilityID snowflake.ID) (*domain.Capacity, error) {
	var c domain.Capacity
	if err := l.db.WithContext(ctx).First(&c, "facility_id = ?", facilityID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrFacilityNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (l *gormLedger) exists(ctx context.Context, facilityID snowflake.ID) (bool, error) {
	var count int64
	if err := l.db.WithContext(ctx).
		Model(&domain.Capacity{}).
		Where("facility_id = ?", facilityID).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}
