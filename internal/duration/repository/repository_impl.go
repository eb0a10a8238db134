package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/railzwaylabs/parkway/internal/duration/domain"
	"gorm.io/gorm"
)

type repository struct{}

func Provide() domain.Repository {
	return &repository{}
}

func (r *repository) Insert(ctx context.Context, db *gorm.DB, d *domain.Duration) error {
	return db.WithContext(ctx).Create(d).Error
}

func (r *repository) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Duration, error) {
	var d domain.Duration
	if err := db.WithContext(ctx).First(&d, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &d, nil
}

func (r *repository) MarkEnded(ctx context.Context, db *gorm.DB, id snowflake.ID, endedAt time.Time) (bool, error) {
	result := db.WithContext(ctx).
		Model(&domain.Duration{}).
		Where("id = ? AND ended_at IS NULL", id).
		Update("ended_at", endedAt)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *repository) MarkOrphaned(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time) (bool, error) {
	result := db.WithContext(ctx).
		Model(&domain.Duration{}).
		Where("id = ? AND ended_at IS NULL AND orphaned_at IS NULL", id).
		Update("orphaned_at", at)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *repository) Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) error {
	return db.WithContext(ctx).Delete(&domain.Duration{}, "id = ?", id).Error
}
