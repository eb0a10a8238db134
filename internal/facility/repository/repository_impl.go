package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/railzwaylabs/parkway/internal/facility/domain"
	"gorm.io/gorm"
)

type repository struct{}

func Provide() domain.Repository {
	return &repository{}
}

func (r *repository) Insert(ctx context.Context, db *gorm.DB, f *domain.Facility) error {
	return db.WithContext(ctx).Create(f).Error
}

func (r *repository) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Facility, error) {
	var f domain.Facility
	if err := db.WithContext(ctx).First(&f, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &f, nil
}

func (r *repository) Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&domain.RateTier{}, "facility_id = ?", id).Error; err != nil {
			return err
		}
		return tx.Delete(&domain.Facility{}, "id = ?", id).Error
	})
}

func (r *repository) ListTiers(ctx context.Context, db *gorm.DB, facilityID snowflake.ID) ([]domain.RateTier, error) {
	var tiers []domain.RateTier
	err := db.WithContext(ctx).
		Where("facility_id = ?", facilityID).
		Order("minutes_threshold ASC").
		Find(&tiers).Error
	if err != nil {
		return nil, err
	}
	return tiers, nil
}

func (r *repository) ReplaceTiers(ctx context.Context, db *gorm.DB, facilityID snowflake.ID, tiers []domain.RateTier) error {
	if err := db.WithContext(ctx).Delete(&domain.RateTier{}, "facility_id = ?", facilityID).Error; err != nil {
		return err
	}
	if len(tiers) == 0 {
		return nil
	}
	return db.WithContext(ctx).Create(&tiers).Error
}
