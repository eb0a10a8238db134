package repository

import (
	"context"
	"errors"

	"github.com/railzwaylabs/parkway/internal/session/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type registry struct {
	db *gorm.DB
}

func NewRegistry(db *gorm.DB) domain.Registry {
	return &registry{db: db}
}

func (r *registry) TryOpen(ctx context.Context, s *domain.Session) error {
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "vehicle_id"}},
			DoNothing: true,
		}).
		Create(s)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrAlreadyActive
	}
	return nil
}

func (r *registry) TakeActive(ctx context.Context, vehicleID string) (*domain.Session, error) {
	s, err := r.Peek(ctx, vehicleID)
	if err != nil {
		return nil, err
	}

	result := r.db.WithContext(ctx).Delete(&domain.Session{}, "id = ?", s.ID)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, domain.ErrConflict
	}
	return s, nil
}

func (r *registry) Peek(ctx context.Context, vehicleID string) (*domain.Session, error) {
	var s domain.Session
	if err := r.db.WithContext(ctx).First(&s, "vehicle_id = ?", vehicleID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNoActiveSession
		}
		return nil, err
	}
	return &s, nil
}
