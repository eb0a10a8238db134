package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	paymentdomain "github.com/railzwaylabs/parkway/internal/payment/domain"
	"github.com/railzwaylabs/parkway/internal/transaction/domain"
	"gorm.io/gorm"
)

type repository struct{}

func Provide() domain.Repository {
	return &repository{}
}

func (r *repository) Insert(ctx context.Context, db *gorm.DB, rec *domain.TransactionRecord) error {
	return db.WithContext(ctx).Create(rec).Error
}

func (r *repository) InsertPayment(ctx context.Context, db *gorm.DB, p *paymentdomain.Payment) error {
	return db.WithContext(ctx).Create(p).Error
}

func (r *repository) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.TransactionRecord, error) {
	var rec domain.TransactionRecord
	if err := db.WithContext(ctx).First(&rec, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &rec, nil
}

func (r *repository) ListByVehicle(ctx context.Context, db *gorm.DB, vehicleID string, limit int) ([]domain.TransactionRecord, error) {
	var items []domain.TransactionRecord
	err := db.WithContext(ctx).
		Where("vehicle_id = ?", vehicleID).
		Order("ended_at DESC").
		Limit(limit).
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}
