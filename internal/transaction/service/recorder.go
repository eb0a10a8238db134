package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/railzwaylabs/parkway/internal/clock"
	paymentdomain "github.com/railzwaylabs/parkway/internal/payment/domain"
	"github.com/railzwaylabs/parkway/internal/transaction/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	Clock clock.Clock
	Repo  domain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	clock clock.Clock
	repo  domain.Repository
}

func New(p Params) domain.Recorder {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("transaction.service"),
		clock: p.Clock,
		repo:  p.Repo,
	}
}

func (s *Service) Record(ctx context.Context, p *paymentdomain.Payment, rec *domain.TransactionRecord) error {
	if p == nil || rec == nil || p.ID == 0 || rec.ID == 0 {
		return domain.ErrInvalidRecord
	}
	if p.Amount < 0 {
		return domain.ErrInvalidRecord
	}

	now := s.clock.Now(ctx).UTC()
	p.CreatedAt = now
	rec.CreatedAt = now
	rec.PaymentID = p.ID

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.InsertPayment(ctx, tx, p); err != nil {
			return err
		}
		return s.repo.Insert(ctx, tx, rec)
	})
}

func (s *Service) Get(ctx context.Context, id snowflake.ID) (*domain.TransactionRecord, error) {
	rec, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, domain.ErrNotFound
	}
	return rec, nil
}

func (s *Service) ListByVehicle(ctx context.Context, vehicleID string, limit int) ([]domain.TransactionRecord, error) {
	switch {
	case limit <= 0:
		limit = defaultListLimit
	case limit > maxListLimit:
		limit = maxListLimit
	}
	return s.repo.ListByVehicle(ctx, s.db, vehicleID, limit)
}
