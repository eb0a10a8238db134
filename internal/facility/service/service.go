package service

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	capacitydomain "github.com/railzwaylabs/parkway/internal/capacity/domain"
	"github.com/railzwaylabs/parkway/internal/clock"
	"github.com/railzwaylabs/parkway/internal/config"
	"github.com/railzwaylabs/parkway/internal/facility/domain"
	pricingdomain "github.com/railzwaylabs/parkway/internal/pricing/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB     *gorm.DB
	Log    *zap.Logger
	Config config.Config
	Clock  clock.Clock
	GenID  *snowflake.Node
	Repo   domain.Repository
	Ledger capacitydomain.Ledger
	Engine pricingdomain.Engine
}

type Service struct {
	db              *gorm.DB
	log             *zap.Logger
	clock           clock.Clock
	genID           *snowflake.Node
	repo            domain.Repository
	ledger          capacitydomain.Ledger
	engine          pricingdomain.Engine
	defaultCurrency string
}

func New(p Params) domain.Service {
	return &Service{
		db:              p.DB,
		log:             p.Log.Named("facility.service"),
		clock:           p.Clock,
		genID:           p.GenID,
		repo:            p.Repo,
		ledger:          p.Ledger,
		engine:          p.Engine,
		defaultCurrency: p.Config.Parking.DefaultCurrency,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateRequest) (*domain.Detail, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, domain.ErrInvalidName
	}
	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = s.defaultCurrency
	}
	if len(currency) != 3 {
		return nil, domain.ErrInvalidCurrency
	}
	if req.Capacity < 0 {
		return nil, domain.ErrInvalidCapacity
	}
	if err := req.Tiers.Validate(); err != nil {
		return nil, err
	}

	now := s.clock.Now(ctx).UTC()
	f := &domain.Facility{
		ID:        s.genID.Generate(),
		Name:      name,
		Location:  strings.TrimSpace(req.Location),
		Currency:  currency,
		CreatedAt: now,
		UpdatedAt: now,
	}
	tiers := req.Tiers.Sorted()

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.Insert(ctx, tx, f); err != nil {
			return err
		}
		return s.repo.ReplaceTiers(ctx, tx, f.ID, s.tierRows(f.ID, tiers, now))
	})
	if err != nil {
		return nil, err
	}

	// The ledger may live outside the database, so provisioning is compensated
	// by hand.
	if err := s.ledger.Provision(ctx, f.ID, req.Capacity); err != nil {
		if delErr := s.repo.Delete(ctx, s.db, f.ID); delErr != nil {
			s.log.Error("failed to remove unprovisioned facility",
				zap.String("facility_id", f.ID.String()), zap.Error(delErr))
		}
		return nil, err
	}

	snapshot, err := s.ledger.Snapshot(ctx, f.ID)
	if err != nil {
		return nil, err
	}

	s.log.Info("facility created",
		zap.String("facility_id", f.ID.String()),
		zap.Int64("capacity", req.Capacity),
		zap.Int("tiers", len(tiers)),
	)
	return &domain.Detail{Facility: *f, Tiers: tiers, Capacity: snapshot}, nil
}

func (s *Service) Get(ctx context.Context, id snowflake.ID) (*domain.Detail, error) {
	f, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	tiers, err := s.tiers(ctx, id)
	if err != nil {
		return nil, err
	}

	snapshot, err := s.ledger.Snapshot(ctx, id)
	if err != nil && !errors.Is(err, capacitydomain.ErrFacilityNotFound) {
		return nil, err
	}
	return &domain.Detail{Facility: *f, Tiers: tiers, Capacity: snapshot}, nil
}

func (s *Service) ReplaceRates(ctx context.Context, id snowflake.ID, tiers pricingdomain.RateTable) (pricingdomain.RateTable, error) {
	if err := tiers.Validate(); err != nil {
		return nil, err
	}
	sorted := tiers.Sorted()
	now := s.clock.Now(ctx).UTC()

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		f, err := s.repo.FindByID(ctx, tx, id)
		if err != nil {
			return err
		}
		if f == nil {
			return domain.ErrNotFound
		}
		if err := s.repo.ReplaceTiers(ctx, tx, id, s.tierRows(id, sorted, now)); err != nil {
			return err
		}
		return tx.Model(&domain.Facility{}).Where("id = ?", id).Update("updated_at", now).Error
	})
	if err != nil {
		return nil, err
	}
	return sorted, nil
}

func (s *Service) RateTable(ctx context.Context, id snowflake.ID) (pricingdomain.RateTable, string, error) {
	f, err := s.load(ctx, id)
	if err != nil {
		return nil, "", err
	}
	tiers, err := s.tiers(ctx, id)
	if err != nil {
		return nil, "", err
	}
	return tiers, f.Currency, nil
}

func (s *Service) Quote(ctx context.Context, id snowflake.ID, minutes float64) (*domain.Quote, error) {
	if math.IsNaN(minutes) || math.IsInf(minutes, 0) || minutes < 0 {
		return nil, domain.ErrInvalidMinutes
	}
	tiers, currency, err := s.RateTable(ctx, id)
	if err != nil {
		return nil, err
	}
	return &domain.Quote{
		FacilityID: id,
		Minutes:    minutes,
		Amount:     s.engine.ComputeFee(minutes, tiers),
		Currency:   currency,
	}, nil
}

func (s *Service) load(ctx context.Context, id snowflake.ID) (*domain.Facility, error) {
	f, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if f == nil {
		return nil, domain.ErrNotFound
	}
	return f, nil
}

func (s *Service) tiers(ctx context.Context, id snowflake.ID) (pricingdomain.RateTable, error) {
	rows, err := s.repo.ListTiers(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	table := make(pricingdomain.RateTable, 0, len(rows))
	for _, row := range rows {
		table = append(table, pricingdomain.RateTier{
			MinutesThreshold: row.MinutesThreshold,
			Price:            row.Price,
		})
	}
	return table, nil
}

func (s *Service) tierRows(facilityID snowflake.ID, tiers pricingdomain.RateTable, now time.Time) []domain.RateTier {
	rows := make([]domain.RateTier, 0, len(tiers))
	for _, tier := range tiers {
		rows = append(rows, domain.RateTier{
			ID:               s.genID.Generate(),
			FacilityID:       facilityID,
			MinutesThreshold: tier.MinutesThreshold,
			Price:            tier.Price,
			CreatedAt:        now,
		})
	}
	return rows
}
