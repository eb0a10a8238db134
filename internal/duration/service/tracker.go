package service

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/railzwaylabs/parkway/internal/clock"
	"github.com/railzwaylabs/parkway/internal/duration/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	Clock clock.Clock
	GenID *snowflake.Node
	Repo  domain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	clock clock.Clock
	genID *snowflake.Node
	repo  domain.Repository
}

func New(p Params) domain.Tracker {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("duration.service"),
		clock: p.Clock,
		genID: p.GenID,
		repo:  p.Repo,
	}
}

func (s *Service) Open(ctx context.Context) (*domain.Duration, error) {
	now := s.clock.Now(ctx).UTC()
	d := &domain.Duration{
		ID:        s.genID.Generate(),
		StartedAt: now,
		CreatedAt: now,
	}
	if err := s.repo.Insert(ctx, s.db, d); err != nil {
		return nil, err
	}
	return d, nil
}

func (s *Service) Close(ctx context.Context, id snowflake.ID) (*domain.Duration, error) {
	now := s.clock.Now(ctx).UTC()

	updated, err := s.repo.MarkEnded(ctx, s.db, id, now)
	if err != nil {
		return nil, err
	}

	d, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if d == nil {
		return nil, domain.ErrNotFound
	}
	if !updated {
		s.log.Error("duration closed twice", zap.String("duration_id", id.String()))
		return nil, domain.ErrAlreadyClosed
	}
	return d, nil
}

func (s *Service) Discard(ctx context.Context, id snowflake.ID) error {
	if _, err := s.repo.MarkOrphaned(ctx, s.db, id, s.clock.Now(ctx).UTC()); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, s.db, id); err != nil {
		s.log.Warn("orphaned duration left for pruning",
			zap.String("duration_id", id.String()), zap.Error(err))
		return err
	}
	return nil
}

// ElapsedMinutes keeps fractional minutes so tier boundaries compare exactly.
func (s *Service) ElapsedMinutes(d domain.Duration) (float64, error) {
	if d.EndedAt == nil {
		return 0, domain.ErrStillOpen
	}
	return float64(d.EndedAt.Sub(d.StartedAt)) / float64(time.Minute), nil
}
