// Package scheduler runs periodic housekeeping next to the API server.
package scheduler

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	capacitydomain "github.com/railzwaylabs/parkway/internal/capacity/domain"
	"github.com/railzwaylabs/parkway/internal/clock"
	"github.com/railzwaylabs/parkway/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	Config   config.Config
	DB       *gorm.DB
	Log      *zap.Logger
	Clock    clock.Clock
	Ledger   capacitydomain.Ledger
	Registry *prometheus.Registry
}

type Scheduler struct {
	cfg    config.SchedulerConfig
	db     *gorm.DB
	log    *zap.Logger
	clock  clock.Clock
	ledger capacitydomain.Ledger

	drift       *prometheus.GaugeVec
	pruned      prometheus.Counter
	jobFailures *prometheus.CounterVec
}

func New(p Params) *Scheduler {
	f := promauto.With(p.Registry)
	return &Scheduler{
		cfg:    p.Config.Scheduler,
		db:     p.DB,
		log:    p.Log.Named("scheduler"),
		clock:  p.Clock,
		ledger: p.Ledger,
		drift: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "parkway",
			Subsystem: "capacity",
			Name:      "drift_slots",
			Help:      "Taken slots minus active sessions per facility at the last reconciliation.",
		}, []string{"facility_id"}),
		pruned: f.NewCounter(prometheus.CounterOpts{
			Namespace: "parkway",
			Subsystem: "scheduler",
			Name:      "orphan_durations_pruned_total",
			Help:      "Open durations removed because no session referenced them.",
		}),
		jobFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "parkway",
			Subsystem: "scheduler",
			Name:      "job_failures_total",
			Help:      "Scheduler job runs that returned an error.",
		}, []string{"job"}),
	}
}

// RunForever runs every job once per interval until ctx is done.
func (s *Scheduler) RunForever(ctx context.Context) {
	interval := s.cfg.Interval
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.log.Info("scheduler started", zap.Duration("interval", interval))
	for {
		s.RunOnce(ctx)

		select {
		case <-ctx.Done():
			s.log.Info("scheduler stopped")
			return
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) RunOnce(ctx context.Context) {
	jobs := []struct {
		name string
		run  func(context.Context) error
	}{
		{"reconcile_capacity", func(ctx context.Context) error {
			_, err := s.ReconcileCapacityJob(ctx)
			return err
		}},
		{"prune_orphan_durations", func(ctx context.Context) error {
			_, err := s.PruneOrphanDurationsJob(ctx)
			return err
		}},
	}

	for _, job := range jobs {
		if ctx.Err() != nil {
			return
		}
		if err := job.run(ctx); err != nil {
			s.jobFailures.WithLabelValues(job.name).Inc()
			s.log.Error("scheduler job failed", zap.String("job", job.name), zap.Error(err))
		}
	}
}

func Start(lc fx.Lifecycle, cfg config.Config, s *Scheduler) {
	if !cfg.Scheduler.Enabled {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				defer close(done)
				s.RunForever(ctx)
			}()
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			cancel()
			select {
			case <-done:
			case <-stopCtx.Done():
			}
			return nil
		},
	})
}
