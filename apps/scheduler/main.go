package main

import (
	"github.com/railzwaylabs/parkway/internal/capacity"
	"github.com/railzwaylabs/parkway/internal/clock"
	"github.com/railzwaylabs/parkway/internal/config"
	"github.com/railzwaylabs/parkway/internal/migration"
	"github.com/railzwaylabs/parkway/internal/observability"
	"github.com/railzwaylabs/parkway/internal/redis"
	"github.com/railzwaylabs/parkway/internal/scheduler"
	"github.com/railzwaylabs/parkway/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

// Runs the housekeeping jobs without the HTTP API, for deployments that keep
// scheduler.enabled off on the API replicas.
func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log.Named("fx")}
		}),
		db.Module,
		migration.SchemaGate,
		clock.Module,
		redis.Module,
		capacity.Module,

		// No server module!
		fx.Provide(scheduler.New),
		fx.Invoke(StartScheduler),
	)
	app.Run()
}

func StartScheduler(lc fx.Lifecycle, cfg config.Config, s *scheduler.Scheduler) {
	cfg.Scheduler.Enabled = true
	scheduler.Start(lc, cfg, s)
}
