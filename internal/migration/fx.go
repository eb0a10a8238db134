package migration

import (
	"context"

	"github.com/railzwaylabs/parkway/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Module applies migrations when the app starts. Used by the migrate command.
var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config, log *zap.Logger) error {
		return Run(context.Background(), conn, cfg, log.Named("migration"))
	}),
)

// SchemaGate blocks startup of the serving app until the schema is current.
var SchemaGate = fx.Module("migrations.gate",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config) error {
		return CheckSchema(context.Background(), conn, cfg)
	}),
)
