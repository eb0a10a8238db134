package repository

import (
	"errors"

	"github.com/railzwaylabs/parkway/internal/capacity/domain"
	"github.com/railzwaylabs/parkway/internal/config"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	Config config.Config
	DB     *gorm.DB
	Redis  *redis.Client `optional:"true"`
	Log    *zap.Logger
}

// NewLedger selects the ledger backend from capacity.backend.
func NewLedger(p Params) (domain.Ledger, error) {
	log := p.Log.Named("capacity.ledger")

	switch p.Config.Capacity.Backend {
	case config.CapacityBackendRedis:
		if p.Redis == nil {
			return nil, errors.New("capacity backend redis requires a redis client")
		}
		log.Info("using redis capacity ledger")
		return NewRedisLedger(p.Redis, p.Config.Capacity.KeyPrefix, log), nil
	default:
		log.Info("using database capacity ledger")
		return NewGormLedger(p.DB, log), nil
	}
}
