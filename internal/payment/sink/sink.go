package sink

import (
	"fmt"

	"github.com/railzwaylabs/parkway/internal/config"
	"github.com/railzwaylabs/parkway/internal/payment/domain"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Config config.Config
	Redis  *redis.Client `optional:"true"`
	Log    *zap.Logger
}

func New(p Params) (domain.Sink, error) {
	switch p.Config.Settlement.Sink {
	case "", config.SettlementSinkLog:
		return NewLogSink(p.Log), nil
	case config.SettlementSinkRedis:
		if p.Redis == nil {
			return nil, fmt.Errorf("%w: redis sink selected but redis.addr is empty", domain.ErrSinkUnavailable)
		}
		return NewRedisStreamSink(p.Redis, p.Config.Settlement.Stream, p.Log), nil
	default:
		return nil, fmt.Errorf("unknown settlement sink %q", p.Config.Settlement.Sink)
	}
}
