package pricing

import (
	"github.com/railzwaylabs/parkway/internal/pricing/service"
	"go.uber.org/fx"
)

var Module = fx.Module("pricing.service",
	fx.Provide(service.New),
)
