package parking

import (
	"github.com/railzwaylabs/parkway/internal/parking/service"
	"go.uber.org/fx"
)

var Module = fx.Module("parking.service",
	fx.Provide(service.NewMetrics),
	fx.Provide(service.New),
)
