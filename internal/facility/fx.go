package facility

import (
	"github.com/railzwaylabs/parkway/internal/facility/repository"
	"github.com/railzwaylabs/parkway/internal/facility/service"
	"go.uber.org/fx"
)

var Module = fx.Module("facility.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
