package duration

import (
	"github.com/railzwaylabs/parkway/internal/duration/repository"
	"github.com/railzwaylabs/parkway/internal/duration/service"
	"go.uber.org/fx"
)

var Module = fx.Module("duration.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
