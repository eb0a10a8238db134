package session

import (
	"github.com/railzwaylabs/parkway/internal/session/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("session.registry",
	fx.Provide(repository.NewRegistry),
)
