package transaction

import (
	"github.com/railzwaylabs/parkway/internal/transaction/repository"
	"github.com/railzwaylabs/parkway/internal/transaction/service"
	"go.uber.org/fx"
)

var Module = fx.Module("transaction.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
