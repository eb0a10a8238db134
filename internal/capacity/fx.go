package capacity

import (
	"github.com/railzwaylabs/parkway/internal/capacity/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("capacity.ledger",
	fx.Provide(repository.NewLedger),
)
