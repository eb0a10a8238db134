package payment

import (
	"github.com/railzwaylabs/parkway/internal/payment/sink"
	"go.uber.org/fx"
)

var Module = fx.Module("payment.sink",
	fx.Provide(sink.New),
)
