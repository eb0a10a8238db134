package migration

import (
	accountdomain "github.com/railzwaylabs/parkway/internal/account/domain"
	capacitydomain "github.com/railzwaylabs/parkway/internal/capacity/domain"
	durationdomain "github.com/railzwaylabs/parkway/internal/duration/domain"
	facilitydomain "github.com/railzwaylabs/parkway/internal/facility/domain"
	paymentdomain "github.com/railzwaylabs/parkway/internal/payment/domain"
	sessiondomain "github.com/railzwaylabs/parkway/internal/session/domain"
	transactiondomain "github.com/railzwaylabs/parkway/internal/transaction/domain"
)

// Models lists every table owned by parkway, in dependency order.
func Models() []any {
	return []any{
		&accountdomain.Vehicle{},
		&facilitydomain.Facility{},
		&facilitydomain.RateTier{},
		&capacitydomain.Capacity{},
		&durationdomain.Duration{},
		&sessiondomain.Session{},
		&paymentdomain.Payment{},
		&transactiondomain.TransactionRecord{},
	}
}
