package sink

import (
	"context"

	"github.com/railzwaylabs/parkway/internal/payment/domain"
	"go.uber.org/zap"
)

type LogSink struct {
	log *zap.Logger
}

func NewLogSink(log *zap.Logger) *LogSink {
	return &LogSink{log: log.Named("payment.sink")}
}

func (s *LogSink) Publish(ctx context.Context, p *domain.Payment) error {
	s.log.Info("payment settled",
		zap.String("payment_id", p.ID.String()),
		zap.String("account_id", p.AccountID.String()),
		zap.Int64("amount", p.Amount),
		zap.String("currency", p.Currency),
		zap.String("method", p.Method),
		zap.Time("paid_at", p.PaidAt),
	)
	return nil
}
