package sink

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/railzwaylabs/parkway/internal/payment/domain"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisStreamSink appends each payment to a redis stream for billing consumers.
type RedisStreamSink struct {
	client   *redis.Client
	stream   string
	log      *zap.Logger
	maxTries uint
}

func NewRedisStreamSink(client *redis.Client, stream string, log *zap.Logger) *RedisStreamSink {
	return &RedisStreamSink{
		client:   client,
		stream:   stream,
		log:      log.Named("payment.sink"),
		maxTries: 3,
	}
}

func (s *RedisStreamSink) Publish(ctx context.Context, p *domain.Payment) error {
	args := &redis.XAddArgs{
		Stream: s.stream,
		Values: map[string]any{
			"payment_id": p.ID.String(),
			"account_id": p.AccountID.String(),
			"amount":     p.Amount,
			"currency":   p.Currency,
			"method":     p.Method,
			"paid_at":    p.PaidAt.UTC().Format(time.RFC3339Nano),
		},
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 50 * time.Millisecond
	policy.MaxInterval = 500 * time.Millisecond

	id, err := backoff.Retry(ctx, func() (string, error) {
		return s.client.XAdd(ctx, args).Result()
	}, backoff.WithBackOff(policy), backoff.WithMaxTries(s.maxTries))
	if err != nil {
		return err
	}

	s.log.Debug("payment published", zap.String("payment_id", p.ID.String()), zap.String("entry_id", id))
	return nil
}
