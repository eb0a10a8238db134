package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/railzwaylabs/parkway/internal/capacity/domain"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	fieldTotal     = "total"
	fieldAvailable = "available"
	fieldTaken     = "taken"
	fieldUpdatedAt = "updated_at"
)

// redisLedger keeps each facility in a hash and mutates it inside
// WATCH/MULTI. A concurrent writer aborts the transaction and the call
// returns domain.ErrConflict.
type redisLedger struct {
	client *redis.Client
	prefix string
	log    *zap.Logger
}

func NewRedisLedger(client *redis.Client, prefix string, log *zap.Logger) domain.Ledger {
	if prefix == "" {
		prefix = "parkway:capacity"
	}
	return &redisLedger{client: client, prefix: prefix, log: log}
}

func (l *redisLedger) key(facilityID snowflake.ID) string {
	return fmt.Sprintf("%s:%s", l.prefix, facilityID.String())
}

func (l *redisLedger) Provision(ctx context.Context, facilityID snowflake.ID, total int64) error {
	if total < 0 {
		return domain.ErrInvalidTotal
	}
	key := l.key(facilityID)

	err := l.client.Watch(ctx, func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return err
		}
		if n > 0 {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key,
				fieldTotal, total,
				fieldAvailable, total,
				fieldTaken, 0,
				fieldUpdatedAt, time.Now().UTC().Format(time.RFC3339Nano),
			)
			return nil
		})
		return err
	}, key)
	return translateTxErr(err)
}

func (l *redisLedger) Reserve(ctx context.Context, facilityID snowflake.ID) error {
	key := l.key(facilityID)

	err := l.client.Watch(ctx, func(tx *redis.Tx) error {
		c, err := readCapacity(ctx, tx, key, facilityID)
		if err != nil {
			return err
		}
		if c.Available <= 0 {
			return domain.ErrCapacityExhausted
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HIncrBy(ctx, key, fieldAvailable, -1)
			pipe.HIncrBy(ctx, key, fieldTaken, 1)
			pipe.HSet(ctx, key, fieldUpdatedAt, time.Now().UTC().Format(time.RFC3339Nano))
			return nil
		})
		return err
	}, key)
	return translateTxErr(err)
}

func (l *redisLedger) Release(ctx context.Context, facilityID snowflake.ID) error {
	key := l.key(facilityID)

	err := l.client.Watch(ctx, func(tx *redis.Tx) error {
		c, err := readCapacity(ctx, tx, key, facilityID)
		if err != nil {
			return err
		}
		if c.Taken <= 0 {
			l.log.Error("release with no taken slot", zap.String("facility_id", facilityID.String()))
			return domain.ErrInvariant
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HIncrBy(ctx, key, fieldAvailable, 1)
			pipe.HIncrBy(ctx, key, fieldTaken, -1)
			pipe.HSet(ctx, key, fieldUpdatedAt, time.Now().UTC().Format(time.RFC3339Nano))
			return nil
		})
		return err
	}, key)
	return translateTxErr(err)
}

func (l *redisLedger) Snapshot(ctx context.Context, facilityID snowflake.ID) (*domain.Capacity, error) {
	return readCapacity(ctx, l.client, l.key(facilityID), facilityID)
}

func readCapacity(ctx context.Context, c redis.Cmdable, key string, facilityID snowflake.ID) (*domain.Capacity, error) {
	values, err := c.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, err
	}
	if len(values) == 0 {
		return nil, domain.ErrFacilityNotFound
	}

	out := &domain.Capacity{FacilityID: facilityID}
	if out.Total, err = parseField(values, fieldTotal); err != nil {
		return nil, err
	}
	if out.Available, err = parseField(values, fieldAvailable); err != nil {
		return nil, err
	}
	if out.Taken, err = parseField(values, fieldTaken); err != nil {
		return nil, err
	}
	if raw, ok := values[fieldUpdatedAt]; ok {
		if ts, err := time.Parse(time.RFC3339Nano, raw); err == nil {
			out.UpdatedAt = ts
		}
	}
	return out, nil
}

func parseField(values map[string]string, field string) (int64, error) {
	raw, ok := values[field]
	if !ok {
		return 0, fmt.Errorf("capacity hash missing %s", field)
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("capacity hash field %s: %w", field, err)
	}
	return v, nil
}

func translateTxErr(err error) error {
	if errors.Is(err, redis.TxFailedErr) {
		return domain.ErrConflict
	}
	return err
}
