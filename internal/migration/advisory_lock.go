package migration

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

const (
	advisoryLockKey   int64 = 7_202_611_518
	namedLock               = "parkway_migrations"
	namedLockWaitSecs       = 10
)

type unlockFunc func(ctx context.Context) error

// acquireAdvisoryLock serialises postgres migrators across processes.
func acquireAdvisoryLock(ctx context.Context, db *sql.DB) (unlockFunc, error) {
	var locked bool
	err := db.QueryRowContext(ctx, "SELECT pg_try_advisory_lock($1)", advisoryLockKey).Scan(&locked)
	if err != nil {
		return nil, fmt.Errorf("acquire advisory lock: %w", err)
	}
	if !locked {
		return nil, errors.New("another migration process holds the advisory lock")
	}

	return func(unlockCtx context.Context) error {
		var released bool
		if err := db.QueryRowContext(unlockCtx, "SELECT pg_advisory_unlock($1)", advisoryLockKey).Scan(&released); err != nil {
			return fmt.Errorf("release advisory lock: %w", err)
		}
		if !released {
			return errors.New("advisory lock was not held by this session")
		}
		return nil
	}, nil
}

// acquireNamedLock is the mysql counterpart, built on GET_LOCK. Named locks
// belong to a connection, so one is pinned for the lifetime of the lock.
func acquireNamedLock(ctx context.Context, db *sql.DB) (unlockFunc, error) {
	conn, err := db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire named lock: %w", err)
	}

	var locked sql.NullInt64
	if err := conn.QueryRowContext(ctx, "SELECT GET_LOCK(?, ?)", namedLock, namedLockWaitSecs).Scan(&locked); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("acquire named lock: %w", err)
	}
	if !locked.Valid || locked.Int64 != 1 {
		_ = conn.Close()
		return nil, errors.New("another migration process holds the named lock")
	}

	return func(unlockCtx context.Context) error {
		defer conn.Close()
		if _, err := conn.ExecContext(unlockCtx, "SELECT RELEASE_LOCK(?)", namedLock); err != nil {
			return fmt.Errorf("release named lock: %w", err)
		}
		return nil
	}, nil
}
