package lock

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// OfferSweepAdvisoryKey is the fixed advisory-lock key the offer-expiry
// sweeper uses to make sure only one replica runs the sweep at a time,
// matching packages/dispatch/expire.py's hardcoded key 9001001.
const OfferSweepAdvisoryKey = 9001001

// TryAdvisoryLock attempts pg_try_advisory_lock(key) on a single pooled
// connection, returning that connection (which must be released after the
// caller is done with the lock — releasing the connection back to the pool
// does NOT release a session-level advisory lock) along with whether the
// lock was acquired.
func TryAdvisoryLock(ctx context.Context, pool *pgxpool.Pool, key int64) (*pgxpool.Conn, bool, error) {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("lock: acquire connection: %w", err)
	}

	var acquired bool
	if err := conn.QueryRow(ctx, `SELECT pg_try_advisory_lock($1)`, key).Scan(&acquired); err != nil {
		conn.Release()
		return nil, false, fmt.Errorf("lock: try advisory lock: %w", err)
	}
	if !acquired {
		conn.Release()
		return nil, false, nil
	}
	return conn, true, nil
}

// Unlock releases the advisory lock and returns the connection to the pool.
// Safe to call even if the lock was never held by this connection.
func Unlock(ctx context.Context, conn *pgxpool.Conn, key int64) {
	defer conn.Release()
	_, _ = conn.Exec(ctx, `SELECT pg_advisory_unlock($1)`, key)
}

// AdvisoryGuard is a reusable single-runner election on one advisory-lock
// key. It implements offers.SweepGuard structurally.
type AdvisoryGuard struct {
	pool *pgxpool.Pool
	key  int64
}

func NewAdvisoryGuard(pool *pgxpool.Pool, key int64) *AdvisoryGuard {
	return &AdvisoryGuard{pool: pool, key: key}
}

// TryLock attempts the advisory lock; on success the returned release func
// unlocks and returns the pinned connection to the pool.
func (g *AdvisoryGuard) TryLock(ctx context.Context) (func(), bool, error) {
	conn, acquired, err := TryAdvisoryLock(ctx, g.pool, g.key)
	if err != nil || !acquired {
		return nil, false, err
	}
	return func() { Unlock(ctx, conn, g.key) }, true, nil
}
