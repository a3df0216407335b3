// Package lock provides the two locking primitives the dispatch engine
// needs: a Redis-backed per-task lock for concurrent accept races, and a
// Postgres advisory lock for singleton sweeper execution across replicas.
package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisLock wraps a go-redis client the way
// Sergey-Bar-Alfred/services/gateway/redisclient/redis.go wraps its client:
// a thin constructor over redis.ParseURL + redis.NewClient, plus the one
// operation this service actually needs — not a general-purpose cache
// client.
type RedisLock struct {
	client *redis.Client
}

func NewRedisLock(redisURL string) (*RedisLock, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("lock: parse redis url: %w", err)
	}
	return &RedisLock{client: redis.NewClient(opt)}, nil
}

func (l *RedisLock) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return l.client.Ping(ctx).Err()
}

// TaskAcceptKey builds the lock key for a task accept race, matching
// packages.common.redis_client's lock_key(f"task_accept:{task_id}").
func TaskAcceptKey(taskID string) string {
	return "lock:task_accept:" + taskID
}

// Acquire sets key to "1" with NX+EX semantics — true if this caller got the
// lock, false if someone else already holds it.
func (l *RedisLock) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := l.client.SetNX(ctx, key, "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("lock: acquire %s: %w", key, err)
	}
	return ok, nil
}

// Release unconditionally deletes the lock key. Like the original's
// `finally: r.delete(lk)`, this always runs regardless of how the caller's
// critical section exited.
func (l *RedisLock) Release(ctx context.Context, key string) error {
	return l.client.Del(ctx, key).Err()
}

func (l *RedisLock) Close() error {
	return l.client.Close()
}
