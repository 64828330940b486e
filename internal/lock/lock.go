// Package lock provides a named exclusive lease used to serialize multi-step
// mutations on a single logical key (one seat, one reservation, one user's
// balance top-up) across all replicas of the service.  The Redis
// implementation is the production one; Local covers single-node mode and
// tests.  A lease always carries a TTL so a crashed holder cannot block the
// key forever.
package lock

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrNotAcquired is returned when the lock could not be granted within the
// caller's wait budget.  It signals contention, not a domain failure; the
// caller is expected to retry the whole operation later.
var ErrNotAcquired = errors.New("lock not acquired")

// retryInterval is how often the bounded-retry policy re-attempts the
// conditional write while the wait budget has not elapsed.
const retryInterval = 10 * time.Millisecond

// Locker grants and releases named exclusive leases.
//
// TryLock attempts to acquire the lease for key.  wait == 0 means a single
// fail-fast attempt; wait > 0 retries every 10ms until the budget elapses.
// lease is the TTL after which the lock self-expires.  It returns false
// (with nil error) when the lock was not granted in time.
type Locker interface {
	TryLock(ctx context.Context, key string, wait, lease time.Duration) (bool, error)
	Unlock(ctx context.Context, key string) error
}

// WithLock runs fn while holding the lease for key and releases it
// afterwards.  It returns ErrNotAcquired when the lock cannot be granted
// within wait.
func WithLock(ctx context.Context, l Locker, key string, wait, lease time.Duration, fn func() error) error {
	ok, err := l.TryLock(ctx, key, wait, lease)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotAcquired
	}
	defer func() { _ = l.Unlock(context.WithoutCancel(ctx), key) }()
	return fn()
}

const (
	lockPrefix = "lock:"
	lockValue  = "1"
)

// RedisLocker implements Locker with a single conditional write per attempt:
// SET key value NX PX lease.  Acquisition is atomic at the storage layer --
// there is no separate existence check.  Release deletes the marker.
type RedisLocker struct {
	rdb *redis.Client
}

// NewRedisLocker returns a Locker backed by the given Redis client.
func NewRedisLocker(rdb *redis.Client) *RedisLocker { return &RedisLocker{rdb: rdb} }

func (l *RedisLocker) TryLock(ctx context.Context, key string, wait, lease time.Duration) (bool, error) {
	deadline := time.Now().Add(wait)
	for {
		ok, err := l.rdb.SetNX(ctx, lockPrefix+key, lockValue, lease).Result()
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
		if wait <= 0 || !time.Now().Add(retryInterval).Before(deadline) {
			return false, nil
		}
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-time.After(retryInterval):
		}
	}
}

func (l *RedisLocker) Unlock(ctx context.Context, key string) error {
	return l.rdb.Del(ctx, lockPrefix+key).Err()
}
