package lock

import (
	"context"
	"sync"
	"time"
)

// Local is a process-local Locker used when Redis is unavailable (single
// node deployments, development) and by tests.  It mirrors the Redis
// semantics: one holder per key, leases self-expire, release deletes the
// entry.  It is obviously not distributed; multi-replica deployments must
// use RedisLocker.
type Local struct {
	mu     sync.Mutex
	leases map[string]time.Time // key -> lease deadline
}

// NewLocal returns an empty process-local locker.
func NewLocal() *Local { return &Local{leases: make(map[string]time.Time)} }

func (l *Local) tryOnce(key string, lease time.Duration) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := time.Now()
	if dl, held := l.leases[key]; held && now.Before(dl) {
		return false
	}
	l.leases[key] = now.Add(lease)
	return true
}

func (l *Local) TryLock(ctx context.Context, key string, wait, lease time.Duration) (bool, error) {
	deadline := time.Now().Add(wait)
	for {
		if l.tryOnce(key, lease) {
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

func (l *Local) Unlock(_ context.Context, key string) error {
	l.mu.Lock()
	delete(l.leases, key)
	l.mu.Unlock()
	return nil
}
