package admission

import (
	"context"
	"sync"

	"github.com/iliyamo/concert-reservation/internal/clock"
)

// MemoryStore is a process-local TokenStore used when Redis is unavailable
// (single-node mode) and in tests.  All operations run under one mutex, so
// promotion is trivially atomic within the process.  Multi-replica
// deployments must use RedisStore: admission counts here are per process.
type MemoryStore struct {
	mu      sync.Mutex
	limit   int
	clk     clock.Clock
	byValue map[string]*Token
	latest  map[uint64]*Token // latest token per user, by creation order
	waiting []*Token          // FIFO by arrival
	active  map[uint64]*Token // userID -> ACTIVE token
}

// NewMemoryStore returns an empty store admitting at most limit callers.
func NewMemoryStore(limit int, clk clock.Clock) *MemoryStore {
	return &MemoryStore{
		limit:   limit,
		clk:     clk,
		byValue: make(map[string]*Token),
		latest:  make(map[uint64]*Token),
		active:  make(map[uint64]*Token),
	}
}

func (m *MemoryStore) FindLatestByUser(_ context.Context, userID uint64) (*Token, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.latest[userID]
	if !ok {
		return nil, ErrTokenNotFound
	}
	return m.snapshot(t), nil
}

func (m *MemoryStore) FindByValue(_ context.Context, value string) (*Token, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.byValue[value]
	if !ok {
		return nil, ErrTokenNotFound
	}
	return m.snapshot(t), nil
}

func (m *MemoryStore) Save(_ context.Context, t *Token) (*Token, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch t.Status {
	case StatusWaiting:
		stored := m.byValue[t.Value]
		if stored == nil {
			cp := *t
			stored = &cp
			m.byValue[stored.Value] = stored
			m.latest[stored.UserID] = stored
			m.waiting = append(m.waiting, stored)
		}
		m.promote()
		return m.snapshot(stored), nil

	case StatusActive:
		stored := m.byValue[t.Value]
		if stored == nil {
			cp := *t
			stored = &cp
			m.byValue[stored.Value] = stored
			m.latest[stored.UserID] = stored
		}
		stored.Status = StatusActive
		m.removeWaiting(stored)
		m.active[stored.UserID] = stored
		m.promote()
		return m.snapshot(stored), nil

	case StatusExpired, StatusDone:
		if stored, ok := m.byValue[t.Value]; ok {
			stored.Status = t.Status
			m.removeWaiting(stored)
			delete(m.active, stored.UserID)
		}
		m.promote()
		cp := *t
		cp.Position = 0
		return &cp, nil
	}
	cp := *t
	return &cp, nil
}

// promote expires stale grants and waiters, then fills free active slots
// oldest-waiter-first.  Caller holds the mutex.
func (m *MemoryStore) promote() {
	now := m.clk.Now()

	for uid, t := range m.active {
		if t.IsExpired(now) {
			t.Status = StatusExpired
			delete(m.active, uid)
		}
	}
	kept := m.waiting[:0]
	for _, t := range m.waiting {
		if t.IsExpired(now) {
			t.Status = StatusExpired
			continue
		}
		kept = append(kept, t)
	}
	m.waiting = kept

	for len(m.active) < m.limit && len(m.waiting) > 0 {
		next := m.waiting[0]
		m.waiting = m.waiting[1:]
		next.Status = StatusActive
		m.active[next.UserID] = next
	}
}

func (m *MemoryStore) removeWaiting(t *Token) {
	for i, w := range m.waiting {
		if w == t {
			m.waiting = append(m.waiting[:i], m.waiting[i+1:]...)
			return
		}
	}
}

// snapshot copies a stored token with its current position.  Caller holds
// the mutex.
func (m *MemoryStore) snapshot(t *Token) *Token {
	cp := *t
	cp.Position = 0
	if t.Status == StatusWaiting {
		for i, w := range m.waiting {
			if w == t {
				cp.Position = i + 1
				break
			}
		}
	}
	return &cp
}
