// Package clock abstracts the current time so that time-dependent logic
// (hold expiry, token TTLs, the sweeper) can be tested deterministically.
package clock

import (
	"sync"
	"time"
)

// Clock supplies the current time.  All components that compare timestamps
// accept a Clock instead of calling time.Now directly.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// System returns a Clock backed by the wall clock.  Times are always UTC so
// expiry comparisons are consistent with what the database stores.
func System() Clock { return systemClock{} }

// Fake is a manually advanced Clock for tests.  The zero value is not
// usable; construct it with NewFake.
type Fake struct {
	mu  sync.Mutex
	now time.Time
}

// NewFake returns a Fake clock frozen at t.
func NewFake(t time.Time) *Fake { return &Fake{now: t.UTC()} }

// Now returns the fake current time.
func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// Advance moves the fake clock forward by d.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

// Set pins the fake clock to t.
func (f *Fake) Set(t time.Time) {
	f.mu.Lock()
	f.now = t.UTC()
	f.mu.Unlock()
}
