// Package admission implements the queue admission gate: it caps how many
// callers may use the reservation and payment paths at once, keeps everyone
// else in a strict arrival-order waiting line, and expires stale grants.
package admission

import (
	"errors"
	"time"
)

// Status is the lifecycle state of an admission token.  Transitions only
// move forward: WAITING -> ACTIVE -> DONE, or -> EXPIRED from either
// non-terminal state.
type Status string

const (
	StatusWaiting Status = "WAITING" // enqueued, not yet admitted
	StatusActive  Status = "ACTIVE"  // admitted; may reserve and pay
	StatusExpired Status = "EXPIRED" // TTL elapsed before completion
	StatusDone    Status = "DONE"    // explicitly completed after payment
)

// Token is an opaque admission credential bound to one user.  Position is
// the 1-based rank among waiters while WAITING and 0 while ACTIVE.  The TTL
// is fixed from issuance; remaining ACTIVE does not slide the deadline.
type Token struct {
	UserID    uint64    `json:"user_id"`
	Value     string    `json:"value"`
	Status    Status    `json:"status"`
	Position  int       `json:"position"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// IsExpired reports whether the token's TTL has elapsed as of now.
func (t *Token) IsExpired(now time.Time) bool {
	return !t.ExpiresAt.IsZero() && t.ExpiresAt.Before(now)
}

// IsActiveOrWaiting reports whether the token is still in a non-terminal state.
func (t *Token) IsActiveOrWaiting() bool {
	return t.Status == StatusActive || t.Status == StatusWaiting
}

// Sentinel errors surfaced to handlers.  All three mean "go back to the
// queue" from the caller's point of view.
var (
	ErrTokenNotFound  = errors.New("queue token not found")
	ErrTokenExpired   = errors.New("queue token expired")
	ErrTokenNotActive = errors.New("queue token is not active")
)
