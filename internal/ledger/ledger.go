// Package ledger manages user balances: top-ups, debits and reads.  Credits
// are serialized per user with a distributed lock; debits rely on a single
// conditional write in storage, so they never take a lock and can run at
// full concurrency without overdrawing.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/iliyamo/concert-reservation/internal/clock"
	"github.com/iliyamo/concert-reservation/internal/lock"
	"github.com/iliyamo/concert-reservation/internal/model"
)

// ErrInvalidAmount is returned when a charge or debit amount is not positive.
var ErrInvalidAmount = errors.New("amount must be positive")

// ErrInsufficientBalance is returned when a debit would take the balance
// below zero.  The balance is left untouched.
var ErrInsufficientBalance = errors.New("insufficient balance")

// BalanceStore is the storage port the ledger writes through.
// DeductIfSufficient must be atomic: the balance check and the debit happen
// in one storage operation, and false means the funds did not cover amount.
type BalanceStore interface {
	Get(ctx context.Context, userID uint64) (*model.Balance, error)
	Add(ctx context.Context, userID uint64, amount int64, at time.Time) error
	DeductIfSufficient(ctx context.Context, userID uint64, amount int64, at time.Time) (bool, error)
}

// Ledger exposes balance operations.
type Ledger struct {
	store  BalanceStore
	locker lock.Locker
	clk    clock.Clock

	lockWait  time.Duration
	lockLease time.Duration
}

// New returns a Ledger using the given store, lock and clock.
func New(store BalanceStore, locker lock.Locker, clk clock.Clock, lockWait, lockLease time.Duration) *Ledger {
	return &Ledger{store: store, locker: locker, clk: clk, lockWait: lockWait, lockLease: lockLease}
}

// chargeLockKey serializes top-ups for one user across replicas.
func chargeLockKey(userID uint64) string {
	return fmt.Sprintf("user:balance:charge:%d", userID)
}

// Charge credits amount to the user's balance and returns the new total.
// Concurrent charges for the same user are serialized by a per-user lock so
// the read-modify-write upsert cannot lose an increment.
func (l *Ledger) Charge(ctx context.Context, userID uint64, amount int64) (*model.Balance, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	var out *model.Balance
	err := lock.WithLock(ctx, l.locker, chargeLockKey(userID), l.lockWait, l.lockLease, func() error {
		if err := l.store.Add(ctx, userID, amount, l.clk.Now()); err != nil {
			return err
		}
		b, err := l.store.Get(ctx, userID)
		if err != nil {
			return err
		}
		out = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Use debits amount from the user's balance.  No lock is taken: the store's
// conditional write is the entire race protection, so any number of
// concurrent debits settle to a non-negative balance.
func (l *Ledger) Use(ctx context.Context, userID uint64, amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	ok, err := l.store.DeductIfSufficient(ctx, userID, amount, l.clk.Now())
	if err != nil {
		return err
	}
	if !ok {
		return ErrInsufficientBalance
	}
	return nil
}

// GetBalance returns the user's current balance; users without a row read
// as zero.
func (l *Ledger) GetBalance(ctx context.Context, userID uint64) (*model.Balance, error) {
	return l.store.Get(ctx, userID)
}
