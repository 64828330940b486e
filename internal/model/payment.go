package model

import "time"

// Payment is the immutable record of one successful balance deduction for a
// reservation.  Exactly one row exists per paid reservation.
type Payment struct {
	ID            uint64    // payments.id
	ReservationID uint64    // payments.reservation_id
	UserID        uint64    // payments.user_id
	Amount        int64     // payments.amount, in the smallest currency unit
	PaidAt        time.Time // payments.paid_at
}

// Balance is a user's non-negative internal balance.  It is mutated only
// through the ledger: additive charge or conditional deduct.
type Balance struct {
	UserID    uint64    // balances.user_id
	Amount    int64     // balances.amount, never negative
	UpdatedAt time.Time // balances.updated_at
}
