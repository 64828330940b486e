package model

import "time"

// ReservationStatus is the lifecycle state of one hold attempt.
type ReservationStatus string

const (
	ReservationHold      ReservationStatus = "HOLD"      // awaiting payment
	ReservationConfirmed ReservationStatus = "CONFIRMED" // paid
	ReservationExpired   ReservationStatus = "EXPIRED"   // hold lapsed unpaid
)

// Reservation records one hold attempt on a seat.  A new row is created for
// every hold, including re-holds after expiry, so the history of attempts is
// never overwritten; the seat row alone says who holds the seat right now.
type Reservation struct {
	ID        uint64            // reservations.id
	SeatID    uint64            // reservations.seat_id
	UserID    uint64            // reservations.user_id
	Status    ReservationStatus // reservations.status
	ExpiresAt time.Time         // reservations.expires_at; set to the transition time on confirm/expire
	CreatedAt time.Time         // reservations.created_at
}

// Confirm marks the reservation paid at confirmedAt.
func (r *Reservation) Confirm(confirmedAt time.Time) {
	r.Status = ReservationConfirmed
	r.ExpiresAt = confirmedAt
}

// Expire marks the reservation lapsed at expiredAt.
func (r *Reservation) Expire(expiredAt time.Time) {
	r.Status = ReservationExpired
	r.ExpiresAt = expiredAt
}

// IsExpired reports whether the hold deadline has passed as of now.
func (r *Reservation) IsExpired(now time.Time) bool {
	return !r.ExpiresAt.IsZero() && r.ExpiresAt.Before(now)
}
