package model

import "time"

// SeatStatus is the lifecycle state of a seat for one concert date.
type SeatStatus string

const (
	SeatAvailable SeatStatus = "AVAILABLE" // free for anyone to hold
	SeatHeld      SeatStatus = "HELD"      // temporarily claimed, not yet paid
	SeatReserved  SeatStatus = "RESERVED"  // paid; terminal for the ticket lifecycle
)

// Seat is one seat of one concert date.  There is exactly one row per
// (concert_date, seat_number); seat numbers run 1..N for each date.
//
// Transitions: AVAILABLE -> HELD -> RESERVED, or HELD -> AVAILABLE when the
// hold expires or is released.  While HELD the row carries the holder and
// the hold deadline; RESERVED clears the hold fields and records the buyer.
type Seat struct {
	ID            uint64     // seats.id
	ConcertDate   string     // seats.concert_date, formatted 2006-01-02
	SeatNumber    int        // seats.seat_number, 1..N
	Status        SeatStatus // seats.status
	HoldUserID    uint64     // seats.hold_user_id, 0 when not held
	HoldExpiresAt time.Time  // seats.hold_expires_at, zero when not held
	ReservedBy    uint64     // seats.reserved_user_id, 0 until reserved
	UpdatedAt     time.Time  // seats.updated_at
}

// Hold claims the seat for userID until expiresAt.
func (s *Seat) Hold(userID uint64, expiresAt time.Time) {
	s.Status = SeatHeld
	s.HoldUserID = userID
	s.HoldExpiresAt = expiresAt
}

// ReleaseHold returns the seat to AVAILABLE and clears all claim fields.
func (s *Seat) ReleaseHold() {
	s.Status = SeatAvailable
	s.HoldUserID = 0
	s.HoldExpiresAt = time.Time{}
	s.ReservedBy = 0
}

// Reserve finalizes the seat for userID and clears the hold fields.
func (s *Seat) Reserve(userID uint64) {
	s.Status = SeatReserved
	s.ReservedBy = userID
	s.HoldUserID = 0
	s.HoldExpiresAt = time.Time{}
}

// IsAvailable reports whether the seat can be held.
func (s *Seat) IsAvailable() bool { return s.Status == SeatAvailable }

// IsHeld reports whether the seat is currently held by anyone.
func (s *Seat) IsHeld() bool { return s.Status == SeatHeld }

// IsHeldBy reports whether the seat is held by userID.
func (s *Seat) IsHeldBy(userID uint64) bool {
	return s.Status == SeatHeld && s.HoldUserID == userID
}

// IsHoldExpired reports whether a hold has lapsed as of now.
func (s *Seat) IsHoldExpired(now time.Time) bool {
	return !s.HoldExpiresAt.IsZero() && s.HoldExpiresAt.Before(now)
}
