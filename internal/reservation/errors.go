package reservation

import "errors"

var (
	// ErrInvalidDate is returned when a concert date is not in 2006-01-02 form.
	ErrInvalidDate = errors.New("invalid concert date")

	// ErrInvalidSeatNumber is returned when a seat number falls outside 1..N.
	ErrInvalidSeatNumber = errors.New("invalid seat number")

	// ErrSeatUnavailable is returned when the seat is held by someone else or
	// already sold.
	ErrSeatUnavailable = errors.New("seat unavailable")

	// ErrReservationMismatch is returned when a payment is attempted by a user
	// who does not own the reservation.
	ErrReservationMismatch = errors.New("reservation belongs to another user")

	// ErrInvalidState is returned when a payment targets a reservation that is
	// not awaiting payment, or whose seat claim has already been superseded.
	ErrInvalidState = errors.New("reservation not payable")

	// ErrReservationExpired is returned when the hold lapsed before payment.
	// The reservation and its seat have been cleaned up by the time the
	// caller sees this error.
	ErrReservationExpired = errors.New("reservation expired")
)
