// Package repository provides data access to the MySQL tables backing
// seats, reservations, balances, payments and users.  Sentinel errors
// defined here let the service layer distinguish "row does not exist" from
// infrastructure failures without leaking sql.ErrNoRows upwards.
package repository

import "errors"

// ErrSeatNotFound is returned when no seat row exists for the requested
// (concert date, seat number) or seat id.
var ErrSeatNotFound = errors.New("seat not found")

// ErrReservationNotFound is returned when no reservation row exists for the
// requested id.
var ErrReservationNotFound = errors.New("reservation not found")
