package events

import (
	"context"
	"log"
)

// LogNotifier is the in-process user notification channel: it writes one log
// line per completed reservation.  A real delivery channel (mail, push)
// would replace this without touching the reservation service.
type LogNotifier struct{}

// NewLogNotifier returns a LogNotifier.
func NewLogNotifier() *LogNotifier { return &LogNotifier{} }

// ReservationCompleted logs the notification.  Satisfies the reservation
// service's listener contract.
func (n *LogNotifier) ReservationCompleted(_ context.Context, ev ReservationCompleted) {
	log.Printf("[notify] user %d: seat %d on %s is confirmed (payment %d, amount %d)",
		ev.UserID, ev.SeatNumber, ev.ConcertDate, ev.PaymentID, ev.Amount)
}
