// Package events defines the messages emitted after a reservation completes
// and the RabbitMQ publisher/consumer pair that carries them between
// processes.
package events

import "time"

// ReservationCompletedQueue is the durable queue reservation completion
// events are published to.
const ReservationCompletedQueue = "reservation.completed"

// ReservationCompleted is emitted once per successful payment, after the
// seat, reservation, balance and payment rows have all been written.
type ReservationCompleted struct {
	ReservationID uint64    `json:"reservation_id"`
	UserID        uint64    `json:"user_id"`
	PaymentID     uint64    `json:"payment_id"`
	Amount        int64     `json:"amount"`
	ConcertDate   string    `json:"concert_date"`
	SeatNumber    int       `json:"seat_number"`
	SoldOut       bool      `json:"sold_out"` // date had no free seats left at completion
	CompletedAt   time.Time `json:"completed_at"`
}
