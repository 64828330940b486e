package reservation

import (
	"context"
	"fmt"
	"log"

	"github.com/iliyamo/concert-reservation/internal/events"
	"github.com/iliyamo/concert-reservation/internal/ledger"
	"github.com/iliyamo/concert-reservation/internal/lock"
	"github.com/iliyamo/concert-reservation/internal/model"
)

func payLockKey(reservationID uint64) string {
	return fmt.Sprintf("reservation:pay:%d", reservationID)
}

// Pay settles a held reservation: it debits the buyer's balance, flips the
// seat to RESERVED and the reservation to CONFIRMED, and records the
// payment.  The whole sequence runs under the reservation's lock so a
// double-submit cannot pay twice.
//
// A hold found lapsed here is compensated on the spot -- the reservation is
// expired and the seat released -- and the caller gets ErrReservationExpired.
// Balance errors pass through from the ledger (ledger.ErrInsufficientBalance,
// ledger.ErrInvalidAmount).
func (s *Service) Pay(ctx context.Context, reservationID, userID uint64, amount int64) (*model.Payment, error) {
	if amount <= 0 {
		return nil, ledger.ErrInvalidAmount
	}

	var payment *model.Payment
	var completed events.ReservationCompleted
	err := lock.WithLock(ctx, s.locker, payLockKey(reservationID), s.lockWait, s.lockLease, func() error {
		res, err := s.reservations.Get(ctx, reservationID)
		if err != nil {
			return err
		}
		if res.UserID != userID {
			return ErrReservationMismatch
		}
		if res.Status != model.ReservationHold {
			return ErrInvalidState
		}

		seat, err := s.seats.GetByID(ctx, res.SeatID)
		if err != nil {
			return err
		}
		now := s.clk.Now()

		if res.IsExpired(now) {
			// Compensate before failing so the seat is immediately
			// claimable by the next buyer.
			res.Expire(now)
			if err := s.reservations.Update(ctx, res); err != nil {
				return err
			}
			if seat.IsHeldBy(userID) {
				seat.ReleaseHold()
				if err := s.seats.Update(ctx, seat); err != nil {
					return err
				}
			}
			return ErrReservationExpired
		}
		if !seat.IsHeldBy(userID) {
			// The seat moved on without this reservation: another hold
			// superseded it after a sweep, or it was already sold.
			return ErrInvalidState
		}

		if err := s.ledger.Use(ctx, userID, amount); err != nil {
			return err
		}

		seat.Reserve(userID)
		if err := s.seats.Update(ctx, seat); err != nil {
			return err
		}
		res.Confirm(now)
		if err := s.reservations.Update(ctx, res); err != nil {
			return err
		}

		p := &model.Payment{
			ReservationID: res.ID,
			UserID:        userID,
			Amount:        amount,
			PaidAt:        now,
		}
		if err := s.payments.Create(ctx, p); err != nil {
			return err
		}
		payment = p

		completed = events.ReservationCompleted{
			ReservationID: res.ID,
			UserID:        userID,
			PaymentID:     p.ID,
			Amount:        amount,
			ConcertDate:   seat.ConcertDate,
			SeatNumber:    seat.SeatNumber,
			CompletedAt:   now,
		}
		if free, err := s.seats.ListAvailableNumbers(ctx, seat.ConcertDate); err != nil {
			log.Printf("[reservation] sold-out check for %s: %v", seat.ConcertDate, err)
		} else {
			completed.SoldOut = len(free) == 0
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notifyCompleted(ctx, completed)
	return payment, nil
}

// PaymentsByUser returns the user's payment history, most recent first.
func (s *Service) PaymentsByUser(ctx context.Context, userID uint64) ([]model.Payment, error) {
	return s.payments.ListByUser(ctx, userID)
}
