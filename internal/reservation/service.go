// Package reservation implements the seat lifecycle: materializing the seat
// pool for a concert date, holding a seat, confirming it through payment and
// reclaiming lapsed holds.  Multi-step transitions run under a per-seat or
// per-reservation distributed lock; there are no storage transactions, so
// the lock is the only thing keeping check-then-write sequences exclusive.
package reservation

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/iliyamo/concert-reservation/internal/clock"
	"github.com/iliyamo/concert-reservation/internal/events"
	"github.com/iliyamo/concert-reservation/internal/lock"
	"github.com/iliyamo/concert-reservation/internal/model"
)

// SeatStore is the seat persistence port.
type SeatStore interface {
	Get(ctx context.Context, date string, seatNumber int) (*model.Seat, error)
	GetByID(ctx context.Context, id uint64) (*model.Seat, error)
	Update(ctx context.Context, seat *model.Seat) error
	CountByDate(ctx context.Context, date string) (int, error)
	CreatePool(ctx context.Context, date string, n int) error
	ListAvailableNumbers(ctx context.Context, date string) ([]int, error)
	ListDates(ctx context.Context) ([]string, error)
}

// ReservationStore is the reservation persistence port.
type ReservationStore interface {
	Create(ctx context.Context, res *model.Reservation) error
	Get(ctx context.Context, id uint64) (*model.Reservation, error)
	Update(ctx context.Context, res *model.Reservation) error
	ExpireActiveBySeat(ctx context.Context, seatID uint64, at time.Time) error
	FindExpiredHolds(ctx context.Context, now time.Time) ([]model.Reservation, error)
}

// PaymentStore is the payment persistence port.
type PaymentStore interface {
	Create(ctx context.Context, p *model.Payment) error
	ListByUser(ctx context.Context, userID uint64) ([]model.Payment, error)
}

// Debiter is the slice of the balance ledger the payment path needs.
type Debiter interface {
	Use(ctx context.Context, userID uint64, amount int64) error
}

// CompletionListener receives a notification after a payment has committed.
// Listeners run asynchronously and best-effort: a failing listener logs and
// is dropped, it can never undo the payment.
type CompletionListener interface {
	ReservationCompleted(ctx context.Context, ev events.ReservationCompleted)
}

// Service coordinates seat holds, payments and expiry.
type Service struct {
	seats        SeatStore
	reservations ReservationStore
	payments     PaymentStore
	ledger       Debiter
	locker       lock.Locker
	clk          clock.Clock

	seatsPerDate int
	holdDuration time.Duration
	lockWait     time.Duration
	lockLease    time.Duration

	listeners []CompletionListener
}

// Options carries the tuning knobs for a Service.
type Options struct {
	SeatsPerDate int
	HoldDuration time.Duration
	LockWait     time.Duration
	LockLease    time.Duration
}

// NewService wires a Service from its ports.
func NewService(seats SeatStore, reservations ReservationStore, payments PaymentStore, ledger Debiter, locker lock.Locker, clk clock.Clock, opts Options) *Service {
	return &Service{
		seats:        seats,
		reservations: reservations,
		payments:     payments,
		ledger:       ledger,
		locker:       locker,
		clk:          clk,
		seatsPerDate: opts.SeatsPerDate,
		holdDuration: opts.HoldDuration,
		lockWait:     opts.LockWait,
		lockLease:    opts.LockLease,
	}
}

// Subscribe registers a listener for completed reservations.  Call during
// wiring, before the service starts handling requests.
func (s *Service) Subscribe(l CompletionListener) {
	s.listeners = append(s.listeners, l)
}

const dateLayout = "2006-01-02"

func validDate(date string) bool {
	_, err := time.Parse(dateLayout, date)
	return err == nil
}

func reserveLockKey(date string, seatNumber int) string {
	return fmt.Sprintf("seat:reserve:%s:%d", date, seatNumber)
}

func poolLockKey(date string) string {
	return fmt.Sprintf("seat:pool:%s", date)
}

// EnsurePool lazily materializes the seat rows for a concert date.  The
// first caller for a date creates seats 1..N under a per-date lock; later
// callers see a non-zero count and return immediately.
func (s *Service) EnsurePool(ctx context.Context, date string) error {
	if !validDate(date) {
		return ErrInvalidDate
	}
	n, err := s.seats.CountByDate(ctx, date)
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	return lock.WithLock(ctx, s.locker, poolLockKey(date), s.lockWait, s.lockLease, func() error {
		// Re-check under the lock; another replica may have won the race.
		n, err := s.seats.CountByDate(ctx, date)
		if err != nil {
			return err
		}
		if n > 0 {
			return nil
		}
		return s.seats.CreatePool(ctx, date, s.seatsPerDate)
	})
}

// AvailableSeats returns the free seat numbers for a date, materializing the
// pool on first access.
func (s *Service) AvailableSeats(ctx context.Context, date string) ([]int, error) {
	if err := s.EnsurePool(ctx, date); err != nil {
		return nil, err
	}
	return s.seats.ListAvailableNumbers(ctx, date)
}

// Dates returns every concert date that has a seat pool.
func (s *Service) Dates(ctx context.Context) ([]string, error) {
	return s.seats.ListDates(ctx)
}

// Reserve places a hold on one seat for userID.  The whole check-then-hold
// sequence runs under the seat's lock, so at most one concurrent caller can
// claim it; everyone else gets ErrSeatUnavailable or lock.ErrNotAcquired.
// A lapsed hold found on the seat is cleaned up inline before the
// availability check, so a seat abandoned at T0 is claimable at T0+hold
// without waiting for the sweeper.
func (s *Service) Reserve(ctx context.Context, userID uint64, date string, seatNumber int) (*model.Reservation, error) {
	if !validDate(date) {
		return nil, ErrInvalidDate
	}
	if seatNumber < 1 || seatNumber > s.seatsPerDate {
		return nil, ErrInvalidSeatNumber
	}
	if err := s.EnsurePool(ctx, date); err != nil {
		return nil, err
	}

	var out *model.Reservation
	err := lock.WithLock(ctx, s.locker, reserveLockKey(date, seatNumber), s.lockWait, s.lockLease, func() error {
		seat, err := s.seats.Get(ctx, date, seatNumber)
		if err != nil {
			return err
		}
		now := s.clk.Now()

		if seat.IsHeld() && seat.IsHoldExpired(now) {
			if err := s.releaseLapsedHold(ctx, seat, now); err != nil {
				return err
			}
		}
		if !seat.IsAvailable() {
			return ErrSeatUnavailable
		}

		seat.Hold(userID, now.Add(s.holdDuration))
		if err := s.seats.Update(ctx, seat); err != nil {
			return err
		}
		res := &model.Reservation{
			SeatID:    seat.ID,
			UserID:    userID,
			Status:    model.ReservationHold,
			ExpiresAt: seat.HoldExpiresAt,
			CreatedAt: now,
		}
		if err := s.reservations.Create(ctx, res); err != nil {
			return err
		}
		out = res
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// releaseLapsedHold frees a seat whose hold deadline has passed and expires
// whatever HOLD reservation was backing it.  Caller holds the seat lock.
func (s *Service) releaseLapsedHold(ctx context.Context, seat *model.Seat, now time.Time) error {
	if err := s.reservations.ExpireActiveBySeat(ctx, seat.ID, now); err != nil {
		return err
	}
	seat.ReleaseHold()
	return s.seats.Update(ctx, seat)
}

// notifyCompleted fans the event out to every listener off the request path.
func (s *Service) notifyCompleted(ctx context.Context, ev events.ReservationCompleted) {
	if len(s.listeners) == 0 {
		return
	}
	listeners := s.listeners
	detached := context.WithoutCancel(ctx)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.Printf("[reservation] completion listener panicked: %v", r)
			}
		}()
		for _, l := range listeners {
			l.ReservationCompleted(detached, ev)
		}
	}()
}
