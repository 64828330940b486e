package reservation

import (
	"context"
	"log"
	"time"

	"github.com/iliyamo/concert-reservation/internal/lock"
	"github.com/iliyamo/concert-reservation/internal/model"
)

// Sweeper periodically reclaims holds that lapsed without payment.  It is a
// safety net behind the inline cleanup on the reserve and pay paths: even if
// no request ever touches an abandoned seat, the sweeper frees it within one
// interval.
type Sweeper struct {
	svc      *Service
	interval time.Duration
}

// NewSweeper returns a Sweeper driving svc every interval.
func NewSweeper(svc *Service, interval time.Duration) *Sweeper {
	return &Sweeper{svc: svc, interval: interval}
}

// Run ticks until ctx is cancelled.  Intended to be started as a goroutine
// from main.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	log.Printf("[sweeper] running every %s", s.interval)
	for {
		select {
		case <-ctx.Done():
			log.Println("[sweeper] stopped")
			return
		case <-ticker.C:
			s.svc.SweepExpired(ctx)
		}
	}
}

// SweepExpired expires every lapsed HOLD reservation and releases its seat.
// Each item is handled independently under the seat's lock; one bad row is
// logged and skipped so it cannot stall the rest of the batch.
func (s *Service) SweepExpired(ctx context.Context) {
	now := s.clk.Now()
	expired, err := s.reservations.FindExpiredHolds(ctx, now)
	if err != nil {
		log.Printf("[sweeper] list expired holds: %v", err)
		return
	}
	for _, res := range expired {
		if err := s.sweepOne(ctx, res.ID, res.SeatID); err != nil {
			log.Printf("[sweeper] reservation %d: %v", res.ID, err)
		}
	}
	if len(expired) > 0 {
		log.Printf("[sweeper] reclaimed %d lapsed holds", len(expired))
	}
}

func (s *Service) sweepOne(ctx context.Context, reservationID, seatID uint64) error {
	seat, err := s.seats.GetByID(ctx, seatID)
	if err != nil {
		return err
	}
	return lock.WithLock(ctx, s.locker, reserveLockKey(seat.ConcertDate, seat.SeatNumber), s.lockWait, s.lockLease, func() error {
		// Re-read under the lock: the hold may have been paid or re-issued
		// between the scan and now.
		res, err := s.reservations.Get(ctx, reservationID)
		if err != nil {
			return err
		}
		now := s.clk.Now()
		if res.Status != model.ReservationHold || !res.IsExpired(now) {
			return nil
		}
		res.Expire(now)
		if err := s.reservations.Update(ctx, res); err != nil {
			return err
		}
		seat, err := s.seats.GetByID(ctx, seatID)
		if err != nil {
			return err
		}
		if seat.IsHeld() && seat.IsHoldExpired(now) {
			seat.ReleaseHold()
			return s.seats.Update(ctx, seat)
		}
		return nil
	})
}
