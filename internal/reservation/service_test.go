package reservation

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/concert-reservation/internal/clock"
	"github.com/iliyamo/concert-reservation/internal/lock"
	"github.com/iliyamo/concert-reservation/internal/model"
)

const testDate = "2025-07-01"

type fixture struct {
	svc          *Service
	seats        *memSeats
	reservations *memReservations
	payments     *memPayments
	debiter      *fakeDebiter
	clk          *clock.Fake
}

func newFixture() *fixture {
	f := &fixture{
		seats:        newMemSeats(),
		reservations: newMemReservations(),
		payments:     newMemPayments(),
		debiter:      newFakeDebiter(),
		clk:          clock.NewFake(time.Date(2025, 7, 1, 10, 0, 0, 0, time.UTC)),
	}
	f.svc = NewService(f.seats, f.reservations, f.payments, f.debiter, lock.NewLocal(), f.clk, Options{
		SeatsPerDate: 50,
		HoldDuration: 5 * time.Minute,
		LockWait:     time.Second,
		LockLease:    5 * time.Second,
	})
	return f
}

func TestEnsurePoolMaterializesSeatsOnce(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	require.NoError(t, f.svc.EnsurePool(ctx, testDate))
	n, err := f.seats.CountByDate(ctx, testDate)
	require.NoError(t, err)
	assert.Equal(t, 50, n)

	// Second call must not duplicate the pool.
	require.NoError(t, f.svc.EnsurePool(ctx, testDate))
	n, err = f.seats.CountByDate(ctx, testDate)
	require.NoError(t, err)
	assert.Equal(t, 50, n)
}

func TestAvailableSeatsOnFreshDate(t *testing.T) {
	f := newFixture()

	free, err := f.svc.AvailableSeats(context.Background(), testDate)
	require.NoError(t, err)
	require.Len(t, free, 50)
	assert.Equal(t, 1, free[0])
	assert.Equal(t, 50, free[49])
}

func TestReserveValidation(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	_, err := f.svc.Reserve(ctx, 1, "july first", 3)
	assert.ErrorIs(t, err, ErrInvalidDate)

	_, err = f.svc.Reserve(ctx, 1, testDate, 0)
	assert.ErrorIs(t, err, ErrInvalidSeatNumber)

	_, err = f.svc.Reserve(ctx, 1, testDate, 51)
	assert.ErrorIs(t, err, ErrInvalidSeatNumber)
}

func TestReserveHoldsSeat(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	res, err := f.svc.Reserve(ctx, 42, testDate, 7)
	require.NoError(t, err)
	assert.Equal(t, model.ReservationHold, res.Status)
	assert.Equal(t, uint64(42), res.UserID)
	assert.Equal(t, f.clk.Now().Add(5*time.Minute), res.ExpiresAt)

	seat, err := f.seats.Get(ctx, testDate, 7)
	require.NoError(t, err)
	assert.Equal(t, model.SeatHeld, seat.Status)
	assert.Equal(t, uint64(42), seat.HoldUserID)
	assert.Equal(t, res.ExpiresAt, seat.HoldExpiresAt)
}

func TestReserveHeldSeatFails(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	_, err := f.svc.Reserve(ctx, 1, testDate, 7)
	require.NoError(t, err)

	_, err = f.svc.Reserve(ctx, 2, testDate, 7)
	assert.ErrorIs(t, err, ErrSeatUnavailable)
}

func TestConcurrentReserveSingleWinner(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	const contenders = 32
	results := make(chan error, contenders)
	var wg sync.WaitGroup
	for i := 0; i < contenders; i++ {
		wg.Add(1)
		go func(userID uint64) {
			defer wg.Done()
			_, err := f.svc.Reserve(ctx, userID, testDate, 13)
			results <- err
		}(uint64(i + 1))
	}
	wg.Wait()
	close(results)

	var won int
	for err := range results {
		if err == nil {
			won++
		} else {
			assert.ErrorIs(t, err, ErrSeatUnavailable)
		}
	}
	assert.Equal(t, 1, won, "exactly one contender may hold the seat")

	seat, err := f.seats.Get(ctx, testDate, 13)
	require.NoError(t, err)
	assert.Equal(t, model.SeatHeld, seat.Status)
}

func TestReserveReclaimsLapsedHoldInline(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	first, err := f.svc.Reserve(ctx, 1, testDate, 9)
	require.NoError(t, err)

	// Abandon the hold; six minutes later the seat must be claimable
	// without any sweeper run.
	f.clk.Advance(6 * time.Minute)

	second, err := f.svc.Reserve(ctx, 2, testDate, 9)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID, "re-hold creates a new reservation row")

	seat, err := f.seats.Get(ctx, testDate, 9)
	require.NoError(t, err)
	assert.True(t, seat.IsHeldBy(2))

	old, err := f.reservations.Get(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ReservationExpired, old.Status, "superseded hold is expired, not deleted")
}

func TestDatesListsMaterializedPools(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	require.NoError(t, f.svc.EnsurePool(ctx, "2025-07-01"))
	require.NoError(t, f.svc.EnsurePool(ctx, "2025-07-02"))

	dates, err := f.svc.Dates(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"2025-07-01", "2025-07-02"}, dates)
}
