package reservation

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/concert-reservation/internal/events"
	"github.com/iliyamo/concert-reservation/internal/ledger"
	"github.com/iliyamo/concert-reservation/internal/model"
)

type captureListener struct {
	ch chan events.ReservationCompleted
}

func newCaptureListener() *captureListener {
	return &captureListener{ch: make(chan events.ReservationCompleted, 8)}
}

func (c *captureListener) ReservationCompleted(_ context.Context, ev events.ReservationCompleted) {
	c.ch <- ev
}

func (c *captureListener) wait(t *testing.T) events.ReservationCompleted {
	t.Helper()
	select {
	case ev := <-c.ch:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("no completion event delivered")
		return events.ReservationCompleted{}
	}
}

func TestPayConfirmsReservation(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.debiter.credit(42, 1000)

	listener := newCaptureListener()
	f.svc.Subscribe(listener)

	res, err := f.svc.Reserve(ctx, 42, testDate, 7)
	require.NoError(t, err)

	payment, err := f.svc.Pay(ctx, res.ID, 42, 600)
	require.NoError(t, err)
	assert.Equal(t, res.ID, payment.ReservationID)
	assert.Equal(t, int64(600), payment.Amount)
	assert.Equal(t, int64(400), f.debiter.balance(42))

	seat, err := f.seats.Get(ctx, testDate, 7)
	require.NoError(t, err)
	assert.Equal(t, model.SeatReserved, seat.Status)
	assert.Equal(t, uint64(42), seat.ReservedBy)
	assert.Equal(t, uint64(0), seat.HoldUserID)

	confirmed, err := f.reservations.Get(ctx, res.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ReservationConfirmed, confirmed.Status)

	ev := listener.wait(t)
	assert.Equal(t, res.ID, ev.ReservationID)
	assert.Equal(t, testDate, ev.ConcertDate)
	assert.Equal(t, 7, ev.SeatNumber)
	assert.False(t, ev.SoldOut)
}

func TestPayRejectsWrongUser(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	res, err := f.svc.Reserve(ctx, 1, testDate, 3)
	require.NoError(t, err)

	_, err = f.svc.Pay(ctx, res.ID, 2, 100)
	assert.ErrorIs(t, err, ErrReservationMismatch)
}

func TestPayRejectsNonPositiveAmount(t *testing.T) {
	f := newFixture()

	_, err := f.svc.Pay(context.Background(), 1, 1, 0)
	assert.ErrorIs(t, err, ledger.ErrInvalidAmount)
}

func TestPayTwiceFails(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.debiter.credit(1, 1000)

	res, err := f.svc.Reserve(ctx, 1, testDate, 3)
	require.NoError(t, err)

	_, err = f.svc.Pay(ctx, res.ID, 1, 300)
	require.NoError(t, err)

	_, err = f.svc.Pay(ctx, res.ID, 1, 300)
	assert.ErrorIs(t, err, ErrInvalidState)
	assert.Equal(t, int64(700), f.debiter.balance(1), "second attempt must not debit")
}

func TestPayExpiredHoldCompensates(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.debiter.credit(1, 1000)

	res, err := f.svc.Reserve(ctx, 1, testDate, 3)
	require.NoError(t, err)

	f.clk.Advance(6 * time.Minute)

	_, err = f.svc.Pay(ctx, res.ID, 1, 300)
	assert.ErrorIs(t, err, ErrReservationExpired)
	assert.Equal(t, int64(1000), f.debiter.balance(1))

	seat, err := f.seats.Get(ctx, testDate, 3)
	require.NoError(t, err)
	assert.Equal(t, model.SeatAvailable, seat.Status, "compensation releases the seat")

	expired, err := f.reservations.Get(ctx, res.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ReservationExpired, expired.Status)
	assert.Equal(t, 0, f.payments.count())
}

func TestPayInsufficientBalanceLeavesHold(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.debiter.credit(1, 100)

	res, err := f.svc.Reserve(ctx, 1, testDate, 3)
	require.NoError(t, err)

	_, err = f.svc.Pay(ctx, res.ID, 1, 300)
	assert.ErrorIs(t, err, ledger.ErrInsufficientBalance)

	seat, err := f.seats.Get(ctx, testDate, 3)
	require.NoError(t, err)
	assert.True(t, seat.IsHeldBy(1), "failed payment keeps the hold until it expires")

	still, err := f.reservations.Get(ctx, res.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ReservationHold, still.Status)
}

func TestConcurrentPayDebitsOnce(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.debiter.credit(1, 1000)

	res, err := f.svc.Reserve(ctx, 1, testDate, 3)
	require.NoError(t, err)

	const attempts = 8
	results := make(chan error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Pay(ctx, res.ID, 1, 400)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var paid int
	for err := range results {
		if err == nil {
			paid++
		}
	}
	assert.Equal(t, 1, paid)
	assert.Equal(t, int64(600), f.debiter.balance(1))
	assert.Equal(t, 1, f.payments.count())
}

func TestConcurrentPaysOnDistinctSeatsAllDebit(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.debiter.credit(1, 1000)

	const seats = 5
	ids := make([]uint64, 0, seats)
	for n := 1; n <= seats; n++ {
		res, err := f.svc.Reserve(ctx, 1, testDate, n)
		require.NoError(t, err)
		ids = append(ids, res.ID)
	}

	results := make(chan error, seats)
	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(id uint64) {
			defer wg.Done()
			_, err := f.svc.Pay(ctx, id, 1, 100)
			results <- err
		}(id)
	}
	wg.Wait()
	close(results)

	for err := range results {
		require.NoError(t, err)
	}
	assert.Equal(t, int64(500), f.debiter.balance(1))
	assert.Equal(t, seats, f.payments.count())
	for _, id := range ids {
		res, err := f.reservations.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, model.ReservationConfirmed, res.Status)
	}
}

func TestPaymentsByUserReturnsHistory(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.debiter.credit(1, 1000)
	f.debiter.credit(2, 1000)

	first, err := f.svc.Reserve(ctx, 1, testDate, 1)
	require.NoError(t, err)
	_, err = f.svc.Pay(ctx, first.ID, 1, 200)
	require.NoError(t, err)

	second, err := f.svc.Reserve(ctx, 1, testDate, 2)
	require.NoError(t, err)
	_, err = f.svc.Pay(ctx, second.ID, 1, 300)
	require.NoError(t, err)

	other, err := f.svc.Reserve(ctx, 2, testDate, 3)
	require.NoError(t, err)
	_, err = f.svc.Pay(ctx, other.ID, 2, 100)
	require.NoError(t, err)

	history, err := f.svc.PaymentsByUser(ctx, 1)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, second.ID, history[0].ReservationID, "most recent first")
	assert.Equal(t, first.ID, history[1].ReservationID)

	none, err := f.svc.PaymentsByUser(ctx, 3)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestPayLastSeatMarksSoldOut(t *testing.T) {
	f := newFixture()
	f.svc.seatsPerDate = 1 // one-seat house
	ctx := context.Background()
	f.debiter.credit(1, 1000)

	listener := newCaptureListener()
	f.svc.Subscribe(listener)

	res, err := f.svc.Reserve(ctx, 1, testDate, 1)
	require.NoError(t, err)

	_, err = f.svc.Pay(ctx, res.ID, 1, 500)
	require.NoError(t, err)

	ev := listener.wait(t)
	assert.True(t, ev.SoldOut)
}
