package reservation

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/iliyamo/concert-reservation/internal/ledger"
	"github.com/iliyamo/concert-reservation/internal/model"
	"github.com/iliyamo/concert-reservation/internal/repository"
)

// In-memory ports for the service tests.  Each mirrors the atomicity of its
// SQL counterpart: single operations are exclusive under one mutex hold,
// multi-step sequences are not -- that exclusion is the lock's job, which is
// exactly what the tests exercise.

type memSeats struct {
	mu     sync.Mutex
	nextID uint64
	byID   map[uint64]model.Seat
}

func newMemSeats() *memSeats {
	return &memSeats{byID: make(map[uint64]model.Seat)}
}

func (m *memSeats) Get(_ context.Context, date string, seatNumber int) (*model.Seat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.byID {
		if s.ConcertDate == date && s.SeatNumber == seatNumber {
			cp := s
			return &cp, nil
		}
	}
	return nil, repository.ErrSeatNotFound
}

func (m *memSeats) GetByID(_ context.Context, id uint64) (*model.Seat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.byID[id]
	if !ok {
		return nil, repository.ErrSeatNotFound
	}
	cp := s
	return &cp, nil
}

func (m *memSeats) Update(_ context.Context, seat *model.Seat) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[seat.ID]; !ok {
		return repository.ErrSeatNotFound
	}
	m.byID[seat.ID] = *seat
	return nil
}

func (m *memSeats) CountByDate(_ context.Context, date string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, s := range m.byID {
		if s.ConcertDate == date {
			n++
		}
	}
	return n, nil
}

func (m *memSeats) CreatePool(_ context.Context, date string, n int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := 1; i <= n; i++ {
		m.nextID++
		m.byID[m.nextID] = model.Seat{
			ID:          m.nextID,
			ConcertDate: date,
			SeatNumber:  i,
			Status:      model.SeatAvailable,
		}
	}
	return nil
}

func (m *memSeats) ListAvailableNumbers(_ context.Context, date string) ([]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []int
	for _, s := range m.byID {
		if s.ConcertDate == date && s.Status == model.SeatAvailable {
			out = append(out, s.SeatNumber)
		}
	}
	sort.Ints(out)
	return out, nil
}

func (m *memSeats) ListDates(_ context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	seen := make(map[string]bool)
	for _, s := range m.byID {
		seen[s.ConcertDate] = true
	}
	var out []string
	for d := range seen {
		out = append(out, d)
	}
	sort.Strings(out)
	return out, nil
}

type memReservations struct {
	mu     sync.Mutex
	nextID uint64
	byID   map[uint64]model.Reservation
}

func newMemReservations() *memReservations {
	return &memReservations{byID: make(map[uint64]model.Reservation)}
}

func (m *memReservations) Create(_ context.Context, res *model.Reservation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	res.ID = m.nextID
	m.byID[res.ID] = *res
	return nil
}

func (m *memReservations) Get(_ context.Context, id uint64) (*model.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	res, ok := m.byID[id]
	if !ok {
		return nil, repository.ErrReservationNotFound
	}
	cp := res
	return &cp, nil
}

func (m *memReservations) Update(_ context.Context, res *model.Reservation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[res.ID]; !ok {
		return repository.ErrReservationNotFound
	}
	m.byID[res.ID] = *res
	return nil
}

func (m *memReservations) ExpireActiveBySeat(_ context.Context, seatID uint64, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, res := range m.byID {
		if res.SeatID == seatID && res.Status == model.ReservationHold {
			res.Status = model.ReservationExpired
			res.ExpiresAt = at
			m.byID[id] = res
		}
	}
	return nil
}

func (m *memReservations) FindExpiredHolds(_ context.Context, now time.Time) ([]model.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Reservation
	for _, res := range m.byID {
		if res.Status == model.ReservationHold && res.ExpiresAt.Before(now) {
			out = append(out, res)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExpiresAt.Before(out[j].ExpiresAt) })
	return out, nil
}

type memPayments struct {
	mu     sync.Mutex
	nextID uint64
	rows   []model.Payment
}

func newMemPayments() *memPayments { return &memPayments{} }

func (m *memPayments) Create(_ context.Context, p *model.Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	p.ID = m.nextID
	m.rows = append(m.rows, *p)
	return nil
}

func (m *memPayments) ListByUser(_ context.Context, userID uint64) ([]model.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Payment
	for i := len(m.rows) - 1; i >= 0; i-- {
		if m.rows[i].UserID == userID {
			out = append(out, m.rows[i])
		}
	}
	return out, nil
}

func (m *memPayments) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}

type fakeDebiter struct {
	mu       sync.Mutex
	balances map[uint64]int64
}

func newFakeDebiter() *fakeDebiter {
	return &fakeDebiter{balances: make(map[uint64]int64)}
}

func (f *fakeDebiter) credit(userID uint64, amount int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.balances[userID] += amount
}

func (f *fakeDebiter) balance(userID uint64) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.balances[userID]
}

func (f *fakeDebiter) Use(_ context.Context, userID uint64, amount int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.balances[userID] < amount {
		return ledger.ErrInsufficientBalance
	}
	f.balances[userID] -= amount
	return nil
}
