package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/concert-reservation/internal/model"
)

// SeatRepo provides data access to the seats table.  One row exists per
// (concert_date, seat_number); the pair carries a unique constraint so the
// lazy pool creation in CreatePool stays idempotent under races.  All
// timestamps are stored and compared in UTC.
type SeatRepo struct {
	db *sql.DB
}

// NewSeatRepo returns a SeatRepo bound to the provided database.
func NewSeatRepo(db *sql.DB) *SeatRepo { return &SeatRepo{db: db} }

const seatColumns = `id, concert_date, seat_number, status, hold_user_id, hold_expires_at, reserved_user_id, updated_at`

func scanSeat(row *sql.Row) (*model.Seat, error) {
	var (
		s           model.Seat
		holdUser    sql.NullInt64
		holdExpires sql.NullTime
		reservedBy  sql.NullInt64
	)
	err := row.Scan(&s.ID, &s.ConcertDate, &s.SeatNumber, &s.Status, &holdUser, &holdExpires, &reservedBy, &s.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSeatNotFound
	}
	if err != nil {
		return nil, err
	}
	if holdUser.Valid {
		s.HoldUserID = uint64(holdUser.Int64)
	}
	if holdExpires.Valid {
		s.HoldExpiresAt = holdExpires.Time.UTC()
	}
	if reservedBy.Valid {
		s.ReservedBy = uint64(reservedBy.Int64)
	}
	return &s, nil
}

// Get fetches the seat for a concert date and seat number.
func (r *SeatRepo) Get(ctx context.Context, date string, seatNumber int) (*model.Seat, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+seatColumns+` FROM seats WHERE concert_date = ? AND seat_number = ? LIMIT 1`,
		date, seatNumber)
	return scanSeat(row)
}

// GetByID fetches a seat by primary key.
func (r *SeatRepo) GetByID(ctx context.Context, id uint64) (*model.Seat, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+seatColumns+` FROM seats WHERE id = ? LIMIT 1`, id)
	return scanSeat(row)
}

// Update writes the seat's status and claim fields.  Zero values map to
// NULL so released seats carry no stale holder data.
func (r *SeatRepo) Update(ctx context.Context, s *model.Seat) error {
	var (
		holdUser    interface{}
		holdExpires interface{}
		reservedBy  interface{}
	)
	if s.HoldUserID != 0 {
		holdUser = s.HoldUserID
	}
	if !s.HoldExpiresAt.IsZero() {
		holdExpires = s.HoldExpiresAt.UTC()
	}
	if s.ReservedBy != 0 {
		reservedBy = s.ReservedBy
	}
	_, err := r.db.ExecContext(ctx,
		`UPDATE seats SET status = ?, hold_user_id = ?, hold_expires_at = ?, reserved_user_id = ?, updated_at = ? WHERE id = ?`,
		s.Status, holdUser, holdExpires, reservedBy, time.Now().UTC(), s.ID)
	return err
}

// CountByDate counts seat rows for a date.  Zero means the pool has not
// been materialized yet.
func (r *SeatRepo) CountByDate(ctx context.Context, date string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM seats WHERE concert_date = ?`, date).Scan(&n)
	return n, err
}

// CreatePool bulk-inserts AVAILABLE rows for seat numbers 1..n.  INSERT
// IGNORE plus the unique (concert_date, seat_number) constraint makes
// concurrent creation attempts converge on exactly n rows.
func (r *SeatRepo) CreatePool(ctx context.Context, date string, n int) error {
	if n <= 0 {
		return nil
	}
	query := `INSERT IGNORE INTO seats (concert_date, seat_number, status) VALUES `
	args := make([]interface{}, 0, n*3)
	for i := 1; i <= n; i++ {
		if i > 1 {
			query += ","
		}
		query += "(?, ?, ?)"
		args = append(args, date, i, model.SeatAvailable)
	}
	_, err := r.db.ExecContext(ctx, query, args...)
	return err
}

// ListAvailableNumbers returns the seat numbers currently AVAILABLE for a
// date, in ascending order.
func (r *SeatRepo) ListAvailableNumbers(ctx context.Context, date string) ([]int, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT seat_number FROM seats WHERE concert_date = ? AND status = ? ORDER BY seat_number`,
		date, model.SeatAvailable)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var nums []int
	for rows.Next() {
		var n int
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		nums = append(nums, n)
	}
	return nums, rows.Err()
}

// ListDates returns all concert dates that have seat rows, ascending.
func (r *SeatRepo) ListDates(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT DISTINCT concert_date FROM seats ORDER BY concert_date`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var dates []string
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, err
		}
		dates = append(dates, d)
	}
	return dates, rows.Err()
}
