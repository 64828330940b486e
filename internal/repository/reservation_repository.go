package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/concert-reservation/internal/model"
)

// ReservationRepo provides data access to the reservations table.  Every
// hold attempt inserts a new row; rows are never deleted, so the table is
// the audit trail of who tried to claim which seat and how it ended.
type ReservationRepo struct {
	db *sql.DB
}

// NewReservationRepo returns a ReservationRepo bound to the provided database.
func NewReservationRepo(db *sql.DB) *ReservationRepo { return &ReservationRepo{db: db} }

// Create inserts a new reservation row and fills in its generated id.
func (r *ReservationRepo) Create(ctx context.Context, res *model.Reservation) error {
	result, err := r.db.ExecContext(ctx,
		`INSERT INTO reservations (seat_id, user_id, status, expires_at, created_at) VALUES (?, ?, ?, ?, ?)`,
		res.SeatID, res.UserID, res.Status, res.ExpiresAt.UTC(), res.CreatedAt.UTC())
	if err != nil {
		return err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	res.ID = uint64(id)
	return nil
}

// Get fetches a reservation by id.
func (r *ReservationRepo) Get(ctx context.Context, id uint64) (*model.Reservation, error) {
	var res model.Reservation
	err := r.db.QueryRowContext(ctx,
		`SELECT id, seat_id, user_id, status, expires_at, created_at FROM reservations WHERE id = ? LIMIT 1`,
		id).Scan(&res.ID, &res.SeatID, &res.UserID, &res.Status, &res.ExpiresAt, &res.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrReservationNotFound
	}
	if err != nil {
		return nil, err
	}
	res.ExpiresAt = res.ExpiresAt.UTC()
	res.CreatedAt = res.CreatedAt.UTC()
	return &res, nil
}

// Update writes the reservation's status and expiry.
func (r *ReservationRepo) Update(ctx context.Context, res *model.Reservation) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE reservations SET status = ?, expires_at = ? WHERE id = ?`,
		res.Status, res.ExpiresAt.UTC(), res.ID)
	return err
}

// ExpireActiveBySeat flips any in-flight HOLD reservation for the seat to
// EXPIRED.  Used by the inline cleanup path when a request finds a seat
// whose hold has lapsed.
func (r *ReservationRepo) ExpireActiveBySeat(ctx context.Context, seatID uint64, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE reservations SET status = ?, expires_at = ? WHERE seat_id = ? AND status = ?`,
		model.ReservationExpired, at.UTC(), seatID, model.ReservationHold)
	return err
}

// FindExpiredHolds returns all HOLD reservations whose expiry has passed as
// of now, oldest first.  The sweeper processes the result item by item.
func (r *ReservationRepo) FindExpiredHolds(ctx context.Context, now time.Time) ([]model.Reservation, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, seat_id, user_id, status, expires_at, created_at FROM reservations
         WHERE status = ? AND expires_at < ? ORDER BY expires_at`,
		model.ReservationHold, now.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Reservation
	for rows.Next() {
		var res model.Reservation
		if err := rows.Scan(&res.ID, &res.SeatID, &res.UserID, &res.Status, &res.ExpiresAt, &res.CreatedAt); err != nil {
			return nil, err
		}
		res.ExpiresAt = res.ExpiresAt.UTC()
		res.CreatedAt = res.CreatedAt.UTC()
		out = append(out, res)
	}
	return out, rows.Err()
}
