package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/concert-reservation/internal/model"
)

// PaymentRepo provides data access to the payments table.
type PaymentRepo struct {
	db *sql.DB
}

// NewPaymentRepo returns a PaymentRepo bound to the provided database.
func NewPaymentRepo(db *sql.DB) *PaymentRepo { return &PaymentRepo{db: db} }

// Create inserts a payment row and fills in its generated id.
func (r *PaymentRepo) Create(ctx context.Context, p *model.Payment) error {
	result, err := r.db.ExecContext(ctx,
		`INSERT INTO payments (reservation_id, user_id, amount, paid_at) VALUES (?, ?, ?, ?)`,
		p.ReservationID, p.UserID, p.Amount, p.PaidAt.UTC())
	if err != nil {
		return err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	p.ID = uint64(id)
	return nil
}

// ListByUser returns the user's payments, newest first.
func (r *PaymentRepo) ListByUser(ctx context.Context, userID uint64) ([]model.Payment, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, reservation_id, user_id, amount, paid_at FROM payments WHERE user_id = ? ORDER BY paid_at DESC`,
		userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Payment
	for rows.Next() {
		var p model.Payment
		if err := rows.Scan(&p.ID, &p.ReservationID, &p.UserID, &p.Amount, &p.PaidAt); err != nil {
			return nil, err
		}
		p.PaidAt = p.PaidAt.UTC()
		out = append(out, p)
	}
	return out, rows.Err()
}
