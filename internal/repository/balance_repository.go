package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/concert-reservation/internal/model"
)

// BalanceRepo provides data access to the balances table.
type BalanceRepo struct {
	db *sql.DB
}

// NewBalanceRepo returns a BalanceRepo bound to the provided database.
func NewBalanceRepo(db *sql.DB) *BalanceRepo { return &BalanceRepo{db: db} }

// Get returns the user's balance row.  A user with no row yet is reported as
// a zero balance rather than an error.
func (r *BalanceRepo) Get(ctx context.Context, userID uint64) (*model.Balance, error) {
	var b model.Balance
	err := r.db.QueryRowContext(ctx,
		`SELECT user_id, amount, updated_at FROM balances WHERE user_id = ? LIMIT 1`,
		userID).Scan(&b.UserID, &b.Amount, &b.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return &model.Balance{UserID: userID}, nil
	}
	if err != nil {
		return nil, err
	}
	b.UpdatedAt = b.UpdatedAt.UTC()
	return &b, nil
}

// Add credits amount to the user's balance, creating the row on first charge.
func (r *BalanceRepo) Add(ctx context.Context, userID uint64, amount int64, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO balances (user_id, amount, updated_at) VALUES (?, ?, ?)
         ON DUPLICATE KEY UPDATE amount = amount + VALUES(amount), updated_at = VALUES(updated_at)`,
		userID, amount, at.UTC())
	return err
}

// DeductIfSufficient debits amount only when the current balance covers it.
// The conditional UPDATE makes the check and the debit a single atomic
// statement; a false return means the funds were insufficient.
func (r *BalanceRepo) DeductIfSufficient(ctx context.Context, userID uint64, amount int64, at time.Time) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE balances SET amount = amount - ?, updated_at = ? WHERE user_id = ? AND amount >= ?`,
		amount, at.UTC(), userID, amount)
	if err != nil {
		return false, err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
