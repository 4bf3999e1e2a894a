package credits

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
)

// Repo implements Ledger on Postgres. The balance check and hold happen in a
// single guarded UPDATE so the balance is never debited past what is
// available, even under concurrent reservations.
type Repo struct {
	db *sql.DB
}

func NewRepo(db *sql.DB) *Repo {
	return &Repo{db: db}
}

// Reserve holds amount against the user's balance and records the
// reservation. Returns ErrInsufficientCredit when the balance cannot cover it.
func (r *Repo) Reserve(ctx context.Context, userID string, amount int64, reason Reason, subjectID string) (string, error) {
	if amount <= 0 {
		return "", fmt.Errorf("reserve amount must be positive, got %d", amount)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin reserve tx: %w", err)
	}
	defer tx.Rollback()

	const hold = `
UPDATE credit_accounts
SET balance = balance - $1, reserved = reserved + $1, updated_at = now()
WHERE user_id = $2 AND balance >= $1`

	res, err := tx.ExecContext(ctx, hold, amount, userID)
	if err != nil {
		return "", fmt.Errorf("hold credits: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return "", fmt.Errorf("hold credits: %w", err)
	}
	if n == 0 {
		return "", ErrInsufficientCredit
	}

	id := uuid.New().String()
	const ins = `
INSERT INTO credit_reservations (id, user_id, amount, reason, subject_id, state)
VALUES ($1, $2, $3, $4, $5, $6)`

	if _, err := tx.ExecContext(ctx, ins, id, userID, amount, string(reason), subjectID, StateReserved); err != nil {
		return "", fmt.Errorf("insert reservation: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit reserve tx: %w", err)
	}
	return id, nil
}

// Commit finalizes the debit for a reservation.
func (r *Repo) Commit(ctx context.Context, reservationID string) error {
	return r.finalize(ctx, reservationID, StateCommitted)
}

// Release returns the held amount to the balance.
func (r *Repo) Release(ctx context.Context, reservationID string) error {
	return r.finalize(ctx, reservationID, StateReleased)
}

func (r *Repo) finalize(ctx context.Context, reservationID, state string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin finalize tx: %w", err)
	}
	defer tx.Rollback()

	const flip = `
UPDATE credit_reservations
SET state = $1, updated_at = now()
WHERE id = $2 AND state = $3
RETURNING user_id, amount`

	var userID string
	var amount int64
	err = tx.QueryRowContext(ctx, flip, state, reservationID, StateReserved).Scan(&userID, &amount)
	if err == sql.ErrNoRows {
		return ErrReservationNotFound
	}
	if err != nil {
		return fmt.Errorf("finalize reservation: %w", err)
	}

	var settle string
	if state == StateReleased {
		settle = `
UPDATE credit_accounts
SET balance = balance + $1, reserved = reserved - $1, updated_at = now()
WHERE user_id = $2`
	} else {
		settle = `
UPDATE credit_accounts
SET reserved = reserved - $1, updated_at = now()
WHERE user_id = $2`
	}

	if _, err := tx.ExecContext(ctx, settle, amount, userID); err != nil {
		return fmt.Errorf("settle account: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit finalize tx: %w", err)
	}
	return nil
}

// Balance reads the available (unreserved) balance for a user.
func (r *Repo) Balance(ctx context.Context, userID string) (int64, error) {
	const q = `SELECT balance FROM credit_accounts WHERE user_id = $1`
	var balance int64
	if err := r.db.QueryRowContext(ctx, q, userID).Scan(&balance); err != nil {
		return 0, fmt.Errorf("read balance: %w", err)
	}
	return balance, nil
}

// Get loads one reservation.
func (r *Repo) Get(ctx context.Context, reservationID string) (*Reservation, error) {
	const q = `
SELECT id, user_id, amount, reason, subject_id, state, created_at, updated_at
FROM credit_reservations
WHERE id = $1`

	var res Reservation
	var reason string
	err := r.db.QueryRowContext(ctx, q, reservationID).
		Scan(&res.ID, &res.UserID, &res.Amount, &reason, &res.SubjectID, &res.State, &res.CreatedAt, &res.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrReservationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read reservation: %w", err)
	}
	res.Reason = Reason(reason)
	return &res, nil
}

// Charge reserves and immediately commits, for flat per-use costs such as
// chat messages past the free allowance.
func (r *Repo) Charge(ctx context.Context, userID string, amount int64, reason Reason, subjectID string) error {
	id, err := r.Reserve(ctx, userID, amount, reason, subjectID)
	if err != nil {
		return err
	}
	return r.Commit(ctx, id)
}
