package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/opencampus/registrar/pkg/domain"
)

// AccountsRepository handles account persistence.
type AccountsRepository struct {
	db *sql.DB
}

// NewAccountsRepository creates a new accounts repository.
func NewAccountsRepository(db *sql.DB) *AccountsRepository {
	return &AccountsRepository{db: db}
}

const accountColumns = `id, handle, role, is_active, failed_attempts, is_locked, locked_until,
	       second_factor_enabled, last_login_at, created_at, updated_at`

func scanAccount(row *sql.Row) (*domain.Account, error) {
	a := &domain.Account{}
	err := row.Scan(
		&a.ID, &a.Handle, &a.Role, &a.IsActive, &a.FailedAttempts, &a.IsLocked,
		&a.LockedUntil, &a.SecondFactorEnabled, &a.LastLoginAt, &a.CreatedAt, &a.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrAccountNotFound
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

// CreateTx creates a new account within a transaction.
func (r *AccountsRepository) CreateTx(ctx context.Context, tx *sql.Tx, account *domain.Account) error {
	query := `
		INSERT INTO accounts (id, handle, role, is_active, second_factor_enabled, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := tx.ExecContext(ctx, query,
		account.ID, account.Handle, account.Role, account.IsActive,
		account.SecondFactorEnabled, account.CreatedAt, account.UpdatedAt,
	)
	return err
}

// GetByID retrieves an account by ID.
func (r *AccountsRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`
	return scanAccount(r.db.QueryRowContext(ctx, query, id))
}

// GetByHandle retrieves an account by its principal handle.
func (r *AccountsRepository) GetByHandle(ctx context.Context, handle string) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE handle = $1`
	return scanAccount(r.db.QueryRowContext(ctx, query, handle))
}

// ExistsByHandle checks if an account exists by handle.
func (r *AccountsRepository) ExistsByHandle(ctx context.Context, handle string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM accounts WHERE handle = $1)`
	var exists bool
	err := r.db.QueryRowContext(ctx, query, handle).Scan(&exists)
	return exists, err
}

// RecordFailedAttempt increments the failed-attempts counter and applies
// the lock when the threshold is reached, in a single conditional UPDATE
// so that two concurrent failures cannot both observe the same counter.
// The guard on is_locked means an already-locked account is untouched
// and the lock deadline is never extended.
func (r *AccountsRepository) RecordFailedAttempt(ctx context.Context, id uuid.UUID, maxAttempts int, lockFor time.Duration) (*domain.LockoutStatus, error) {
	query := `
		UPDATE accounts
		SET failed_attempts = failed_attempts + 1,
		    is_locked = (failed_attempts + 1 >= $2),
		    locked_until = CASE
		        WHEN failed_attempts + 1 >= $2 THEN NOW() + make_interval(secs => $3)
		        ELSE locked_until
		    END,
		    updated_at = NOW()
		WHERE id = $1 AND NOT is_locked
		RETURNING failed_attempts, is_locked, locked_until
	`
	status := &domain.LockoutStatus{}
	err := r.db.QueryRowContext(ctx, query, id, maxAttempts, lockFor.Seconds()).Scan(
		&status.FailedAttempts, &status.Locked, &status.LockedUntil,
	)
	if errors.Is(err, sql.ErrNoRows) {
		// Lost the race against a concurrent lock; report the current state.
		account, gerr := r.GetByID(ctx, id)
		if gerr != nil {
			return nil, gerr
		}
		return &domain.LockoutStatus{
			FailedAttempts: account.FailedAttempts,
			Locked:         account.IsLocked,
			LockedUntil:    account.LockedUntil,
		}, nil
	}
	if err != nil {
		return nil, err
	}
	return status, nil
}

// ResetFailedAttempts resets the failed-attempts counter and clears any lock.
func (r *AccountsRepository) ResetFailedAttempts(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE accounts
		SET failed_attempts = 0,
		    is_locked = FALSE,
		    locked_until = NULL,
		    updated_at = NOW()
		WHERE id = $1
	`
	_, err := r.db.ExecContext(ctx, query, id)
	return err
}

// ClearExpiredLock performs the auto-unlock: the lock and counter are
// cleared only while the lock deadline has actually elapsed, so a
// concurrent re-lock is not wiped out.
func (r *AccountsRepository) ClearExpiredLock(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE accounts
		SET is_locked = FALSE,
		    locked_until = NULL,
		    failed_attempts = 0,
		    updated_at = NOW()
		WHERE id = $1 AND is_locked AND (locked_until IS NULL OR locked_until <= NOW())
	`
	_, err := r.db.ExecContext(ctx, query, id)
	return err
}

// UpdateLastLogin stamps the last fully successful authentication.
func (r *AccountsRepository) UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	query := `UPDATE accounts SET last_login_at = $2, updated_at = NOW() WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id, at)
	return err
}

// SetSecondFactorEnabled updates the second-factor enablement flag.
func (r *AccountsRepository) SetSecondFactorEnabled(ctx context.Context, id uuid.UUID, enabled bool) error {
	return r.setSecondFactorEnabled(ctx, r.db, id, enabled)
}

// SetSecondFactorEnabledTx updates the flag within a transaction.
func (r *AccountsRepository) SetSecondFactorEnabledTx(ctx context.Context, tx *sql.Tx, id uuid.UUID, enabled bool) error {
	return r.setSecondFactorEnabled(ctx, tx, id, enabled)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (r *AccountsRepository) setSecondFactorEnabled(ctx context.Context, ex execer, id uuid.UUID, enabled bool) error {
	query := `UPDATE accounts SET second_factor_enabled = $2, updated_at = NOW() WHERE id = $1`
	result, err := ex.ExecContext(ctx, query, id, enabled)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return domain.ErrAccountNotFound
	}
	return nil
}
