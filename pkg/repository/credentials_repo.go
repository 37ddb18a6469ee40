package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/opencampus/registrar/pkg/domain"
)

// CredentialsRepository handles password credential persistence.
type CredentialsRepository struct {
	db *sql.DB
}

// NewCredentialsRepository creates a new credentials repository.
func NewCredentialsRepository(db *sql.DB) *CredentialsRepository {
	return &CredentialsRepository{db: db}
}

// CreateTx creates credentials within a transaction.
func (r *CredentialsRepository) CreateTx(ctx context.Context, tx *sql.Tx, cred *domain.AccountCredential) error {
	query := `
		INSERT INTO account_credentials (account_id, password_hash, password_updated_at)
		VALUES ($1, $2, $3)
	`
	_, err := tx.ExecContext(ctx, query, cred.AccountID, cred.PasswordHash, cred.PasswordUpdatedAt)
	return err
}

// GetByAccountID retrieves credentials for an account.
func (r *CredentialsRepository) GetByAccountID(ctx context.Context, accountID uuid.UUID) (*domain.AccountCredential, error) {
	query := `
		SELECT account_id, password_hash, password_updated_at
		FROM account_credentials
		WHERE account_id = $1
	`
	cred := &domain.AccountCredential{}
	err := r.db.QueryRowContext(ctx, query, accountID).Scan(
		&cred.AccountID, &cred.PasswordHash, &cred.PasswordUpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrAccountNotFound
	}
	if err != nil {
		return nil, err
	}
	return cred, nil
}

// Update replaces the password hash for an account.
func (r *CredentialsRepository) Update(ctx context.Context, accountID uuid.UUID, passwordHash string) error {
	query := `
		UPDATE account_credentials
		SET password_hash = $2, password_updated_at = $3
		WHERE account_id = $1
	`
	result, err := r.db.ExecContext(ctx, query, accountID, passwordHash, time.Now())
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
