package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/opencampus/registrar/pkg/domain"
)

// SecondFactorsRepository handles persistence of TOTP secrets.
type SecondFactorsRepository struct {
	db *sql.DB
}

// NewSecondFactorsRepository creates a new second factors repository.
func NewSecondFactorsRepository(db *sql.DB) *SecondFactorsRepository {
	return &SecondFactorsRepository{db: db}
}

// Upsert replaces any existing secret for the account. Re-running setup
// before confirmation simply rotates the pending secret.
func (r *SecondFactorsRepository) Upsert(ctx context.Context, sf *domain.SecondFactor) error {
	query := `
		INSERT INTO account_second_factors (id, account_id, secret_encrypted, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (account_id) DO UPDATE
		SET id = EXCLUDED.id,
		    secret_encrypted = EXCLUDED.secret_encrypted,
		    created_at = EXCLUDED.created_at,
		    last_used_at = NULL
	`
	_, err := r.db.ExecContext(ctx, query, sf.ID, sf.AccountID, sf.SecretEncrypted, sf.CreatedAt)
	if err != nil {
		return fmt.Errorf("upsert second factor: %w", err)
	}
	return nil
}

// GetByAccountID retrieves the secret for an account.
func (r *SecondFactorsRepository) GetByAccountID(ctx context.Context, accountID uuid.UUID) (*domain.SecondFactor, error) {
	query := `
		SELECT id, account_id, secret_encrypted, created_at, last_used_at
		FROM account_second_factors
		WHERE account_id = $1
	`
	sf := &domain.SecondFactor{}
	err := r.db.QueryRowContext(ctx, query, accountID).Scan(
		&sf.ID, &sf.AccountID, &sf.SecretEncrypted, &sf.CreatedAt, &sf.LastUsedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrSecondFactorNotConfigured
	}
	if err != nil {
		return nil, err
	}
	return sf, nil
}

// UpdateLastUsed updates the last used timestamp for a secret.
func (r *SecondFactorsRepository) UpdateLastUsed(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE account_second_factors SET last_used_at = NOW() WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id)
	return err
}

// DeleteByAccountIDTx removes the secret within a transaction.
func (r *SecondFactorsRepository) DeleteByAccountIDTx(ctx context.Context, tx *sql.Tx, accountID uuid.UUID) error {
	query := `DELETE FROM account_second_factors WHERE account_id = $1`
	_, err := tx.ExecContext(ctx, query, accountID)
	return err
}
