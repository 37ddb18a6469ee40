package profile

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/opencampus/registrar/pkg/domain"
)

// StudentProvider stores student profiles.
type StudentProvider struct {
	db *sql.DB
}

// NewStudentProvider creates a provider over the student_profiles table.
func NewStudentProvider(db *sql.DB) *StudentProvider {
	return &StudentProvider{db: db}
}

// Role implements Provider.
func (p *StudentProvider) Role() domain.Role { return domain.RoleStudent }

// CreateTx creates a student profile within a transaction.
func (p *StudentProvider) CreateTx(ctx context.Context, tx *sql.Tx, accountID uuid.UUID, displayName string) error {
	query := `
		INSERT INTO student_profiles (account_id, display_name, created_at)
		VALUES ($1, $2, NOW())
	`
	_, err := tx.ExecContext(ctx, query, accountID, displayName)
	return err
}

// Get retrieves a student profile.
func (p *StudentProvider) Get(ctx context.Context, accountID uuid.UUID) (*domain.Profile, error) {
	query := `
		SELECT account_id, display_name, COALESCE(program, '')
		FROM student_profiles
		WHERE account_id = $1
	`
	profile := &domain.Profile{Role: domain.RoleStudent}
	err := p.db.QueryRowContext(ctx, query, accountID).Scan(
		&profile.AccountID, &profile.DisplayName, &profile.Program,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrAccountNotFound
	}
	if err != nil {
		return nil, err
	}
	return profile, nil
}

// StaffProvider stores staff profiles. Instructors and registrars share
// the staff table; the provider is registered once per role.
type StaffProvider struct {
	db   *sql.DB
	role domain.Role
}

// NewStaffProvider creates a provider over the staff_profiles table for
// one staff role.
func NewStaffProvider(db *sql.DB, role domain.Role) *StaffProvider {
	return &StaffProvider{db: db, role: role}
}

// Role implements Provider.
func (p *StaffProvider) Role() domain.Role { return p.role }

// CreateTx creates a staff profile within a transaction.
func (p *StaffProvider) CreateTx(ctx context.Context, tx *sql.Tx, accountID uuid.UUID, displayName string) error {
	query := `
		INSERT INTO staff_profiles (account_id, display_name, created_at)
		VALUES ($1, $2, NOW())
	`
	_, err := tx.ExecContext(ctx, query, accountID, displayName)
	return err
}

// Get retrieves a staff profile.
func (p *StaffProvider) Get(ctx context.Context, accountID uuid.UUID) (*domain.Profile, error) {
	query := `
		SELECT account_id, display_name, COALESCE(department, '')
		FROM staff_profiles
		WHERE account_id = $1
	`
	profile := &domain.Profile{Role: p.role}
	err := p.db.QueryRowContext(ctx, query, accountID).Scan(
		&profile.AccountID, &profile.DisplayName, &profile.Department,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrAccountNotFound
	}
	if err != nil {
		return nil, err
	}
	return profile, nil
}
