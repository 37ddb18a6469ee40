package auth

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/opencampus/registrar/pkg/domain"
	"github.com/opencampus/registrar/pkg/profile"
	"github.com/opencampus/registrar/pkg/repository"
)

// AccountService handles account registration and lookup.
type AccountService struct {
	db       *sql.DB
	accounts *repository.AccountsRepository
	creds    *repository.CredentialsRepository
	profiles *profile.Registry
	policy   *PasswordPolicy
}

// NewAccountService creates a new account service.
func NewAccountService(db *sql.DB, accounts *repository.AccountsRepository, creds *repository.CredentialsRepository, profiles *profile.Registry, policy *PasswordPolicy) *AccountService {
	return &AccountService{
		db:       db,
		accounts: accounts,
		creds:    creds,
		profiles: profiles,
		policy:   policy,
	}
}

// Register creates a new account with credentials and the role-specific
// profile record. The profile provider is resolved here, once, from the
// role the account is registered with.
func (s *AccountService) Register(ctx context.Context, handle, password, name string, role domain.Role) (*domain.Account, error) {
	if err := ValidateHandle(handle); err != nil {
		return nil, err
	}
	if !role.Valid() {
		return nil, domain.ErrUnknownRole
	}
	if s.policy != nil {
		if err := s.policy.ValidatePassword(password); err != nil {
			return nil, err
		}
	}
	name = SanitizeName(name)

	provider, err := s.profiles.Resolve(role)
	if err != nil {
		return nil, err
	}

	exists, err := s.accounts.ExistsByHandle(ctx, handle)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, domain.ErrAccountExists
	}

	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	account := &domain.Account{
		ID:        uuid.New(),
		Handle:    handle,
		Role:      role,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	cred := &domain.AccountCredential{
		AccountID:         account.ID,
		PasswordHash:      hash,
		PasswordUpdatedAt: now,
	}

	err = repository.Tx(ctx, s.db, func(tx *sql.Tx) error {
		if err := s.accounts.CreateTx(ctx, tx, account); err != nil {
			return err
		}
		if err := s.creds.CreateTx(ctx, tx, cred); err != nil {
			return err
		}
		return provider.CreateTx(ctx, tx, account.ID, name)
	})
	if err != nil {
		return nil, err
	}

	return account, nil
}

// ChangePassword replaces an account's password. The caller is already
// authenticated; the current password is still re-verified so a
// captured session token alone cannot change it.
func (s *AccountService) ChangePassword(ctx context.Context, accountID uuid.UUID, currentPassword, newPassword string) error {
	cred, err := s.creds.GetByAccountID(ctx, accountID)
	if err != nil {
		return err
	}
	if !VerifyPassword(currentPassword, cred.PasswordHash) {
		return domain.ErrInvalidCredentials
	}

	if s.policy != nil {
		if err := s.policy.ValidatePassword(newPassword); err != nil {
			return err
		}
	}

	hash, err := HashPassword(newPassword)
	if err != nil {
		return err
	}

	return s.creds.Update(ctx, accountID, hash)
}

// GetAccount retrieves an account by ID.
func (s *AccountService) GetAccount(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	return s.accounts.GetByID(ctx, id)
}

// GetProfile retrieves the role-specific profile for an account.
func (s *AccountService) GetProfile(ctx context.Context, account *domain.Account) (*domain.Profile, error) {
	provider, err := s.profiles.Resolve(account.Role)
	if err != nil {
		return nil, err
	}
	return provider.Get(ctx, account.ID)
}
