package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/opencampus/registrar/pkg/domain"
)

// AccountStore is the account persistence needed by the login flow.
type AccountStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Account, error)
	GetByHandle(ctx context.Context, handle string) (*domain.Account, error)
	RecordFailedAttempt(ctx context.Context, id uuid.UUID, maxAttempts int, lockFor time.Duration) (*domain.LockoutStatus, error)
	ResetFailedAttempts(ctx context.Context, id uuid.UUID) error
	ClearExpiredLock(ctx context.Context, id uuid.UUID) error
	UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error
}

// CredentialStore is the credential lookup needed by the login flow.
type CredentialStore interface {
	GetByAccountID(ctx context.Context, accountID uuid.UUID) (*domain.AccountCredential, error)
}

// DeviceStore is the trusted-device persistence needed by the login flow.
type DeviceStore interface {
	Get(ctx context.Context, accountID uuid.UUID, deviceID string) (*domain.TrustedDevice, error)
	Upsert(ctx context.Context, d *domain.TrustedDevice) error
	TouchLastUsed(ctx context.Context, accountID uuid.UUID, deviceID string, at time.Time) error
}

// SecondFactorVerifier validates a submitted one-time code.
type SecondFactorVerifier interface {
	Verify(ctx context.Context, accountID uuid.UUID, code string) (bool, error)
}

// SessionIssuer mints a session token for an authenticated account.
type SessionIssuer interface {
	Issue(ctx context.Context, account *domain.Account, opts IssueOpts) (*domain.AuthToken, error)
}

// LoginResult is the outcome of a successful login call. Exactly one of
// Token and Challenge is set: a challenge means the caller must follow
// up with CompleteSecondFactor before a session exists.
type LoginResult struct {
	Account   *domain.Account
	Token     *domain.AuthToken
	Challenge *domain.SecondFactorChallenge
}

// LoginService sequences the lockout policy, the credential check, the
// device-trust lookup, the second-factor gate and session issuance.
type LoginService struct {
	logger       *slog.Logger
	accounts     AccountStore
	creds        CredentialStore
	devices      DeviceStore
	secondFactor SecondFactorVerifier
	sessions     SessionIssuer

	// dummyHash keeps the unknown-handle path doing the same argon2 work
	// as a wrong password, so response timing does not reveal whether a
	// handle exists.
	dummyHash string

	now func() time.Time
}

// NewLoginService creates a new login service.
func NewLoginService(
	logger *slog.Logger,
	accounts AccountStore,
	creds CredentialStore,
	devices DeviceStore,
	secondFactor SecondFactorVerifier,
	sessions SessionIssuer,
) *LoginService {
	dummyHash, _ := HashPassword(uuid.NewString())
	return &LoginService{
		logger:       logger,
		accounts:     accounts,
		creds:        creds,
		devices:      devices,
		secondFactor: secondFactor,
		sessions:     sessions,
		dummyHash:    dummyHash,
		now:          time.Now,
	}
}

// Login authenticates a handle and password from a request context.
// Unknown handle and wrong password are indistinguishable to the caller.
func (s *LoginService) Login(ctx context.Context, handle, password string, dev DeviceContext) (*LoginResult, error) {
	account, err := s.accounts.GetByHandle(ctx, handle)
	if errors.Is(err, domain.ErrAccountNotFound) {
		VerifyPassword(password, s.dummyHash)
		return nil, domain.ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	if !account.IsActive {
		return nil, domain.ErrAccountInactive
	}

	now := s.now()
	switch EvaluateLock(account.IsLocked, account.LockedUntil, now) {
	case LockActive:
		return nil, &domain.AccountLockedError{Until: *account.LockedUntil}
	case LockExpired:
		if err := s.accounts.ClearExpiredLock(ctx, account.ID); err != nil {
			return nil, err
		}
		account.IsLocked = false
		account.LockedUntil = nil
		account.FailedAttempts = 0
	}

	cred, err := s.creds.GetByAccountID(ctx, account.ID)
	if errors.Is(err, domain.ErrAccountNotFound) {
		VerifyPassword(password, s.dummyHash)
		return nil, domain.ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	if !VerifyPassword(password, cred.PasswordHash) {
		status, err := s.accounts.RecordFailedAttempt(ctx, account.ID, MaxFailedAttempts, LockoutDuration)
		if err != nil {
			return nil, err
		}
		if status.Locked && status.LockedUntil != nil {
			s.logger.Warn("account locked", "account_id", account.ID, "until", status.LockedUntil)
			return nil, &domain.AccountLockedError{Until: *status.LockedUntil}
		}
		return nil, &domain.InvalidCredentialsError{RemainingAttempts: RemainingAttempts(status.FailedAttempts)}
	}

	if account.FailedAttempts > 0 || account.IsLocked {
		if err := s.accounts.ResetFailedAttempts(ctx, account.ID); err != nil {
			return nil, err
		}
	}

	deviceID := Fingerprint(dev)
	trusted, err := s.devices.Get(ctx, account.ID, deviceID)
	if err != nil && !errors.Is(err, domain.ErrDeviceNotFound) {
		return nil, err
	}

	if account.SecondFactorEnabled && trusted == nil {
		return &LoginResult{
			Account: account,
			Challenge: &domain.SecondFactorChallenge{
				AccountID:           account.ID,
				DeviceID:            deviceID,
				SuggestedDeviceName: DeviceName(dev.UserAgent),
			},
		}, nil
	}

	if trusted != nil {
		if err := s.devices.TouchLastUsed(ctx, account.ID, deviceID, now); err != nil {
			s.logger.Warn("failed to touch trusted device", "error", err, "account_id", account.ID)
		}
	}

	return s.issue(ctx, account, dev, trusted != nil, now)
}

// CompleteSecondFactor re-enters the flow after a challenge. A failed
// code does not touch the lockout counters; guess throttling for codes
// belongs to the request rate limiter, not the lockout policy.
func (s *LoginService) CompleteSecondFactor(ctx context.Context, accountID uuid.UUID, code string, trustDevice bool, dev DeviceContext) (*LoginResult, error) {
	account, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if !account.IsActive {
		return nil, domain.ErrAccountInactive
	}

	ok, err := s.secondFactor.Verify(ctx, account.ID, code)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domain.ErrInvalidSecondFactorCode
	}

	now := s.now()
	if trustDevice {
		deviceID := Fingerprint(dev)
		err := s.devices.Upsert(ctx, &domain.TrustedDevice{
			AccountID:   account.ID,
			DeviceID:    deviceID,
			DisplayName: DeviceName(dev.UserAgent),
			OriginIP:    dev.IP,
			LastUsedAt:  now,
			CreatedAt:   now,
		})
		if err != nil {
			return nil, err
		}
	}

	return s.issue(ctx, account, dev, true, now)
}

func (s *LoginService) issue(ctx context.Context, account *domain.Account, dev DeviceContext, secondFactor bool, now time.Time) (*LoginResult, error) {
	if err := s.accounts.UpdateLastLogin(ctx, account.ID, now); err != nil {
		return nil, err
	}
	account.LastLoginAt = &now

	token, err := s.sessions.Issue(ctx, account, IssueOpts{
		Device:       dev,
		SecondFactor: secondFactor && account.SecondFactorEnabled,
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("login succeeded", "account_id", account.ID, "role", account.Role)
	return &LoginResult{Account: account, Token: token}, nil
}
