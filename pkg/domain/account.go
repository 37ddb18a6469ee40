package domain

import (
	"time"

	"github.com/google/uuid"
)

// Account represents the persisted authentication state for one principal.
type Account struct {
	ID                  uuid.UUID
	Handle              string
	Role                Role
	IsActive            bool
	FailedAttempts      int
	IsLocked            bool
	LockedUntil         *time.Time
	SecondFactorEnabled bool
	LastLoginAt         *time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// AccountCredential stores the password hash separately from the account.
type AccountCredential struct {
	AccountID         uuid.UUID
	PasswordHash      string
	PasswordUpdatedAt time.Time
}

// LockoutStatus is the state of the lockout counters after a failed
// credential check has been recorded.
type LockoutStatus struct {
	FailedAttempts int
	Locked         bool
	LockedUntil    *time.Time
}
