package domain

import (
	"errors"
	"fmt"
	"time"
)

// Authentication errors
var (
	ErrAccountNotFound    = errors.New("account not found")
	ErrAccountExists      = errors.New("account already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountInactive    = errors.New("account is inactive")
	ErrAccountLocked      = errors.New("account locked due to too many failed login attempts")
	ErrSessionNotFound    = errors.New("session not found")
	ErrSessionExpired     = errors.New("session expired")
	ErrSessionRevoked     = errors.New("session revoked")
	ErrInvalidToken       = errors.New("invalid token")
)

// Second-factor errors
var (
	ErrInvalidSecondFactorCode    = errors.New("invalid second-factor code")
	ErrSecondFactorNotConfigured  = errors.New("second-factor setup has not been started")
	ErrSecondFactorAlreadyEnabled = errors.New("second factor is already enabled")
	ErrDeviceNotFound             = errors.New("trusted device not found")
)

// Validation errors
var (
	ErrInvalidHandle = errors.New("invalid handle format")
	ErrWeakPassword  = errors.New("password does not meet requirements")
	ErrUnknownRole   = errors.New("unknown role")
)

// AccountLockedError carries the lockout deadline alongside the
// ErrAccountLocked sentinel.
type AccountLockedError struct {
	Until time.Time
}

func (e *AccountLockedError) Error() string {
	return fmt.Sprintf("account locked until %s", e.Until.Format(time.RFC3339))
}

// Is makes errors.Is(err, ErrAccountLocked) match.
func (e *AccountLockedError) Is(target error) bool {
	return target == ErrAccountLocked
}

// InvalidCredentialsError carries the remaining-attempts hint alongside
// the ErrInvalidCredentials sentinel. The hint is user-facing text
// only, never a security control.
type InvalidCredentialsError struct {
	RemainingAttempts int
}

func (e *InvalidCredentialsError) Error() string {
	return "invalid credentials"
}

// Is makes errors.Is(err, ErrInvalidCredentials) match.
func (e *InvalidCredentialsError) Is(target error) bool {
	return target == ErrInvalidCredentials
}
