package auth

import "time"

// Lockout thresholds.
const (
	MaxFailedAttempts = 5
	LockoutDuration   = 30 * time.Minute
)

// LockState classifies an account's lock at a point in time.
type LockState int

const (
	// LockOpen means the account is not locked.
	LockOpen LockState = iota
	// LockActive means the account is locked and the deadline has not passed.
	LockActive
	// LockExpired means the account is marked locked but the deadline has
	// elapsed (or was never set). The caller must auto-unlock: clear the
	// lock, the deadline, and the failed-attempts counter.
	LockExpired
)

// EvaluateLock is a pure function of the lock flag, the lock deadline,
// and the current time.
func EvaluateLock(isLocked bool, lockedUntil *time.Time, now time.Time) LockState {
	if !isLocked {
		return LockOpen
	}
	if lockedUntil != nil && lockedUntil.After(now) {
		return LockActive
	}
	return LockExpired
}

// RemainingAttempts reports how many failed attempts are left before the
// lock applies. User-facing hint only, never a security control.
func RemainingAttempts(failedAttempts int) int {
	remaining := MaxFailedAttempts - failedAttempts
	if remaining < 0 {
		return 0
	}
	return remaining
}
