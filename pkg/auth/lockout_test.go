package auth

import (
	"testing"
	"time"
)

func TestEvaluateLock(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Minute)
	future := now.Add(10 * time.Minute)

	tests := []struct {
		name        string
		isLocked    bool
		lockedUntil *time.Time
		want        LockState
	}{
		{
			name: "never locked",
			want: LockOpen,
		},
		{
			name:        "lock still active",
			isLocked:    true,
			lockedUntil: &future,
			want:        LockActive,
		},
		{
			name:        "lock expired",
			isLocked:    true,
			lockedUntil: &past,
			want:        LockExpired,
		},
		{
			name:        "lock expires exactly now",
			isLocked:    true,
			lockedUntil: &now,
			want:        LockExpired,
		},
		{
			name:     "locked with no deadline treated as expired",
			isLocked: true,
			want:     LockExpired,
		},
		{
			name:        "stale deadline without lock flag",
			lockedUntil: &future,
			want:        LockOpen,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := EvaluateLock(tt.isLocked, tt.lockedUntil, now)
			if got != tt.want {
				t.Errorf("EvaluateLock() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRemainingAttempts(t *testing.T) {
	tests := []struct {
		failed int
		want   int
	}{
		{0, 5},
		{1, 4},
		{4, 1},
		{5, 0},
		{7, 0},
	}

	for _, tt := range tests {
		if got := RemainingAttempts(tt.failed); got != tt.want {
			t.Errorf("RemainingAttempts(%d) = %d, want %d", tt.failed, got, tt.want)
		}
	}
}
