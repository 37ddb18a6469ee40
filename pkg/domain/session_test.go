package domain

import (
	"testing"
	"time"
)

func TestSession_IsValid(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Hour)

	tests := []struct {
		name      string
		expiresAt time.Time
		revokedAt *time.Time
		want      bool
	}{
		{
			name:      "live session",
			expiresAt: now.Add(time.Hour),
			want:      true,
		},
		{
			name:      "expired",
			expiresAt: now.Add(-time.Minute),
			want:      false,
		},
		{
			name:      "revoked",
			expiresAt: now.Add(time.Hour),
			revokedAt: &past,
			want:      false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &Session{ExpiresAt: tt.expiresAt, RevokedAt: tt.revokedAt}
			if got := s.IsValid(); got != tt.want {
				t.Errorf("IsValid() = %v, want %v", got, tt.want)
			}
		})
	}
}
