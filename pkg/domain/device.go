package domain

import (
	"time"

	"github.com/google/uuid"
)

// TrustedDevice is a device fingerprint for which the second-factor
// check may be skipped. Entries are unique per (account, device id).
type TrustedDevice struct {
	AccountID   uuid.UUID
	DeviceID    string
	DisplayName string
	OriginIP    string
	LastUsedAt  time.Time
	CreatedAt   time.Time
}
