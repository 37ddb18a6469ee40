package domain

import (
	"time"

	"github.com/google/uuid"
)

// SecondFactor holds the TOTP secret for an account. A row exists once
// provisioning has begun; the account's SecondFactorEnabled flag stays
// false until one code has been confirmed against it.
type SecondFactor struct {
	ID              uuid.UUID
	AccountID       uuid.UUID
	SecretEncrypted string // AES-256-GCM encrypted base32 secret
	CreatedAt       time.Time
	LastUsedAt      *time.Time
}

// SecondFactorSetup contains the material returned when provisioning
// begins. The secret is shown once for manual entry.
type SecondFactorSetup struct {
	Secret          string
	ProvisioningURI string
	QRCodeDataURI   string // data:image/png;base64,...
}

// SecondFactorChallenge is returned by login when a one-time code is
// still required. The device fields let the client offer "trust this
// device" with a sensible default name.
type SecondFactorChallenge struct {
	AccountID           uuid.UUID
	DeviceID            string
	SuggestedDeviceName string
}
