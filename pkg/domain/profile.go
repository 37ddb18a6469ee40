package domain

import "github.com/google/uuid"

// Profile is the role-specific record linked to an account. Which table
// it comes from is decided by the profile provider registered for the
// account's role.
type Profile struct {
	AccountID   uuid.UUID `json:"account_id"`
	Role        Role      `json:"role"`
	DisplayName string    `json:"display_name"`
	Program     string    `json:"program,omitempty"`
	Department  string    `json:"department,omitempty"`
}
