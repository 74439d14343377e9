package entity

import (
	"time"
)

// Identity is the auth-provider account record.
// Passwords are stored as bcrypt hashes in PasswordHash.
type Identity struct {
	ID               string
	Email            string
	PasswordHash     string
	EmailConfirmedAt *time.Time
	ConfirmedAt      *time.Time
	Metadata         map[string]any
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// IsConfirmed reports whether either confirmation timestamp is set.
func (i *Identity) IsConfirmed() bool {
	if i == nil {
		return false
	}
	return i.EmailConfirmedAt != nil || i.ConfirmedAt != nil
}

// ConfirmedTime returns the first non-nil confirmation timestamp.
func (i *Identity) ConfirmedTime() *time.Time {
	if i == nil {
		return nil
	}
	if i.EmailConfirmedAt != nil {
		return i.EmailConfirmedAt
	}
	return i.ConfirmedAt
}

// Public strips secrets before the identity leaves the service.
func (i Identity) Public() Identity {
	i.PasswordHash = ""
	return i
}
