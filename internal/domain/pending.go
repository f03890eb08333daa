package domain

import "time"

type PendingPurpose string

const (
	PurposeSignup PendingPurpose = "signup"
	PurposeReset  PendingPurpose = "reset"
)

// PendingRegistration is the OTP record staged for an email address. Signup
// records carry the profile that is promoted to a User once the code is
// confirmed; reset records only carry the code.
type PendingRegistration struct {
	Email        string         `gorm:"type:text;primaryKey" db:"email"`
	Purpose      PendingPurpose `gorm:"type:text;not null" db:"purpose"`
	OTP          string         `gorm:"type:text;not null" db:"otp"`
	FullName     string         `gorm:"type:text" db:"full_name"`
	PasswordHash string         `gorm:"type:text" db:"password_hash"`
	Avatar       string         `gorm:"type:text" db:"avatar"`
	ExpiresAt    time.Time      `gorm:"not null;index:idx_pending_expires_at" db:"expires_at"`
	CreatedAt    time.Time      `gorm:"not null" db:"created_at"`
	UpdatedAt    time.Time      `gorm:"not null" db:"updated_at"`
}

func (PendingRegistration) TableName() string { return "pending_registrations" }

// Expired reports whether the record can no longer authorize anything at t.
func (p *PendingRegistration) Expired(t time.Time) bool {
	return !t.Before(p.ExpiresAt)
}
