package models

import "time"

// WriteGrant is a short-lived proof that an account passed the second-factor
// challenge. Every mutating endpoint requires a valid, unexpired grant;
// absence or invalidity fails closed.
type WriteGrant struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	AccountID uint64 `gorm:"not null;index"` // Granted account.

	// Token is the signed grant presented by the client. It is validated
	// cryptographically against the account ID and expiry on every use.
	Token string `gorm:"type:text;not null;uniqueIndex"`

	IssuedAt  time.Time  `gorm:"not null"`       // Issuance timestamp.
	ExpiresAt time.Time  `gorm:"not null;index"` // Expiry timestamp (30 days after issuance).
	RevokedAt *time.Time // Explicit revocation timestamp.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
}
