package models

import "time"

// Purchase records a completed service purchase reported by the payment
// processor webhook. ExternalID deduplicates webhook retries.
type Purchase struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	AccountID uint64  `gorm:"not null;index"`       // Purchasing account.
	Account   Account `gorm:"foreignKey:AccountID"` // Purchasing account record.

	ExternalID string `gorm:"type:text;not null;uniqueIndex"` // Processor event identifier.

	AmountCents int64 `gorm:"not null"`           // Charged amount in cents.
	BonusTokens int64 `gorm:"not null;default:0"` // Ledger credit granted for the purchase.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
}
