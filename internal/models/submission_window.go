package models

import "time"

// SubmissionWindow tracks one account's pattern submissions for one UTC
// calendar day. Reserved counts in-flight submissions; Count counts committed
// ones. Both are advanced with single conditional updates so two concurrent
// submissions cannot both pass the quota check.
type SubmissionWindow struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	AccountID uint64 `gorm:"not null;uniqueIndex:idx_submission_windows_account_day"` // Limited account.

	// Day is the UTC calendar day in YYYY-MM-DD form.
	Day string `gorm:"type:varchar(10);not null;uniqueIndex:idx_submission_windows_account_day"`

	Reserved int `gorm:"not null;default:0"` // Reservations taken this window.
	Count    int `gorm:"not null;default:0"` // Committed submissions this window.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
