package models

import "time"

// VouchOutcome represents the resolution state of a vouch.
type VouchOutcome int

// VouchOutcome constants define vouch outcomes.
const (
	// VouchPending marks an unresolved stake.
	VouchPending VouchOutcome = 1
	// VouchSuccess marks a vouch resolved in the vouchee's favor.
	VouchSuccess VouchOutcome = 2
	// VouchBad marks a vouch resolved against the voucher.
	VouchBad VouchOutcome = 3
)

// String returns the wire name for a vouch outcome.
func (o VouchOutcome) String() string {
	switch o {
	case VouchPending:
		return "pending"
	case VouchSuccess:
		return "success"
	case VouchBad:
		return "bad"
	default:
		return "unknown"
	}
}

// Vouch is a stake relationship from one account to another. Exactly one
// resolution event is applied per vouch; the pending-to-resolved transition
// is a guarded conditional update.
type Vouch struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	VoucherID uint64  `gorm:"not null;index"`       // Staking account.
	Voucher   Account `gorm:"foreignKey:VoucherID"` // Staking account record.

	VoucheeID uint64  `gorm:"not null;index"`       // Endorsed account.
	Vouchee   Account `gorm:"foreignKey:VoucheeID"` // Endorsed account record.

	// Stake is the reward paid to the voucher on success. A bad vouch costs
	// three times the stake.
	Stake int64 `gorm:"not null"`

	Outcome VouchOutcome `gorm:"not null;default:1;index"` // Resolution state.

	ResolvedAt *time.Time // Resolution timestamp; nil while pending.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
