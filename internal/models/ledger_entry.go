package models

import "time"

// EntryType names the reason for a ledger delta.
type EntryType string

// EntryType constants define the accepted ledger entry types.
const (
	EntrySignupBonus       EntryType = "signup_bonus"
	EntryPatternSubmit     EntryType = "pattern_submit"
	EntryPatternValidated  EntryType = "pattern_validated"
	EntryImportMilestone   EntryType = "import_milestone"
	EntryVouchSuccess      EntryType = "vouch_success"
	EntryVouchPenalty      EntryType = "vouch_penalty"
	EntryReviewReward      EntryType = "review_reward"
	EntryReviewBad         EntryType = "review_bad"
	EntryPatternDeprecated EntryType = "pattern_deprecated"
	EntryPurchaseBonus     EntryType = "purchase_bonus"
)

// LedgerEntry is an immutable record of a token delta. The table is
// append-only: no code path updates or deletes rows, and any cached balance
// must be reproducible by replaying the entries.
type LedgerEntry struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	AccountID uint64  `gorm:"not null;index:idx_ledger_entries_account_created"` // Affected account.
	AgentID   *uint64 `gorm:"index"`                                            // Acting agent, when applicable.

	Amount int64 `gorm:"not null"` // Signed token delta; never zero.

	Type EntryType `gorm:"type:varchar(32);not null;index"` // Entry reason.

	RefType string `gorm:"type:varchar(32)"` // Referenced entity type.
	RefID   uint64 `gorm:"index"`            // Referenced entity ID.

	Description string `gorm:"type:text"` // Human-readable context.

	CreatedAt time.Time `gorm:"not null;autoCreateTime;index:idx_ledger_entries_account_created"` // Append timestamp.
}
