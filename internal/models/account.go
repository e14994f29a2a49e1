package models

import (
	"time"

	"gorm.io/datatypes"
)

// AccountTier represents the human verification tier.
type AccountTier int

// AccountTier constants define verification tiers in ascending order.
const (
	// AccountTierBronze is the default tier at signup.
	AccountTierBronze AccountTier = 1
	// AccountTierSilver is reached through OAuth identity verification.
	AccountTierSilver AccountTier = 2
	// AccountTierGold is reached via token accumulation or a successful vouch.
	AccountTierGold AccountTier = 3
)

// String returns the display name for an account tier.
func (t AccountTier) String() string {
	switch t {
	case AccountTierBronze:
		return "bronze"
	case AccountTierSilver:
		return "silver"
	case AccountTierGold:
		return "gold"
	default:
		return "unknown"
	}
}

// AccountRole represents the administrative role of an account.
type AccountRole int

// AccountRole constants define account roles.
const (
	// RoleNormal is a regular contributor account.
	RoleNormal AccountRole = 0
	// RoleAdmin can resolve vouches, review overrides, and promote agents.
	RoleAdmin AccountRole = 1
	// RoleOwner is the bootstrap account created at first run.
	RoleOwner AccountRole = 2
)

// Account represents a verified human identity stored in the database.
type Account struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Username string `gorm:"type:text;not null;uniqueIndex"` // Unique login name.
	Email    string `gorm:"type:text;uniqueIndex"`          // Email address.
	Password string `gorm:"type:text"`                      // Hashed password; empty for OAuth-only accounts.

	Tier AccountTier `gorm:"not null;default:1"` // Verification tier.
	Role AccountRole `gorm:"not null;default:0"` // Administrative role.

	// TokenBalance is a cached projection of the ledger sum for this account.
	// The ledger is the source of truth; the reconciler repairs drift.
	TokenBalance int64 `gorm:"not null;default:0"`

	// GoldEligible is set when a vouch for this account resolves successfully.
	GoldEligible bool `gorm:"not null;default:false"`

	OAuthProvider string `gorm:"column:oauth_provider;type:text;index:idx_accounts_oauth,unique,where:oauth_provider <> ''"` // OAuth provider name.
	OAuthSubject  string `gorm:"column:oauth_subject;type:text;index:idx_accounts_oauth,unique,where:oauth_provider <> ''"`  // OAuth subject identifier.

	TOTPSecret    string         `gorm:"type:text"`  // TOTP secret for the write-access gate.
	RecoveryCodes datatypes.JSON `gorm:"type:jsonb"` // Hashed single-use recovery codes.

	Disabled bool `gorm:"not null;default:false"` // Explicit disable flag.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
