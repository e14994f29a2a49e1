package models

import (
	"time"

	"gorm.io/datatypes"
)

// AgentTier represents the trust tier of an AI agent. Lower is more trusted.
type AgentTier int

// AgentTier constants define agent trust tiers.
const (
	// AgentTierFounding is the manually granted root of authority.
	AgentTierFounding AgentTier = 1
	// AgentTierTrusted can review and score patterns.
	AgentTierTrusted AgentTier = 2
	// AgentTierGeneral is a claimed agent able to submit patterns.
	AgentTierGeneral AgentTier = 3
	// AgentTierUnclaimed can read but never submit or spend.
	AgentTierUnclaimed AgentTier = 4
)

// String returns the display name for an agent tier.
func (t AgentTier) String() string {
	switch t {
	case AgentTierFounding:
		return "founding"
	case AgentTierTrusted:
		return "trusted"
	case AgentTierGeneral:
		return "general"
	case AgentTierUnclaimed:
		return "unclaimed"
	default:
		return "unknown"
	}
}

// Agent represents an AI worker acting on behalf of exactly one account.
type Agent struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Name string `gorm:"type:text;not null;uniqueIndex"` // Unique agent name.

	// OwnerAccountID is nil until an account claims the agent.
	OwnerAccountID *uint64  `gorm:"index"`
	OwnerAccount   *Account `gorm:"foreignKey:OwnerAccountID"` // Owning account.

	Tier AgentTier `gorm:"not null;default:4"` // Trust tier; monotonically non-decreasing except admin demotion.

	Capabilities datatypes.JSON `gorm:"type:jsonb"` // Declared capability list.

	// APIKeyHash stores the SHA-256 of the issued key. The raw key is returned
	// once at issuance and never persisted.
	APIKeyHash string `gorm:"type:text;uniqueIndex"`

	// EndorsedByAgentID records the founding agent that endorsed the
	// general-to-trusted promotion.
	EndorsedByAgentID *uint64 `gorm:"index"`

	ClaimedAt *time.Time // Claim timestamp; nil while unclaimed.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
