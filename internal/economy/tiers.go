package economy

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/tiker-app/tiker/internal/models"
	"gorm.io/gorm"
)

// Action names a capability-gated operation.
type Action string

// Action constants define the gated operations.
const (
	ActionReadPatterns   Action = "read_patterns"
	ActionSubmitPattern  Action = "submit_pattern"
	ActionReviewPattern  Action = "review_pattern"
	ActionVouch          Action = "vouch"
	ActionEndorsePromote Action = "endorse_promotion"
)

// capability describes the minimum tiers for an action. An agent requirement
// of zero means no agent is needed; likewise for accounts.
type capability struct {
	minAgentTier   models.AgentTier
	minAccountTier models.AccountTier
	requiresAgent  bool
}

// capabilityTable is the single authorization source consulted by every
// mutating entry point.
var capabilityTable = map[Action]capability{
	ActionReadPatterns:   {},
	ActionSubmitPattern:  {minAgentTier: models.AgentTierGeneral, minAccountTier: models.AccountTierBronze},
	ActionReviewPattern:  {minAgentTier: models.AgentTierTrusted, minAccountTier: models.AccountTierSilver},
	ActionVouch:          {minAccountTier: models.AccountTierGold},
	ActionEndorsePromote: {minAgentTier: models.AgentTierFounding, requiresAgent: true},
}

// Can checks the capability table for the given principal. Agent tiers
// compare downward (Tier1 strongest); account tiers compare upward. A nil
// agent passes agent checks only when the action does not require one:
// pattern submission accepts either a claimed agent or a session account.
func Can(account *models.Account, agent *models.Agent, action Action) error {
	cap, ok := capabilityTable[action]
	if !ok {
		return fmt.Errorf("economy: unknown action %q", action)
	}

	trustErr := &InsufficientTrustError{Action: action, RequiredAgentTier: cap.minAgentTier, RequiredAccountTier: cap.minAccountTier}

	if agent != nil {
		trustErr.ActualAgentTier = agent.Tier
		if cap.minAgentTier != 0 && agent.Tier > cap.minAgentTier {
			return trustErr
		}
		if agent.OwnerAccountID == nil && action != ActionReadPatterns {
			// Unclaimed agents are read-only regardless of tier value.
			return trustErr
		}
	} else if cap.requiresAgent {
		return trustErr
	}

	if cap.minAccountTier != 0 {
		if account == nil {
			return trustErr
		}
		trustErr.ActualAccountTier = account.Tier
		if account.Tier < cap.minAccountTier {
			return trustErr
		}
	}
	return nil
}

// IsGenesisMode reports the bootstrap phase: too few trusted reviewers exist
// for peer review. Computed from the store every time, never cached, so all
// instances agree.
func (s *Service) IsGenesisMode(ctx context.Context) (bool, error) {
	var count int64
	if errCount := s.db.WithContext(ctx).Model(&models.Agent{}).
		Where("tier <= ?", models.AgentTierTrusted).
		Count(&count).Error; errCount != nil {
		return false, fmt.Errorf("economy: count reviewers: %w", errCount)
	}
	return count < int64(s.policy().GenesisReviewerFloor), nil
}

// VerifyOAuth upgrades a Bronze account to Silver after OAuth identity
// verification and grants the signup bonus, tripled during genesis mode.
func (s *Service) VerifyOAuth(ctx context.Context, accountID uint64, provider, subject string) (int64, error) {
	if provider == "" || subject == "" {
		return 0, &ValidationError{Missing: missingOf(map[string]string{"provider": provider, "subject": subject})}
	}

	genesis, errGenesis := s.IsGenesisMode(ctx)
	if errGenesis != nil {
		return 0, errGenesis
	}
	pol := s.policy()
	bonus := pol.SignupBonus
	if genesis {
		bonus *= pol.GenesisMultiplier
	}

	var granted int64
	errTx := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Account{}).
			Where("id = ? AND tier = ?", accountID, models.AccountTierBronze).
			Updates(map[string]any{
				"tier":           models.AccountTierSilver,
				"oauth_provider": provider,
				"oauth_subject":  subject,
				"updated_at":     s.now(),
			})
		if res.Error != nil {
			return fmt.Errorf("economy: verify account: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			var account models.Account
			if errFind := tx.First(&account, accountID).Error; errFind != nil {
				if errors.Is(errFind, gorm.ErrRecordNotFound) {
					return ErrNotFound
				}
				return fmt.Errorf("economy: load account: %w", errFind)
			}
			// Already verified; the bonus fires once.
			return ErrConflict
		}
		granted = bonus
		return s.credit(tx, &models.LedgerEntry{
			AccountID:   accountID,
			Amount:      bonus,
			Type:        models.EntrySignupBonus,
			RefType:     "account",
			RefID:       accountID,
			Description: fmt.Sprintf("oauth verification via %s", provider),
		})
	})
	if errTx != nil {
		return 0, errTx
	}
	return granted, nil
}

// promoteGoldIfEligible advances a Silver account to Gold when it crossed the
// balance threshold or holds a successful vouch. Runs inside the caller's tx.
func (s *Service) promoteGoldIfEligible(tx *gorm.DB, accountID uint64) error {
	pol := s.policy()
	res := tx.Model(&models.Account{}).
		Where("id = ? AND tier = ? AND (token_balance >= ? OR gold_eligible = ?)",
			accountID, models.AccountTierSilver, pol.GoldBalanceThreshold, true).
		Updates(map[string]any{
			"tier":       models.AccountTierGold,
			"updated_at": s.now(),
		})
	if res.Error != nil {
		return fmt.Errorf("economy: promote gold: %w", res.Error)
	}
	return nil
}

// ClaimAgent transfers an unclaimed agent to the account and advances it to
// the general tier. The transition is a conditional update so two accounts
// cannot claim the same agent.
func (s *Service) ClaimAgent(ctx context.Context, accountID, agentID uint64) error {
	now := s.now()
	res := s.db.WithContext(ctx).Model(&models.Agent{}).
		Where("id = ? AND tier = ? AND owner_account_id IS NULL", agentID, models.AgentTierUnclaimed).
		Updates(map[string]any{
			"owner_account_id": accountID,
			"tier":             models.AgentTierGeneral,
			"claimed_at":       now,
			"updated_at":       now,
		})
	if res.Error != nil {
		return fmt.Errorf("economy: claim agent: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		var agent models.Agent
		if errFind := s.db.WithContext(ctx).First(&agent, agentID).Error; errFind != nil {
			if errors.Is(errFind, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return fmt.Errorf("economy: load agent: %w", errFind)
		}
		return ErrConflict
	}
	return nil
}

// PromoteAgent advances a general agent to trusted. Requires enough validated
// patterns and an endorsement by a founding agent; both conditions together,
// never one alone.
func (s *Service) PromoteAgent(ctx context.Context, endorser *models.Agent, agentID uint64) error {
	if errCan := Can(nil, endorser, ActionEndorsePromote); errCan != nil {
		return errCan
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var validated int64
		if errCount := tx.Model(&models.Pattern{}).
			Where("author_agent_id = ? AND status = ?", agentID, models.PatternStatusValidated).
			Count(&validated).Error; errCount != nil {
			return fmt.Errorf("economy: count validated patterns: %w", errCount)
		}
		pol := s.policy()
		if validated < int64(pol.PromotionPatterns) {
			return &ValidationError{Reason: fmt.Sprintf("agent has %d validated patterns, needs %d", validated, pol.PromotionPatterns)}
		}

		res := tx.Model(&models.Agent{}).
			Where("id = ? AND tier = ?", agentID, models.AgentTierGeneral).
			Updates(map[string]any{
				"tier":                 models.AgentTierTrusted,
				"endorsed_by_agent_id": endorser.ID,
				"updated_at":           s.now(),
			})
		if res.Error != nil {
			return fmt.Errorf("economy: promote agent: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrConflict
		}
		return nil
	})
}

// AdminPromoteAgentToFounding advances a trusted agent to founding. There is
// no automatic path to the founding tier.
func (s *Service) AdminPromoteAgentToFounding(ctx context.Context, agentID uint64) error {
	res := s.db.WithContext(ctx).Model(&models.Agent{}).
		Where("id = ? AND tier = ?", agentID, models.AgentTierTrusted).
		Updates(map[string]any{
			"tier":       models.AgentTierFounding,
			"updated_at": s.now(),
		})
	if res.Error != nil {
		return fmt.Errorf("economy: promote founding: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrConflict
	}
	return nil
}

// AdminDemoteAgent sets an agent's tier directly. The only path that lowers
// a tier.
func (s *Service) AdminDemoteAgent(ctx context.Context, agentID uint64, tier models.AgentTier) error {
	if tier < models.AgentTierFounding || tier > models.AgentTierUnclaimed {
		return &ValidationError{Reason: "invalid agent tier"}
	}
	res := s.db.WithContext(ctx).Model(&models.Agent{}).
		Where("id = ?", agentID).
		Updates(map[string]any{
			"tier":       tier,
			"updated_at": s.now(),
		})
	if res.Error != nil {
		return fmt.Errorf("economy: demote agent: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// missingOf returns the names of empty fields in sorted order.
func missingOf(fields map[string]string) []string {
	missing := make([]string, 0, len(fields))
	for name, value := range fields {
		if value == "" {
			missing = append(missing, name)
		}
	}
	sort.Strings(missing)
	return missing
}
