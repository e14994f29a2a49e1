package economy

import (
	"time"

	"github.com/tiker-app/tiker/internal/ratelimit"
	internalsettings "github.com/tiker-app/tiker/internal/settings"
	"gorm.io/gorm"
)

// Policy captures the economy rule constants. Values come from the settings
// table so operators can tune them without a deploy; defaults match the
// published pricing rules.
type Policy struct {
	SubmitCost           int64   // Token fee per API-key pattern submission.
	ValidateReward       int64   // Author payout on validation.
	GenesisMultiplier    int64   // Genesis reward multiplier; also the penalty asymmetry factor.
	GenesisReviewerFloor int     // Trusted reviewer count that ends genesis mode.
	SignupBonus          int64   // Token grant on OAuth verification.
	GoldBalanceThreshold int64   // Balance needed for Gold tier.
	PromotionPatterns    int     // Validated patterns needed for agent promotion.
	ApprovalThreshold    float64 // Mean review score needed to validate.
	ReviewReward         int64   // Reviewer payout per accepted assessment.
	DeprecatePenalty     int64   // Author debit when a validated pattern is deprecated.
}

// LoadPolicy reads the current policy from the settings snapshot.
func LoadPolicy() Policy {
	return Policy{
		SubmitCost:           int64(internalsettings.IntValue(internalsettings.SubmitCostKey, internalsettings.DefaultSubmitCost)),
		ValidateReward:       int64(internalsettings.IntValue(internalsettings.ValidateRewardKey, internalsettings.DefaultValidateReward)),
		GenesisMultiplier:    int64(internalsettings.IntValue(internalsettings.GenesisMultiplierKey, internalsettings.DefaultGenesisMultiplier)),
		GenesisReviewerFloor: internalsettings.IntValue(internalsettings.GenesisReviewerFloorKey, internalsettings.DefaultGenesisReviewerFloor),
		SignupBonus:          int64(internalsettings.IntValue(internalsettings.SignupBonusKey, internalsettings.DefaultSignupBonus)),
		GoldBalanceThreshold: int64(internalsettings.IntValue(internalsettings.GoldBalanceThresholdKey, internalsettings.DefaultGoldBalanceThreshold)),
		PromotionPatterns:    internalsettings.IntValue(internalsettings.PromotionPatternThresholdKey, internalsettings.DefaultPromotionPatternThreshold),
		ApprovalThreshold:    internalsettings.FloatValue(internalsettings.ApprovalThresholdKey, internalsettings.DefaultApprovalThreshold),
		ReviewReward:         int64(internalsettings.IntValue(internalsettings.ReviewRewardKey, internalsettings.DefaultReviewReward)),
		DeprecatePenalty:     int64(internalsettings.IntValue(internalsettings.DeprecatePenaltyKey, internalsettings.DefaultDeprecatePenalty)),
	}
}

// Service implements the trust and token economy rules against the store.
// The store owns all mutable economy state; the service holds no cross-request
// state beyond its injected dependencies.
type Service struct {
	db       *gorm.DB
	quota    *ratelimit.DailyQuota
	nowFn    func() time.Time
	policyFn func() Policy
}

// NewService constructs a Service with default dependencies when nil.
func NewService(db *gorm.DB, quota *ratelimit.DailyQuota, nowFn func() time.Time) *Service {
	if nowFn == nil {
		nowFn = time.Now
	}
	if quota == nil {
		quota = ratelimit.NewDailyQuota(db, nowFn, nil)
	}
	return &Service{
		db:       db,
		quota:    quota,
		nowFn:    nowFn,
		policyFn: LoadPolicy,
	}
}

// Quota exposes the submission quota for status endpoints.
func (s *Service) Quota() *ratelimit.DailyQuota {
	return s.quota
}

func (s *Service) now() time.Time {
	return s.nowFn().UTC()
}

func (s *Service) policy() Policy {
	return s.policyFn()
}
