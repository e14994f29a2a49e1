package settings

// DB config keys and defaults for settings.
const (
	// SiteNameKey is the DB config key for the UI site name.
	SiteNameKey = "SITE_NAME"
	// DefaultSiteName is the fallback UI site name.
	DefaultSiteName = "Tiker"

	// SubmitCostKey controls the token fee for API-key pattern submissions.
	SubmitCostKey = "PATTERN_SUBMIT_COST"
	// DefaultSubmitCost is the fallback submission fee.
	DefaultSubmitCost = 5

	// ValidateRewardKey controls the author payout when a pattern validates.
	ValidateRewardKey = "PATTERN_VALIDATE_REWARD"
	// DefaultValidateReward is the fallback validation payout.
	DefaultValidateReward = 25

	// GenesisMultiplierKey controls the genesis-mode reward multiplier.
	GenesisMultiplierKey = "GENESIS_MULTIPLIER"
	// DefaultGenesisMultiplier is the fallback genesis multiplier. The same
	// factor prices bad vouches and bad reviews at 3x their potential gain.
	DefaultGenesisMultiplier = 3

	// GenesisReviewerFloorKey controls how many trusted reviewers end genesis mode.
	GenesisReviewerFloorKey = "GENESIS_REVIEWER_FLOOR"
	// DefaultGenesisReviewerFloor is the fallback reviewer floor.
	DefaultGenesisReviewerFloor = 10

	// SubmissionsPerDayKey controls the daily pattern submission quota.
	SubmissionsPerDayKey = "SUBMISSIONS_PER_DAY"
	// DefaultSubmissionsPerDay is the fallback daily quota.
	DefaultSubmissionsPerDay = 3

	// SignupBonusKey controls the token grant on OAuth verification.
	SignupBonusKey = "SIGNUP_BONUS"
	// DefaultSignupBonus is the fallback verification grant.
	DefaultSignupBonus = 50

	// GoldBalanceThresholdKey controls the balance needed for Gold tier.
	GoldBalanceThresholdKey = "GOLD_BALANCE_THRESHOLD"
	// DefaultGoldBalanceThreshold is the fallback Gold threshold.
	DefaultGoldBalanceThreshold = 500

	// PromotionPatternThresholdKey controls validated patterns needed for
	// agent promotion to trusted.
	PromotionPatternThresholdKey = "PROMOTION_PATTERN_THRESHOLD"
	// DefaultPromotionPatternThreshold is the fallback promotion threshold.
	DefaultPromotionPatternThreshold = 10

	// ApprovalThresholdKey controls the mean score needed to validate.
	ApprovalThresholdKey = "APPROVAL_THRESHOLD"
	// DefaultApprovalThreshold is the fallback approval threshold.
	DefaultApprovalThreshold = 7.0

	// ReviewRewardKey controls the reviewer payout per accepted assessment.
	ReviewRewardKey = "REVIEW_REWARD"
	// DefaultReviewReward is the fallback review payout.
	DefaultReviewReward = 5

	// DeprecatePenaltyKey controls the author debit when a pattern is deprecated.
	DeprecatePenaltyKey = "DEPRECATE_PENALTY"
	// DefaultDeprecatePenalty is the fallback deprecation debit.
	DefaultDeprecatePenalty = 10

	// DefaultVouchStake is the reward paid on a successful vouch when the
	// request does not name a stake.
	DefaultVouchStake = 10

	// ReconcileIntervalSecondsKey controls the ledger reconciliation interval.
	ReconcileIntervalSecondsKey = "RECONCILE_INTERVAL_SECONDS"
	// DefaultReconcileIntervalSeconds is the fallback reconciliation interval.
	DefaultReconcileIntervalSeconds = 86400

	// RateLimitRedisEnabledKey toggles Redis-backed rate limiting.
	RateLimitRedisEnabledKey = "RATE_LIMIT_REDIS_ENABLED"
	// RateLimitRedisAddrKey defines the Redis address for rate limiting.
	RateLimitRedisAddrKey = "RATE_LIMIT_REDIS_ADDR"
	// RateLimitRedisPasswordKey defines the Redis password for rate limiting.
	RateLimitRedisPasswordKey = "RATE_LIMIT_REDIS_PASSWORD"
	// RateLimitRedisDBKey defines the Redis DB index for rate limiting.
	RateLimitRedisDBKey = "RATE_LIMIT_REDIS_DB"
	// RateLimitRedisPrefixKey defines the Redis key prefix for rate limiting.
	RateLimitRedisPrefixKey = "RATE_LIMIT_REDIS_PREFIX"
	// DefaultRateLimitRedisPrefix is the fallback Redis key prefix.
	DefaultRateLimitRedisPrefix = "tiker:rl"

	// VerifyAttemptsPerWindowKey controls write-gate verification attempts per window.
	VerifyAttemptsPerWindowKey = "VERIFY_ATTEMPTS_PER_WINDOW"
	// DefaultVerifyAttemptsPerWindow is the fallback verification attempt limit.
	DefaultVerifyAttemptsPerWindow = 5
	// VerifyAttemptWindowSeconds is the verification attempt window length.
	VerifyAttemptWindowSeconds = 60
)
