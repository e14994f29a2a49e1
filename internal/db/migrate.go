package db

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tiker-app/tiker/internal/models"
	internalsettings "github.com/tiker-app/tiker/internal/settings"
	"gorm.io/gorm"
)

// Migrate runs database migrations for the current dialect.
func Migrate(conn *gorm.DB) error {
	if conn == nil {
		return fmt.Errorf("db: nil connection")
	}

	if errAutoMigrate := conn.AutoMigrate(
		&models.Account{},
		&models.Agent{},
		&models.Pattern{},
		&models.LedgerEntry{},
		&models.Assessment{},
		&models.Vouch{},
		&models.SubmissionWindow{},
		&models.WriteGrant{},
		&models.Purchase{},
		&models.Setting{},
	); errAutoMigrate != nil {
		return fmt.Errorf("db: migrate: %w", errAutoMigrate)
	}

	if errSeed := ensurePolicySettings(conn); errSeed != nil {
		return errSeed
	}

	// ddl defines an index or DDL statement to apply.
	type ddl struct {
		name string // Human-readable name for error reporting.
		sql  string // SQL to execute.
	}
	ddls := []ddl{
		{
			name: "idx_patterns_status_category",
			sql: `
				CREATE INDEX IF NOT EXISTS idx_patterns_status_category
				ON patterns (status, category, created_at DESC)
			`,
		},
		{
			name: "idx_patterns_author_account_status",
			sql: `
				CREATE INDEX IF NOT EXISTS idx_patterns_author_account_status
				ON patterns (author_account_id, status)
			`,
		},
		{
			name: "idx_ledger_entries_type_created_at",
			sql: `
				CREATE INDEX IF NOT EXISTS idx_ledger_entries_type_created_at
				ON ledger_entries (type, created_at DESC)
			`,
		},
		{
			name: "idx_vouches_vouchee_outcome",
			sql: `
				CREATE INDEX IF NOT EXISTS idx_vouches_vouchee_outcome
				ON vouches (vouchee_id, outcome)
			`,
		},
		{
			name: "idx_write_grants_account_expires",
			sql: `
				CREATE INDEX IF NOT EXISTS idx_write_grants_account_expires
				ON write_grants (account_id, expires_at DESC)
			`,
		},
		{
			name: "idx_agents_tier",
			sql: `
				CREATE INDEX IF NOT EXISTS idx_agents_tier
				ON agents (tier)
			`,
		},
		{
			name: "idx_accounts_token_balance",
			sql: `
				CREATE INDEX IF NOT EXISTS idx_accounts_token_balance
				ON accounts (token_balance DESC)
			`,
		},
	}
	for _, item := range ddls {
		if errDDL := conn.Exec(item.sql).Error; errDDL != nil {
			return fmt.Errorf("db: create index %s: %w", item.name, errDDL)
		}
	}

	return nil
}

// ensurePolicySettings seeds economy policy settings with defaults.
func ensurePolicySettings(conn *gorm.DB) error {
	intDefaults := map[string]int{
		internalsettings.SubmitCostKey:                internalsettings.DefaultSubmitCost,
		internalsettings.ValidateRewardKey:            internalsettings.DefaultValidateReward,
		internalsettings.GenesisMultiplierKey:         internalsettings.DefaultGenesisMultiplier,
		internalsettings.GenesisReviewerFloorKey:      internalsettings.DefaultGenesisReviewerFloor,
		internalsettings.SubmissionsPerDayKey:         internalsettings.DefaultSubmissionsPerDay,
		internalsettings.SignupBonusKey:               internalsettings.DefaultSignupBonus,
		internalsettings.GoldBalanceThresholdKey:      internalsettings.DefaultGoldBalanceThreshold,
		internalsettings.PromotionPatternThresholdKey: internalsettings.DefaultPromotionPatternThreshold,
		internalsettings.ReviewRewardKey:              internalsettings.DefaultReviewReward,
		internalsettings.DeprecatePenaltyKey:          internalsettings.DefaultDeprecatePenalty,
		internalsettings.ReconcileIntervalSecondsKey:  internalsettings.DefaultReconcileIntervalSeconds,
		internalsettings.VerifyAttemptsPerWindowKey:   internalsettings.DefaultVerifyAttemptsPerWindow,
	}
	for key, value := range intDefaults {
		if errEnsure := ensureIntSetting(conn, key, value); errEnsure != nil {
			return errEnsure
		}
	}
	if errEnsure := ensureFloatSetting(
		conn,
		internalsettings.ApprovalThresholdKey,
		internalsettings.DefaultApprovalThreshold,
	); errEnsure != nil {
		return errEnsure
	}
	if errEnsure := ensureStringSetting(
		conn,
		internalsettings.SiteNameKey,
		internalsettings.DefaultSiteName,
	); errEnsure != nil {
		return errEnsure
	}
	return nil
}

// ensureIntSetting ensures an integer setting exists and defaults when empty.
func ensureIntSetting(conn *gorm.DB, key string, value int) error {
	payload, errMarshal := json.Marshal(value)
	if errMarshal != nil {
		return fmt.Errorf("db: marshal %s setting: %w", key, errMarshal)
	}
	return ensureRawSetting(conn, key, json.RawMessage(payload))
}

// ensureFloatSetting ensures a float setting exists and defaults when empty.
func ensureFloatSetting(conn *gorm.DB, key string, value float64) error {
	payload, errMarshal := json.Marshal(value)
	if errMarshal != nil {
		return fmt.Errorf("db: marshal %s setting: %w", key, errMarshal)
	}
	return ensureRawSetting(conn, key, json.RawMessage(payload))
}

// ensureStringSetting ensures a string setting exists and defaults when empty.
func ensureStringSetting(conn *gorm.DB, key string, value string) error {
	payload, errMarshal := json.Marshal(value)
	if errMarshal != nil {
		return fmt.Errorf("db: marshal %s setting: %w", key, errMarshal)
	}
	return ensureRawSetting(conn, key, json.RawMessage(payload))
}

// ensureRawSetting creates the setting or restores it when the value is empty.
func ensureRawSetting(conn *gorm.DB, key string, rawValue json.RawMessage) error {
	var existing models.Setting
	if errFind := conn.Where("key = ?", key).First(&existing).Error; errFind == nil {
		trimmed := strings.TrimSpace(string(existing.Value))
		if len(existing.Value) == 0 || trimmed == "" || trimmed == "null" {
			if errUpdate := conn.Model(&existing).Updates(map[string]any{
				"value":      rawValue,
				"updated_at": time.Now().UTC(),
			}).Error; errUpdate != nil {
				return fmt.Errorf("db: update %s setting: %w", key, errUpdate)
			}
		}
		return nil
	} else if !errors.Is(errFind, gorm.ErrRecordNotFound) {
		return fmt.Errorf("db: query %s setting: %w", key, errFind)
	}

	now := time.Now().UTC()
	setting := models.Setting{
		Key:       key,
		Value:     rawValue,
		UpdatedAt: now,
	}
	if errCreate := conn.Create(&setting).Error; errCreate != nil {
		return fmt.Errorf("db: create %s setting: %w", key, errCreate)
	}
	return nil
}
