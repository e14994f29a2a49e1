package economy

import (
	"context"
	"errors"
	"fmt"

	"github.com/tiker-app/tiker/internal/models"
	"gorm.io/gorm"
)

// appendEntry validates and appends one immutable ledger row inside tx. It
// does not touch the cached balance projection.
func (s *Service) appendEntry(tx *gorm.DB, entry *models.LedgerEntry) error {
	if entry == nil || entry.AccountID == 0 {
		return fmt.Errorf("economy: ledger entry missing account")
	}
	if entry.Amount == 0 {
		return ErrInvalidAmount
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = s.now()
	}
	if errCreate := tx.Create(entry).Error; errCreate != nil {
		return fmt.Errorf("economy: append ledger entry: %w", errCreate)
	}
	return nil
}

// applyProjection adjusts the cached balance unconditionally. Used for
// credits and for penalties, which may drive the balance negative.
func (s *Service) applyProjection(tx *gorm.DB, accountID uint64, amount int64) error {
	res := tx.Model(&models.Account{}).
		Where("id = ?", accountID).
		Updates(map[string]any{
			"token_balance": gorm.Expr("token_balance + ?", amount),
			"updated_at":    s.now(),
		})
	if res.Error != nil {
		return fmt.Errorf("economy: project balance: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// credit appends a positive ledger entry and updates the projection.
func (s *Service) credit(tx *gorm.DB, entry *models.LedgerEntry) error {
	if entry != nil && entry.Amount <= 0 {
		return ErrInvalidAmount
	}
	if errAppend := s.appendEntry(tx, entry); errAppend != nil {
		return errAppend
	}
	return s.applyProjection(tx, entry.AccountID, entry.Amount)
}

// penalize appends a negative ledger entry with no balance floor. Penalty
// debits may drive the balance negative; the debt stays visible.
func (s *Service) penalize(tx *gorm.DB, entry *models.LedgerEntry) error {
	if entry != nil && entry.Amount >= 0 {
		return ErrInvalidAmount
	}
	if errAppend := s.appendEntry(tx, entry); errAppend != nil {
		return errAppend
	}
	return s.applyProjection(tx, entry.AccountID, entry.Amount)
}

// debitChecked spends tokens with a balance floor. The decrement is a single
// conditional update, so a concurrent spend cannot overdraw the account.
func (s *Service) debitChecked(tx *gorm.DB, entry *models.LedgerEntry) error {
	if entry == nil || entry.Amount >= 0 {
		return ErrInvalidAmount
	}
	cost := -entry.Amount
	res := tx.Model(&models.Account{}).
		Where("id = ? AND token_balance >= ?", entry.AccountID, cost).
		Updates(map[string]any{
			"token_balance": gorm.Expr("token_balance - ?", cost),
			"updated_at":    s.now(),
		})
	if res.Error != nil {
		return fmt.Errorf("economy: debit: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		var account models.Account
		if errFind := tx.First(&account, entry.AccountID).Error; errFind != nil {
			if errors.Is(errFind, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return fmt.Errorf("economy: load account: %w", errFind)
		}
		return &InsufficientTokensError{Required: cost, Balance: account.TokenBalance}
	}
	return s.appendEntry(tx, entry)
}

// Balance recomputes the authoritative balance from the ledger sum.
func (s *Service) Balance(ctx context.Context, accountID uint64) (int64, error) {
	var total int64
	if errSum := s.db.WithContext(ctx).Model(&models.LedgerEntry{}).
		Where("account_id = ?", accountID).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&total).Error; errSum != nil {
		return 0, fmt.Errorf("economy: sum ledger: %w", errSum)
	}
	return total, nil
}

// History returns the newest ledger entries for an account.
func (s *Service) History(ctx context.Context, accountID uint64, limit int) ([]models.LedgerEntry, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var rows []models.LedgerEntry
	if errFind := s.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&rows).Error; errFind != nil {
		return nil, fmt.Errorf("economy: list ledger: %w", errFind)
	}
	return rows, nil
}

// ReconcileBalances replays the ledger per account and repairs cached
// balances that drifted. Returns the number of repaired accounts.
func (s *Service) ReconcileBalances(ctx context.Context) (int, error) {
	// balanceRow pairs an account with its ledger sum.
	type balanceRow struct {
		ID     uint64
		Cached int64
		Actual int64
	}
	var rows []balanceRow
	if errScan := s.db.WithContext(ctx).Raw(`
		SELECT accounts.id AS id,
		       accounts.token_balance AS cached,
		       COALESCE(SUM(ledger_entries.amount), 0) AS actual
		FROM accounts
		LEFT JOIN ledger_entries ON ledger_entries.account_id = accounts.id
		GROUP BY accounts.id, accounts.token_balance
	`).Scan(&rows).Error; errScan != nil {
		return 0, fmt.Errorf("economy: reconcile scan: %w", errScan)
	}

	fixed := 0
	for _, row := range rows {
		if row.Cached == row.Actual {
			continue
		}
		res := s.db.WithContext(ctx).Model(&models.Account{}).
			Where("id = ? AND token_balance = ?", row.ID, row.Cached).
			Updates(map[string]any{
				"token_balance": row.Actual,
				"updated_at":    s.now(),
			})
		if res.Error != nil {
			return fixed, fmt.Errorf("economy: reconcile repair: %w", res.Error)
		}
		if res.RowsAffected > 0 {
			fixed++
		}
	}
	return fixed, nil
}
