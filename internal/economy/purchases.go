package economy

import (
	"context"
	"errors"
	"fmt"

	"github.com/tiker-app/tiker/internal/models"
	"gorm.io/gorm"
)

// RecordPurchase credits bonus tokens for a completed payment. The external
// event ID deduplicates webhook retries; replays return the stored purchase
// without a second credit.
func (s *Service) RecordPurchase(ctx context.Context, accountID uint64, externalID string, amountCents, bonusTokens int64) (*models.Purchase, error) {
	if externalID == "" {
		return nil, &ValidationError{Missing: []string{"external_id"}}
	}
	if amountCents <= 0 || bonusTokens <= 0 {
		return nil, &ValidationError{Reason: "amount and bonus must be positive"}
	}

	purchase := &models.Purchase{
		AccountID:   accountID,
		ExternalID:  externalID,
		AmountCents: amountCents,
		BonusTokens: bonusTokens,
	}
	errTx := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.Purchase
		errFind := tx.Where("external_id = ?", externalID).First(&existing).Error
		if errFind == nil {
			// Webhook retry; the credit already happened.
			*purchase = existing
			return nil
		}
		if !errors.Is(errFind, gorm.ErrRecordNotFound) {
			return fmt.Errorf("economy: check purchase: %w", errFind)
		}

		if errCreate := tx.Create(purchase).Error; errCreate != nil {
			if isUniqueViolation(errCreate) {
				return ErrConflict
			}
			return fmt.Errorf("economy: create purchase: %w", errCreate)
		}

		errPay := s.credit(tx, &models.LedgerEntry{
			AccountID:   accountID,
			Amount:      bonusTokens,
			Type:        models.EntryPurchaseBonus,
			RefType:     "purchase",
			RefID:       purchase.ID,
			Description: fmt.Sprintf("purchase %s", externalID),
		})
		if errPay != nil {
			return errPay
		}
		return s.promoteGoldIfEligible(tx, accountID)
	})
	if errTx != nil {
		return nil, errTx
	}
	return purchase, nil
}
