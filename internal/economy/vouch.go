package economy

import (
	"context"
	"errors"
	"fmt"

	"github.com/tiker-app/tiker/internal/models"
	internalsettings "github.com/tiker-app/tiker/internal/settings"
	"gorm.io/gorm"
)

// CreateVouch stakes the voucher's reputation on another account. Only Gold
// accounts vouch, never for themselves, and at most one pending vouch per
// voucher/vouchee pair. Stake zero takes the default.
func (s *Service) CreateVouch(ctx context.Context, voucher *models.Account, voucheeID uint64, stake int64) (*models.Vouch, error) {
	if errCan := Can(voucher, nil, ActionVouch); errCan != nil {
		return nil, errCan
	}
	if voucher.ID == voucheeID {
		return nil, ErrSelfVouchForbidden
	}
	if stake < 0 {
		return nil, &ValidationError{Reason: "stake must not be negative"}
	}
	if stake == 0 {
		stake = internalsettings.DefaultVouchStake
	}

	vouch := &models.Vouch{
		VoucherID: voucher.ID,
		VoucheeID: voucheeID,
		Stake:     stake,
		Outcome:   models.VouchPending,
	}
	errTx := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var vouchee models.Account
		if errFind := tx.First(&vouchee, voucheeID).Error; errFind != nil {
			if errors.Is(errFind, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return fmt.Errorf("economy: load vouchee: %w", errFind)
		}

		var pending int64
		errCount := tx.Model(&models.Vouch{}).
			Where("voucher_id = ? AND vouchee_id = ? AND outcome = ?",
				voucher.ID, voucheeID, models.VouchPending).
			Count(&pending).Error
		if errCount != nil {
			return fmt.Errorf("economy: count pending vouches: %w", errCount)
		}
		if pending > 0 {
			return ErrConflict
		}

		if errCreate := tx.Create(vouch).Error; errCreate != nil {
			return fmt.Errorf("economy: create vouch: %w", errCreate)
		}
		return nil
	})
	if errTx != nil {
		return nil, errTx
	}
	return vouch, nil
}

// ResolveVouch settles a pending vouch. A good outcome pays the voucher the
// stake and marks the vouchee Gold-eligible; a bad outcome charges the
// voucher three times the stake. The pending-to-resolved transition is a
// conditional update, so a vouch settles exactly once.
func (s *Service) ResolveVouch(ctx context.Context, vouchID uint64, good bool) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var vouch models.Vouch
		if errFind := tx.First(&vouch, vouchID).Error; errFind != nil {
			if errors.Is(errFind, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return fmt.Errorf("economy: load vouch: %w", errFind)
		}

		outcome := models.VouchBad
		if good {
			outcome = models.VouchSuccess
		}
		now := s.now()
		res := tx.Model(&models.Vouch{}).
			Where("id = ? AND outcome = ?", vouchID, models.VouchPending).
			Updates(map[string]any{
				"outcome":     outcome,
				"resolved_at": now,
				"updated_at":  now,
			})
		if res.Error != nil {
			return fmt.Errorf("economy: resolve vouch: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrConflict
		}

		if !good {
			return s.penalize(tx, &models.LedgerEntry{
				AccountID:   vouch.VoucherID,
				Amount:      -vouch.Stake * s.policy().GenesisMultiplier,
				Type:        models.EntryVouchPenalty,
				RefType:     "vouch",
				RefID:       vouch.ID,
				Description: fmt.Sprintf("vouched account %d went bad", vouch.VoucheeID),
			})
		}

		errPay := s.credit(tx, &models.LedgerEntry{
			AccountID:   vouch.VoucherID,
			Amount:      vouch.Stake,
			Type:        models.EntryVouchSuccess,
			RefType:     "vouch",
			RefID:       vouch.ID,
			Description: fmt.Sprintf("vouched account %d proved out", vouch.VoucheeID),
		})
		if errPay != nil {
			return errPay
		}

		// A successful vouch is the non-balance path to Gold.
		mark := tx.Model(&models.Account{}).
			Where("id = ?", vouch.VoucheeID).
			Updates(map[string]any{
				"gold_eligible": true,
				"updated_at":    now,
			})
		if mark.Error != nil {
			return fmt.Errorf("economy: mark vouchee: %w", mark.Error)
		}
		if errPromote := s.promoteGoldIfEligible(tx, vouch.VoucheeID); errPromote != nil {
			return errPromote
		}
		return s.promoteGoldIfEligible(tx, vouch.VoucherID)
	})
}

// ListVouches returns an account's vouches in both directions, newest first.
func (s *Service) ListVouches(ctx context.Context, accountID uint64) ([]models.Vouch, error) {
	var vouches []models.Vouch
	errList := s.db.WithContext(ctx).
		Where("voucher_id = ? OR vouchee_id = ?", accountID, accountID).
		Order("created_at DESC").
		Find(&vouches).Error
	if errList != nil {
		return nil, fmt.Errorf("economy: list vouches: %w", errList)
	}
	return vouches, nil
}
