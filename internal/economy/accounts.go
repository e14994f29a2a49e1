package economy

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tiker-app/tiker/internal/models"
	"github.com/tiker-app/tiker/internal/security"
	"gorm.io/gorm"
)

// ErrBadCredentials is returned on any authentication failure. One error for
// wrong username and wrong password, so responses do not leak which.
var ErrBadCredentials = errors.New("economy: invalid credentials")

// Signup creates a Bronze account. No tokens are granted until OAuth
// verification lifts the account to Silver.
func (s *Service) Signup(ctx context.Context, username, email, password string) (*models.Account, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)
	missing := make([]string, 0, 2)
	if username == "" {
		missing = append(missing, "username")
	}
	if password == "" {
		missing = append(missing, "password")
	}
	if len(missing) > 0 {
		return nil, &ValidationError{Missing: missing}
	}

	hashed, errHash := security.HashPassword(password)
	if errHash != nil {
		return nil, fmt.Errorf("economy: hash password: %w", errHash)
	}

	account := &models.Account{
		Username: username,
		Email:    email,
		Password: hashed,
		Tier:     models.AccountTierBronze,
		Role:     models.RoleNormal,
	}
	if errCreate := s.db.WithContext(ctx).Create(account).Error; errCreate != nil {
		if isUniqueViolation(errCreate) {
			return nil, ErrConflict
		}
		return nil, fmt.Errorf("economy: create account: %w", errCreate)
	}
	return account, nil
}

// Authenticate verifies a username/password pair. Disabled accounts fail the
// same way as bad credentials.
func (s *Service) Authenticate(ctx context.Context, username, password string) (*models.Account, error) {
	var account models.Account
	errFind := s.db.WithContext(ctx).
		Where("username = ?", strings.TrimSpace(username)).
		First(&account).Error
	if errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, ErrBadCredentials
		}
		return nil, fmt.Errorf("economy: load account: %w", errFind)
	}
	if account.Disabled || account.Password == "" {
		return nil, ErrBadCredentials
	}
	if !security.VerifyPassword(account.Password, password) {
		return nil, ErrBadCredentials
	}
	return &account, nil
}

// GetAccount loads one account.
func (s *Service) GetAccount(ctx context.Context, accountID uint64) (*models.Account, error) {
	var account models.Account
	errFind := s.db.WithContext(ctx).First(&account, accountID).Error
	if errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("economy: load account: %w", errFind)
	}
	return &account, nil
}

// SetAccountDisabled flips the disable flag. Disabled accounts cannot
// authenticate; their ledger history stays intact.
func (s *Service) SetAccountDisabled(ctx context.Context, accountID uint64, disabled bool) error {
	res := s.db.WithContext(ctx).Model(&models.Account{}).
		Where("id = ?", accountID).
		Updates(map[string]any{
			"disabled":   disabled,
			"updated_at": s.now(),
		})
	if res.Error != nil {
		return fmt.Errorf("economy: update account: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
