// Package writegate implements the two-factor gate in front of write
// operations. Accounts enroll a TOTP authenticator, verify a code to receive
// a time-limited write grant, and present the grant token on mutating
// requests.
package writegate

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/tiker-app/tiker/internal/models"
	"github.com/tiker-app/tiker/internal/ratelimit"
	"github.com/tiker-app/tiker/internal/security"
	internalsettings "github.com/tiker-app/tiker/internal/settings"
)

// Gate errors distinguish the caller's next step: enroll, verify, or retry.
var (
	// ErrTwoFactorSetupRequired means the account has no enrolled
	// authenticator.
	ErrTwoFactorSetupRequired = errors.New("writegate: two-factor setup required")
	// ErrWriteAccessRequired means the account holds no active grant.
	ErrWriteAccessRequired = errors.New("writegate: write access grant required")
	// ErrInvalidCode means the presented TOTP or recovery code did not match.
	ErrInvalidCode = errors.New("writegate: invalid code")
	// ErrAlreadyEnrolled means the account already has an authenticator.
	ErrAlreadyEnrolled = errors.New("writegate: already enrolled")
	// ErrTooManyAttempts means verification attempts are rate limited.
	ErrTooManyAttempts = errors.New("writegate: too many verification attempts")
)

const (
	recoveryCodeCount = 8
	recoveryCodeBytes = 5 // 10 hex characters per code.

	// grantDuration is how long a verified write grant stays valid.
	grantDuration = 30 * 24 * time.Hour
)

// Gate issues and checks write grants.
type Gate struct {
	db        *gorm.DB
	limiter   *ratelimit.Manager
	jwtSecret string
	issuer    string
	nowFn     func() time.Time
}

// New constructs a Gate. A nil limiter disables attempt throttling, which is
// only appropriate in tests.
func New(db *gorm.DB, limiter *ratelimit.Manager, jwtSecret string, nowFn func() time.Time) *Gate {
	if nowFn == nil {
		nowFn = time.Now
	}
	return &Gate{
		db:        db,
		limiter:   limiter,
		jwtSecret: jwtSecret,
		issuer:    internalsettings.StringValue(internalsettings.SiteNameKey, internalsettings.DefaultSiteName),
		nowFn:     nowFn,
	}
}

// Enrollment is returned once at setup time. The secret and recovery codes
// are never shown again.
type Enrollment struct {
	Secret        string   // Base32 TOTP secret for manual entry.
	ProvisionURL  string   // otpauth:// URL for QR rendering.
	RecoveryCodes []string // Plaintext single-use recovery codes.
}

// Enroll generates a TOTP secret and recovery codes for the account. Fails
// if an authenticator is already enrolled; admins reset enrollment by
// clearing the stored secret first.
func (g *Gate) Enroll(ctx context.Context, account *models.Account) (*Enrollment, error) {
	if account.TOTPSecret != "" {
		return nil, ErrAlreadyEnrolled
	}

	key, errGen := totp.Generate(totp.GenerateOpts{
		Issuer:      g.issuer,
		AccountName: account.Username,
	})
	if errGen != nil {
		return nil, fmt.Errorf("writegate: generate totp secret: %w", errGen)
	}

	codes := make([]string, recoveryCodeCount)
	hashes := make([]string, recoveryCodeCount)
	for i := range codes {
		raw := make([]byte, recoveryCodeBytes)
		if _, errRead := rand.Read(raw); errRead != nil {
			return nil, fmt.Errorf("writegate: generate recovery code: %w", errRead)
		}
		codes[i] = hex.EncodeToString(raw)
		hashed, errHash := bcrypt.GenerateFromPassword([]byte(codes[i]), bcrypt.DefaultCost)
		if errHash != nil {
			return nil, fmt.Errorf("writegate: hash recovery code: %w", errHash)
		}
		hashes[i] = string(hashed)
	}
	encoded, errMarshal := json.Marshal(hashes)
	if errMarshal != nil {
		return nil, fmt.Errorf("writegate: encode recovery codes: %w", errMarshal)
	}

	res := g.db.WithContext(ctx).Model(&models.Account{}).
		Where("id = ? AND (totp_secret = '' OR totp_secret IS NULL)", account.ID).
		Updates(map[string]any{
			"totp_secret":    key.Secret(),
			"recovery_codes": encoded,
			"updated_at":     g.nowFn().UTC(),
		})
	if res.Error != nil {
		return nil, fmt.Errorf("writegate: store enrollment: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, ErrAlreadyEnrolled
	}
	account.TOTPSecret = key.Secret()

	return &Enrollment{
		Secret:        key.Secret(),
		ProvisionURL:  key.URL(),
		RecoveryCodes: codes,
	}, nil
}

// Verify checks a TOTP or recovery code and, on success, issues a write
// grant token. Attempts are throttled per account so codes cannot be brute
// forced.
func (g *Gate) Verify(ctx context.Context, account *models.Account, code string) (string, time.Time, error) {
	if account.TOTPSecret == "" {
		return "", time.Time{}, ErrTwoFactorSetupRequired
	}
	if errThrottle := g.throttle(ctx, account.ID); errThrottle != nil {
		return "", time.Time{}, errThrottle
	}

	now := g.nowFn().UTC()
	ok, errValidate := totp.ValidateCustom(code, account.TOTPSecret, now, totp.ValidateOpts{
		Period: 30,
		Skew:   1,
		Digits: otp.DigitsSix,
	})
	if errValidate != nil {
		return "", time.Time{}, fmt.Errorf("writegate: validate totp: %w", errValidate)
	}
	if !ok {
		consumed, errConsume := g.consumeRecoveryCode(ctx, account, code)
		if errConsume != nil {
			return "", time.Time{}, errConsume
		}
		if !consumed {
			return "", time.Time{}, ErrInvalidCode
		}
		log.WithField("account_id", account.ID).Info("recovery code consumed")
	}

	return g.issueGrant(ctx, account.ID, now)
}

// throttle enforces the per-account verification attempt limit.
func (g *Gate) throttle(ctx context.Context, accountID uint64) error {
	if g.limiter == nil {
		return nil
	}
	limit := internalsettings.IntValue(internalsettings.VerifyAttemptsPerWindowKey, internalsettings.DefaultVerifyAttemptsPerWindow)
	window := time.Duration(internalsettings.VerifyAttemptWindowSeconds) * time.Second
	key := fmt.Sprintf("verify:%d", accountID)
	result, errAllow := g.limiter.Allow(ctx, key, limit, window)
	if errAllow != nil {
		return fmt.Errorf("writegate: attempt limit: %w", errAllow)
	}
	if !result.Allowed {
		return ErrTooManyAttempts
	}
	return nil
}

// consumeRecoveryCode burns a matching recovery code. The updated code list
// is written conditionally against the previous list, so two concurrent
// verifications cannot spend the same code.
func (g *Gate) consumeRecoveryCode(ctx context.Context, account *models.Account, code string) (bool, error) {
	if len(account.RecoveryCodes) == 0 {
		return false, nil
	}
	var hashes []string
	if errDecode := json.Unmarshal(account.RecoveryCodes, &hashes); errDecode != nil {
		return false, fmt.Errorf("writegate: decode recovery codes: %w", errDecode)
	}

	match := -1
	for i, hashed := range hashes {
		if bcrypt.CompareHashAndPassword([]byte(hashed), []byte(code)) == nil {
			match = i
			break
		}
	}
	if match < 0 {
		return false, nil
	}

	remaining := append(hashes[:match:match], hashes[match+1:]...)
	encoded, errMarshal := json.Marshal(remaining)
	if errMarshal != nil {
		return false, fmt.Errorf("writegate: encode recovery codes: %w", errMarshal)
	}
	res := g.db.WithContext(ctx).Model(&models.Account{}).
		Where("id = ? AND recovery_codes = ?", account.ID, string(account.RecoveryCodes)).
		Updates(map[string]any{
			"recovery_codes": encoded,
			"updated_at":     g.nowFn().UTC(),
		})
	if res.Error != nil {
		return false, fmt.Errorf("writegate: consume recovery code: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		// Lost the race to a concurrent consumption.
		return false, nil
	}
	account.RecoveryCodes = encoded
	return true, nil
}

// issueGrant signs a grant token and stores its row. The token carries a
// random grant number so two grants issued in the same second still differ;
// revocation checks resolve the row by the token itself.
func (g *Gate) issueGrant(ctx context.Context, accountID uint64, now time.Time) (string, time.Time, error) {
	var nonce [8]byte
	if _, errRead := rand.Read(nonce[:]); errRead != nil {
		return "", time.Time{}, fmt.Errorf("writegate: grant nonce: %w", errRead)
	}
	grantNo := binary.BigEndian.Uint64(nonce[:])

	expiresAt := now.Add(grantDuration)
	token, errSign := security.SignGrantToken(g.jwtSecret, accountID, grantNo, now, expiresAt)
	if errSign != nil {
		return "", time.Time{}, fmt.Errorf("writegate: sign grant: %w", errSign)
	}

	grant := &models.WriteGrant{
		AccountID: accountID,
		Token:     token,
		IssuedAt:  now,
		ExpiresAt: expiresAt,
	}
	if errCreate := g.db.WithContext(ctx).Create(grant).Error; errCreate != nil {
		return "", time.Time{}, fmt.Errorf("writegate: create grant: %w", errCreate)
	}
	return token, expiresAt, nil
}

// Check validates a grant token: signature, expiry, and the stored row's
// revocation state. Returns the account ID the grant belongs to.
func (g *Gate) Check(ctx context.Context, token string) (uint64, error) {
	if token == "" {
		return 0, ErrWriteAccessRequired
	}
	claims, errParse := security.ParseGrantToken(g.jwtSecret, token)
	if errParse != nil {
		return 0, ErrWriteAccessRequired
	}

	var grant models.WriteGrant
	errFind := g.db.WithContext(ctx).Where("token = ?", token).First(&grant).Error
	if errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return 0, ErrWriteAccessRequired
		}
		return 0, fmt.Errorf("writegate: load grant: %w", errFind)
	}
	now := g.nowFn().UTC()
	if grant.AccountID != claims.AccountID || grant.RevokedAt != nil || !now.Before(grant.ExpiresAt) {
		return 0, ErrWriteAccessRequired
	}
	return grant.AccountID, nil
}

// Revoke invalidates all of an account's active grants, for example after a
// credential change.
func (g *Gate) Revoke(ctx context.Context, accountID uint64) (int64, error) {
	now := g.nowFn().UTC()
	res := g.db.WithContext(ctx).Model(&models.WriteGrant{}).
		Where("account_id = ? AND revoked_at IS NULL AND expires_at > ?", accountID, now).
		Update("revoked_at", now)
	if res.Error != nil {
		return 0, fmt.Errorf("writegate: revoke grants: %w", res.Error)
	}
	return res.RowsAffected, nil
}
