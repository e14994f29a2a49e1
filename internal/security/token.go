package security

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SessionClaims carries the authenticated account inside a session JWT.
type SessionClaims struct {
	AccountID uint64 `json:"account_id"`
	jwt.RegisteredClaims
}

// GrantClaims carries a write-access grant inside a signed token.
type GrantClaims struct {
	AccountID uint64 `json:"account_id"`
	GrantID   uint64 `json:"grant_id"`
	jwt.RegisteredClaims
}

// ErrInvalidToken indicates a token failed signature or claim validation.
var ErrInvalidToken = errors.New("security: invalid token")

// SignSessionToken issues a session JWT for the account.
func SignSessionToken(secret string, accountID uint64, expiry time.Duration, now time.Time) (string, error) {
	if secret == "" {
		return "", fmt.Errorf("security: empty jwt secret")
	}
	claims := SessionClaims{
		AccountID: accountID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "session",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(expiry)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, errSign := token.SignedString([]byte(secret))
	if errSign != nil {
		return "", fmt.Errorf("security: sign session token: %w", errSign)
	}
	return signed, nil
}

// ParseSessionToken validates a session JWT and returns its claims.
func ParseSessionToken(secret, raw string) (*SessionClaims, error) {
	claims := &SessionClaims{}
	token, errParse := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if errParse != nil || !token.Valid || claims.AccountID == 0 {
		return nil, ErrInvalidToken
	}
	if claims.Subject != "session" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// SignGrantToken issues a write-access grant token for the account.
func SignGrantToken(secret string, accountID, grantID uint64, issuedAt, expiresAt time.Time) (string, error) {
	if secret == "" {
		return "", fmt.Errorf("security: empty jwt secret")
	}
	claims := GrantClaims{
		AccountID: accountID,
		GrantID:   grantID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "write-grant",
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, errSign := token.SignedString([]byte(secret))
	if errSign != nil {
		return "", fmt.Errorf("security: sign grant token: %w", errSign)
	}
	return signed, nil
}

// ParseGrantToken validates a write-access grant token and returns its claims.
// Expired tokens fail here before any store lookup happens.
func ParseGrantToken(secret, raw string) (*GrantClaims, error) {
	claims := &GrantClaims{}
	token, errParse := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if errParse != nil || !token.Valid || claims.AccountID == 0 {
		return nil, ErrInvalidToken
	}
	if claims.Subject != "write-grant" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
