package security

import (
	"strings"
	"testing"
	"time"
)

func TestPasswordRoundTrip(t *testing.T) {
	hash, errHash := HashPassword("correct-horse")
	if errHash != nil {
		t.Fatalf("hash: %v", errHash)
	}
	if !VerifyPassword(hash, "correct-horse") {
		t.Fatalf("correct password rejected")
	}
	if VerifyPassword(hash, "wrong-horse") {
		t.Fatalf("wrong password accepted")
	}
}

func TestAPIKeyFormatAndHash(t *testing.T) {
	key, errGen := GenerateAPIKey()
	if errGen != nil {
		t.Fatalf("generate: %v", errGen)
	}
	if !strings.HasPrefix(key, "tk-") {
		t.Fatalf("key %q missing tk- prefix", key)
	}
	other, errGen := GenerateAPIKey()
	if errGen != nil {
		t.Fatalf("generate second: %v", errGen)
	}
	if key == other {
		t.Fatalf("two generated keys collided")
	}
	if HashAPIKey(key) == HashAPIKey(other) {
		t.Fatalf("distinct keys hashed identically")
	}
	if HashAPIKey(key) != HashAPIKey(key) {
		t.Fatalf("hash is not deterministic")
	}
}

func TestSessionTokenRoundTrip(t *testing.T) {
	now := time.Now()
	token, errSign := SignSessionToken("secret", 42, time.Hour, now)
	if errSign != nil {
		t.Fatalf("sign: %v", errSign)
	}

	claims, errParse := ParseSessionToken("secret", token)
	if errParse != nil {
		t.Fatalf("parse: %v", errParse)
	}
	if claims.AccountID != 42 {
		t.Fatalf("account = %d, want 42", claims.AccountID)
	}

	if _, errWrong := ParseSessionToken("other-secret", token); errWrong == nil {
		t.Fatalf("wrong secret accepted")
	}
	if _, errGarbage := ParseSessionToken("secret", "garbage"); errGarbage == nil {
		t.Fatalf("garbage token accepted")
	}

	// A write grant is not a session.
	grant, errGrant := SignGrantToken("secret", 42, 7, now, now.Add(time.Hour))
	if errGrant != nil {
		t.Fatalf("sign grant: %v", errGrant)
	}
	if _, errCross := ParseSessionToken("secret", grant); errCross == nil {
		t.Fatalf("grant token accepted as session")
	}
}

func TestGrantTokenSubjectChecked(t *testing.T) {
	now := time.Now()
	grant, errSign := SignGrantToken("secret", 42, 7, now, now.Add(time.Hour))
	if errSign != nil {
		t.Fatalf("sign grant: %v", errSign)
	}
	claims, errParse := ParseGrantToken("secret", grant)
	if errParse != nil {
		t.Fatalf("parse grant: %v", errParse)
	}
	if claims.AccountID != 42 || claims.GrantID != 7 {
		t.Fatalf("claims = %+v, want account 42 grant 7", claims)
	}

	// A session token is not a write grant.
	session, errSession := SignSessionToken("secret", 42, time.Hour, now)
	if errSession != nil {
		t.Fatalf("sign session: %v", errSession)
	}
	if _, errCross := ParseGrantToken("secret", session); errCross == nil {
		t.Fatalf("session token accepted as grant")
	}
}
