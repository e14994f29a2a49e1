package security

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// apiKeyPrefix marks agent API keys on the wire.
const apiKeyPrefix = "tk-"

// GenerateAPIKey returns a new random agent API key. The raw key is shown to
// the caller once; only its hash is stored.
func GenerateAPIKey() (string, error) {
	buf := make([]byte, 24)
	if _, errRead := rand.Read(buf); errRead != nil {
		return "", fmt.Errorf("security: generate api key: %w", errRead)
	}
	return apiKeyPrefix + hex.EncodeToString(buf), nil
}

// HashAPIKey returns the hex SHA-256 digest used to look up a stored key.
func HashAPIKey(raw string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(raw)))
	return hex.EncodeToString(sum[:])
}
