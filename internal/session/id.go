package session

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// tokenIDSize is the jti entropy in bytes.
const tokenIDSize = 24

// GenerateID returns a random URL-safe token id for the jti claim.
func GenerateID() (string, error) {
	b := make([]byte, tokenIDSize)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("session: generate token id: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
