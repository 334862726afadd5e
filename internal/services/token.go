package services

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// tokenBytes is the entropy of a public order token. 18 bytes encode to
// 24 URL-safe characters.
const tokenBytes = 18

// NewToken generates a random URL-safe order token.
func NewToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate order token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
