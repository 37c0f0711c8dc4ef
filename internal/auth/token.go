package auth

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// tokenBytes is the entropy of a bearer token key. 20 random bytes hex-encode
// to a 40-character key.
const tokenBytes = 20

// NewTokenKey generates an opaque bearer token key.
//
// The key carries no structure — identity comes from the tokens table, not
// from anything encoded in the string. Stable keys (issued once per user,
// never rotated) must be unguessable, hence crypto/rand.
func NewTokenKey() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("auth: generating token key: %w", err)
	}
	return hex.EncodeToString(b), nil
}
