package security

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// TokenBytes is the entropy of every emailed token (256 bits).
const TokenBytes = 32

// NewToken returns a hex encoded random value of TokenBytes bytes.
func NewToken() (string, error) {
	var buf [TokenBytes]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return hex.EncodeToString(buf[:]), nil
}

// DigestToken is the one-way hash under which reset tokens are stored.
func DigestToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
