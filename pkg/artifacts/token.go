package artifacts

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

const (
	// tokenBytes is the entropy drawn per token; 16 bytes encode to the
	// 32-character hex form used on disk and in download URLs.
	tokenBytes = 16

	// TokenLength is the exact length of a well-formed token.
	TokenLength = 2 * tokenBytes
)

// NewToken returns a fresh download token: 128 bits from crypto/rand,
// hex-encoded. The token doubles as the storage key and the retrieval
// capability, so nothing weaker than the platform CSPRNG is used.
func NewToken() string {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		panic(fmt.Sprintf("artifacts: random source unavailable: %v", err))
	}
	return hex.EncodeToString(b)
}

// ValidateToken rejects anything that is not exactly the shape NewToken
// produces. It runs before any path is built from the token, so inputs
// like "../etc/passwd" never reach the filesystem.
func ValidateToken(token string) error {
	if len(token) != TokenLength {
		return fmt.Errorf("%w: want %d characters, got %d", ErrInvalidToken, TokenLength, len(token))
	}
	for i := 0; i < len(token); i++ {
		c := token[i]
		if (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') {
			continue
		}
		return fmt.Errorf("%w: character %q at position %d", ErrInvalidToken, c, i)
	}
	return nil
}
