package store

import (
	"encoding/hex"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/blake2b"
)

const sessionIDLength = 36

// NewSessionID returns a random 128-bit session identifier in canonical
// 36-character hyphenated form.
func NewSessionID() string {
	return uuid.NewString()
}

// ValidSessionID reports whether id is a canonical session identifier.
func ValidSessionID(id string) bool {
	if len(id) != sessionIDLength {
		return false
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return false
	}
	return parsed.String() == strings.ToLower(id)
}

// NewLeaseToken returns a random opaque lease token.
func NewLeaseToken() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// HashLeaseToken returns the storage key for a lease token. Raw tokens are
// never persisted.
func HashLeaseToken(token string) string {
	sum := blake2b.Sum256([]byte(strings.TrimSpace(token)))
	return hex.EncodeToString(sum[:])
}
