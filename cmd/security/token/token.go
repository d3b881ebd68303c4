package token

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base32"
	"encoding/hex"
	"fmt"
	"strings"
)

const (
	// Bytes is the amount of entropy behind every session token.
	Bytes = 20

	// EncodedLen is the length of an encoded token (20 bytes -> 32 base-32 chars, no padding).
	EncodedLen = 32

	// LookupIDLen is the length of a lookup id (hex SHA-256).
	LookupIDLen = 64
)

var encoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// Generate returns a new opaque session token.
func Generate() (string, error) {
	b := make([]byte, Bytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("%w: %v", ErrEntropy, err)
	}
	return strings.ToLower(encoding.EncodeToString(b)), nil
}

// MustGenerate is Generate for callers that cannot continue without entropy.
func MustGenerate() string {
	t, err := Generate()
	if err != nil {
		panic(err)
	}
	return t
}

// HashSHA256Hex returns a SHA-256 hex digest of s.
func HashSHA256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// DeriveLookupID maps a token to the id its session is stored under.
func DeriveLookupID(token string) string {
	return HashSHA256Hex(token)
}

// Valid reports whether s has the shape of a token produced by Generate.
// It does not say anything about whether a session exists for it.
func Valid(s string) bool {
	if len(s) != EncodedLen {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < 'a' || c > 'z') && (c < '2' || c > '7') {
			return false
		}
	}
	return true
}

// ShortID returns a log-safe prefix of a lookup id.
func ShortID(lookupID string) string {
	if len(lookupID) <= 8 {
		return lookupID
	}
	return lookupID[:8]
}
