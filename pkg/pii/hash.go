// Package pii hashes identity fields before they leave the process.
package pii

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Hash normalizes value (trim, lowercase) and returns its hex SHA-256 digest.
// It reports false for blank input, which must never be sent as a hash.
func Hash(value string) (string, bool) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	if normalized == "" {
		return "", false
	}
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:]), true
}

// HashAll wraps Hash in the one-element list form used by conversions APIs.
// It returns nil when value is blank.
func HashAll(value string) []string {
	digest, ok := Hash(value)
	if !ok {
		return nil
	}
	return []string{digest}
}
