// Package hash provides hashing utilities.
package hash

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// SHA256 computes the SHA256 hash of data and returns it as a hex string.
func SHA256(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// SHA256String computes the SHA256 hash of a string.
func SHA256String(s string) string {
	return SHA256([]byte(s))
}

// NormalizeQuery collapses whitespace and lowercases query text so that
// trivially different spellings of the same query share a fingerprint.
func NormalizeQuery(text string) string {
	return strings.ToLower(strings.Join(strings.Fields(text), " "))
}

// Fingerprint generates a deterministic cache key from normalized query
// text and the model it was routed to.
func Fingerprint(queryText, modelName string) string {
	return SHA256String(NormalizeQuery(queryText) + ":" + modelName)
}
