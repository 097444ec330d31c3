// Package security provides input validation and sensitive data masking
// for query handling.
package security

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Query limits.
const (
	MinQueryLength = 1
	MaxQueryLength = 10000

	// MaxLogLength caps query text reproduced in logs and telemetry.
	MaxLogLength = 200
)

// ValidationError represents a field validation error.
type ValidationError struct {
	Field      string
	Constraint string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Constraint)
}

// ValidateQuery checks query text against length and encoding limits.
func ValidateQuery(query string) error {
	trimmed := strings.TrimSpace(query)
	if len(trimmed) < MinQueryLength {
		return &ValidationError{Field: "query", Constraint: "must not be empty"}
	}
	if len(query) > MaxQueryLength {
		return &ValidationError{
			Field:      "query",
			Constraint: fmt.Sprintf("must be at most %d bytes", MaxQueryLength),
		}
	}
	if !utf8.ValidString(query) {
		return &ValidationError{Field: "query", Constraint: "must be valid UTF-8"}
	}
	return nil
}

// SanitizeForLog makes a string safe to log: control characters are
// stripped and the result is truncated to MaxLogLength.
func SanitizeForLog(s string) string {
	return SanitizeForLogWithLength(s, MaxLogLength)
}

// SanitizeForLogWithLength is SanitizeForLog with a custom length cap.
func SanitizeForLogWithLength(s string, maxLen int) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r == '\n' || r == '\t' {
			b.WriteRune(' ')
			continue
		}
		if unicode.IsControl(r) {
			continue
		}
		b.WriteRune(r)
	}

	out := b.String()
	if len(out) > maxLen {
		cut := maxLen
		for cut > 0 && !utf8.RuneStart(out[cut]) {
			cut--
		}
		out = out[:cut] + "..."
	}
	return out
}

// MaskSensitiveMap returns a copy of m with values of sensitive keys
// replaced. Telemetry attachments pass through here before export.
func MaskSensitiveMap(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		if isSensitiveKey(k) {
			out[k] = "***"
			continue
		}
		out[k] = v
	}
	return out
}

func isSensitiveKey(key string) bool {
	lower := strings.ToLower(key)
	for _, s := range []string{"password", "secret", "token", "key", "authorization", "credential"} {
		if strings.Contains(lower, s) {
			return true
		}
	}
	return false
}
