package security

import (
	"strings"
	"testing"
)

func TestValidateQuery(t *testing.T) {
	tests := []struct {
		name    string
		query   string
		wantErr bool
	}{
		{"valid query", "what is the weather", false},
		{"empty", "", true},
		{"whitespace only", "   \t\n  ", true},
		{"single char", "x", false},
		{"max length", strings.Repeat("a", MaxQueryLength), false},
		{"over max length", strings.Repeat("a", MaxQueryLength+1), true},
		{"invalid utf8", "hello\xff\xfe", true},
		{"unicode", "¿qué hora es?", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateQuery(tt.query)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateQuery(%q) error = %v, wantErr %v", tt.query, err, tt.wantErr)
			}
		})
	}
}

func TestSanitizeForLog(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "hello world", "hello world"},
		{"newlines become spaces", "line1\nline2", "line1 line2"},
		{"tabs become spaces", "a\tb", "a b"},
		{"control chars stripped", "a\x00b\x1bc", "abc"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SanitizeForLog(tt.in); got != tt.want {
				t.Errorf("SanitizeForLog(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestSanitizeForLogTruncates(t *testing.T) {
	long := strings.Repeat("x", MaxLogLength*2)
	got := SanitizeForLog(long)
	if len(got) > MaxLogLength+3 {
		t.Errorf("len = %d, want at most %d", len(got), MaxLogLength+3)
	}
	if !strings.HasSuffix(got, "...") {
		t.Errorf("truncated string missing ellipsis: %q", got[len(got)-10:])
	}
}

func TestSanitizeForLogTruncatesOnRuneBoundary(t *testing.T) {
	long := strings.Repeat("é", MaxLogLength)
	got := SanitizeForLog(long)
	if !strings.HasSuffix(got, "...") {
		t.Fatal("expected truncation")
	}
	trimmed := strings.TrimSuffix(got, "...")
	for _, r := range trimmed {
		if r != 'é' {
			t.Fatalf("rune boundary broken, found %q", r)
		}
	}
}

func TestMaskSensitiveMap(t *testing.T) {
	in := map[string]string{
		"caller_id":  "client-1",
		"api_key":    "secret-value",
		"password":   "hunter2",
		"query_hash": "abc123",
	}
	out := MaskSensitiveMap(in)

	if out["api_key"] != "***" {
		t.Errorf("api_key = %q, want masked", out["api_key"])
	}
	if out["password"] != "***" {
		t.Errorf("password = %q, want masked", out["password"])
	}
	if out["caller_id"] != "client-1" {
		t.Errorf("caller_id = %q, want unmasked", out["caller_id"])
	}
	if out["query_hash"] != "abc123" {
		t.Errorf("query_hash = %q, want unmasked", out["query_hash"])
	}
}
