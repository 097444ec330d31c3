package logger

import (
	"context"
	"log/slog"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"unknown", slog.LevelInfo},
		{"", slog.LevelInfo},
	}

	for _, tt := range tests {
		if got := parseLevel(tt.input); got != tt.expected {
			t.Errorf("parseLevel(%q) = %v, want %v", tt.input, got, tt.expected)
		}
	}
}

func TestNew(t *testing.T) {
	for _, format := range []string{"json", "text"} {
		log := New("info", format)
		if log == nil || log.Logger == nil {
			t.Fatalf("New(info, %s) returned nil logger", format)
		}
	}
}

func TestWithHelpers(t *testing.T) {
	log := Default()

	if l := log.WithModel("mistral"); l == nil {
		t.Error("WithModel returned nil")
	}
	if l := log.WithComponent("routing"); l == nil {
		t.Error("WithComponent returned nil")
	}

	ctx := context.WithValue(context.Background(), "request_id", "abc123")
	if l := log.WithContext(ctx); l == nil {
		t.Error("WithContext returned nil")
	}
	if l := log.WithContext(context.Background()); l != log {
		t.Error("WithContext without request_id should return the same logger")
	}
}
