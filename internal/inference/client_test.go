package inference

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	apperrors "github.com/smartroute/smart-route/internal/pkg/errors"
)

func TestInvoke(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}

		var req generateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decoding request: %v", err)
		}
		if req.Model != "mistral" {
			t.Errorf("model = %s, want mistral", req.Model)
		}
		if req.Stream {
			t.Error("streaming should be disabled")
		}

		json.NewEncoder(w).Encode(generateResponse{Response: "42"})
	}))
	defer srv.Close()

	c := NewHTTPClient(Config{BaseURL: srv.URL, Timeout: 5 * time.Second})

	got, err := c.Invoke(context.Background(), "mistral", "what is the answer")
	if err != nil {
		t.Fatalf("Invoke failed: %v", err)
	}
	if got != "42" {
		t.Errorf("response = %q, want %q", got, "42")
	}
}

func TestInvokeBackendError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewHTTPClient(Config{BaseURL: srv.URL, Timeout: 5 * time.Second})

	_, err := c.Invoke(context.Background(), "mistral", "hello")
	if !apperrors.HasCode(err, apperrors.CodeInferenceUnavailable) {
		t.Errorf("expected INFERENCE_UNAVAILABLE, got %v", err)
	}
}

func TestInvokeConnectionRefused(t *testing.T) {
	// Reserve a port, then close the listener so nothing is there.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	c := NewHTTPClient(Config{BaseURL: url, Timeout: time.Second})

	_, err := c.Invoke(context.Background(), "mistral", "hello")
	if !apperrors.HasCode(err, apperrors.CodeInferenceUnavailable) {
		t.Errorf("expected INFERENCE_UNAVAILABLE, got %v", err)
	}
}

func TestInvokeTimeout(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
	}))
	defer func() {
		close(block)
		srv.Close()
	}()

	c := NewHTTPClient(Config{BaseURL: srv.URL, Timeout: time.Minute})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := c.Invoke(ctx, "mistral", "hello")
	if !apperrors.HasCode(err, apperrors.CodeInferenceTimeout) {
		t.Errorf("expected INFERENCE_TIMEOUT, got %v", err)
	}
}

func TestInvokeErrorPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(generateResponse{Error: "model exploded"})
	}))
	defer srv.Close()

	c := NewHTTPClient(Config{BaseURL: srv.URL, Timeout: 5 * time.Second})

	_, err := c.Invoke(context.Background(), "mistral", "hello")
	if !apperrors.HasCode(err, apperrors.CodeInferenceUnavailable) {
		t.Errorf("expected INFERENCE_UNAVAILABLE, got %v", err)
	}
}
