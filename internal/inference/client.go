// Package inference defines the collaborator interface to the backend
// models and an HTTP client speaking an ollama-style generate API.
package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	apperrors "github.com/smartroute/smart-route/internal/pkg/errors"
)

// Invoker dispatches a query to a named backend model. Implementations are
// black boxes with unspecified latency.
type Invoker interface {
	Invoke(ctx context.Context, model, prompt string) (string, error)
}

// Config configures the HTTP client.
type Config struct {
	// BaseURL is the inference backend base URL.
	BaseURL string

	// Timeout is the per-request timeout.
	Timeout time.Duration

	// MaxIdleConns controls the keep-alive connection pool.
	MaxIdleConns int
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		BaseURL:      "http://localhost:11434",
		Timeout:      120 * time.Second,
		MaxIdleConns: 32,
	}
}

// HTTPClient invokes models over an ollama-style HTTP API.
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewHTTPClient creates an inference client.
func NewHTTPClient(cfg Config) *HTTPClient {
	if cfg.BaseURL == "" {
		cfg = DefaultConfig()
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}

	return &HTTPClient{
		baseURL: cfg.BaseURL,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:    cfg.MaxIdleConns,
				IdleConnTimeout: 90 * time.Second,
			},
		},
	}
}

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type generateResponse struct {
	Response string `json:"response"`
	Error    string `json:"error,omitempty"`
}

// Invoke sends the prompt to the named model and returns its response
// text. Connection failures surface as INFERENCE_UNAVAILABLE and deadline
// overruns as INFERENCE_TIMEOUT.
func (c *HTTPClient) Invoke(ctx context.Context, model, prompt string) (string, error) {
	body, err := json.Marshal(generateRequest{
		Model:  model,
		Prompt: prompt,
		Stream: false,
	})
	if err != nil {
		return "", apperrors.InternalError("encoding inference request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", apperrors.InternalError("building inference request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if isTimeout(err) {
			return "", apperrors.InferenceTimeoutError(model, err)
		}
		return "", apperrors.InferenceUnavailableError(model, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		if isTimeout(err) {
			return "", apperrors.InferenceTimeoutError(model, err)
		}
		return "", apperrors.InferenceUnavailableError(model, err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", apperrors.InferenceUnavailableError(model,
			fmt.Errorf("backend returned %d: %s", resp.StatusCode, truncate(string(data), 200)))
	}

	var gen generateResponse
	if err := json.Unmarshal(data, &gen); err != nil {
		return "", apperrors.InferenceUnavailableError(model,
			fmt.Errorf("decoding backend response: %w", err))
	}
	if gen.Error != "" {
		return "", apperrors.InferenceUnavailableError(model, errors.New(gen.Error))
	}

	return gen.Response, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
