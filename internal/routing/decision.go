// Package routing selects an inference model for each query by combining
// anomaly scoring, complexity gating, and live host load.
package routing

import (
	"github.com/smartroute/smart-route/internal/catalog"
	"github.com/smartroute/smart-route/internal/loadmon"
)

// Request is a single query to route.
type Request struct {
	// Text is the raw query text.
	Text string `json:"query"`

	// CallerID identifies the client for rate limiting and telemetry.
	// Optional.
	CallerID string `json:"caller_id,omitempty"`

	// Attributes carries optional caller metadata exported with the
	// decision event. Values under sensitive keys are masked before
	// export.
	Attributes map[string]string `json:"attributes,omitempty"`
}

// Response is the outcome of routing and invoking a query.
type Response struct {
	// ResponseText is the model's answer.
	ResponseText string `json:"response_text"`

	// SelectedModel is the model that produced the answer.
	SelectedModel string `json:"selected_model_name"`

	// Profile is the catalog profile the model belongs to.
	Profile string `json:"profile"`

	// AnomalyScore is the query's anomaly score in [0, 1].
	AnomalyScore float64 `json:"anomaly_score"`

	// Complexity is the query's complexity estimate.
	Complexity float64 `json:"complexity"`

	// Risk is the combined score used for selection: anomaly score plus
	// the weighted load contribution.
	Risk float64 `json:"risk"`

	// CacheHit reports whether the answer came from the response cache.
	CacheHit bool `json:"cache_hit"`

	// Retried reports that the first model failed and a retry answered.
	Retried bool `json:"retried,omitempty"`
}

// Decision is the internal record of one selection, kept for telemetry.
type Decision struct {
	QueryID      string
	Profile      catalog.Profile
	AnomalyScore float64
	Complexity   float64
	Risk         float64
	Load         loadmon.Snapshot

	// FailedModel is set when the originally selected model failed and a
	// retry produced the answer.
	FailedModel string
}
