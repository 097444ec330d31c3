package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/smartroute/smart-route/internal/cache"
	"github.com/smartroute/smart-route/internal/loadmon"
	"github.com/smartroute/smart-route/internal/pkg/errors"
	"github.com/smartroute/smart-route/internal/pkg/security"
	"github.com/smartroute/smart-route/internal/routing"
)

const maxRequestBody = 1 << 20 // 1MB

// handleRoute serves POST /v1/route.
func (s *Server) handleRoute(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		errors.WriteErrorWithStatus(w, http.StatusMethodNotAllowed,
			errors.InvalidRequestError("method not allowed"))
		return
	}

	var req routing.Request
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	if err := dec.Decode(&req); err != nil {
		errors.WriteError(w, errors.InvalidRequestError("invalid JSON body"))
		return
	}

	if err := security.ValidateQuery(req.Text); err != nil {
		errors.WriteError(w, errors.InvalidRequestError(err.Error()))
		return
	}

	resp, err := s.engine.Route(r.Context(), req)
	if err != nil {
		s.log.WithError(err).Warn("routing failed",
			"query", security.SanitizeForLog(req.Text))
		errors.WriteError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// statsResponse is the body of GET /v1/stats.
type statsResponse struct {
	Version string           `json:"version"`
	Cache   cache.Stats      `json:"cache"`
	Load    loadmon.Snapshot `json:"load"`
	Uptime  string           `json:"uptime"`
}

// handleStats serves GET /v1/stats.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		errors.WriteErrorWithStatus(w, http.StatusMethodNotAllowed,
			errors.InvalidRequestError("method not allowed"))
		return
	}

	resp := statsResponse{
		Version: s.cfg.Version,
		Uptime:  s.metrics.Uptime().Round(time.Second).String(),
	}
	if s.cache != nil {
		resp.Cache = s.cache.Stats()
	}
	if s.load != nil {
		resp.Load = s.load.Current()
	}

	writeJSON(w, http.StatusOK, resp)
}

// handleHealthz reports liveness.
func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleReadyz reports readiness. It flips to 503 as soon as shutdown
// starts so load balancers stop sending traffic.
func (s *Server) handleReadyz(w http.ResponseWriter, _ *http.Request) {
	if !s.ready.Load() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "draining"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
