// Package server provides the HTTP server that wires all services together.
package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/smartroute/smart-route/internal/cache"
	"github.com/smartroute/smart-route/internal/loadmon"
	"github.com/smartroute/smart-route/internal/metrics"
	"github.com/smartroute/smart-route/internal/pkg/logger"
	"github.com/smartroute/smart-route/internal/pkg/middleware"
	"github.com/smartroute/smart-route/internal/routing"
)

// Config configures the server.
type Config struct {
	// Host is the address to bind to.
	Host string

	// Port is the HTTP port.
	Port int

	// Version is the application version.
	Version string

	// ReadTimeout is the HTTP read timeout.
	ReadTimeout time.Duration

	// WriteTimeout is the HTTP write timeout.
	WriteTimeout time.Duration

	// ShutdownTimeout is the graceful shutdown timeout.
	ShutdownTimeout time.Duration

	// RateLimit is requests per second per client. Zero disables limiting.
	RateLimit int
}

// DefaultConfig returns sensible server defaults.
func DefaultConfig() Config {
	return Config{
		Host:            "0.0.0.0",
		Port:            8080,
		Version:         "dev",
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    120 * time.Second,
		ShutdownTimeout: 30 * time.Second,
	}
}

// Deps carries the wired services the server exposes. InFlight is
// optional; the server creates its own counter when nil.
type Deps struct {
	Engine   *routing.Engine
	Cache    *cache.Cache
	Load     *loadmon.Monitor
	Metrics  *metrics.Metrics
	InFlight *middleware.InFlight
	Logger   *logger.Logger
}

// Server is the HTTP front end of the routing engine.
type Server struct {
	cfg        Config
	log        *logger.Logger
	httpServer *http.Server

	engine  *routing.Engine
	cache   *cache.Cache
	load    *loadmon.Monitor
	metrics *metrics.Metrics

	inflight *middleware.InFlight
	limiter  *middleware.RateLimiter

	ready   atomic.Bool
	mu      sync.Mutex
	started bool
}

// New creates a new server with all dependencies.
func New(cfg Config, deps Deps) *Server {
	if cfg.Port == 0 {
		cfg = DefaultConfig()
	}

	inflight := deps.InFlight
	if inflight == nil {
		inflight = middleware.NewInFlight()
	}

	s := &Server{
		cfg:      cfg,
		log:      deps.Logger.WithComponent("server"),
		engine:   deps.Engine,
		cache:    deps.Cache,
		load:     deps.Load,
		metrics:  deps.Metrics,
		inflight: inflight,
	}

	if cfg.RateLimit > 0 {
		s.limiter = middleware.NewRateLimiter(middleware.RateLimiterConfig{
			RequestsPerSecond: float64(cfg.RateLimit),
			Burst:             cfg.RateLimit * 2,
			CleanupInterval:   time.Minute,
		})
	}

	return s
}

// InFlight reports the number of requests currently being served. The load
// monitor reads this.
func (s *Server) InFlight() int64 {
	return s.inflight.Count()
}

// Handler returns the full route tree. Exposed for tests.
func (s *Server) Handler() http.Handler {
	return s.setupRoutes()
}

// Start starts the HTTP server and blocks until it exits.
func (s *Server) Start() error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return fmt.Errorf("server already started")
	}
	s.started = true
	s.mu.Unlock()

	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.setupRoutes(),
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	s.ready.Store(true)
	s.log.Info("Starting HTTP server", "addr", addr, "version", s.cfg.Version)
	return s.httpServer.ListenAndServe()
}

// Stop gracefully stops the server. New requests see the readiness probe
// fail first so load balancers drain before the listener closes.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}

	s.ready.Store(false)
	s.log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(ctx, s.cfg.ShutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.log.Error("HTTP shutdown error", "error", err)
	}

	s.started = false
	s.log.Info("Server stopped")
	return nil
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() http.Handler {
	mux := http.NewServeMux()

	route := http.Handler(http.HandlerFunc(s.handleRoute))
	route = s.inflight.Middleware(route)
	if s.limiter != nil {
		route = s.limiter.Middleware(route)
	}
	mux.Handle("/v1/route", route)

	mux.HandleFunc("/v1/stats", s.handleStats)
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/readyz", s.handleReadyz)
	mux.Handle("/metrics", s.metrics.Handler())

	return mux
}
