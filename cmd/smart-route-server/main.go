// Package main provides the smart-route server binary.
// The server scores incoming queries and routes them to the right model.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/smartroute/smart-route/internal/anomaly"
	"github.com/smartroute/smart-route/internal/cache"
	"github.com/smartroute/smart-route/internal/catalog"
	"github.com/smartroute/smart-route/internal/config"
	"github.com/smartroute/smart-route/internal/corpus"
	"github.com/smartroute/smart-route/internal/inference"
	"github.com/smartroute/smart-route/internal/loadmon"
	"github.com/smartroute/smart-route/internal/metrics"
	"github.com/smartroute/smart-route/internal/pkg/logger"
	"github.com/smartroute/smart-route/internal/pkg/middleware"
	"github.com/smartroute/smart-route/internal/routing"
	"github.com/smartroute/smart-route/internal/server"
	"github.com/smartroute/smart-route/internal/telemetry"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const historyCapacity = 10000

func main() {
	rootCmd := &cobra.Command{
		Use:   "smart-route-server",
		Short: "Smart Route - anomaly-aware query router for LLM backends",
		Long: `Smart Route scores each incoming query for anomaly and complexity,
then routes it to the cheapest model profile whose risk threshold covers it.

The server exposes:
  - POST /v1/route   route a query and return the model's answer
  - GET  /v1/stats   cache and load statistics
  - GET  /metrics    Prometheus metrics
  - GET  /healthz    liveness probe
  - GET  /readyz     readiness probe

Examples:
  smart-route-server                          # Start with defaults
  smart-route-server -c config.yaml           # Custom config file
  smart-route-server --port 9090              # Custom HTTP port
  smart-route-server --corpus ./corpus        # Fit from corpus at startup`,
		RunE:         runServer,
		SilenceUsage: true,
	}

	rootCmd.Flags().StringP("config", "c", "", "config file path")
	rootCmd.Flags().BoolP("verbose", "v", false, "verbose logging")
	rootCmd.Flags().Int("port", 8080, "HTTP server port")
	rootCmd.Flags().String("host", "0.0.0.0", "server host")
	rootCmd.Flags().String("inference", "", "inference backend URL (overrides config)")
	rootCmd.Flags().String("corpus", "", "corpus directory for the startup fit (overrides config)")
	rootCmd.Flags().Duration("refit", time.Hour, "interval between refits from routed query history (0 disables)")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("smart-route-server %s\n", version)
			fmt.Printf("  commit: %s\n", commit)
			fmt.Printf("  built:  %s\n", date)
		},
	})

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runServer(cmd *cobra.Command, _ []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	verbose, _ := cmd.Flags().GetBool("verbose")
	port, _ := cmd.Flags().GetInt("port")
	host, _ := cmd.Flags().GetString("host")
	inferenceURL, _ := cmd.Flags().GetString("inference")
	corpusDir, _ := cmd.Flags().GetString("corpus")
	refitInterval, _ := cmd.Flags().GetDuration("refit")

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if cmd.Flags().Changed("port") {
		cfg.Port = port
	}
	if cmd.Flags().Changed("host") {
		cfg.Host = host
	}
	if inferenceURL != "" {
		cfg.Inference.URL = inferenceURL
	}
	if corpusDir != "" {
		cfg.Corpus.Dir = corpusDir
	}
	if verbose {
		cfg.Log.Level = "debug"
	}

	log := logger.New(cfg.Log.Level, cfg.Log.Format)
	log.Info("Starting smart-route server",
		"version", version,
		"port", cfg.Port,
		"inference_url", cfg.Inference.URL,
	)

	cat, err := catalog.FromConfig(cfg.Models)
	if err != nil {
		return fmt.Errorf("invalid model catalog: %w", err)
	}
	log.Info("Loaded model catalog", "profiles", len(cat.Profiles()))
	if !cat.HasZeroFloor() {
		log.Warn("Catalog has no zero-floor profile; trivial queries will fail routing")
	}

	// Response cache.
	store, err := newCacheStore(cfg.Cache, log)
	if err != nil {
		return fmt.Errorf("failed to create cache store: %w", err)
	}
	responseCache := cache.New(store, cfg.Cache.TTL, log)
	defer func() { _ = responseCache.Close() }()

	metricsSvc := metrics.New()

	// Telemetry sink.
	sink, err := newSink(cfg.Telemetry, metricsSvc, log)
	if err != nil {
		return fmt.Errorf("failed to create telemetry sink: %w", err)
	}
	defer func() { _ = sink.Close() }()

	// Startup fit. Without a corpus the server starts anyway and answers
	// NOT_FITTED until the first refit from routed history succeeds.
	pipeline := corpus.NewPipeline()
	history := corpus.NewHistory(historyCapacity)
	fitter := corpus.NewFitter(pipeline, corpus.FitterConfig{
		MaxFeatures: cfg.Extractor.MaxFeatures,
		StopWords:   cfg.Extractor.StopWords,
		Detector: anomaly.Config{
			NEstimators:   cfg.Anomaly.NEstimators,
			SubsampleSize: cfg.Anomaly.SubsampleSize,
			Contamination: cfg.Anomaly.Contamination,
			Seed:          cfg.Anomaly.Seed,
		},
		MinBatch: cfg.Corpus.MinBatch,
	}, log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Corpus.Dir != "" {
		if err := fitter.Fit(ctx, corpus.NewFileSource(cfg.Corpus.Dir)); err != nil {
			return fmt.Errorf("corpus fit failed: %w", err)
		}
		log.Info("Fitted from corpus", "dir", cfg.Corpus.Dir)
	} else {
		log.Warn("No corpus configured; routing unavailable until history refit")
	}

	// The HTTP middleware and the load monitor share one in-flight
	// counter.
	inflight := middleware.NewInFlight()
	monitor := loadmon.New(cfg.Load.Interval, inflight.Count, log)
	monitor.Start(ctx)
	defer monitor.Stop()

	engine := routing.NewEngine(routing.Options{
		Pipeline: pipeline,
		Catalog:  cat,
		Cache:    responseCache,
		Load:     monitor,
		Invoker: inference.NewHTTPClient(inference.Config{
			BaseURL: cfg.Inference.URL,
			Timeout: cfg.Inference.Timeout,
		}),
		Sink:    sink,
		Metrics: metricsSvc,
		History: history,
		Logger:  log,
		Config:  cfg.Routing,
	})

	srv := server.New(server.Config{
		Host:            cfg.Host,
		Port:            cfg.Port,
		Version:         version,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    cfg.Inference.Timeout + 30*time.Second,
		ShutdownTimeout: 30 * time.Second,
		RateLimit:       cfg.Security.RateLimit,
	}, server.Deps{
		Engine:   engine,
		Cache:    responseCache,
		Load:     monitor,
		Metrics:  metricsSvc,
		InFlight: inflight,
		Logger:   log,
	})

	if refitInterval > 0 {
		go refitLoop(ctx, fitter, history, refitInterval, log)
	}
	go exportLoadLoop(ctx, monitor, sink, metricsSvc, cfg.Load.Interval)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info("Received shutdown signal")
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return srv.Stop(shutdownCtx)
}

// refitLoop retrains the extractor and detector from routed query history,
// keeping the anomaly model current as traffic drifts.
func refitLoop(ctx context.Context, fitter *corpus.Fitter, history *corpus.History, interval time.Duration, log *logger.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := fitter.Fit(ctx, history); err != nil {
				log.Warn("History refit skipped", "error", err)
				continue
			}
			log.Info("Refitted from history", "queries", history.Len())
		}
	}
}

// exportLoadLoop publishes load snapshots to telemetry and keeps the load
// gauges current.
func exportLoadLoop(ctx context.Context, monitor *loadmon.Monitor, sink telemetry.Sink, m *metrics.Metrics, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			snap := monitor.Current()
			sink.RecordLoad(snap)
			m.CPUUtilization.Set(snap.CPUUtilization)
			m.MemUtilization.Set(snap.MemoryUtilization)
			m.RequestsInFlight.Set(float64(snap.InFlightRequests))
		}
	}
}

func newCacheStore(cfg config.CacheConfig, log *logger.Logger) (cache.Store, error) {
	switch cfg.Type {
	case "redis":
		log.Info("Using Redis cache", "url", cfg.RedisURL)
		return cache.NewRedisStore(cfg.RedisURL)
	case "", "memory":
		return cache.NewMemoryStore(cfg.SweepInterval), nil
	default:
		return nil, fmt.Errorf("unknown cache type: %s", cfg.Type)
	}
}

func newSink(cfg config.TelemetryConfig, m *metrics.Metrics, log *logger.Logger) (telemetry.Sink, error) {
	switch cfg.Type {
	case "kafka":
		log.Info("Using Kafka telemetry", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
		return telemetry.NewKafkaSink(telemetry.KafkaConfig{
			Brokers: telemetry.ParseBrokers(cfg.KafkaBrokers),
			Topic:   cfg.KafkaTopic,
			Errors:  m.TelemetryErrors,
		}, log)
	case "log":
		return telemetry.NewLogSink(log), nil
	case "", "none":
		return telemetry.NopSink{}, nil
	default:
		return nil, fmt.Errorf("unknown telemetry type: %s", cfg.Type)
	}
}
