// Package config handles configuration loading and validation.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	// Server configuration
	Host string `envconfig:"ROUTE_HOST" yaml:"host"`
	Port int    `envconfig:"ROUTE_PORT" yaml:"port"`

	// Feature extraction configuration
	Extractor ExtractorConfig `yaml:"extractor"`

	// Anomaly detection configuration
	Anomaly AnomalyConfig `yaml:"anomaly"`

	// Model catalog
	Models []ProfileConfig `yaml:"models"`

	// Routing configuration
	Routing RoutingConfig `yaml:"routing"`

	// Cache configuration
	Cache CacheConfig `yaml:"cache"`

	// Load monitor configuration
	Load LoadConfig `yaml:"load"`

	// Inference backend configuration
	Inference InferenceConfig `yaml:"inference"`

	// Telemetry configuration
	Telemetry TelemetryConfig `yaml:"telemetry"`

	// Historical corpus configuration
	Corpus CorpusConfig `yaml:"corpus"`

	// Logging configuration
	Log LogConfig `yaml:"log"`

	// Security configuration
	Security SecurityConfig `yaml:"security"`
}

// ExtractorConfig holds feature extraction settings.
type ExtractorConfig struct {
	MaxFeatures int      `envconfig:"ROUTE_MAX_FEATURES" yaml:"max_features"`
	StopWords   []string `yaml:"stop_words"`
}

// AnomalyConfig holds anomaly detector settings.
type AnomalyConfig struct {
	Contamination float64 `envconfig:"ROUTE_CONTAMINATION" yaml:"contamination"`
	NEstimators   int     `envconfig:"ROUTE_N_ESTIMATORS" yaml:"n_estimators"`
	SubsampleSize int     `envconfig:"ROUTE_SUBSAMPLE_SIZE" yaml:"subsample_size"`
	Seed          int64   `envconfig:"ROUTE_ANOMALY_SEED" yaml:"seed"`
}

// ProfileConfig describes one model profile in the catalog.
type ProfileConfig struct {
	Name              string  `yaml:"name"`
	Model             string  `yaml:"model"`
	Threshold         float64 `yaml:"threshold"`
	MinComplexity     float64 `yaml:"min_complexity"`
	ResourceIntensity int     `yaml:"resource_intensity"`
}

// RoutingConfig holds routing engine settings.
type RoutingConfig struct {
	// LoadWeight is the λ weight applied to normalized in-flight load
	// when combining it with the anomaly score.
	LoadWeight float64 `envconfig:"ROUTE_LOAD_WEIGHT" yaml:"load_weight"`

	// InFlightNorm is the in-flight request count treated as full load.
	InFlightNorm int `envconfig:"ROUTE_INFLIGHT_NORM" yaml:"inflight_norm"`

	// RetryLowerCost enables one retry against the next cheaper eligible
	// profile when the inference backend fails, or against the same
	// profile when it is already the cheapest.
	RetryLowerCost bool `envconfig:"ROUTE_RETRY_LOWER_COST" yaml:"retry_lower_cost"`
}

// CacheConfig holds response cache settings.
type CacheConfig struct {
	Type     string        `envconfig:"ROUTE_CACHE_TYPE" yaml:"type"` // memory or redis
	TTL      time.Duration `envconfig:"ROUTE_CACHE_TTL" yaml:"ttl"`
	RedisURL string        `envconfig:"ROUTE_REDIS_URL" yaml:"redis_url"`

	// SweepInterval is how often expired entries are removed. 0 disables
	// the background sweep; expiry is still checked lazily on read.
	SweepInterval time.Duration `envconfig:"ROUTE_CACHE_SWEEP" yaml:"sweep_interval"`
}

// LoadConfig holds load monitor settings.
type LoadConfig struct {
	Interval time.Duration `envconfig:"ROUTE_LOAD_INTERVAL" yaml:"interval"`
}

// InferenceConfig holds inference backend settings.
type InferenceConfig struct {
	URL     string        `envconfig:"ROUTE_INFERENCE_URL" yaml:"url"`
	Timeout time.Duration `envconfig:"ROUTE_INFERENCE_TIMEOUT" yaml:"timeout"`
}

// TelemetryConfig holds telemetry export settings.
type TelemetryConfig struct {
	Type         string `envconfig:"ROUTE_TELEMETRY_TYPE" yaml:"type"` // none, log, kafka
	KafkaBrokers string `envconfig:"ROUTE_KAFKA_BROKERS" yaml:"kafka_brokers"`
	KafkaTopic   string `envconfig:"ROUTE_KAFKA_TOPIC" yaml:"kafka_topic"`
}

// CorpusConfig holds historical corpus settings.
type CorpusConfig struct {
	// Dir points at a directory of corpus files, one query per line.
	// The file name (minus extension) is used as the modality label.
	Dir string `envconfig:"ROUTE_CORPUS_DIR" yaml:"dir"`

	// MinBatch is the minimum number of historical queries required
	// before the detector is fitted.
	MinBatch int `envconfig:"ROUTE_CORPUS_MIN_BATCH" yaml:"min_batch"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `envconfig:"ROUTE_LOG_LEVEL" yaml:"level"`
	Format string `envconfig:"ROUTE_LOG_FORMAT" yaml:"format"`
}

// SecurityConfig holds security settings.
type SecurityConfig struct {
	RateLimit int `envconfig:"ROUTE_RATE_LIMIT" yaml:"rate_limit"` // 0 = disabled
}

// Load loads configuration from environment variables and optional config file.
func Load(configPath string) (*Config, error) {
	cfg := &Config{}

	setDefaults(cfg)

	if configPath != "" {
		if err := loadFromFile(cfg, configPath); err != nil {
			return nil, fmt.Errorf("loading config file: %w", err)
		}
	}

	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("processing env config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// LoadFromEnv loads configuration from environment variables only.
func LoadFromEnv() (*Config, error) {
	return Load("")
}

func loadFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	return yaml.Unmarshal(data, cfg)
}

func setDefaults(cfg *Config) {
	cfg.Host = "0.0.0.0"
	cfg.Port = 8080

	cfg.Extractor = ExtractorConfig{
		MaxFeatures: 50,
	}

	cfg.Anomaly = AnomalyConfig{
		Contamination: 0.1,
		NEstimators:   100,
		SubsampleSize: 256,
	}

	cfg.Models = DefaultProfiles()

	cfg.Routing = RoutingConfig{
		LoadWeight:     0.5,
		InFlightNorm:   100,
		RetryLowerCost: true,
	}

	cfg.Cache = CacheConfig{
		Type:          "memory",
		TTL:           24 * time.Hour,
		RedisURL:      "redis://localhost:6379",
		SweepInterval: 5 * time.Minute,
	}

	cfg.Load = LoadConfig{
		Interval: 60 * time.Second,
	}

	cfg.Inference = InferenceConfig{
		URL:     "http://localhost:11434",
		Timeout: 120 * time.Second,
	}

	cfg.Telemetry = TelemetryConfig{
		Type:       "log",
		KafkaTopic: "route.decisions",
	}

	cfg.Corpus = CorpusConfig{
		MinBatch: 10,
	}

	cfg.Log = LogConfig{
		Level:  "info",
		Format: "text",
	}
}

// DefaultProfiles returns the default model catalog.
func DefaultProfiles() []ProfileConfig {
	return []ProfileConfig{
		{Name: "simple", Model: "mistral", Threshold: 0.3, MinComplexity: 0, ResourceIntensity: 1},
		{Name: "technical", Model: "llama2", Threshold: 0.5, MinComplexity: 10, ResourceIntensity: 3},
		{Name: "analytical", Model: "codeqwen", Threshold: 0.6, MinComplexity: 15, ResourceIntensity: 5},
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}

	if c.Extractor.MaxFeatures < 1 {
		return fmt.Errorf("max_features must be positive, got %d", c.Extractor.MaxFeatures)
	}

	if c.Anomaly.Contamination <= 0 || c.Anomaly.Contamination >= 0.5 {
		return fmt.Errorf("contamination must be in (0, 0.5), got %f", c.Anomaly.Contamination)
	}
	if c.Anomaly.NEstimators < 1 {
		return fmt.Errorf("n_estimators must be positive, got %d", c.Anomaly.NEstimators)
	}
	if c.Anomaly.SubsampleSize < 2 {
		return fmt.Errorf("subsample_size must be at least 2, got %d", c.Anomaly.SubsampleSize)
	}

	if len(c.Models) == 0 {
		return fmt.Errorf("at least one model profile is required")
	}

	if c.Routing.LoadWeight < 0 || c.Routing.LoadWeight > 1 {
		return fmt.Errorf("load_weight must be in [0, 1], got %f", c.Routing.LoadWeight)
	}
	if c.Routing.InFlightNorm < 1 {
		return fmt.Errorf("inflight_norm must be positive, got %d", c.Routing.InFlightNorm)
	}

	switch c.Cache.Type {
	case "memory", "redis":
	default:
		return fmt.Errorf("invalid cache type: %s", c.Cache.Type)
	}
	if c.Cache.TTL <= 0 {
		return fmt.Errorf("cache ttl must be positive, got %s", c.Cache.TTL)
	}

	if c.Load.Interval <= 0 {
		return fmt.Errorf("load interval must be positive, got %s", c.Load.Interval)
	}

	switch c.Telemetry.Type {
	case "none", "log", "kafka":
	default:
		return fmt.Errorf("invalid telemetry type: %s", c.Telemetry.Type)
	}
	if c.Telemetry.Type == "kafka" && c.Telemetry.KafkaBrokers == "" {
		return fmt.Errorf("kafka telemetry requires brokers")
	}

	return nil
}
