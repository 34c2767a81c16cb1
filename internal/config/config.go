// Package config loads and validates the knowledge-base server's
// structured configuration, following the same viper load order the
// rest of the corpus uses: set defaults, bind env vars, read a config
// file if present, unmarshal, validate.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config is the complete configuration for the knowledge-base server.
type Config struct {
	Service        ServiceConfig        `mapstructure:"service"`
	DataDir        string               `mapstructure:"data_dir"`
	Embedding      EmbeddingConfig      `mapstructure:"embedding"`
	LRU            LRUConfig            `mapstructure:"lru"`
	CircuitBreaker CircuitBreakerConfig `mapstructure:"circuit_breaker"`
	Retry          RetryConfig          `mapstructure:"retry"`
	SemanticCache  SemanticCacheConfig  `mapstructure:"semantic_cache"`
	Search         SearchConfig         `mapstructure:"search"`
	Surface        SurfaceConfig        `mapstructure:"surface"`
}

// ServiceConfig contains process-level settings.
type ServiceConfig struct {
	Port            int           `mapstructure:"port"`
	MetricsPort     int           `mapstructure:"metrics_port"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	LogLevel        string        `mapstructure:"log_level"`
}

// EmbeddingConfig names the default embedding model for newly created
// projects. The model family is closed at project-creation time.
type EmbeddingConfig struct {
	DefaultModel string `mapstructure:"default_model"`
}

// LRUConfig sizes the per-project embedding cache.
type LRUConfig struct {
	CacheCapacity int `mapstructure:"cache_capacity"`
}

// CircuitBreakerConfig mirrors pkg/resilience.Config.
type CircuitBreakerConfig struct {
	FailureThreshold int           `mapstructure:"failure_threshold"`
	FailureWindow    time.Duration `mapstructure:"failure_window"`
	RecoveryTimeout  time.Duration `mapstructure:"recovery_timeout"`
}

// RetryConfig mirrors pkg/retry.Config (minus the RetriableKind
// predicate, which isn't representable as config).
type RetryConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	InitialWait time.Duration `mapstructure:"initial_wait"`
	Multiplier  float64       `mapstructure:"multiplier"`
	MaxWait     time.Duration `mapstructure:"max_wait"`
}

// SemanticCacheConfig mirrors pkg/semanticcache.Config.
type SemanticCacheConfig struct {
	SimilarityThreshold float64       `mapstructure:"similarity_threshold"`
	TTLSeconds          int           `mapstructure:"ttl_seconds"`
	MaxEntries          int           `mapstructure:"max_entries"`
	CleanupInterval     time.Duration `mapstructure:"cleanup_interval"`
}

// SearchConfig holds the default hybrid-fusion weight.
type SearchConfig struct {
	Alpha float64 `mapstructure:"alpha"`
}

// SurfaceConfig covers options the core doesn't act on directly but
// honors on behalf of the external HTTP surface.
type SurfaceConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	MaxRequestSize int64    `mapstructure:"max_request_size"`
}

// Load reads configuration from a "knowledgebeast" config file (if
// present) under ./configs, /etc/knowledgebeast, or the current
// directory, layered over defaults and environment variable overrides,
// then validates the result.
func Load() (*Config, error) {
	viper.SetConfigName("knowledgebeast")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath("/etc/knowledgebeast")
	viper.AddConfigPath(".")

	setDefaults()
	bindEnvVars()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func setDefaults() {
	viper.SetDefault("service.port", 8080)
	viper.SetDefault("service.metrics_port", 9090)
	viper.SetDefault("service.shutdown_timeout", "30s")
	viper.SetDefault("service.log_level", "info")

	viper.SetDefault("data_dir", "./data")

	viper.SetDefault("embedding.default_model", "minilm")

	viper.SetDefault("lru.cache_capacity", 10000)

	viper.SetDefault("circuit_breaker.failure_threshold", 5)
	viper.SetDefault("circuit_breaker.failure_window", "60s")
	viper.SetDefault("circuit_breaker.recovery_timeout", "30s")

	viper.SetDefault("retry.max_attempts", 3)
	viper.SetDefault("retry.initial_wait", "100ms")
	viper.SetDefault("retry.multiplier", 2.0)
	viper.SetDefault("retry.max_wait", "10s")

	viper.SetDefault("semantic_cache.similarity_threshold", 0.95)
	viper.SetDefault("semantic_cache.ttl_seconds", 86400)
	viper.SetDefault("semantic_cache.max_entries", 1000)
	viper.SetDefault("semantic_cache.cleanup_interval", "5m")

	viper.SetDefault("search.alpha", 0.7)

	viper.SetDefault("surface.allowed_origins", []string{"*"})
	viper.SetDefault("surface.max_request_size", 10*1024*1024)
}

func bindEnvVars() {
	viper.AutomaticEnv()

	_ = viper.BindEnv("service.port", "KB_PORT")
	_ = viper.BindEnv("service.log_level", "KB_LOG_LEVEL")
	_ = viper.BindEnv("data_dir", "KB_DATA_DIR")
	_ = viper.BindEnv("embedding.default_model", "KB_EMBEDDING_MODEL")
	_ = viper.BindEnv("search.alpha", "KB_SEARCH_ALPHA")
}

// Validate checks the loaded configuration for internally-inconsistent
// values that would otherwise surface as confusing runtime errors.
func (c *Config) Validate() error {
	if c.Service.Port <= 0 || c.Service.Port > 65535 {
		return fmt.Errorf("invalid service port: %d", c.Service.Port)
	}
	if c.Search.Alpha < 0 || c.Search.Alpha > 1 {
		return fmt.Errorf("invalid search alpha (must be in [0,1]): %f", c.Search.Alpha)
	}
	if c.SemanticCache.SimilarityThreshold < 0 || c.SemanticCache.SimilarityThreshold > 1 {
		return fmt.Errorf("invalid semantic cache similarity threshold (must be in [0,1]): %f", c.SemanticCache.SimilarityThreshold)
	}
	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("invalid retry max_attempts: %d", c.Retry.MaxAttempts)
	}
	if c.LRU.CacheCapacity < 1 {
		return fmt.Errorf("invalid lru cache_capacity: %d", c.LRU.CacheCapacity)
	}
	if c.DataDir == "" {
		return fmt.Errorf("data_dir must not be empty")
	}
	return nil
}
