package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestConfigDefaults(t *testing.T) {
	clearEnvVars()
	defer clearEnvVars()

	cfg, err := Load()
	assert.NoError(t, err)
	assert.NotNil(t, cfg)

	assert.Equal(t, 8080, cfg.Service.Port)
	assert.Equal(t, 9090, cfg.Service.MetricsPort)
	assert.Equal(t, 30*time.Second, cfg.Service.ShutdownTimeout)
	assert.Equal(t, "info", cfg.Service.LogLevel)

	assert.Equal(t, "./data", cfg.DataDir)
	assert.Equal(t, "minilm", cfg.Embedding.DefaultModel)
	assert.Equal(t, 10000, cfg.LRU.CacheCapacity)

	assert.Equal(t, 5, cfg.CircuitBreaker.FailureThreshold)
	assert.Equal(t, 60*time.Second, cfg.CircuitBreaker.FailureWindow)
	assert.Equal(t, 30*time.Second, cfg.CircuitBreaker.RecoveryTimeout)

	assert.Equal(t, 3, cfg.Retry.MaxAttempts)
	assert.Equal(t, 2.0, cfg.Retry.Multiplier)

	assert.Equal(t, 0.95, cfg.SemanticCache.SimilarityThreshold)
	assert.Equal(t, 0.7, cfg.Search.Alpha)
}

func TestConfigEnvironmentOverrides(t *testing.T) {
	clearEnvVars()
	defer clearEnvVars()

	_ = os.Setenv("KB_PORT", "9999")
	_ = os.Setenv("KB_LOG_LEVEL", "debug")
	_ = os.Setenv("KB_DATA_DIR", "/var/lib/kb")

	cfg, err := Load()
	assert.NoError(t, err)
	assert.Equal(t, 9999, cfg.Service.Port)
	assert.Equal(t, "debug", cfg.Service.LogLevel)
	assert.Equal(t, "/var/lib/kb", cfg.DataDir)
}

func TestConfigValidation_RejectsOutOfRangePort(t *testing.T) {
	clearEnvVars()
	defer clearEnvVars()
	_ = os.Setenv("KB_PORT", "99999")

	_, err := Load()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "invalid service port")
}

func TestConfigValidation_RejectsOutOfRangeAlpha(t *testing.T) {
	cfg := &Config{
		Service:       ServiceConfig{Port: 8080},
		DataDir:       "./data",
		LRU:           LRUConfig{CacheCapacity: 1},
		Retry:         RetryConfig{MaxAttempts: 1},
		SemanticCache: SemanticCacheConfig{SimilarityThreshold: 0.5},
		Search:        SearchConfig{Alpha: 1.5},
	}
	err := cfg.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "alpha")
}

func clearEnvVars() {
	for _, v := range []string{"KB_PORT", "KB_LOG_LEVEL", "KB_DATA_DIR", "KB_EMBEDDING_MODEL", "KB_SEARCH_ALPHA"} {
		_ = os.Unsetenv(v)
	}
}
