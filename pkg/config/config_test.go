package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

// clearEnv unsets variables that would leak from the developer's shell.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"OPENAI_API_KEY", "OPENAI_BASE_URL", "SERVER_HOST", "SERVER_PORT", "TELEMETRY_PARQUET_PATH"} {
		t.Setenv(key, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(viper.New())
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "openai", cfg.Embedding.Provider)
	assert.Equal(t, "text-embedding-3-small", cfg.Embedding.Model)
	assert.Equal(t, 512, cfg.Embedding.BatchSize)
	assert.Equal(t, 1, cfg.Embedding.MaxConcurrency)
	assert.Equal(t, 500*time.Millisecond, cfg.Embedding.BatchInterval)
	assert.Equal(t, 5, cfg.Retry.MaxRetries)
	assert.Equal(t, time.Second, cfg.Retry.BaseDelay)
	assert.Equal(t, 60*time.Second, cfg.Retry.MaxDelay)
	assert.Empty(t, cfg.Embedding.APIKey)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_ConfigFile(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "embedkit.yaml")
	content := `
embedding:
  model: text-embedding-3-large
  batch_size: 64
  batch_interval: 2s
retry:
  max_retries: 8
circuit_breaker:
  enabled: true
  ready_to_trip_ratio: 0.5
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	v := viper.New()
	v.SetConfigFile(path)
	require.NoError(t, v.ReadInConfig())

	cfg, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, "text-embedding-3-large", cfg.Embedding.Model)
	assert.Equal(t, 64, cfg.Embedding.BatchSize)
	assert.Equal(t, 2*time.Second, cfg.Embedding.BatchInterval)
	assert.Equal(t, 8, cfg.Retry.MaxRetries)
	assert.True(t, cfg.CircuitBreaker.Enabled)
	assert.Equal(t, "openai", cfg.Embedding.Provider, "unset keys keep defaults")
}

func TestLoad_EnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("OPENAI_API_KEY", "sk-from-env")
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("EMBEDKIT_EMBEDDING_BATCH_SIZE", "32")

	cfg, err := Load(viper.New())
	require.NoError(t, err)
	assert.Equal(t, "sk-from-env", cfg.Embedding.APIKey)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 32, cfg.Embedding.BatchSize)
}

func TestLoad_InvalidPort(t *testing.T) {
	clearEnv(t)
	t.Setenv("SERVER_PORT", "eighty")

	_, err := Load(viper.New())
	assert.Error(t, err)
}

func TestLoadDotEnv(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("EMBEDKIT_TEST_DOTENV=from-file\n"), 0o644))
	t.Setenv("EMBEDKIT_TEST_DOTENV", "")
	os.Unsetenv("EMBEDKIT_TEST_DOTENV")

	require.NoError(t, LoadDotEnv(path))
	assert.Equal(t, "from-file", os.Getenv("EMBEDKIT_TEST_DOTENV"))

	assert.NoError(t, LoadDotEnv(filepath.Join(t.TempDir(), "missing.env")))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad port", func(c *Config) { c.Server.Port = 70000 }},
		{"bad format", func(c *Config) { c.Log.Format = "xml" }},
		{"cache without path", func(c *Config) { c.Cache.Enabled = true; c.Cache.Path = "" }},
		{"telemetry without path", func(c *Config) { c.Telemetry.Enabled = true; c.Telemetry.ParquetPath = "" }},
		{"bad trip ratio", func(c *Config) { c.CircuitBreaker.Enabled = true; c.CircuitBreaker.ReadyToTripRatio = 2 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			cfg, err := Load(viper.New())
			require.NoError(t, err)
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestMarshal_RedactsSecrets(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(viper.New())
	require.NoError(t, err)
	cfg.Embedding.APIKey = "sk-secret"
	cfg.Alert.Password = "hunter2"

	out, err := Marshal(cfg)
	require.NoError(t, err)
	assert.False(t, strings.Contains(string(out), "sk-secret"))
	assert.False(t, strings.Contains(string(out), "hunter2"))
	assert.Equal(t, "sk-secret", cfg.Embedding.APIKey, "original untouched")

	var decoded Config
	require.NoError(t, yaml.Unmarshal(out, &decoded))
	assert.Equal(t, redacted, decoded.Embedding.APIKey)
	assert.Equal(t, cfg.Embedding.BatchInterval, decoded.Embedding.BatchInterval)
	assert.Equal(t, cfg.Embedding.Model, decoded.Embedding.Model)
}
