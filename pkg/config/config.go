// Package config loads embedkit settings from config files, .env files and
// the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix namespaces environment overrides, e.g. EMBEDKIT_EMBEDDING_MODEL.
const EnvPrefix = "EMBEDKIT"

const redacted = "********"

// Config holds all configuration for the application
type Config struct {
	// Log configuration
	Log LogConfig `mapstructure:"log" yaml:"log"`

	// Server configuration
	Server ServerConfig `mapstructure:"server" yaml:"server"`

	// Embedding configuration
	Embedding EmbeddingConfig `mapstructure:"embedding" yaml:"embedding"`

	// Retry configuration for batched calls
	Retry RetryConfig `mapstructure:"retry" yaml:"retry"`

	// Cache configuration
	Cache CacheConfig `mapstructure:"cache" yaml:"cache"`

	// Telemetry configuration
	Telemetry TelemetryConfig `mapstructure:"telemetry" yaml:"telemetry"`

	// Alert configuration
	Alert AlertConfig `mapstructure:"alert" yaml:"alert"`

	// CircuitBreaker configuration
	CircuitBreaker CircuitBreakerConfig `mapstructure:"circuit_breaker" yaml:"circuit_breaker"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"` // text, json
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Host string `mapstructure:"host" yaml:"host"`
	Port int    `mapstructure:"port" yaml:"port"`
	Mode string `mapstructure:"mode" yaml:"mode"` // gin mode: debug, release, test
}

// EmbeddingConfig holds embedding client configuration
type EmbeddingConfig struct {
	Provider       string        `mapstructure:"provider" yaml:"provider"` // openai, embedeverything
	Model          string        `mapstructure:"model" yaml:"model"`
	APIKey         string        `mapstructure:"api_key" yaml:"api_key"`
	BaseURL        string        `mapstructure:"base_url" yaml:"base_url"`
	Dimensions     int           `mapstructure:"dimensions" yaml:"dimensions"`
	BatchSize      int           `mapstructure:"batch_size" yaml:"batch_size"`
	MaxConcurrency int           `mapstructure:"max_concurrency" yaml:"max_concurrency"`
	BatchInterval  time.Duration `mapstructure:"batch_interval" yaml:"batch_interval"`
	Normalize      bool          `mapstructure:"normalize" yaml:"normalize"`
}

// RetryConfig holds retry configuration
type RetryConfig struct {
	MaxRetries int           `mapstructure:"max_retries" yaml:"max_retries"`
	BaseDelay  time.Duration `mapstructure:"base_delay" yaml:"base_delay"`
	MaxDelay   time.Duration `mapstructure:"max_delay" yaml:"max_delay"`
}

// CacheConfig holds configuration for the persistent embedding cache
type CacheConfig struct {
	Enabled bool          `mapstructure:"enabled" yaml:"enabled"`
	Path    string        `mapstructure:"path" yaml:"path"`
	TTL     time.Duration `mapstructure:"ttl" yaml:"ttl"`
}

// TelemetryConfig holds telemetry configuration
type TelemetryConfig struct {
	Enabled     bool   `mapstructure:"enabled" yaml:"enabled"`
	ParquetPath string `mapstructure:"parquet_path" yaml:"parquet_path"`
}

// AlertConfig holds configuration for alerting
type AlertConfig struct {
	Enabled  bool     `mapstructure:"enabled" yaml:"enabled"`
	SMTPHost string   `mapstructure:"smtp_host" yaml:"smtp_host"`
	SMTPPort int      `mapstructure:"smtp_port" yaml:"smtp_port"`
	Username string   `mapstructure:"username" yaml:"username"`
	Password string   `mapstructure:"password" yaml:"password"`
	From     string   `mapstructure:"from" yaml:"from"`
	To       []string `mapstructure:"to" yaml:"to"`
}

// CircuitBreakerConfig holds configuration for circuit breaking
type CircuitBreakerConfig struct {
	Enabled          bool    `mapstructure:"enabled" yaml:"enabled"`
	MaxRequests      uint32  `mapstructure:"max_requests" yaml:"max_requests"`
	Interval         int     `mapstructure:"interval" yaml:"interval"` // in seconds
	Timeout          int     `mapstructure:"timeout" yaml:"timeout"`   // in seconds
	ReadyToTripRatio float64 `mapstructure:"ready_to_trip_ratio" yaml:"ready_to_trip_ratio"`
}

// Load loads configuration from v, a .env file in the working directory
// and environment variables. A nil v uses a fresh viper instance.
func Load(v *viper.Viper) (*Config, error) {
	if v == nil {
		v = viper.New()
	}

	if err := LoadDotEnv(); err != nil {
		return nil, err
	}

	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	config := &Config{}
	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := overrideWithEnv(config); err != nil {
		return nil, err
	}

	return config, nil
}

// LoadDotEnv exports the variables of the given .env files (default ".env")
// into the process environment. Variables already set are kept; missing
// files are ignored.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("failed to load %s: %w", f, err)
		}
	}
	return nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Log defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	// Server defaults
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")

	// Embedding defaults
	v.SetDefault("embedding.provider", "openai")
	v.SetDefault("embedding.model", "text-embedding-3-small")
	v.SetDefault("embedding.api_key", "")
	v.SetDefault("embedding.base_url", "")
	v.SetDefault("embedding.dimensions", 0)
	v.SetDefault("embedding.batch_size", 512)
	v.SetDefault("embedding.max_concurrency", 1)
	v.SetDefault("embedding.batch_interval", "500ms")
	v.SetDefault("embedding.normalize", false)

	// Retry defaults
	v.SetDefault("retry.max_retries", 5)
	v.SetDefault("retry.base_delay", "1s")
	v.SetDefault("retry.max_delay", "60s")

	// Cache defaults
	v.SetDefault("cache.enabled", false)
	v.SetDefault("cache.ttl", "0s")

	// Alert defaults
	v.SetDefault("alert.enabled", false)
	v.SetDefault("alert.smtp_port", 587)

	// Circuit breaker defaults
	v.SetDefault("circuit_breaker.enabled", false)
	v.SetDefault("circuit_breaker.max_requests", 1)
	v.SetDefault("circuit_breaker.interval", 60)
	v.SetDefault("circuit_breaker.timeout", 30)
	v.SetDefault("circuit_breaker.ready_to_trip_ratio", 0.6)

	// Telemetry defaults
	v.SetDefault("telemetry.enabled", false)
	home, err := os.UserHomeDir()
	if err == nil {
		v.SetDefault("cache.path", filepath.Join(home, ".embedkit", "cache"))
		v.SetDefault("telemetry.parquet_path", filepath.Join(home, ".embedkit", "telemetry"))
	}
}

// overrideWithEnv applies the conventional, unprefixed variables.
func overrideWithEnv(config *Config) error {
	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
		config.Embedding.APIKey = apiKey
	}
	if baseURL := os.Getenv("OPENAI_BASE_URL"); baseURL != "" {
		config.Embedding.BaseURL = baseURL
	}

	// Server settings
	if host := os.Getenv("SERVER_HOST"); host != "" {
		config.Server.Host = host
	}
	if port := os.Getenv("SERVER_PORT"); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			return fmt.Errorf("invalid SERVER_PORT %q: %w", port, err)
		}
		config.Server.Port = p
	}

	// Telemetry settings
	if path := os.Getenv("TELEMETRY_PARQUET_PATH"); path != "" {
		config.Telemetry.ParquetPath = path
	}
	return nil
}

// Validate reports settings that cannot work.
func (c *Config) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}
	if c.Cache.Enabled && c.Cache.Path == "" {
		return errors.New("cache.path is required when the cache is enabled")
	}
	if c.Telemetry.Enabled && c.Telemetry.ParquetPath == "" {
		return errors.New("telemetry.parquet_path is required when telemetry is enabled")
	}
	if c.CircuitBreaker.Enabled && (c.CircuitBreaker.ReadyToTripRatio <= 0 || c.CircuitBreaker.ReadyToTripRatio > 1) {
		return fmt.Errorf("circuit_breaker.ready_to_trip_ratio must be in (0, 1], got %v", c.CircuitBreaker.ReadyToTripRatio)
	}
	return nil
}

// Marshal renders c as YAML with secrets redacted.
func Marshal(c *Config) ([]byte, error) {
	safe := *c
	if safe.Embedding.APIKey != "" {
		safe.Embedding.APIKey = redacted
	}
	if safe.Alert.Password != "" {
		safe.Alert.Password = redacted
	}
	return yaml.Marshal(&safe)
}
