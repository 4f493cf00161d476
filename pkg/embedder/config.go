package embedder

import (
	"fmt"
	"time"

	"github.com/soundprediction/embedkit/pkg/retry"
	"github.com/soundprediction/embedkit/pkg/types"
)

// Providers.
const (
	ProviderOpenAI          = "openai"
	ProviderEmbedEverything = "embedeverything"
)

// Defaults.
const (
	DefaultModel         = "text-embedding-3-small"
	DefaultBatchSize     = 512
	DefaultBatchInterval = 500 * time.Millisecond
)

// Config holds configuration for an embedding client.
type Config struct {
	// Provider selects the backend used when no capability is injected.
	// Empty means openai.
	Provider string
	// APIKey is required for remote providers.
	APIKey  string
	Model   string
	BaseURL string
	// Dimensions overrides the model's native size where supported.
	Dimensions int
	// BatchSize is the maximum number of texts per remote call (default: 512)
	BatchSize int
	// MaxConcurrency > 1 sends up to that many batches at once. Zero or one
	// sends batches strictly one after another.
	MaxConcurrency int
	// BatchInterval separates successive batch dispatches (default: 500ms)
	BatchInterval time.Duration
	// Normalize scales every returned vector to unit length.
	Normalize bool
	Retry     retry.Config
}

// DefaultConfig returns the default client configuration. APIKey is left
// empty.
func DefaultConfig() Config {
	return Config{
		Provider:       ProviderOpenAI,
		Model:          DefaultModel,
		BatchSize:      DefaultBatchSize,
		MaxConcurrency: 1,
		BatchInterval:  DefaultBatchInterval,
		Retry:          retry.DefaultConfig(),
	}
}

// IsRemote reports whether the configured provider needs a credential.
func (c Config) IsRemote() bool {
	return c.Provider != ProviderEmbedEverything
}

// Validate reports out-of-range settings.
func (c Config) Validate() error {
	switch c.Provider {
	case "", ProviderOpenAI, ProviderEmbedEverything:
	default:
		return fmt.Errorf("%w: unknown provider %q", types.ErrInvalidConfiguration, c.Provider)
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("%w: batch size must be positive, got %d", types.ErrInvalidConfiguration, c.BatchSize)
	}
	if c.MaxConcurrency < 0 {
		return fmt.Errorf("%w: max concurrency cannot be negative, got %d", types.ErrInvalidConfiguration, c.MaxConcurrency)
	}
	if c.BatchInterval < 0 {
		return fmt.Errorf("%w: batch interval cannot be negative, got %v", types.ErrInvalidConfiguration, c.BatchInterval)
	}
	if c.Dimensions < 0 {
		return fmt.Errorf("%w: dimensions cannot be negative, got %d", types.ErrInvalidConfiguration, c.Dimensions)
	}
	return c.Retry.Validate()
}

var knownDimensions = map[string]int{
	"text-embedding-ada-002": 1536,
	"text-embedding-3-small": 1536,
	"text-embedding-3-large": 3072,
}
