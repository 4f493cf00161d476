package embedkit

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/soundprediction/embedkit/pkg/alert"
	"github.com/soundprediction/embedkit/pkg/cache"
	"github.com/soundprediction/embedkit/pkg/config"
	"github.com/soundprediction/embedkit/pkg/embedder"
	"github.com/soundprediction/embedkit/pkg/logger"
	"github.com/soundprediction/embedkit/pkg/retry"
	"github.com/soundprediction/embedkit/pkg/telemetry"
)

// loadConfig loads and validates the effective configuration. Flags given
// on the command line win over OPENAI_API_KEY and OPENAI_BASE_URL.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(vp)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	flags := cmd.Flags()
	if flags.Changed("api-key") {
		cfg.Embedding.APIKey = vp.GetString("embedding.api_key")
	}
	if flags.Changed("base-url") {
		cfg.Embedding.BaseURL = vp.GetString("embedding.base_url")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// runtime holds everything a command builds from the configuration.
type runtime struct {
	logger  *slog.Logger
	client  *embedder.Client
	closers []func() error
}

func (r *runtime) Close() error {
	var errs []error
	for i := len(r.closers) - 1; i >= 0; i-- {
		errs = append(errs, r.closers[i]())
	}
	return errors.Join(errs...)
}

// newRuntime builds the logger and embedding client described by cfg.
func newRuntime(cfg *config.Config) (*runtime, error) {
	rt := &runtime{}

	level := logger.ParseLevel(cfg.Log.Level)
	log := logger.New(os.Stderr, level, cfg.Log.Format)

	var opts []embedder.Option
	if cfg.Telemetry.Enabled {
		handler, err := telemetry.NewParquetHandler(log.Handler(), cfg.Telemetry.ParquetPath)
		if err != nil {
			return nil, err
		}
		log = slog.New(handler)
		rt.closers = append(rt.closers, handler.Flush)

		tracker, err := telemetry.NewUsageTracker(cfg.Telemetry.ParquetPath, 0)
		if err != nil {
			return nil, err
		}
		opts = append(opts, embedder.WithUsageTracker(tracker))
		log.Info("Telemetry enabled", "path", cfg.Telemetry.ParquetPath)
	}
	rt.logger = log
	opts = append(opts, embedder.WithLogger(log))

	var store *cache.Store
	if cfg.Cache.Enabled {
		var err error
		store, err = cache.Open(cache.Options{Path: cfg.Cache.Path, TTL: cfg.Cache.TTL})
		if err != nil {
			_ = rt.Close()
			return nil, err
		}
		opts = append(opts, embedder.WithCache(store))
		log.Debug("Embedding cache enabled", "path", cfg.Cache.Path)
	}

	if cfg.CircuitBreaker.Enabled {
		opts = append(opts, embedder.WithCircuitBreaker(cfg.CircuitBreaker, alert.New(cfg.Alert, log)))
	}

	client, err := embedder.New(clientConfig(cfg), opts...)
	if err != nil {
		if store != nil {
			_ = store.Close()
		}
		_ = rt.Close()
		return nil, err
	}
	rt.client = client
	rt.closers = append(rt.closers, client.Close)
	return rt, nil
}

// clientConfig maps the file/env configuration onto the client's.
func clientConfig(cfg *config.Config) embedder.Config {
	return embedder.Config{
		Provider:       cfg.Embedding.Provider,
		APIKey:         cfg.Embedding.APIKey,
		Model:          cfg.Embedding.Model,
		BaseURL:        cfg.Embedding.BaseURL,
		Dimensions:     cfg.Embedding.Dimensions,
		BatchSize:      cfg.Embedding.BatchSize,
		MaxConcurrency: cfg.Embedding.MaxConcurrency,
		BatchInterval:  cfg.Embedding.BatchInterval,
		Normalize:      cfg.Embedding.Normalize,
		Retry: retry.Config{
			MaxRetries: cfg.Retry.MaxRetries,
			BaseDelay:  cfg.Retry.BaseDelay,
			MaxDelay:   cfg.Retry.MaxDelay,
		},
	}
}
