package embedkit

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	vp      = viper.New()
	rootCmd = &cobra.Command{
		Use:   "embedkit",
		Short: "embedkit: batched text embeddings",
		Long: `embedkit turns text into embedding vectors through OpenAI or an
OpenAI-compatible service, or a local EmbedEverything model.

Large inputs are split into batches, throttled and failed batches are retried
with exponential backoff, and vectors always come back in input order.`,
		SilenceUsage: true,
	}
)

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()

	// Global flags
	flags.StringVar(&cfgFile, "config", "", "config file (default is $HOME/.embedkit.yaml)")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
	flags.String("log-format", "text", "log format (text, json)")

	// Embedding flags
	flags.String("provider", "openai", "embedding provider (openai, embedeverything)")
	flags.String("model", "text-embedding-3-small", "embedding model")
	flags.String("api-key", "", "API key (default $OPENAI_API_KEY)")
	flags.String("base-url", "", "base URL of an OpenAI-compatible service")
	flags.Int("dimensions", 0, "requested embedding dimensions (0 keeps the model default)")
	flags.Int("batch-size", 512, "maximum texts per request")
	flags.Int("max-concurrency", 1, "batches in flight at once")
	flags.Duration("batch-interval", 500*time.Millisecond, "pause between batch dispatches")
	flags.Int("max-retries", 5, "attempts per batch")
	flags.Bool("normalize", false, "scale vectors to unit length")

	// Cache and telemetry flags
	flags.Bool("cache", false, "cache vectors on disk")
	flags.String("cache-path", "", "cache directory")
	flags.Bool("telemetry", false, "record token usage and errors to parquet")
	flags.String("telemetry-parquet-path", "", "telemetry directory")

	bindings := map[string]string{
		"log.level":                 "log-level",
		"log.format":                "log-format",
		"embedding.provider":        "provider",
		"embedding.model":           "model",
		"embedding.api_key":         "api-key",
		"embedding.base_url":        "base-url",
		"embedding.dimensions":      "dimensions",
		"embedding.batch_size":      "batch-size",
		"embedding.max_concurrency": "max-concurrency",
		"embedding.batch_interval":  "batch-interval",
		"embedding.normalize":       "normalize",
		"retry.max_retries":         "max-retries",
		"cache.enabled":             "cache",
		"cache.path":                "cache-path",
		"telemetry.enabled":         "telemetry",
		"telemetry.parquet_path":    "telemetry-parquet-path",
	}
	for key, flag := range bindings {
		cobra.CheckErr(vp.BindPFlag(key, flags.Lookup(flag)))
	}
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		vp.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		// Search config in home directory with name ".embedkit" (without extension).
		vp.AddConfigPath(home)
		vp.AddConfigPath(".")
		vp.SetConfigType("yaml")
		vp.SetConfigName(".embedkit")
	}

	if err := vp.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", vp.ConfigFileUsed())
	}
}
