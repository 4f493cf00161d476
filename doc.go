// Package embedkit provides a batched embedding client for Go.
//
// Embedkit turns large lists of texts into embedding vectors through OpenAI,
// any OpenAI-compatible service, or a local EmbedEverything model. Inputs are
// split into batches, throttled and failed batches are retried with
// exponential backoff, and vectors always come back in input order.
//
// # Basic Usage
//
// Create a client from the default configuration:
//
//	cfg := embedder.DefaultConfig()
//	cfg.APIKey = os.Getenv("OPENAI_API_KEY")
//
//	client, err := embedder.New(cfg)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer client.Close()
//
//	vectors, err := client.EmbedMany(ctx, texts)
//	if err != nil {
//		log.Fatal(err)
//	}
//
// vectors[i] is the embedding of texts[i].
//
// # Batching and Pacing
//
// BatchSize bounds the texts per request (default 512). With MaxConcurrency
// of one, batches are sent strictly one after another, BatchInterval apart.
// With a larger MaxConcurrency up to that many batches are in flight, their
// starts still paced by BatchInterval. A call succeeds only if every batch
// succeeds; a failed batch cancels the rest and no partial result is
// returned.
//
// # Retries
//
// Every batch is retried up to Retry.MaxRetries attempts in total. Throttling
// responses wait BaseDelay*2^attempt plus up to one second of jitter, and at
// least the service's own "try again in" hint plus a small pad. Other
// failures wait the plain exponential delay. When the budget is spent the
// error is a *retry.ExhaustedRetriesError wrapping the last failure:
//
//	var exhausted *retry.ExhaustedRetriesError
//	if errors.As(err, &exhausted) {
//		log.Printf("gave up after %d attempts: %v", exhausted.Attempts, exhausted.Err)
//	}
//
// EmbedManyDirect and EmbedOneDirect skip batching and retries entirely.
//
// # Optional Layers
//
// Options add layers around the provider:
//
//   - WithCache: serve repeated texts from a badger-backed vector cache
//   - WithCircuitBreaker: stop calling a failing service and alert on trips
//   - WithUsageTracker: record token usage to Parquet files
//   - WithMetrics: OpenTelemetry duration, batch size, error and retry metrics
//
// # Architecture
//
//   - pkg/backoff: wait computation and "try again in" parsing
//   - pkg/retry: classified retry executor
//   - pkg/batch: order-preserving split and flatten
//   - pkg/embedder: the client, providers and decorators
//   - pkg/server: OpenAI-compatible HTTP API
//   - cmd/embedkit: command line interface
package embedkit
