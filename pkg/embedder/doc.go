// Package embedder provides a batched, retrying client for remote embedding
// services.
//
// A Client splits its input into fixed-size batches, sends each batch to a
// Capability through the retry executor, and splices the vectors back so that
// result[i] is always the embedding of texts[i]. A batch that exhausts its
// retry budget fails the whole call; partial results are never returned.
//
// # Supported Providers
//
//   - OpenAI and OpenAI-compatible services (go-openai), e.g.
//     text-embedding-3-small, text-embedding-3-large, text-embedding-ada-002
//   - EmbedEverything: local models, no credential required
//
// # Usage
//
//	cfg := embedder.DefaultConfig()
//	cfg.APIKey = os.Getenv("OPENAI_API_KEY")
//
//	client, err := embedder.New(cfg)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	vectors, err := client.EmbedMany(ctx, texts)
//
// # Retrying and direct calls
//
// EmbedMany and EmbedOne retry rate limit and transient failures with
// exponential backoff. EmbedManyDirect and EmbedOneDirect make exactly one
// remote call with no batching and no retry, and fail on the first error.
//
// # Decorators
//
// Capabilities can be wrapped with a circuit breaker (CircuitBreakerCapability),
// a persistent cache (CachedCapability) and token usage tracking
// (UsageTrackingCapability).
package embedder
