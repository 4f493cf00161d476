package embedder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/soundprediction/embedkit/pkg/batch"
	"github.com/soundprediction/embedkit/pkg/retry"
	"github.com/soundprediction/embedkit/pkg/types"
	"github.com/soundprediction/embedkit/pkg/utils"
)

// Metric operation labels.
const (
	opEmbedMany       = "embed_many"
	opEmbedOne        = "embed_one"
	opEmbedManyDirect = "embed_many_direct"
	opEmbedOneDirect  = "embed_one_direct"
)

// Client embeds texts through a Capability. It is safe for concurrent use;
// all per-call state lives on the stack of the call.
type Client struct {
	config     Config
	capability Capability
	breaker    *CircuitBreakerCapability
	executor   *retry.Executor
	logger     *slog.Logger
	metrics    *Metrics
	sleep      retry.SleepFunc
	observer   retry.Observer

	observedDims atomic.Int64
}

// New creates a Client. Remote providers require cfg.APIKey; without it New
// fails with types.ErrMissingCredential before anything is sent.
func New(cfg Config, opts ...Option) (*Client, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}

	if cfg.Provider == "" {
		cfg.Provider = ProviderOpenAI
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.IsRemote() && cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: set OPENAI_API_KEY or embedding.api_key", types.ErrMissingCredential)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := o.logger
	if logger == nil {
		logger = slog.Default()
	}
	metrics := o.metrics
	if metrics == nil {
		metrics = NewMetrics(logger)
	}
	sleep := o.sleep
	if sleep == nil {
		sleep = retry.Sleep
	}

	capability := o.capability
	if capability == nil {
		var err error
		capability, err = newCapability(cfg)
		if err != nil {
			return nil, err
		}
	}
	capability, breaker := decorate(capability, cfg, o, logger)

	c := &Client{
		config:     cfg,
		capability: capability,
		breaker:    breaker,
		logger:     logger,
		metrics:    metrics,
		sleep:      sleep,
		observer:   o.observer,
	}

	retryOpts := []retry.Option{
		retry.WithLogger(logger),
		retry.WithSleep(sleep),
		retry.WithObserver(c.onRetry),
	}
	if o.rand != nil {
		retryOpts = append(retryOpts, retry.WithRand(o.rand))
	}
	executor, err := retry.NewExecutor(cfg.Retry, retryOpts...)
	if err != nil {
		return nil, err
	}
	c.executor = executor

	return c, nil
}

func newCapability(cfg Config) (Capability, error) {
	switch cfg.Provider {
	case ProviderEmbedEverything:
		return NewEmbedEverythingCapability(cfg.Model)
	default:
		return NewOpenAICapability(OpenAIConfig{
			APIKey:     cfg.APIKey,
			BaseURL:    cfg.BaseURL,
			Dimensions: cfg.Dimensions,
		})
	}
}

// decorate wraps the backend: usage tracking outermost, then the cache so
// hits are served while the breaker is open, then the breaker.
func decorate(capability Capability, cfg Config, o options, logger *slog.Logger) (Capability, *CircuitBreakerCapability) {
	var breaker *CircuitBreakerCapability
	if o.breaker != nil && o.breaker.Enabled {
		breaker = NewCircuitBreakerCapability(capability, *o.breaker, o.alerter, logger, "embedder-"+cfg.Provider)
		capability = breaker
	}
	if o.cache != nil {
		capability = NewCachedCapability(capability, o.cache, logger)
	}
	if o.usage != nil {
		capability = NewUsageTrackingCapability(capability, o.usage, logger)
	}
	return capability, breaker
}

func (c *Client) onRetry(ev retry.Event) {
	c.metrics.RecordRetry(context.Background(), c.config.Model, ev.Class)
	if c.observer != nil {
		c.observer(ev)
	}
}

// EmbedMany embeds texts, returning one vector per text in input order.
//
// Texts are sent in batches of Config.BatchSize. Each batch is retried on
// failure; if any batch exhausts its attempts the whole call fails with an
// error wrapping *retry.ExhaustedRetriesError and no vectors are returned.
// Empty input returns an empty result without contacting the service.
func (c *Client) EmbedMany(ctx context.Context, texts []string) (vectors [][]float32, err error) {
	start := time.Now()
	defer func() {
		c.metrics.RecordGeneration(ctx, c.config.Model, opEmbedMany, time.Since(start), len(texts), err)
	}()

	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	batches, err := batch.Split(texts, c.config.BatchSize)
	if err != nil {
		return nil, err
	}

	ctx, requestID := withRequestID(ctx)
	logger := c.logger.With("request_id", requestID, "model", c.config.Model)
	logger.Debug("Embedding texts", "texts", len(texts), "batches", len(batches))

	var results [][][]float32
	if c.config.MaxConcurrency > 1 && len(batches) > 1 {
		results, err = c.embedParallel(ctx, batches, logger)
	} else {
		results, err = c.embedSequential(ctx, batches, logger)
	}
	if err != nil {
		logger.ErrorContext(ctx, "Embedding failed", "texts", len(texts), "error", err)
		return nil, err
	}

	return batch.Flatten(batches, results)
}

// embedSequential resolves each batch fully before dispatching the next,
// pausing BatchInterval between dispatches.
func (c *Client) embedSequential(ctx context.Context, batches []batch.Batch[string], logger *slog.Logger) ([][][]float32, error) {
	results := make([][][]float32, len(batches))
	for i, b := range batches {
		if i > 0 && c.config.BatchInterval > 0 {
			if err := c.sleep(ctx, c.config.BatchInterval); err != nil {
				return nil, fmt.Errorf("context cancelled between batches: %w", err)
			}
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		vectors, err := c.embedBatch(ctx, b, i, len(batches), logger)
		if err != nil {
			return nil, err
		}
		results[i] = vectors
	}
	return results, nil
}

// embedParallel keeps up to MaxConcurrency batches in flight. Dispatches
// are spaced BatchInterval apart and the first failure cancels the rest.
func (c *Client) embedParallel(ctx context.Context, batches []batch.Batch[string], logger *slog.Logger) ([][][]float32, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	limiter := rate.NewLimiter(rate.Inf, 1)
	if c.config.BatchInterval > 0 {
		limiter = rate.NewLimiter(rate.Every(c.config.BatchInterval), 1)
	}

	fns := make([]func(context.Context) ([][]float32, error), len(batches))
	for i, b := range batches {
		fns[i] = func(ctx context.Context) (vectors [][]float32, err error) {
			defer func() {
				if err != nil {
					cancel()
				}
			}()
			defer utils.RecoverAsError(&err)

			if err := limiter.Wait(ctx); err != nil {
				return nil, dispatchError(ctx, i, err)
			}
			return c.embedBatch(ctx, b, i, len(batches), logger)
		}
	}

	results, errs := utils.ExecuteWithResults(ctx, c.config.MaxConcurrency, fns...)
	if err := rootCause(errs); err != nil {
		return nil, err
	}
	return results, nil
}

// dispatchError reports a failed pacing wait. The limiter refuses up front
// when the next slot lies past the deadline; that is a deadline failure.
func dispatchError(ctx context.Context, i int, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("waiting to dispatch batch %d: %w", i+1, ctxErr)
	}
	if _, ok := ctx.Deadline(); ok {
		return fmt.Errorf("waiting to dispatch batch %d: %w: %v", i+1, context.DeadlineExceeded, err)
	}
	return fmt.Errorf("waiting to dispatch batch %d: %w", i+1, err)
}

// rootCause picks the failure that triggered cancellation over the
// cancellations it caused.
func rootCause(errs []error) error {
	var first error
	for _, err := range errs {
		if err == nil {
			continue
		}
		if !errors.Is(err, context.Canceled) {
			return err
		}
		if first == nil {
			first = err
		}
	}
	return first
}

func (c *Client) embedBatch(ctx context.Context, b batch.Batch[string], i, n int, logger *slog.Logger) ([][]float32, error) {
	vectors, err := retry.Execute(ctx, c.executor, func(ctx context.Context) ([][]float32, error) {
		return c.call(ctx, b.Items)
	})
	if err != nil {
		return nil, fmt.Errorf("batch %d/%d (offset %d): %w", i+1, n, b.Offset, err)
	}
	logger.Info("Processed batch", "batch", i+1, "total", n, "texts", b.Len())
	return vectors, nil
}

// call makes exactly one request to the capability.
func (c *Client) call(ctx context.Context, input []string) ([][]float32, error) {
	resp, err := c.capability.CreateEmbeddings(ctx, input, c.config.Model)
	if err != nil {
		return nil, err
	}
	if resp == nil || len(resp.Vectors) != len(input) {
		got := 0
		if resp != nil {
			got = len(resp.Vectors)
		}
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(input), got)
	}

	if len(resp.Vectors) > 0 && len(resp.Vectors[0]) > 0 {
		c.observedDims.Store(int64(len(resp.Vectors[0])))
	}

	if !c.config.Normalize {
		return resp.Vectors, nil
	}
	out := make([][]float32, len(resp.Vectors))
	for i, v := range resp.Vectors {
		out[i] = utils.Normalize(v)
	}
	return out, nil
}

// EmbedOne embeds a single text with the same retry behavior as EmbedMany.
func (c *Client) EmbedOne(ctx context.Context, text string) (vector []float32, err error) {
	start := time.Now()
	defer func() {
		c.metrics.RecordGeneration(ctx, c.config.Model, opEmbedOne, time.Since(start), 1, err)
	}()

	vectors, err := retry.Execute(ctx, c.executor, func(ctx context.Context) ([][]float32, error) {
		return c.call(ctx, []string{text})
	})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedManyDirect sends all texts in one request. Unlike EmbedMany it does
// not batch, retry or back off: the first error from the service is
// returned as is.
func (c *Client) EmbedManyDirect(ctx context.Context, texts []string) (vectors [][]float32, err error) {
	start := time.Now()
	defer func() {
		c.metrics.RecordGeneration(ctx, c.config.Model, opEmbedManyDirect, time.Since(start), len(texts), err)
	}()

	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	return c.call(ctx, texts)
}

// EmbedOneDirect embeds a single text in one request without retrying.
func (c *Client) EmbedOneDirect(ctx context.Context, text string) (vector []float32, err error) {
	start := time.Now()
	defer func() {
		c.metrics.RecordGeneration(ctx, c.config.Model, opEmbedOneDirect, time.Since(start), 1, err)
	}()

	vectors, err := c.call(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// BreakerState reports the circuit breaker state ("closed", "half-open",
// "open"), or "" when the client has no breaker.
func (c *Client) BreakerState() string {
	if c.breaker == nil {
		return ""
	}
	return c.breaker.State().String()
}

// Model returns the configured model name.
func (c *Client) Model() string {
	return c.config.Model
}

// Dimensions returns the embedding size: the configured override, the
// known size of the model, or the size seen in the last response. Zero
// means unknown.
func (c *Client) Dimensions() int {
	if c.config.Dimensions > 0 {
		return c.config.Dimensions
	}
	if d, ok := knownDimensions[c.config.Model]; ok {
		return d
	}
	return int(c.observedDims.Load())
}

// Close releases the capability chain.
func (c *Client) Close() error {
	return c.capability.Close()
}

func withRequestID(ctx context.Context) (context.Context, string) {
	if id, ok := ctx.Value(types.ContextKeyRequestID).(string); ok && id != "" {
		return ctx, id
	}
	id := uuid.New().String()
	return context.WithValue(ctx, types.ContextKeyRequestID, id), id
}
