package embedder

import (
	"log/slog"

	"github.com/soundprediction/embedkit/pkg/alert"
	"github.com/soundprediction/embedkit/pkg/config"
	"github.com/soundprediction/embedkit/pkg/retry"
)

type options struct {
	capability Capability
	logger     *slog.Logger
	metrics    *Metrics
	sleep      retry.SleepFunc
	rand       func() float64
	observer   retry.Observer

	breaker *config.CircuitBreakerConfig
	alerter alert.Alerter
	cache   VectorCache
	usage   UsageRecorder
}

// Option customizes a Client.
type Option func(*options)

// WithCapability replaces the provider backend built from Config.
func WithCapability(c Capability) Option {
	return func(o *options) { o.capability = c }
}

// WithLogger sets the logger for progress and retry messages.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithMetrics sets the metrics sink. The default records on the global otel
// meter provider.
func WithMetrics(m *Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithSleep replaces the wait used for both retry backoff and batch pacing.
func WithSleep(fn retry.SleepFunc) Option {
	return func(o *options) { o.sleep = fn }
}

// WithRand replaces the jitter source of the backoff policy.
func WithRand(fn func() float64) Option {
	return func(o *options) { o.rand = fn }
}

// WithRetryObserver registers a callback invoked before every backoff wait.
func WithRetryObserver(obs retry.Observer) Option {
	return func(o *options) { o.observer = obs }
}

// WithCircuitBreaker wraps the backend in a CircuitBreakerCapability.
func WithCircuitBreaker(cfg config.CircuitBreakerConfig, alerter alert.Alerter) Option {
	return func(o *options) {
		o.breaker = &cfg
		o.alerter = alerter
	}
}

// WithCache serves repeated texts from cache.
func WithCache(cache VectorCache) Option {
	return func(o *options) { o.cache = cache }
}

// WithUsageTracker records token usage of every remote call.
func WithUsageTracker(tracker UsageRecorder) Option {
	return func(o *options) { o.usage = tracker }
}
