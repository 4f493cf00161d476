package embedder

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/soundprediction/embedkit/pkg/retry"
)

const instrumentationName = "github.com/soundprediction/embedkit/pkg/embedder"

// Metric names.
const (
	MetricDuration  = "embedkit.embedding.generation_duration_seconds"
	MetricBatchSize = "embedkit.embedding.batch_size"
	MetricErrors    = "embedkit.embedding.errors_total"
	MetricRetries   = "embedkit.embedding.retries_total"
)

// Metrics holds all embedding-related metrics.
type Metrics struct {
	meter     metric.Meter
	logger    *slog.Logger
	duration  metric.Float64Histogram
	batchSize metric.Int64Histogram
	errors    metric.Int64Counter
	retries   metric.Int64Counter
}

// NewMetrics creates Metrics on the global meter provider.
func NewMetrics(logger *slog.Logger) *Metrics {
	return NewMetricsWithMeter(otel.Meter(instrumentationName), logger)
}

// NewMetricsWithMeter creates Metrics on meter.
func NewMetricsWithMeter(meter metric.Meter, logger *slog.Logger) *Metrics {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Metrics{meter: meter, logger: logger}
	m.init()
	return m
}

func (m *Metrics) init() {
	var err error

	m.duration, err = m.meter.Float64Histogram(
		MetricDuration,
		metric.WithDescription("Duration of embedding calls in seconds, labeled by model and operation (embed_many, embed_one, embed_many_direct, embed_one_direct)"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0, 60.0, 300.0),
	)
	if err != nil {
		m.logger.Warn("failed to create duration histogram", "error", err)
	}

	m.batchSize, err = m.meter.Int64Histogram(
		MetricBatchSize,
		metric.WithDescription("Number of texts per embedding call."),
		metric.WithUnit("{text}"),
		metric.WithExplicitBucketBoundaries(1, 2, 5, 10, 25, 50, 100, 250, 512, 1024, 4096),
	)
	if err != nil {
		m.logger.Warn("failed to create batch size histogram", "error", err)
	}

	m.errors, err = m.meter.Int64Counter(
		MetricErrors,
		metric.WithDescription("Total failed embedding calls by model and operation."),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		m.logger.Warn("failed to create errors counter", "error", err)
	}

	m.retries, err = m.meter.Int64Counter(
		MetricRetries,
		metric.WithDescription("Total retried batch attempts by model and failure class (rate_limited, transient)."),
		metric.WithUnit("{retry}"),
	)
	if err != nil {
		m.logger.Warn("failed to create retries counter", "error", err)
	}
}

// RecordGeneration records the outcome of one embedding call.
func (m *Metrics) RecordGeneration(ctx context.Context, model, operation string, duration time.Duration, batchSize int, err error) {
	attrs := metric.WithAttributes(
		attribute.String("model", model),
		attribute.String("operation", operation),
	)

	if m.duration != nil {
		m.duration.Record(ctx, duration.Seconds(), attrs)
	}
	if batchSize > 0 && m.batchSize != nil {
		m.batchSize.Record(ctx, int64(batchSize), attrs)
	}
	if err != nil && m.errors != nil {
		m.errors.Add(ctx, 1, attrs)
	}
}

// RecordRetry counts one retried attempt.
func (m *Metrics) RecordRetry(ctx context.Context, model string, class retry.Class) {
	if m.retries == nil {
		return
	}
	m.retries.Add(ctx, 1, metric.WithAttributes(
		attribute.String("model", model),
		attribute.String("class", class.String()),
	))
}
