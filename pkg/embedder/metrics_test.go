package embedder

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/soundprediction/embedkit/pkg/retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func newTestMetrics(t *testing.T) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	return NewMetricsWithMeter(mp.Meter(instrumentationName), discardLogger()), reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	out := make(map[string]metricdata.Metrics)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

func sumInt64(t *testing.T, m metricdata.Metrics) int64 {
	t.Helper()
	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok, "metric %s is not an int64 sum", m.Name)
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	return total
}

func TestMetrics_RecordGeneration(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordGeneration(ctx, "text-embedding-3-small", opEmbedMany, 100*time.Millisecond, 10, nil)
	m.RecordGeneration(ctx, "text-embedding-3-small", opEmbedOne, 50*time.Millisecond, 1, nil)
	m.RecordGeneration(ctx, "text-embedding-3-small", opEmbedMany, 25*time.Millisecond, 5, errors.New("generation failed"))

	metrics := collect(t, reader)

	hist, ok := metrics[MetricDuration].Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	var count uint64
	for _, dp := range hist.DataPoints {
		count += dp.Count
	}
	assert.Equal(t, uint64(3), count)

	_, ok = metrics[MetricBatchSize].Data.(metricdata.Histogram[int64])
	assert.True(t, ok)

	assert.Equal(t, int64(1), sumInt64(t, metrics[MetricErrors]))
}

func TestMetrics_RecordRetry(t *testing.T) {
	m, reader := newTestMetrics(t)
	m.RecordRetry(context.Background(), "m", retry.ClassRateLimited)
	m.RecordRetry(context.Background(), "m", retry.ClassTransient)

	assert.Equal(t, int64(2), sumInt64(t, collect(t, reader)[MetricRetries]))
}

func TestClient_RecordsMetrics(t *testing.T) {
	m, reader := newTestMetrics(t)
	fake := &fakeCapability{
		fail: func(call int, _ []string) error {
			if call == 1 {
				return errors.New("connection reset")
			}
			return nil
		},
	}
	c := newTestClient(t, testConfig(), fake, &recordingSleeper{}, WithMetrics(m))

	_, err := c.EmbedMany(context.Background(), numberedTexts(3))
	require.NoError(t, err)

	metrics := collect(t, reader)
	assert.Equal(t, int64(1), sumInt64(t, metrics[MetricRetries]))
	if errs, ok := metrics[MetricErrors]; ok {
		assert.Zero(t, sumInt64(t, errs))
	}
}
