package telemetry

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/soundprediction/embedkit/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParquetHandler_PersistsErrorsOnly(t *testing.T) {
	dir := t.TempDir()
	h, err := NewParquetHandler(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelDebug}), dir)
	require.NoError(t, err)

	logger := slog.New(h).With("component", "embedder")
	ctx := context.WithValue(context.Background(), types.ContextKeyRequestID, "req-1")

	logger.InfoContext(ctx, "processed batch")
	logger.WarnContext(ctx, "rate limit hit")
	logger.ErrorContext(ctx, "batch failed", "batch", 3)

	require.NoError(t, h.Flush())

	records, err := ReadErrorLogs(dir)
	require.NoError(t, err)
	require.Len(t, records, 1)

	rec := records[0]
	assert.Equal(t, "batch failed", rec.Message)
	assert.Equal(t, "ERROR", rec.Level)
	assert.Equal(t, "req-1", rec.RequestID)
	assert.NotEmpty(t, rec.ID)
	assert.Contains(t, rec.Attributes, `"component":"embedder"`)
	assert.Contains(t, rec.Attributes, `"batch":3`)
}

func TestParquetHandler_DerivedHandlersShareBuffer(t *testing.T) {
	dir := t.TempDir()
	h, err := NewParquetHandler(slog.NewTextHandler(io.Discard, nil), dir)
	require.NoError(t, err)

	slog.New(h).Error("first")
	slog.New(h.WithAttrs([]slog.Attr{slog.String("k", "v")})).Error("second")
	slog.New(h.WithGroup("g")).Error("third")

	require.NoError(t, h.Flush())

	records, err := ReadErrorLogs(dir)
	require.NoError(t, err)
	assert.Len(t, records, 3)
}

func TestParquetHandler_FlushEmpty(t *testing.T) {
	dir := t.TempDir()
	h, err := NewParquetHandler(slog.NewTextHandler(io.Discard, nil), dir)
	require.NoError(t, err)
	require.NoError(t, h.Flush())

	records, err := ReadErrorLogs(dir)
	require.NoError(t, err)
	assert.Empty(t, records)
}
