package telemetry

import (
	"context"
	"encoding/json"
	"log/slog"
	"runtime"
	"time"

	"github.com/google/uuid"
	"github.com/soundprediction/embedkit/pkg/types"
)

const errorLogPrefix = "execution_errors"

// LogRecord represents a single log entry for Parquet storage
type LogRecord struct {
	ID            string    `parquet:"id"`
	Timestamp     time.Time `parquet:"timestamp"`
	Level         string    `parquet:"level"`
	Message       string    `parquet:"message"`
	RequestID     string    `parquet:"request_id"`
	UserID        string    `parquet:"user_id"`
	SessionID     string    `parquet:"session_id"`
	RequestSource string    `parquet:"request_source"`
	SourceFile    string    `parquet:"source_file"`
	LineNumber    int       `parquet:"line_number"`
	Attributes    string    `parquet:"attributes"` // JSON string
}

// ParquetHandler is a slog.Handler that passes every record to next and
// additionally persists error-level records to Parquet files. Handlers
// derived with WithAttrs or WithGroup share one buffer.
type ParquetHandler struct {
	next  slog.Handler
	sink  *sink[LogRecord]
	attrs []slog.Attr
}

// NewParquetHandler creates a new ParquetHandler writing into outputDir.
func NewParquetHandler(next slog.Handler, outputDir string) (*ParquetHandler, error) {
	s, err := newSink[LogRecord](outputDir, errorLogPrefix, defaultBatchSize)
	if err != nil {
		return nil, err
	}
	return &ParquetHandler{next: next, sink: s}, nil
}

// Enabled implements slog.Handler
func (h *ParquetHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

// Handle implements slog.Handler
func (h *ParquetHandler) Handle(ctx context.Context, r slog.Record) error {
	if err := h.next.Handle(ctx, r); err != nil {
		return err
	}
	if r.Level < slog.LevelError {
		return nil
	}

	attrs := make(map[string]any, len(h.attrs)+r.NumAttrs())
	for _, a := range h.attrs {
		attrs[a.Key] = a.Value.Any()
	}
	r.Attrs(func(a slog.Attr) bool {
		attrs[a.Key] = a.Value.Any()
		return true
	})
	attrsJSON, err := json.Marshal(attrs)
	if err != nil {
		attrsJSON = []byte("{}")
	}

	record := LogRecord{
		ID:            uuid.New().String(),
		Timestamp:     r.Time.UTC(),
		Level:         r.Level.String(),
		Message:       r.Message,
		RequestID:     contextString(ctx, types.ContextKeyRequestID),
		UserID:        contextString(ctx, types.ContextKeyUserID),
		SessionID:     contextString(ctx, types.ContextKeySessionID),
		RequestSource: contextString(ctx, types.ContextKeyRequestSource),
		Attributes:    string(attrsJSON),
	}
	if r.PC != 0 {
		f, _ := runtime.CallersFrames([]uintptr{r.PC}).Next()
		record.SourceFile = f.File
		record.LineNumber = f.Line
	}

	return h.sink.add(record)
}

// WithAttrs implements slog.Handler
func (h *ParquetHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	merged = append(merged, attrs...)
	return &ParquetHandler{next: h.next.WithAttrs(attrs), sink: h.sink, attrs: merged}
}

// WithGroup implements slog.Handler
func (h *ParquetHandler) WithGroup(name string) slog.Handler {
	return &ParquetHandler{next: h.next.WithGroup(name), sink: h.sink, attrs: h.attrs}
}

// Flush writes any buffered records.
func (h *ParquetHandler) Flush() error {
	return h.sink.flush()
}

// ReadErrorLogs loads every error log file written into dir.
func ReadErrorLogs(dir string) ([]LogRecord, error) {
	return readDir[LogRecord](dir, errorLogPrefix)
}

func contextString(ctx context.Context, key types.ContextKey) string {
	if v, ok := ctx.Value(key).(string); ok {
		return v
	}
	return ""
}
