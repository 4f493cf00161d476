package telemetry

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/soundprediction/embedkit/pkg/types"
)

const usagePrefix = "token_usage"

// UsageRecord represents the token usage of one embedding request.
type UsageRecord struct {
	ID            string    `parquet:"id"`
	Timestamp     time.Time `parquet:"timestamp"`
	Model         string    `parquet:"model"`
	Inputs        int       `parquet:"inputs"`
	PromptTokens  int       `parquet:"prompt_tokens"`
	TotalTokens   int       `parquet:"total_tokens"`
	RequestID     string    `parquet:"request_id"`
	UserID        string    `parquet:"user_id"`
	SessionID     string    `parquet:"session_id"`
	RequestSource string    `parquet:"request_source"`
}

// UsageTracker handles persistence of token usage stats to Parquet files
type UsageTracker struct {
	sink *sink[UsageRecord]
}

// NewUsageTracker creates a new usage tracker writing to outputDir. Rows are
// written in files of batchSize records; zero selects the default of 100.
func NewUsageTracker(outputDir string, batchSize int) (*UsageTracker, error) {
	s, err := newSink[UsageRecord](outputDir, usagePrefix, batchSize)
	if err != nil {
		return nil, err
	}
	return &UsageTracker{sink: s}, nil
}

// AddUsage records usage for a request of inputs texts against model.
func (t *UsageTracker) AddUsage(ctx context.Context, usage types.Usage, model string, inputs int) error {
	if model == "" {
		model = "unknown"
	}
	return t.sink.add(UsageRecord{
		ID:            uuid.New().String(),
		Timestamp:     time.Now().UTC(),
		Model:         model,
		Inputs:        inputs,
		PromptTokens:  usage.PromptTokens,
		TotalTokens:   usage.TotalTokens,
		RequestID:     contextString(ctx, types.ContextKeyRequestID),
		UserID:        contextString(ctx, types.ContextKeyUserID),
		SessionID:     contextString(ctx, types.ContextKeySessionID),
		RequestSource: contextString(ctx, types.ContextKeyRequestSource),
	})
}

// Flush writes any buffered records.
func (t *UsageTracker) Flush() error {
	return t.sink.flush()
}

// Close flushes the tracker.
func (t *UsageTracker) Close() error {
	return t.Flush()
}

// ReadUsage loads every usage file written into dir.
func ReadUsage(dir string) ([]UsageRecord, error) {
	return readDir[UsageRecord](dir, usagePrefix)
}
