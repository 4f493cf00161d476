package embedder

import (
	"context"
	"errors"
	"log/slog"

	"github.com/soundprediction/embedkit/pkg/types"
)

// UsageRecorder persists token usage. *telemetry.UsageTracker implements it.
type UsageRecorder interface {
	AddUsage(ctx context.Context, usage types.Usage, model string, inputs int) error
	Close() error
}

// UsageTrackingCapability records the token usage of every successful call.
type UsageTrackingCapability struct {
	next    Capability
	tracker UsageRecorder
	logger  *slog.Logger
}

// NewUsageTrackingCapability wraps next with tracker.
func NewUsageTrackingCapability(next Capability, tracker UsageRecorder, logger *slog.Logger) *UsageTrackingCapability {
	if logger == nil {
		logger = slog.Default()
	}
	return &UsageTrackingCapability{next: next, tracker: tracker, logger: logger}
}

// CreateEmbeddings implements Capability.
func (c *UsageTrackingCapability) CreateEmbeddings(ctx context.Context, input []string, model string) (*Response, error) {
	resp, err := c.next.CreateEmbeddings(ctx, input, model)
	if err != nil {
		return nil, err
	}

	if resp.Usage.TotalTokens > 0 {
		usedModel := resp.Model
		if usedModel == "" {
			usedModel = model
		}
		if err := c.tracker.AddUsage(ctx, resp.Usage, usedModel, len(input)); err != nil {
			c.logger.Warn("Failed to log token usage", "error", err)
		}
	}
	return resp, nil
}

// Close flushes the tracker and closes the wrapped capability.
func (c *UsageTrackingCapability) Close() error {
	return errors.Join(c.next.Close(), c.tracker.Close())
}
