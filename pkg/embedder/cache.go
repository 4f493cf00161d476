package embedder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// VectorCache stores vectors by model and text. *cache.Store implements it.
type VectorCache interface {
	Get(model, text string) ([]float32, bool, error)
	Put(model, text string, vector []float32) error
	Close() error
}

// CachedCapability serves repeated texts from a VectorCache and forwards
// only the misses to the wrapped Capability. Cache failures are logged and
// treated as misses.
type CachedCapability struct {
	next   Capability
	cache  VectorCache
	logger *slog.Logger
}

// NewCachedCapability wraps next with cache.
func NewCachedCapability(next Capability, cache VectorCache, logger *slog.Logger) *CachedCapability {
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedCapability{next: next, cache: cache, logger: logger}
}

// CreateEmbeddings implements Capability.
func (c *CachedCapability) CreateEmbeddings(ctx context.Context, input []string, model string) (*Response, error) {
	vectors := make([][]float32, len(input))
	var missIdx []int
	var missTexts []string

	for i, text := range input {
		v, ok, err := c.cache.Get(model, text)
		if err != nil {
			c.logger.Warn("Embedding cache read failed", "error", err)
		}
		if ok {
			vectors[i] = v
			continue
		}
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, text)
	}

	if len(missTexts) == 0 {
		c.logger.Debug("Embedding cache hit", "texts", len(input))
		return &Response{Vectors: vectors, Model: model}, nil
	}

	resp, err := c.next.CreateEmbeddings(ctx, missTexts, model)
	if err != nil {
		return nil, err
	}
	if len(resp.Vectors) != len(missTexts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(missTexts), len(resp.Vectors))
	}

	for j, i := range missIdx {
		vectors[i] = resp.Vectors[j]
		if err := c.cache.Put(model, missTexts[j], resp.Vectors[j]); err != nil {
			c.logger.Warn("Embedding cache write failed", "error", err)
		}
	}

	c.logger.Debug("Embedding cache lookup", "hits", len(input)-len(missTexts), "misses", len(missTexts))
	return &Response{Vectors: vectors, Model: resp.Model, Usage: resp.Usage}, nil
}

// Close closes the wrapped capability and the cache.
func (c *CachedCapability) Close() error {
	return errors.Join(c.next.Close(), c.cache.Close())
}
