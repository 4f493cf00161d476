package embedder

import (
	"context"
	"fmt"

	embedeverything "github.com/soundprediction/go-embedeverything/pkg/embedder"
)

// EmbedEverythingCapability runs a local model through go-embedeverything.
// It needs no credential and ignores the per-call model argument; the model
// is fixed when the capability is created.
type EmbedEverythingCapability struct {
	client *embedeverything.Embedder
	model  string
}

// NewEmbedEverythingCapability loads model.
func NewEmbedEverythingCapability(model string) (*EmbedEverythingCapability, error) {
	client, err := embedeverything.NewEmbedder(model)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}
	return &EmbedEverythingCapability{client: client, model: model}, nil
}

// CreateEmbeddings implements Capability.
func (e *EmbedEverythingCapability) CreateEmbeddings(ctx context.Context, input []string, _ string) (*Response, error) {
	// go-embedeverything does not support context yet
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	embeddings, err := e.client.Embed(input)
	if err != nil {
		return nil, fmt.Errorf("failed to generate embeddings: %w", err)
	}
	return &Response{Vectors: embeddings, Model: e.model}, nil
}

// Close implements Capability.
func (e *EmbedEverythingCapability) Close() error {
	e.client.Close()
	return nil
}
