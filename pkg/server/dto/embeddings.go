package dto

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/soundprediction/embedkit/pkg/types"
)

// Validation errors
var (
	ErrEmptyInput       = types.ErrEmptyInput
	ErrEmptyText        = errors.New("input texts cannot be empty")
	ErrTooManyInputs    = fmt.Errorf("input exceeds maximum count (%d)", MaxInputCount)
	ErrContentTooLong   = errors.New("input text exceeds maximum length (1MB)")
	ErrUnsupportedModel = errors.New("model is not served by this endpoint")
	ErrEncodingFormat   = errors.New("encoding_format must be float")
)

// MaxFieldLengths defines maximum sizes to prevent abuse
const (
	MaxInputCount    = 100000
	MaxContentLength = 1024 * 1024 // 1MB
)

// Input accepts either a single string or a list of strings.
type Input []string

// UnmarshalJSON implements json.Unmarshaler.
func (in *Input) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*in = Input{single}
		return nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return errors.New("input must be a string or an array of strings")
	}
	*in = list
	return nil
}

// EmbeddingRequest mirrors the OpenAI embeddings request.
type EmbeddingRequest struct {
	Input          Input  `json:"input"`
	Model          string `json:"model,omitempty"`
	EncodingFormat string `json:"encoding_format,omitempty"`
}

// Validate checks the request against the model the server embeds with.
func (r *EmbeddingRequest) Validate(servedModel string) error {
	if len(r.Input) == 0 {
		return ErrEmptyInput
	}
	if len(r.Input) > MaxInputCount {
		return ErrTooManyInputs
	}
	for i, text := range r.Input {
		if strings.TrimSpace(text) == "" {
			return fmt.Errorf("input %d: %w", i, ErrEmptyText)
		}
		if len(text) > MaxContentLength {
			return fmt.Errorf("input %d: %w", i, ErrContentTooLong)
		}
	}
	if r.Model != "" && r.Model != servedModel {
		return fmt.Errorf("%w: requested %q, serving %q", ErrUnsupportedModel, r.Model, servedModel)
	}
	if r.EncodingFormat != "" && r.EncodingFormat != "float" {
		return ErrEncodingFormat
	}
	return nil
}

// Embedding is one vector of an EmbeddingResponse.
type Embedding struct {
	Object    string    `json:"object"`
	Embedding []float32 `json:"embedding"`
	Index     int       `json:"index"`
}

// EmbeddingResponse mirrors the OpenAI embeddings response.
type EmbeddingResponse struct {
	Object string      `json:"object"`
	Data   []Embedding `json:"data"`
	Model  string      `json:"model"`
}

// NewEmbeddingResponse wraps vectors, which must be in input order.
func NewEmbeddingResponse(model string, vectors [][]float32) EmbeddingResponse {
	data := make([]Embedding, len(vectors))
	for i, v := range vectors {
		data[i] = Embedding{Object: "embedding", Embedding: v, Index: i}
	}
	return EmbeddingResponse{Object: "list", Data: data, Model: model}
}
