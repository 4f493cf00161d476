package embedder

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/sashabaranov/go-openai"
	"github.com/soundprediction/embedkit/pkg/retry"
	"github.com/soundprediction/embedkit/pkg/types"
)

// OpenAIConfig configures an OpenAICapability.
type OpenAIConfig struct {
	APIKey string
	// BaseURL points at an OpenAI-compatible service. Empty means api.openai.com.
	BaseURL string
	// Dimensions is forwarded to models that support shortened embeddings.
	Dimensions int
}

// OpenAICapability calls the embeddings endpoint of OpenAI or an
// OpenAI-compatible service.
type OpenAICapability struct {
	client *openai.Client
	config OpenAIConfig
}

// NewOpenAICapability creates a capability backed by go-openai.
func NewOpenAICapability(cfg OpenAIConfig) (*OpenAICapability, error) {
	if cfg.BaseURL == "" {
		if cfg.APIKey == "" {
			return nil, types.ErrMissingCredential
		}
		return &OpenAICapability{client: openai.NewClient(cfg.APIKey), config: cfg}, nil
	}

	if err := validateBaseURL(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("%w: invalid base URL: %v", types.ErrInvalidConfiguration, err)
	}

	// Some compatible services don't require authentication
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = "dummy-key"
	}

	clientConfig := openai.DefaultConfig(apiKey)
	clientConfig.BaseURL = cfg.BaseURL
	if !hasAPIPath(cfg.BaseURL) {
		clientConfig.BaseURL = cfg.BaseURL + "/v1"
	}

	return &OpenAICapability{
		client: openai.NewClientWithConfig(clientConfig),
		config: cfg,
	}, nil
}

// CreateEmbeddings implements Capability.
func (c *OpenAICapability) CreateEmbeddings(ctx context.Context, input []string, model string) (*Response, error) {
	req := openai.EmbeddingRequest{
		Input: input,
		Model: openai.EmbeddingModel(model),
	}
	if c.config.Dimensions > 0 {
		req.Dimensions = c.config.Dimensions
	}

	resp, err := c.client.CreateEmbeddings(ctx, req)
	if err != nil {
		return nil, c.mapError(err)
	}

	if len(resp.Data) != len(input) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(input), len(resp.Data))
	}

	// Data is not guaranteed to come back in request order.
	vectors := make([][]float32, len(input))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(vectors) {
			return nil, fmt.Errorf("embedding index %d out of range [0, %d)", d.Index, len(vectors))
		}
		if vectors[d.Index] != nil {
			return nil, fmt.Errorf("duplicate embedding index %d", d.Index)
		}
		vectors[d.Index] = d.Embedding
	}

	return &Response{
		Vectors: vectors,
		Model:   string(resp.Model),
		Usage: types.Usage{
			PromptTokens: resp.Usage.PromptTokens,
			TotalTokens:  resp.Usage.TotalTokens,
		},
	}, nil
}

// Close implements Capability. The HTTP client holds nothing to release.
func (c *OpenAICapability) Close() error {
	return nil
}

// mapError turns throttling responses into *retry.RateLimitError so the
// service's "try again in" hint reaches the backoff policy.
func (c *OpenAICapability) mapError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode == http.StatusTooManyRequests {
		rl := retry.NewRateLimitError(apiErr.Message)
		rl.Cause = err
		return rl
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode == http.StatusTooManyRequests {
		rl := retry.NewRateLimitError(reqErr.Error())
		rl.Cause = err
		return rl
	}

	if c.config.BaseURL != "" {
		return fmt.Errorf("openai-compatible embeddings failed: %w", err)
	}
	return fmt.Errorf("openai embeddings failed: %w", err)
}

// validateBaseURL validates the base URL format.
func validateBaseURL(baseURL string) error {
	parsedURL, err := url.Parse(baseURL)
	if err != nil {
		return fmt.Errorf("invalid baseURL format: %w", err)
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return fmt.Errorf("baseURL must use http:// or https:// scheme")
	}
	if parsedURL.Host == "" {
		return fmt.Errorf("baseURL must include a host")
	}
	return nil
}

// hasAPIPath checks if the base URL already includes an API path component.
func hasAPIPath(baseURL string) bool {
	for _, path := range []string{"/v1", "/api", "/v1/", "/api/"} {
		if strings.HasSuffix(baseURL, path) {
			return true
		}
	}
	return false
}
