package embedder

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/soundprediction/embedkit/pkg/retry"
	"github.com/soundprediction/embedkit/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type embeddingsRequest struct {
	Input      []string `json:"input"`
	Model      string   `json:"model"`
	Dimensions int      `json:"dimensions"`
}

type embeddingsData struct {
	Object    string    `json:"object"`
	Embedding []float32 `json:"embedding"`
	Index     int       `json:"index"`
}

// servedModel is the model name the test server reports, distinct from the
// requested one.
const servedModel = "text-embedding-3-small-2024-10"

// reversedEmbeddingsServer answers in reverse index order.
func reversedEmbeddingsServer(t *testing.T, seen *embeddingsRequest) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req embeddingsRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if seen != nil {
			*seen = req
		}

		data := make([]embeddingsData, 0, len(req.Input))
		for i := len(req.Input) - 1; i >= 0; i-- {
			data = append(data, embeddingsData{Object: "embedding", Embedding: vectorFor(req.Input[i]), Index: i})
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"object": "list",
			"data":   data,
			"model":  servedModel,
			"usage":  map[string]int{"prompt_tokens": 3 * len(req.Input), "total_tokens": 3 * len(req.Input)},
		})
	}))
}

func errorServer(status int, message string) *httptest.Server {
	code := "server_error"
	if status == http.StatusTooManyRequests {
		code = "rate_limit_exceeded"
	}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{"message": message, "type": "requests", "code": code},
		})
	}))
}

func TestOpenAICapability_OrdersByIndex(t *testing.T) {
	var seen embeddingsRequest
	srv := reversedEmbeddingsServer(t, &seen)
	defer srv.Close()

	c, err := NewOpenAICapability(OpenAIConfig{APIKey: "test-key", BaseURL: srv.URL, Dimensions: 256})
	require.NoError(t, err)

	resp, err := c.CreateEmbeddings(context.Background(), []string{"text-1", "text-2", "text-3"}, "text-embedding-3-small")
	require.NoError(t, err)

	assert.Equal(t, [][]float32{{1, -1}, {2, -2}, {3, -3}}, resp.Vectors)
	assert.Equal(t, servedModel, resp.Model)
	assert.Equal(t, "text-embedding-3-small", seen.Model)
	assert.Equal(t, types.Usage{PromptTokens: 9, TotalTokens: 9}, resp.Usage)
	assert.Equal(t, 256, seen.Dimensions)
	assert.Equal(t, []string{"text-1", "text-2", "text-3"}, seen.Input)
}

func TestOpenAICapability_RateLimit(t *testing.T) {
	srv := errorServer(http.StatusTooManyRequests, "Rate limit reached for text-embedding-3-small. Please try again in 2s.")
	defer srv.Close()

	c, err := NewOpenAICapability(OpenAIConfig{APIKey: "test-key", BaseURL: srv.URL + "/v1"})
	require.NoError(t, err)

	_, err = c.CreateEmbeddings(context.Background(), []string{"a"}, "text-embedding-3-small")
	require.Error(t, err)

	var rl *retry.RateLimitError
	require.ErrorAs(t, err, &rl)
	assert.Equal(t, 2*time.Second, rl.SuggestedWait)

	failure := retry.Classify(err)
	assert.Equal(t, retry.ClassRateLimited, failure.Class)
	assert.Equal(t, 2*time.Second, failure.SuggestedWait)
}

func TestOpenAICapability_ServerError(t *testing.T) {
	srv := errorServer(http.StatusInternalServerError, "The server had an error while processing your request.")
	defer srv.Close()

	c, err := NewOpenAICapability(OpenAIConfig{APIKey: "test-key", BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = c.CreateEmbeddings(context.Background(), []string{"a"}, "m")
	require.Error(t, err)
	assert.False(t, errors.Is(err, retry.ErrRateLimit))
	assert.Equal(t, retry.ClassTransient, retry.Classify(err).Class)
}

func TestClient_OverOpenAI(t *testing.T) {
	srv := reversedEmbeddingsServer(t, nil)
	defer srv.Close()

	cfg := testConfig()
	cfg.BaseURL = srv.URL
	cfg.BatchSize = 4
	cfg.BatchInterval = 0

	c, err := New(cfg, WithLogger(discardLogger()))
	require.NoError(t, err)
	defer c.Close()

	texts := numberedTexts(10)
	got, err := c.EmbedMany(context.Background(), texts)
	require.NoError(t, err)
	for i, text := range texts {
		assert.Equal(t, vectorFor(text), got[i])
	}
}

func TestNewOpenAICapability(t *testing.T) {
	_, err := NewOpenAICapability(OpenAIConfig{})
	assert.ErrorIs(t, err, types.ErrMissingCredential)

	_, err = NewOpenAICapability(OpenAIConfig{BaseURL: "localhost:8080"})
	assert.ErrorIs(t, err, types.ErrInvalidConfiguration)

	c, err := NewOpenAICapability(OpenAIConfig{BaseURL: "http://localhost:11434"})
	require.NoError(t, err, "compatible services may not need a key")
	assert.NoError(t, c.Close())
}

func TestHasAPIPath(t *testing.T) {
	assert.True(t, hasAPIPath("http://localhost:8080/v1"))
	assert.True(t, hasAPIPath("http://localhost:8080/api/"))
	assert.False(t, hasAPIPath("http://localhost:8080"))
}
