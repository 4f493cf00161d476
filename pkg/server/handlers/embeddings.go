package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sony/gobreaker"
	"github.com/soundprediction/embedkit/pkg/retry"
	"github.com/soundprediction/embedkit/pkg/server/dto"
	"github.com/soundprediction/embedkit/pkg/types"
)

// Embedder is the part of embedder.Client the HTTP layer needs.
type Embedder interface {
	EmbedMany(ctx context.Context, texts []string) ([][]float32, error)
	Model() string
	Dimensions() int
}

// EmbeddingsHandler handles embedding requests
type EmbeddingsHandler struct {
	embedder Embedder
	logger   *slog.Logger
}

// NewEmbeddingsHandler creates a new embeddings handler
func NewEmbeddingsHandler(e Embedder, logger *slog.Logger) *EmbeddingsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &EmbeddingsHandler{embedder: e, logger: logger}
}

// Create handles POST /v1/embeddings
func (h *EmbeddingsHandler) Create(c *gin.Context) {
	if h.embedder == nil {
		writeError(c, http.StatusServiceUnavailable, "service_unavailable", "embedder not initialized")
		return
	}

	var req dto.EmbeddingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if err := req.Validate(h.embedder.Model()); err != nil {
		writeError(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	vectors, err := h.embedder.EmbedMany(c.Request.Context(), req.Input)
	if err != nil {
		status, code := classifyError(err)
		h.logger.ErrorContext(c.Request.Context(), "Embedding request failed",
			"texts", len(req.Input), "status", status, "error", err)
		writeError(c, status, code, err.Error())
		return
	}

	c.JSON(http.StatusOK, dto.NewEmbeddingResponse(h.embedder.Model(), vectors))
}

// classifyError maps client failures to HTTP status codes.
func classifyError(err error) (int, string) {
	switch {
	case errors.Is(err, types.ErrInvalidConfiguration), errors.Is(err, types.ErrEmptyInput):
		return http.StatusBadRequest, "invalid_request"
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return http.StatusServiceUnavailable, "circuit_open"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timeout"
	case errors.Is(err, context.Canceled):
		return 499, "cancelled"
	case errors.Is(err, retry.ErrRateLimit):
		return http.StatusTooManyRequests, "rate_limited"
	case errors.Is(err, &retry.ExhaustedRetriesError{}):
		return http.StatusBadGateway, "upstream_error"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

func writeError(c *gin.Context, status int, code, message string) {
	c.JSON(status, dto.ErrorResponse{Error: code, Message: message, Code: status})
}
