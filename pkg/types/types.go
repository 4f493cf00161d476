package types

import "errors"

// Configuration errors shared by every package that validates user input.
var (
	// ErrMissingCredential indicates no API key could be discovered for a
	// remote embedding provider.
	ErrMissingCredential = errors.New("missing credential: set OPENAI_API_KEY or embedding.api_key")

	// ErrInvalidConfiguration indicates a setting is out of range (for
	// example a non-positive batch size or retry budget).
	ErrInvalidConfiguration = errors.New("invalid configuration")

	// ErrEmptyInput indicates an operation that needs at least one text got none.
	ErrEmptyInput = errors.New("input cannot be empty")
)

// Usage reports token consumption for one remote call.
type Usage struct {
	PromptTokens int `json:"prompt_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

// ContextKey is the type of values stored in a request context by the server
// and CLI so telemetry can attribute records.
type ContextKey string

const (
	// ContextKeyRequestID carries the per-call correlation ID.
	ContextKeyRequestID ContextKey = "request_id"
	// ContextKeyUserID carries the caller identity from X-User-ID.
	ContextKeyUserID ContextKey = "user_id"
	// ContextKeySessionID carries the session from X-Session-ID.
	ContextKeySessionID ContextKey = "session_id"
	// ContextKeyRequestSource names the entry point (server, cli).
	ContextKeyRequestSource ContextKey = "request_source"
)
