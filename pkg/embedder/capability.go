package embedder

import (
	"context"

	"github.com/soundprediction/embedkit/pkg/types"
)

// Capability is a remote (or local) embedding backend. CreateEmbeddings must
// return exactly one vector per input, in input order.
//
// Throttling should be reported as a *retry.RateLimitError so the client can
// honour the service's suggested wait; every other error is retried as a
// transient failure.
type Capability interface {
	CreateEmbeddings(ctx context.Context, input []string, model string) (*Response, error)
	Close() error
}

// Response is the result of one CreateEmbeddings call.
type Response struct {
	Vectors [][]float32
	Model   string
	Usage   types.Usage
}
