package retry

import (
	"errors"
	"fmt"
	"time"

	"github.com/soundprediction/embedkit/pkg/backoff"
)

// ErrRateLimit indicates the remote service is throttling the caller.
var ErrRateLimit = errors.New("rate limit exceeded. Please try again later")

// RateLimitError represents a throttling response from the remote service.
// SuggestedWait is the service's own estimate of when to retry, zero if the
// service gave none.
type RateLimitError struct {
	Message       string
	SuggestedWait time.Duration
	Cause         error
}

func (e *RateLimitError) Error() string {
	if e.Message == "" {
		return ErrRateLimit.Error()
	}
	return e.Message
}

func (e *RateLimitError) Unwrap() error { return e.Cause }

// Is implements errors.Is support for RateLimitError.
// This allows errors.Is(err, &RateLimitError{}) and errors.Is(err, ErrRateLimit)
// to work with wrapped errors.
func (e *RateLimitError) Is(target error) bool {
	if target == ErrRateLimit {
		return true
	}
	_, ok := target.(*RateLimitError)
	return ok
}

// NewRateLimitError creates a rate limit error with an optional message. A
// "try again in Ns" hint in the message becomes the SuggestedWait.
func NewRateLimitError(message ...string) *RateLimitError {
	err := &RateLimitError{}
	if len(message) > 0 {
		err.Message = message[0]
		if d, ok := backoff.ParseSuggestedWait(err.Message); ok {
			err.SuggestedWait = d
		}
	}
	return err
}

// ExhaustedRetriesError is returned once every attempt of an operation has
// failed. Err is the error from the final attempt.
type ExhaustedRetriesError struct {
	Attempts int
	Err      error
}

func (e *ExhaustedRetriesError) Error() string {
	return fmt.Sprintf("failed after %d attempts: %v", e.Attempts, e.Err)
}

func (e *ExhaustedRetriesError) Unwrap() error { return e.Err }

// Is implements errors.Is support for ExhaustedRetriesError.
func (e *ExhaustedRetriesError) Is(target error) bool {
	_, ok := target.(*ExhaustedRetriesError)
	return ok
}
