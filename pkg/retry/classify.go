package retry

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/soundprediction/embedkit/pkg/backoff"
)

// Class distinguishes how a failed attempt is backed off.
type Class int

const (
	// ClassTransient covers every failure that is not throttling. It is
	// retried after the plain exponential delay.
	ClassTransient Class = iota
	// ClassRateLimited is a throttling response. It is retried after the
	// jittered delay, floored by any suggested wait.
	ClassRateLimited
)

func (c Class) String() string {
	switch c {
	case ClassRateLimited:
		return "rate_limited"
	default:
		return "transient"
	}
}

// Failure is the classified form of an attempt error.
type Failure struct {
	Class Class
	// SuggestedWait is only set for ClassRateLimited, zero when unknown.
	SuggestedWait time.Duration
	Cause         error
}

// httpErrorWithStatusCode matches errors that expose the HTTP status of the
// failed response.
type httpErrorWithStatusCode interface {
	HTTPStatusCode() int
}

var rateLimitPatterns = []string{
	"rate limit",
	"too many requests",
	"429",
}

// Classify sorts an attempt error into RateLimited or Transient.
func Classify(err error) Failure {
	var rl *RateLimitError
	if errors.As(err, &rl) {
		wait := rl.SuggestedWait
		if wait <= 0 {
			wait, _ = backoff.ParseSuggestedWait(rl.Error())
		}
		return Failure{Class: ClassRateLimited, SuggestedWait: wait, Cause: err}
	}

	if errors.Is(err, ErrRateLimit) {
		wait, _ := backoff.ParseSuggestedWait(err.Error())
		return Failure{Class: ClassRateLimited, SuggestedWait: wait, Cause: err}
	}

	var httpErr httpErrorWithStatusCode
	if errors.As(err, &httpErr) && httpErr.HTTPStatusCode() == http.StatusTooManyRequests {
		wait, _ := backoff.ParseSuggestedWait(err.Error())
		return Failure{Class: ClassRateLimited, SuggestedWait: wait, Cause: err}
	}

	if err != nil {
		errMsg := strings.ToLower(err.Error())
		for _, pattern := range rateLimitPatterns {
			if strings.Contains(errMsg, pattern) {
				wait, _ := backoff.ParseSuggestedWait(err.Error())
				return Failure{Class: ClassRateLimited, SuggestedWait: wait, Cause: err}
			}
		}
	}

	return Failure{Class: ClassTransient, Cause: err}
}
