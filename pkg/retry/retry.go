// Package retry runs remote operations with classified exponential backoff.
//
// Every failure is retried until the budget of MaxRetries attempts is spent;
// rate limit failures back off with jitter and honour the service's suggested
// wait, all other failures back off with the plain exponential delay.
package retry

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/soundprediction/embedkit/pkg/backoff"
	"github.com/soundprediction/embedkit/pkg/types"
	"github.com/soundprediction/embedkit/pkg/utils"
)

// Defaults used by the embedding client.
const (
	DefaultMaxRetries = 5
	DefaultBaseDelay  = 1 * time.Second
	DefaultMaxDelay   = 60 * time.Second
)

// Config holds configuration for retry behavior
type Config struct {
	// MaxRetries is the total number of attempts, at least 1 (default: 5)
	MaxRetries int
	// BaseDelay is the delay after the first failed attempt (default: 1 second)
	BaseDelay time.Duration
	// MaxDelay caps the exponential component of the delay (default: 60 seconds)
	MaxDelay time.Duration
}

// DefaultConfig returns the default retry configuration
func DefaultConfig() Config {
	return Config{
		MaxRetries: DefaultMaxRetries,
		BaseDelay:  DefaultBaseDelay,
		MaxDelay:   DefaultMaxDelay,
	}
}

// Validate reports out-of-range settings.
func (c Config) Validate() error {
	if c.MaxRetries < 1 {
		return fmt.Errorf("%w: max retries must be at least 1, got %d", types.ErrInvalidConfiguration, c.MaxRetries)
	}
	if c.BaseDelay <= 0 {
		return fmt.Errorf("%w: base delay must be positive, got %v", types.ErrInvalidConfiguration, c.BaseDelay)
	}
	if c.MaxDelay < 0 {
		return fmt.Errorf("%w: max delay cannot be negative, got %v", types.ErrInvalidConfiguration, c.MaxDelay)
	}
	return nil
}

// Event describes a failed attempt that is about to be retried.
type Event struct {
	Attempt    int // 0-based index of the attempt that failed
	MaxRetries int
	Wait       time.Duration
	Class      Class
	Err        error
}

// Observer receives advisory retry events. It must not block for long; a
// panicking observer is recovered and ignored.
type Observer func(Event)

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Executor applies a backoff policy around remote calls. An Executor holds no
// per-call state and is safe for concurrent use.
type Executor struct {
	maxRetries int
	policy     backoff.Policy
	logger     *slog.Logger
	observer   Observer
	sleep      SleepFunc
}

// Option customizes an Executor.
type Option func(*Executor)

// WithLogger sets the logger used for retry messages.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Executor) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithObserver registers a callback invoked before each backoff wait.
func WithObserver(o Observer) Option {
	return func(e *Executor) { e.observer = o }
}

// WithSleep replaces the context-aware timer used for backoff waits.
func WithSleep(fn SleepFunc) Option {
	return func(e *Executor) {
		if fn != nil {
			e.sleep = fn
		}
	}
}

// WithRand replaces the jitter source of the backoff policy.
func WithRand(fn func() float64) Option {
	return func(e *Executor) { e.policy.Rand = fn }
}

// NewExecutor creates an Executor from cfg.
func NewExecutor(cfg Config, opts ...Option) (*Executor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	policy := backoff.DefaultPolicy()
	policy.BaseDelay = cfg.BaseDelay
	if cfg.MaxDelay > 0 {
		policy.MaxDelay = cfg.MaxDelay
	}

	e := &Executor{
		maxRetries: cfg.MaxRetries,
		policy:     policy,
		logger:     slog.Default(),
		sleep:      Sleep,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// MaxRetries returns the attempt budget.
func (e *Executor) MaxRetries() int {
	return e.maxRetries
}

// Execute runs op until it succeeds or the executor's attempt budget is spent.
// On exhaustion the returned error is an *ExhaustedRetriesError wrapping the
// last failure. Cancelling ctx abandons any pending wait and stops further
// attempts.
func Execute[T any](ctx context.Context, e *Executor, op func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error

	for attempt := 0; attempt < e.maxRetries; attempt++ {
		result, err := op(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return zero, fmt.Errorf("context cancelled during attempt %d: %w", attempt+1, ctx.Err())
		}

		// No wait after the final attempt.
		if attempt == e.maxRetries-1 {
			break
		}

		failure := Classify(err)
		var wait time.Duration
		switch failure.Class {
		case ClassRateLimited:
			wait = e.policy.Compute(attempt, failure.SuggestedWait)
			e.logger.Warn("Rate limit hit, backing off",
				"wait", wait.Round(100*time.Millisecond).String(),
				"retry", attempt+1,
				"max_retries", e.maxRetries)
		default:
			wait = e.policy.Exponential(attempt)
			e.logger.Debug("Attempt failed, backing off",
				"error", err,
				"wait", wait.String(),
				"retry", attempt+1,
				"max_retries", e.maxRetries)
		}

		e.notify(Event{
			Attempt:    attempt,
			MaxRetries: e.maxRetries,
			Wait:       wait,
			Class:      failure.Class,
			Err:        err,
		})

		if err := e.sleep(ctx, wait); err != nil {
			return zero, fmt.Errorf("context cancelled during retry backoff: %w", err)
		}
	}

	return zero, &ExhaustedRetriesError{Attempts: e.maxRetries, Err: lastErr}
}

func (e *Executor) notify(ev Event) {
	if e.observer == nil {
		return
	}
	defer utils.RecoverWithCallback(func(err error) {
		e.logger.Warn("Retry observer panicked", "error", err)
	})
	e.observer(ev)
}

// Sleep waits for d, returning ctx.Err() if ctx is done first.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
