package embedder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"
	"github.com/soundprediction/embedkit/pkg/alert"
	"github.com/soundprediction/embedkit/pkg/config"
)

// minRequestsToTrip keeps a single early failure from opening the breaker.
const minRequestsToTrip = 3

// CircuitBreakerCapability wraps a Capability with circuit breaking logic.
// While the breaker is open calls fail fast with gobreaker.ErrOpenState.
type CircuitBreakerCapability struct {
	next    Capability
	cb      *gobreaker.CircuitBreaker
	alerter alert.Alerter
	logger  *slog.Logger
	name    string
}

// NewCircuitBreakerCapability creates a new circuit breaker capability.
func NewCircuitBreakerCapability(next Capability, cfg config.CircuitBreakerConfig, alerter alert.Alerter, logger *slog.Logger, name string) *CircuitBreakerCapability {
	if alerter == nil {
		alerter = &alert.NoOpAlerter{}
	}
	if logger == nil {
		logger = slog.Default()
	}

	c := &CircuitBreakerCapability{
		next:    next,
		alerter: alerter,
		logger:  logger,
		name:    name,
	}

	st := gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.MaxRequests,
		Interval:    time.Duration(cfg.Interval) * time.Second,
		Timeout:     time.Duration(cfg.Timeout) * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < minRequestsToTrip {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= cfg.ReadyToTripRatio
		},
		// Caller cancellation says nothing about the health of the service.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
		},
		OnStateChange: c.onStateChange,
	}
	c.cb = gobreaker.NewCircuitBreaker(st)
	return c
}

func (c *CircuitBreakerCapability) onStateChange(name string, from, to gobreaker.State) {
	c.logger.Info("Circuit breaker state changed", "name", name, "from", from.String(), "to", to.String())
	if to != gobreaker.StateOpen {
		return
	}
	msg := fmt.Sprintf("Circuit Breaker '%s' changed status from %s to %s. Too many failures detected.", name, from, to)
	if err := c.alerter.Alert(fmt.Sprintf("URGENT: Circuit Breaker Tripped - %s", name), msg); err != nil {
		c.logger.Warn("Failed to send circuit breaker alert", "name", name, "error", err)
	}
}

// CreateEmbeddings implements Capability.
func (c *CircuitBreakerCapability) CreateEmbeddings(ctx context.Context, input []string, model string) (*Response, error) {
	resp, err := c.cb.Execute(func() (interface{}, error) {
		return c.next.CreateEmbeddings(ctx, input, model)
	})
	if err != nil {
		return nil, err
	}
	return resp.(*Response), nil
}

// State reports the current breaker state.
func (c *CircuitBreakerCapability) State() gobreaker.State {
	return c.cb.State()
}

// Close implements Capability.
func (c *CircuitBreakerCapability) Close() error {
	return c.next.Close()
}
