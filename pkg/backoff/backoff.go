// Package backoff computes wait durations between retry attempts.
//
// The policy is exponential with additive jitter. When the remote service
// suggests a wait (usually embedded in a rate limit message such as
// "Please try again in 1.2s."), the suggestion is padded and used as a floor.
package backoff

import (
	"math"
	"math/rand/v2"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Default policy values.
const (
	DefaultBaseDelay = 1 * time.Second
	DefaultMaxDelay  = 60 * time.Second
	DefaultJitter    = 1 * time.Second
	DefaultPadMin    = 1 * time.Second
	DefaultPadMax    = 3 * time.Second
)

// Policy holds the parameters of the backoff computation. The zero value is
// usable and behaves like DefaultPolicy.
type Policy struct {
	// BaseDelay is the wait before the first retry, doubled per attempt.
	BaseDelay time.Duration
	// MaxDelay caps the exponential component.
	MaxDelay time.Duration
	// Jitter is the upper bound of the uniform random amount added to the
	// exponential component.
	Jitter time.Duration
	// PadMin and PadMax bound the uniform padding added to a suggested wait.
	PadMin time.Duration
	PadMax time.Duration
	// Rand returns a float in [0, 1). Nil uses math/rand/v2.
	Rand func() float64
}

// DefaultPolicy returns the policy used by the embedding client.
func DefaultPolicy() Policy {
	return Policy{
		BaseDelay: DefaultBaseDelay,
		MaxDelay:  DefaultMaxDelay,
		Jitter:    DefaultJitter,
		PadMin:    DefaultPadMin,
		PadMax:    DefaultPadMax,
	}
}

func (p Policy) withDefaults() Policy {
	if p.BaseDelay <= 0 {
		p.BaseDelay = DefaultBaseDelay
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = DefaultMaxDelay
	}
	if p.MaxDelay < p.BaseDelay {
		p.MaxDelay = p.BaseDelay
	}
	if p.Jitter < 0 {
		p.Jitter = 0
	}
	if p.PadMin < 0 {
		p.PadMin = 0
	}
	if p.PadMax < p.PadMin {
		p.PadMax = p.PadMin
	}
	if p.Rand == nil {
		p.Rand = rand.Float64
	}
	return p
}

// Exponential returns BaseDelay * 2^attempt, capped at MaxDelay, with no
// jitter. Negative attempts are treated as zero.
func (p Policy) Exponential(attempt int) time.Duration {
	p = p.withDefaults()
	if attempt < 0 {
		attempt = 0
	}

	delay := float64(p.BaseDelay) * math.Pow(2, float64(attempt))
	if delay > float64(p.MaxDelay) || math.IsInf(delay, 1) {
		delay = float64(p.MaxDelay)
	}
	return time.Duration(delay)
}

// Compute returns the wait before retrying after the given attempt failed.
//
// The result is Exponential(attempt) plus uniform jitter in [0, Jitter). If
// suggested is positive the result is at least suggested plus a uniform pad
// in [PadMin, PadMax].
func (p Policy) Compute(attempt int, suggested time.Duration) time.Duration {
	p = p.withDefaults()

	wait := p.Exponential(attempt) + uniform(p.Rand, 0, p.Jitter)
	if suggested > 0 {
		padded := suggested + uniform(p.Rand, p.PadMin, p.PadMax)
		if padded > wait {
			wait = padded
		}
	}
	if wait < 0 {
		return 0
	}
	return wait
}

func uniform(r func() float64, lo, hi time.Duration) time.Duration {
	if hi <= lo {
		return lo
	}
	f := r()
	if f < 0 || f >= 1 || math.IsNaN(f) {
		f = 0
	}
	return lo + time.Duration(f*float64(hi-lo))
}

var suggestedWaitPattern = regexp.MustCompile(`(?i)try again in\s+([0-9]+(?:\.[0-9]+)?)\s*(ms|milliseconds?|s|secs?|seconds?|m|mins?|minutes?)\b`)

// ParseSuggestedWait extracts a wait hint such as "Please try again in 1.5s."
// from a free-text error message. It returns false when no hint is present
// or the value cannot be parsed.
func ParseSuggestedWait(msg string) (time.Duration, bool) {
	m := suggestedWaitPattern.FindStringSubmatch(msg)
	if m == nil {
		return 0, false
	}

	value, err := strconv.ParseFloat(m[1], 64)
	if err != nil || value < 0 || math.IsInf(value, 0) {
		return 0, false
	}

	var unit time.Duration
	switch u := strings.ToLower(m[2]); {
	case u == "ms" || strings.HasPrefix(u, "millisecond"):
		unit = time.Millisecond
	case u == "m" || strings.HasPrefix(u, "min"):
		unit = time.Minute
	default:
		unit = time.Second
	}

	d := value * float64(unit)
	if d > float64(math.MaxInt64) {
		return 0, false
	}
	return time.Duration(d), true
}
