// Package backoff provides pluggable wait strategies for retryable
// operations. A Strategy maps a retry-attempt number to the duration to
// wait before the next attempt.
package backoff

import (
	"fmt"
	"math"
	"math/rand"
	"time"
)

// DefaultMaxDelay caps the wait between attempts when a strategy is
// built without an explicit cap.
const DefaultMaxDelay = 30 * time.Second

// Strategy maps a retry-attempt number (1-based) to the wait duration
// before the next attempt. Implementations must be safe for concurrent
// use.
type Strategy interface {
	Delay(attempt int) time.Duration
}

// Linear waits Base*attempt, capped at Max.
type Linear struct {
	Base time.Duration
	Max  time.Duration
}

// NewLinear creates a linear strategy with the default cap.
func NewLinear(base time.Duration) Linear {
	return Linear{Base: base, Max: DefaultMaxDelay}
}

// Delay implements Strategy.
func (l Linear) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := l.Base * time.Duration(attempt)
	return capDelay(delay, l.Max)
}

// Exponential waits Base*Multiplier^(attempt-1), capped at Max, with
// optional ±20% jitter to avoid thundering herds.
type Exponential struct {
	Base       time.Duration
	Max        time.Duration
	Multiplier float64
	Jitter     bool
}

// NewExponential creates a doubling strategy with the default cap.
func NewExponential(base time.Duration) Exponential {
	return Exponential{Base: base, Max: DefaultMaxDelay, Multiplier: 2.0}
}

// Delay implements Strategy.
func (e Exponential) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	multiplier := e.Multiplier
	if multiplier <= 0 {
		multiplier = 2.0
	}

	delay := float64(e.Base) * math.Pow(multiplier, float64(attempt-1))
	if limit := float64(capFor(e.Max)); delay > limit {
		delay = limit
	}

	if e.Jitter {
		delay += delay * 0.2 * (rand.Float64()*2 - 1)
	}

	return time.Duration(delay)
}

// ForMode builds a strategy from a configuration mode name, either
// "linear" or "exponential".
func ForMode(mode string, base time.Duration) (Strategy, error) {
	switch mode {
	case "", "linear":
		return NewLinear(base), nil
	case "exponential":
		return NewExponential(base), nil
	default:
		return nil, fmt.Errorf("unknown backoff mode: %s", mode)
	}
}

func capDelay(delay, max time.Duration) time.Duration {
	if limit := capFor(max); delay > limit {
		return limit
	}
	return delay
}

func capFor(max time.Duration) time.Duration {
	if max <= 0 {
		return DefaultMaxDelay
	}
	return max
}
