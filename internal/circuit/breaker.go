// Package circuit implements a circuit breaker guarding the storage
// transport. Open-circuit rejections carry the CircuitOpen identifier so
// the error classifier treats them as transient Network failures and the
// batch retry layer backs off while the breaker recovers.
package circuit

import (
	"sync"
	"time"
)

// State represents the breaker state.
type State int

const (
	// StateClosed - requests pass through.
	StateClosed State = iota
	// StateOpen - requests are rejected.
	StateOpen
	// StateHalfOpen - a limited number of probe requests pass through.
	StateHalfOpen
)

// String returns the string representation of a state.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateOpen:
		return "OPEN"
	case StateHalfOpen:
		return "HALF_OPEN"
	default:
		return "UNKNOWN"
	}
}

// OpenError is returned when the breaker rejects a request. Its code
// feeds the error classifier.
type OpenError struct {
	Name string
}

// Error implements the error interface.
func (e *OpenError) Error() string {
	return "circuit breaker " + e.Name + " is open"
}

// ErrorCode returns the stable identifier used for classification.
func (e *OpenError) ErrorCode() string {
	return "CircuitOpen"
}

// Counts tracks request outcomes within the current state window.
type Counts struct {
	Requests             uint32
	TotalSuccesses       uint32
	TotalFailures        uint32
	ConsecutiveSuccesses uint32
	ConsecutiveFailures  uint32
}

// Config contains breaker tuning.
type Config struct {
	// MaxProbes is the number of requests allowed through while
	// half-open.
	MaxProbes uint32 `yaml:"max_probes"`

	// Interval resets the closed-state counts; zero keeps counts for the
	// life of the closed state.
	Interval time.Duration `yaml:"interval"`

	// Timeout is how long the breaker stays open before probing.
	Timeout time.Duration `yaml:"timeout"`

	// ReadyToTrip decides when the closed breaker opens.
	ReadyToTrip func(counts Counts) bool `yaml:"-"`

	// OnStateChange is called on transitions.
	OnStateChange func(name string, from, to State) `yaml:"-"`
}

// Breaker is a circuit breaker for one named dependency.
type Breaker struct {
	name   string
	config Config

	mu     sync.Mutex
	state  State
	counts Counts
	expiry time.Time
}

// NewBreaker creates a breaker with defaults applied.
func NewBreaker(name string, config Config) *Breaker {
	if config.MaxProbes == 0 {
		config.MaxProbes = 1
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	if config.ReadyToTrip == nil {
		config.ReadyToTrip = func(counts Counts) bool {
			return counts.ConsecutiveFailures >= 5
		}
	}

	return &Breaker{
		name:   name,
		config: config,
		state:  StateClosed,
		expiry: expiryFor(StateClosed, config, time.Now()),
	}
}

// Allow reports whether a request may proceed. It returns an *OpenError
// when the breaker is open or the half-open probe budget is spent.
func (b *Breaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	b.refresh(now)

	switch b.state {
	case StateOpen:
		return &OpenError{Name: b.name}
	case StateHalfOpen:
		if b.counts.Requests >= b.config.MaxProbes {
			return &OpenError{Name: b.name}
		}
	}

	b.counts.Requests++
	return nil
}

// Record reports the outcome of a request previously admitted by Allow.
func (b *Breaker) Record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	b.refresh(now)

	if err == nil {
		b.counts.TotalSuccesses++
		b.counts.ConsecutiveSuccesses++
		b.counts.ConsecutiveFailures = 0
		if b.state == StateHalfOpen && b.counts.ConsecutiveSuccesses >= b.config.MaxProbes {
			b.transition(StateClosed, now)
		}
		return
	}

	b.counts.TotalFailures++
	b.counts.ConsecutiveFailures++
	b.counts.ConsecutiveSuccesses = 0

	switch b.state {
	case StateClosed:
		if b.config.ReadyToTrip(b.counts) {
			b.transition(StateOpen, now)
		}
	case StateHalfOpen:
		b.transition(StateOpen, now)
	}
}

// State returns the current state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refresh(time.Now())
	return b.state
}

// CountsSnapshot returns a copy of the current counts.
func (b *Breaker) CountsSnapshot() Counts {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refresh(time.Now())
	return b.counts
}

// refresh applies time-based transitions: open -> half-open after the
// timeout, and closed-state count resets per interval.
func (b *Breaker) refresh(now time.Time) {
	switch b.state {
	case StateOpen:
		if now.After(b.expiry) {
			b.transition(StateHalfOpen, now)
		}
	case StateClosed:
		if b.config.Interval > 0 && now.After(b.expiry) {
			b.counts = Counts{}
			b.expiry = expiryFor(StateClosed, b.config, now)
		}
	}
}

func (b *Breaker) transition(to State, now time.Time) {
	from := b.state
	if from == to {
		return
	}
	b.state = to
	b.counts = Counts{}
	b.expiry = expiryFor(to, b.config, now)

	if b.config.OnStateChange != nil {
		b.config.OnStateChange(b.name, from, to)
	}
}

func expiryFor(state State, config Config, now time.Time) time.Time {
	switch state {
	case StateOpen:
		return now.Add(config.Timeout)
	case StateClosed:
		if config.Interval > 0 {
			return now.Add(config.Interval)
		}
	}
	return time.Time{}
}
