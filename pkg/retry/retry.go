// Package retry executes single-item operations under a bounded-attempt
// policy. Failures are classified to decide retry eligibility and every
// result, success or terminal failure, is returned as a value rather
// than propagated.
package retry

import (
	"context"
	"time"

	"github.com/mediastash/mediastash/pkg/backoff"
	"github.com/mediastash/mediastash/pkg/errors"
)

// Default policy values applied to zero-valued fields.
const (
	DefaultMaxAttempts = 3
	DefaultBaseDelay   = time.Second
)

// Policy configures how an operation is retried.
type Policy struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int

	// Backoff decides how long to wait after a failed attempt.
	Backoff backoff.Strategy

	// OnRetry, if set, is called before each wait.
	OnRetry func(attempt int, err error, delay time.Duration)
}

// DefaultPolicy returns the standard policy: three attempts with linear
// one-second backoff.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: DefaultMaxAttempts,
		Backoff:     backoff.NewLinear(DefaultBaseDelay),
	}
}

// normalized fills in defaults for zero-valued fields.
func (p Policy) normalized() Policy {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = DefaultMaxAttempts
	}
	if p.Backoff == nil {
		p.Backoff = backoff.NewLinear(DefaultBaseDelay)
	}
	return p
}

// Outcome is the settled result of one item's operation.
type Outcome[T any] struct {
	Success  bool
	Data     T
	Err      *errors.StashError
	Attempts int
}

// Execute runs op under the policy. The operation is attempted up to
// MaxAttempts times; after each failure the raw error is classified and
// only retryable kinds trigger another attempt. Attempts for one item
// are strictly sequential: attempt k+1 never starts before attempt k has
// settled and its backoff elapsed. Context cancellation during a wait
// settles the outcome with the classified cancellation error.
func Execute[T any](ctx context.Context, policy Policy, op func(context.Context) (T, error)) Outcome[T] {
	policy = policy.normalized()

	var outcome Outcome[T]
	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		outcome.Attempts = attempt

		select {
		case <-ctx.Done():
			outcome.Err = errors.Classify(ctx.Err())
			return outcome
		default:
		}

		data, err := op(ctx)
		if err == nil {
			outcome.Success = true
			outcome.Data = data
			return outcome
		}

		outcome.Err = errors.Classify(err)
		if !outcome.Err.Retryable || attempt == policy.MaxAttempts {
			return outcome
		}

		delay := policy.Backoff.Delay(attempt)
		if policy.OnRetry != nil {
			policy.OnRetry(attempt, err, delay)
		}

		select {
		case <-ctx.Done():
			outcome.Err = errors.Classify(ctx.Err())
			return outcome
		case <-time.After(delay):
		}
	}

	return outcome
}
