package batch

import (
	"context"
	"sync"
	"time"

	"github.com/mediastash/mediastash/pkg/backoff"
	"github.com/mediastash/mediastash/pkg/errors"
	"github.com/mediastash/mediastash/pkg/retry"
)

const (
	// DefaultConcurrency bounds in-flight single-item operations when
	// Options.Concurrency is unset.
	DefaultConcurrency = 5

	// DefaultRetryAttempts is the per-item attempt budget, including the
	// first attempt.
	DefaultRetryAttempts = 3

	// DefaultRetryDelay is the base backoff delay between attempts.
	DefaultRetryDelay = time.Second

	// MaxBatchSize is the safety ceiling on items per batch.
	MaxBatchSize = 1000
)

// Options configures one batch run.
type Options struct {
	// Concurrency bounds the number of in-flight single-item operations
	// at any instant. Defaults to DefaultConcurrency.
	Concurrency int

	// RetryAttempts is the per-item attempt budget. Defaults to
	// DefaultRetryAttempts.
	RetryAttempts int

	// RetryDelay is the base delay fed to the backoff strategy. Defaults
	// to DefaultRetryDelay.
	RetryDelay time.Duration

	// StopOnError stops starting new groups once a group containing a
	// failure completes. Items already dispatched in the current group
	// still run to completion; nothing in flight is interrupted.
	StopOnError bool

	// Backoff overrides the wait strategy between attempts. Defaults to
	// linear backoff with RetryDelay as the base.
	Backoff backoff.Strategy
}

func (o Options) normalized() Options {
	if o.Concurrency == 0 {
		o.Concurrency = DefaultConcurrency
	}
	if o.RetryAttempts == 0 {
		o.RetryAttempts = DefaultRetryAttempts
	}
	if o.RetryDelay == 0 {
		o.RetryDelay = DefaultRetryDelay
	}
	if o.Backoff == nil {
		o.Backoff = backoff.NewLinear(o.RetryDelay)
	}
	return o
}

func (o Options) validate() error {
	if o.Concurrency < 1 {
		return errors.Newf(errors.KindConfiguration, "concurrency must be greater than 0, got %d", o.Concurrency)
	}
	if o.RetryAttempts < 1 {
		return errors.Newf(errors.KindConfiguration, "retry attempts must be at least 1, got %d", o.RetryAttempts)
	}
	if o.RetryDelay < 0 {
		return errors.Newf(errors.KindConfiguration, "retry delay cannot be negative, got %v", o.RetryDelay)
	}
	return nil
}

// Operation is the single-item primitive a batch runs over each item.
// It may return a raw, transport-specific failure; classification and
// retry happen around it.
type Operation[T, R any] func(ctx context.Context, item T) (R, error)

// Run processes every item with op under the given options and returns
// the aggregated result. Item-level failures are captured in the result,
// never returned as an error; Run only fails fast for configuration
// violations (empty batch, batch over MaxBatchSize, invalid options)
// before any operation starts.
func Run[T, R any](ctx context.Context, items []T, op Operation[T, R], opts Options) (*Result[T, R], error) {
	if len(items) == 0 {
		return nil, errors.New(errors.KindConfiguration, "batch cannot be empty")
	}
	if len(items) > MaxBatchSize {
		return nil, errors.Newf(errors.KindConfiguration,
			"batch size %d exceeds maximum allowed size of %d", len(items), MaxBatchSize)
	}

	opts = opts.normalized()
	if err := opts.validate(); err != nil {
		return nil, err
	}

	policy := retry.Policy{
		MaxAttempts: opts.RetryAttempts,
		Backoff:     opts.Backoff,
	}

	agg := &aggregator[T, R]{}
	stopped := false

	for start := 0; start < len(items); start += opts.Concurrency {
		if stopped {
			// Soft stop: account for every undispatched item so the
			// result still covers the whole batch.
			for i := start; i < len(items); i++ {
				agg.addFailure(i, items[i],
					errors.New(errors.KindMaintenance, "skipped: batch stopped after earlier failure"))
			}
			break
		}

		end := start + opts.Concurrency
		if end > len(items) {
			end = len(items)
		}

		var wg sync.WaitGroup
		for i := start; i < end; i++ {
			wg.Add(1)
			go func(index int, item T) {
				defer wg.Done()

				outcome := retry.Execute(ctx, policy, func(ctx context.Context) (R, error) {
					return op(ctx, item)
				})
				if outcome.Success {
					agg.addSuccess(index, outcome.Data)
				} else {
					agg.addFailure(index, item, outcome.Err)
				}
			}(i, items[i])
		}
		wg.Wait()

		if opts.StopOnError && agg.failureCount() > 0 {
			stopped = true
		}
	}

	return agg.finalize(len(items)), nil
}
