package batch

import (
	"sync"

	"github.com/mediastash/mediastash/pkg/errors"
)

// Success is one item's successful outcome, tagged with the item's
// original index in the submitted batch.
type Success[R any] struct {
	Index int `json:"index"`
	Value R   `json:"value"`
}

// Failure records one item's terminal failure with enough detail for the
// caller to act without re-deriving the original error.
type Failure[T any] struct {
	Item    T                `json:"item"`
	Index   int              `json:"index"`
	Kind    errors.ErrorKind `json:"kind"`
	Message string           `json:"message"`
}

// Result is the settled outcome of a whole batch. Entry order in
// Successful and Failed is completion order, not submission order; use
// the Index tags for positional correspondence.
type Result[T, R any] struct {
	Successful     []Success[R] `json:"successful"`
	Failed         []Failure[T] `json:"failed"`
	TotalProcessed int          `json:"total_processed"`
	SuccessCount   int          `json:"success_count"`
	FailureCount   int          `json:"failure_count"`
}

// aggregator accumulates per-item outcomes. Multiple items in a group
// complete concurrently, so every write is guarded by the mutex.
type aggregator[T, R any] struct {
	mu         sync.Mutex
	successful []Success[R]
	failed     []Failure[T]
}

func (a *aggregator[T, R]) addSuccess(index int, value R) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.successful = append(a.successful, Success[R]{Index: index, Value: value})
}

func (a *aggregator[T, R]) addFailure(index int, item T, err *errors.StashError) {
	kind := errors.KindStorage
	message := "operation failed"
	if err != nil {
		kind = err.Kind
		message = err.Message
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.failed = append(a.failed, Failure[T]{Item: item, Index: index, Kind: kind, Message: message})
}

func (a *aggregator[T, R]) failureCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.failed)
}

func (a *aggregator[T, R]) finalize(total int) *Result[T, R] {
	a.mu.Lock()
	defer a.mu.Unlock()
	return &Result[T, R]{
		Successful:     a.successful,
		Failed:         a.failed,
		TotalProcessed: total,
		SuccessCount:   len(a.successful),
		FailureCount:   len(a.failed),
	}
}
