// Package future provides a value that is completed exactly once.
package future

import (
	"context"
	"sync"
)

// Chan is a future that completes with a single value of type T.
// Only the first call to Complete has an effect, which makes it safe
// for racing producers, e.g. a backend handler and a dial timeout.
type Chan[T any] struct {
	once  sync.Once
	done  chan struct{}
	value T
}

// NewChan returns a new uncompleted Chan.
func NewChan[T any]() *Chan[T] {
	return &Chan[T]{done: make(chan struct{})}
}

// Complete sets the result once and reports whether this call completed the future.
func (f *Chan[T]) Complete(result T) (completed bool) {
	f.once.Do(func() {
		f.value = result
		close(f.done)
		completed = true
	})
	return completed
}

// Get blocks until the result is available or ctx is canceled.
func (f *Chan[T]) Get(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.value, nil
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
