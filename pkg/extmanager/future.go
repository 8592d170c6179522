// SPDX-License-Identifier: MPL-2.0

package extmanager

import "context"

// Future holds the result of an asynchronous load. Futures returned by the
// Manager are already complete; Get never blocks on them.
type Future[T any] struct {
	done  chan struct{}
	value T
	err   error
}

func completed[T any](value T, err error) *Future[T] {
	f := &Future[T]{done: make(chan struct{}), value: value, err: err}
	close(f.done)
	return f
}

// Done is closed once the result is available.
func (f *Future[T]) Done() <-chan struct{} { return f.done }

// Get waits for the result or for ctx to end.
func (f *Future[T]) Get(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.value, f.err
	default:
	}
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
