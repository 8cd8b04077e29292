// Package promise provides the deferred-value primitive used across ostiary.
// A Future settles exactly once, either resolved with a value or rejected with
// an error, and can be observed through a channel, a blocking await, or
// settlement callbacks.
package promise

import (
	"context"
	"sync"

	"github.com/samber/oops"
)

// Future is a single-settlement deferred value. The zero value is not usable;
// create one with New, Do, Resolved or Rejected.
type Future[T any] struct {
	mu        sync.Mutex
	done      chan struct{}
	settled   bool
	value     T
	err       error
	callbacks []func(T, error)
}

// New returns a pending future.
func New[T any]() *Future[T] {
	return &Future[T]{
		done: make(chan struct{}),
	}
}

// Do runs fn immediately on the calling goroutine and returns a future settled
// from its result. The work is eager; only its observation is deferred.
func Do[T any](fn func() (T, error)) *Future[T] {
	f := New[T]()
	value, err := fn()
	if err != nil {
		f.Reject(err)
	} else {
		f.Resolve(value)
	}
	return f
}

// Resolved returns an already-resolved future.
func Resolved[T any](value T) *Future[T] {
	f := New[T]()
	f.Resolve(value)
	return f
}

// Rejected returns an already-rejected future.
func Rejected[T any](err error) *Future[T] {
	f := New[T]()
	f.Reject(err)
	return f
}

// Resolve settles the future with a value. No-op if already settled.
func (f *Future[T]) Resolve(value T) {
	f.settle(value, nil)
}

// Reject settles the future with an error. No-op if already settled.
func (f *Future[T]) Reject(err error) {
	var zero T
	if err == nil {
		err = oops.Errorf("future rejected with nil error")
	}
	f.settle(zero, err)
}

func (f *Future[T]) settle(value T, err error) {
	f.mu.Lock()
	if f.settled {
		f.mu.Unlock()
		return
	}
	f.settled = true
	f.value = value
	f.err = err
	callbacks := f.callbacks
	f.callbacks = nil
	close(f.done)
	f.mu.Unlock()

	for _, fn := range callbacks {
		fn(value, err)
	}
}

// Done is closed once the future settles.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Settled reports whether the future has settled.
func (f *Future[T]) Settled() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.settled
}

// Result returns the settled value and error without blocking. The boolean is
// false while the future is still pending.
func (f *Future[T]) Result() (T, error, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.value, f.err, f.settled
}

// Await blocks until the future settles or the context is canceled.
func (f *Future[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		f.mu.Lock()
		defer f.mu.Unlock()
		return f.value, f.err
	case <-ctx.Done():
		var zero T
		return zero, oops.Wrapf(ctx.Err(), "await canceled")
	}
}

// OnSettle registers fn to run when the future settles. If the future has
// already settled, fn runs synchronously before OnSettle returns.
func (f *Future[T]) OnSettle(fn func(T, error)) {
	f.mu.Lock()
	if !f.settled {
		f.callbacks = append(f.callbacks, fn)
		f.mu.Unlock()
		return
	}
	value, err := f.value, f.err
	f.mu.Unlock()

	fn(value, err)
}

// Then derives a new future from f. On resolution fn maps the value; on
// rejection the error passes through untouched and fn never runs.
func Then[T, U any](f *Future[T], fn func(T) (U, error)) *Future[U] {
	out := New[U]()
	f.OnSettle(func(value T, err error) {
		if err != nil {
			out.Reject(err)
			return
		}
		mapped, err := fn(value)
		if err != nil {
			out.Reject(err)
			return
		}
		out.Resolve(mapped)
	})
	return out
}

// All fans in: the returned future resolves with every member's value, in
// input order, once all members resolve, and rejects as soon as any member
// rejects. An empty input resolves immediately.
func All[T any](futures ...*Future[T]) *Future[[]T] {
	out := New[[]T]()
	if len(futures) == 0 {
		out.Resolve(nil)
		return out
	}

	var (
		mu      sync.Mutex
		values  = make([]T, len(futures))
		pending = len(futures)
	)

	for i, f := range futures {
		f.OnSettle(func(value T, err error) {
			if err != nil {
				out.Reject(err)
				return
			}

			mu.Lock()
			values[i] = value
			pending--
			settled := pending == 0
			mu.Unlock()

			if settled {
				out.Resolve(values)
			}
		})
	}

	return out
}
