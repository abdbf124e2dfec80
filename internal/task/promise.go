package task

import "context"

// Promise is the result of an operation running on its own goroutine. It
// resolves exactly once, either to a value or to an error.
type Promise[T any] struct {
	done chan struct{}
	val  T
	err  error
}

// Go runs fn on a new goroutine and returns a Promise for its result. A
// panic in fn rejects the Promise with a *PanicError.
func Go[T any](fn func() (T, error)) *Promise[T] {
	p := &Promise[T]{done: make(chan struct{})}
	go func() {
		defer close(p.done)
		defer func() {
			if r := recover(); r != nil {
				p.err = &PanicError{Value: r}
			}
		}()
		p.val, p.err = fn()
	}()
	return p
}

// Resolved returns a Promise that is already settled with v.
func Resolved[T any](v T) *Promise[T] {
	p := &Promise[T]{done: make(chan struct{}), val: v}
	close(p.done)
	return p
}

// Rejected returns a Promise that is already settled with err.
func Rejected[T any](err error) *Promise[T] {
	p := &Promise[T]{done: make(chan struct{}), err: err}
	close(p.done)
	return p
}

// Done returns a channel that is closed once the Promise settles.
func (p *Promise[T]) Done() <-chan struct{} {
	return p.done
}

// Await blocks until the Promise settles or ctx is done. Abandoning a
// Promise through ctx does not stop the underlying goroutine.
func (p *Promise[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-p.done:
		return p.val, p.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
