package infuse

import (
	"context"
	"sync"
)

// Thenable is a value that resolves later. Expressions carrying the async
// marker are expected to evaluate to a Thenable; the runtime awaits
// constants synchronously (in declaration order) and resolves part values
// on a separate goroutine, applying them only if the element is still live.
type Thenable interface {
	Await(ctx context.Context) (any, error)
}

// Promise is the basic Thenable: resolved or rejected exactly once,
// awaitable any number of times.
type Promise struct {
	once sync.Once
	done chan struct{}
	val  any
	err  error
}

// NewPromise returns an unresolved promise.
func NewPromise() *Promise {
	return &Promise{done: make(chan struct{})}
}

// Resolve fulfills the promise. Calls after the first settle are ignored.
func (p *Promise) Resolve(v any) {
	p.once.Do(func() {
		p.val = v
		close(p.done)
	})
}

// Reject fails the promise. Calls after the first settle are ignored.
func (p *Promise) Reject(err error) {
	p.once.Do(func() {
		p.err = err
		close(p.done)
	})
}

// Await blocks until the promise settles or ctx is done.
func (p *Promise) Await(ctx context.Context) (any, error) {
	select {
	case <-p.done:
		return p.val, p.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Go runs fn on its own goroutine and returns a promise settled with its
// result.
func Go(fn func() (any, error)) *Promise {
	p := NewPromise()
	go func() {
		v, err := fn()
		if err != nil {
			p.Reject(err)
			return
		}
		p.Resolve(v)
	}()
	return p
}
