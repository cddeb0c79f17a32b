// Package waiter implements keyed one-shot completion handles. A
// long-poll request registers a handle and parks its goroutine on
// Wait; whichever event arrives first (signal, failure, timeout or
// caller cancellation) completes the handle exactly once.
package waiter

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrTimeout is returned by Wait when neither a signal nor a failure
// arrived within the deadline.
var ErrTimeout = errors.New("waiter: timed out")

type result[T any] struct {
	value T
	err   error
}

// Handle is a single waiter's completion slot. A handle completes at
// most once; later signals are dropped.
type Handle[T any] struct {
	key  string
	reg  *Registry[T]
	once sync.Once
	ch   chan result[T]
}

func (h *Handle[T]) complete(r result[T]) {
	h.once.Do(func() { h.ch <- r })
}

// Wait blocks until the handle is completed, the timeout elapses or ctx
// is cancelled. The handle is always deregistered before returning.
func (h *Handle[T]) Wait(ctx context.Context, timeout time.Duration) (T, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	defer h.reg.remove(h.key, h)

	var zero T
	select {
	case r := <-h.ch:
		return r.value, r.err
	case <-timer.C:
		return zero, ErrTimeout
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// Discard releases a handle that will never be waited on. It completes
// the handle and deregisters it only if it still owns its key, so a
// waiter registered for the same key in the meantime keeps its slot.
func (h *Handle[T]) Discard() {
	h.complete(result[T]{err: ErrTimeout})
	h.reg.remove(h.key, h)
}

// Registry tracks at most one pending handle per key.
type Registry[T any] struct {
	mu      sync.Mutex
	handles map[string]*Handle[T]
}

func NewRegistry[T any]() *Registry[T] {
	return &Registry[T]{handles: make(map[string]*Handle[T])}
}

// Register creates a handle for key. If a handle is already registered
// for the key it is failed with ErrTimeout and replaced; a key never
// has two live waiters.
func (r *Registry[T]) Register(key string) *Handle[T] {
	h := &Handle[T]{
		key: key,
		reg: r,
		ch:  make(chan result[T], 1),
	}

	r.mu.Lock()
	prev := r.handles[key]
	r.handles[key] = h
	r.mu.Unlock()

	if prev != nil {
		prev.complete(result[T]{err: ErrTimeout})
	}
	return h
}

// Signal completes the handle registered for key with a value. Reports
// whether a waiter was present.
func (r *Registry[T]) Signal(key string, value T) bool {
	if h := r.take(key); h != nil {
		h.complete(result[T]{value: value})
		return true
	}
	return false
}

// Fail completes the handle registered for key with an error.
func (r *Registry[T]) Fail(key string, err error) bool {
	if h := r.take(key); h != nil {
		h.complete(result[T]{err: err})
		return true
	}
	return false
}

func (r *Registry[T]) take(key string) *Handle[T] {
	r.mu.Lock()
	defer r.mu.Unlock()

	h, ok := r.handles[key]
	if !ok {
		return nil
	}
	delete(r.handles, key)
	return h
}

// remove drops the handle only if it is still the registered one, so a
// timed-out waiter cannot evict its replacement.
func (r *Registry[T]) remove(key string, h *Handle[T]) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.handles[key] == h {
		delete(r.handles, key)
	}
}

// Pending reports how many keys currently have a registered waiter.
func (r *Registry[T]) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.handles)
}
