package testing

import (
	"sync"
	"testing"
	"time"
)

// Recorder drains an event channel in the background and keeps every value.
type Recorder[T any] struct {
	mu     sync.Mutex
	values []T
	closed bool
	notify chan struct{}
	done   chan struct{}
}

// NewRecorder starts draining ch until it is closed.
//
// Parameters:
//   - t: Test the recorder belongs to
//   - ch: Channel to drain
//
// Returns:
//   - *Recorder[T]: Recorder collecting values from ch
//
// Example:
//
//	events, unsubscribe := e.Events()
//	defer unsubscribe()
//	rec := electortest.NewRecorder(t, events)
//	rec.WaitFor(t, 5*time.Second, func(evs []elector.ElectionEvent) bool {
//	    return len(evs) > 0
//	})
func NewRecorder[T any](t testing.TB, ch <-chan T) *Recorder[T] {
	t.Helper()

	r := &Recorder[T]{
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}

	go func() {
		defer close(r.done)
		for v := range ch {
			r.mu.Lock()
			r.values = append(r.values, v)
			r.mu.Unlock()
			r.signal()
		}

		r.mu.Lock()
		r.closed = true
		r.mu.Unlock()
		r.signal()
	}()

	return r
}

// Values returns a copy of the values recorded so far.
func (r *Recorder[T]) Values() []T {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]T(nil), r.values...)
}

// Closed reports whether the source channel was closed.
func (r *Recorder[T]) Closed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.closed
}

// WaitFor blocks until cond holds for the recorded values or timeout elapses.
//
// Fails the test on timeout.
//
// Parameters:
//   - t: Test to fail
//   - timeout: Maximum wait
//   - cond: Predicate over all values recorded so far
//
// Returns:
//   - []T: The values that satisfied cond
func (r *Recorder[T]) WaitFor(t testing.TB, timeout time.Duration, cond func([]T) bool) []T {
	t.Helper()

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	for {
		values := r.Values()
		if cond(values) {
			return values
		}

		select {
		case <-r.notify:
		case <-deadline.C:
			t.Fatalf("condition not met within %v, recorded %d values: %v", timeout, len(values), values)
			return nil
		}
	}
}

// WaitLen blocks until at least n values were recorded.
func (r *Recorder[T]) WaitLen(t testing.TB, n int, timeout time.Duration) []T {
	t.Helper()

	return r.WaitFor(t, timeout, func(values []T) bool { return len(values) >= n })
}

// WaitClosed blocks until the source channel is closed.
func (r *Recorder[T]) WaitClosed(t testing.TB, timeout time.Duration) {
	t.Helper()

	select {
	case <-r.done:
	case <-time.After(timeout):
		t.Fatalf("channel not closed within %v", timeout)
	}
}

func (r *Recorder[T]) signal() {
	select {
	case r.notify <- struct{}{}:
	default:
	}
}
