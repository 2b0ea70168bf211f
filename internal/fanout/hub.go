// Package fanout delivers values from a single publisher to many channel subscribers.
package fanout

import (
	"sync"
	"sync/atomic"

	"github.com/puzpuzpuz/xsync/v4"
)

// DefaultBuffer is the per-subscriber channel capacity used when none is given.
const DefaultBuffer = 64

// Hub fans published values out to subscriber channels.
//
// Every subscriber receives every value published after it subscribed, in publish
// order. A subscriber whose buffer is full blocks the publisher until it reads,
// unsubscribes, or the hub is closed, so values are never dropped silently.
type Hub[T any] struct {
	subscribers *xsync.Map[uint64, *subscriber[T]]
	nextID      atomic.Uint64
	buffer      int

	mu     sync.RWMutex
	closed bool
}

type subscriber[T any] struct {
	ch       chan T
	done     chan struct{}
	doneOnce sync.Once

	mu     sync.Mutex
	closed bool
}

// New creates an empty hub.
//
// Parameters:
//   - buffer: Channel capacity per subscriber (DefaultBuffer if <= 0)
//
// Returns:
//   - *Hub[T]: A ready-to-use hub
func New[T any](buffer int) *Hub[T] {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}

	return &Hub[T]{
		subscribers: xsync.NewMap[uint64, *subscriber[T]](),
		buffer:      buffer,
	}
}

// Subscribe registers a new subscriber.
//
// The returned channel is closed after unsubscribe is called or the hub is closed.
// Subscribing to a closed hub returns an already closed channel.
//
// Returns:
//   - <-chan T: Channel receiving published values
//   - func(): Unsubscribe function, safe to call multiple times
//
// Example:
//
//	ch, unsubscribe := hub.Subscribe()
//	defer unsubscribe()
//	for v := range ch {
//	    handle(v)
//	}
func (h *Hub[T]) Subscribe() (<-chan T, func()) {
	sub := &subscriber[T]{
		ch:   make(chan T, h.buffer),
		done: make(chan struct{}),
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.closed {
		sub.close()
		return sub.ch, func() {}
	}

	id := h.nextID.Add(1)
	h.subscribers.Store(id, sub)

	unsubscribe := func() {
		if s, ok := h.subscribers.LoadAndDelete(id); ok {
			s.close()
		}
	}

	return sub.ch, unsubscribe
}

// Publish delivers v to every current subscriber.
//
// Publish must not be called concurrently with itself if subscribers rely on ordering.
func (h *Hub[T]) Publish(v T) {
	h.subscribers.Range(func(_ uint64, sub *subscriber[T]) bool {
		sub.send(v)
		return true
	})
}

// Close closes every subscriber channel. Later Subscribe calls get a closed channel
// and later Publish calls are no-ops.
func (h *Hub[T]) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	h.mu.Unlock()

	h.subscribers.Range(func(id uint64, sub *subscriber[T]) bool {
		h.subscribers.Delete(id)
		sub.close()

		return true
	})
}

// Len returns the number of active subscribers.
func (h *Hub[T]) Len() int {
	return h.subscribers.Size()
}

func (s *subscriber[T]) send(v T) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}

	select {
	case s.ch <- v:
		return
	default:
	}

	select {
	case s.ch <- v:
	case <-s.done:
	}
}

// close unblocks a pending send before taking the lock, then closes the channel.
func (s *subscriber[T]) close() {
	s.doneOnce.Do(func() { close(s.done) })

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	close(s.ch)
}
