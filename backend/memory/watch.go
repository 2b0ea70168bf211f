package memory

import (
	"sync"

	"github.com/arloliu/elector/types"
)

type item struct {
	notification types.Notification
	err          error
}

// watch is a subscription with an unbounded queue, so writers never block on readers.
type watch struct {
	key      string
	onStop   func()
	mu       sync.Mutex
	queue    []item
	signal   chan struct{}
	stopCh   chan struct{}
	doneCh   chan struct{}
	stopOnce sync.Once

	notifications chan types.Notification
	errs          chan error
}

func newWatch(key string, onStop func()) *watch {
	return &watch{
		key:           key,
		onStop:        onStop,
		signal:        make(chan struct{}, 1),
		stopCh:        make(chan struct{}),
		doneCh:        make(chan struct{}),
		notifications: make(chan types.Notification),
		errs:          make(chan error),
	}
}

func (w *watch) Notifications() <-chan types.Notification {
	return w.notifications
}

func (w *watch) Errors() <-chan error {
	return w.errs
}

func (w *watch) Stop() error {
	w.stopOnce.Do(func() {
		close(w.stopCh)
		w.onStop()
	})
	<-w.doneCh

	return nil
}

func (w *watch) push(it item) {
	w.mu.Lock()
	w.queue = append(w.queue, it)
	w.mu.Unlock()

	select {
	case w.signal <- struct{}{}:
	default:
	}
}

func (w *watch) pump() {
	defer close(w.doneCh)
	defer close(w.errs)
	defer close(w.notifications)

	for {
		select {
		case <-w.stopCh:
			return
		case <-w.signal:
		}

		for {
			w.mu.Lock()
			if len(w.queue) == 0 {
				w.mu.Unlock()
				break
			}
			it := w.queue[0]
			w.queue = w.queue[1:]
			w.mu.Unlock()

			if it.err != nil {
				select {
				case w.errs <- it.err:
				case <-w.stopCh:
					return
				}

				continue
			}

			select {
			case w.notifications <- it.notification:
			case <-w.stopCh:
				return
			}
		}
	}
}
