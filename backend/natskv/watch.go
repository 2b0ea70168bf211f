package natskv

import (
	"context"
	"fmt"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/arloliu/elector/internal/backoff"
	"github.com/arloliu/elector/internal/kvutil"
	"github.com/arloliu/elector/internal/natsutil"
	"github.com/arloliu/elector/types"
)

// KVWatch subscribes to changes of key.
//
// The current state is delivered first; an absent key is announced as a nil pair
// once the initial replay completes. When the underlying JetStream watcher ends
// unexpectedly the error is reported and the watch is re-established with
// jittered backoff, replaying the current state again.
func (c *Client) KVWatch(ctx context.Context, key string) (types.Subscription, error) {
	safeKey := kvutil.SafeKey(key)

	kw, err := c.locks.Watch(ctx, safeKey)
	if err != nil {
		return nil, fmt.Errorf("natskv: watch %s: %w", key, err)
	}

	wctx, cancel := context.WithCancel(ctx)
	w := &watch{
		client:        c,
		key:           key,
		safeKey:       safeKey,
		ctx:           wctx,
		cancel:        cancel,
		notifications: make(chan types.Notification),
		errs:          make(chan error),
		doneCh:        make(chan struct{}),
	}

	go w.run(kw)

	return w, nil
}

type watch struct {
	client  *Client
	key     string
	safeKey string

	ctx    context.Context
	cancel context.CancelFunc
	doneCh chan struct{}

	notifications chan types.Notification
	errs          chan error
}

func (w *watch) Notifications() <-chan types.Notification {
	return w.notifications
}

func (w *watch) Errors() <-chan error {
	return w.errs
}

// Stop cancels the watch and waits for its goroutine to exit.
func (w *watch) Stop() error {
	w.cancel()
	<-w.doneCh

	return nil
}

func (w *watch) run(kw jetstream.KeyWatcher) {
	defer close(w.doneCh)
	defer close(w.errs)
	defer close(w.notifications)

	delay := backoff.New(0)

	for {
		interrupted := w.consume(kw)
		_ = kw.Stop()

		if !interrupted || w.ctx.Err() != nil {
			return
		}

		if !w.report(fmt.Errorf("natskv: watch on %s interrupted", w.key)) {
			return
		}

		for {
			timer := w.client.clock.NewTimer(delay.Next())
			select {
			case <-w.ctx.Done():
				timer.Stop()
				return
			case <-timer.Chan():
			}

			var err error
			kw, err = w.client.locks.Watch(w.ctx, w.safeKey)
			if err == nil {
				delay.Reset()
				break
			}

			if natsutil.IsConnectivityError(err) {
				w.client.logger.Debug("watch re-establish failed, NATS unreachable", "key", w.key, "error", err)
			} else {
				w.client.logger.Warn("watch re-establish failed", "key", w.key, "error", err)
			}

			if !w.report(fmt.Errorf("natskv: re-watch %s: %w", w.key, err)) {
				return
			}
		}
	}
}

// consume forwards updates until the watcher ends. It returns true when the
// watcher ended on its own rather than through cancellation.
func (w *watch) consume(kw jetstream.KeyWatcher) bool {
	seen := false

	for {
		select {
		case <-w.ctx.Done():
			return false

		case entry, ok := <-kw.Updates():
			if !ok {
				return w.ctx.Err() == nil
			}

			if entry == nil {
				// End of initial replay: announce an absent key.
				if !seen && !w.deliver(types.Notification{}) {
					return false
				}
				seen = true

				continue
			}

			seen = true
			if !w.deliver(types.Notification{Pair: pairFromEntry(entry)}) {
				return false
			}
		}
	}
}

func (w *watch) deliver(n types.Notification) bool {
	select {
	case w.notifications <- n:
		return true
	case <-w.ctx.Done():
		return false
	}
}

func (w *watch) report(err error) bool {
	select {
	case w.errs <- err:
		return true
	case <-w.ctx.Done():
		return false
	}
}
