package consul

import (
	"context"
	"fmt"

	"github.com/hashicorp/consul/api"
	"golang.org/x/time/rate"

	"github.com/arloliu/elector/internal/backoff"
	"github.com/arloliu/elector/types"
)

// KVWatch starts a blocking-query watch on key.
//
// The first query returns immediately and announces the current state; later
// queries block until the key's modify index changes or the wait time elapses.
func (c *Client) KVWatch(ctx context.Context, key string) (types.Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	wctx, cancel := context.WithCancel(ctx)
	w := &watch{
		client:        c,
		key:           key,
		ctx:           wctx,
		cancel:        cancel,
		limiter:       rate.NewLimiter(c.queryLimit, c.queryBurst),
		notifications: make(chan types.Notification),
		errs:          make(chan error),
		doneCh:        make(chan struct{}),
	}

	go w.run()

	return w, nil
}

type watch struct {
	client  *Client
	key     string
	limiter *rate.Limiter

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

// Stop cancels the in-flight query and waits for the watch goroutine to exit.
func (w *watch) Stop() error {
	w.cancel()
	<-w.doneCh

	return nil
}

func (w *watch) run() {
	defer close(w.doneCh)
	defer close(w.errs)
	defer close(w.notifications)

	delay := backoff.New(0)

	var index uint64
	first := true

	for {
		if err := w.limiter.Wait(w.ctx); err != nil {
			return
		}

		q := (&api.QueryOptions{WaitIndex: index, WaitTime: w.client.waitTime}).WithContext(w.ctx)
		pair, meta, err := w.client.kv.Get(w.key, q)
		if err != nil {
			if w.ctx.Err() != nil {
				return
			}

			w.client.logger.Debug("consul watch query failed", "key", w.key, "error", err)
			if !w.report(fmt.Errorf("consul: watch %s: %w", w.key, err)) {
				return
			}

			if !w.sleep(delay) {
				return
			}

			continue
		}
		delay.Reset()

		changed := first || meta.LastIndex != index
		first = false

		// An index going backwards means the agent state was reset: start over.
		if meta.LastIndex < index {
			index = 0
		} else {
			index = meta.LastIndex
		}

		if !changed {
			continue
		}

		select {
		case w.notifications <- types.Notification{Pair: toPair(pair)}:
		case <-w.ctx.Done():
			return
		}
	}
}

func (w *watch) sleep(delay *backoff.Backoff) bool {
	timer := w.client.clock.NewTimer(delay.Next())
	defer timer.Stop()

	select {
	case <-timer.Chan():
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
