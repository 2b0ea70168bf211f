package etcd

import (
	"context"
	"errors"
	"fmt"

	"go.etcd.io/etcd/api/v3/mvccpb"
	clientv3 "go.etcd.io/etcd/client/v3"

	"github.com/arloliu/elector/internal/backoff"
	"github.com/arloliu/elector/types"
)

// KVWatch reads the current state of key, delivers it, then watches from the next
// revision. A failed or compacted watch is reported and restarted from a fresh read.
func (c *Client) KVWatch(ctx context.Context, key string) (types.Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	wctx, cancel := context.WithCancel(ctx)
	w := &watch{
		client:        c,
		key:           key,
		lockKey:       c.lockKey(key),
		ctx:           wctx,
		cancel:        cancel,
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
	lockKey string

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

func (w *watch) run() {
	defer close(w.doneCh)
	defer close(w.errs)
	defer close(w.notifications)

	delay := backoff.New(0)

	for {
		err := w.watchOnce(delay)
		if w.ctx.Err() != nil {
			return
		}

		if !w.report(fmt.Errorf("etcd: watch %s: %w", w.key, err)) {
			return
		}

		timer := w.client.clock.NewTimer(delay.Next())
		select {
		case <-w.ctx.Done():
			timer.Stop()
			return
		case <-timer.Chan():
		}
	}
}

// watchOnce delivers the current state and follows changes until the watch fails.
func (w *watch) watchOnce(delay *backoff.Backoff) error {
	resp, err := w.client.cli.Get(w.ctx, w.lockKey)
	if err != nil {
		return err
	}

	var current types.Notification
	if len(resp.Kvs) > 0 {
		current.Pair = pairFromKV(resp.Kvs[0])
	}
	if !w.deliver(current) {
		return w.ctx.Err()
	}
	delay.Reset()

	wctx, cancel := context.WithCancel(clientv3.WithRequireLeader(w.ctx))
	defer cancel()

	wch := w.client.cli.Watch(wctx, w.lockKey, clientv3.WithRev(resp.Header.Revision+1))
	for wresp := range wch {
		if err := wresp.Err(); err != nil {
			return err
		}

		for _, ev := range wresp.Events {
			var n types.Notification
			if ev.Type == mvccpb.PUT {
				n.Pair = pairFromKV(ev.Kv)
			}

			if !w.deliver(n) {
				return w.ctx.Err()
			}
		}
	}

	if err := w.ctx.Err(); err != nil {
		return err
	}

	return errors.New("watch channel closed")
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
