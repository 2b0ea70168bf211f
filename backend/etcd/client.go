package etcd

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/jonboulle/clockwork"
	"go.etcd.io/etcd/api/v3/mvccpb"
	"go.etcd.io/etcd/api/v3/v3rpc/rpctypes"
	clientv3 "go.etcd.io/etcd/client/v3"

	"github.com/arloliu/elector/internal/backoff"
	"github.com/arloliu/elector/internal/logger"
	"github.com/arloliu/elector/types"
)

const (
	defaultPrefix           = "elector/"
	defaultOperationTimeout = 5 * time.Second
	defaultCASRetries       = 8
)

// Client is a types.Client backed by an etcd v3 cluster.
type Client struct {
	cli *clientv3.Client

	prefix           string
	clock            clockwork.Clock
	logger           types.Logger
	janitor          bool
	operationTimeout time.Duration

	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// Compile-time assertion that Client implements types.Client.
var _ types.Client = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithPrefix sets the key prefix for session markers and lock records.
//
// Candidates competing for the same keys must use the same prefix.
func WithPrefix(prefix string) Option {
	return func(c *Client) {
		if prefix != "" {
			if !strings.HasSuffix(prefix, "/") {
				prefix += "/"
			}
			c.prefix = prefix
		}
	}
}

// WithClock sets the clock used for lock-delay deadlines and retry backoff.
func WithClock(clock clockwork.Clock) Option {
	return func(c *Client) {
		if clock != nil {
			c.clock = clock
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l types.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithJanitor enables or disables the session-marker watch that releases the
// locks of vanished sessions. Enabled by default.
func WithJanitor(enabled bool) Option {
	return func(c *Client) {
		c.janitor = enabled
	}
}

// WithOperationTimeout bounds each janitor cleanup.
func WithOperationTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.operationTimeout = d
		}
	}
}

// New wraps an etcd client.
//
// Parameters:
//   - cli: Connected etcd v3 client (owned by the caller)
//   - opts: Optional configuration
//
// Returns:
//   - *Client: Ready-to-use client; call Close when done
//
// Example:
//
//	cli, err := clientv3.New(clientv3.Config{Endpoints: []string{"127.0.0.1:2379"}})
//	if err != nil {
//	    return err
//	}
//	client := etcd.New(cli, etcd.WithPrefix("billing/"))
//	defer client.Close()
func New(cli *clientv3.Client, opts ...Option) *Client {
	c := &Client{
		cli:              cli,
		prefix:           defaultPrefix,
		clock:            clockwork.NewRealClock(),
		logger:           logger.NewNop(),
		janitor:          true,
		operationTimeout: defaultOperationTimeout,
	}

	for _, opt := range opts {
		opt(c)
	}

	c.ctx, c.cancel = context.WithCancel(context.Background())

	if c.janitor {
		c.wg.Go(c.watchSessions)
	}

	return c
}

// Close stops the janitor. The etcd client is left open.
func (c *Client) Close() {
	c.closeOnce.Do(c.cancel)
	c.wg.Wait()
}

// SessionCreate grants a lease of TTL (rounded up to whole seconds) and writes the
// session marker attached to it.
func (c *Client) SessionCreate(ctx context.Context, opts types.SessionOptions) (string, error) {
	ttl := int64(math.Ceil(opts.TTL.Seconds()))
	if ttl < 1 {
		ttl = 1
	}

	lease, err := c.cli.Grant(ctx, ttl)
	if err != nil {
		return "", fmt.Errorf("etcd: grant lease: %w", err)
	}

	rec := sessionRecord{
		ID:        formatID(lease.ID),
		Name:      opts.Name,
		TTL:       opts.TTL,
		LockDelay: opts.LockDelay,
		Behavior:  opts.Behavior,
	}

	data, err := json.Marshal(&rec)
	if err != nil {
		return "", err
	}

	if _, err := c.cli.Put(ctx, c.sessionKey(rec.ID), string(data), clientv3.WithLease(lease.ID)); err != nil {
		revokeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.operationTimeout)
		_, _ = c.cli.Revoke(revokeCtx, lease.ID)
		cancel()

		return "", fmt.Errorf("etcd: write session marker: %w", err)
	}

	return rec.ID, nil
}

// SessionRenew refreshes the session lease once.
func (c *Client) SessionRenew(ctx context.Context, id string, _ string) error {
	leaseID, err := parseID(id)
	if err != nil {
		return err
	}

	if _, err := c.cli.KeepAliveOnce(ctx, leaseID); err != nil {
		if isLeaseNotFound(err) {
			return fmt.Errorf("%w: %s", types.ErrSessionNotFound, id)
		}

		return fmt.Errorf("etcd: keepalive: %w", err)
	}

	return nil
}

// SessionDestroy revokes the session lease and releases every lock it held.
// Destroying an unknown session succeeds.
func (c *Client) SessionDestroy(ctx context.Context, id string, _ string) error {
	leaseID, err := parseID(id)
	if err != nil {
		// Not an ID this backend ever issued.
		return nil
	}

	if _, err := c.cli.Revoke(ctx, leaseID); err != nil && !isLeaseNotFound(err) {
		return fmt.Errorf("etcd: revoke lease: %w", err)
	}

	return c.releaseHeld(ctx, id)
}

// getSession reads the marker of a live session.
func (c *Client) getSession(ctx context.Context, id string) (*sessionRecord, error) {
	resp, err := c.cli.Get(ctx, c.sessionKey(id))
	if err != nil {
		return nil, fmt.Errorf("etcd: get session: %w", err)
	}
	if len(resp.Kvs) == 0 {
		return nil, fmt.Errorf("%w: %s", types.ErrSessionNotFound, id)
	}

	var rec sessionRecord
	if err := json.Unmarshal(resp.Kvs[0].Value, &rec); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", types.ErrSessionNotFound, id, err)
	}

	return &rec, nil
}

// watchSessions releases the locks of every session whose marker is deleted.
func (c *Client) watchSessions() {
	delay := backoff.New(0)
	sessionsPrefix := c.prefix + "sessions/"

	for {
		wctx, cancel := context.WithCancel(clientv3.WithRequireLeader(c.ctx))
		wch := c.cli.Watch(wctx, sessionsPrefix, clientv3.WithPrefix(), clientv3.WithFilterPut())

		for wresp := range wch {
			if err := wresp.Err(); err != nil {
				c.logger.Warn("session marker watch failed", "error", err)
				break
			}
			delay.Reset()

			for _, ev := range wresp.Events {
				if ev.Type != mvccpb.DELETE {
					continue
				}

				id := strings.TrimPrefix(string(ev.Kv.Key), sessionsPrefix)
				c.logger.Debug("session vanished, releasing its locks", "session", id)

				ctx, opCancel := context.WithTimeout(c.ctx, c.operationTimeout)
				if err := c.releaseHeld(ctx, id); err != nil {
					c.logger.Warn("failed to release locks of vanished session", "session", id, "error", err)
				}
				opCancel()
			}
		}
		cancel()

		if c.ctx.Err() != nil {
			return
		}

		timer := c.clock.NewTimer(delay.Next())
		select {
		case <-c.ctx.Done():
			timer.Stop()
			return
		case <-timer.Chan():
		}
	}
}

func (c *Client) sessionKey(id string) string {
	return c.prefix + "sessions/" + id
}

func (c *Client) lockKey(key string) string {
	return c.prefix + "locks/" + key
}

func formatID(id clientv3.LeaseID) string {
	return strconv.FormatInt(int64(id), 16)
}

func parseID(id string) (clientv3.LeaseID, error) {
	n, err := strconv.ParseInt(id, 16, 64)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%w: %q", types.ErrSessionNotFound, id)
	}

	return clientv3.LeaseID(n), nil
}

func isLeaseNotFound(err error) bool {
	return errors.Is(err, rpctypes.ErrLeaseNotFound) || errors.Is(err, rpctypes.ErrGRPCLeaseNotFound)
}
