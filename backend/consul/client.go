package consul

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/consul/api"
	"github.com/jonboulle/clockwork"
	"golang.org/x/time/rate"

	"github.com/arloliu/elector/internal/logger"
	"github.com/arloliu/elector/types"
)

const (
	defaultWaitTime   = 5 * time.Minute
	defaultQueryLimit = rate.Limit(20)
	defaultQueryBurst = 5
)

// Client is a types.Client backed by a Consul agent.
type Client struct {
	kv       *api.KV
	sessions *api.Session

	waitTime   time.Duration
	queryLimit rate.Limit
	queryBurst int
	clock      clockwork.Clock
	logger     types.Logger
}

// Compile-time assertion that Client implements types.Client.
var _ types.Client = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithWaitTime sets the maximum duration of a blocking watch query.
func WithWaitTime(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.waitTime = d
		}
	}
}

// WithQueryRate limits how often a single watch may query the agent.
func WithQueryRate(limit rate.Limit, burst int) Option {
	return func(c *Client) {
		if limit > 0 && burst > 0 {
			c.queryLimit = limit
			c.queryBurst = burst
		}
	}
}

// WithClock sets the clock used for watch retry backoff.
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

// New creates a Client from a Consul API configuration.
//
// Parameters:
//   - cfg: Consul API configuration, nil for api.DefaultConfig() (honors CONSUL_HTTP_ADDR etc.)
//   - opts: Optional configuration
//
// Returns:
//   - *Client: Ready-to-use client
//   - error: Invalid API configuration
//
// Example:
//
//	client, err := consul.New(&api.Config{Address: "127.0.0.1:8500"})
//	if err != nil {
//	    return err
//	}
//	e, err := elector.Campaign(ctx, cfg, client)
func New(cfg *api.Config, opts ...Option) (*Client, error) {
	if cfg == nil {
		cfg = api.DefaultConfig()
	}

	apiClient, err := api.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("consul: create API client: %w", err)
	}

	return NewFromAPI(apiClient, opts...), nil
}

// NewFromAPI wraps an existing Consul API client.
func NewFromAPI(apiClient *api.Client, opts ...Option) *Client {
	c := &Client{
		kv:         apiClient.KV(),
		sessions:   apiClient.Session(),
		waitTime:   defaultWaitTime,
		queryLimit: defaultQueryLimit,
		queryBurst: defaultQueryBurst,
		clock:      clockwork.NewRealClock(),
		logger:     logger.NewNop(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// SessionCreate creates a Consul session.
//
// TTL and LockDelay are sent in Consul's duration form ("10s", "15000ms").
func (c *Client) SessionCreate(ctx context.Context, opts types.SessionOptions) (string, error) {
	entry := &api.SessionEntry{
		Name:      opts.Name,
		LockDelay: opts.LockDelay,
		Behavior:  sessionBehavior(opts.Behavior),
	}
	if opts.TTL > 0 {
		entry.TTL = opts.TTL.String()
	}

	id, _, err := c.sessions.Create(entry, writeOptions(ctx, opts.Datacenter))
	if err != nil {
		return "", fmt.Errorf("consul: create session: %w", err)
	}

	return id, nil
}

// SessionRenew renews a Consul session.
func (c *Client) SessionRenew(ctx context.Context, id string, datacenter string) error {
	entry, _, err := c.sessions.Renew(id, writeOptions(ctx, datacenter))
	if err != nil {
		return fmt.Errorf("consul: renew session: %w", err)
	}

	// The agent answers 404 for sessions it no longer knows.
	if entry == nil {
		return fmt.Errorf("%w: %s", types.ErrSessionNotFound, id)
	}

	return nil
}

// SessionDestroy destroys a Consul session, releasing every lock it holds.
func (c *Client) SessionDestroy(ctx context.Context, id string, datacenter string) error {
	if _, err := c.sessions.Destroy(id, writeOptions(ctx, datacenter)); err != nil {
		return fmt.Errorf("consul: destroy session: %w", err)
	}

	return nil
}

// KVGet returns the pair stored at key, or nil when the key is absent.
func (c *Client) KVGet(ctx context.Context, key string) (*types.KVPair, error) {
	pair, _, err := c.kv.Get(key, (&api.QueryOptions{}).WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("consul: get %s: %w", key, err)
	}

	return toPair(pair), nil
}

// KVAcquire performs a PUT ?acquire=<session> on key.
func (c *Client) KVAcquire(ctx context.Context, key string, value []byte, sessionID string) (bool, error) {
	ok, _, err := c.kv.Acquire(&api.KVPair{Key: key, Value: value, Session: sessionID}, writeOptions(ctx, ""))
	if err != nil {
		return false, classify(err, sessionID)
	}

	return ok, nil
}

// KVRelease performs a PUT ?release=<session> on key.
func (c *Client) KVRelease(ctx context.Context, key string, value []byte, sessionID string) (bool, error) {
	ok, _, err := c.kv.Release(&api.KVPair{Key: key, Value: value, Session: sessionID}, writeOptions(ctx, ""))
	if err != nil {
		return false, classify(err, sessionID)
	}

	return ok, nil
}

func writeOptions(ctx context.Context, datacenter string) *api.WriteOptions {
	return (&api.WriteOptions{Datacenter: datacenter}).WithContext(ctx)
}

func sessionBehavior(behavior string) string {
	if behavior == api.SessionBehaviorDelete {
		return api.SessionBehaviorDelete
	}

	return api.SessionBehaviorRelease
}

// classify maps Consul's "invalid session" rejection onto ErrSessionNotFound.
func classify(err error, sessionID string) error {
	if err == nil {
		return nil
	}

	if strings.Contains(err.Error(), "invalid session") {
		return fmt.Errorf("%w: %s: %w", types.ErrSessionNotFound, sessionID, err)
	}

	return fmt.Errorf("consul: %w", err)
}

func toPair(p *api.KVPair) *types.KVPair {
	if p == nil {
		return nil
	}

	return &types.KVPair{
		Key:         p.Key,
		Value:       p.Value,
		Session:     p.Session,
		ModifyIndex: p.ModifyIndex,
	}
}
