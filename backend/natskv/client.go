package natskv

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/arloliu/elector/internal/kvutil"
	"github.com/arloliu/elector/internal/logger"
	"github.com/arloliu/elector/internal/natsutil"
	"github.com/arloliu/elector/types"
)

const (
	defaultBucketPrefix     = "elector"
	defaultJanitorInterval  = time.Second
	defaultOperationTimeout = 5 * time.Second
	defaultCASRetries       = 8
)

// Client is a types.Client backed by two JetStream KV buckets.
type Client struct {
	sessions jetstream.KeyValue
	locks    jetstream.KeyValue

	bucketPrefix     string
	replicas         int
	storage          jetstream.StorageType
	clock            clockwork.Clock
	logger           types.Logger
	janitorInterval  time.Duration
	operationTimeout time.Duration

	closeOnce sync.Once
	stopCh    chan struct{}
	wg        sync.WaitGroup
}

// Compile-time assertion that Client implements types.Client.
var _ types.Client = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithBucketPrefix sets the prefix of the sessions and locks bucket names.
//
// Candidates competing for the same keys must use the same prefix.
func WithBucketPrefix(prefix string) Option {
	return func(c *Client) {
		if prefix != "" {
			c.bucketPrefix = prefix
		}
	}
}

// WithReplicas sets the replica count used when the buckets are created.
func WithReplicas(replicas int) Option {
	return func(c *Client) {
		if replicas > 0 {
			c.replicas = replicas
		}
	}
}

// WithStorage sets the storage type used when the buckets are created.
func WithStorage(storage jetstream.StorageType) Option {
	return func(c *Client) {
		c.storage = storage
	}
}

// WithClock sets the clock used for session deadlines, lock-delay and the janitor.
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

// WithJanitorInterval sets how often expired sessions are swept. Zero disables the janitor.
func WithJanitorInterval(d time.Duration) Option {
	return func(c *Client) {
		if d >= 0 {
			c.janitorInterval = d
		}
	}
}

// WithOperationTimeout bounds each janitor sweep.
func WithOperationTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.operationTimeout = d
		}
	}
}

// New creates a Client over an established NATS connection.
//
// The sessions and locks buckets are created when missing and opened otherwise,
// so several candidates may start concurrently.
//
// Parameters:
//   - ctx: Context for bucket creation
//   - nc: Connected NATS client with JetStream available
//   - opts: Optional configuration
//
// Returns:
//   - *Client: Ready-to-use client; call Close when done
//   - error: JetStream or bucket creation error
//
// Example:
//
//	nc, _ := nats.Connect(nats.DefaultURL)
//	client, err := natskv.New(ctx, nc, natskv.WithBucketPrefix("billing"))
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
func New(ctx context.Context, nc *nats.Conn, opts ...Option) (*Client, error) {
	if nc == nil {
		return nil, errors.New("natskv: nil NATS connection")
	}

	c := &Client{
		bucketPrefix:     defaultBucketPrefix,
		replicas:         1,
		storage:          jetstream.FileStorage,
		clock:            clockwork.NewRealClock(),
		logger:           logger.NewNop(),
		janitorInterval:  defaultJanitorInterval,
		operationTimeout: defaultOperationTimeout,
		stopCh:           make(chan struct{}),
	}

	for _, opt := range opts {
		opt(c)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		return nil, fmt.Errorf("natskv: failed to create JetStream context: %w", err)
	}

	c.sessions, err = kvutil.EnsureKVBucketWithRetry(ctx, js, c.bucketConfig("sessions"), 3)
	if err != nil {
		return nil, err
	}

	c.locks, err = kvutil.EnsureKVBucketWithRetry(ctx, js, c.bucketConfig("locks"), 3)
	if err != nil {
		return nil, err
	}

	if c.janitorInterval > 0 {
		ticker := c.clock.NewTicker(c.janitorInterval)
		c.wg.Go(func() { c.janitor(ticker) })
	}

	c.logger.Debug("natskv client ready",
		"sessions_bucket", c.sessions.Bucket(),
		"locks_bucket", c.locks.Bucket(),
		"janitor_interval", c.janitorInterval,
	)

	return c, nil
}

func (c *Client) bucketConfig(suffix string) jetstream.KeyValueConfig {
	return jetstream.KeyValueConfig{
		Bucket:      c.bucketPrefix + "-" + suffix,
		Description: "elector " + suffix,
		History:     1,
		Storage:     c.storage,
		Replicas:    c.replicas,
	}
}

// Close stops the janitor. The NATS connection is left open.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.stopCh)
	})
	c.wg.Wait()
}

// SessionCreate stores a new session record and returns its ID.
func (c *Client) SessionCreate(ctx context.Context, opts types.SessionOptions) (string, error) {
	rec := sessionRecord{
		ID:        uuid.NewString(),
		Name:      opts.Name,
		TTL:       opts.TTL,
		LockDelay: opts.LockDelay,
		Behavior:  opts.Behavior,
	}
	rec.extend(c.clock.Now())

	data, err := json.Marshal(&rec)
	if err != nil {
		return "", err
	}

	if _, err := c.sessions.Create(ctx, rec.ID, data); err != nil {
		return "", fmt.Errorf("natskv: create session: %w", err)
	}

	return rec.ID, nil
}

// SessionRenew pushes the expiry deadline of a live session forward by its TTL.
//
// An expired record is invalidated on the spot and reported as not found.
func (c *Client) SessionRenew(ctx context.Context, id string, _ string) error {
	for range defaultCASRetries {
		entry, rec, err := c.getSession(ctx, id)
		if err != nil {
			return err
		}

		now := c.clock.Now()
		if rec.expired(now) {
			if err := c.expireSession(ctx, rec, entry.Revision()); err != nil {
				c.logger.Warn("failed to invalidate expired session", "session", id, "error", err)
			}

			return fmt.Errorf("%w: %s", types.ErrSessionNotFound, id)
		}

		rec.extend(now)
		data, err := json.Marshal(rec)
		if err != nil {
			return err
		}

		_, err = c.sessions.Update(ctx, id, data, entry.Revision())
		if err == nil {
			return nil
		}
		if !natsutil.IsRevisionConflict(err) {
			return fmt.Errorf("natskv: renew session: %w", err)
		}
	}

	return fmt.Errorf("natskv: renew session %s: too many concurrent updates", id)
}

// SessionDestroy deletes a session and releases every lock it holds.
// Destroying an unknown session succeeds.
func (c *Client) SessionDestroy(ctx context.Context, id string, _ string) error {
	_, rec, err := c.getSession(ctx, id)
	if errors.Is(err, types.ErrSessionNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	if err := c.sessions.Delete(ctx, id); err != nil && !errors.Is(err, jetstream.ErrKeyNotFound) {
		return fmt.Errorf("natskv: destroy session: %w", err)
	}

	return c.releaseHeld(ctx, rec)
}

// Sweep runs one janitor pass: every expired session is deleted and its locks
// are released under lock-delay.
//
// The janitor calls Sweep on its own; it is exported for operators and tests that
// run with the janitor disabled.
func (c *Client) Sweep(ctx context.Context) error {
	ids, err := listKeys(ctx, c.sessions)
	if err != nil {
		return err
	}

	now := c.clock.Now()

	var errs []error
	for _, id := range ids {
		entry, rec, err := c.getSession(ctx, id)
		if errors.Is(err, types.ErrSessionNotFound) {
			continue
		}
		if err != nil {
			errs = append(errs, err)
			continue
		}

		if !rec.expired(now) {
			continue
		}

		c.logger.Debug("sweeping expired session", "session", id, "name", rec.Name)
		if err := c.expireSession(ctx, rec, entry.Revision()); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

func (c *Client) janitor(ticker clockwork.Ticker) {
	defer ticker.Stop()

	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.Chan():
			ctx, cancel := context.WithTimeout(context.Background(), c.operationTimeout)
			if err := c.Sweep(ctx); err != nil {
				c.logger.Warn("session sweep failed", "error", err)
			}
			cancel()
		}
	}
}

// getSession reads and decodes a session record.
//
// Missing and undecodable records are both reported as ErrSessionNotFound.
func (c *Client) getSession(ctx context.Context, id string) (jetstream.KeyValueEntry, *sessionRecord, error) {
	entry, err := c.sessions.Get(ctx, id)
	if errors.Is(err, jetstream.ErrKeyNotFound) || errors.Is(err, jetstream.ErrInvalidKey) {
		return nil, nil, fmt.Errorf("%w: %s", types.ErrSessionNotFound, id)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("natskv: get session: %w", err)
	}

	rec, err := decodeSession(entry)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %s: %w", types.ErrSessionNotFound, id, err)
	}

	return entry, rec, nil
}

// liveSession returns the session record if it exists and has not expired.
func (c *Client) liveSession(ctx context.Context, id string) (*sessionRecord, error) {
	if id == "" {
		return nil, types.ErrNoSession
	}

	entry, rec, err := c.getSession(ctx, id)
	if err != nil {
		return nil, err
	}

	if rec.expired(c.clock.Now()) {
		if err := c.expireSession(ctx, rec, entry.Revision()); err != nil {
			c.logger.Warn("failed to invalidate expired session", "session", id, "error", err)
		}

		return nil, fmt.Errorf("%w: %s", types.ErrSessionNotFound, id)
	}

	return rec, nil
}

// expireSession deletes an expired session unless it was renewed concurrently,
// then releases its locks.
func (c *Client) expireSession(ctx context.Context, rec *sessionRecord, revision uint64) error {
	err := c.sessions.Delete(ctx, rec.ID, jetstream.LastRevision(revision))
	switch {
	case err == nil:
	case natsutil.IsRevisionConflict(err):
		// Renewed or deleted by someone else in the meantime.
		return nil
	case errors.Is(err, jetstream.ErrKeyNotFound):
	default:
		return fmt.Errorf("natskv: expire session: %w", err)
	}

	return c.releaseHeld(ctx, rec)
}

// releaseHeld frees every lock held by a dead session.
func (c *Client) releaseHeld(ctx context.Context, rec *sessionRecord) error {
	keys, err := listKeys(ctx, c.locks)
	if err != nil {
		return err
	}

	var errs []error
	for _, key := range keys {
		if err := c.releaseDead(ctx, key, rec.ID, rec.LockDelay, rec.Behavior); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// releaseDead frees a lock held by a dead session and starts its lock-delay.
func (c *Client) releaseDead(ctx context.Context, safeKey, sessionID string, lockDelay time.Duration, behavior string) error {
	for range defaultCASRetries {
		entry, rec, err := c.getLock(ctx, safeKey)
		if err != nil {
			return err
		}
		if rec == nil || rec.Session != sessionID {
			return nil
		}

		next := lockRecord{
			Key:            rec.Key,
			Value:          rec.Value,
			LockDelayUntil: c.clock.Now().Add(lockDelay).UnixNano(),
		}
		if behavior == "delete" {
			next.Value = nil
			next.Deleted = true
		}

		err = c.putLock(ctx, safeKey, &next, entry.Revision())
		if err == nil {
			c.logger.Debug("released lock of dead session", "key", rec.Key, "session", sessionID, "lock_delay", lockDelay)
			return nil
		}
		if !natsutil.IsRevisionConflict(err) {
			return err
		}
	}

	return fmt.Errorf("natskv: release %s: too many concurrent updates", safeKey)
}

// listKeys returns every key currently stored in a bucket.
func listKeys(ctx context.Context, kv jetstream.KeyValue) ([]string, error) {
	lister, err := kv.ListKeys(ctx)
	if errors.Is(err, jetstream.ErrNoKeysFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("natskv: list keys of %s: %w", kv.Bucket(), err)
	}
	defer func() { _ = lister.Stop() }()

	var keys []string
	for key := range lister.Keys() {
		keys = append(keys, key)
	}

	return keys, nil
}
