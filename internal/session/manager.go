package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/arloliu/elector/internal/logger"
	"github.com/arloliu/elector/internal/metrics"
	"github.com/arloliu/elector/types"
)

const (
	opCreate  = "create"
	opRenew   = "renew"
	opDestroy = "destroy"

	defaultOperationTimeout = 10 * time.Second
	minRenewInterval        = 10 * time.Millisecond
)

// Manager owns one session handle against the coordination service.
//
// All methods are safe for concurrent use. Create and Destroy are serialized with
// each other; ID never waits for service I/O.
type Manager struct {
	client    types.Client
	opts      types.SessionOptions
	clock     clockwork.Clock
	logger    types.Logger
	metrics   types.MetricsCollector
	opTimeout time.Duration

	// lifecycleMu serializes Create and Destroy.
	lifecycleMu sync.Mutex

	// mu guards id and loop. Never held across service calls.
	mu   sync.RWMutex
	id   string
	loop *renewLoop
}

type renewLoop struct {
	stopCh   chan struct{}
	doneCh   chan struct{}
	stopOnce sync.Once
}

func (l *renewLoop) stop() {
	l.stopOnce.Do(func() { close(l.stopCh) })
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock sets the clock driving the renewal ticker. Defaults to the real clock.
func WithClock(clock clockwork.Clock) Option {
	return func(m *Manager) {
		if clock != nil {
			m.clock = clock
		}
	}
}

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(l types.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithMetrics sets the metrics collector. Defaults to a no-op collector.
func WithMetrics(mc types.MetricsCollector) Option {
	return func(m *Manager) {
		if mc != nil {
			m.metrics = mc
		}
	}
}

// WithOperationTimeout bounds each background renewal call.
func WithOperationTimeout(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.opTimeout = d
		}
	}
}

// New creates a session manager. No session is created until Create is called.
//
// Parameters:
//   - client: Coordination service client
//   - opts: Session parameters (TTL must be positive)
//   - options: Optional clock, logger, metrics and timeout
//
// Returns:
//   - *Manager: Manager with no session held
//
// Example:
//
//	mgr := session.New(client, types.SessionOptions{TTL: 10 * time.Second, LockDelay: 15 * time.Second})
//	if err := mgr.Create(ctx); err != nil {
//	    return err
//	}
//	defer mgr.Destroy(context.Background())
func New(client types.Client, opts types.SessionOptions, options ...Option) *Manager {
	m := &Manager{
		client:    client,
		opts:      opts,
		clock:     clockwork.NewRealClock(),
		logger:    logger.NewNop(),
		metrics:   metrics.NewNop(),
		opTimeout: defaultOperationTimeout,
	}

	for _, opt := range options {
		opt(m)
	}

	return m
}

// ID returns the current session ID, or "" when no session is held.
func (m *Manager) ID() string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.id
}

// Options returns the session parameters the manager creates sessions with.
func (m *Manager) Options() types.SessionOptions {
	return m.opts
}

// RenewInterval returns the period of the background renewal loop (TTL/2).
func (m *Manager) RenewInterval() time.Duration {
	interval := m.opts.TTL / 2
	if interval < minRenewInterval {
		interval = minRenewInterval
	}

	return interval
}

// Create creates a session if none is held and starts renewing it every TTL/2.
//
// Calling Create while a session is held is a no-op.
//
// Parameters:
//   - ctx: Context for the create request
//
// Returns:
//   - error: Wraps types.ErrSessionCreate on failure; the ID stays unset
func (m *Manager) Create(ctx context.Context) error {
	m.lifecycleMu.Lock()
	defer m.lifecycleMu.Unlock()

	if m.ID() != "" {
		return nil
	}

	start := m.clock.Now()
	id, err := m.client.SessionCreate(ctx, m.opts)
	m.metrics.RecordSessionOperation(opCreate, err == nil && id != "", m.clock.Since(start).Seconds())
	if err != nil {
		return fmt.Errorf("%w: %w", types.ErrSessionCreate, err)
	}
	if id == "" {
		return fmt.Errorf("%w: service returned an empty session ID", types.ErrSessionCreate)
	}

	loop := &renewLoop{
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}

	m.mu.Lock()
	m.id = id
	m.loop = loop
	m.mu.Unlock()

	// The ticker is created before Create returns so a fake clock observes it immediately.
	ticker := m.clock.NewTicker(m.RenewInterval())
	go m.renewLoop(loop, ticker, id)

	m.logger.Info("session created", "session", id, "ttl", m.opts.TTL, "lockDelay", m.opts.LockDelay)

	return nil
}

// Renew extends the TTL of the current session once.
//
// Parameters:
//   - ctx: Context for the renew request
//
// Returns:
//   - error: Wraps types.ErrSessionRenew on failure, additionally matching
//     types.ErrSessionNotFound when the service no longer knows the session and
//     types.ErrNoSession when no session is held
func (m *Manager) Renew(ctx context.Context) error {
	id := m.ID()
	if id == "" {
		return fmt.Errorf("%w: %w", types.ErrSessionRenew, types.ErrNoSession)
	}

	return m.renew(ctx, id)
}

// Destroy stops renewal and destroys the session at the service.
//
// The ID is cleared whether or not the service call succeeds, so the manager can
// create a fresh session afterwards. Destroy without a session only makes sure the
// renewal loop is stopped. No renewal is issued after Destroy returns.
//
// Parameters:
//   - ctx: Context for the destroy request
//
// Returns:
//   - error: Wraps types.ErrSessionDestroy on failure
func (m *Manager) Destroy(ctx context.Context) error {
	m.lifecycleMu.Lock()
	defer m.lifecycleMu.Unlock()

	m.mu.RLock()
	id, loop := m.id, m.loop
	m.mu.RUnlock()

	if loop != nil {
		loop.stop()
	}

	var err error
	if id != "" {
		start := m.clock.Now()
		err = m.client.SessionDestroy(ctx, id, m.opts.Datacenter)
		m.metrics.RecordSessionOperation(opDestroy, err == nil, m.clock.Since(start).Seconds())
	}

	if loop != nil {
		<-loop.doneCh
	}

	m.mu.Lock()
	if m.id == id {
		m.id = ""
		m.loop = nil
	}
	m.mu.Unlock()

	if err != nil {
		m.logger.Warn("session destroy failed", "session", id, "error", err)
		return fmt.Errorf("%w: %w", types.ErrSessionDestroy, err)
	}

	if id != "" {
		m.logger.Info("session destroyed", "session", id)
	}

	return nil
}

func (m *Manager) renew(ctx context.Context, id string) error {
	start := m.clock.Now()
	err := m.client.SessionRenew(ctx, id, m.opts.Datacenter)
	m.metrics.RecordSessionOperation(opRenew, err == nil, m.clock.Since(start).Seconds())
	if err != nil {
		return fmt.Errorf("%w: %w", types.ErrSessionRenew, err)
	}

	return nil
}

func (m *Manager) renewLoop(loop *renewLoop, ticker clockwork.Ticker, id string) {
	defer close(loop.doneCh)
	defer ticker.Stop()

	for {
		select {
		case <-loop.stopCh:
			return
		case <-ticker.Chan():
		}

		// A stop that raced with the tick wins.
		select {
		case <-loop.stopCh:
			return
		default:
		}

		ctx, cancel := context.WithTimeout(context.Background(), m.opTimeout)
		err := m.renew(ctx, id)
		cancel()

		if err == nil {
			m.logger.Debug("session renewed", "session", id)
			continue
		}

		if errors.Is(err, types.ErrSessionNotFound) {
			m.metrics.RecordSessionExpired()
			m.logger.Warn("session no longer exists at the service, dropping it", "session", id, "error", err)
			m.Invalidate(id)

			return
		}

		m.logger.Warn("session renew failed, retrying on next tick", "session", id, "error", err)
	}
}

// Invalidate forgets id if it is still the current session and stops renewing it.
//
// Used when the service reported the session unknown. Nothing is sent to the
// service; the next Create starts a new session.
//
// Parameters:
//   - id: Session ID the caller found to be invalid
func (m *Manager) Invalidate(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if id == "" || m.id != id {
		return
	}

	if m.loop != nil {
		m.loop.stop()
	}
	m.id = ""
	m.loop = nil

	m.logger.Info("session invalidated", "session", id)
}
