package lockkey

import (
	"context"
	"fmt"
	"sync"

	"github.com/jonboulle/clockwork"

	"github.com/arloliu/elector/internal/fanout"
	"github.com/arloliu/elector/internal/logger"
	"github.com/arloliu/elector/internal/metrics"
	"github.com/arloliu/elector/types"
)

const (
	opAcquire = "acquire"
	opRelease = "release"

	resultGranted = "granted"
	resultDenied  = "denied"
	resultError   = "error"
)

// SessionSource provides the local session a key acquires and releases with.
//
// *session.Manager satisfies it.
type SessionSource interface {
	// ID returns the current session ID, or "" when none is held.
	ID() string

	// Create creates a session if none is held.
	Create(ctx context.Context) error
}

// Listener receives lock events synchronously on the key's event goroutine.
type Listener func(types.LockEvent)

// Key is one named lock entry.
type Key struct {
	client   types.Client
	sessions SessionSource
	name     string
	value    []byte

	clock   clockwork.Clock
	logger  types.Logger
	metrics types.MetricsCollector
	onError func(error)

	listenersMu sync.RWMutex
	listeners   []Listener
	hub         *fanout.Hub[types.LockEvent]

	// stateMu guards state. Only the event goroutine writes it.
	stateMu sync.RWMutex
	state   tracker

	watchMu  sync.Mutex
	watching bool
	stopped  bool
	sub      types.Subscription
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// Option configures a Key.
type Option func(*Key)

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(l types.Logger) Option {
	return func(k *Key) {
		if l != nil {
			k.logger = l
		}
	}
}

// WithMetrics sets the metrics collector. Defaults to a no-op collector.
func WithMetrics(mc types.MetricsCollector) Option {
	return func(k *Key) {
		if mc != nil {
			k.metrics = mc
		}
	}
}

// WithClock sets the clock used to time service calls.
func WithClock(clock clockwork.Clock) Option {
	return func(k *Key) {
		if clock != nil {
			k.clock = clock
		}
	}
}

// WithErrorHandler sets the sink for watch transport errors.
//
// The handler runs on the event goroutine with an error wrapping
// types.ErrWatchTransport.
func WithErrorHandler(fn func(error)) Option {
	return func(k *Key) {
		if fn != nil {
			k.onError = fn
		}
	}
}

// WithBuffer sets the channel capacity of Subscribe channels.
func WithBuffer(size int) Option {
	return func(k *Key) {
		k.hub = fanout.New[types.LockEvent](size)
	}
}

// New creates a lock key. Watching starts with StartWatching.
//
// Parameters:
//   - client: Coordination service client
//   - sessions: Source of the local session ID
//   - name: Key name at the service
//   - value: Payload written with every acquire and release
//   - opts: Optional logger, metrics, clock and error handler
//
// Returns:
//   - *Key: Key that has not observed anything yet
//
// Example:
//
//	key := lockkey.New(client, mgr, "service/leader", []byte("node-1"))
//	key.OnEvent(func(ev types.LockEvent) {
//	    if ev.Type == types.LockReleased {
//	        go key.Acquire(context.Background())
//	    }
//	})
//	if err := key.StartWatching(ctx); err != nil {
//	    return err
//	}
//	defer key.StopWatching()
func New(client types.Client, sessions SessionSource, name string, value []byte, opts ...Option) *Key {
	k := &Key{
		client:   client,
		sessions: sessions,
		name:     name,
		value:    value,
		clock:    clockwork.NewRealClock(),
		logger:   logger.NewNop(),
		metrics:  metrics.NewNop(),
		onError:  func(error) {},
		hub:      fanout.New[types.LockEvent](fanout.DefaultBuffer),
	}

	for _, opt := range opts {
		opt(k)
	}

	return k
}

// Name returns the key name.
func (k *Key) Name() string {
	return k.name
}

// Locked reports whether the key believes the local session holds the lock.
func (k *Key) Locked() bool {
	k.stateMu.RLock()
	defer k.stateMu.RUnlock()

	return k.state.locked
}

// LastOwner returns the most recently observed owner. The zero Owner means nothing
// has been observed yet.
func (k *Key) LastOwner() types.Owner {
	k.stateMu.RLock()
	defer k.stateMu.RUnlock()

	return k.state.last
}

// OnEvent registers a listener invoked synchronously, in registration order, for
// every emitted event.
//
// Listeners must return quickly and must not call StopWatching: the event goroutine
// does not process the next notification until every listener has returned.
func (k *Key) OnEvent(fn Listener) {
	k.listenersMu.Lock()
	defer k.listenersMu.Unlock()

	k.listeners = append(k.listeners, fn)
}

// Subscribe returns a channel receiving every event emitted after the call.
//
// The channel is closed by StopWatching or by calling the returned function. A
// subscriber that stops reading without unsubscribing stalls the key.
//
// Returns:
//   - <-chan types.LockEvent: Event channel
//   - func(): Unsubscribe function
func (k *Key) Subscribe() (<-chan types.LockEvent, func()) {
	return k.hub.Subscribe()
}

// Acquire requests the lock for the local session, creating a session if needed.
//
// The result is not reflected locally until the watch delivers it.
//
// Parameters:
//   - ctx: Context for the session create and acquire requests
//
// Returns:
//   - bool: true if the service granted the lock, false on contention or lock-delay
//   - error: Wraps types.ErrAcquire on transport or service failure
func (k *Key) Acquire(ctx context.Context) (bool, error) {
	id, err := k.ensureSession(ctx)
	if err != nil {
		k.metrics.RecordLockOperation(opAcquire, resultError, 0)
		return false, fmt.Errorf("%w: %w", types.ErrAcquire, err)
	}

	start := k.clock.Now()
	granted, err := k.client.KVAcquire(ctx, k.name, k.value, id)
	k.metrics.RecordLockOperation(opAcquire, result(granted, err), k.clock.Since(start).Seconds())
	if err != nil {
		return false, fmt.Errorf("%w: %w", types.ErrAcquire, err)
	}

	k.logger.Debug("lock acquire requested", "key", k.name, "session", id, "granted", granted)

	return granted, nil
}

// Release requests release of the lock held by the local session, creating a
// session if needed.
//
// Parameters:
//   - ctx: Context for the session create and release requests
//
// Returns:
//   - bool: true if the lock was released, false if the session did not hold it
//   - error: Wraps types.ErrRelease on transport or service failure
func (k *Key) Release(ctx context.Context) (bool, error) {
	id, err := k.ensureSession(ctx)
	if err != nil {
		k.metrics.RecordLockOperation(opRelease, resultError, 0)
		return false, fmt.Errorf("%w: %w", types.ErrRelease, err)
	}

	return k.ReleaseAs(ctx, id)
}

// ReleaseAs requests release of the lock held by the given session without creating one.
//
// Used during shutdown, where the session may be destroyed concurrently and a new one
// must not be created. An empty sessionID is a no-op.
//
// Parameters:
//   - ctx: Context for the release request
//   - sessionID: Session that is expected to hold the lock
//
// Returns:
//   - bool: true if the lock was released
//   - error: Wraps types.ErrRelease on transport or service failure
func (k *Key) ReleaseAs(ctx context.Context, sessionID string) (bool, error) {
	if sessionID == "" {
		return false, nil
	}

	start := k.clock.Now()
	released, err := k.client.KVRelease(ctx, k.name, k.value, sessionID)
	k.metrics.RecordLockOperation(opRelease, result(released, err), k.clock.Since(start).Seconds())
	if err != nil {
		return false, fmt.Errorf("%w: %w", types.ErrRelease, err)
	}

	k.logger.Debug("lock release requested", "key", k.name, "session", sessionID, "released", released)

	return released, nil
}

// StartWatching subscribes to change notifications and starts the event goroutine.
//
// A key watches at most once in its lifetime.
//
// Parameters:
//   - ctx: Context for establishing the subscription; cancelling it ends the watch
//
// Returns:
//   - error: types.ErrAlreadyWatching on a second call, types.ErrWatchStopped after
//     StopWatching, or an error wrapping types.ErrWatchTransport if the subscription
//     could not be established
func (k *Key) StartWatching(ctx context.Context) error {
	k.watchMu.Lock()
	defer k.watchMu.Unlock()

	if k.stopped {
		return types.ErrWatchStopped
	}
	if k.watching {
		return types.ErrAlreadyWatching
	}

	sub, err := k.client.KVWatch(ctx, k.name)
	if err != nil {
		return fmt.Errorf("%w: %w", types.ErrWatchTransport, err)
	}

	k.watching = true
	k.sub = sub
	k.stopCh = make(chan struct{})
	k.doneCh = make(chan struct{})

	go k.run(sub, k.stopCh, k.doneCh)

	k.logger.Debug("lock key watching", "key", k.name)

	return nil
}

// StopWatching ends the subscription and waits for the event goroutine to exit.
//
// No event is emitted after StopWatching returns. In-flight Acquire and Release
// calls are not cancelled. Safe to call multiple times and before StartWatching.
//
// Returns:
//   - error: Error returned by the subscription's Stop
func (k *Key) StopWatching() error {
	k.watchMu.Lock()
	defer k.watchMu.Unlock()

	if k.stopped {
		return nil
	}
	k.stopped = true

	if !k.watching {
		k.hub.Close()
		return nil
	}

	close(k.stopCh)
	// Closing the hub unblocks a publish stuck on a slow subscriber.
	k.hub.Close()

	err := k.sub.Stop()
	<-k.doneCh

	k.logger.Debug("lock key stopped watching", "key", k.name)

	return err
}

func (k *Key) ensureSession(ctx context.Context) (string, error) {
	if id := k.sessions.ID(); id != "" {
		return id, nil
	}

	if err := k.sessions.Create(ctx); err != nil {
		return "", err
	}

	id := k.sessions.ID()
	if id == "" {
		return "", types.ErrNoSession
	}

	return id, nil
}

func (k *Key) run(sub types.Subscription, stopCh <-chan struct{}, doneCh chan<- struct{}) {
	defer close(doneCh)

	notifications := sub.Notifications()
	errs := sub.Errors()

	for {
		select {
		case <-stopCh:
			return
		case n, ok := <-notifications:
			if !ok {
				k.logger.Warn("watch subscription ended", "key", k.name)
				return
			}
			k.handle(n, stopCh)
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			k.handleError(err)
		}
	}
}

func (k *Key) handle(n types.Notification, stopCh <-chan struct{}) {
	select {
	case <-stopCh:
		return
	default:
	}

	owner := n.Owner()
	localID := k.sessions.ID()

	k.stateMu.Lock()
	events, changed := k.state.observe(owner, localID)
	k.stateMu.Unlock()

	if !changed {
		k.metrics.RecordDuplicateNotification()
		return
	}

	k.logger.Debug("lock owner changed", "key", k.name, "owner", owner.String(), "session", localID)

	k.listenersMu.RLock()
	listeners := k.listeners
	k.listenersMu.RUnlock()

	for _, typ := range events {
		ev := types.LockEvent{
			Type:      typ,
			Key:       k.name,
			Owner:     owner,
			SessionID: localID,
		}
		k.metrics.RecordLockEvent(typ)

		for _, fn := range listeners {
			fn(ev)
		}
		k.hub.Publish(ev)
	}
}

func (k *Key) handleError(err error) {
	k.metrics.RecordWatchError()
	k.logger.Warn("watch transport error", "key", k.name, "error", err)
	k.onError(fmt.Errorf("%w: %w", types.ErrWatchTransport, err))
}

func result(ok bool, err error) string {
	switch {
	case err != nil:
		return resultError
	case ok:
		return resultGranted
	default:
		return resultDenied
	}
}
