package elector

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	"github.com/arloliu/elector/internal/fanout"
	"github.com/arloliu/elector/internal/hooks"
	"github.com/arloliu/elector/internal/lockkey"
	"github.com/arloliu/elector/internal/logger"
	"github.com/arloliu/elector/internal/metrics"
	"github.com/arloliu/elector/internal/session"
)

// Elector runs one candidate in a leader election on a single lock key.
//
// Elector handles:
//   - Creating and renewing the candidate's session
//   - Watching the lock key and deduplicating ownership notifications
//   - Attempting to acquire the lock LockDelay after it was released
//   - Surfacing elected/retired signals through hooks and event channels
//
// Thread Safety:
//   - All public methods are safe for concurrent use
//   - Lock events and election events are delivered in the order the service reported
//     ownership changes
//
// Lifecycle:
//   - Create with New()
//   - Call Start() to create the session and begin watching
//   - React to Events() or Hooks
//   - Call Resign() to step down and release every resource
//
// The coordination service is the only authority on who leads. The Elected state is
// the candidate's belief, derived from the watch stream, and may lag the service.
type Elector struct {
	cfg    Config
	client Client

	hooks   Hooks
	metrics MetricsCollector
	logger  Logger
	clock   clockwork.Clock

	session *session.Manager
	key     *lockkey.Key
	events  *fanout.Hub[ElectionEvent]

	// Lifecycle context, cancelled once Resign completes.
	ctx    context.Context
	cancel context.CancelFunc

	mu         sync.Mutex
	state      ElectionState
	leader     bool
	started    bool
	resigning  bool
	electedCh  chan struct{} // closed while elected
	pending    clockwork.Timer
	attemptGen uint64

	// inflight tracks delayed acquire attempts that passed the resigning check.
	inflight   sync.WaitGroup
	resignDone chan struct{}
}

// New creates a new Elector with the provided configuration.
//
// Nothing is sent to the coordination service until Start is called.
//
// Parameters:
//   - cfg: Election configuration, defaults are applied in place
//   - client: Coordination service client (see the backend packages)
//   - opts: Optional configuration (hooks, metrics, logger, clock)
//
// Returns:
//   - *Elector: Initialized elector instance
//   - error: ErrClientRequired, or an error wrapping ErrInvalidConfig
//
// Example:
//
//	cfg := elector.Config{Key: "billing/leader", Value: hostname}
//	e, err := elector.New(&cfg, consulClient)
//	if err != nil {
//	    return err
//	}
//	if err := e.Start(ctx); err != nil {
//	    return err
//	}
//	defer e.Resign(context.Background())
func New(cfg *Config, client Client, opts ...Option) (*Elector, error) {
	if cfg == nil {
		return nil, ErrInvalidConfig
	}
	if client == nil {
		return nil, ErrClientRequired
	}

	// Fill in missing configuration values with defaults
	SetDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	options := &electorOptions{}
	for _, opt := range opts {
		opt(options)
	}

	// Provide safe defaults for optional dependencies to avoid nil checks everywhere
	metricsCollector := options.metrics
	if metricsCollector == nil {
		metricsCollector = metrics.NewNop()
	}

	loggerInstance := options.logger
	if loggerInstance == nil {
		loggerInstance = logger.NewNop()
	}

	clock := options.clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	// Validate with warnings after logger is available
	cfg.ValidateWithWarnings(loggerInstance)

	ctx, cancel := context.WithCancel(context.Background())

	e := &Elector{
		cfg:        *cfg,
		client:     client,
		hooks:      hooks.Fill(options.hooks),
		metrics:    metricsCollector,
		logger:     loggerInstance,
		clock:      clock,
		events:     fanout.New[ElectionEvent](cfg.EventBuffer),
		ctx:        ctx,
		cancel:     cancel,
		state:      StateCandidate,
		electedCh:  make(chan struct{}),
		resignDone: make(chan struct{}),
	}

	e.session = session.New(client, cfg.sessionOptions(),
		session.WithClock(clock),
		session.WithLogger(loggerInstance),
		session.WithMetrics(metricsCollector),
		session.WithOperationTimeout(cfg.OperationTimeout),
	)

	e.key = lockkey.New(client, e.session, cfg.Key, []byte(cfg.Value),
		lockkey.WithClock(clock),
		lockkey.WithLogger(loggerInstance),
		lockkey.WithMetrics(metricsCollector),
		lockkey.WithBuffer(cfg.EventBuffer),
		lockkey.WithErrorHandler(e.reportError),
	)
	e.key.OnEvent(e.onLockEvent)

	return e, nil
}

// Campaign creates an Elector and starts it.
//
// Parameters:
//   - ctx: Context for the initial session create and watch setup
//   - cfg: Election configuration
//   - client: Coordination service client
//   - opts: Optional configuration
//
// Returns:
//   - *Elector: Running elector
//   - error: Construction or startup error
//
// Example:
//
//	e, err := elector.Campaign(ctx, elector.Config{Key: "jobs/leader"}, client)
//	if err != nil {
//	    return err
//	}
//	defer e.Resign(context.Background())
//	if err := e.WaitElected(ctx); err != nil {
//	    return err
//	}
func Campaign(ctx context.Context, cfg Config, client Client, opts ...Option) (*Elector, error) {
	e, err := New(&cfg, client, opts...)
	if err != nil {
		return nil, err
	}

	if err := e.Start(ctx); err != nil {
		return nil, err
	}

	return e, nil
}

// Start creates the session and begins watching the lock key.
//
// The watch delivers the key's current state first, so the election is driven from
// what the service holds, not from an assumed empty key. If the key is free, the
// first acquire attempt follows LockDelay later.
//
// Parameters:
//   - ctx: Context for the session create and watch setup
//
// Returns:
//   - error: ErrAlreadyStarted, ErrResigned, or a session/watch setup error
func (e *Elector) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.resigning {
		e.mu.Unlock()
		return ErrResigned
	}
	if e.started {
		e.mu.Unlock()
		return ErrAlreadyStarted
	}
	e.started = true
	e.mu.Unlock()

	if err := e.session.Create(ctx); err != nil {
		e.setStarted(false)
		return err
	}

	if err := e.key.StartWatching(e.ctx); err != nil {
		destroyCtx, cancel := context.WithTimeout(context.Background(), e.cfg.OperationTimeout)
		defer cancel()
		if derr := e.session.Destroy(destroyCtx); derr != nil {
			e.logger.Warn("failed to destroy session after watch setup failure", "error", derr)
		}
		e.setStarted(false)

		return err
	}

	e.logger.Info("candidate started",
		"key", e.cfg.Key,
		"session", e.session.ID(),
		"ttl", e.cfg.Session.TTL,
		"lockDelay", e.cfg.Session.lockDelay(),
	)

	return nil
}

// Resign steps down and releases every resource held by the elector.
//
// Pending acquire attempts are cancelled first. Then the lock is released, the watch
// is stopped and the session is destroyed concurrently; Resign waits for all three.
// If the candidate was elected, EventRetired is emitted and OnRetired is called
// before Resign returns. Afterwards SessionID() is empty, no further events are
// emitted and event channels are closed.
//
// If ctx has no deadline, Config.ShutdownTimeout applies.
//
// Parameters:
//   - ctx: Context bounding the release and destroy requests
//
// Returns:
//   - error: Joined release, watch stop and destroy errors; ErrResigned on later calls
func (e *Elector) Resign(ctx context.Context) error {
	e.mu.Lock()
	if e.resigning {
		e.mu.Unlock()
		<-e.resignDone

		return ErrResigned
	}
	e.resigning = true
	e.stopPendingLocked()
	e.transitionLocked(StateRetiring)
	e.mu.Unlock()

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.ShutdownTimeout)
		defer cancel()
	}

	// An attempt that already started could create a fresh session; let it finish first.
	e.inflight.Wait()

	sessionID := e.session.ID()

	// Wait reports only the first failure, so each step records its own error
	// and all of them are joined below.
	var (
		g    errgroup.Group
		errs [3]error
	)
	g.Go(func() error {
		_, errs[0] = e.key.ReleaseAs(ctx, sessionID)
		return nil
	})
	g.Go(func() error {
		errs[1] = e.key.StopWatching()
		return nil
	})
	g.Go(func() error {
		errs[2] = e.session.Destroy(ctx)
		return nil
	})
	_ = g.Wait()

	e.mu.Lock()
	wasLeader := e.leader
	e.leader = false
	e.transitionLocked(StateResigned)
	e.mu.Unlock()

	// OnRetired runs before the elector context is cancelled.
	if wasLeader {
		e.retire(sessionID)
	}

	e.cancel()

	e.events.Close()
	close(e.resignDone)

	err := errors.Join(errs[:]...)
	if err != nil {
		e.logger.Warn("resign completed with errors", "key", e.cfg.Key, "error", err)
	} else {
		e.logger.Info("candidate resigned", "key", e.cfg.Key, "session", sessionID)
	}

	return err
}

// Events returns a channel of election events emitted after the call.
//
// The channel is closed when Resign completes or the returned function is called.
// Readers must keep up: a full channel delays the candidate's processing of lock
// notifications.
//
// Returns:
//   - <-chan ElectionEvent: Event channel
//   - func(): Unsubscribe function
func (e *Elector) Events() (<-chan ElectionEvent, func()) {
	return e.events.Subscribe()
}

// LockEvents returns a channel of raw lock events (released, taken, lost, acquired)
// emitted after the call.
//
// Returns:
//   - <-chan LockEvent: Event channel, closed when watching stops
//   - func(): Unsubscribe function
func (e *Elector) LockEvents() (<-chan LockEvent, func()) {
	return e.key.Subscribe()
}

// IsLeader reports whether the candidate believes it holds the lock.
func (e *Elector) IsLeader() bool {
	return e.State() == StateElected
}

// State returns the current election state.
func (e *Elector) State() ElectionState {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.state
}

// SessionID returns the candidate's current session ID, or "" when none is held.
func (e *Elector) SessionID() string {
	return e.session.ID()
}

// Key returns the name of the lock key.
func (e *Elector) Key() string {
	return e.cfg.Key
}

// LastOwner returns the last lock owner observed on the watch.
func (e *Elector) LastOwner() Owner {
	return e.key.LastOwner()
}

// WaitElected blocks until the candidate is elected.
//
// Parameters:
//   - ctx: Context bounding the wait
//
// Returns:
//   - error: ctx.Err() on cancellation, ErrResigned if the elector resigns first
func (e *Elector) WaitElected(ctx context.Context) error {
	e.mu.Lock()
	if e.state == StateElected {
		e.mu.Unlock()
		return nil
	}
	if e.resigning {
		e.mu.Unlock()
		return ErrResigned
	}
	elected := e.electedCh
	e.mu.Unlock()

	select {
	case <-elected:
		return nil
	case <-e.resignDone:
		return ErrResigned
	case <-ctx.Done():
		return ctx.Err()
	}
}

// WaitState waits for the elector to reach the expected state.
//
// Parameters:
//   - expectedState: State to wait for
//   - timeout: Maximum time to wait
//
// Returns:
//   - <-chan error: Receives nil when the state is reached, or
//     context.DeadlineExceeded on timeout. Closed after the single send.
//
// Example:
//
//	if err := <-e.WaitState(elector.StateElected, 10*time.Second); err != nil {
//	    t.Fatal("not elected in time")
//	}
func (e *Elector) WaitState(expectedState ElectionState, timeout time.Duration) <-chan error {
	ch := make(chan error, 1)

	go func() {
		defer close(ch)

		if e.State() == expectedState {
			ch <- nil
			return
		}

		ticker := time.NewTicker(20 * time.Millisecond)
		defer ticker.Stop()

		timeoutTimer := time.NewTimer(timeout)
		defer timeoutTimer.Stop()

		for {
			select {
			case <-ticker.C:
				if e.State() == expectedState {
					ch <- nil
					return
				}
			case <-timeoutTimer.C:
				ch <- context.DeadlineExceeded
				return
			}
		}
	}()

	return ch
}

// onLockEvent runs on the key's event goroutine.
func (e *Elector) onLockEvent(ev LockEvent) {
	switch ev.Type {
	case LockReleased:
		e.scheduleAcquire()
	case LockAcquired:
		e.elect(ev.SessionID)
	case LockLost:
		e.mu.Lock()
		wasLeader := e.leader
		e.leader = false
		if e.state == StateElected {
			e.transitionLocked(StateCandidate)
		}
		e.mu.Unlock()

		if wasLeader {
			e.retire(ev.SessionID)
		}
	case LockTaken:
		e.logger.Debug("lock taken", "key", ev.Key, "owner", ev.Owner.String())
	}
}

func (e *Elector) elect(sessionID string) {
	e.mu.Lock()
	if e.resigning {
		e.mu.Unlock()
		e.logger.Debug("ignoring acquired lock while resigning", "key", e.cfg.Key)

		return
	}
	e.leader = true
	e.transitionLocked(StateElected)
	e.mu.Unlock()

	e.logger.Info("elected", "key", e.cfg.Key, "session", sessionID)

	if err := e.hooks.OnElected(e.ctx); err != nil {
		e.logger.Error("OnElected hook failed", "error", err)
	}

	e.events.Publish(ElectionEvent{Type: EventElected, Key: e.cfg.Key, SessionID: sessionID})
}

// retire runs OnRetired before publishing so leader-only work stops first.
func (e *Elector) retire(sessionID string) {
	e.logger.Info("retired", "key", e.cfg.Key, "session", sessionID)

	if err := e.hooks.OnRetired(e.ctx); err != nil {
		e.logger.Error("OnRetired hook failed", "error", err)
	}

	e.events.Publish(ElectionEvent{Type: EventRetired, Key: e.cfg.Key, SessionID: sessionID})
}

// scheduleAcquire arms the delayed acquire timer, replacing any earlier one.
func (e *Elector) scheduleAcquire() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.resigning {
		return
	}

	e.stopPendingLocked()
	e.attemptGen++
	gen := e.attemptGen

	delay := e.cfg.Session.lockDelay()
	e.logger.Debug("lock released, scheduling acquire", "key", e.cfg.Key, "delay", delay)
	e.pending = e.clock.AfterFunc(delay, func() { e.attemptAcquire(gen) })
}

func (e *Elector) attemptAcquire(gen uint64) {
	e.mu.Lock()
	if e.resigning || gen != e.attemptGen {
		e.mu.Unlock()
		return
	}
	e.pending = nil
	e.inflight.Add(1)
	e.mu.Unlock()
	defer e.inflight.Done()

	ctx, cancel := context.WithTimeout(e.ctx, e.cfg.OperationTimeout)
	defer cancel()

	sessionID := e.session.ID()
	granted, err := e.key.Acquire(ctx)
	e.metrics.RecordReacquireAttempt(granted)
	if err != nil {
		e.logger.Warn("acquire attempt failed", "key", e.cfg.Key, "error", err)
		e.reportError(err)

		// The session expired behind our back: no notification will follow, so retry
		// with a fresh session instead of waiting forever.
		if errors.Is(err, ErrSessionNotFound) {
			e.session.Invalidate(sessionID)
			e.scheduleAcquire()
		}

		return
	}

	e.logger.Debug("acquire attempt finished", "key", e.cfg.Key, "granted", granted)
}

func (e *Elector) reportError(err error) {
	if herr := e.hooks.OnError(e.ctx, err); herr != nil {
		e.logger.Error("OnError hook failed", "error", herr)
	}
}

func (e *Elector) stopPendingLocked() {
	if e.pending != nil {
		e.pending.Stop()
		e.pending = nil
	}
}

func (e *Elector) transitionLocked(to ElectionState) {
	from := e.state
	if from == to {
		return
	}
	e.state = to

	switch {
	case to == StateElected:
		close(e.electedCh)
	case from == StateElected:
		e.electedCh = make(chan struct{})
	}

	e.metrics.RecordElectionTransition(from, to)
	e.logger.Debug("election state changed", "key", e.cfg.Key, "from", from.String(), "to", to.String())
}

func (e *Elector) setStarted(started bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.started = started
}
