package memory

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/puzpuzpuz/xsync/v4"

	"github.com/arloliu/elector/types"
)

const defaultReapInterval = 100 * time.Millisecond

// Store is an in-memory coordination service.
type Store struct {
	clock        clockwork.Clock
	reapInterval time.Duration

	mu       sync.Mutex
	sessions map[string]*sessionEntry
	keys     map[string]*keyEntry
	index    uint64

	watches *xsync.Map[uint64, *watch]
	watchID atomic.Uint64

	closeOnce sync.Once
	stopCh    chan struct{}
	doneCh    chan struct{}
}

type sessionEntry struct {
	id        string
	opts      types.SessionOptions
	expiresAt time.Time // zero: never
}

type keyEntry struct {
	pair           types.KVPair
	lockDelayUntil time.Time
}

// Compile-time assertion that Store implements Client.
var _ types.Client = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithClock sets the clock used for session expiry and lock-delay.
func WithClock(clock clockwork.Clock) Option {
	return func(s *Store) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithReapInterval sets how often expired sessions are swept.
func WithReapInterval(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.reapInterval = d
		}
	}
}

// New creates an empty store and starts its session reaper.
//
// Returns:
//   - *Store: Ready-to-use store; call Close when done
//
// Example:
//
//	store := memory.New()
//	defer store.Close()
//	e, err := elector.Campaign(ctx, elector.TestConfig(), store)
func New(opts ...Option) *Store {
	s := &Store{
		clock:        clockwork.NewRealClock(),
		reapInterval: defaultReapInterval,
		sessions:     make(map[string]*sessionEntry),
		keys:         make(map[string]*keyEntry),
		watches:      xsync.NewMap[uint64, *watch](),
		stopCh:       make(chan struct{}),
		doneCh:       make(chan struct{}),
	}

	for _, opt := range opts {
		opt(s)
	}

	ticker := s.clock.NewTicker(s.reapInterval)
	go s.reap(ticker)

	return s
}

// Close stops the reaper and ends every watch.
func (s *Store) Close() {
	s.closeOnce.Do(func() {
		close(s.stopCh)
		<-s.doneCh

		s.watches.Range(func(_ uint64, w *watch) bool {
			_ = w.Stop()
			return true
		})
	})
}

// SessionCreate creates a session.
func (s *Store) SessionCreate(ctx context.Context, opts types.SessionOptions) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entry := &sessionEntry{id: uuid.NewString(), opts: opts}
	if opts.TTL > 0 {
		entry.expiresAt = s.clock.Now().Add(opts.TTL)
	}
	s.sessions[entry.id] = entry

	return entry.id, nil
}

// SessionRenew extends a session by its TTL.
func (s *Store) SessionRenew(ctx context.Context, id string, _ string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.expireLocked()

	entry, ok := s.sessions[id]
	if !ok {
		return fmt.Errorf("%w: %s", types.ErrSessionNotFound, id)
	}
	if entry.opts.TTL > 0 {
		entry.expiresAt = s.clock.Now().Add(entry.opts.TTL)
	}

	return nil
}

// SessionDestroy invalidates a session. Destroying an unknown session succeeds.
func (s *Store) SessionDestroy(ctx context.Context, id string, _ string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if entry, ok := s.sessions[id]; ok {
		s.invalidateLocked(entry)
	}

	return nil
}

// ExpireSession invalidates a session as if its TTL had elapsed.
//
// Intended for tests simulating a crashed candidate.
func (s *Store) ExpireSession(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry, ok := s.sessions[id]; ok {
		s.invalidateLocked(entry)
	}
}

// SessionCount returns the number of live sessions.
func (s *Store) SessionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.expireLocked()

	return len(s.sessions)
}

// KVGet returns a copy of the pair at key, or nil.
func (s *Store) KVGet(ctx context.Context, key string) (*types.KVPair, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.expireLocked()

	entry, ok := s.keys[key]
	if !ok {
		return nil, nil
	}

	return copyPair(&entry.pair), nil
}

// KVAcquire grants the lock on key to sessionID if it is free and not in lock-delay.
//
// A session re-acquiring a lock it already holds succeeds and updates the value.
func (s *Store) KVAcquire(ctx context.Context, key string, value []byte, sessionID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.expireLocked()

	if _, ok := s.sessions[sessionID]; !ok {
		return false, fmt.Errorf("%w: %s", types.ErrSessionNotFound, sessionID)
	}

	entry, ok := s.keys[key]
	if !ok {
		entry = &keyEntry{pair: types.KVPair{Key: key}}
		s.keys[key] = entry
	}

	switch {
	case entry.pair.Session == sessionID:
	case entry.pair.Session != "":
		return false, nil
	case s.clock.Now().Before(entry.lockDelayUntil):
		return false, nil
	}

	entry.pair.Session = sessionID
	entry.pair.Value = append([]byte(nil), value...)
	s.commitLocked(entry)

	return true, nil
}

// KVRelease frees the lock on key if sessionID holds it. No lock-delay applies.
func (s *Store) KVRelease(ctx context.Context, key string, value []byte, sessionID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.expireLocked()

	entry, ok := s.keys[key]
	if !ok || sessionID == "" || entry.pair.Session != sessionID {
		return false, nil
	}

	entry.pair.Session = ""
	entry.pair.Value = append([]byte(nil), value...)
	s.commitLocked(entry)

	return true, nil
}

// KVWatch subscribes to changes of key. The current state is delivered first.
func (s *Store) KVWatch(ctx context.Context, key string) (types.Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	id := s.watchID.Add(1)
	w := newWatch(key, func() { s.watches.Delete(id) })

	s.mu.Lock()
	s.expireLocked()
	w.push(item{notification: s.notificationLocked(key)})
	s.watches.Store(id, w)
	s.mu.Unlock()

	go w.pump()

	// Stop on context cancellation as well.
	go func() {
		select {
		case <-ctx.Done():
			_ = w.Stop()
		case <-w.stopCh:
		}
	}()

	return w, nil
}

// Touch re-announces the current state of key without changing it.
//
// Intended for tests of duplicate-notification handling.
func (s *Store) Touch(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.notifyLocked(key)
}

// InjectWatchError delivers err on the error channel of every watch on key.
//
// Intended for tests of transport-error handling.
func (s *Store) InjectWatchError(key string, err error) {
	s.watches.Range(func(_ uint64, w *watch) bool {
		if w.key == key {
			w.push(item{err: err})
		}
		return true
	})
}

func (s *Store) reap(ticker clockwork.Ticker) {
	defer close(s.doneCh)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.Chan():
			s.mu.Lock()
			s.expireLocked()
			s.mu.Unlock()
		}
	}
}

// expireLocked invalidates every session whose TTL elapsed.
func (s *Store) expireLocked() {
	now := s.clock.Now()
	for _, entry := range s.sessions {
		if !entry.expiresAt.IsZero() && !now.Before(entry.expiresAt) {
			s.invalidateLocked(entry)
		}
	}
}

// invalidateLocked removes a session and frees its locks under lock-delay.
func (s *Store) invalidateLocked(sess *sessionEntry) {
	delete(s.sessions, sess.id)

	until := s.clock.Now().Add(sess.opts.LockDelay)
	for key, entry := range s.keys {
		if entry.pair.Session != sess.id {
			continue
		}

		entry.lockDelayUntil = until
		if sess.opts.Behavior == "delete" {
			delete(s.keys, key)
			s.index++
			s.notifyLocked(key)

			continue
		}

		entry.pair.Session = ""
		s.commitLocked(entry)
	}
}

func (s *Store) commitLocked(entry *keyEntry) {
	s.index++
	entry.pair.ModifyIndex = s.index
	s.notifyLocked(entry.pair.Key)
}

func (s *Store) notifyLocked(key string) {
	n := s.notificationLocked(key)
	s.watches.Range(func(_ uint64, w *watch) bool {
		if w.key == key {
			w.push(item{notification: n})
		}
		return true
	})
}

func (s *Store) notificationLocked(key string) types.Notification {
	entry, ok := s.keys[key]
	if !ok {
		return types.Notification{}
	}

	return types.Notification{Pair: copyPair(&entry.pair)}
}

func copyPair(p *types.KVPair) *types.KVPair {
	cp := *p
	cp.Value = append([]byte(nil), p.Value...)

	return &cp
}
