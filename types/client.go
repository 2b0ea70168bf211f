package types

import (
	"context"
	"time"
)

// KVPair is a single key as stored by the coordination service.
type KVPair struct {
	// Key is the full key name.
	Key string

	// Value is the opaque payload stored at the key.
	Value []byte

	// Session is the ID of the session currently holding the lock on the key.
	// Empty when the key is not locked.
	Session string

	// ModifyIndex is the service's modification index (revision) of the key.
	// Informational only: ownership deduplication never looks at it.
	ModifyIndex uint64
}

// Notification is one change notification delivered by a watch subscription.
//
// Pair is nil when the key is absent, was deleted, or the payload could not be decoded.
type Notification struct {
	Pair *KVPair
}

// Owner returns the ownership state carried by the notification.
//
// Absent or malformed payloads and pairs without a session are normalized to Unowned().
func (n Notification) Owner() Owner {
	if n.Pair == nil || n.Pair.Session == "" {
		return Unowned()
	}

	return OwnedBy(n.Pair.Session)
}

// Subscription is a long-lived watch on a single key.
//
// Implementations deliver one notification reflecting the current state of the key
// shortly after the subscription is established, then one notification per change.
// Duplicates are allowed. Transport failures are reported on Errors() and must not
// terminate the subscription: the implementation reconnects on its own.
type Subscription interface {
	// Notifications returns the channel of change notifications.
	// The channel is closed after Stop.
	Notifications() <-chan Notification

	// Errors returns the channel of out-of-band transport errors.
	// The channel is closed after Stop.
	Errors() <-chan error

	// Stop cancels the subscription and releases its resources.
	// Safe to call multiple times.
	Stop() error
}

// SessionOptions describes a session to be created at the coordination service.
type SessionOptions struct {
	// Name is a human readable session name (optional).
	Name string

	// TTL is the session time-to-live. The session must be renewed before it elapses.
	TTL time.Duration

	// LockDelay is the grace period the service enforces before a lock held by an
	// invalidated session can be acquired again.
	LockDelay time.Duration

	// Datacenter scopes the session (optional, service specific).
	Datacenter string

	// Behavior selects what happens to held locks when the session is invalidated
	// ("release" or "delete"). Backends that do not support it ignore it.
	Behavior string
}

// Client is the contract of the external coordination service.
//
// Implementations:
//   - backend/memory: in-process service for tests and single-process use
//   - backend/natskv: NATS JetStream KV
//   - backend/consul: Consul HTTP API
//   - backend/etcd: etcd v3
//
// All methods must be safe for concurrent use.
type Client interface {
	// KVGet returns the pair stored at key, or nil when the key is absent.
	KVGet(ctx context.Context, key string) (*KVPair, error)

	// KVAcquire stores value at key and grants the lock to sessionID.
	//
	// Returns false (and no error) when the lock is held by another session or the
	// service's lock-delay is still in effect.
	KVAcquire(ctx context.Context, key string, value []byte, sessionID string) (bool, error)

	// KVRelease stores value at key and releases the lock held by sessionID.
	//
	// Returns false (and no error) when sessionID does not hold the lock.
	KVRelease(ctx context.Context, key string, value []byte, sessionID string) (bool, error)

	// KVWatch starts a change subscription on key.
	KVWatch(ctx context.Context, key string) (Subscription, error)

	// SessionCreate creates a session and returns its ID.
	SessionCreate(ctx context.Context, opts SessionOptions) (string, error)

	// SessionRenew extends the TTL of a session.
	//
	// Returns an error matching ErrSessionNotFound when the service no longer knows the session.
	SessionRenew(ctx context.Context, id string, datacenter string) error

	// SessionDestroy invalidates a session, releasing every lock it holds.
	SessionDestroy(ctx context.Context, id string, datacenter string) error
}
