package types

// LockEventType identifies a lock ownership transition observed by a lock key.
type LockEventType int

const (
	// LockReleased is emitted when the lock became free.
	LockReleased LockEventType = iota + 1

	// LockTaken is emitted when some session (possibly the local one) took the lock.
	LockTaken

	// LockLost is emitted when the local session no longer holds the lock.
	LockLost

	// LockAcquired is emitted when the local session took the lock.
	LockAcquired
)

// String returns the string representation of the event type.
func (t LockEventType) String() string {
	switch t {
	case LockReleased:
		return "released"
	case LockTaken:
		return "taken"
	case LockLost:
		return "lost"
	case LockAcquired:
		return "acquired"
	default:
		return "unknown"
	}
}

// LockEvent is a single ownership transition emitted by a lock key.
type LockEvent struct {
	// Type is the transition kind.
	Type LockEventType

	// Key is the lock key name.
	Key string

	// Owner is the owner observed by the notification that caused the event.
	Owner Owner

	// SessionID is the local session ID at the time of the event ("" if none).
	SessionID string
}

// ElectionEventType identifies a coarse-grained election signal.
type ElectionEventType int

const (
	// EventElected is emitted when the local process became the leader.
	EventElected ElectionEventType = iota + 1

	// EventRetired is emitted when the local process stopped being the leader.
	// Leader-only work must stop immediately.
	EventRetired
)

// String returns the string representation of the event type.
func (t ElectionEventType) String() string {
	switch t {
	case EventElected:
		return "elected"
	case EventRetired:
		return "retired"
	default:
		return "unknown"
	}
}

// ElectionEvent is a single election signal emitted by an elector.
type ElectionEvent struct {
	// Type is the signal kind.
	Type ElectionEventType

	// Key is the election lock key.
	Key string

	// SessionID is the local session ID at the time of the event.
	SessionID string
}
