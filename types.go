package elector

import "github.com/arloliu/elector/types"

// Re-export types from the types package.
//
// Internal packages and backends depend on `types` only, so the root package can
// import them without cycles while users keep writing `elector.LockEvent`.
type (
	KVPair            = types.KVPair
	Notification      = types.Notification
	SessionOptions    = types.SessionOptions
	Owner             = types.Owner
	LockEvent         = types.LockEvent
	LockEventType     = types.LockEventType
	ElectionEvent     = types.ElectionEvent
	ElectionEventType = types.ElectionEventType
	ElectionState     = types.ElectionState
)

// Re-export interfaces from the types package for convenience.
type (
	Client           = types.Client
	Subscription     = types.Subscription
	MetricsCollector = types.MetricsCollector
	Logger           = types.Logger
	Hooks            = types.Hooks
)

// Re-export event and state constants.
const (
	LockReleased = types.LockReleased
	LockTaken    = types.LockTaken
	LockLost     = types.LockLost
	LockAcquired = types.LockAcquired

	EventElected = types.EventElected
	EventRetired = types.EventRetired

	StateCandidate = types.StateCandidate
	StateElected   = types.StateElected
	StateRetiring  = types.StateRetiring
	StateResigned  = types.StateResigned
)

// Unowned returns the owner value meaning nobody holds the lock.
func Unowned() Owner {
	return types.Unowned()
}

// OwnedBy returns the owner value for a session ID.
func OwnedBy(sessionID string) Owner {
	return types.OwnedBy(sessionID)
}
