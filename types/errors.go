package types

import "errors"

// Sentinel errors for the elector library.
//
// These errors provide type-safe error checking using errors.Is() and errors.As().
// All components use these sentinel errors for known error conditions and wrap
// external errors with context using fmt.Errorf("%w: %w", sentinel, err).

// Elector errors - Public API errors returned by the Elector.
var (
	// ErrInvalidConfig is returned when the configuration is invalid.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrClientRequired is returned when the coordination client is nil.
	ErrClientRequired = errors.New("coordination client is required")

	// ErrAlreadyStarted is returned when Start is called on an already running elector.
	ErrAlreadyStarted = errors.New("elector already started")

	// ErrNotStarted is returned when operations require a started elector.
	ErrNotStarted = errors.New("elector not started")

	// ErrResigned is returned when operations are attempted after Resign.
	ErrResigned = errors.New("elector resigned")
)

// Session lifecycle errors.
var (
	// ErrSessionCreate is returned when the service fails to create a session.
	ErrSessionCreate = errors.New("session create failed")

	// ErrSessionRenew is returned when the service fails to renew a session.
	ErrSessionRenew = errors.New("session renew failed")

	// ErrSessionDestroy is returned when the service fails to destroy a session.
	ErrSessionDestroy = errors.New("session destroy failed")

	// ErrSessionNotFound is returned when the service no longer knows a session
	// (expired or destroyed). Callers must create a new session.
	ErrSessionNotFound = errors.New("session not found")

	// ErrNoSession is returned when an operation requires a session ID but none is held.
	ErrNoSession = errors.New("no session")
)

// Lock key errors.
var (
	// ErrAcquire is returned when a lock acquire request fails at the transport or service.
	// Contention is not an error.
	ErrAcquire = errors.New("lock acquire failed")

	// ErrRelease is returned when a lock release request fails at the transport or service.
	ErrRelease = errors.New("lock release failed")

	// ErrWatchTransport wraps non-fatal watch transport failures reported to hooks and logs.
	ErrWatchTransport = errors.New("watch transport error")

	// ErrAlreadyWatching is returned when StartWatching is called twice on a lock key.
	ErrAlreadyWatching = errors.New("lock key already watching")

	// ErrWatchStopped is returned when StartWatching is called after StopWatching.
	ErrWatchStopped = errors.New("lock key watch stopped")
)
