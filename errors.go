package elector

import "github.com/arloliu/elector/types"

// Sentinel errors returned by the Elector and its components.
//
// Check them with errors.Is; every error returned by this module that stems from a
// known condition wraps one of these.
var (
	// ErrInvalidConfig is returned when the configuration is invalid.
	ErrInvalidConfig = types.ErrInvalidConfig

	// ErrClientRequired is returned when the coordination client is nil.
	ErrClientRequired = types.ErrClientRequired

	// ErrAlreadyStarted is returned when Start is called on a running elector.
	ErrAlreadyStarted = types.ErrAlreadyStarted

	// ErrNotStarted is returned when an operation requires a started elector.
	ErrNotStarted = types.ErrNotStarted

	// ErrResigned is returned when the elector has resigned.
	ErrResigned = types.ErrResigned
)

// Session lifecycle errors.
var (
	ErrSessionCreate   = types.ErrSessionCreate
	ErrSessionRenew    = types.ErrSessionRenew
	ErrSessionDestroy  = types.ErrSessionDestroy
	ErrSessionNotFound = types.ErrSessionNotFound
	ErrNoSession       = types.ErrNoSession
)

// Lock errors.
var (
	ErrAcquire         = types.ErrAcquire
	ErrRelease         = types.ErrRelease
	ErrWatchTransport  = types.ErrWatchTransport
	ErrAlreadyWatching = types.ErrAlreadyWatching
	ErrWatchStopped    = types.ErrWatchStopped
)
