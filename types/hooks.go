package types

import "context"

// Hooks defines callbacks for election lifecycle events.
//
// All hooks are optional. Unlike event channels, OnElected and OnRetired run
// synchronously on the lock key's event goroutine, in emission order:
//   - OnRetired returns before any later notification is processed, so leader-only
//     work can be stopped before the candidate reacts to anything else
//   - A slow hook delays processing of every later notification for the key
//   - Hook errors are logged but never alter election behavior
//   - Hooks must not call Resign synchronously; Resign waits for the event goroutine
//
// OnError may be called from any goroutine.
//
// Example:
//
//	hooks := &elector.Hooks{
//	    OnElected: func(ctx context.Context) error {
//	        return worker.StartLeaderLoop(ctx)
//	    },
//	    OnRetired: func(ctx context.Context) error {
//	        worker.StopLeaderLoop()
//	        return nil
//	    },
//	}
type Hooks struct {
	// OnElected is called when the local process became the leader.
	OnElected func(ctx context.Context) error

	// OnRetired is called when the local process stopped being the leader.
	OnRetired func(ctx context.Context) error

	// OnError is called when a recoverable error occurs (watch transport failures,
	// failed reacquire attempts, failed renewals).
	OnError func(ctx context.Context, err error) error
}
