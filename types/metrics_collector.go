package types

// MetricsCollector defines methods for recording operational metrics.
//
// Implementations should be non-blocking and handle failures gracefully.
// All methods are called from internal goroutines and must be thread-safe.
//
// This interface composes smaller, domain-focused interfaces for better modularity.
type MetricsCollector interface {
	SessionMetrics
	LockMetrics
	ElectionMetrics
}

// SessionMetrics defines metrics for session lifecycle operations.
type SessionMetrics interface {
	// RecordSessionOperation records a session operation outcome.
	//
	// Parameters:
	//   - operation: Operation type ("create", "renew", "destroy")
	//   - success: true if the service call succeeded
	//   - duration: Time taken in seconds
	RecordSessionOperation(operation string, success bool, duration float64)

	// RecordSessionExpired records that the service reported the session unknown during renewal.
	RecordSessionExpired()
}

// LockMetrics defines metrics for lock key operations.
type LockMetrics interface {
	// RecordLockOperation records a conditional write outcome.
	//
	// Parameters:
	//   - operation: Operation type ("acquire", "release")
	//   - result: "granted", "denied" or "error"
	//   - duration: Time taken in seconds
	RecordLockOperation(operation string, result string, duration float64)

	// RecordLockEvent records an emitted lock event.
	RecordLockEvent(event LockEventType)

	// RecordWatchError records a non-fatal watch transport error.
	RecordWatchError()

	// RecordDuplicateNotification records a notification suppressed by deduplication.
	RecordDuplicateNotification()
}

// ElectionMetrics defines metrics for election transitions.
type ElectionMetrics interface {
	// RecordElectionTransition records an election state transition.
	RecordElectionTransition(from, to ElectionState)

	// RecordReacquireAttempt records a delayed reacquire attempt triggered by a released lock.
	//
	// Parameters:
	//   - granted: true if the service granted the lock
	RecordReacquireAttempt(granted bool)
}
