// Package metrics provides MetricsCollector implementations.
package metrics

import "github.com/arloliu/elector/types"

// NopMetrics implements a no-op metrics collector.
//
// All metrics are discarded. Useful for testing or when external
// metrics collection is used.
type NopMetrics struct{}

// Compile-time assertion that NopMetrics implements MetricsCollector.
var _ types.MetricsCollector = (*NopMetrics)(nil)

// NewNop creates a new no-op metrics collector.
//
// Returns:
//   - *NopMetrics: A new no-op metrics collector instance
//
// Example:
//
//	metrics := metrics.NewNop()
//	e, _ := elector.New(cfg, client, elector.WithMetrics(metrics))
func NewNop() *NopMetrics {
	return &NopMetrics{}
}

// SessionMetrics implementation

// RecordSessionOperation discards the session operation metric.
func (n *NopMetrics) RecordSessionOperation(_ /* operation */ string, _ /* success */ bool, _ /* duration */ float64) {
	// No-op
}

// RecordSessionExpired discards the session expiry metric.
func (n *NopMetrics) RecordSessionExpired() {
	// No-op
}

// LockMetrics implementation

// RecordLockOperation discards the lock operation metric.
func (n *NopMetrics) RecordLockOperation(_ /* operation */ string, _ /* result */ string, _ /* duration */ float64) {
	// No-op
}

// RecordLockEvent discards the lock event metric.
func (n *NopMetrics) RecordLockEvent(_ /* event */ types.LockEventType) {
	// No-op
}

// RecordWatchError discards the watch error metric.
func (n *NopMetrics) RecordWatchError() {
	// No-op
}

// RecordDuplicateNotification discards the duplicate notification metric.
func (n *NopMetrics) RecordDuplicateNotification() {
	// No-op
}

// ElectionMetrics implementation

// RecordElectionTransition discards the election transition metric.
func (n *NopMetrics) RecordElectionTransition(_ /* from */, _ /* to */ types.ElectionState) {
	// No-op
}

// RecordReacquireAttempt discards the reacquire attempt metric.
func (n *NopMetrics) RecordReacquireAttempt(_ /* granted */ bool) {
	// No-op
}
