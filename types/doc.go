// Package types provides core type definitions and interfaces for the elector library.
//
// This package contains shared types that are used across multiple packages in the
// elector library. By keeping these types in a separate package, we avoid import cycles
// between the main elector package and its internal implementations.
//
// Key types:
//   - Client: Contract of the external coordination service (sessions, locks, watches)
//   - Owner: Observed lock ownership (unknown, unowned, or held by a session)
//   - LockEvent / ElectionEvent: Typed ownership and election signals
//   - ElectionState: Observational election label
//   - Logger: Structured logging interface
//   - MetricsCollector: Metrics recording interface
package types
