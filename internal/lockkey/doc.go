// Package lockkey turns the watch stream of one coordination-service key into lock
// ownership events.
//
// A Key owns a single lock entry. It watches the entry, deduplicates notifications by
// owning session, and emits, per changed notification, exactly one of released or
// taken followed by at most one of lost or acquired. Notifications are processed on a
// single goroutine per key, so listeners observe events in delivery order.
//
// Acquire and Release are session-scoped conditional writes. They never touch local
// state: the outcome is observed through the watch like any other change.
package lockkey
