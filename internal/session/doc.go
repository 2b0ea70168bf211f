// Package session manages the lifecycle of a renewable coordination-service session.
//
// A Manager creates a session on demand, renews it every TTL/2 in the background and
// destroys it on request. Renewal failures never reach the caller of Create: they are
// logged, counted and retried on the next tick. When the service reports that the
// session no longer exists, the manager forgets the ID so the next Create starts over.
package session
