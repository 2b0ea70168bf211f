// Package memory provides an in-process coordination service implementing types.Client.
//
// The store follows Consul's session and lock semantics closely enough to drive an
// election end to end without a network:
//   - Sessions expire when not renewed within their TTL
//   - Invalidating a session (destroy or expiry) releases or deletes its locks and
//     blocks re-acquisition of those keys for the session's lock-delay
//   - An explicit release frees the lock immediately
//   - Watches deliver the current state first, then one notification per change
//
// All operations are linearizable: a single mutex orders every write.
package memory
