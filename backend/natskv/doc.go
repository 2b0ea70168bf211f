// Package natskv implements types.Client on top of NATS JetStream KeyValue buckets.
//
// JetStream KV has no native sessions, so the backend models them with two buckets:
//   - <prefix>-sessions: one JSON record per session holding its TTL, lock-delay and
//     expiry deadline; renewals push the deadline forward with a revision-checked update
//   - <prefix>-locks: one JSON record per lock key holding the value, the holder's
//     session ID and the lock-delay deadline left behind by an invalidated holder
//
// Every write is a compare-and-set on the entry revision, so concurrent candidates in
// different processes never both believe they hold a key. Expired sessions are swept by
// a janitor goroutine that every client runs; acquire attempts also release keys whose
// holder is no longer alive, so a crashed janitor never wedges a key.
//
// Lock keys that are not valid NATS KV keys are stored under a stable hashed name
// (see kvutil.SafeKey); the original key is kept inside the record.
package natskv
