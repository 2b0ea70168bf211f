// Package etcd implements types.Client on etcd v3.
//
// A session is an etcd lease. Creating a session grants the lease and writes a
// marker key attached to it under <prefix>sessions/<id>; the marker disappears the
// moment the lease expires or is revoked, which makes session liveness a plain key
// comparison inside transactions.
//
// Each lock lives under <prefix>locks/<key> as a JSON record holding the value, the
// holder's session ID and the lock-delay deadline. Acquire and release are
// transactions that compare the record's mod revision, and acquire also requires
// the caller's session marker to exist. Every client watches the session markers and
// releases the locks of sessions that vanish, applying the holder's lock-delay.
package etcd
