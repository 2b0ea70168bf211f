package kvutil

import (
	"fmt"
	"strings"

	"github.com/zeebo/xxh3"
)

// hashedKeyPrefix marks keys that were rewritten because NATS could not store them verbatim.
const hashedKeyPrefix = "h."

// SafeKey maps an arbitrary lock key onto a valid NATS KV key.
//
// NATS KV keys are limited to [-/_=.a-zA-Z0-9] and may not start or end with '.'.
// Keys that already satisfy those rules are returned unchanged so they stay readable
// in `nats kv` tooling; anything else is replaced by a stable 128-bit xxh3 digest.
//
// Parameters:
//   - key: Lock key as configured by the user
//
// Returns:
//   - string: Key usable with jetstream.KeyValue
//
// Example:
//
//	kvutil.SafeKey("service/leader")  // "service/leader"
//	kvutil.SafeKey("service leader")  // "h.3f1c..."
func SafeKey(key string) string {
	if ValidKey(key) {
		return key
	}

	sum := xxh3.HashString128(key).Bytes()

	return fmt.Sprintf("%s%x", hashedKeyPrefix, sum[:])
}

// ValidKey reports whether key can be stored in a NATS KV bucket as is.
func ValidKey(key string) bool {
	if key == "" || strings.HasPrefix(key, ".") || strings.HasSuffix(key, ".") {
		return false
	}

	// Reserve the hashed namespace so a user key can never collide with a digest.
	if strings.HasPrefix(key, hashedKeyPrefix) {
		return false
	}

	for i := 0; i < len(key); i++ {
		c := key[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case c == '-', c == '/', c == '_', c == '=', c == '.':
		default:
			return false
		}
	}

	return true
}
