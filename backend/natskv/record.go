package natskv

import (
	"time"

	json "github.com/goccy/go-json"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/arloliu/elector/types"
)

// sessionRecord is the JSON document stored in the sessions bucket.
type sessionRecord struct {
	ID        string        `json:"id"`
	Name      string        `json:"name,omitempty"`
	TTL       time.Duration `json:"ttl"`
	LockDelay time.Duration `json:"lockDelay"`
	Behavior  string        `json:"behavior,omitempty"`

	// ExpiresAt is the expiry deadline in Unix nanoseconds; zero never expires.
	ExpiresAt int64 `json:"expiresAt,omitempty"`
}

func (r *sessionRecord) expired(now time.Time) bool {
	return r.ExpiresAt != 0 && now.UnixNano() >= r.ExpiresAt
}

func (r *sessionRecord) extend(now time.Time) {
	if r.TTL > 0 {
		r.ExpiresAt = now.Add(r.TTL).UnixNano()
	}
}

// lockRecord is the JSON document stored in the locks bucket.
type lockRecord struct {
	Key     string `json:"key"`
	Value   []byte `json:"value,omitempty"`
	Session string `json:"session,omitempty"`

	// Holder settings, copied at acquire so a dead holder can be cleaned up
	// without its session record.
	LockDelay time.Duration `json:"lockDelay,omitempty"`
	Behavior  string        `json:"behavior,omitempty"`

	// LockDelayUntil blocks acquisition until this Unix nanosecond timestamp.
	LockDelayUntil int64 `json:"lockDelayUntil,omitempty"`

	// Deleted marks a key removed by a "delete" behavior session. The record
	// is kept so the lock-delay survives the deletion.
	Deleted bool `json:"deleted,omitempty"`
}

func (r *lockRecord) inLockDelay(now time.Time) bool {
	return r.LockDelayUntil != 0 && now.UnixNano() < r.LockDelayUntil
}

func decodeSession(entry jetstream.KeyValueEntry) (*sessionRecord, error) {
	var rec sessionRecord
	if err := json.Unmarshal(entry.Value(), &rec); err != nil {
		return nil, err
	}

	return &rec, nil
}

func decodeLock(entry jetstream.KeyValueEntry) (*lockRecord, error) {
	var rec lockRecord
	if err := json.Unmarshal(entry.Value(), &rec); err != nil {
		return nil, err
	}

	return &rec, nil
}

// pairFromEntry converts a lock bucket entry into the pair seen by callers.
//
// Deletes, purges, tombstones and undecodable payloads all map to nil.
func pairFromEntry(entry jetstream.KeyValueEntry) *types.KVPair {
	if entry == nil || entry.Operation() != jetstream.KeyValuePut {
		return nil
	}

	rec, err := decodeLock(entry)
	if err != nil || rec.Deleted {
		return nil
	}

	return &types.KVPair{
		Key:         rec.Key,
		Value:       rec.Value,
		Session:     rec.Session,
		ModifyIndex: entry.Revision(),
	}
}
