package etcd

import (
	"time"

	json "github.com/goccy/go-json"
	"go.etcd.io/etcd/api/v3/mvccpb"

	"github.com/arloliu/elector/types"
)

// sessionRecord is the JSON marker attached to a session lease.
type sessionRecord struct {
	ID        string        `json:"id"`
	Name      string        `json:"name,omitempty"`
	TTL       time.Duration `json:"ttl"`
	LockDelay time.Duration `json:"lockDelay"`
	Behavior  string        `json:"behavior,omitempty"`
}

// lockRecord is the JSON document stored at a lock key.
type lockRecord struct {
	Key     string `json:"key"`
	Value   []byte `json:"value,omitempty"`
	Session string `json:"session,omitempty"`

	// Holder settings, copied at acquire so a vanished holder can be cleaned up.
	LockDelay time.Duration `json:"lockDelay,omitempty"`
	Behavior  string        `json:"behavior,omitempty"`

	// LockDelayUntil blocks acquisition until this Unix nanosecond timestamp.
	LockDelayUntil int64 `json:"lockDelayUntil,omitempty"`

	// Deleted marks a key removed by a "delete" behavior session.
	Deleted bool `json:"deleted,omitempty"`
}

func (r *lockRecord) inLockDelay(now time.Time) bool {
	return r.LockDelayUntil != 0 && now.UnixNano() < r.LockDelayUntil
}

// pairFromKV converts a lock record into the pair seen by callers.
//
// Tombstones and undecodable payloads map to nil.
func pairFromKV(kv *mvccpb.KeyValue) *types.KVPair {
	if kv == nil {
		return nil
	}

	var rec lockRecord
	if err := json.Unmarshal(kv.Value, &rec); err != nil || rec.Deleted {
		return nil
	}

	return &types.KVPair{
		Key:         rec.Key,
		Value:       rec.Value,
		Session:     rec.Session,
		ModifyIndex: uint64(kv.ModRevision),
	}
}
