package natskv

import (
	"context"
	"errors"
	"fmt"

	json "github.com/goccy/go-json"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/arloliu/elector/internal/kvutil"
	"github.com/arloliu/elector/internal/natsutil"
	"github.com/arloliu/elector/types"
)

// KVGet returns the pair stored at key, or nil when the key is absent.
func (c *Client) KVGet(ctx context.Context, key string) (*types.KVPair, error) {
	entry, err := c.locks.Get(ctx, kvutil.SafeKey(key))
	if errors.Is(err, jetstream.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("natskv: get %s: %w", key, err)
	}

	return pairFromEntry(entry), nil
}

// KVAcquire grants the lock on key to sessionID if it is free and not in lock-delay.
//
// A lock held by a session that no longer exists is released with the holder's
// lock-delay and the attempt is denied, exactly as if the janitor had run first.
func (c *Client) KVAcquire(ctx context.Context, key string, value []byte, sessionID string) (bool, error) {
	safeKey := kvutil.SafeKey(key)

	for range defaultCASRetries {
		sess, err := c.liveSession(ctx, sessionID)
		if err != nil {
			return false, err
		}

		entry, rec, err := c.getLock(ctx, safeKey)
		if err != nil {
			return false, err
		}

		if rec != nil {
			switch {
			case rec.Session == sessionID:
			case rec.Session != "":
				return false, c.checkHolder(ctx, safeKey, rec)
			case rec.inLockDelay(c.clock.Now()):
				return false, nil
			}
		}

		next := lockRecord{
			Key:       key,
			Value:     value,
			Session:   sessionID,
			LockDelay: sess.LockDelay,
			Behavior:  sess.Behavior,
		}

		var revision uint64
		if entry != nil {
			revision = entry.Revision()
		}

		err = c.putLock(ctx, safeKey, &next, revision)
		if err == nil {
			return true, nil
		}
		if !natsutil.IsRevisionConflict(err) {
			return false, err
		}
	}

	// Lost every race against concurrent writers: report contention.
	return false, nil
}

// KVRelease frees the lock on key if sessionID holds it. No lock-delay applies.
func (c *Client) KVRelease(ctx context.Context, key string, value []byte, sessionID string) (bool, error) {
	if sessionID == "" {
		return false, nil
	}

	safeKey := kvutil.SafeKey(key)

	for range defaultCASRetries {
		entry, rec, err := c.getLock(ctx, safeKey)
		if err != nil {
			return false, err
		}
		if rec == nil || rec.Session != sessionID {
			return false, nil
		}

		next := lockRecord{Key: key, Value: value}

		err = c.putLock(ctx, safeKey, &next, entry.Revision())
		if err == nil {
			return true, nil
		}
		if !natsutil.IsRevisionConflict(err) {
			return false, err
		}
	}

	return false, fmt.Errorf("natskv: release %s: too many concurrent updates", key)
}

// checkHolder releases the lock when its holder session is gone.
func (c *Client) checkHolder(ctx context.Context, safeKey string, rec *lockRecord) error {
	_, err := c.liveSession(ctx, rec.Session)
	if err == nil {
		return nil
	}
	if !errors.Is(err, types.ErrSessionNotFound) {
		return err
	}

	return c.releaseDead(ctx, safeKey, rec.Session, rec.LockDelay, rec.Behavior)
}

// getLock reads a lock record. A missing key yields a nil entry and record.
func (c *Client) getLock(ctx context.Context, safeKey string) (jetstream.KeyValueEntry, *lockRecord, error) {
	entry, err := c.locks.Get(ctx, safeKey)
	if errors.Is(err, jetstream.ErrKeyNotFound) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("natskv: get lock %s: %w", safeKey, err)
	}

	rec, err := decodeLock(entry)
	if err != nil {
		// A foreign payload reads as an unlocked key and may be overwritten.
		c.logger.Warn("malformed lock record", "key", safeKey, "error", err)
		return entry, &lockRecord{}, nil
	}

	return entry, rec, nil
}

// putLock writes a lock record with a compare-and-set on revision (zero: must not exist).
func (c *Client) putLock(ctx context.Context, safeKey string, rec *lockRecord, revision uint64) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}

	if revision == 0 {
		_, err = c.locks.Create(ctx, safeKey, data)
	} else {
		_, err = c.locks.Update(ctx, safeKey, data, revision)
	}

	return err
}
