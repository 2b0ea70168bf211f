package etcd

import (
	"context"
	"errors"
	"fmt"
	"time"

	json "github.com/goccy/go-json"
	clientv3 "go.etcd.io/etcd/client/v3"

	"github.com/arloliu/elector/types"
)

// KVGet returns the pair stored at key, or nil when the key is absent.
func (c *Client) KVGet(ctx context.Context, key string) (*types.KVPair, error) {
	resp, err := c.cli.Get(ctx, c.lockKey(key))
	if err != nil {
		return nil, fmt.Errorf("etcd: get %s: %w", key, err)
	}
	if len(resp.Kvs) == 0 {
		return nil, nil
	}

	return pairFromKV(resp.Kvs[0]), nil
}

// KVAcquire grants the lock on key to sessionID if it is free and not in lock-delay.
//
// The write is a transaction that requires both an unchanged lock record and a live
// session marker. A lock held by a vanished session is released with the holder's
// lock-delay and the attempt is denied.
func (c *Client) KVAcquire(ctx context.Context, key string, value []byte, sessionID string) (bool, error) {
	lk := c.lockKey(key)

	for range defaultCASRetries {
		sess, err := c.getSession(ctx, sessionID)
		if err != nil {
			return false, err
		}

		rec, rev, err := c.getLock(ctx, lk)
		if err != nil {
			return false, err
		}

		if rec != nil {
			switch {
			case rec.Session == sessionID:
			case rec.Session != "":
				return false, c.checkHolder(ctx, lk, rec)
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

		ok, err := c.putLock(ctx, lk, &next, rev, clientv3.Compare(clientv3.CreateRevision(c.sessionKey(sessionID)), ">", 0))
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
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

	lk := c.lockKey(key)

	for range defaultCASRetries {
		rec, rev, err := c.getLock(ctx, lk)
		if err != nil {
			return false, err
		}
		if rec == nil || rec.Session != sessionID {
			return false, nil
		}

		ok, err := c.putLock(ctx, lk, &lockRecord{Key: key, Value: value}, rev)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}

	return false, fmt.Errorf("etcd: release %s: too many concurrent updates", key)
}

// checkHolder releases the lock when its holder session is gone.
func (c *Client) checkHolder(ctx context.Context, lk string, rec *lockRecord) error {
	_, err := c.getSession(ctx, rec.Session)
	if err == nil {
		return nil
	}
	if !errors.Is(err, types.ErrSessionNotFound) {
		return err
	}

	return c.releaseDead(ctx, lk, rec.Session, rec.LockDelay, rec.Behavior)
}

// releaseHeld frees every lock held by a vanished session.
func (c *Client) releaseHeld(ctx context.Context, sessionID string) error {
	resp, err := c.cli.Get(ctx, c.prefix+"locks/", clientv3.WithPrefix())
	if err != nil {
		return fmt.Errorf("etcd: list locks: %w", err)
	}

	var errs []error
	for _, kv := range resp.Kvs {
		var rec lockRecord
		if err := json.Unmarshal(kv.Value, &rec); err != nil || rec.Session != sessionID {
			continue
		}

		if err := c.releaseDead(ctx, string(kv.Key), sessionID, rec.LockDelay, rec.Behavior); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// releaseDead frees a lock held by a vanished session and starts its lock-delay.
func (c *Client) releaseDead(ctx context.Context, lk, sessionID string, lockDelay time.Duration, behavior string) error {
	for range defaultCASRetries {
		rec, rev, err := c.getLock(ctx, lk)
		if err != nil {
			return err
		}
		if rec == nil || rec.Session != sessionID {
			return nil
		}

		next := lockRecord{
			Key:            rec.Key,
			Value:          rec.Value,
			LockDelayUntil: c.clock.Now().Add(lockDelay).UnixNano(),
		}
		if behavior == "delete" {
			next.Value = nil
			next.Deleted = true
		}

		ok, err := c.putLock(ctx, lk, &next, rev)
		if err != nil {
			return err
		}
		if ok {
			c.logger.Debug("released lock of vanished session", "key", rec.Key, "session", sessionID, "lock_delay", lockDelay)
			return nil
		}
	}

	return fmt.Errorf("etcd: release %s: too many concurrent updates", lk)
}

// getLock reads a lock record and its mod revision. A missing key yields nil and 0.
func (c *Client) getLock(ctx context.Context, lk string) (*lockRecord, int64, error) {
	resp, err := c.cli.Get(ctx, lk)
	if err != nil {
		return nil, 0, fmt.Errorf("etcd: get lock %s: %w", lk, err)
	}
	if len(resp.Kvs) == 0 {
		return nil, 0, nil
	}

	kv := resp.Kvs[0]

	var rec lockRecord
	if err := json.Unmarshal(kv.Value, &rec); err != nil {
		// A foreign payload reads as an unlocked key and may be overwritten.
		c.logger.Warn("malformed lock record", "key", lk, "error", err)
		return &lockRecord{}, kv.ModRevision, nil
	}

	return &rec, kv.ModRevision, nil
}

// putLock writes a lock record if its mod revision is still rev (zero: absent)
// and every extra comparison holds.
func (c *Client) putLock(ctx context.Context, lk string, rec *lockRecord, rev int64, extra ...clientv3.Cmp) (bool, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return false, err
	}

	cmps := append([]clientv3.Cmp{clientv3.Compare(clientv3.ModRevision(lk), "=", rev)}, extra...)

	resp, err := c.cli.Txn(ctx).If(cmps...).Then(clientv3.OpPut(lk, string(data))).Commit()
	if err != nil {
		return false, fmt.Errorf("etcd: write lock %s: %w", lk, err)
	}

	return resp.Succeeded, nil
}
