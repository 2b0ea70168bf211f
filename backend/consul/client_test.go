package consul

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/elector"
	electortest "github.com/arloliu/elector/testing"
	"github.com/arloliu/elector/types"
)

func nextNotification(t *testing.T, sub types.Subscription) types.Notification {
	t.Helper()

	select {
	case n, ok := <-sub.Notifications():
		require.True(t, ok, "subscription closed")
		return n
	case <-time.After(5 * time.Second):
		t.Fatal("no notification")
		return types.Notification{}
	}
}

func TestClient_Sessions(t *testing.T) {
	f := newFakeConsul(t)
	c := f.client(t)
	ctx := t.Context()

	id, err := c.SessionCreate(ctx, types.SessionOptions{Name: "a", TTL: 10 * time.Second, LockDelay: time.Second})
	require.NoError(t, err)
	require.NotEmpty(t, id)
	require.Equal(t, 1, f.store.SessionCount())

	require.NoError(t, c.SessionRenew(ctx, id, ""))
	require.NoError(t, c.SessionDestroy(ctx, id, ""))
	require.Equal(t, 0, f.store.SessionCount())

	err = c.SessionRenew(ctx, id, "")
	require.ErrorIs(t, err, types.ErrSessionNotFound)
}

func TestClient_Locks(t *testing.T) {
	f := newFakeConsul(t)
	c := f.client(t)
	ctx := t.Context()

	const key = "service/leader"

	s1, err := c.SessionCreate(ctx, types.SessionOptions{TTL: time.Minute})
	require.NoError(t, err)
	s2, err := c.SessionCreate(ctx, types.SessionOptions{TTL: time.Minute})
	require.NoError(t, err)

	pair, err := c.KVGet(ctx, key)
	require.NoError(t, err)
	require.Nil(t, pair)

	ok, err := c.KVAcquire(ctx, key, []byte("one"), s1)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = c.KVAcquire(ctx, key, []byte("two"), s2)
	require.NoError(t, err)
	require.False(t, ok)

	pair, err = c.KVGet(ctx, key)
	require.NoError(t, err)
	require.Equal(t, key, pair.Key)
	require.Equal(t, s1, pair.Session)
	require.Equal(t, []byte("one"), pair.Value)

	ok, err = c.KVRelease(ctx, key, []byte("free"), s1)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = c.KVAcquire(ctx, key, nil, "unknown-session")
	require.ErrorIs(t, err, types.ErrSessionNotFound)
	require.False(t, ok)
}

func TestClient_Watch(t *testing.T) {
	f := newFakeConsul(t)
	c := f.client(t, WithWaitTime(200*time.Millisecond))
	ctx := t.Context()

	const key = "service/leader"

	sub, err := c.KVWatch(ctx, key)
	require.NoError(t, err)

	n := nextNotification(t, sub)
	require.Nil(t, n.Pair)

	id, err := c.SessionCreate(ctx, types.SessionOptions{TTL: time.Minute})
	require.NoError(t, err)
	ok, err := c.KVAcquire(ctx, key, []byte("v"), id)
	require.NoError(t, err)
	require.True(t, ok)

	n = nextNotification(t, sub)
	require.Equal(t, types.OwnedBy(id), n.Owner())

	ok, err = c.KVRelease(ctx, key, []byte("v"), id)
	require.NoError(t, err)
	require.True(t, ok)

	n = nextNotification(t, sub)
	require.Equal(t, types.Unowned(), n.Owner())

	require.NoError(t, sub.Stop())
	require.NoError(t, sub.Stop())

	_, open := <-sub.Notifications()
	require.False(t, open)
}

func TestClient_WatchRetriesAfterError(t *testing.T) {
	f := newFakeConsul(t)
	c := f.client(t, WithWaitTime(100*time.Millisecond))

	f.failGets.Store(2)

	sub, err := c.KVWatch(t.Context(), "service/leader")
	require.NoError(t, err)
	t.Cleanup(func() { _ = sub.Stop() })

	for range 2 {
		select {
		case err := <-sub.Errors():
			require.ErrorContains(t, err, "no leader")
		case <-time.After(5 * time.Second):
			t.Fatal("no error reported")
		}
	}

	n := nextNotification(t, sub)
	require.Nil(t, n.Pair)
}

func TestClient_WatchCancelledContext(t *testing.T) {
	f := newFakeConsul(t)
	c := f.client(t)

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	_, err := c.KVWatch(ctx, "service/leader")
	require.ErrorIs(t, err, context.Canceled)
}

func TestElection_OverConsul(t *testing.T) {
	f := newFakeConsul(t)

	newCandidate := func(value string) *elector.Elector {
		cfg := elector.TestConfig()
		cfg.Key = "consul/leader"
		cfg.Value = value

		e, err := elector.New(&cfg, f.client(t, WithWaitTime(time.Second)), elector.WithLogger(electortest.NewTestLogger(t)))
		require.NoError(t, err)
		t.Cleanup(func() { _ = e.Resign(context.Background()) })
		require.NoError(t, e.Start(t.Context()))

		return e
	}

	a := newCandidate("a")
	require.NoError(t, <-a.WaitState(elector.StateElected, 5*time.Second))

	b := newCandidate("b")
	require.Eventually(t, func() bool {
		return b.LastOwner().Is(a.SessionID())
	}, 5*time.Second, 10*time.Millisecond)
	require.False(t, b.IsLeader())

	require.NoError(t, a.Resign(t.Context()))
	require.NoError(t, <-b.WaitState(elector.StateElected, 5*time.Second))

	pair, err := f.store.KVGet(t.Context(), "consul/leader")
	require.NoError(t, err)
	require.Equal(t, b.SessionID(), pair.Session)
	require.Equal(t, []byte("b"), pair.Value)
}
