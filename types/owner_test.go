package types

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOwner(t *testing.T) {
	t.Run("zero value is unknown", func(t *testing.T) {
		var o Owner
		require.False(t, o.Known())
		require.False(t, o.Held())
		require.NotEqual(t, Unowned(), o)
		require.Equal(t, "<unknown>", o.String())
	})

	t.Run("unowned is known but not held", func(t *testing.T) {
		o := Unowned()
		require.True(t, o.Known())
		require.False(t, o.Held())
		require.Empty(t, o.SessionID())
		require.False(t, o.Is(""))
	})

	t.Run("empty session id normalizes to unowned", func(t *testing.T) {
		require.Equal(t, Unowned(), OwnedBy(""))
	})

	t.Run("owned compares by session id", func(t *testing.T) {
		a := OwnedBy("s-1")
		require.True(t, a.Held())
		require.True(t, a.Is("s-1"))
		require.False(t, a.Is("s-2"))
		require.Equal(t, OwnedBy("s-1"), a)
		require.NotEqual(t, OwnedBy("s-2"), a)
	})
}

func TestNotification_Owner(t *testing.T) {
	require.Equal(t, Unowned(), Notification{}.Owner())
	require.Equal(t, Unowned(), Notification{Pair: &KVPair{Key: "k"}}.Owner())
	require.Equal(t, OwnedBy("abc"), Notification{Pair: &KVPair{Key: "k", Session: "abc"}}.Owner())
}
