package kvutil

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidKey(t *testing.T) {
	tests := []struct {
		key   string
		valid bool
	}{
		{"elector/leader", true},
		{"svc-a_1=x.y", true},
		{"", false},
		{".leading", false},
		{"trailing.", false},
		{"has space", false},
		{"wild*card", false},
		{"h.reserved", false},
		{"ünicode", false},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			require.Equal(t, tt.valid, ValidKey(tt.key))
		})
	}
}

func TestSafeKey(t *testing.T) {
	t.Run("valid key unchanged", func(t *testing.T) {
		require.Equal(t, "elector/leader", SafeKey("elector/leader"))
	})

	t.Run("invalid key hashed", func(t *testing.T) {
		got := SafeKey("service leader")
		require.True(t, strings.HasPrefix(got, hashedKeyPrefix))
		require.Len(t, got, len(hashedKeyPrefix)+32)
		require.True(t, ValidKey(got[len(hashedKeyPrefix):]))
	})

	t.Run("stable and distinct", func(t *testing.T) {
		require.Equal(t, SafeKey("a b"), SafeKey("a b"))
		require.NotEqual(t, SafeKey("a b"), SafeKey("a  b"))
	})
}
