package backoff

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestJitter_BoundsAndCapStickiness(t *testing.T) {
	base := 200 * time.Millisecond
	capDur := 500 * time.Millisecond
	rng := NewRNG(42)

	prev := time.Duration(0)
	for range 10 {
		next := Jitter(prev, base, 1.6, capDur, rng)
		require.GreaterOrEqual(t, next, base)
		require.LessOrEqual(t, next, capDur)
		prev = next
	}
}

func TestJitter_CapLessThanBase(t *testing.T) {
	base := 200 * time.Millisecond
	capDur := 100 * time.Millisecond
	rng := NewRNG(1)

	require.Equal(t, capDur, Jitter(0, base, 1.6, capDur, rng))
	require.Equal(t, capDur, Jitter(base, base, 1.6, capDur, rng))
}

func TestJitter_Defaults(t *testing.T) {
	require.Equal(t, 50*time.Millisecond, Jitter(0, 0, 0, 0, nil))

	// Multiplier below one never grows past base plus one base of jitter.
	next := Jitter(time.Second, 100*time.Millisecond, 0.5, 0, NewRNG(7))
	require.GreaterOrEqual(t, next, 100*time.Millisecond)
	require.Less(t, next, time.Second+100*time.Millisecond)
}

func TestJitter_DeterministicWithSeed(t *testing.T) {
	a := New(99)
	b := New(99)

	for range 8 {
		require.Equal(t, a.Next(), b.Next())
	}
}

func TestBackoff_Reset(t *testing.T) {
	b := New(3)
	require.Equal(t, DefaultBase, b.Next())

	for range 20 {
		d := b.Next()
		require.LessOrEqual(t, d, DefaultCap)
	}

	b.Reset()
	require.Equal(t, DefaultBase, b.Next())
}

func TestNewRNG(t *testing.T) {
	require.Nil(t, NewRNG(0))
	require.NotNil(t, NewRNG(5))
}
