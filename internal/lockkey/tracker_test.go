package lockkey

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/elector/types"
)

func TestTracker_Observe(t *testing.T) {
	const local = "local"

	tests := []struct {
		name     string
		sequence []types.Owner
		want     [][]types.LockEventType
	}{
		{
			name:     "fresh key acquired locally",
			sequence: []types.Owner{types.Unowned(), types.OwnedBy(local)},
			want: [][]types.LockEventType{
				{types.LockReleased},
				{types.LockTaken, types.LockAcquired},
			},
		},
		{
			name:     "held by other",
			sequence: []types.Owner{types.OwnedBy("other")},
			want: [][]types.LockEventType{
				{types.LockTaken},
			},
		},
		{
			name:     "local lock lost to release",
			sequence: []types.Owner{types.OwnedBy(local), types.Unowned()},
			want: [][]types.LockEventType{
				{types.LockTaken, types.LockAcquired},
				{types.LockReleased, types.LockLost},
			},
		},
		{
			name:     "local lock taken over directly",
			sequence: []types.Owner{types.OwnedBy(local), types.OwnedBy("other")},
			want: [][]types.LockEventType{
				{types.LockTaken, types.LockAcquired},
				{types.LockTaken, types.LockLost},
			},
		},
		{
			name:     "duplicates ignored",
			sequence: []types.Owner{types.Unowned(), types.Unowned(), types.OwnedBy("other"), types.OwnedBy("other")},
			want: [][]types.LockEventType{
				{types.LockReleased},
				nil,
				{types.LockTaken},
				nil,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var tr tracker
			for i, owner := range tt.sequence {
				events, changed := tr.observe(owner, local)
				require.Equal(t, tt.want[i] != nil, changed, "step %d", i)
				if tt.want[i] == nil {
					require.Empty(t, events)
					continue
				}
				require.Equal(t, tt.want[i], events, "step %d", i)
			}
		})
	}
}

func TestTracker_Properties(t *testing.T) {
	const local = "local"
	owners := []types.Owner{
		types.Unowned(),
		types.OwnedBy(local),
		types.OwnedBy("a"),
		types.OwnedBy("b"),
	}

	for seed := range uint64(200) {
		rng := rand.New(rand.NewPCG(seed, seed^0x5bd1e995))

		var tr tracker
		prev := types.Owner{}
		for step := range 100 {
			owner := owners[rng.IntN(len(owners))]
			events, changed := tr.observe(owner, local)

			// Identical consecutive owners never produce events.
			if owner == prev {
				require.False(t, changed, "seed %d step %d", seed, step)
				require.Empty(t, events)
			} else {
				require.True(t, changed)
				require.NotEmpty(t, events)

				// Exactly one of released/taken, first.
				require.Contains(t, []types.LockEventType{types.LockReleased, types.LockTaken}, events[0])
				require.Equal(t, owner.Held(), events[0] == types.LockTaken)
				for _, ev := range events[1:] {
					require.NotEqual(t, types.LockReleased, ev)
					require.NotEqual(t, types.LockTaken, ev)
				}
				require.LessOrEqual(t, len(events), 2)
			}

			// Local flag mirrors the last observed owner.
			require.Equal(t, owner.Is(local), tr.locked, "seed %d step %d", seed, step)
			require.Equal(t, owner, tr.last)

			prev = owner
		}
	}
}
