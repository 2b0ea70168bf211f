package types

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestElectionState_String(t *testing.T) {
	tests := []struct {
		state ElectionState
		want  string
	}{
		{StateCandidate, "Candidate"},
		{StateElected, "Elected"},
		{StateRetiring, "Retiring"},
		{StateResigned, "Resigned"},
		{ElectionState(99), "Unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			require.Equal(t, tt.want, tt.state.String())
		})
	}
}

func TestEventType_String(t *testing.T) {
	require.Equal(t, "released", LockReleased.String())
	require.Equal(t, "taken", LockTaken.String())
	require.Equal(t, "lost", LockLost.String())
	require.Equal(t, "acquired", LockAcquired.String())
	require.Equal(t, "unknown", LockEventType(0).String())

	require.Equal(t, "elected", EventElected.String())
	require.Equal(t, "retired", EventRetired.String())
	require.Equal(t, "unknown", ElectionEventType(0).String())
}
