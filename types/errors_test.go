package types

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSentinelErrors(t *testing.T) {
	t.Run("errors.Is works through wrapping", func(t *testing.T) {
		wrapped := fmt.Errorf("%w: %w", ErrSessionRenew, ErrSessionNotFound)
		require.ErrorIs(t, wrapped, ErrSessionRenew)
		require.ErrorIs(t, wrapped, ErrSessionNotFound)
		require.NotErrorIs(t, wrapped, ErrSessionCreate)

		joined := errors.Join(ErrRelease, errors.New("additional context"))
		require.ErrorIs(t, joined, ErrRelease)
	})

	t.Run("all errors are distinct", func(t *testing.T) {
		allErrors := []error{
			ErrInvalidConfig,
			ErrClientRequired,
			ErrAlreadyStarted,
			ErrNotStarted,
			ErrResigned,
			ErrSessionCreate,
			ErrSessionRenew,
			ErrSessionDestroy,
			ErrSessionNotFound,
			ErrNoSession,
			ErrAcquire,
			ErrRelease,
			ErrWatchTransport,
			ErrAlreadyWatching,
			ErrWatchStopped,
		}

		for i, a := range allErrors {
			for j, b := range allErrors {
				if i == j {
					continue
				}
				require.NotErrorIs(t, a, b, "%q should not match %q", a, b)
			}
		}
	})
}
