package logger

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFormatKeyValues(t *testing.T) {
	require.Equal(t, "", formatKeyValues(nil))
	require.Equal(t, "key=value ", formatKeyValues([]any{"key", "value"}))
	require.Equal(t, "a=1 b=<missing> ", formatKeyValues([]any{"a", 1, "b"}))
}

func TestTestLogger_DropsAfterCleanup(t *testing.T) {
	var logger *TestLogger
	t.Run("inner", func(t *testing.T) {
		logger = NewTest(t)
		logger.Info("inside test", "k", "v")
	})

	require.NotPanics(t, func() {
		logger.Info("after test completed")
	})
}
