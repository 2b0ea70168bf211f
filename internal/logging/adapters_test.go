package logging

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/arloliu/elector/types"
)

func TestAdapters_KeyValues(t *testing.T) {
	tests := []struct {
		name  string
		build func(buf *bytes.Buffer) types.Logger
		warn  string
	}{
		{
			name: "slog",
			build: func(buf *bytes.Buffer) types.Logger {
				return NewSlog(slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
			},
			warn: "level=WARN",
		},
		{
			name: "hclog",
			build: func(buf *bytes.Buffer) types.Logger {
				return NewHclog(hclog.New(&hclog.LoggerOptions{Name: "test", Level: hclog.Debug, Output: buf}))
			},
			warn: "[WARN]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			logger := tt.build(buf)

			logger.Debug("lock released", "key", "svc/leader")
			logger.Info("elected", "session", "s-1")
			logger.Warn("renew failed", "attempt", 3)
			logger.Error("watch failed", "error", "timeout")

			output := buf.String()
			require.Contains(t, output, "lock released")
			require.Contains(t, output, "key=svc/leader")
			require.Contains(t, output, "session=s-1")
			require.Contains(t, output, "attempt=3")
			require.Contains(t, output, tt.warn)
			require.Contains(t, output, "error=timeout")
		})
	}
}

func TestSlogLogger_LevelFiltering(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := NewSlog(slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelWarn})))

	logger.Debug("hidden")
	logger.Info("hidden")
	require.Empty(t, buf.String())

	logger.Warn("shown")
	require.Contains(t, buf.String(), "shown")
}

func TestSlogLogger_NilUsesDefault(t *testing.T) {
	buf := &bytes.Buffer{}
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(buf, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })

	NewSlog(nil).Info("via default", "key", "value")
	require.Contains(t, buf.String(), "key=value")
}

func TestSlogLogger_FatalLevel(t *testing.T) {
	require.Equal(t, "ERROR+4", LevelFatal.String())
}

func TestZapLogger(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	logger := NewZap(zap.New(core).Sugar())

	logger.Debug("debug message", "key", "value")
	logger.Info("info message", "session", "s-1")
	logger.Warn("warn message")
	logger.Error("error message", "error", "timeout")

	entries := logs.All()
	require.Len(t, entries, 4)
	require.Equal(t, zapcore.DebugLevel, entries[0].Level)
	require.Equal(t, "value", entries[0].ContextMap()["key"])
	require.Equal(t, "s-1", entries[1].ContextMap()["session"])
	require.Equal(t, zapcore.WarnLevel, entries[2].Level)
	require.Equal(t, "error message", entries[3].Message)

	require.NotNil(t, logger.Desugar())
}

func TestHclogLogger_NilCreatesDefault(t *testing.T) {
	logger := NewHclog(nil)
	require.NotNil(t, logger.logger)
	require.Equal(t, "elector", logger.logger.Name())
}
