// Package logging adapts third-party loggers to types.Logger.
package logging

import (
	"context"
	"log/slog"
	"os"

	"github.com/arloliu/elector/types"
)

// LevelFatal is the slog level used by SlogLogger.Fatal. slog has no fatal level,
// so it sits above LevelError and renders as "ERROR+4".
const LevelFatal = slog.LevelError + 4

// SlogLogger implements types.Logger on top of log/slog.
type SlogLogger struct {
	logger *slog.Logger
}

// Compile-time assertion that SlogLogger implements Logger.
var _ types.Logger = (*SlogLogger)(nil)

// NewSlog wraps a slog logger. A nil logger uses slog.Default() at call time.
//
// Example:
//
//	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})
//	logger := logging.NewSlog(slog.New(handler))
func NewSlog(logger *slog.Logger) *SlogLogger {
	return &SlogLogger{logger: logger}
}

func (l *SlogLogger) Debug(msg string, keysAndValues ...any) {
	l.get().Debug(msg, keysAndValues...)
}

func (l *SlogLogger) Info(msg string, keysAndValues ...any) {
	l.get().Info(msg, keysAndValues...)
}

func (l *SlogLogger) Warn(msg string, keysAndValues ...any) {
	l.get().Warn(msg, keysAndValues...)
}

func (l *SlogLogger) Error(msg string, keysAndValues ...any) {
	l.get().Error(msg, keysAndValues...)
}

// Fatal logs at LevelFatal and exits the process.
func (l *SlogLogger) Fatal(msg string, keysAndValues ...any) {
	l.get().Log(context.Background(), LevelFatal, msg, keysAndValues...)
	os.Exit(1) //nolint:revive // Fatal should exit the program
}

func (l *SlogLogger) get() *slog.Logger {
	if l.logger == nil {
		return slog.Default()
	}

	return l.logger
}
