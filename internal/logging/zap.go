package logging

import (
	"go.uber.org/zap"

	"github.com/arloliu/elector/types"
)

// ZapLogger implements types.Logger on top of a zap.SugaredLogger.
//
// The sugared logger's "w" methods (Debugw, Infow, ...) already accept loosely
// typed key-value pairs, so the adapter is a direct mapping.
type ZapLogger struct {
	logger *zap.SugaredLogger
}

// Compile-time assertion that ZapLogger implements Logger.
var _ types.Logger = (*ZapLogger)(nil)

// NewZap creates a new zap-based logger.
//
// Parameters:
//   - logger: The sugared zap logger to wrap
//
// Returns:
//   - *ZapLogger: A new logger instance
//
// Example:
//
//	z, _ := zap.NewProduction()
//	logger := NewZap(z.Sugar())
func NewZap(logger *zap.SugaredLogger) *ZapLogger {
	return &ZapLogger{logger: logger}
}

// Debug logs a debug-level message with optional key-value pairs.
func (l *ZapLogger) Debug(msg string, keysAndValues ...any) {
	l.logger.Debugw(msg, keysAndValues...)
}

// Info logs an info-level message with optional key-value pairs.
func (l *ZapLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Infow(msg, keysAndValues...)
}

// Warn logs a warning-level message with optional key-value pairs.
func (l *ZapLogger) Warn(msg string, keysAndValues ...any) {
	l.logger.Warnw(msg, keysAndValues...)
}

// Error logs an error-level message with optional key-value pairs.
func (l *ZapLogger) Error(msg string, keysAndValues ...any) {
	l.logger.Errorw(msg, keysAndValues...)
}

// Fatal logs a fatal-level message with optional key-value pairs and exits.
func (l *ZapLogger) Fatal(msg string, keysAndValues ...any) {
	l.logger.Fatalw(msg, keysAndValues...)
}

// Desugar returns the underlying structured zap logger.
//
// Used by the etcd backend, whose client takes a *zap.Logger.
func (l *ZapLogger) Desugar() *zap.Logger {
	return l.logger.Desugar()
}
