package logging

import (
	"os"

	"github.com/hashicorp/go-hclog"

	"github.com/arloliu/elector/types"
)

// HclogLogger implements types.Logger on top of hashicorp/go-hclog.
//
// Convenient when the elector is embedded next to Consul or Raft tooling that
// already logs through hclog.
type HclogLogger struct {
	logger hclog.Logger
}

// Compile-time assertion that HclogLogger implements Logger.
var _ types.Logger = (*HclogLogger)(nil)

// NewHclog creates a new hclog-based logger.
//
// Parameters:
//   - logger: The hclog logger to wrap; a named default logger is used when nil
//
// Returns:
//   - *HclogLogger: A new logger instance
func NewHclog(logger hclog.Logger) *HclogLogger {
	if logger == nil {
		logger = hclog.New(&hclog.LoggerOptions{Name: "elector", Level: hclog.Info})
	}

	return &HclogLogger{logger: logger}
}

// Debug logs a debug-level message with optional key-value pairs.
func (l *HclogLogger) Debug(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, keysAndValues...)
}

// Info logs an info-level message with optional key-value pairs.
func (l *HclogLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Info(msg, keysAndValues...)
}

// Warn logs a warning-level message with optional key-value pairs.
func (l *HclogLogger) Warn(msg string, keysAndValues ...any) {
	l.logger.Warn(msg, keysAndValues...)
}

// Error logs an error-level message with optional key-value pairs.
func (l *HclogLogger) Error(msg string, keysAndValues ...any) {
	l.logger.Error(msg, keysAndValues...)
}

// Fatal logs at error level and exits; hclog has no fatal level.
func (l *HclogLogger) Fatal(msg string, keysAndValues ...any) {
	l.logger.Error(msg, keysAndValues...)
	os.Exit(1) //nolint:revive // Fatal should exit the program
}
