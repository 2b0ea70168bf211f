// Package logger provides the no-op default logger and a test logger.
package logger

import "github.com/arloliu/elector/types"

// NopLogger discards every message. Used wherever no logger was configured.
type NopLogger struct{}

// Compile-time assertion that NopLogger implements Logger.
var _ types.Logger = NopLogger{}

// NewNop returns a logger that discards everything. Its Fatal does not exit.
func NewNop() NopLogger {
	return NopLogger{}
}

func (NopLogger) Debug(string, ...any) {}

func (NopLogger) Info(string, ...any) {}

func (NopLogger) Warn(string, ...any) {}

func (NopLogger) Error(string, ...any) {}

func (NopLogger) Fatal(string, ...any) {}
