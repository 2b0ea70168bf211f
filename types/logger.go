package types

// Logger is the structured logger used by the elector, its session manager and
// the backends.
//
// keysAndValues alternate between string keys and arbitrary values, e.g.
// Info("elected", "key", "svc/leader", "session", id). Adapters for log/slog,
// zap and hclog are exported from the root package.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)

	// Fatal logs and terminates the process. The elector itself never calls it.
	Fatal(msg string, keysAndValues ...any)
}
