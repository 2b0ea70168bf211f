package elector

import "github.com/jonboulle/clockwork"

// Option configures an Elector with optional dependencies.
type Option func(*electorOptions)

// electorOptions holds optional Elector configuration.
type electorOptions struct {
	hooks   *Hooks
	metrics MetricsCollector
	logger  Logger
	clock   clockwork.Clock
}

// WithHooks sets lifecycle event hooks.
//
// Parameters:
//   - hooks: Hooks structure with callback functions
//
// Returns:
//   - Option: Functional option for New
//
// Example:
//
//	hooks := &elector.Hooks{
//	    OnElected: func(ctx context.Context) error {
//	        return scheduler.Start(ctx)
//	    },
//	    OnRetired: func(ctx context.Context) error {
//	        scheduler.Stop()
//	        return nil
//	    },
//	}
//	e, _ := elector.New(&cfg, client, elector.WithHooks(hooks))
func WithHooks(hooks *Hooks) Option {
	return func(o *electorOptions) {
		o.hooks = hooks
	}
}

// WithMetrics sets a metrics collector.
//
// Parameters:
//   - metrics: MetricsCollector implementation
//
// Returns:
//   - Option: Functional option for New
//
// Example:
//
//	metrics := elector.NewPrometheusMetrics(prometheus.DefaultRegisterer, "myapp")
//	e, _ := elector.New(&cfg, client, elector.WithMetrics(metrics))
func WithMetrics(metrics MetricsCollector) Option {
	return func(o *electorOptions) {
		o.metrics = metrics
	}
}

// WithLogger sets a logger.
//
// Parameters:
//   - logger: Logger implementation (compatible with zap.SugaredLogger)
//
// Returns:
//   - Option: Functional option for New
//
// Example:
//
//	logger := zap.NewExample().Sugar()
//	e, _ := elector.New(&cfg, client, elector.WithLogger(logger))
func WithLogger(logger Logger) Option {
	return func(o *electorOptions) {
		o.logger = logger
	}
}

// WithClock sets the clock driving session renewal and the delayed acquire timer.
//
// Intended for tests with clockwork.NewFakeClock().
//
// Parameters:
//   - clock: Clock implementation
//
// Returns:
//   - Option: Functional option for New
func WithClock(clock clockwork.Clock) Option {
	return func(o *electorOptions) {
		o.clock = clock
	}
}
