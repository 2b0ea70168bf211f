package elector

import (
	"log/slog"

	"github.com/hashicorp/go-hclog"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/arloliu/elector/internal/logger"
	"github.com/arloliu/elector/internal/logging"
	"github.com/arloliu/elector/internal/metrics"
)

// NewSlogLogger adapts a *slog.Logger. A nil logger uses slog.Default().
func NewSlogLogger(l *slog.Logger) Logger {
	return logging.NewSlog(l)
}

// NewZapLogger adapts a *zap.SugaredLogger, mapping key-value pairs onto its *w methods.
func NewZapLogger(l *zap.SugaredLogger) Logger {
	return logging.NewZap(l)
}

// NewHclogLogger adapts an hclog.Logger. A nil logger creates a default one named "elector".
func NewHclogLogger(l hclog.Logger) Logger {
	return logging.NewHclog(l)
}

// NewNopLogger returns a logger that discards everything.
func NewNopLogger() Logger {
	return logger.NewNop()
}

// NewNopMetrics returns a metrics collector that discards everything.
func NewNopMetrics() MetricsCollector {
	return metrics.NewNop()
}

// NewPrometheusMetrics returns a Prometheus-backed metrics collector.
//
// Parameters:
//   - reg: Registerer the collectors are registered with on first use (nil for the default)
//   - namespace: Metric namespace ("elector" if empty)
//
// Returns:
//   - MetricsCollector: Collector exporting session, lock and election metrics
func NewPrometheusMetrics(reg prometheus.Registerer, namespace string) MetricsCollector {
	return metrics.NewPrometheus(reg, namespace)
}
