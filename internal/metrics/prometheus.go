package metrics

import (
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/arloliu/elector/types"
)

// PrometheusCollector implements types.MetricsCollector backed by Prometheus.
//
// Collectors are created and registered lazily on first use so that constructing a
// collector that is never exercised does not touch the registry.
type PrometheusCollector struct {
	reg       prometheus.Registerer
	namespace string
	once      sync.Once

	sessionOps      *prometheus.CounterVec
	sessionLatency  *prometheus.HistogramVec
	sessionExpired  prometheus.Counter
	lockOps         *prometheus.CounterVec
	lockLatency     *prometheus.HistogramVec
	lockEvents      *prometheus.CounterVec
	watchErrors     prometheus.Counter
	duplicates      prometheus.Counter
	transitions     *prometheus.CounterVec
	leader          prometheus.Gauge
	reacquireResult *prometheus.CounterVec
}

// Compile-time assertion that PrometheusCollector implements MetricsCollector.
var _ types.MetricsCollector = (*PrometheusCollector)(nil)

// NewPrometheus creates a new Prometheus-backed metrics collector.
//
// Parameters:
//   - reg: Prometheus registerer interface (uses prometheus.DefaultRegisterer if nil)
//   - namespace: Prometheus metrics namespace (defaults to "elector" if empty)
//
// Returns:
//   - *PrometheusCollector: A MetricsCollector implementation using Prometheus
func NewPrometheus(reg prometheus.Registerer, namespace string) *PrometheusCollector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if namespace == "" {
		namespace = "elector"
	}

	return &PrometheusCollector{reg: reg, namespace: namespace}
}

func (p *PrometheusCollector) ensureRegistered() {
	p.once.Do(func() {
		factory := promauto.With(p.reg)

		p.sessionOps = factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "session",
			Name:      "operations_total",
			Help:      "Total session operations by operation (create,renew,destroy) and result.",
		}, []string{"op", "result"})

		p.sessionLatency = factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: p.namespace,
			Subsystem: "session",
			Name:      "operation_duration_seconds",
			Help:      "Latency of session operations in seconds.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms .. ~2s
		}, []string{"op"})

		p.sessionExpired = factory.NewCounter(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "session",
			Name:      "expired_total",
			Help:      "Sessions the service reported unknown during renewal.",
		})

		p.lockOps = factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "lock",
			Name:      "operations_total",
			Help:      "Total conditional writes by operation (acquire,release) and result (granted,denied,error).",
		}, []string{"op", "result"})

		p.lockLatency = factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: p.namespace,
			Subsystem: "lock",
			Name:      "operation_duration_seconds",
			Help:      "Latency of conditional writes in seconds.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
		}, []string{"op"})

		p.lockEvents = factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "lock",
			Name:      "events_total",
			Help:      "Lock ownership events emitted by type (released,taken,lost,acquired).",
		}, []string{"event"})

		p.watchErrors = factory.NewCounter(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "lock",
			Name:      "watch_errors_total",
			Help:      "Non-fatal watch transport errors.",
		})

		p.duplicates = factory.NewCounter(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "lock",
			Name:      "duplicate_notifications_total",
			Help:      "Watch notifications suppressed because the owner did not change.",
		})

		p.transitions = factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "election",
			Name:      "transitions_total",
			Help:      "Election state transitions by source and target state.",
		}, []string{"from", "to"})

		p.leader = factory.NewGauge(prometheus.GaugeOpts{
			Namespace: p.namespace,
			Subsystem: "election",
			Name:      "is_leader",
			Help:      "1 while the local process believes it is the leader.",
		})

		p.reacquireResult = factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "election",
			Name:      "reacquire_attempts_total",
			Help:      "Delayed reacquire attempts after a release, by granted (true,false).",
		}, []string{"granted"})
	})
}

// SessionMetrics implementation

// RecordSessionOperation counts a session operation and observes its latency.
func (p *PrometheusCollector) RecordSessionOperation(operation string, success bool, duration float64) {
	p.ensureRegistered()
	p.sessionOps.WithLabelValues(operation, resultLabel(success)).Inc()
	p.sessionLatency.WithLabelValues(operation).Observe(duration)
}

// RecordSessionExpired counts a session reported unknown by the service.
func (p *PrometheusCollector) RecordSessionExpired() {
	p.ensureRegistered()
	p.sessionExpired.Inc()
}

// LockMetrics implementation

// RecordLockOperation counts a conditional write and observes its latency.
func (p *PrometheusCollector) RecordLockOperation(operation string, result string, duration float64) {
	p.ensureRegistered()
	p.lockOps.WithLabelValues(operation, result).Inc()
	p.lockLatency.WithLabelValues(operation).Observe(duration)
}

// RecordLockEvent counts an emitted lock event.
func (p *PrometheusCollector) RecordLockEvent(event types.LockEventType) {
	p.ensureRegistered()
	p.lockEvents.WithLabelValues(event.String()).Inc()
}

// RecordWatchError counts a watch transport error.
func (p *PrometheusCollector) RecordWatchError() {
	p.ensureRegistered()
	p.watchErrors.Inc()
}

// RecordDuplicateNotification counts a deduplicated notification.
func (p *PrometheusCollector) RecordDuplicateNotification() {
	p.ensureRegistered()
	p.duplicates.Inc()
}

// ElectionMetrics implementation

// RecordElectionTransition counts a transition and updates the leader gauge.
func (p *PrometheusCollector) RecordElectionTransition(from, to types.ElectionState) {
	p.ensureRegistered()
	p.transitions.WithLabelValues(from.String(), to.String()).Inc()

	if to == types.StateElected {
		p.leader.Set(1)
	} else {
		p.leader.Set(0)
	}
}

// RecordReacquireAttempt counts a delayed reacquire attempt.
func (p *PrometheusCollector) RecordReacquireAttempt(granted bool) {
	p.ensureRegistered()
	p.reacquireResult.WithLabelValues(strconv.FormatBool(granted)).Inc()
}

func resultLabel(success bool) string {
	if success {
		return "success"
	}

	return "failure"
}
