package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/arloliu/elector/types"
)

func TestPrometheusCollector_Records(t *testing.T) {
	reg := prometheus.NewRegistry()
	p := NewPrometheus(reg, "test")

	p.RecordSessionOperation("create", true, 0.01)
	p.RecordSessionOperation("renew", false, 0.02)
	p.RecordSessionExpired()
	p.RecordLockOperation("acquire", "granted", 0.001)
	p.RecordLockOperation("acquire", "denied", 0.001)
	p.RecordLockEvent(types.LockReleased)
	p.RecordLockEvent(types.LockAcquired)
	p.RecordWatchError()
	p.RecordDuplicateNotification()
	p.RecordDuplicateNotification()
	p.RecordElectionTransition(types.StateCandidate, types.StateElected)
	p.RecordReacquireAttempt(true)

	require.InDelta(t, 1, testutil.ToFloat64(p.sessionOps.WithLabelValues("create", "success")), 0)
	require.InDelta(t, 1, testutil.ToFloat64(p.sessionOps.WithLabelValues("renew", "failure")), 0)
	require.InDelta(t, 1, testutil.ToFloat64(p.sessionExpired), 0)
	require.InDelta(t, 1, testutil.ToFloat64(p.lockOps.WithLabelValues("acquire", "denied")), 0)
	require.InDelta(t, 1, testutil.ToFloat64(p.lockEvents.WithLabelValues("acquired")), 0)
	require.InDelta(t, 1, testutil.ToFloat64(p.watchErrors), 0)
	require.InDelta(t, 2, testutil.ToFloat64(p.duplicates), 0)
	require.InDelta(t, 1, testutil.ToFloat64(p.leader), 0)
	require.InDelta(t, 1, testutil.ToFloat64(p.reacquireResult.WithLabelValues("true")), 0)

	p.RecordElectionTransition(types.StateElected, types.StateCandidate)
	require.InDelta(t, 0, testutil.ToFloat64(p.leader), 0)
}

func TestPrometheusCollector_Defaults(t *testing.T) {
	p := NewPrometheus(nil, "")
	require.Equal(t, "elector", p.namespace)
	require.Equal(t, prometheus.DefaultRegisterer, p.reg)
}

func TestPrometheusCollector_LazyRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_ = NewPrometheus(reg, "lazy")

	families, err := reg.Gather()
	require.NoError(t, err)
	require.Empty(t, families)
}
