package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_NilRegisterer(t *testing.T) {
	m := New(nil)
	assert.Nil(t, m)

	// every recorder is a no-op on nil
	assert.NotPanics(t, func() {
		m.RecordPrefilter(3, 1)
		m.RecordCompilation(true)
		m.RecordExecution()
		m.RecordTimeout()
		m.RecordFinding("High")
		m.ObserveDetect(time.Millisecond)
		m.RecordDispatch()
		m.RecordFallback("busy")
	})
}

func TestMetrics_Record(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	require.NotNil(t, m)

	m.RecordPrefilter(10, 4)
	m.RecordPrefilter(2, 2)
	m.RecordCompilation(true)
	m.RecordCompilation(true)
	m.RecordCompilation(false)
	m.RecordExecution()
	m.RecordTimeout()
	m.RecordFinding("High")
	m.RecordFinding("High")
	m.RecordFinding("Low")
	m.RecordDispatch()
	m.RecordFallback("timeout")
	m.ObserveDetect(2 * time.Millisecond)

	assert.Equal(t, 12.0, testutil.ToFloat64(m.PatternsChecked))
	assert.Equal(t, 6.0, testutil.ToFloat64(m.PatternsPassed))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Compilations.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Compilations.WithLabelValues("invalid")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Executions))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RegexTimeouts))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Findings.WithLabelValues("High")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Findings.WithLabelValues("Low")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.BatchesDispatched))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Fallbacks.WithLabelValues("timeout")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.DetectDuration))
}

func TestNew_SeparateRegistries(t *testing.T) {
	// two engines in one process must not collide
	assert.NotPanics(t, func() {
		New(prometheus.NewRegistry())
		New(prometheus.NewRegistry())
	})
}
