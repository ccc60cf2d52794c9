// Package metrics provides Prometheus metrics for the matching pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "vuescan"

// Metrics holds the pipeline's Prometheus collectors.
//
// A nil *Metrics is valid and records nothing, so components can take one
// unconditionally.
type Metrics struct {
	// Prefilter
	PatternsChecked prometheus.Counter
	PatternsPassed  prometheus.Counter

	// Regex cache and execution
	Compilations  *prometheus.CounterVec
	Executions    prometheus.Counter
	RegexTimeouts prometheus.Counter

	// Output
	Findings       *prometheus.CounterVec
	DetectDuration prometheus.Histogram

	// Dispatcher
	BatchesDispatched prometheus.Counter
	Fallbacks         *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
// A nil reg returns nil metrics.
//
// Metrics:
//   - vuescan_prefilter_patterns_checked_total
//   - vuescan_prefilter_patterns_passed_total
//   - vuescan_regex_compilations_total{result} - "ok" or "invalid"
//   - vuescan_regex_executions_total
//   - vuescan_regex_timeouts_total
//   - vuescan_findings_total{severity}
//   - vuescan_detect_duration_seconds
//   - vuescan_dispatch_batches_total
//   - vuescan_dispatch_fallbacks_total{reason} - "busy", "timeout" or "worker_error"
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		return nil
	}
	f := promauto.With(reg)

	return &Metrics{
		PatternsChecked: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "prefilter",
			Name:      "patterns_checked_total",
			Help:      "Total number of patterns run through the prefilter",
		}),
		PatternsPassed: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "prefilter",
			Name:      "patterns_passed_total",
			Help:      "Total number of patterns that passed the prefilter",
		}),

		Compilations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "regex",
			Name:      "compilations_total",
			Help:      "Total number of regex compilations by result",
		}, []string{"result"}),
		Executions: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "regex",
			Name:      "executions_total",
			Help:      "Total number of full regex executions",
		}),
		RegexTimeouts: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "regex",
			Name:      "timeouts_total",
			Help:      "Total number of regex executions that hit the match timeout",
		}),

		Findings: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "findings_total",
			Help:      "Total number of findings emitted by severity",
		}, []string{"severity"}),
		DetectDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "detect_duration_seconds",
			Help:      "Duration of per-file detection in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 12), // 0.5ms to ~1s
		}),

		BatchesDispatched: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "batches_total",
			Help:      "Total number of rule batches handed to pool workers",
		}),
		Fallbacks: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "fallbacks_total",
			Help:      "Total number of batches run on the calling goroutine by reason",
		}, []string{"reason"}),
	}
}

// RecordPrefilter records one prefilter pass over a candidate set.
func (m *Metrics) RecordPrefilter(checked, passed int) {
	if m == nil {
		return
	}
	m.PatternsChecked.Add(float64(checked))
	m.PatternsPassed.Add(float64(passed))
}

// RecordCompilation records a regex compilation; ok is false for an invalid
// pattern that was replaced by a never-matching one.
func (m *Metrics) RecordCompilation(ok bool) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "invalid"
	}
	m.Compilations.WithLabelValues(result).Inc()
}

// RecordExecution records one full regex execution.
func (m *Metrics) RecordExecution() {
	if m == nil {
		return
	}
	m.Executions.Inc()
}

// RecordTimeout records a regex match timeout.
func (m *Metrics) RecordTimeout() {
	if m == nil {
		return
	}
	m.RegexTimeouts.Inc()
}

// RecordFinding records an emitted finding.
func (m *Metrics) RecordFinding(severity string) {
	if m == nil {
		return
	}
	m.Findings.WithLabelValues(severity).Inc()
}

// ObserveDetect records how long one file took.
func (m *Metrics) ObserveDetect(d time.Duration) {
	if m == nil {
		return
	}
	m.DetectDuration.Observe(d.Seconds())
}

// RecordDispatch records a batch handed to a worker.
func (m *Metrics) RecordDispatch() {
	if m == nil {
		return
	}
	m.BatchesDispatched.Inc()
}

// RecordFallback records a batch run synchronously instead of on a worker.
func (m *Metrics) RecordFallback(reason string) {
	if m == nil {
		return
	}
	m.Fallbacks.WithLabelValues(reason).Inc()
}
