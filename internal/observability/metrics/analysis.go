// Package metrics provides custom Prometheus metrics for the sampleagent
// analysis pipeline.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// AnalysisMetrics contains all Prometheus metrics related to clip analysis.
type AnalysisMetrics struct {
	// Backend call metrics
	BackendCallDuration *prometheus.HistogramVec
	BackendCallsTotal   *prometheus.CounterVec

	// Consensus pipeline metrics
	OctaveCorrectionsTotal *prometheus.CounterVec
	OutliersRejectedTotal  prometheus.Counter
	ConsensusConfidence    *prometheus.HistogramVec

	// Whole-analysis metrics
	AnalysisDuration *prometheus.HistogramVec
	AnalysisTotal    *prometheus.CounterVec

	// Result cache metrics
	CacheHitsTotal   prometheus.Counter
	CacheMissesTotal prometheus.Counter

	registry *prometheus.Registry
}

// NewAnalysisMetrics creates a new instance of AnalysisMetrics.
// It requires a Prometheus registry to register the metrics.
func NewAnalysisMetrics(registry *prometheus.Registry) (*AnalysisMetrics, error) {
	m := &AnalysisMetrics{registry: registry}
	if err := m.initMetrics(); err != nil {
		return nil, fmt.Errorf("failed to initialize analysis metrics: %w", err)
	}
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register analysis metrics: %w", err)
	}
	return m, nil
}

// initMetrics initializes all metrics for AnalysisMetrics.
func (m *AnalysisMetrics) initMetrics() error {
	m.BackendCallDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sampleagent_backend_call_duration_seconds",
			Help:    "Time taken by one backend estimate call",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 14), // 1ms to ~16s
		},
		[]string{"backend_id", "kind"},
	)

	m.BackendCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sampleagent_backend_calls_total",
			Help: "Total backend estimate calls partitioned by outcome",
		},
		[]string{"backend_id", "kind", "status"},
	)

	m.OctaveCorrectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sampleagent_octave_corrections_total",
			Help: "Octave corrections applied to raw tempo estimates",
		},
		[]string{"correction"},
	)

	m.OutliersRejectedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sampleagent_outliers_rejected_total",
			Help: "Tempo estimates rejected as outliers against the group median",
		},
	)

	m.ConsensusConfidence = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sampleagent_consensus_confidence",
			Help:    "Final consensus confidence on the unified 0-100 scale",
			Buckets: prometheus.LinearBuckets(0, 10, 11),
		},
		[]string{"kind"},
	)

	m.AnalysisDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sampleagent_analysis_duration_seconds",
			Help:    "End-to-end duration of one clip analysis",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		},
		[]string{"sample_class"},
	)

	m.AnalysisTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sampleagent_analysis_total",
			Help: "Total analyses partitioned by outcome",
		},
		[]string{"status"},
	)

	m.CacheHitsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sampleagent_result_cache_hits_total",
			Help: "Analysis results served from the fingerprint cache",
		},
	)

	m.CacheMissesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sampleagent_result_cache_misses_total",
			Help: "Analyses that missed the fingerprint cache",
		},
	)

	return nil
}

// RecordBackendCall records the duration and outcome of one backend call.
func (m *AnalysisMetrics) RecordBackendCall(backendID, kind, status string, seconds float64) {
	m.BackendCallDuration.WithLabelValues(backendID, kind).Observe(seconds)
	m.BackendCallsTotal.WithLabelValues(backendID, kind, status).Inc()
}

// RecordOctaveCorrection counts one applied octave correction.
func (m *AnalysisMetrics) RecordOctaveCorrection(correction string) {
	m.OctaveCorrectionsTotal.WithLabelValues(correction).Inc()
}

// RecordOutliersRejected counts estimates dropped by the outlier filter.
func (m *AnalysisMetrics) RecordOutliersRejected(n int) {
	m.OutliersRejectedTotal.Add(float64(n))
}

// RecordConsensusConfidence observes a final confidence value.
func (m *AnalysisMetrics) RecordConsensusConfidence(kind string, confidence int) {
	m.ConsensusConfidence.WithLabelValues(kind).Observe(float64(confidence))
}

// RecordAnalysis records one completed analysis.
func (m *AnalysisMetrics) RecordAnalysis(sampleClass, status string, seconds float64) {
	m.AnalysisDuration.WithLabelValues(sampleClass).Observe(seconds)
	m.AnalysisTotal.WithLabelValues(status).Inc()
}

// RecordCacheHit counts a result served from the fingerprint cache.
func (m *AnalysisMetrics) RecordCacheHit() {
	m.CacheHitsTotal.Inc()
}

// RecordCacheMiss counts an analysis that missed the fingerprint cache.
func (m *AnalysisMetrics) RecordCacheMiss() {
	m.CacheMissesTotal.Inc()
}

// Describe implements the prometheus.Collector interface.
func (m *AnalysisMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.BackendCallDuration.Describe(ch)
	m.BackendCallsTotal.Describe(ch)
	m.OctaveCorrectionsTotal.Describe(ch)
	m.OutliersRejectedTotal.Describe(ch)
	m.ConsensusConfidence.Describe(ch)
	m.AnalysisDuration.Describe(ch)
	m.AnalysisTotal.Describe(ch)
	m.CacheHitsTotal.Describe(ch)
	m.CacheMissesTotal.Describe(ch)
}

// Collect implements the prometheus.Collector interface.
func (m *AnalysisMetrics) Collect(ch chan<- prometheus.Metric) {
	m.BackendCallDuration.Collect(ch)
	m.BackendCallsTotal.Collect(ch)
	m.OctaveCorrectionsTotal.Collect(ch)
	m.OutliersRejectedTotal.Collect(ch)
	m.ConsensusConfidence.Collect(ch)
	m.AnalysisDuration.Collect(ch)
	m.AnalysisTotal.Collect(ch)
	m.CacheHitsTotal.Collect(ch)
	m.CacheMissesTotal.Collect(ch)
}
