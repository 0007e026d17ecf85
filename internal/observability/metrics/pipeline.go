// Package metrics provides custom Prometheus metrics for the ScreamGuard
// detection pipeline and its collaborators.
//
// Every recording method is safe to call on a nil receiver, so components can
// run without metrics in tests and CLI commands.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// PipelineMetrics contains the per-clip detection metrics.
type PipelineMetrics struct {
	ClipsProcessed    *prometheus.CounterVec   // by outcome: positive, negative, failed
	Failures          *prometheus.CounterVec   // by error category
	StageDuration     *prometheus.HistogramVec // by stage
	Probability       prometheus.Histogram
	CandidatesRaised  prometheus.Counter
	EscalationsSent   *prometheus.CounterVec // by status
	WindowSize        prometheus.Gauge
	PendingCandidates prometheus.Gauge
	registry          *prometheus.Registry
}

// NewPipelineMetrics creates and registers the pipeline metrics.
func NewPipelineMetrics(registry *prometheus.Registry) (*PipelineMetrics, error) {
	m := &PipelineMetrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register pipeline metrics: %w", err)
	}
	return m, nil
}

func (m *PipelineMetrics) initMetrics() {
	m.ClipsProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "screamguard_clips_processed_total",
			Help: "Total number of clips processed by outcome",
		},
		[]string{"outcome"},
	)

	m.Failures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "screamguard_pipeline_failures_total",
			Help: "Total number of pipeline failures by error category",
		},
		[]string{"category"},
	)

	m.StageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "screamguard_pipeline_stage_duration_seconds",
			Help:    "Time spent in each pipeline stage",
			Buckets: prometheus.ExponentialBuckets(BucketStart1ms, BucketFactor2, BucketCount12),
		},
		[]string{"stage"},
	)

	m.Probability = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "screamguard_classifier_probability",
		Help:    "Distribution of positive-class probabilities",
		Buckets: prometheus.LinearBuckets(0.1, 0.1, 9),
	})

	m.CandidatesRaised = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "screamguard_escalation_candidates_total",
		Help: "Total number of escalation candidates raised by the aggregator",
	})

	m.EscalationsSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "screamguard_escalations_dispatched_total",
			Help: "Total number of confirmed escalations by overall status",
		},
		[]string{"status"},
	)

	m.WindowSize = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "screamguard_escalation_window_size",
		Help: "Positive detections currently inside the escalation window",
	})

	m.PendingCandidates = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "screamguard_escalation_pending_candidates",
		Help: "Escalation candidates awaiting confirmation",
	})
}

// RecordClip counts a processed clip.
func (m *PipelineMetrics) RecordClip(outcome string) {
	if m == nil {
		return
	}
	m.ClipsProcessed.WithLabelValues(outcome).Inc()
}

// RecordFailure counts a failed clip by error category.
func (m *PipelineMetrics) RecordFailure(category string) {
	if m == nil {
		return
	}
	m.ClipsProcessed.WithLabelValues("failed").Inc()
	m.Failures.WithLabelValues(category).Inc()
}

// ObserveStage records how long a stage took.
func (m *PipelineMetrics) ObserveStage(stage string, seconds float64) {
	if m == nil {
		return
	}
	m.StageDuration.WithLabelValues(stage).Observe(seconds)
}

// ObserveProbability records a classifier probability.
func (m *PipelineMetrics) ObserveProbability(p float64) {
	if m == nil {
		return
	}
	m.Probability.Observe(p)
}

// RecordCandidate counts a threshold crossing.
func (m *PipelineMetrics) RecordCandidate() {
	if m == nil {
		return
	}
	m.CandidatesRaised.Inc()
}

// RecordEscalation counts a confirmed dispatch.
func (m *PipelineMetrics) RecordEscalation(status string) {
	if m == nil {
		return
	}
	m.EscalationsSent.WithLabelValues(status).Inc()
}

// SetWindowSize reports the aggregator window size.
func (m *PipelineMetrics) SetWindowSize(n int) {
	if m == nil {
		return
	}
	m.WindowSize.Set(float64(n))
}

// SetPendingCandidates reports the registry size.
func (m *PipelineMetrics) SetPendingCandidates(n int) {
	if m == nil {
		return
	}
	m.PendingCandidates.Set(float64(n))
}

// Describe implements the prometheus.Collector interface.
func (m *PipelineMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.ClipsProcessed.Describe(ch)
	m.Failures.Describe(ch)
	m.StageDuration.Describe(ch)
	ch <- m.Probability.Desc()
	ch <- m.CandidatesRaised.Desc()
	m.EscalationsSent.Describe(ch)
	ch <- m.WindowSize.Desc()
	ch <- m.PendingCandidates.Desc()
}

// Collect implements the prometheus.Collector interface.
func (m *PipelineMetrics) Collect(ch chan<- prometheus.Metric) {
	m.ClipsProcessed.Collect(ch)
	m.Failures.Collect(ch)
	m.StageDuration.Collect(ch)
	ch <- m.Probability
	ch <- m.CandidatesRaised
	m.EscalationsSent.Collect(ch)
	ch <- m.WindowSize
	ch <- m.PendingCandidates
}
