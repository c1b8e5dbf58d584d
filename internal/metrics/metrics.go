// Package metrics exposes Prometheus instrumentation for the verification
// pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics bundles the pipeline collectors. A nil *Metrics is a no-op, so
// instrumentation can be disabled in tests.
type Metrics struct {
	pipelineDuration   *prometheus.HistogramVec
	validationDuration *prometheus.HistogramVec
	cacheOps           *prometheus.CounterVec
	ruleOutcomes       *prometheus.CounterVec
	decisions          *prometheus.CounterVec
}

// New registers the pipeline collectors on the given registerer.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		pipelineDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "kestrel",
			Name:      "pipeline_duration_seconds",
			Help:      "End-to-end verification pipeline duration.",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		}, []string{"tenant_id", "action"}),

		validationDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "kestrel",
			Name:      "field_validation_duration_seconds",
			Help:      "Per-field validation processing time.",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5},
		}, []string{"field", "provider"}),

		cacheOps: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "kestrel",
			Name:      "validation_cache_ops_total",
			Help:      "Validation cache lookups by outcome.",
		}, []string{"outcome"}),

		ruleOutcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "kestrel",
			Name:      "rule_evaluations_total",
			Help:      "Rule evaluation outcomes.",
		}, []string{"rule_id", "outcome"}),

		decisions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "kestrel",
			Name:      "decisions_total",
			Help:      "Final decisions by tenant and action.",
		}, []string{"tenant_id", "action"}),
	}
}

// ObservePipeline records one completed pipeline run.
func (m *Metrics) ObservePipeline(tenantID, action string, seconds float64) {
	if m == nil {
		return
	}
	m.pipelineDuration.WithLabelValues(tenantID, action).Observe(seconds)
	m.decisions.WithLabelValues(tenantID, action).Inc()
}

// ObserveValidation records one validator call.
func (m *Metrics) ObserveValidation(field, provider string, seconds float64) {
	if m == nil {
		return
	}
	m.validationDuration.WithLabelValues(field, provider).Observe(seconds)
}

// CountCache records cache lookups by outcome.
func (m *Metrics) CountCache(hits, misses int) {
	if m == nil {
		return
	}
	if hits > 0 {
		m.cacheOps.WithLabelValues("hit").Add(float64(hits))
	}
	if misses > 0 {
		m.cacheOps.WithLabelValues("miss").Add(float64(misses))
	}
}

// CountRule records one rule evaluation outcome: triggered, passed, or
// errored.
func (m *Metrics) CountRule(ruleID string, triggered bool, errored bool) {
	if m == nil {
		return
	}
	outcome := "passed"
	switch {
	case errored:
		outcome = "error"
	case triggered:
		outcome = "triggered"
	}
	m.ruleOutcomes.WithLabelValues(ruleID, outcome).Inc()
}
