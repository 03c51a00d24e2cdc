package seoconsole

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/eringen/seoconsole/validate"
)

const metricsNamespace = "seoconsole"

// Metrics holds the console's Prometheus collectors on a dedicated registry.
type Metrics struct {
	Registry *prometheus.Registry

	runs     *prometheus.CounterVec
	issues   *prometheus.CounterVec
	duration *prometheus.HistogramVec
	imports  *prometheus.CounterVec
}

// NewMetrics creates and registers the collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "validation_runs_total",
			Help:      "Validation runs by kind and outcome.",
		}, []string{"kind", "outcome"}),
		issues: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "validation_issues_total",
			Help:      "Validation issues reported, by kind and severity.",
		}, []string{"kind", "severity"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "validation_duration_seconds",
			Help:      "Time spent fetching and validating, by kind.",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 15},
		}, []string{"kind"}),
		imports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "record_imports_total",
			Help:      "Records created by bulk, file or site import, by outcome.",
		}, []string{"source", "outcome"}),
	}
	m.Registry.MustRegister(m.runs, m.issues, m.duration, m.imports)
	return m
}

// ObserveValidation records one validation run. A nil Metrics is a no-op.
func (m *Metrics) ObserveValidation(kind string, started time.Time, valid bool, issues []validate.Issue) {
	if m == nil {
		return
	}
	outcome := "valid"
	if !valid {
		outcome = "invalid"
	}
	m.runs.WithLabelValues(kind, outcome).Inc()
	m.duration.WithLabelValues(kind).Observe(time.Since(started).Seconds())
	for _, i := range issues {
		m.issues.WithLabelValues(kind, string(i.Severity)).Inc()
	}
}

// ObserveImport records the outcome of creating one record during an import.
func (m *Metrics) ObserveImport(source string, err error) {
	if m == nil {
		return
	}
	outcome := "created"
	if err != nil {
		outcome = "failed"
	}
	m.imports.WithLabelValues(source, outcome).Inc()
}
