// Package telemetry records measurement and phenotype evaluation counts.
//
// Components take a Recorder and default to NoopRecorder, so metrics can be
// switched on by injecting a PrometheusRecorder without touching callers.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Outcome of a single metric measurement
type Outcome string

const (
	Measured  Outcome = "measured"
	Unchanged Outcome = "unchanged"
	Skipped   Outcome = "skipped"
)

// Recorder receives analysis events.
type Recorder interface {
	// Measurement records the outcome of measuring a metric in a region
	Measurement(region string, outcome Outcome)
	// Phenotype records the evaluation of a phenotype
	Phenotype(present bool)
	// MissingGrowthData records a measurement without matching growth data
	MissingGrowthData()
}

// NoopRecorder discards every event
type NoopRecorder struct{}

func (NoopRecorder) Measurement(string, Outcome) {}
func (NoopRecorder) Phenotype(bool)              {}
func (NoopRecorder) MissingGrowthData()          {}

// PrometheusRecorder counts events in a Prometheus registry.
type PrometheusRecorder struct {
	measurements *prometheus.CounterVec
	phenotypes   *prometheus.CounterVec
	noGrowth     prometheus.Counter
}

// NewPrometheusRecorder creates the counters and registers them with reg.
func NewPrometheusRecorder(reg prometheus.Registerer) *PrometheusRecorder {
	r := &PrometheusRecorder{
		measurements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "facemetrics",
			Name:      "measurements_total",
			Help:      "Metric measurements by region and outcome.",
		}, []string{"region", "outcome"}),
		phenotypes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "facemetrics",
			Name:      "phenotype_evaluations_total",
			Help:      "Phenotype evaluations by result.",
		}, []string{"present"}),
		noGrowth: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "facemetrics",
			Name:      "missing_growth_data_total",
			Help:      "Measurements made without growth data matching the subject.",
		}),
	}
	if reg != nil {
		reg.MustRegister(r.measurements, r.phenotypes, r.noGrowth)
	}
	return r
}

func (r *PrometheusRecorder) Measurement(region string, outcome Outcome) {
	r.measurements.WithLabelValues(region, string(outcome)).Inc()
}

func (r *PrometheusRecorder) Phenotype(present bool) {
	label := "false"
	if present {
		label = "true"
	}
	r.phenotypes.WithLabelValues(label).Inc()
}

func (r *PrometheusRecorder) MissingGrowthData() { r.noGrowth.Inc() }

// Measurements returns the measurement counter for tests and exporters.
func (r *PrometheusRecorder) Measurements() *prometheus.CounterVec { return r.measurements }

// Phenotypes returns the phenotype counter
func (r *PrometheusRecorder) Phenotypes() *prometheus.CounterVec { return r.phenotypes }

// NoGrowthData returns the missing growth data counter
func (r *PrometheusRecorder) NoGrowthData() prometheus.Counter { return r.noGrowth }
