// Package analysis runs the metric catalog over a subject and evaluates the
// phenotype catalog against the results.
//
// The analysis of one assessment consists of:
//  1. Measuring every metric on the current assessment, and bilateral
//     metrics a second time on the contralateral side
//  2. Evaluating each phenotype on the measured values
//  3. Checking whether the growth data behind each phenotype matches the
//     subject's demographic
package analysis

import (
	"github.com/charmbracelet/log"

	"facemetrics/internal/models"
	"facemetrics/pkg/metric"
	"facemetrics/pkg/phenotype"
	"facemetrics/pkg/telemetry"
)

// Summary counts the outcome of one MeasureAll pass. A bilateral metric
// counts once per side.
type Summary struct {
	Measured  int
	Unchanged int
	Skipped   int
}

// Total returns the number of measurement attempts.
func (s Summary) Total() int { return s.Measured + s.Unchanged + s.Skipped }

// Finding is the evaluation of one phenotype on an assessment.
type Finding struct {
	ID      int
	Name    string
	Metrics []int
	Present bool

	// Demographic matches of the growth data selected for the subject
	AgeMatch               bool
	SexMatch               bool
	MaternalEthnicityMatch bool
	PaternalEthnicityMatch bool
}

// DemographicMatch reports whether every demographic flag is set.
func (f Finding) DemographicMatch() bool {
	return f.AgeMatch && f.SexMatch && f.MaternalEthnicityMatch && f.PaternalEthnicityMatch
}

// Analyzer measures subjects against a metric and phenotype catalog. The
// catalogs are shared and must not be modified while an analysis runs.
type Analyzer struct {
	Metrics    *metric.Manager
	Phenotypes *phenotype.Manager

	// Pairs used for contralateral measurements. Defaults to the pairs of
	// the metric catalog.
	Pairs metric.Pairs

	Recorder telemetry.Recorder
	Logger   *log.Logger
}

// New creates an analyzer over the given catalogs. phenotypes may be nil
// when only measurements are wanted.
func New(metrics *metric.Manager, phenotypes *phenotype.Manager, logger *log.Logger) *Analyzer {
	if logger == nil {
		logger = log.Default()
	}
	return &Analyzer{
		Metrics:    metrics,
		Phenotypes: phenotypes,
		Pairs:      metrics.Pairs(),
		Recorder:   telemetry.NoopRecorder{},
		Logger:     logger,
	}
}

func (an *Analyzer) recorder() telemetry.Recorder {
	if an.Recorder == nil {
		return telemetry.NoopRecorder{}
	}
	return an.Recorder
}

func (an *Analyzer) logger() *log.Logger {
	if an.Logger == nil {
		return log.Default()
	}
	return an.Logger
}

// MeasureAll measures every metric of the catalog on the current
// assessment of s. Bilateral metrics are measured on both sides.
func (an *Analyzer) MeasureAll(s metric.Subject) Summary {
	var sum Summary
	if s == nil || s.CurrentAssessment() == nil {
		an.logger().Warn("nothing to measure, subject has no assessment")
		return sum
	}

	pairs := an.Pairs
	if pairs == nil {
		pairs = an.Metrics.Pairs()
	}
	for _, m := range an.Metrics.Metrics() {
		an.measure(m, s, "", &sum)
		if m.Bilateral() {
			an.measure(m, metric.Contralateral(s, pairs), "contralateral", &sum)
		}
	}
	an.logger().Debug("measured metrics", "measured", sum.Measured, "unchanged", sum.Unchanged, "skipped", sum.Skipped)
	return sum
}

func (an *Analyzer) measure(m *metric.Metric, s metric.Subject, view string, sum *Summary) {
	t := &tracking{Subject: s}
	if !m.Measure(t) {
		sum.Skipped++
		an.recorder().Measurement("none", telemetry.Skipped)
		an.logger().Debug("metric not measurable", "id", m.ID(), "name", m.Name(), "view", view)
		return
	}
	if m.GrowthData() == nil {
		an.recorder().MissingGrowthData()
	}
	if t.changed {
		sum.Measured++
		an.recorder().Measurement(t.region, telemetry.Measured)
		return
	}
	sum.Unchanged++
	an.recorder().Measurement(t.region, telemetry.Unchanged)
}

// Discover returns the ids of the phenotypes present in assessment aid
// (negative for the current one).
func (an *Analyzer) Discover(s metric.Subject, aid int) []int {
	if an.Phenotypes == nil {
		return nil
	}
	var out []int
	for _, id := range an.Phenotypes.IDs() {
		present := an.Phenotypes.Phenotype(id).IsPresent(s, aid)
		an.recorder().Phenotype(present)
		if present {
			out = append(out, id)
		}
	}
	return out
}

// Evaluate returns a finding for every phenotype of the catalog, ordered by
// id. Demographic flags are computed after reranking the growth data of the
// dependent metrics for s.
func (an *Analyzer) Evaluate(s metric.Subject, aid int) []Finding {
	if an.Phenotypes == nil || s == nil {
		return nil
	}
	d := s.Demographic()
	out := make([]Finding, 0, an.Phenotypes.Len())
	for _, id := range an.Phenotypes.IDs() {
		p := an.Phenotypes.Phenotype(id)
		present := p.IsPresent(s, aid)
		an.recorder().Phenotype(present)

		p.IsDemographicMatch(s)
		out = append(out, Finding{
			ID:                     id,
			Name:                   p.Name(),
			Metrics:                p.Metrics(),
			Present:                present,
			AgeMatch:               p.IsAgeMatch(d.Age),
			SexMatch:               p.IsSexMatch(d.Sex),
			MaternalEthnicityMatch: p.IsEthnicityMatch(d.MaternalEthnicity),
			PaternalEthnicityMatch: p.IsEthnicityMatch(d.PaternalEthnicity),
		})
	}
	return out
}

// tracking records whether a measurement changed a stored value and in
// which region.
type tracking struct {
	metric.Subject
	changed bool
	region  string
}

func (t *tracking) CurrentAssessment() metric.Assessment {
	a := t.Subject.CurrentAssessment()
	if a == nil {
		return nil
	}
	return trackedAssessment{Assessment: a, t: t}
}

type trackedAssessment struct {
	metric.Assessment
	t *tracking
}

func (a trackedAssessment) Metrics(r models.Region) *metric.Set {
	a.t.region = r.String()
	return a.Assessment.Metrics(r)
}

func (a trackedAssessment) MetricChanged(r models.Region, id int) {
	a.t.changed = true
	a.t.region = r.String()
	a.Assessment.MetricChanged(r, id)
}
