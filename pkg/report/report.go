// Package report assembles the measurements and findings of an assessment
// into a printable summary, and moves metric values in and out of YAML.
package report

import (
	"errors"
	"math"
	"strconv"

	"github.com/google/uuid"

	"facemetrics/internal/models"
	"facemetrics/pkg/metric"
	"facemetrics/pkg/phenotype"
)

// ErrNoAssessment is returned when the requested assessment does not exist.
var ErrNoAssessment = errors.New("no such assessment")

// Namer resolves ethnicity codes to names. *ethnicity.Registry satisfies it.
type Namer interface {
	Name(code int) string
}

// Subject is the demographic block printed at the top of a report.
type Subject struct {
	ID                    string
	AssessmentID          int
	Age                   float64
	Sex                   models.Sex
	MaternalEthnicity     int
	PaternalEthnicity     int
	MaternalEthnicityName string
	PaternalEthnicityName string
}

// MetricRow is one measured metric in one region.
type MetricRow struct {
	ID      int
	Name    string
	Units   string
	Region  models.Region
	Values  []string
	ZScores []string

	// Source of the growth data the z-scores were computed against, and
	// its 1-based footnote. Footnote is 0 when there is no source.
	Source   string
	Footnote int
}

// PhenotypeRow is a phenotype found present in the assessment.
type PhenotypeRow struct {
	ID                     int
	FormattedID            string
	Name                   string
	Metrics                string
	SexMatch               bool
	AgeMatch               bool
	MaternalEthnicityMatch bool
	PaternalEthnicityMatch bool
}

// Report is the assembled summary of one assessment.
type Report struct {
	Subject    Subject
	Metrics    []MetricRow
	Phenotypes []PhenotypeRow

	// Sources lists the distinct cited sources; footnote n is Sources[n-1].
	Sources []string
}

// Build assembles the report for assessment aid of s (negative for the
// current one). Only visible metrics of the catalog are listed. phenotypes
// may be nil to omit findings.
func Build(s metric.Subject, aid int, metrics *metric.Manager, phenotypes *phenotype.Manager) (*Report, error) {
	a := findAssessment(s, aid)
	if a == nil {
		return nil, ErrNoAssessment
	}
	d := s.Demographic()
	rep := &Report{Subject: Subject{
		AssessmentID:      a.ID(),
		Age:               d.Age,
		Sex:               d.Sex,
		MaternalEthnicity: d.MaternalEthnicity,
		PaternalEthnicity: d.PaternalEthnicity,
	}}
	if ider, ok := s.(interface{ ID() uuid.UUID }); ok {
		rep.Subject.ID = ider.ID().String()
	}

	footnotes := map[string]int{}
	for _, r := range models.Regions {
		set := a.Metrics(r)
		for _, id := range set.IDs() {
			m := metrics.Metric(id)
			if m == nil || !m.Visible() {
				continue
			}
			v, _ := set.Metric(id)
			row := MetricRow{ID: id, Name: m.Name(), Units: m.Units(), Region: r}
			for i := 0; i < v.Ndims(); i++ {
				row.Values = append(row.Values, m.Format(v, i))
				row.ZScores = append(row.ZScores, formatZ(v.ZScore(i)))
			}
			if src := v.Source(); src != "" {
				row.Source = src
				n, ok := footnotes[row.Source]
				if !ok {
					rep.Sources = append(rep.Sources, row.Source)
					n = len(rep.Sources)
					footnotes[row.Source] = n
				}
				row.Footnote = n
			}
			rep.Metrics = append(rep.Metrics, row)
		}
	}

	if phenotypes != nil {
		for _, id := range phenotypes.IDs() {
			p := phenotypes.Phenotype(id)
			if !p.IsPresent(s, a.ID()) {
				continue
			}
			p.IsDemographicMatch(s)
			rep.Phenotypes = append(rep.Phenotypes, PhenotypeRow{
				ID:                     id,
				FormattedID:            p.FormattedID(),
				Name:                   p.Name(),
				Metrics:                p.MetricsList(),
				SexMatch:               p.IsSexMatch(d.Sex),
				AgeMatch:               p.IsAgeMatch(d.Age),
				MaternalEthnicityMatch: p.IsEthnicityMatch(d.MaternalEthnicity),
				PaternalEthnicityMatch: p.IsEthnicityMatch(d.PaternalEthnicity),
			})
		}
	}
	return rep, nil
}

// NameEthnicities fills in the parental ethnicity names.
func (r *Report) NameEthnicities(n Namer) {
	if n == nil {
		return
	}
	r.Subject.MaternalEthnicityName = n.Name(r.Subject.MaternalEthnicity)
	r.Subject.PaternalEthnicityName = n.Name(r.Subject.PaternalEthnicity)
}

// Region returns the rows measured in region
func (r *Report) Region(region models.Region) []MetricRow {
	var out []MetricRow
	for _, row := range r.Metrics {
		if row.Region == region {
			out = append(out, row)
		}
	}
	return out
}

func formatZ(z float64) string {
	if math.IsNaN(z) {
		return "-"
	}
	return strconv.FormatFloat(z, 'f', 2, 64)
}

func findAssessment(s metric.Subject, aid int) metric.Assessment {
	if s == nil {
		return nil
	}
	if aid < 0 {
		return s.CurrentAssessment()
	}
	for _, a := range s.Assessments() {
		if a.ID() == aid {
			return a
		}
	}
	return nil
}
