// Package phenotype determines the presence of clinical facial traits from
// measured metrics and checks whether the reference data behind a trait
// applies to a subject.
package phenotype

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"

	"facemetrics/internal/models"
	"facemetrics/pkg/metric"
)

// ErrUnknownMetric is returned when a phenotype depends on a metric the
// catalog does not know.
var ErrUnknownMetric = errors.New("unknown metric")

// Catalog resolves metric ids. *metric.Manager satisfies it.
type Catalog interface {
	Metric(id int) *metric.Metric
}

// Info holds the descriptive attributes of a phenotype
type Info struct {
	Name     string
	Region   string
	Synonyms []string
	Refs     []string
	OCrit    string // objective criteria
	SCrit    string // subjective criteria
	Remarks  string
}

// Phenotype is a clinical trait whose presence is decided by a predicate
// over the metrics it depends on.
type Phenotype struct {
	id        int
	info      Info
	metrics   []int
	catalog   Catalog
	predicate Predicate
	logger    *log.Logger
}

// New creates a phenotype depending on metricIDs, each of which must be in
// catalog. A nil predicate makes the phenotype never present.
func New(id int, info Info, metricIDs []int, pred Predicate, catalog Catalog) (*Phenotype, error) {
	if id < 0 {
		return nil, fmt.Errorf("invalid phenotype id %d", id)
	}
	seen := map[int]bool{}
	var ids []int
	for _, mid := range metricIDs {
		if catalog.Metric(mid) == nil {
			return nil, fmt.Errorf("phenotype %d: %w %d", id, ErrUnknownMetric, mid)
		}
		if !seen[mid] {
			seen[mid] = true
			ids = append(ids, mid)
		}
	}
	sort.Ints(ids)
	return &Phenotype{
		id:        id,
		info:      info,
		metrics:   ids,
		catalog:   catalog,
		predicate: pred,
		logger:    log.Default(),
	}, nil
}

func (p *Phenotype) ID() int                    { return p.id }
func (p *Phenotype) Name() string               { return p.info.Name }
func (p *Phenotype) Region() string             { return p.info.Region }
func (p *Phenotype) Synonyms() []string         { return append([]string(nil), p.info.Synonyms...) }
func (p *Phenotype) Refs() []string             { return append([]string(nil), p.info.Refs...) }
func (p *Phenotype) ObjectiveCriteria() string  { return p.info.OCrit }
func (p *Phenotype) SubjectiveCriteria() string { return p.info.SCrit }
func (p *Phenotype) Remarks() string            { return p.info.Remarks }

// Metrics returns the ids of the dependent metrics in ascending order.
func (p *Phenotype) Metrics() []int { return append([]int(nil), p.metrics...) }

// MetricsList returns the dependent metric ids as a comma separated list.
func (p *Phenotype) MetricsList() string {
	parts := make([]string, len(p.metrics))
	for i, id := range p.metrics {
		parts[i] = strconv.Itoa(id)
	}
	return strings.Join(parts, ",")
}

// FormattedID returns the id as an HPO term, e.g. HP:0000316.
func (p *Phenotype) FormattedID() string { return FormattedID(p.id) }

// FormattedID formats an HPO numeric id.
func FormattedID(id int) string { return fmt.Sprintf("HP:%07d", id) }

// SetPredicate binds the presence predicate.
func (p *Phenotype) SetPredicate(pred Predicate) { p.predicate = pred }

// HasPredicate reports whether a predicate is bound
func (p *Phenotype) HasPredicate() bool { return p.predicate != nil }

// SetLogger sets the logger evaluation errors are reported to.
func (p *Phenotype) SetLogger(l *log.Logger) {
	if l != nil {
		p.logger = l
	}
}

// assessment resolves aid, with a negative id meaning the current one.
func assessment(s metric.Subject, aid int) metric.Assessment {
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

// hasMeasurements reports whether every dependent metric has a value in
// the regions it is measured in: both laterals for bilateral metrics and
// the frontal set otherwise.
func (p *Phenotype) hasMeasurements(a metric.Assessment) bool {
	mid, left, right := a.Metrics(models.Mid), a.Metrics(models.Left), a.Metrics(models.Right)
	for _, id := range p.metrics {
		m := p.catalog.Metric(id)
		if m == nil {
			return false
		}
		if m.Bilateral() {
			if !left.Has(id) || !right.Has(id) {
				return false
			}
		} else if !mid.Has(id) {
			return false
		}
	}
	return true
}

// IsPresent reports whether the trait is present in assessment aid of s
// (negative for the current assessment). It is false when any dependent
// metric is unmeasured, in which case the predicate is not evaluated, and
// when the predicate fails.
func (p *Phenotype) IsPresent(s metric.Subject, aid int) bool {
	if p.predicate == nil || s == nil {
		return false
	}
	a := assessment(s, aid)
	if a == nil || !p.hasMeasurements(a) {
		return false
	}
	present, err := p.determine(s.Demographic().Age,
		a.Metrics(models.Mid), a.Metrics(models.Left), a.Metrics(models.Right))
	if err != nil {
		p.logger.Warn("phenotype evaluation failed", "id", p.FormattedID(), "name", p.info.Name, "err", err)
		return false
	}
	return present
}

// determine runs the predicate, turning a panic into an ErrEvaluation error.
func (p *Phenotype) determine(age float64, mid, left, right *metric.Set) (present bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			present, err = false, fmt.Errorf("%w: %v", ErrEvaluation, r)
		}
	}()
	return p.predicate.Determine(age, mid, left, right)
}

// IsSexMatch reports whether the current growth data of every dependent
// metric was collected for sex or for both sexes.
func (p *Phenotype) IsSexMatch(sex models.Sex) bool {
	if sex == models.UnknownSex {
		return false
	}
	for _, id := range p.metrics {
		gd := p.catalog.Metric(id).GrowthData()
		if gd == nil || (gd.Sex() != sex && gd.Sex() != models.BothSexes) {
			return false
		}
	}
	return true
}

// IsAgeMatch reports whether the current growth data of every dependent
// metric covers age.
func (p *Phenotype) IsAgeMatch(age float64) bool {
	for _, id := range p.metrics {
		gd := p.catalog.Metric(id).GrowthData()
		if gd == nil || !gd.IsWithinAgeRange(age) {
			return false
		}
	}
	return true
}

// IsEthnicityMatch reports whether ethnicity code falls within the
// population of the current growth data of every dependent metric.
func (p *Phenotype) IsEthnicityMatch(code int) bool {
	for _, id := range p.metrics {
		m := p.catalog.Metric(id)
		gd := m.GrowthData()
		if gd == nil || !m.Ranker().Policy().Belongs(gd.Ethnicity(), code) {
			return false
		}
	}
	return true
}

// IsDemographicMatch reranks the growth data of every dependent metric for
// the demographic of s and reports whether sex, age and both parental
// ethnicities match. It does not look at measured values.
func (p *Phenotype) IsDemographicMatch(s metric.Subject) bool {
	d := s.Demographic()
	for _, id := range p.metrics {
		p.catalog.Metric(id).Ranker().Rerank(d)
	}
	return p.IsSexMatch(d.Sex) &&
		p.IsAgeMatch(d.Age) &&
		p.IsEthnicityMatch(d.MaternalEthnicity) &&
		p.IsEthnicityMatch(d.PaternalEthnicity)
}

func (p *Phenotype) String() string {
	return fmt.Sprintf("%s %s", p.FormattedID(), p.info.Name)
}
