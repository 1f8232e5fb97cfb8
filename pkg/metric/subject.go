package metric

import (
	"gonum.org/v1/gonum/spatial/r3"

	"facemetrics/internal/models"
	"facemetrics/pkg/geometry"
)

// Assessment is one set of landmarks placed on a subject together with the
// metric values measured from them.
type Assessment interface {
	ID() int

	// Metrics returns the set for region r. It is never nil for a valid region.
	Metrics(r models.Region) *Set

	// MetricChanged is called after the value of metric id in region r was
	// stored or removed.
	MetricChanged(r models.Region, id int)
}

// Subject is the face a metric is measured on.
type Subject interface {
	// Landmarks of the current assessment, keyed by landmark id
	Landmarks() map[int]r3.Vec

	// Mesh may be nil
	Mesh() *geometry.Mesh

	Frame() geometry.Frame
	Demographic() models.Demographic

	// CurrentAssessment may be nil when the subject has no assessments
	CurrentAssessment() Assessment

	Assessments() []Assessment
}

// Pairs maps each left landmark id to its right counterpart.
type Pairs map[int]int

// Mirror returns the counterpart of id in either direction.
func (p Pairs) Mirror(id int) (int, bool) {
	if r, ok := p[id]; ok {
		return r, true
	}
	for l, r := range p {
		if r == id {
			return l, true
		}
	}
	return id, false
}

// Contralateral returns a view of s whose landmarks are swapped across each
// left/right pair. Measuring a bilateral metric through the view records the
// side opposite to the one measured on s. All other state is shared.
func Contralateral(s Subject, pairs Pairs) Subject {
	return contralateral{Subject: s, pairs: pairs}
}

type contralateral struct {
	Subject
	pairs Pairs
}

func (c contralateral) Landmarks() map[int]r3.Vec {
	src := c.Subject.Landmarks()
	out := make(map[int]r3.Vec, len(src))
	for id, p := range src {
		m, _ := c.pairs.Mirror(id)
		out[m] = p
	}
	return out
}
