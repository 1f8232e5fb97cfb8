// Package metric measures facial metrics on a subject and stores them with
// z-scores against the best matching growth data.
package metric

import (
	"fmt"
	"math"
	"strconv"

	"gonum.org/v1/gonum/spatial/r3"

	"facemetrics/internal/models"
	"facemetrics/pkg/geometry"
	"facemetrics/pkg/growth"
)

// midlineTolerance is how close to the midline a bilateral metric's
// landmark centroid may be before its side is considered undefined.
const midlineTolerance = 1e-9

// Info holds the descriptive attributes of a metric
type Info struct {
	Name        string
	Description string
	Region      string // anatomical region, e.g. "Eyes"
	Category    string
	Units       string
	Decimals    int
	Remarks     string
}

// Metric is a measurement definition with its growth data.
type Metric struct {
	id           int
	info         Info
	typ          Type
	visible      bool
	inPlane      bool
	fixedInPlane bool
	ranker       *growth.Ranker
}

// New creates a visible metric with an empty ranker.
func New(id int, info Info, typ Type, policy growth.Policy) *Metric {
	return &Metric{
		id:      id,
		info:    info,
		typ:     typ,
		visible: true,
		ranker:  growth.NewRanker(policy),
	}
}

func (m *Metric) ID() int             { return m.id }
func (m *Metric) Name() string        { return m.info.Name }
func (m *Metric) Description() string { return m.info.Description }
func (m *Metric) Region() string      { return m.info.Region }
func (m *Metric) Category() string    { return m.info.Category }
func (m *Metric) Units() string       { return m.info.Units }
func (m *Metric) Decimals() int       { return m.info.Decimals }
func (m *Metric) Remarks() string     { return m.info.Remarks }
func (m *Metric) Info() Info          { return m.info }
func (m *Metric) Type() Type          { return m.typ }
func (m *Metric) Dims() int           { return m.typ.Dims() }
func (m *Metric) Bilateral() bool     { return m.typ.Bilateral() }
func (m *Metric) LandmarkIDs() []int  { return m.typ.LandmarkIDs() }
func (m *Metric) Visible() bool       { return m.visible }
func (m *Metric) SetVisible(v bool)   { m.visible = v }
func (m *Metric) FixedInPlane() bool  { return m.fixedInPlane }

// Ranker returns the growth data ranker of the metric.
func (m *Metric) Ranker() *growth.Ranker { return m.ranker }

// GrowthData returns the growth data selected by the last measurement.
func (m *Metric) GrowthData() *growth.GrowthData { return m.ranker.Current() }

// SetFixedInPlane sets the in-plane mode and stops SetInPlane from
// changing it.
func (m *Metric) SetFixedInPlane(inPlane bool) {
	m.inPlane = inPlane
	m.fixedInPlane = true
	m.ranker.SetInPlane(inPlane)
}

// SetInPlane switches between in-plane and 3D measurement. It has no effect
// on metrics with a fixed mode.
func (m *Metric) SetInPlane(v bool) {
	if m.fixedInPlane {
		return
	}
	m.inPlane = v
	m.ranker.SetInPlane(v)
}

// InPlane reports whether the metric measures in-plane, either because it
// is set to or because the current growth data was collected that way.
func (m *Metric) InPlane() bool {
	if m.inPlane {
		return true
	}
	gd := m.ranker.Current()
	return gd != nil && gd.InPlane()
}

// Format renders dimension d of v with the metric's decimal places.
func (m *Metric) Format(v Value, d int) string {
	x := v.Value(d)
	if math.IsNaN(x) {
		return "-"
	}
	return strconv.FormatFloat(x, 'f', m.info.Decimals, 64)
}

func (m *Metric) String() string {
	return fmt.Sprintf("%d %s (%s, %d dims)", m.id, m.info.Name, m.typ.Kind(), m.Dims())
}

// CanMeasure reports whether s has an assessment, every landmark the metric
// depends on and, for surface types, a usable mesh.
func (m *Metric) CanMeasure(s Subject) bool {
	if s == nil || s.CurrentAssessment() == nil {
		return false
	}
	lmks := s.Landmarks()
	for _, id := range m.typ.LandmarkIDs() {
		if _, ok := lmks[id]; !ok {
			return false
		}
	}
	if m.typ.NeedsSurface() && !s.Mesh().Usable() {
		return false
	}
	return true
}

// Measure computes the metric on the current assessment of s and stores the
// value in the set of the region it belongs to. It returns false without
// changing any set when the metric cannot be measured. The assessment is
// notified only when the stored value actually changed.
func (m *Metric) Measure(s Subject) bool {
	if !m.CanMeasure(s) {
		return false
	}
	lmks := s.Landmarks()
	frame := s.Frame()

	region, ok := m.regionOf(lmks, frame)
	if !ok {
		return false
	}

	demo := s.Demographic()
	gd := m.ranker.Rerank(demo)

	in := Input{Landmarks: lmks, Mesh: s.Mesh()}
	if m.inPlane || (gd != nil && gd.InPlane()) {
		if !frame.Valid() {
			return false
		}
		in.Plane = &Plane{Origin: frame.Origin, Normal: frame.PlaneNormal(region.Lateral())}
	}

	raw, err := m.typ.Compute(in)
	if err != nil {
		return false
	}

	dims := make([]Dim, len(raw))
	for d, v := range raw {
		dims[d] = Dim{Value: v, Mean: math.NaN(), ZScore: math.NaN()}
		if gd != nil && d < gd.Dims() {
			dims[d].Mean = gd.Mean(d, demo.Age)
			dims[d].ZScore = gd.ZScore(d, demo.Age, v)
		}
	}

	val := NewValue(m.id, dims...)
	if gd != nil {
		val = val.WithSource(gd.CitedSource())
	}
	a := s.CurrentAssessment()
	if a.Metrics(region).Put(val) {
		a.MetricChanged(region, m.id)
	}
	return true
}

// Purge removes the metric from every region of every assessment of s.
func (m *Metric) Purge(s Subject) {
	for _, a := range s.Assessments() {
		for _, r := range models.Regions {
			if a.Metrics(r).Remove(m.id) {
				a.MetricChanged(r, m.id)
			}
		}
	}
}

// regionOf returns Mid for non-bilateral metrics and the side the landmarks
// lie on otherwise.
func (m *Metric) regionOf(lmks map[int]r3.Vec, frame geometry.Frame) (models.Region, bool) {
	if !m.typ.Bilateral() {
		return models.Mid, true
	}
	if !frame.Valid() {
		return models.Mid, false
	}
	ids := m.typ.LandmarkIDs()
	pts := make([]r3.Vec, len(ids))
	for i, id := range ids {
		pts[i] = lmks[id]
	}
	off := frame.LateralOffset(geometry.Centroid(pts))
	switch {
	case math.Abs(off) < midlineTolerance:
		return models.Mid, false
	case off > 0:
		return models.Left, true
	default:
		return models.Right, true
	}
}
