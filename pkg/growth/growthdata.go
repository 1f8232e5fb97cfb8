// Package growth models reference statistics of facial measurements against
// age and selects the dataset that best fits a subject.
package growth

import (
	"errors"
	"fmt"
	"math"

	"facemetrics/internal/models"
)

// ErrInvalid is wrapped by every validation failure when constructing
// growth data.
var ErrInvalid = errors.New("invalid growth data")

// Spec holds the fields used to construct a GrowthData
type Spec struct {
	// Sex the data was collected for: Female, Male or BothSexes
	Sex models.Sex

	// Ethnicity code of the sampled population (0 for any)
	Ethnicity int

	// AgeMin and AgeMax bound the ages the data applies to as [AgeMin, AgeMax)
	AgeMin float64
	AgeMax float64

	// InPlane marks data measured in the plane of the face rather than in 3D
	InPlane bool

	// Source is the citation for the dataset
	Source string

	// Note and LongNote are short and long remarks about the dataset
	Note     string
	LongNote string

	// Stats holds the tabulated samples of each dimension
	Stats [][]Sample
}

// GrowthData is an immutable reference dataset for one metric and one
// demographic group. Instances are shared by every consumer of the metric.
type GrowthData struct {
	sex       models.Sex
	ethnicity int
	ageMin    float64
	ageMax    float64
	inPlane   bool
	source    string
	note      string
	longNote  string
	curves    []*Curve
}

// New validates spec and builds the growth data.
func New(spec Spec) (*GrowthData, error) {
	if !spec.Sex.Valid() {
		return nil, fmt.Errorf("%w: sex must be F, M or MF", ErrInvalid)
	}
	if math.IsNaN(spec.AgeMin) || math.IsNaN(spec.AgeMax) || spec.AgeMax <= spec.AgeMin {
		return nil, fmt.Errorf("%w: empty age range [%g, %g)", ErrInvalid, spec.AgeMin, spec.AgeMax)
	}
	if len(spec.Stats) == 0 {
		return nil, fmt.Errorf("%w: no dimensions", ErrInvalid)
	}

	gd := &GrowthData{
		sex:       spec.Sex,
		ethnicity: spec.Ethnicity,
		ageMin:    spec.AgeMin,
		ageMax:    spec.AgeMax,
		inPlane:   spec.InPlane,
		source:    spec.Source,
		note:      spec.Note,
		longNote:  spec.LongNote,
		curves:    make([]*Curve, len(spec.Stats)),
	}
	for d, samples := range spec.Stats {
		c, err := NewCurve(samples)
		if err != nil {
			return nil, fmt.Errorf("dimension %d: %w", d, err)
		}
		gd.curves[d] = c
	}
	return gd, nil
}

func (g *GrowthData) Sex() models.Sex  { return g.sex }
func (g *GrowthData) Ethnicity() int   { return g.ethnicity }
func (g *GrowthData) AgeMin() float64  { return g.ageMin }
func (g *GrowthData) AgeMax() float64  { return g.ageMax }
func (g *GrowthData) InPlane() bool    { return g.inPlane }
func (g *GrowthData) Source() string   { return g.source }
func (g *GrowthData) Note() string     { return g.note }
func (g *GrowthData) LongNote() string { return g.longNote }
func (g *GrowthData) Dims() int        { return len(g.curves) }

// Curve returns the curve of dimension d, or nil if out of range.
func (g *GrowthData) Curve(d int) *Curve {
	if d < 0 || d >= len(g.curves) {
		return nil
	}
	return g.curves[d]
}

// IsWithinAgeRange reports whether age lies in [AgeMin, AgeMax).
func (g *GrowthData) IsWithinAgeRange(age float64) bool {
	return age >= g.ageMin && age < g.ageMax
}

// Mean returns the expected value of dimension d at age, or NaN if d is out
// of range.
func (g *GrowthData) Mean(d int, age float64) float64 {
	c := g.Curve(d)
	if c == nil {
		return math.NaN()
	}
	return c.Mean(age)
}

// StdDev returns the standard deviation of dimension d at age, or NaN if d
// is out of range.
func (g *GrowthData) StdDev(d int, age float64) float64 {
	c := g.Curve(d)
	if c == nil {
		return math.NaN()
	}
	return c.SD(age)
}

// ZScore returns (v - mean) / sd for dimension d at age.
func (g *GrowthData) ZScore(d int, age, v float64) float64 {
	return (v - g.Mean(d, age)) / g.StdDev(d, age)
}

// CitedSource returns the source followed by the note, as printed beside
// measurements in reports.
func (g *GrowthData) CitedSource() string {
	if g.note == "" {
		return g.source
	}
	return g.source + " " + g.note
}

func (g *GrowthData) String() string {
	return fmt.Sprintf("%s sex=%s ethnicity=%d ages=[%g,%g) inPlane=%t", g.source, g.sex, g.ethnicity, g.ageMin, g.ageMax, g.inPlane)
}

// PoolSexes combines a female and a male dataset that share ethnicity, age
// range, in-plane flag and dimensionality into a dataset for both sexes.
// Both groups are weighted equally: the pooled mean is the average of the
// means and the pooled variance is the average of the variances plus the
// squared half-difference of the means.
func PoolSexes(f, m *GrowthData) (*GrowthData, error) {
	switch {
	case f.sex != models.Female || m.sex != models.Male:
		return nil, fmt.Errorf("%w: pooling needs female and male data", ErrInvalid)
	case f.ethnicity != m.ethnicity:
		return nil, fmt.Errorf("%w: pooling across ethnicities %d and %d", ErrInvalid, f.ethnicity, m.ethnicity)
	case f.ageMin != m.ageMin || f.ageMax != m.ageMax:
		return nil, fmt.Errorf("%w: pooling across different age ranges", ErrInvalid)
	case f.inPlane != m.inPlane:
		return nil, fmt.Errorf("%w: pooling in-plane with 3D data", ErrInvalid)
	case f.Dims() != m.Dims():
		return nil, fmt.Errorf("%w: pooling %d and %d dimensions", ErrInvalid, f.Dims(), m.Dims())
	}

	spec := Spec{
		Sex:       models.BothSexes,
		Ethnicity: f.ethnicity,
		AgeMin:    f.ageMin,
		AgeMax:    f.ageMax,
		InPlane:   f.inPlane,
		Source:    f.source,
		Note:      f.note,
		LongNote:  f.longNote,
		Stats:     make([][]Sample, f.Dims()),
	}
	if m.source != f.source {
		spec.Source = f.source + "; " + m.source
	}
	if m.note != f.note {
		spec.Note = ""
	}

	for d := range spec.Stats {
		fc, mc := f.curves[d], m.curves[d]
		for _, age := range unionAges(fc, mc) {
			fm, mm := fc.Mean(age), mc.Mean(age)
			fs, ms := fc.SD(age), mc.SD(age)
			half := (fm - mm) / 2
			spec.Stats[d] = append(spec.Stats[d], Sample{
				Age:  age,
				Mean: (fm + mm) / 2,
				SD:   math.Sqrt((fs*fs+ms*ms)/2 + half*half),
			})
		}
	}
	return New(spec)
}
