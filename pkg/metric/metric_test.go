package metric

import (
	"context"
	"io"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"facemetrics/internal/models"
	"facemetrics/pkg/geometry"
	"facemetrics/pkg/growth"
)

type change struct {
	region models.Region
	id     int
}

type fakeAssessment struct {
	id      int
	sets    [3]*Set
	changes []change
}

func newFakeAssessment(id int) *fakeAssessment {
	return &fakeAssessment{id: id, sets: [3]*Set{NewSet(), NewSet(), NewSet()}}
}

func (a *fakeAssessment) ID() int                      { return a.id }
func (a *fakeAssessment) Metrics(r models.Region) *Set { return a.sets[r] }

func (a *fakeAssessment) MetricChanged(r models.Region, id int) {
	a.changes = append(a.changes, change{r, id})
}

type fakeSubject struct {
	lmks  map[int]r3.Vec
	mesh  *geometry.Mesh
	frame geometry.Frame
	demo  models.Demographic
	cur   *fakeAssessment
	all   []*fakeAssessment
}

func newFakeSubject(lmks map[int]r3.Vec) *fakeSubject {
	a := newFakeAssessment(0)
	return &fakeSubject{lmks: lmks, frame: geometry.DefaultFrame(), cur: a, all: []*fakeAssessment{a}}
}

func (s *fakeSubject) Landmarks() map[int]r3.Vec       { return s.lmks }
func (s *fakeSubject) Mesh() *geometry.Mesh            { return s.mesh }
func (s *fakeSubject) Frame() geometry.Frame           { return s.frame }
func (s *fakeSubject) Demographic() models.Demographic { return s.demo }

func (s *fakeSubject) CurrentAssessment() Assessment {
	if s.cur == nil {
		return nil
	}
	return s.cur
}

func (s *fakeSubject) Assessments() []Assessment {
	out := make([]Assessment, len(s.all))
	for i, a := range s.all {
		out[i] = a
	}
	return out
}

func distanceMetric(t *testing.T, id int, bilateral bool, lmks ...int) *Metric {
	t.Helper()
	typ, err := NewDistance(lmks, bilateral)
	require.NoError(t, err)
	return New(id, Info{Name: "test distance", Decimals: 2}, typ, growth.DefaultPolicy())
}

func TestMeasureDistanceMid(t *testing.T) {
	s := newFakeSubject(map[int]r3.Vec{1: {}, 2: {X: 3, Y: 4}})
	m := distanceMetric(t, 7, false, 1, 2)

	require.True(t, m.Measure(s))

	v, ok := s.cur.Metrics(models.Mid).Metric(7)
	require.True(t, ok)
	assert.Equal(t, 1, v.Ndims())
	assert.InDelta(t, 5.0, v.Value(0), 1e-12)
	assert.False(t, v.HasZScore(0))
	assert.True(t, math.IsNaN(v.Mean(0)))
	assert.Equal(t, "5.00", m.Format(v, 0))
	assert.Equal(t, []change{{models.Mid, 7}}, s.cur.changes)
	assert.Zero(t, s.cur.Metrics(models.Left).Len())
	assert.Zero(t, s.cur.Metrics(models.Right).Len())
}

func TestMeasureIsIdempotent(t *testing.T) {
	s := newFakeSubject(map[int]r3.Vec{1: {}, 2: {X: 3, Y: 4}})
	m := distanceMetric(t, 7, false, 1, 2)

	require.True(t, m.Measure(s))
	require.True(t, m.Measure(s))
	assert.Len(t, s.cur.changes, 1, "unchanged value must not notify")

	s.lmks[2] = r3.Vec{X: 6, Y: 8}
	require.True(t, m.Measure(s))
	assert.Len(t, s.cur.changes, 2)
}

func TestMeasureWithoutPreconditions(t *testing.T) {
	t.Run("missing landmark", func(t *testing.T) {
		s := newFakeSubject(map[int]r3.Vec{1: {}})
		m := distanceMetric(t, 7, false, 1, 2)
		assert.False(t, m.CanMeasure(s))
		assert.False(t, m.Measure(s))
		assert.Zero(t, s.cur.Metrics(models.Mid).Len())
		assert.Empty(t, s.cur.changes)
	})

	t.Run("no assessment", func(t *testing.T) {
		s := newFakeSubject(map[int]r3.Vec{1: {}, 2: {X: 1}})
		s.cur = nil
		assert.False(t, distanceMetric(t, 7, false, 1, 2).CanMeasure(s))
	})

	t.Run("depth without mesh", func(t *testing.T) {
		s := newFakeSubject(map[int]r3.Vec{1: {}, 2: {X: 1}})
		typ, err := NewDepth(1, 2, 0, false)
		require.NoError(t, err)
		m := New(3, Info{Name: "depth"}, typ, growth.DefaultPolicy())
		assert.False(t, m.CanMeasure(s))
		assert.False(t, m.Measure(s))
		assert.Zero(t, s.cur.Metrics(models.Mid).Len())
	})

	t.Run("coincident angle points", func(t *testing.T) {
		s := newFakeSubject(map[int]r3.Vec{1: {X: 1}, 2: {X: 1}, 3: {Y: 1}})
		typ, err := NewAngle(1, 2, 3, false)
		require.NoError(t, err)
		m := New(4, Info{Name: "angle"}, typ, growth.DefaultPolicy())
		assert.True(t, m.CanMeasure(s))
		assert.False(t, m.Measure(s))
		assert.Zero(t, s.cur.Metrics(models.Mid).Len())
	})
}

func TestMeasureBilateralWritesOneSide(t *testing.T) {
	lmks := map[int]r3.Vec{
		10: {X: 30, Y: 0}, 11: {X: 50, Y: 0}, // subject's left
		20: {X: -30, Y: 0}, 21: {X: -52, Y: 0},
	}
	s := newFakeSubject(lmks)
	m := distanceMetric(t, 9, true, 10, 11)

	require.True(t, m.Measure(s))
	left, ok := s.cur.Metrics(models.Left).Metric(9)
	require.True(t, ok)
	assert.InDelta(t, 20.0, left.Value(0), 1e-12)
	assert.False(t, s.cur.Metrics(models.Right).Has(9))
	assert.False(t, s.cur.Metrics(models.Mid).Has(9))

	mirror := Contralateral(s, Pairs{10: 20, 11: 21})
	require.True(t, m.Measure(mirror))
	right, ok := s.cur.Metrics(models.Right).Metric(9)
	require.True(t, ok)
	assert.InDelta(t, 22.0, right.Value(0), 1e-12)
	assert.Equal(t, []change{{models.Left, 9}, {models.Right, 9}}, s.cur.changes)
}

func TestContralateralLandmarks(t *testing.T) {
	s := newFakeSubject(map[int]r3.Vec{
		1:  {Y: 3}, // unpaired
		10: {X: 30},
		20: {X: -30},
		11: {X: 50}, // counterpart 21 missing
	})
	got := Contralateral(s, Pairs{10: 20, 11: 21}).Landmarks()
	assert.Equal(t, map[int]r3.Vec{
		1:  {Y: 3},
		10: {X: -30},
		20: {X: 30},
		21: {X: 50},
	}, got)
	assert.Len(t, s.Landmarks(), 4, "source landmarks untouched")
}

func TestMeasureBilateralOnMidline(t *testing.T) {
	s := newFakeSubject(map[int]r3.Vec{1: {X: -5}, 2: {X: 5}})
	m := distanceMetric(t, 9, true, 1, 2)
	assert.True(t, m.CanMeasure(s))
	assert.False(t, m.Measure(s))
	for _, r := range models.Regions {
		assert.Zero(t, s.cur.Metrics(r).Len())
	}
}

func TestMeasureZScore(t *testing.T) {
	s := newFakeSubject(map[int]r3.Vec{1: {}, 2: {X: 14}})
	s.demo = models.Demographic{Sex: models.Male, Age: 6}
	m := distanceMetric(t, 1, false, 1, 2)
	gd, err := growth.New(growth.Spec{
		Sex:    models.BothSexes,
		AgeMin: 0,
		AgeMax: 20,
		Source: "test",
		Stats:  [][]growth.Sample{{{Age: 0, Mean: 10, SD: 2}}},
	})
	require.NoError(t, err)
	m.Ranker().Add(gd)

	require.True(t, m.Measure(s))
	v, _ := s.cur.Metrics(models.Mid).Metric(1)
	assert.InDelta(t, 10.0, v.Mean(0), 1e-12)
	assert.InDelta(t, 2.0, v.ZScore(0), 1e-12)
	assert.Equal(t, "test", v.Source())
	assert.Same(t, gd, m.GrowthData())

	// Out of every age range: raw value kept, statistics undefined.
	s.demo.Age = 30
	require.True(t, m.Measure(s))
	v, _ = s.cur.Metrics(models.Mid).Metric(1)
	assert.Equal(t, 14.0, v.Value(0))
	assert.False(t, v.HasZScore(0))
	assert.Empty(t, v.Source())
	assert.Nil(t, m.GrowthData())
}

func TestMeasureInPlane(t *testing.T) {
	s := newFakeSubject(map[int]r3.Vec{1: {}, 2: {X: 3, Y: 4, Z: 12}})
	m := distanceMetric(t, 1, false, 1, 2)

	require.True(t, m.Measure(s))
	v, _ := s.cur.Metrics(models.Mid).Metric(1)
	assert.InDelta(t, 13.0, v.Value(0), 1e-12)

	m.SetInPlane(true)
	assert.True(t, m.InPlane())
	require.True(t, m.Measure(s))
	v, _ = s.cur.Metrics(models.Mid).Metric(1)
	assert.InDelta(t, 5.0, v.Value(0), 1e-12)
}

func TestFixedInPlane(t *testing.T) {
	m := distanceMetric(t, 1, false, 1, 2)
	m.SetFixedInPlane(false)
	m.SetInPlane(true)
	assert.False(t, m.InPlane())
	assert.False(t, m.Ranker().InPlane())
}

func TestPurge(t *testing.T) {
	s := newFakeSubject(map[int]r3.Vec{1: {}, 2: {X: 1}})
	other := newFakeAssessment(1)
	s.all = append(s.all, other)
	other.Metrics(models.Left).Put(RawValue(4, 1))
	s.cur.Metrics(models.Mid).Put(RawValue(4, 2))
	s.cur.Metrics(models.Mid).Put(RawValue(5, 3))

	distanceMetric(t, 4, false, 1, 2).Purge(s)

	assert.Equal(t, []int{5}, s.cur.Metrics(models.Mid).IDs())
	assert.Zero(t, other.Metrics(models.Left).Len())
	assert.Equal(t, []change{{models.Mid, 4}}, s.cur.changes)
	assert.Equal(t, []change{{models.Left, 4}}, other.changes)
}

func TestValueEqualTreatsNaNAsEqual(t *testing.T) {
	a := RawValue(1, 2.5)
	b := RawValue(1, 2.5)
	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(RawValue(1, 2.6)))
	assert.False(t, a.Equal(RawValue(2, 2.5)))
	assert.False(t, a.Equal(b.WithSource("Farkas 1994")), "a different citation is a change")

	set := NewSet()
	assert.True(t, set.Put(a))
	assert.False(t, set.Put(b))
	assert.True(t, set.Remove(1))
	assert.False(t, set.Remove(1))
}

func TestDepthMeasuresGapToSurface(t *testing.T) {
	var verts []r3.Vec
	for x := -5.0; x <= 5; x++ {
		for y := -5.0; y <= 5; y++ {
			verts = append(verts, r3.Vec{X: x, Y: y})
		}
	}
	s := newFakeSubject(map[int]r3.Vec{1: {X: -4, Z: 3}, 2: {X: 4, Z: 3}})
	s.mesh = geometry.NewMesh(verts, [][3]int{{0, 1, 11}})

	typ, err := NewDepth(1, 2, 9, false)
	require.NoError(t, err)
	m := New(2, Info{Name: "depth"}, typ, growth.DefaultPolicy())
	require.True(t, m.Measure(s))
	v, _ := s.cur.Metrics(models.Mid).Metric(2)
	assert.InDelta(t, 3.0, v.Value(0), 1e-12)
}

const metricYAML = `
id: 5
name: Intercanthal width
region: Eyes
units: mm
decimals: 1
type: distance
landmarks: [3, 4]
growthData:
  - sex: F
    ageRange: [0, 10]
    source: Farkas 1994
    stats:
      - [[0, 20, 1], [10, 30, 1]]
  - sex: M
    ageRange: [0, 10]
    source: Farkas 1994
    stats:
      - [[0, 22, 1], [10, 32, 1]]
`

func TestParse(t *testing.T) {
	m, err := Parse([]byte(metricYAML), growth.DefaultPolicy())
	require.NoError(t, err)
	assert.Equal(t, 5, m.ID())
	assert.Equal(t, "Intercanthal width", m.Name())
	assert.Equal(t, Distance, m.Type().Kind())
	assert.True(t, m.Visible())

	cands := m.Ranker().Candidates()
	require.Len(t, cands, 3, "female and male data are pooled for both sexes")
	assert.Equal(t, models.BothSexes, cands[2].Sex())
	assert.InDelta(t, 21.0, cands[2].Mean(0, 0), 1e-12)

	gd := m.Ranker().Rerank(models.Demographic{Age: 5})
	assert.Same(t, cands[2], gd)
}

func TestParseRejects(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"malformed", "id: [\n"},
		{"missing id", "name: x\ntype: distance\nlandmarks: [1, 2]\n"},
		{"negative id", "id: -1\nname: x\ntype: distance\nlandmarks: [1, 2]\n"},
		{"missing name", "id: 1\ntype: distance\nlandmarks: [1, 2]\n"},
		{"odd distance landmarks", "id: 1\nname: x\ntype: distance\nlandmarks: [1, 2, 3]\n"},
		{"angle landmarks", "id: 1\nname: x\ntype: angle\nlandmarks: [1, 2]\n"},
		{"unknown type", "id: 1\nname: x\ntype: area\nlandmarks: [1, 2]\n"},
		{"dimension mismatch", "id: 1\nname: x\ntype: distance\nlandmarks: [1, 2]\ngrowthData:\n  - sex: M\n    ageRange: [0, 1]\n    stats: [[[0, 1, 1]], [[0, 1, 1]]]\n"},
		{"empty age range", "id: 1\nname: x\ntype: distance\nlandmarks: [1, 2]\ngrowthData:\n  - sex: M\n    ageRange: [3, 3]\n    stats: [[[0, 1, 1]]]\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml), growth.DefaultPolicy())
			assert.ErrorIs(t, err, ErrInvalidDefinition)
		})
	}
}

func TestManagerLoadDir(t *testing.T) {
	dir := t.TempDir()
	write := func(name, body string) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
	}
	write("a.yaml", metricYAML)
	write("b.yaml", "id: 5\nname: duplicate\ntype: distance\nlandmarks: [1, 2]\n")
	write("c.yml", "id: 6\nname: angle\ntype: angle\nlandmarks: [1, 2, 3]\nbilateral: true\n")
	write("d.yaml", "id: [broken\n")
	write("notes.txt", "ignored")
	write(PairsFile, "pairs:\n  - [1, 11]\n  - [3, 13]\n")

	mgr := NewManager(growth.DefaultPolicy(), log.New(io.Discard))
	n, err := mgr.LoadDir(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []int{5, 6}, mgr.IDs())
	assert.Equal(t, "Intercanthal width", mgr.Metric(5).Name())
	assert.Nil(t, mgr.Metric(99))
	assert.Equal(t, Pairs{1: 11, 3: 13}, mgr.Pairs())

	r, ok := mgr.Pairs().Mirror(13)
	assert.True(t, ok)
	assert.Equal(t, 3, r)

	_, err = mgr.LoadDir(context.Background(), filepath.Join(dir, "missing"))
	assert.Error(t, err)
}

func TestManagerAddDuplicate(t *testing.T) {
	mgr := NewManager(growth.DefaultPolicy(), nil)
	require.NoError(t, mgr.Add(distanceMetric(t, 1, false, 1, 2)))
	assert.ErrorIs(t, mgr.Add(distanceMetric(t, 1, false, 3, 4)), ErrDuplicateID)
	assert.Equal(t, 1, mgr.Len())
}
