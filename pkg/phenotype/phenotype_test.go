package phenotype

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
	"gopkg.in/yaml.v3"

	"facemetrics/internal/models"
	"facemetrics/pkg/face"
	"facemetrics/pkg/growth"
	"facemetrics/pkg/metric"
)

var quiet = log.New(io.Discard)

// catalog holds metric 5 (frontal, with growth data), 7 (frontal) and 9
// (bilateral).
func catalog(t *testing.T) *metric.Manager {
	t.Helper()
	policy := growth.Policy{EthnicityBeforeInPlane: true, Ethnicities: parents{2110: 2100, 2100: 2000}}
	mgr := metric.NewManager(policy, quiet)

	add := func(id int, bilateral bool, lmks ...int) *metric.Metric {
		typ, err := metric.NewDistance(lmks, bilateral)
		require.NoError(t, err)
		m := metric.New(id, metric.Info{Name: "metric"}, typ, policy)
		require.NoError(t, mgr.Add(m))
		return m
	}
	m5 := add(5, false, 1, 2)
	add(7, false, 3, 4)
	add(9, true, 10, 11)

	gd, err := growth.New(growth.Spec{
		Sex:       models.BothSexes,
		Ethnicity: 2000,
		AgeMin:    0,
		AgeMax:    20,
		Source:    "test",
		Stats:     [][]growth.Sample{{{Age: 0, Mean: 10, SD: 2}}},
	})
	require.NoError(t, err)
	m5.Ranker().Add(gd)
	mgr.SetPairs(metric.Pairs{10: 20, 11: 21})
	return mgr
}

type parents map[int]int

func (p parents) Belongs(group, code int) bool {
	for c := code; c != 0; c = p[c] {
		if c == group {
			return true
		}
	}
	return group == 0
}

func subject() *face.Model {
	m := face.New()
	m.SetSex(models.Female)
	m.SetMaternalEthnicity(2110)
	m.SetPaternalEthnicity(2100)
	m.SetAge(8)
	a := m.NewAssessment("RP")
	for id, p := range map[int]r3.Vec{
		1: {}, 2: {X: 15},
		3: {Y: 1}, 4: {Y: 4},
		10: {X: 20}, 11: {X: 40}, 20: {X: -20}, 21: {X: -41},
	} {
		a.SetLandmark(id, p)
	}
	return m
}

func measure(mgr *metric.Manager, s metric.Subject, ids ...int) {
	for _, id := range ids {
		m := mgr.Metric(id)
		m.Measure(s)
		if m.Bilateral() {
			m.Measure(metric.Contralateral(s, mgr.Pairs()))
		}
	}
}

func TestPredicateNotCalledWhenIncomplete(t *testing.T) {
	mgr := catalog(t)
	calls := 0
	p, err := New(316, Info{Name: "Hypertelorism"}, []int{5, 7}, PredicateFunc(
		func(age float64, mid, left, right *metric.Set) (bool, error) {
			calls++
			return true, nil
		}), mgr)
	require.NoError(t, err)

	s := subject()
	measure(mgr, s, 5)
	assert.False(t, p.IsPresent(s, -1))
	assert.Zero(t, calls)

	measure(mgr, s, 7)
	assert.True(t, p.IsPresent(s, -1))
	assert.Equal(t, 1, calls)
}

func TestBilateralNeedsBothSides(t *testing.T) {
	mgr := catalog(t)
	p, err := New(1, Info{}, []int{9}, PredicateFunc(
		func(float64, *metric.Set, *metric.Set, *metric.Set) (bool, error) { return true, nil }), mgr)
	require.NoError(t, err)

	s := subject()
	mgr.Metric(9).Measure(s)
	assert.False(t, p.IsPresent(s, -1), "only the left side is measured")

	mgr.Metric(9).Measure(metric.Contralateral(s, mgr.Pairs()))
	assert.True(t, p.IsPresent(s, -1))
}

func TestPredicateErrorIsNotPresent(t *testing.T) {
	mgr := catalog(t)
	p, err := New(2, Info{}, []int{5}, PredicateFunc(
		func(float64, *metric.Set, *metric.Set, *metric.Set) (bool, error) {
			return true, errors.New("boom")
		}), mgr)
	require.NoError(t, err)
	p.SetLogger(quiet)

	s := subject()
	measure(mgr, s, 5)
	assert.False(t, p.IsPresent(s, -1))
}

func TestPredicatePanicIsNotPresent(t *testing.T) {
	mgr := catalog(t)
	p, err := New(4, Info{}, []int{5}, PredicateFunc(
		func(_ float64, mid, _, _ *metric.Set) (bool, error) {
			v, _ := mid.Metric(5)
			return v.Dims()[3].Value > 0, nil
		}), mgr)
	require.NoError(t, err)
	p.SetLogger(quiet)

	s := subject()
	measure(mgr, s, 5)
	assert.NotPanics(t, func() {
		assert.False(t, p.IsPresent(s, -1))
	})

	present, err := p.determine(0, metric.NewSet(), metric.NewSet(), metric.NewSet())
	assert.False(t, present)
	assert.ErrorIs(t, err, ErrEvaluation)
}

func TestNoPredicateIsNeverPresent(t *testing.T) {
	mgr := catalog(t)
	p, err := New(3, Info{}, []int{5}, nil, mgr)
	require.NoError(t, err)
	s := subject()
	measure(mgr, s, 5)
	assert.False(t, p.HasPredicate())
	assert.False(t, p.IsPresent(s, -1))
	assert.False(t, p.IsPresent(s, 42), "unknown assessment")
}

func TestNewRejects(t *testing.T) {
	mgr := catalog(t)
	_, err := New(-1, Info{}, nil, nil, mgr)
	assert.Error(t, err)
	_, err = New(1, Info{}, []int{99}, nil, mgr)
	assert.ErrorIs(t, err, ErrUnknownMetric)
}

func TestCriteria(t *testing.T) {
	mgr := catalog(t)
	s := subject()
	measure(mgr, s, 5, 7, 9)

	tests := []struct {
		name string
		doc  string
		want bool
	}{
		{"zscore above", "metric: 5\nfield: zscore\nabove: 2", true},
		{"zscore not above", "metric: 5\nfield: zscore\nabove: 3", false},
		{"value range", "metric: 7\natLeast: 3\natMost: 3", true},
		{"mean", "metric: 5\nfield: mean\nbelow: 10.5", true},
		{"both sides", "metric: 9\nboth: true\nabove: 19", true},
		{"both sides one fails", "metric: 9\nboth: true\nabove: 20.5", false},
		{"left only", "metric: 9\nregion: left\nbelow: 20.5", true},
		{"right only", "metric: 9\nregion: right\nbelow: 20.5", false},
		{"all", "all:\n  - metric: 5\n    above: 14\n  - age: {min: 5, max: 10}", true},
		{"all with age outside", "all:\n  - metric: 5\n    above: 14\n  - age: {max: 8}", false},
		{"any", "any:\n  - metric: 5\n    above: 100\n  - metric: 7\n    below: 4", true},
		{"not", "not:\n  metric: 5\n  above: 100", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var c Criterion
			require.NoError(t, yaml.Unmarshal([]byte(tt.doc), &c))
			pred, ids, err := c.Compile()
			require.NoError(t, err)

			p, err := New(1, Info{}, ids, pred, mgr)
			require.NoError(t, err)
			p.SetLogger(quiet)
			assert.Equal(t, tt.want, p.IsPresent(s, -1))
		})
	}
}

func TestCriteriaEvaluationErrors(t *testing.T) {
	mgr := catalog(t)
	s := subject()
	measure(mgr, s, 5, 7)
	a := s.Current()

	tests := map[string]string{
		"dimension out of range": "metric: 5\ndim: 2\nabove: 0",
		"undefined zscore":       "metric: 7\nfield: zscore\nabove: 0",
		"not measured":           "metric: 9\nregion: left\nabove: 0",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			var c Criterion
			require.NoError(t, yaml.Unmarshal([]byte(doc), &c))
			pred, _, err := c.Compile()
			require.NoError(t, err)
			_, err = pred.Determine(8, a.Metrics(models.Mid), a.Metrics(models.Left), a.Metrics(models.Right))
			assert.ErrorIs(t, err, ErrEvaluation)
		})
	}
}

func TestCriteriaCompileErrors(t *testing.T) {
	tests := map[string]string{
		"empty":           "{}",
		"two kinds":       "metric: 5\nabove: 1\nage: {min: 1}",
		"no comparison":   "metric: 5",
		"bad field":       "metric: 5\nfield: median\nabove: 1",
		"bad region":      "metric: 5\nregion: top\nabove: 1",
		"negative dim":    "metric: 5\ndim: -1\nabove: 1",
		"empty all":       "all: []",
		"empty age":       "age: {}",
		"bad nested rule": "any:\n  - metric: 5",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			var c Criterion
			require.NoError(t, yaml.Unmarshal([]byte(doc), &c))
			_, _, err := c.Compile()
			assert.Error(t, err)
		})
	}
}

func TestDemographicMatch(t *testing.T) {
	mgr := catalog(t)
	p, err := New(1, Info{}, []int{5}, nil, mgr)
	require.NoError(t, err)

	s := subject()
	assert.True(t, p.IsDemographicMatch(s))
	assert.True(t, p.IsSexMatch(models.Male), "growth data covers both sexes")
	assert.False(t, p.IsSexMatch(models.UnknownSex))
	assert.True(t, p.IsAgeMatch(19.5))
	assert.False(t, p.IsAgeMatch(20))
	assert.True(t, p.IsEthnicityMatch(2110))
	assert.False(t, p.IsEthnicityMatch(3000))

	s.SetPaternalEthnicity(3000)
	assert.False(t, p.IsDemographicMatch(s))

	s.SetAge(30)
	assert.False(t, p.IsDemographicMatch(s))
	assert.False(t, p.IsEthnicityMatch(2110), "no growth data selected")

	// Metric 7 has no growth data at all.
	q, err := New(2, Info{}, []int{7}, nil, mgr)
	require.NoError(t, err)
	s.SetAge(8)
	assert.False(t, q.IsDemographicMatch(s))
}

const hypertelorism = `
id: 316
name: Hypertelorism
region: Eyes
synonyms: [Widely spaced eyes]
metrics: [5]
determine:
  all:
    - metric: 5
      field: zscore
      above: 2
    - metric: 7
      below: 10
`

func TestManager(t *testing.T) {
	dir := t.TempDir()
	write := func(name, body string) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
	}
	write("hp316.yaml", hypertelorism)
	write("hp318.yaml", "id: 318\nname: Hypotelorism\nregion: Eyes\nmetrics: [5]\ndetermine:\n  metric: 5\n  field: zscore\n  below: -2\n")
	write("hp999.yaml", "id: 999\nname: Bad\nmetrics: [404]\n")
	write("zdup.yaml", "id: 316\nname: Again\n")
	write("broken.yml", "id: [\n")
	write("hp400.yaml", "id: 400\nname: Asymmetry\nregion: Face\nmetrics: [9]\n")

	metrics := catalog(t)
	mgr := NewManager(metrics, quiet)
	n, err := mgr.LoadDir(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, []int{316, 318, 400}, mgr.IDs())
	assert.Equal(t, []string{"Asymmetry", "Hypertelorism", "Hypotelorism"}, mgr.Names())
	assert.Equal(t, map[string][]int{"Eyes": {316, 318}, "Face": {400}}, mgr.ByRegion())
	assert.Equal(t, []int{316, 318}, mgr.MetricPhenotypes(5))
	assert.Equal(t, []int{316}, mgr.MetricPhenotypes(7))
	assert.Nil(t, mgr.Phenotype(1))

	p := mgr.Phenotype(316)
	assert.Equal(t, "HP:0000316", p.FormattedID())
	assert.Equal(t, "5,7", p.MetricsList())
	assert.Equal(t, []string{"Widely spaced eyes"}, p.Synonyms())

	s := subject()
	measure(metrics, s, 5, 7, 9)
	assert.Equal(t, []int{316}, mgr.Discover(s, -1))
	assert.Equal(t, []int{316}, mgr.Discover(s, 0))

	_, err = mgr.Load(filepath.Join(dir, "hp316.yaml"))
	assert.ErrorIs(t, err, ErrDuplicateID)
}
