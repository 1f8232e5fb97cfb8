package phenotype

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"facemetrics/internal/models"
	"facemetrics/pkg/metric"
)

// Predicate decides whether a trait is present given the subject's age and
// the metric sets of one assessment.
type Predicate interface {
	Determine(age float64, mid, left, right *metric.Set) (bool, error)
}

// PredicateFunc adapts a function to a Predicate.
type PredicateFunc func(age float64, mid, left, right *metric.Set) (bool, error)

// Determine calls f
func (f PredicateFunc) Determine(age float64, mid, left, right *metric.Set) (bool, error) {
	return f(age, mid, left, right)
}

// ErrEvaluation is wrapped by errors raised while evaluating criteria.
var ErrEvaluation = errors.New("criteria evaluation failed")

// Criterion is the YAML form of a presence rule. Exactly one of All, Any,
// Not, Metric or Age is set.
type Criterion struct {
	All []Criterion `yaml:"all,omitempty"`
	Any []Criterion `yaml:"any,omitempty"`
	Not *Criterion  `yaml:"not,omitempty"`

	Metric  *int     `yaml:"metric,omitempty"`
	Region  string   `yaml:"region,omitempty"` // mid (default), left or right
	Both    bool     `yaml:"both,omitempty"`   // compare on left and right
	Dim     int      `yaml:"dim,omitempty"`
	Field   string   `yaml:"field,omitempty"` // value (default), zscore or mean
	Above   *float64 `yaml:"above,omitempty"`
	AtLeast *float64 `yaml:"atLeast,omitempty"`
	Below   *float64 `yaml:"below,omitempty"`
	AtMost  *float64 `yaml:"atMost,omitempty"`

	Age *AgeBounds `yaml:"age,omitempty"`
}

// AgeBounds limits a rule to ages in [Min, Max).
type AgeBounds struct {
	Min *float64 `yaml:"min,omitempty"`
	Max *float64 `yaml:"max,omitempty"`
}

// Compile validates c and returns the predicate it describes together with
// the metric ids it reads.
func (c Criterion) Compile() (Predicate, []int, error) {
	ids := map[int]bool{}
	n, err := c.compile(ids)
	if err != nil {
		return nil, nil, err
	}
	out := make([]int, 0, len(ids))
	for id := range ids {
		out = append(out, id)
	}
	return tree{n}, out, nil
}

type node interface {
	eval(age float64, sets [3]*metric.Set) (bool, error)
}

type tree struct{ root node }

func (t tree) Determine(age float64, mid, left, right *metric.Set) (bool, error) {
	return t.root.eval(age, [3]*metric.Set{models.Mid: mid, models.Left: left, models.Right: right})
}

func (c Criterion) compile(ids map[int]bool) (node, error) {
	kinds := 0
	for _, set := range []bool{c.All != nil, c.Any != nil, c.Not != nil, c.Metric != nil, c.Age != nil} {
		if set {
			kinds++
		}
	}
	if kinds != 1 {
		return nil, fmt.Errorf("criterion must have exactly one of all, any, not, metric or age")
	}

	switch {
	case c.All != nil, c.Any != nil:
		list := c.All
		if c.Any != nil {
			list = c.Any
		}
		if len(list) == 0 {
			return nil, fmt.Errorf("empty criteria list")
		}
		kids := make([]node, len(list))
		for i, k := range list {
			n, err := k.compile(ids)
			if err != nil {
				return nil, err
			}
			kids[i] = n
		}
		return group{all: c.All != nil, kids: kids}, nil

	case c.Not != nil:
		n, err := c.Not.compile(ids)
		if err != nil {
			return nil, err
		}
		return not{n}, nil

	case c.Age != nil:
		if c.Age.Min == nil && c.Age.Max == nil {
			return nil, fmt.Errorf("age criterion needs min or max")
		}
		return ageRange(*c.Age), nil
	}

	cmp := comparison{id: *c.Metric, dim: c.Dim, both: c.Both}
	if c.Dim < 0 {
		return nil, fmt.Errorf("metric %d: negative dimension %d", cmp.id, c.Dim)
	}
	if c.Region != "" {
		r, err := models.ParseRegion(c.Region)
		if err != nil {
			return nil, fmt.Errorf("metric %d: %w", cmp.id, err)
		}
		cmp.region = r
	}
	switch strings.ToLower(c.Field) {
	case "", "value":
		cmp.field = fieldValue
	case "zscore":
		cmp.field = fieldZScore
	case "mean":
		cmp.field = fieldMean
	default:
		return nil, fmt.Errorf("metric %d: unknown field %q", cmp.id, c.Field)
	}
	cmp.above, cmp.atLeast, cmp.below, cmp.atMost = c.Above, c.AtLeast, c.Below, c.AtMost
	if cmp.above == nil && cmp.atLeast == nil && cmp.below == nil && cmp.atMost == nil {
		return nil, fmt.Errorf("metric %d: no comparison given", cmp.id)
	}
	ids[cmp.id] = true
	return cmp, nil
}

type group struct {
	all  bool
	kids []node
}

func (g group) eval(age float64, sets [3]*metric.Set) (bool, error) {
	for _, k := range g.kids {
		ok, err := k.eval(age, sets)
		if err != nil {
			return false, err
		}
		if ok != g.all {
			return ok, nil
		}
	}
	return g.all, nil
}

type not struct{ n node }

func (n not) eval(age float64, sets [3]*metric.Set) (bool, error) {
	ok, err := n.n.eval(age, sets)
	return !ok, err
}

type ageRange AgeBounds

func (a ageRange) eval(age float64, _ [3]*metric.Set) (bool, error) {
	if a.Min != nil && age < *a.Min {
		return false, nil
	}
	if a.Max != nil && age >= *a.Max {
		return false, nil
	}
	return true, nil
}

type field int

const (
	fieldValue field = iota
	fieldZScore
	fieldMean
)

func (f field) String() string {
	return [...]string{"value", "zscore", "mean"}[f]
}

type comparison struct {
	id     int
	region models.Region
	both   bool
	dim    int
	field  field

	above, atLeast, below, atMost *float64
}

func (c comparison) eval(_ float64, sets [3]*metric.Set) (bool, error) {
	if !c.both {
		return c.holds(sets[c.region], c.region)
	}
	for _, r := range []models.Region{models.Left, models.Right} {
		ok, err := c.holds(sets[r], r)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

func (c comparison) holds(set *metric.Set, r models.Region) (bool, error) {
	v, ok := set.Metric(c.id)
	if !ok {
		return false, fmt.Errorf("%w: metric %d not measured in %s", ErrEvaluation, c.id, r)
	}
	if c.dim >= v.Ndims() {
		return false, fmt.Errorf("%w: metric %d has no dimension %d", ErrEvaluation, c.id, c.dim)
	}
	var x float64
	switch c.field {
	case fieldZScore:
		x = v.ZScore(c.dim)
	case fieldMean:
		x = v.Mean(c.dim)
	default:
		x = v.Value(c.dim)
	}
	if math.IsNaN(x) {
		return false, fmt.Errorf("%w: metric %d %s undefined in %s", ErrEvaluation, c.id, c.field, r)
	}
	switch {
	case c.above != nil && !(x > *c.above):
		return false, nil
	case c.atLeast != nil && !(x >= *c.atLeast):
		return false, nil
	case c.below != nil && !(x < *c.below):
		return false, nil
	case c.atMost != nil && !(x <= *c.atMost):
		return false, nil
	}
	return true, nil
}
