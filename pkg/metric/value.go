package metric

import (
	"math"
	"sort"
)

// Dim is one measured dimension of a metric value
type Dim struct {
	// Value is the raw measurement
	Value float64

	// Mean is the expected value from the selected growth data (NaN if none)
	Mean float64

	// ZScore is (Value - Mean) / SD against the selected growth data (NaN if none)
	ZScore float64
}

// Value is the measurement of one metric for one region of an assessment.
type Value struct {
	id     int
	dims   []Dim
	source string
}

// NewValue creates a value for metric id from its dimensions.
func NewValue(id int, dims ...Dim) Value {
	return Value{id: id, dims: append([]Dim(nil), dims...)}
}

// RawValue creates a value without reference statistics.
func RawValue(id int, raw ...float64) Value {
	dims := make([]Dim, len(raw))
	for i, v := range raw {
		dims[i] = Dim{Value: v, Mean: math.NaN(), ZScore: math.NaN()}
	}
	return Value{id: id, dims: dims}
}

// WithSource returns a copy of v citing the growth data its statistics
// were computed from.
func (v Value) WithSource(src string) Value {
	v.dims = append([]Dim(nil), v.dims...)
	v.source = src
	return v
}

// Source returns the cited growth data source, empty when the value has no
// reference statistics.
func (v Value) Source() string { return v.source }

// ID returns the metric id this value belongs to.
func (v Value) ID() int { return v.id }

// Ndims returns the number of dimensions.
func (v Value) Ndims() int { return len(v.dims) }

// Value returns the raw measurement of dimension d, or NaN if out of range.
func (v Value) Value(d int) float64 { return v.dim(d).Value }

// Mean returns the growth data mean of dimension d, or NaN.
func (v Value) Mean(d int) float64 { return v.dim(d).Mean }

// ZScore returns the z-score of dimension d, or NaN when undefined.
func (v Value) ZScore(d int) float64 { return v.dim(d).ZScore }

// HasZScore reports whether dimension d has a defined z-score.
func (v Value) HasZScore(d int) bool { return !math.IsNaN(v.ZScore(d)) }

// Dims returns a copy of the dimensions.
func (v Value) Dims() []Dim { return append([]Dim(nil), v.dims...) }

func (v Value) dim(d int) Dim {
	if d < 0 || d >= len(v.dims) {
		return Dim{Value: math.NaN(), Mean: math.NaN(), ZScore: math.NaN()}
	}
	return v.dims[d]
}

// Equal reports whether both values are bit-for-bit identical, so undefined
// statistics compare equal to each other.
func (v Value) Equal(o Value) bool {
	if v.id != o.id || v.source != o.source || len(v.dims) != len(o.dims) {
		return false
	}
	for i, a := range v.dims {
		b := o.dims[i]
		if math.Float64bits(a.Value) != math.Float64bits(b.Value) ||
			math.Float64bits(a.Mean) != math.Float64bits(b.Mean) ||
			math.Float64bits(a.ZScore) != math.Float64bits(b.ZScore) {
			return false
		}
	}
	return true
}

// Set maps metric ids to values for one region of one assessment.
// It is not safe for concurrent mutation; the owner serialises writers.
type Set struct {
	values map[int]Value
}

// NewSet creates an empty set
func NewSet() *Set {
	return &Set{values: make(map[int]Value)}
}

// Has reports whether id has a value
func (s *Set) Has(id int) bool {
	if s == nil {
		return false
	}
	_, ok := s.values[id]
	return ok
}

// Metric returns the value for id
func (s *Set) Metric(id int) (Value, bool) {
	if s == nil {
		return Value{}, false
	}
	v, ok := s.values[id]
	return v, ok
}

// Put stores v and reports whether the set changed.
func (s *Set) Put(v Value) bool {
	if old, ok := s.values[v.id]; ok && old.Equal(v) {
		return false
	}
	s.values[v.id] = v
	return true
}

// Remove deletes the value for id and reports whether one was present.
func (s *Set) Remove(id int) bool {
	if _, ok := s.values[id]; !ok {
		return false
	}
	delete(s.values, id)
	return true
}

// Clear removes every value
func (s *Set) Clear() {
	s.values = make(map[int]Value)
}

// Len returns the number of values
func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.values)
}

// IDs returns the metric ids in ascending order
func (s *Set) IDs() []int {
	if s == nil {
		return nil
	}
	ids := make([]int, 0, len(s.values))
	for id := range s.values {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// Values returns the values ordered by metric id
func (s *Set) Values() []Value {
	ids := s.IDs()
	vals := make([]Value, len(ids))
	for i, id := range ids {
		vals[i] = s.values[id]
	}
	return vals
}
