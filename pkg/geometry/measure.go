package geometry

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// ErrDegenerate is returned when points coincide so that a measurement is
// undefined.
var ErrDegenerate = errors.New("degenerate geometry")

// Distance returns the Euclidean distance between a and b.
func Distance(a, b r3.Vec) float64 {
	return r3.Norm(r3.Sub(a, b))
}

// Angle returns the angle at vertex v formed by a and b, in degrees.
func Angle(a, v, b r3.Vec) (float64, error) {
	va := r3.Sub(a, v)
	vb := r3.Sub(b, v)
	na, nb := r3.Norm(va), r3.Norm(vb)
	if nearlyZero(na) || nearlyZero(nb) {
		return 0, ErrDegenerate
	}
	cos := r3.Dot(va, vb) / (na * nb)
	cos = math.Max(-1, math.Min(1, cos))
	return math.Acos(cos) * 180 / math.Pi, nil
}

// SegmentDepth samples the segment from a to b at evenly spaced points and
// returns the largest distance from a sample to its nearest mesh vertex.
// This measures how far the surface falls away beneath a line spanning two
// landmarks.
func SegmentDepth(m *Mesh, a, b r3.Vec, samples int) (float64, error) {
	if samples < 2 {
		return 0, fmt.Errorf("segment depth needs at least 2 samples, got %d", samples)
	}
	if nearlyZero(Distance(a, b)) {
		return 0, ErrDegenerate
	}

	step := r3.Sub(b, a)
	depth := 0.0
	for i := 0; i < samples; i++ {
		t := float64(i) / float64(samples-1)
		q := r3.Add(a, r3.Scale(t, step))
		_, d, err := m.Nearest(q)
		if err != nil {
			return 0, err
		}
		if d > depth {
			depth = d
		}
	}
	return depth, nil
}
