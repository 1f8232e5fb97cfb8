package geometry

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
	"gonum.org/v1/gonum/stat"
)

// Frame orients a face in model space. Normal points out of the face towards
// the viewer and Up points towards the top of the head. The subject's left
// lies along Up × Normal.
type Frame struct {
	Origin r3.Vec
	Normal r3.Vec
	Up     r3.Vec
}

// DefaultFrame faces +Z with +Y up, centred on the origin.
func DefaultFrame() Frame {
	return Frame{Normal: r3.Vec{Z: 1}, Up: r3.Vec{Y: 1}}
}

// Valid reports whether Normal and Up are non-zero and not parallel.
func (f Frame) Valid() bool {
	if !finite(f.Origin) || !finite(f.Normal) || !finite(f.Up) {
		return false
	}
	return r3.Norm(r3.Cross(f.Up, f.Normal)) > 1e-9
}

// Lateral returns the unit vector towards the subject's left.
func (f Frame) Lateral() r3.Vec {
	return r3.Unit(r3.Cross(f.Up, f.Normal))
}

// LateralOffset returns the signed distance of p from the midsagittal plane.
// Positive values lie on the subject's left.
func (f Frame) LateralOffset(p r3.Vec) float64 {
	return r3.Dot(r3.Sub(p, f.Origin), f.Lateral())
}

// PlaneNormal returns the normal of the measurement plane: the facial normal
// for frontal measurements and the lateral axis for lateral ones.
func (f Frame) PlaneNormal(lateral bool) r3.Vec {
	if lateral {
		return f.Lateral()
	}
	return r3.Unit(f.Normal)
}

// ErrTooFewPoints is returned when a plane cannot be fitted.
var ErrTooFewPoints = errors.New("at least 3 non-collinear points are required")

// FitMidline fits the midsagittal plane through the given midline points and
// returns a frame whose lateral axis is the plane normal. The hint frame
// decides the orientation of the result: the new lateral axis points the
// same way as the hint's, and Up is the hint's Up made orthogonal to it.
func FitMidline(pts []r3.Vec, hint Frame) (Frame, error) {
	n := len(pts)
	if n < 3 {
		return Frame{}, ErrTooFewPoints
	}

	xs := make([]float64, n)
	ys := make([]float64, n)
	zs := make([]float64, n)
	for i, p := range pts {
		xs[i], ys[i], zs[i] = p.X, p.Y, p.Z
	}
	centroid := r3.Vec{X: stat.Mean(xs, nil), Y: stat.Mean(ys, nil), Z: stat.Mean(zs, nil)}

	centred := mat.NewDense(n, 3, nil)
	for i, p := range pts {
		d := r3.Sub(p, centroid)
		centred.SetRow(i, []float64{d.X, d.Y, d.Z})
	}

	var svd mat.SVD
	if ok := svd.Factorize(centred, mat.SVDThin); !ok {
		return Frame{}, errors.New("midline plane factorization failed")
	}
	values := svd.Values(nil)
	// The two largest singular values span the plane; collinear points
	// leave the second one at zero.
	if len(values) < 3 || values[1] < 1e-9 {
		return Frame{}, ErrTooFewPoints
	}

	var v mat.Dense
	svd.VTo(&v)
	lateral := r3.Unit(r3.Vec{X: v.At(0, 2), Y: v.At(1, 2), Z: v.At(2, 2)})
	if hint.Valid() && r3.Dot(lateral, hint.Lateral()) < 0 {
		lateral = r3.Scale(-1, lateral)
	}

	up := r3.Vec{Y: 1}
	if hint.Valid() {
		up = hint.Up
	}
	up = r3.Sub(up, r3.Scale(r3.Dot(up, lateral), lateral))
	if r3.Norm(up) < 1e-9 {
		return Frame{}, errors.New("up direction lies along the fitted lateral axis")
	}
	up = r3.Unit(up)

	return Frame{
		Origin: centroid,
		Normal: r3.Unit(r3.Cross(lateral, up)),
		Up:     up,
	}, nil
}

// Project returns p projected onto the plane through origin with the given
// normal.
func Project(p, origin, normal r3.Vec) r3.Vec {
	n := r3.Unit(normal)
	return r3.Sub(p, r3.Scale(r3.Dot(r3.Sub(p, origin), n), n))
}

// Centroid returns the mean position of pts.
func Centroid(pts []r3.Vec) r3.Vec {
	var c r3.Vec
	if len(pts) == 0 {
		return c
	}
	for _, p := range pts {
		c = r3.Add(c, p)
	}
	return r3.Scale(1/float64(len(pts)), c)
}

// nearlyZero guards divisions in the measurement primitives.
func nearlyZero(v float64) bool { return math.Abs(v) < 1e-12 }
