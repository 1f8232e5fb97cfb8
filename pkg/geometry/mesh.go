package geometry

import (
	"errors"
	"math"
	"sync"

	"gonum.org/v1/gonum/spatial/kdtree"
	"gonum.org/v1/gonum/spatial/r3"
)

// ErrUnusableMesh is returned by surface queries against a mesh that has no
// valid triangles.
var ErrUnusableMesh = errors.New("mesh has no usable surface")

// Mesh is a triangulated face surface.
//
// The vertex index used for nearest-surface queries is built lazily on first
// use and kept for the lifetime of the mesh. A mesh must not be modified after
// it has been queried; replace it with a new Mesh instead.
type Mesh struct {
	// Vertices holds the 3D vertex positions
	Vertices []r3.Vec

	// Faces holds vertex index triples, one per triangle
	Faces [][3]int

	once sync.Once
	tree *kdtree.Tree
}

// NewMesh creates a mesh from vertex positions and triangles.
func NewMesh(vertices []r3.Vec, faces [][3]int) *Mesh {
	return &Mesh{Vertices: vertices, Faces: faces}
}

// Usable reports whether the mesh has at least one triangle, every face index
// refers to an existing vertex and all vertices are finite.
func (m *Mesh) Usable() bool {
	if m == nil || len(m.Faces) == 0 || len(m.Vertices) < 3 {
		return false
	}
	for _, f := range m.Faces {
		for _, vi := range f {
			if vi < 0 || vi >= len(m.Vertices) {
				return false
			}
		}
	}
	for _, v := range m.Vertices {
		if !finite(v) {
			return false
		}
	}
	return true
}

// Nearest returns the mesh vertex closest to p and its Euclidean distance.
func (m *Mesh) Nearest(p r3.Vec) (r3.Vec, float64, error) {
	if !m.Usable() {
		return r3.Vec{}, 0, ErrUnusableMesh
	}
	m.once.Do(m.buildIndex)

	c, d2 := m.tree.Nearest(point(p))
	if c == nil {
		return r3.Vec{}, 0, ErrUnusableMesh
	}
	return r3.Vec(c.(point)), math.Sqrt(d2), nil
}

// buildIndex creates the KD-tree over a copy of the vertices, since
// kdtree.New reorders its input.
func (m *Mesh) buildIndex() {
	pts := make(points, len(m.Vertices))
	for i, v := range m.Vertices {
		pts[i] = point(v)
	}
	m.tree = kdtree.New(pts, false)
}

func finite(v r3.Vec) bool {
	for _, c := range []float64{v.X, v.Y, v.Z} {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return false
		}
	}
	return true
}
