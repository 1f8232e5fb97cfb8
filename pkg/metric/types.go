package metric

import (
	"errors"
	"fmt"
	"strings"

	"gonum.org/v1/gonum/spatial/r3"

	"facemetrics/pkg/geometry"
)

// ErrMissingLandmark is returned when a landmark a type depends on is absent.
var ErrMissingLandmark = errors.New("missing landmark")

// Kind names a measurement type
type Kind int

const (
	// Distance measures straight-line distances between landmark pairs
	Distance Kind = iota
	// Depth measures how far the surface falls below a landmark segment
	Depth
	// Angle measures the angle at a vertex landmark
	Angle
)

func (k Kind) String() string {
	switch k {
	case Distance:
		return "distance"
	case Depth:
		return "depth"
	case Angle:
		return "angle"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ParseKind reads the name returned by Kind.String.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "distance":
		return Distance, nil
	case "depth":
		return Depth, nil
	case "angle":
		return Angle, nil
	default:
		return Distance, fmt.Errorf("unknown metric type %q", s)
	}
}

// Plane is the plane in-plane measurements are projected onto
type Plane struct {
	Origin r3.Vec
	Normal r3.Vec
}

// Input is everything a type needs to compute raw values
type Input struct {
	// Landmarks maps landmark ids to positions
	Landmarks map[int]r3.Vec

	// Mesh is the face surface; only surface types read it
	Mesh *geometry.Mesh

	// Plane, when set, projects landmarks before measuring
	Plane *Plane
}

// Type computes the raw values of a metric. The set of implementations is
// closed: distance, depth and angle.
type Type interface {
	Kind() Kind
	Dims() int
	LandmarkIDs() []int
	Bilateral() bool
	// NeedsSurface reports whether Compute reads the mesh
	NeedsSurface() bool
	// Compute returns one raw value per dimension
	Compute(in Input) ([]float64, error)
}

type base struct {
	ids       []int
	bilateral bool
}

func (b base) LandmarkIDs() []int { return append([]int(nil), b.ids...) }
func (b base) Bilateral() bool    { return b.bilateral }

// positions resolves ids in order, projecting onto the input plane if set.
func (b base) positions(in Input, project bool) ([]r3.Vec, error) {
	pts := make([]r3.Vec, len(b.ids))
	for i, id := range b.ids {
		p, ok := in.Landmarks[id]
		if !ok {
			return nil, fmt.Errorf("%w %d", ErrMissingLandmark, id)
		}
		if project && in.Plane != nil {
			p = geometry.Project(p, in.Plane.Origin, in.Plane.Normal)
		}
		pts[i] = p
	}
	return pts, nil
}

// DistanceType measures the distance between each consecutive landmark pair,
// giving one dimension per pair.
type DistanceType struct{ base }

// NewDistance creates a distance type from landmark pairs.
func NewDistance(landmarks []int, bilateral bool) (*DistanceType, error) {
	if len(landmarks) < 2 || len(landmarks)%2 != 0 {
		return nil, fmt.Errorf("distance needs landmark pairs, got %d landmarks", len(landmarks))
	}
	return &DistanceType{base{ids: append([]int(nil), landmarks...), bilateral: bilateral}}, nil
}

func (t *DistanceType) Kind() Kind         { return Distance }
func (t *DistanceType) Dims() int          { return len(t.ids) / 2 }
func (t *DistanceType) NeedsSurface() bool { return false }

func (t *DistanceType) Compute(in Input) ([]float64, error) {
	pts, err := t.positions(in, true)
	if err != nil {
		return nil, err
	}
	vals := make([]float64, t.Dims())
	for i := range vals {
		vals[i] = geometry.Distance(pts[2*i], pts[2*i+1])
	}
	return vals, nil
}

// DepthType measures the largest gap between the segment joining two
// landmarks and the surface. Depth is always measured in 3D.
type DepthType struct {
	base
	samples int
}

// DefaultDepthSamples is used when a depth metric does not set its own.
const DefaultDepthSamples = 20

// NewDepth creates a depth type over the segment from a to b.
func NewDepth(a, b, samples int, bilateral bool) (*DepthType, error) {
	if samples == 0 {
		samples = DefaultDepthSamples
	}
	if samples < 2 {
		return nil, fmt.Errorf("depth needs at least 2 samples, got %d", samples)
	}
	return &DepthType{base: base{ids: []int{a, b}, bilateral: bilateral}, samples: samples}, nil
}

func (t *DepthType) Kind() Kind         { return Depth }
func (t *DepthType) Dims() int          { return 1 }
func (t *DepthType) NeedsSurface() bool { return true }

// Samples returns the number of points sampled along the segment.
func (t *DepthType) Samples() int { return t.samples }

func (t *DepthType) Compute(in Input) ([]float64, error) {
	pts, err := t.positions(in, false)
	if err != nil {
		return nil, err
	}
	d, err := geometry.SegmentDepth(in.Mesh, pts[0], pts[1], t.samples)
	if err != nil {
		return nil, err
	}
	return []float64{d}, nil
}

// AngleType measures the angle in degrees at the middle of three landmarks.
type AngleType struct{ base }

// NewAngle creates an angle type at vertex between a and b.
func NewAngle(a, vertex, b int, bilateral bool) (*AngleType, error) {
	return &AngleType{base{ids: []int{a, vertex, b}, bilateral: bilateral}}, nil
}

func (t *AngleType) Kind() Kind         { return Angle }
func (t *AngleType) Dims() int          { return 1 }
func (t *AngleType) NeedsSurface() bool { return false }

func (t *AngleType) Compute(in Input) ([]float64, error) {
	pts, err := t.positions(in, true)
	if err != nil {
		return nil, err
	}
	deg, err := geometry.Angle(pts[0], pts[1], pts[2])
	if err != nil {
		return nil, err
	}
	return []float64{deg}, nil
}

// NewType builds the type of kind k from a landmark list as written in a
// catalog file.
func NewType(k Kind, landmarks []int, bilateral bool, samples int) (Type, error) {
	switch k {
	case Distance:
		return NewDistance(landmarks, bilateral)
	case Depth:
		if len(landmarks) != 2 {
			return nil, fmt.Errorf("depth needs 2 landmarks, got %d", len(landmarks))
		}
		return NewDepth(landmarks[0], landmarks[1], samples, bilateral)
	case Angle:
		if len(landmarks) != 3 {
			return nil, fmt.Errorf("angle needs 3 landmarks, got %d", len(landmarks))
		}
		return NewAngle(landmarks[0], landmarks[1], landmarks[2], bilateral)
	default:
		return nil, fmt.Errorf("unknown metric kind %v", k)
	}
}
