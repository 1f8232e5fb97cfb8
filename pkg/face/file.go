package face

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/spatial/r3"
	"gopkg.in/yaml.v3"

	"facemetrics/internal/models"
	"facemetrics/pkg/geometry"
	"facemetrics/pkg/stl"
)

// file is the YAML form of a subject
type file struct {
	ID                string           `yaml:"id,omitempty"`
	Sex               string           `yaml:"sex,omitempty"`
	MaternalEthnicity int              `yaml:"maternalEthnicity,omitempty"`
	PaternalEthnicity int              `yaml:"paternalEthnicity,omitempty"`
	Age               *float64         `yaml:"age,omitempty"`
	DateOfBirth       string           `yaml:"dateOfBirth,omitempty"`
	CaptureDate       string           `yaml:"captureDate,omitempty"`
	Frame             *frameFile       `yaml:"frame,omitempty"`
	Mesh              *meshFile        `yaml:"mesh,omitempty"`
	MeshFile          string           `yaml:"meshFile,omitempty"`
	Current           *int             `yaml:"current,omitempty"`
	Assessments       []assessmentFile `yaml:"assessments"`
}

type frameFile struct {
	Origin [3]float64 `yaml:"origin"`
	Normal [3]float64 `yaml:"normal"`
	Up     [3]float64 `yaml:"up"`
}

type meshFile struct {
	Vertices [][3]float64 `yaml:"vertices"`
	Faces    [][3]int     `yaml:"faces"`
}

type assessmentFile struct {
	ID        int                `yaml:"id"`
	Assessor  string             `yaml:"assessor,omitempty"`
	Notes     string             `yaml:"notes,omitempty"`
	Landmarks map[int][3]float64 `yaml:"landmarks"`
}

func vec(a [3]float64) r3.Vec { return r3.Vec{X: a[0], Y: a[1], Z: a[2]} }

// Load reads a subject file.
func Load(path string) (*Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading subject file: %w", err)
	}
	m, err := parse(data, filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// Parse builds a model from YAML. A relative meshFile is resolved against
// the working directory.
func Parse(data []byte) (*Model, error) {
	return parse(data, ".")
}

func parse(data []byte, dir string) (*Model, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("error parsing subject: %w", err)
	}

	m := New()
	if f.ID != "" {
		id, err := uuid.Parse(f.ID)
		if err != nil {
			return nil, fmt.Errorf("invalid subject id: %w", err)
		}
		m.SetID(id)
	}

	sex, err := models.ParseSex(f.Sex)
	if err != nil {
		return nil, err
	}
	if sex == models.BothSexes {
		return nil, fmt.Errorf("subject sex must be F, M or unknown")
	}
	m.SetSex(sex)
	m.SetMaternalEthnicity(f.MaternalEthnicity)
	m.SetPaternalEthnicity(f.PaternalEthnicity)

	if f.DateOfBirth != "" && f.CaptureDate != "" {
		dob, err := time.Parse(time.DateOnly, f.DateOfBirth)
		if err != nil {
			return nil, fmt.Errorf("invalid dateOfBirth: %w", err)
		}
		captured, err := time.Parse(time.DateOnly, f.CaptureDate)
		if err != nil {
			return nil, fmt.Errorf("invalid captureDate: %w", err)
		}
		if err := m.SetDates(dob, captured); err != nil {
			return nil, err
		}
	}
	if f.Age != nil {
		m.SetAge(*f.Age)
	}

	if f.Frame != nil {
		fr := geometry.Frame{Origin: vec(f.Frame.Origin), Normal: vec(f.Frame.Normal), Up: vec(f.Frame.Up)}
		if !fr.Valid() {
			return nil, fmt.Errorf("frame normal and up must be non-zero and not parallel")
		}
		m.SetFrame(fr)
	}

	if f.Mesh != nil && f.MeshFile != "" {
		return nil, fmt.Errorf("mesh and meshFile are mutually exclusive")
	}
	if f.MeshFile != "" {
		path := f.MeshFile
		if !filepath.IsAbs(path) {
			path = filepath.Join(dir, path)
		}
		tris, err := stl.Load(path)
		if err != nil {
			return nil, err
		}
		m.SetMesh(stl.ToMesh(tris))
	}
	if f.Mesh != nil {
		verts := make([]r3.Vec, len(f.Mesh.Vertices))
		for i, v := range f.Mesh.Vertices {
			verts[i] = vec(v)
		}
		m.SetMesh(geometry.NewMesh(verts, f.Mesh.Faces))
	}

	for _, af := range f.Assessments {
		a := NewAssessment(af.ID)
		a.SetAssessor(af.Assessor)
		a.SetNotes(af.Notes)
		for id, p := range af.Landmarks {
			a.SetLandmark(id, vec(p))
		}
		if err := m.AddAssessment(a); err != nil {
			return nil, err
		}
	}
	if f.Current != nil {
		if err := m.SetCurrentAssessment(*f.Current); err != nil {
			return nil, err
		}
	}
	return m, nil
}
