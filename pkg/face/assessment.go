package face

import (
	"sync"

	"gonum.org/v1/gonum/spatial/r3"

	"facemetrics/internal/models"
	"facemetrics/pkg/metric"
)

// Assessment is one placement of landmarks on a model with the metrics
// measured from it.
type Assessment struct {
	mu        sync.RWMutex
	id        int
	assessor  string
	notes     string
	landmarks map[int]r3.Vec
	sets      [3]*metric.Set
	model     *Model
}

// NewAssessment creates a detached assessment for adding with
// Model.AddAssessment.
func NewAssessment(id int) *Assessment {
	return newAssessment(id, nil)
}

func newAssessment(id int, m *Model) *Assessment {
	return &Assessment{
		id:        id,
		landmarks: make(map[int]r3.Vec),
		sets:      [3]*metric.Set{metric.NewSet(), metric.NewSet(), metric.NewSet()},
		model:     m,
	}
}

func (a *Assessment) ID() int { return a.id }

func (a *Assessment) Assessor() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.assessor
}

func (a *Assessment) SetAssessor(s string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.assessor = s
}

func (a *Assessment) Notes() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.notes
}

func (a *Assessment) SetNotes(s string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.notes = s
}

// SetLandmark places landmark id at p
func (a *Assessment) SetLandmark(id int, p r3.Vec) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.landmarks[id] = p
}

// RemoveLandmark deletes landmark id
func (a *Assessment) RemoveLandmark(id int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.landmarks, id)
}

// Landmark returns the position of landmark id
func (a *Assessment) Landmark(id int) (r3.Vec, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	p, ok := a.landmarks[id]
	return p, ok
}

// Landmarks returns a copy of every landmark position.
func (a *Assessment) Landmarks() map[int]r3.Vec {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make(map[int]r3.Vec, len(a.landmarks))
	for id, p := range a.landmarks {
		out[id] = p
	}
	return out
}

// Metrics returns the metric set of region r, or nil for an invalid region.
func (a *Assessment) Metrics(r models.Region) *metric.Set {
	if !r.Valid() {
		return nil
	}
	return a.sets[r]
}

// MetricChanged forwards the change to the model's listeners.
func (a *Assessment) MetricChanged(r models.Region, id int) {
	if a.model != nil {
		a.model.notify(a.id, r, id)
	}
}

var _ metric.Assessment = (*Assessment)(nil)
