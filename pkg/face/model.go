// Package face holds a subject: its surface, demographics and the
// assessments made on it.
package face

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/spatial/r3"

	"facemetrics/internal/models"
	"facemetrics/pkg/geometry"
	"facemetrics/pkg/metric"
)

// ErrNoAssessment is returned when an assessment id is not on the model.
var ErrNoAssessment = errors.New("no such assessment")

// MetricListener is called after a metric value of an assessment changed.
type MetricListener func(assessmentID int, r models.Region, metricID int)

// Model is a face with its assessments. The model's own fields are guarded
// by a lock; metric sets follow a single writer discipline and must only be
// mutated from the goroutine that measures.
type Model struct {
	mu sync.RWMutex

	id        uuid.UUID
	sex       models.Sex
	maternal  int
	paternal  int
	age       float64
	dob       time.Time
	captured  time.Time
	mesh      *geometry.Mesh
	frame     geometry.Frame
	ass       map[int]*Assessment
	current   int
	listeners []MetricListener
}

// New creates an empty model with a random id facing +Z.
func New() *Model {
	return &Model{
		id:      uuid.New(),
		frame:   geometry.DefaultFrame(),
		ass:     make(map[int]*Assessment),
		current: -1,
	}
}

// ID returns the model's unique id
func (m *Model) ID() uuid.UUID {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.id
}

// SetID replaces the model's id
func (m *Model) SetID(id uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.id = id
}

func (m *Model) SetSex(s models.Sex) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sex = s
}

func (m *Model) SetMaternalEthnicity(code int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.maternal = code
}

func (m *Model) SetPaternalEthnicity(code int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.paternal = code
}

// SetAge sets the age in years at capture.
func (m *Model) SetAge(years float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.age = years
}

// SetDates records the date of birth and capture date and derives the age
// from them.
func (m *Model) SetDates(dob, captured time.Time) error {
	if captured.Before(dob) {
		return fmt.Errorf("capture date %s precedes date of birth %s", captured.Format(time.DateOnly), dob.Format(time.DateOnly))
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dob, m.captured = dob, captured
	m.age = captured.Sub(dob).Hours() / (24 * 365.25)
	return nil
}

// Dates returns the date of birth and capture date, zero when unset.
func (m *Model) Dates() (dob, captured time.Time) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.dob, m.captured
}

// Demographic returns the values used to select growth data.
func (m *Model) Demographic() models.Demographic {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return models.Demographic{
		Sex:               m.sex,
		MaternalEthnicity: m.maternal,
		PaternalEthnicity: m.paternal,
		Age:               m.age,
	}
}

// SetMesh replaces the surface
func (m *Model) SetMesh(mesh *geometry.Mesh) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mesh = mesh
}

// Mesh returns the surface, which may be nil.
func (m *Model) Mesh() *geometry.Mesh {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.mesh
}

func (m *Model) SetFrame(f geometry.Frame) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.frame = f
}

func (m *Model) Frame() geometry.Frame {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.frame
}

// OnMetricChanged registers fn to be called whenever a stored metric value
// changes on any assessment.
func (m *Model) OnMetricChanged(fn MetricListener) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, fn)
}

func (m *Model) notify(aid int, r models.Region, mid int) {
	m.mu.RLock()
	ls := append([]MetricListener(nil), m.listeners...)
	m.mu.RUnlock()
	for _, fn := range ls {
		fn(aid, r, mid)
	}
}

// NewAssessment adds an empty assessment with the next free id. The first
// assessment becomes current.
func (m *Model) NewAssessment(assessor string) *Assessment {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := 0
	for existing := range m.ass {
		if existing >= id {
			id = existing + 1
		}
	}
	a := newAssessment(id, m)
	a.assessor = assessor
	m.add(a)
	return a
}

// AddAssessment adds a to the model. The first assessment becomes current.
func (m *Model) AddAssessment(a *Assessment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.ass[a.id]; ok {
		return fmt.Errorf("assessment %d already exists", a.id)
	}
	a.model = m
	m.add(a)
	return nil
}

func (m *Model) add(a *Assessment) {
	m.ass[a.id] = a
	if m.current < 0 {
		m.current = a.id
	}
}

// RemoveAssessment removes assessment id. When it was current, the
// assessment with the lowest remaining id becomes current.
func (m *Model) RemoveAssessment(id int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.ass[id]; !ok {
		return false
	}
	delete(m.ass, id)
	if m.current == id {
		m.current = -1
		if ids := m.sortedIDs(); len(ids) > 0 {
			m.current = ids[0]
		}
	}
	return true
}

// SetCurrentAssessment makes assessment id current.
func (m *Model) SetCurrentAssessment(id int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.ass[id]; !ok {
		return fmt.Errorf("%w %d", ErrNoAssessment, id)
	}
	m.current = id
	return nil
}

// Assessment returns assessment id, or nil.
func (m *Model) Assessment(id int) *Assessment {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.ass[id]
}

// Current returns the current assessment, or nil when there is none.
func (m *Model) Current() *Assessment {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.ass[m.current]
}

// CurrentAssessment implements metric.Subject.
func (m *Model) CurrentAssessment() metric.Assessment {
	if a := m.Current(); a != nil {
		return a
	}
	return nil
}

// Assessments returns every assessment ordered by id.
func (m *Model) Assessments() []metric.Assessment {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := m.sortedIDs()
	out := make([]metric.Assessment, len(ids))
	for i, id := range ids {
		out[i] = m.ass[id]
	}
	return out
}

// AssessmentIDs returns the assessment ids in ascending order.
func (m *Model) AssessmentIDs() []int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sortedIDs()
}

func (m *Model) sortedIDs() []int {
	ids := make([]int, 0, len(m.ass))
	for id := range m.ass {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// Landmarks returns a copy of the current assessment's landmarks.
func (m *Model) Landmarks() map[int]r3.Vec {
	a := m.Current()
	if a == nil {
		return map[int]r3.Vec{}
	}
	return a.Landmarks()
}

var _ metric.Subject = (*Model)(nil)
