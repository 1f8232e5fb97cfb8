package report

import (
	"fmt"
	"io"
	"math"

	"gopkg.in/yaml.v3"

	"facemetrics/internal/models"
	"facemetrics/pkg/metric"
)

type exportFile struct {
	Assessments []exportAssessment `yaml:"assessments"`
}

type exportAssessment struct {
	ID           int           `yaml:"id"`
	Frontal      []exportValue `yaml:"frontal,omitempty"`
	LeftLateral  []exportValue `yaml:"leftLateral,omitempty"`
	RightLateral []exportValue `yaml:"rightLateral,omitempty"`
}

func (e *exportAssessment) group(r models.Region) *[]exportValue {
	switch r {
	case models.Left:
		return &e.LeftLateral
	case models.Right:
		return &e.RightLateral
	default:
		return &e.Frontal
	}
}

type exportValue struct {
	ID     int         `yaml:"id"`
	Source string      `yaml:"source,omitempty"`
	Dims   []exportDim `yaml:"dims"`
}

// Undefined statistics are omitted.
type exportDim struct {
	Value  float64  `yaml:"value"`
	Mean   *float64 `yaml:"mean,omitempty"`
	ZScore *float64 `yaml:"zscore,omitempty"`
}

func defined(x float64) *float64 {
	if math.IsNaN(x) {
		return nil
	}
	return &x
}

func orNaN(x *float64) float64 {
	if x == nil {
		return math.NaN()
	}
	return *x
}

// Export writes the metric values of every assessment of s as YAML, grouped
// by region.
func Export(w io.Writer, s metric.Subject) error {
	var doc exportFile
	for _, a := range s.Assessments() {
		ea := exportAssessment{ID: a.ID()}
		for _, r := range models.Regions {
			g := ea.group(r)
			for _, v := range a.Metrics(r).Values() {
				ev := exportValue{ID: v.ID(), Source: v.Source()}
				for _, d := range v.Dims() {
					ev.Dims = append(ev.Dims, exportDim{Value: d.Value, Mean: defined(d.Mean), ZScore: defined(d.ZScore)})
				}
				*g = append(*g, ev)
			}
		}
		doc.Assessments = append(doc.Assessments, ea)
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(&doc); err != nil {
		return fmt.Errorf("error encoding metrics: %w", err)
	}
	return enc.Close()
}

// Import reads values written by Export into the matching assessments of s
// and returns how many values changed. Assessments are matched by id; an
// id not on s is an error and nothing after it is imported.
func Import(r io.Reader, s metric.Subject) (int, error) {
	var doc exportFile
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		return 0, fmt.Errorf("error decoding metrics: %w", err)
	}

	byID := map[int]metric.Assessment{}
	for _, a := range s.Assessments() {
		byID[a.ID()] = a
	}

	n := 0
	for _, ea := range doc.Assessments {
		a, ok := byID[ea.ID]
		if !ok {
			return n, fmt.Errorf("%w: %d", ErrNoAssessment, ea.ID)
		}
		for _, region := range models.Regions {
			for _, ev := range *ea.group(region) {
				dims := make([]metric.Dim, len(ev.Dims))
				for i, d := range ev.Dims {
					dims[i] = metric.Dim{Value: d.Value, Mean: orNaN(d.Mean), ZScore: orNaN(d.ZScore)}
				}
				if a.Metrics(region).Put(metric.NewValue(ev.ID, dims...).WithSource(ev.Source)) {
					a.MetricChanged(region, ev.ID)
					n++
				}
			}
		}
	}
	return n, nil
}
