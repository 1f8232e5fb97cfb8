package metric

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"facemetrics/internal/models"
	"facemetrics/pkg/growth"
)

// ErrInvalidDefinition is wrapped by every metric definition error.
var ErrInvalidDefinition = errors.New("invalid metric definition")

// definition is the YAML form of a metric file
type definition struct {
	ID           *int         `yaml:"id"`
	Name         string       `yaml:"name"`
	Description  string       `yaml:"description"`
	Region       string       `yaml:"region"`
	Category     string       `yaml:"category"`
	Units        string       `yaml:"units"`
	Decimals     int          `yaml:"decimals"`
	Type         string       `yaml:"type"`
	Bilateral    bool         `yaml:"bilateral"`
	InPlane      bool         `yaml:"inPlane"`
	FixedInPlane bool         `yaml:"fixedInPlane"`
	Visible      *bool        `yaml:"visible"`
	Remarks      string       `yaml:"remarks"`
	Landmarks    []int        `yaml:"landmarks"`
	Samples      int          `yaml:"samples"`
	GrowthData   []growthData `yaml:"growthData"`
}

type growthData struct {
	Sex       string         `yaml:"sex"`
	Ethnicity int            `yaml:"ethnicity"`
	AgeRange  []float64      `yaml:"ageRange"`
	InPlane   bool           `yaml:"inPlane"`
	Source    string         `yaml:"source"`
	Note      string         `yaml:"note"`
	LongNote  string         `yaml:"longNote"`
	Stats     [][][3]float64 `yaml:"stats"`
}

// Parse builds a metric from its YAML definition.
func Parse(data []byte, policy growth.Policy) (*Metric, error) {
	var def definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDefinition, err)
	}
	if def.ID == nil {
		return nil, fmt.Errorf("%w: missing id", ErrInvalidDefinition)
	}
	if *def.ID < 0 {
		return nil, fmt.Errorf("%w: negative id %d", ErrInvalidDefinition, *def.ID)
	}
	if def.Name == "" {
		return nil, fmt.Errorf("%w: metric %d has no name", ErrInvalidDefinition, *def.ID)
	}

	kind, err := ParseKind(def.Type)
	if err != nil {
		return nil, fmt.Errorf("%w: metric %d: %v", ErrInvalidDefinition, *def.ID, err)
	}
	typ, err := NewType(kind, def.Landmarks, def.Bilateral, def.Samples)
	if err != nil {
		return nil, fmt.Errorf("%w: metric %d: %v", ErrInvalidDefinition, *def.ID, err)
	}

	m := New(*def.ID, Info{
		Name:        def.Name,
		Description: def.Description,
		Region:      def.Region,
		Category:    def.Category,
		Units:       def.Units,
		Decimals:    def.Decimals,
		Remarks:     def.Remarks,
	}, typ, policy)
	if def.Visible != nil {
		m.visible = *def.Visible
	}
	if def.FixedInPlane {
		m.SetFixedInPlane(def.InPlane)
	} else {
		m.SetInPlane(def.InPlane)
	}

	gds := make([]*growth.GrowthData, 0, len(def.GrowthData))
	for i, raw := range def.GrowthData {
		gd, err := raw.build()
		if err != nil {
			return nil, fmt.Errorf("%w: metric %d growth data %d: %v", ErrInvalidDefinition, *def.ID, i, err)
		}
		if gd.Dims() != typ.Dims() {
			return nil, fmt.Errorf("%w: metric %d growth data %d has %d dimensions, want %d",
				ErrInvalidDefinition, *def.ID, i, gd.Dims(), typ.Dims())
		}
		gds = append(gds, gd)
	}
	m.ranker.Add(gds...)
	m.ranker.Add(pooled(gds)...)
	return m, nil
}

// Load reads and parses the metric file at path.
func Load(path string, policy growth.Policy) (*Metric, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading metric file: %w", err)
	}
	m, err := Parse(data, policy)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

func (g growthData) build() (*growth.GrowthData, error) {
	sex, err := models.ParseSex(g.Sex)
	if err != nil {
		return nil, err
	}
	if len(g.AgeRange) != 2 {
		return nil, fmt.Errorf("ageRange needs 2 values, got %d", len(g.AgeRange))
	}
	spec := growth.Spec{
		Sex:       sex,
		Ethnicity: g.Ethnicity,
		AgeMin:    g.AgeRange[0],
		AgeMax:    g.AgeRange[1],
		InPlane:   g.InPlane,
		Source:    g.Source,
		Note:      g.Note,
		LongNote:  g.LongNote,
		Stats:     make([][]growth.Sample, len(g.Stats)),
	}
	for d, rows := range g.Stats {
		for _, r := range rows {
			spec.Stats[d] = append(spec.Stats[d], growth.Sample{Age: r[0], Mean: r[1], SD: r[2]})
		}
	}
	return growth.New(spec)
}

// pooled synthesizes both-sexes data for every female and male pair that
// share ethnicity, age range and in-plane flag when the file does not
// already provide data for both sexes with those attributes.
func pooled(gds []*growth.GrowthData) []*growth.GrowthData {
	type key struct {
		eth      int
		min, max float64
		inPlane  bool
	}
	keyOf := func(gd *growth.GrowthData) key {
		return key{gd.Ethnicity(), gd.AgeMin(), gd.AgeMax(), gd.InPlane()}
	}

	both := map[key]bool{}
	males := map[key]*growth.GrowthData{}
	for _, gd := range gds {
		switch gd.Sex() {
		case models.BothSexes:
			both[keyOf(gd)] = true
		case models.Male:
			if _, ok := males[keyOf(gd)]; !ok {
				males[keyOf(gd)] = gd
			}
		}
	}

	var out []*growth.GrowthData
	for _, f := range gds {
		k := keyOf(f)
		if f.Sex() != models.Female || both[k] {
			continue
		}
		m, ok := males[k]
		if !ok {
			continue
		}
		gd, err := growth.PoolSexes(f, m)
		if err != nil {
			continue
		}
		both[k] = true
		out = append(out, gd)
	}
	return out
}
