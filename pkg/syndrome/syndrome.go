// Package syndrome indexes genetic syndromes by the phenotypes and genes
// associated with them.
package syndrome

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Gene associated with a syndrome
type Gene struct {
	ID   int    `yaml:"id"`
	Code string `yaml:"code"`
}

// Syndrome is a named syndrome with its HPO terms and genes
type Syndrome struct {
	ID    int    `yaml:"id"`
	Code  string `yaml:"code"`
	Name  string `yaml:"name"`
	HPO   []int  `yaml:"hpo,omitempty"`
	Genes []Gene `yaml:"genes,omitempty"`
}

// Match is a syndrome sharing phenotypes with a set of findings.
type Match struct {
	Syndrome *Syndrome
	Shared   []int // HPO ids in common, ascending
}

// Manager is a read-only index of syndromes.
type Manager struct {
	syns   map[int]*Syndrome
	byName map[string]int
	byHPO  map[int][]int
	byGene map[int][]int
}

// NewManager indexes syns. Ids must be unique.
func NewManager(syns []Syndrome) (*Manager, error) {
	m := &Manager{
		syns:   make(map[int]*Syndrome, len(syns)),
		byName: make(map[string]int, len(syns)),
		byHPO:  map[int][]int{},
		byGene: map[int][]int{},
	}
	for i := range syns {
		s := syns[i]
		if _, ok := m.syns[s.ID]; ok {
			return nil, fmt.Errorf("duplicate syndrome id %d", s.ID)
		}
		m.syns[s.ID] = &s
		m.byName[strings.ToLower(s.Name)] = s.ID
		for _, h := range unique(s.HPO) {
			m.byHPO[h] = append(m.byHPO[h], s.ID)
		}
		geneIDs := make([]int, len(s.Genes))
		for j, g := range s.Genes {
			geneIDs[j] = g.ID
		}
		for _, g := range unique(geneIDs) {
			m.byGene[g] = append(m.byGene[g], s.ID)
		}
	}
	for _, ids := range m.byHPO {
		sort.Ints(ids)
	}
	for _, ids := range m.byGene {
		sort.Ints(ids)
	}
	return m, nil
}

func unique(ids []int) []int {
	seen := map[int]bool{}
	var out []int
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

type document struct {
	Syndromes []Syndrome `yaml:"syndromes"`
}

// Load reads a syndrome file with a top-level "syndromes" list.
func Load(path string) (*Manager, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading syndromes file: %w", err)
	}
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("error parsing syndromes file: %w", err)
	}
	return NewManager(doc.Syndromes)
}

// Save writes every syndrome to path ordered by id.
func (m *Manager) Save(path string) error {
	doc := document{}
	for _, id := range m.IDs() {
		doc.Syndromes = append(doc.Syndromes, *m.syns[id])
	}
	data, err := yaml.Marshal(&doc)
	if err != nil {
		return fmt.Errorf("error marshaling syndromes: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("error writing syndromes file: %w", err)
	}
	return nil
}

// Len returns the number of syndromes
func (m *Manager) Len() int { return len(m.syns) }

// Syndrome returns the syndrome with id, or nil.
func (m *Manager) Syndrome(id int) *Syndrome { return m.syns[id] }

// ByName returns the syndrome with the given case-insensitive name, or nil.
func (m *Manager) ByName(name string) *Syndrome {
	id, ok := m.byName[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil
	}
	return m.syns[id]
}

// IDs returns the syndrome ids in ascending order.
func (m *Manager) IDs() []int {
	ids := make([]int, 0, len(m.syns))
	for id := range m.syns {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// Names returns the syndrome names sorted alphabetically.
func (m *Manager) Names() []string {
	return m.sorted(func(s *Syndrome) string { return s.Name })
}

// Codes returns the syndrome codes sorted alphabetically.
func (m *Manager) Codes() []string {
	return m.sorted(func(s *Syndrome) string { return s.Code })
}

func (m *Manager) sorted(field func(*Syndrome) string) []string {
	out := make([]string, 0, len(m.syns))
	for _, s := range m.syns {
		out = append(out, field(s))
	}
	sort.Strings(out)
	return out
}

// HPOSyndromes returns the ids of syndromes associated with an HPO term.
func (m *Manager) HPOSyndromes(hpo int) []int {
	return append([]int(nil), m.byHPO[hpo]...)
}

// GeneSyndromes returns the ids of syndromes associated with a gene.
func (m *Manager) GeneSyndromes(gene int) []int {
	return append([]int(nil), m.byGene[gene]...)
}

// ForPhenotypes returns the syndromes sharing at least one HPO term with
// hpos, most shared terms first and ties by id.
func (m *Manager) ForPhenotypes(hpos []int) []Match {
	shared := map[int][]int{}
	for _, h := range unique(hpos) {
		for _, sid := range m.byHPO[h] {
			shared[sid] = append(shared[sid], h)
		}
	}
	out := make([]Match, 0, len(shared))
	for sid, hs := range shared {
		sort.Ints(hs)
		out = append(out, Match{Syndrome: m.syns[sid], Shared: hs})
	}
	sort.Slice(out, func(i, j int) bool {
		if len(out[i].Shared) != len(out[j].Shared) {
			return len(out[i].Shared) > len(out[j].Shared)
		}
		return out[i].Syndrome.ID < out[j].Syndrome.ID
	})
	return out
}
