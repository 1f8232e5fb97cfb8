// Package ethnicity holds the hierarchy of ethnicity codes used to decide
// whether reference data collected for one population applies to a subject.
package ethnicity

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Any is the code for unspecified ethnicity. It contains every other code.
const Any = 0

// Group is a single named ethnicity code
type Group struct {
	Code   int    `yaml:"code"`
	Name   string `yaml:"name"`
	Parent int    `yaml:"parent"`
}

// Registry resolves codes, names and the parent relation between codes.
// It is read-only after loading.
type Registry struct {
	groups map[int]Group
	byName map[string]int
}

// NewRegistry creates a registry from the given groups. A group whose parent
// is not registered is attached to Any.
func NewRegistry(groups []Group) (*Registry, error) {
	r := &Registry{
		groups: make(map[int]Group, len(groups)),
		byName: make(map[string]int, len(groups)),
	}
	for _, g := range groups {
		if g.Code == Any {
			return nil, fmt.Errorf("code %d is reserved", Any)
		}
		if _, ok := r.groups[g.Code]; ok {
			return nil, fmt.Errorf("duplicate ethnicity code %d", g.Code)
		}
		r.groups[g.Code] = g
		r.byName[strings.ToLower(g.Name)] = g.Code
	}
	for code, g := range r.groups {
		if _, ok := r.groups[g.Parent]; !ok {
			g.Parent = Any
			r.groups[code] = g
		}
	}
	// Reject cycles so that ancestor walks terminate.
	for code := range r.groups {
		seen := map[int]bool{}
		for c := code; c != Any; c = r.groups[c].Parent {
			if seen[c] {
				return nil, fmt.Errorf("ethnicity code %d has a cyclic parent chain", code)
			}
			seen[c] = true
		}
	}
	return r, nil
}

// Load reads a registry from a YAML file with a top-level "groups" list.
func Load(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading ethnicities file: %w", err)
	}
	var doc struct {
		Groups []Group `yaml:"groups"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("error parsing ethnicities file: %w", err)
	}
	return NewRegistry(doc.Groups)
}

// Belongs reports whether code falls within group: group is Any, the same
// code, or an ancestor of code. A nil registry only knows exact matches.
func (r *Registry) Belongs(group, code int) bool {
	if group == Any || group == code {
		return true
	}
	if r == nil {
		return false
	}
	g, ok := r.groups[code]
	for ok && g.Parent != Any {
		if g.Parent == group {
			return true
		}
		g, ok = r.groups[g.Parent]
	}
	return false
}

// Name returns the name for code, or an empty string if unknown.
func (r *Registry) Name(code int) string {
	if r == nil {
		return ""
	}
	return r.groups[code].Name
}

// Code returns the code for a case-insensitive name.
func (r *Registry) Code(name string) (int, bool) {
	if r == nil {
		return Any, false
	}
	c, ok := r.byName[strings.ToLower(strings.TrimSpace(name))]
	return c, ok
}

// Codes returns every registered code in ascending order.
func (r *Registry) Codes() []int {
	if r == nil {
		return nil
	}
	codes := make([]int, 0, len(r.groups))
	for c := range r.groups {
		codes = append(codes, c)
	}
	sort.Ints(codes)
	return codes
}
