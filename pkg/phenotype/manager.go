package phenotype

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"facemetrics/pkg/metric"
)

// ErrDuplicateID is returned when a phenotype id is already registered.
var ErrDuplicateID = errors.New("duplicate phenotype id")

type definition struct {
	ID        *int       `yaml:"id"`
	Name      string     `yaml:"name"`
	Region    string     `yaml:"region"`
	Synonyms  []string   `yaml:"synonyms"`
	Refs      []string   `yaml:"refs"`
	OCrit     string     `yaml:"ocrit"`
	SCrit     string     `yaml:"scrit"`
	Remarks   string     `yaml:"remarks"`
	Metrics   []int      `yaml:"metrics"`
	Determine *Criterion `yaml:"determine"`
}

// Parse builds a phenotype from its YAML definition. Metrics referenced by
// the criteria are added to the dependencies.
func Parse(data []byte, catalog Catalog) (*Phenotype, error) {
	var def definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("error parsing phenotype: %w", err)
	}
	if def.ID == nil {
		return nil, fmt.Errorf("phenotype has no id")
	}

	ids := def.Metrics
	var pred Predicate
	if def.Determine != nil {
		tree, used, err := def.Determine.Compile()
		if err != nil {
			return nil, fmt.Errorf("phenotype %d: %w", *def.ID, err)
		}
		pred = tree
		ids = append(ids, used...)
	}

	return New(*def.ID, Info{
		Name:     def.Name,
		Region:   def.Region,
		Synonyms: def.Synonyms,
		Refs:     def.Refs,
		OCrit:    def.OCrit,
		SCrit:    def.SCrit,
		Remarks:  def.Remarks,
	}, ids, pred, catalog)
}

// Manager is the catalog of phenotypes. It is populated once and read-only
// afterwards.
type Manager struct {
	catalog    Catalog
	phenotypes map[int]*Phenotype
	logger     *log.Logger
}

// NewManager creates an empty catalog whose phenotypes resolve metrics
// through catalog.
func NewManager(catalog Catalog, logger *log.Logger) *Manager {
	if logger == nil {
		logger = log.Default()
	}
	return &Manager{catalog: catalog, phenotypes: make(map[int]*Phenotype), logger: logger}
}

// Add registers p. The first phenotype with a given id is kept.
func (mgr *Manager) Add(p *Phenotype) error {
	if _, ok := mgr.phenotypes[p.ID()]; ok {
		return fmt.Errorf("%w %d", ErrDuplicateID, p.ID())
	}
	p.SetLogger(mgr.logger)
	mgr.phenotypes[p.ID()] = p
	return nil
}

// Load parses the file at path and registers the phenotype.
func (mgr *Manager) Load(path string) (*Phenotype, error) {
	p, err := mgr.parseFile(path)
	if err != nil {
		return nil, err
	}
	if err := mgr.Add(p); err != nil {
		return nil, err
	}
	return p, nil
}

func (mgr *Manager) parseFile(path string) (*Phenotype, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading phenotype file: %w", err)
	}
	p, err := Parse(data, mgr.catalog)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}

// LoadDir loads every phenotype file in dir and returns how many were
// registered. Invalid files are logged and skipped.
func (mgr *Manager) LoadDir(ctx context.Context, dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("error reading phenotypes directory: %w", err)
	}
	var paths []string
	for _, e := range entries {
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if !e.IsDir() && (ext == ".yaml" || ext == ".yml") {
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(paths)

	parsed := make([]*Phenotype, len(paths))
	failed := make([]error, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	for i, path := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			parsed[i], failed[i] = mgr.parseFile(path)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	n := 0
	for i, p := range parsed {
		if failed[i] != nil {
			mgr.logger.Warn("skipping phenotype", "err", failed[i])
			continue
		}
		if err := mgr.Add(p); err != nil {
			mgr.logger.Warn("skipping phenotype", "path", paths[i], "err", err)
			continue
		}
		n++
	}
	mgr.logger.Debug("loaded phenotypes", "dir", dir, "count", n)
	return n, nil
}

// Phenotype returns the phenotype with id, or nil.
func (mgr *Manager) Phenotype(id int) *Phenotype { return mgr.phenotypes[id] }

// Len returns the number of phenotypes
func (mgr *Manager) Len() int { return len(mgr.phenotypes) }

// IDs returns the phenotype ids in ascending order.
func (mgr *Manager) IDs() []int {
	ids := make([]int, 0, len(mgr.phenotypes))
	for id := range mgr.phenotypes {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// Names returns the phenotype names sorted alphabetically.
func (mgr *Manager) Names() []string {
	names := make([]string, 0, len(mgr.phenotypes))
	for _, p := range mgr.phenotypes {
		names = append(names, p.Name())
	}
	sort.Strings(names)
	return names
}

// ByRegion groups phenotype ids by anatomical region.
func (mgr *Manager) ByRegion() map[string][]int {
	out := map[string][]int{}
	for _, id := range mgr.IDs() {
		r := mgr.phenotypes[id].Region()
		out[r] = append(out[r], id)
	}
	return out
}

// MetricPhenotypes returns the ids of phenotypes depending on metric mid.
func (mgr *Manager) MetricPhenotypes(mid int) []int {
	var out []int
	for _, id := range mgr.IDs() {
		for _, m := range mgr.phenotypes[id].metrics {
			if m == mid {
				out = append(out, id)
				break
			}
		}
	}
	return out
}

// Discover returns the ids of the phenotypes present in assessment aid of s
// (negative for the current assessment), in ascending order. Metrics must
// have been measured beforehand.
func (mgr *Manager) Discover(s metric.Subject, aid int) []int {
	var out []int
	for _, id := range mgr.IDs() {
		if mgr.phenotypes[id].IsPresent(s, aid) {
			out = append(out, id)
		}
	}
	return out
}
