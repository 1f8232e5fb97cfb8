package metric

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

	"facemetrics/pkg/growth"
)

// ErrDuplicateID is returned when a metric id is already registered.
var ErrDuplicateID = errors.New("duplicate metric id")

// PairsFile is the catalog file listing bilateral landmark pairs.
const PairsFile = "landmarks.yaml"

// Manager is the catalog of metrics, keyed by id. It is populated once and
// read-only afterwards.
type Manager struct {
	metrics map[int]*Metric
	pairs   Pairs
	policy  growth.Policy
	logger  *log.Logger
}

// NewManager creates an empty catalog. Metrics loaded through it rank growth
// data with policy.
func NewManager(policy growth.Policy, logger *log.Logger) *Manager {
	if logger == nil {
		logger = log.Default()
	}
	return &Manager{
		metrics: make(map[int]*Metric),
		pairs:   Pairs{},
		policy:  policy,
		logger:  logger,
	}
}

// Add registers m. The first metric with a given id is kept.
func (mgr *Manager) Add(m *Metric) error {
	if _, ok := mgr.metrics[m.ID()]; ok {
		return fmt.Errorf("%w %d", ErrDuplicateID, m.ID())
	}
	mgr.metrics[m.ID()] = m
	return nil
}

// Metric returns the metric with id, or nil.
func (mgr *Manager) Metric(id int) *Metric { return mgr.metrics[id] }

// Len returns the number of metrics
func (mgr *Manager) Len() int { return len(mgr.metrics) }

// IDs returns the metric ids in ascending order.
func (mgr *Manager) IDs() []int {
	ids := make([]int, 0, len(mgr.metrics))
	for id := range mgr.metrics {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// Metrics returns the metrics ordered by id.
func (mgr *Manager) Metrics() []*Metric {
	ids := mgr.IDs()
	out := make([]*Metric, len(ids))
	for i, id := range ids {
		out[i] = mgr.metrics[id]
	}
	return out
}

// Pairs returns the bilateral landmark pairs.
func (mgr *Manager) Pairs() Pairs { return mgr.pairs }

// SetPairs replaces the bilateral landmark pairs.
func (mgr *Manager) SetPairs(p Pairs) { mgr.pairs = p }

// SetPolicy changes the ranking policy of every registered metric.
func (mgr *Manager) SetPolicy(p growth.Policy) {
	mgr.policy = p
	for _, m := range mgr.metrics {
		m.ranker.SetPolicy(p)
	}
}

// SetInPlane switches every metric without a fixed mode.
func (mgr *Manager) SetInPlane(v bool) {
	for _, m := range mgr.metrics {
		m.SetInPlane(v)
	}
}

// LoadDir loads every metric file in dir and returns how many were
// registered. Files that fail to parse or repeat an id are logged and
// skipped. Files are read concurrently and registered in name order.
func (mgr *Manager) LoadDir(ctx context.Context, dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("error reading metrics directory: %w", err)
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() || !isYAML(e.Name()) {
			continue
		}
		if e.Name() == PairsFile {
			if err := mgr.loadPairs(filepath.Join(dir, e.Name())); err != nil {
				mgr.logger.Warn("skipping landmark pairs", "path", e.Name(), "err", err)
			}
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	sort.Strings(paths)

	loaded := make([]*Metric, len(paths))
	failed := make([]error, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	for i, p := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			loaded[i], failed[i] = Load(p, mgr.policy)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	n := 0
	for i, m := range loaded {
		if failed[i] != nil {
			mgr.logger.Warn("skipping metric", "err", failed[i])
			continue
		}
		if err := mgr.Add(m); err != nil {
			mgr.logger.Warn("skipping metric", "path", paths[i], "err", err)
			continue
		}
		n++
	}
	mgr.logger.Debug("loaded metrics", "dir", dir, "count", n)
	return n, nil
}

func (mgr *Manager) loadPairs(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var doc struct {
		Pairs [][2]int `yaml:"pairs"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return err
	}
	pairs := make(Pairs, len(doc.Pairs))
	for _, p := range doc.Pairs {
		if p[0] == p[1] {
			return fmt.Errorf("landmark %d paired with itself", p[0])
		}
		pairs[p[0]] = p[1]
	}
	mgr.pairs = pairs
	return nil
}

func isYAML(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".yaml" || ext == ".yml"
}
