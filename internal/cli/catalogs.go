package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"facemetrics/pkg/config"
	"facemetrics/pkg/ethnicity"
	"facemetrics/pkg/growth"
	"facemetrics/pkg/metric"
	"facemetrics/pkg/phenotype"
	"facemetrics/pkg/syndrome"
)

// catalogs are the reference data a run measures against.
type catalogs struct {
	ethnicities *ethnicity.Registry
	metrics     *metric.Manager
	phenotypes  *phenotype.Manager
	syndromes   *syndrome.Manager
}

// loadCatalogs loads every catalog named in cfg. Optional catalogs that are
// not configured are left nil; the phenotype directory may be missing.
func loadCatalogs(ctx context.Context, cfg *config.Config) (*catalogs, error) {
	logger := loggerFromContext(ctx)
	c := &catalogs{}

	policy := growth.Policy{EthnicityBeforeInPlane: cfg.Ranking.EthnicityBeforeInPlane}
	if path := cfg.Catalog.EthnicitiesFile; path != "" {
		reg, err := ethnicity.Load(path)
		if err != nil {
			return nil, err
		}
		c.ethnicities = reg
		policy.Ethnicities = reg
	}

	c.metrics = metric.NewManager(policy, logger)
	n, err := c.metrics.LoadDir(ctx, cfg.Catalog.MetricsDir)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, fmt.Errorf("no metrics in %s", cfg.Catalog.MetricsDir)
	}
	c.metrics.SetInPlane(cfg.Ranking.InPlane)
	logger.Info("loaded metrics", "count", n, "pairs", len(c.metrics.Pairs()))

	c.phenotypes = phenotype.NewManager(c.metrics, logger)
	if _, err := os.Stat(cfg.Catalog.PhenotypesDir); err == nil {
		n, err := c.phenotypes.LoadDir(ctx, cfg.Catalog.PhenotypesDir)
		if err != nil {
			return nil, err
		}
		logger.Info("loaded phenotypes", "count", n)
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, err
	} else {
		logger.Warn("no phenotype catalog", "dir", cfg.Catalog.PhenotypesDir)
	}

	if path := cfg.Catalog.SyndromesFile; path != "" {
		syns, err := syndrome.Load(path)
		if err != nil {
			return nil, err
		}
		c.syndromes = syns
		logger.Info("loaded syndromes", "count", syns.Len())
	}
	return c, nil
}
