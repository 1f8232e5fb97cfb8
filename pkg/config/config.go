// Package config provides configuration loading and management for facemetrics.
// It handles loading configuration from YAML files and provides default values.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration loaded from YAML
type Config struct {
	// Catalog locations
	Catalog struct {
		// MetricsDir holds one YAML file per metric plus landmarks.yaml
		MetricsDir string `yaml:"metricsDir"`

		// PhenotypesDir holds one YAML file per HPO term
		PhenotypesDir string `yaml:"phenotypesDir"`

		// SyndromesFile is optional
		SyndromesFile string `yaml:"syndromesFile"`

		// EthnicitiesFile is optional; without it only exact ethnicity codes match
		EthnicitiesFile string `yaml:"ethnicitiesFile"`
	} `yaml:"catalog"`

	// Growth data ranking
	Ranking struct {
		// EthnicityBeforeInPlane prefers ethnicity over in-plane agreement
		EthnicityBeforeInPlane bool `yaml:"ethnicityBeforeInPlane"`

		// InPlane measures metrics in the plane of the face by default
		InPlane bool `yaml:"inPlane"`
	} `yaml:"ranking"`

	// Measurement store
	Store struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"store"`

	// Output parameters
	Output struct {
		// Verbose enables debug logging
		Verbose bool `yaml:"verbose"`

		// SaveCharts writes a growth chart per measured metric to ChartsDir
		SaveCharts bool   `yaml:"saveCharts"`
		ChartsDir  string `yaml:"chartsDir"`
	} `yaml:"output"`

	// Telemetry
	Telemetry struct {
		// Enabled counts measurements and evaluations with Prometheus counters
		Enabled bool `yaml:"enabled"`

		// Textfile receives the counters in text exposition format after a run
		Textfile string `yaml:"textfile"`
	} `yaml:"telemetry"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Catalog.MetricsDir = "catalog/metrics"
	cfg.Catalog.PhenotypesDir = "catalog/hpo"
	cfg.Catalog.SyndromesFile = ""
	cfg.Catalog.EthnicitiesFile = ""

	cfg.Ranking.EthnicityBeforeInPlane = true
	cfg.Ranking.InPlane = false

	cfg.Store.Enabled = false
	cfg.Store.Path = "facemetrics.db"

	cfg.Output.Verbose = false
	cfg.Output.SaveCharts = false
	cfg.Output.ChartsDir = "charts"

	cfg.Telemetry.Enabled = false
	cfg.Telemetry.Textfile = "facemetrics.prom"

	return cfg
}

// Validate reports every missing setting the enabled features need.
func (c *Config) Validate() error {
	var errs []error
	if c.Catalog.MetricsDir == "" {
		errs = append(errs, errors.New("catalog.metricsDir is required"))
	}
	if c.Store.Enabled && c.Store.Path == "" {
		errs = append(errs, errors.New("store.path is required when the store is enabled"))
	}
	if c.Output.SaveCharts && c.Output.ChartsDir == "" {
		errs = append(errs, errors.New("output.chartsDir is required when saving charts"))
	}
	if c.Telemetry.Enabled && c.Telemetry.Textfile == "" {
		errs = append(errs, errors.New("telemetry.textfile is required when telemetry is enabled"))
	}
	return errors.Join(errs...)
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the specified path
func CreateDefaultConfigFile(configPath string) error {
	return SaveConfig(DefaultConfig(), configPath)
}
