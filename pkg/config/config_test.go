package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

// TestLoadMissingFileGivesDefaults verifies that a missing file yields the defaults
func TestLoadMissingFileGivesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "none.yaml"))
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if !reflect.DeepEqual(cfg, DefaultConfig()) {
		t.Errorf("Expected default config, got %+v", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Default config should be valid: %v", err)
	}
}

// TestLoadOverridesDefaults verifies that set keys replace defaults and unset keys keep them
func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	doc := "catalog:\n  metricsDir: /data/metrics\nranking:\n  ethnicityBeforeInPlane: false\nstore:\n  enabled: true\n"
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if cfg.Catalog.MetricsDir != "/data/metrics" {
		t.Errorf("Expected metrics dir /data/metrics, got %s", cfg.Catalog.MetricsDir)
	}
	if cfg.Catalog.PhenotypesDir != "catalog/hpo" {
		t.Errorf("Unset phenotypes dir should keep default, got %s", cfg.Catalog.PhenotypesDir)
	}
	if cfg.Ranking.EthnicityBeforeInPlane {
		t.Error("Expected ethnicityBeforeInPlane false")
	}
	if !cfg.Store.Enabled || cfg.Store.Path != "facemetrics.db" {
		t.Errorf("Unexpected store section %+v", cfg.Store)
	}
}

// TestLoadRejectsBadYAML verifies that malformed files are reported
func TestLoadRejectsBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("catalog: ["), 0o644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	if _, err := LoadConfig(path); err == nil {
		t.Error("Expected error for malformed YAML")
	}
}

// TestSaveRoundTrip verifies that the default file loads back unchanged
func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	if err := CreateDefaultConfigFile(path); err != nil {
		t.Fatalf("Failed to create default config: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if !reflect.DeepEqual(cfg, DefaultConfig()) {
		t.Errorf("Round trip changed the config: %+v", cfg)
	}
}

// TestValidate verifies that every missing required path is reported
func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Catalog.MetricsDir = ""
	cfg.Store.Enabled = true
	cfg.Store.Path = ""
	cfg.Output.SaveCharts = true
	cfg.Output.ChartsDir = ""

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Expected validation error")
	}
	for _, key := range []string{"catalog.metricsDir", "store.path", "output.chartsDir"} {
		if !strings.Contains(err.Error(), key) {
			t.Errorf("Expected error to mention %s, got %v", key, err)
		}
	}
}
