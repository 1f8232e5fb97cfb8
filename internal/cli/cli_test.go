package cli

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const metricYAML = `
id: 1
name: Intercanthal width
type: distance
units: mm
decimals: 1
landmarks: [1, 2]
growthData:
  - sex: MF
    ageRange: [0, 20]
    source: Farkas 1994
    stats:
      - [[0, 10, 2]]
`

const hpoYAML = `
id: 316
name: Hypertelorism
region: Eyes
metrics: [1]
determine:
  metric: 1
  field: zscore
  above: 2
`

const syndromesYAML = `
syndromes:
  - id: 1
    code: WBS
    name: Williams-Beuren syndrome
    hpo: [316]
`

const subjectYAML = `
id: 4b7f3c1e-9a2d-4f7e-8c1a-1d2e3f4a5b6c
sex: F
age: 8
assessments:
  - id: 0
    assessor: RP
    landmarks:
      1: [0, 0, 0]
      2: [15, 0, 0]
`

type workspace struct {
	dir     string
	config  string
	subject string
}

func setup(t *testing.T) workspace {
	t.Helper()
	dir := t.TempDir()
	write := func(rel, body string) string {
		p := filepath.Join(dir, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
		return p
	}
	write("catalog/metrics/m1.yaml", metricYAML)
	write("catalog/hpo/hp316.yaml", hpoYAML)
	write("catalog/syndromes.yaml", syndromesYAML)

	cfg := "catalog:\n" +
		"  metricsDir: " + filepath.Join(dir, "catalog/metrics") + "\n" +
		"  phenotypesDir: " + filepath.Join(dir, "catalog/hpo") + "\n" +
		"  syndromesFile: " + filepath.Join(dir, "catalog/syndromes.yaml") + "\n" +
		"store:\n  enabled: true\n  path: " + filepath.Join(dir, "db/metrics.db") + "\n" +
		"output:\n  saveCharts: true\n  chartsDir: " + filepath.Join(dir, "charts") + "\n" +
		"telemetry:\n  enabled: true\n  textfile: " + filepath.Join(dir, "facemetrics.prom") + "\n"
	return workspace{
		dir:     dir,
		config:  write("facemetrics.yaml", cfg),
		subject: write("subject.yaml", subjectYAML),
	}
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCommand(io.Discard)
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestMeasure(t *testing.T) {
	ws := setup(t)
	export := filepath.Join(ws.dir, "values.yaml")

	out, err := run(t, "measure", ws.subject, "-c", ws.config, "--export", export)
	require.NoError(t, err)
	assert.Contains(t, out, "Intercanthal width [1]")
	assert.Contains(t, out, "2.50")
	assert.Contains(t, out, "HP:0000316")
	assert.Contains(t, out, "Related syndromes")
	assert.Contains(t, out, "WBS Williams-Beuren syndrome")

	for _, p := range []string{
		"db/metrics.db",
		"charts/metric_1_frontal_0.png",
		"facemetrics.prom",
		"values.yaml",
	} {
		assert.FileExists(t, filepath.Join(ws.dir, p))
	}
	prom, err := os.ReadFile(filepath.Join(ws.dir, "facemetrics.prom"))
	require.NoError(t, err)
	assert.Contains(t, string(prom), "facemetrics_measurements_total")

	// Measuring again from the exported values changes nothing.
	_, err = run(t, "measure", ws.subject, "-c", ws.config, "--import", export)
	require.NoError(t, err)

	out, err = run(t, "forget", "4b7f3c1e-9a2d-4f7e-8c1a-1d2e3f4a5b6c", "-c", ws.config)
	require.NoError(t, err)
	assert.Contains(t, out, "deleted 3 rows")
}

func TestMeasureErrors(t *testing.T) {
	ws := setup(t)

	_, err := run(t, "measure", filepath.Join(ws.dir, "missing.yaml"), "-c", ws.config)
	assert.Error(t, err)

	_, err = run(t, "measure", ws.subject, "-c", ws.config, "--assessment", "9")
	assert.Error(t, err)

	_, err = run(t, "forget", "not-a-uuid", "-c", ws.config)
	assert.Error(t, err)
}

func TestCatalog(t *testing.T) {
	ws := setup(t)
	out, err := run(t, "catalog", "-c", ws.config)
	require.NoError(t, err)
	assert.Contains(t, out, "Intercanthal width")
	assert.Contains(t, out, "distance, 1 growth datasets")
	assert.Contains(t, out, "HP:0000316  Hypertelorism")

	out, err = run(t, "catalog", "-c", ws.config, "--region", "Nose")
	require.NoError(t, err)
	assert.NotContains(t, out, "HP:0000316")
}

func TestInitConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "facemetrics.yaml")
	out, err := run(t, "init-config", path)
	require.NoError(t, err)
	assert.Contains(t, out, path)
	assert.FileExists(t, path)
}

func TestLoggerFromContext(t *testing.T) {
	assert.Same(t, log.Default(), loggerFromContext(context.Background()))

	l := newLogger(io.Discard, log.DebugLevel)
	assert.Same(t, l, loggerFromContext(withLogger(context.Background(), l)))
}
