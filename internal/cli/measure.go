package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/fatih/color"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"facemetrics/internal/models"
	"facemetrics/pkg/analysis"
	"facemetrics/pkg/face"
	"facemetrics/pkg/metric"
	"facemetrics/pkg/report"
	"facemetrics/pkg/store"
	"facemetrics/pkg/telemetry"
	"facemetrics/pkg/visualization"
)

type measureFlags struct {
	assessment int
	importPath string
	exportPath string
}

func newMeasureCmd(o *options) *cobra.Command {
	var f measureFlags
	cmd := &cobra.Command{
		Use:   "measure SUBJECT",
		Short: "Measure a subject and report phenotypic traits",
		Long: `Measure every catalog metric on an assessment of the subject file, score the values
against the best matching growth data and list the HPO terms found present.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMeasure(cmd, o, args[0], f)
		},
	}
	cmd.Flags().IntVarP(&f.assessment, "assessment", "a", -1, "assessment id (default: the subject's current assessment)")
	cmd.Flags().StringVar(&f.importPath, "import", "", "read previously exported metric values before measuring")
	cmd.Flags().StringVar(&f.exportPath, "export", "", "write the metric values of every assessment to this file")
	return cmd
}

func runMeasure(cmd *cobra.Command, o *options, path string, f measureFlags) error {
	ctx := cmd.Context()
	logger := loggerFromContext(ctx)
	out := cmd.OutOrStdout()
	start := time.Now()

	cfg, err := o.loadConfig(cmd)
	if err != nil {
		return err
	}
	cats, err := loadCatalogs(ctx, cfg)
	if err != nil {
		return err
	}

	subj, err := face.Load(path)
	if err != nil {
		return err
	}
	if f.assessment >= 0 {
		if err := subj.SetCurrentAssessment(f.assessment); err != nil {
			return err
		}
	}
	if subj.Current() == nil {
		return fmt.Errorf("%s has no assessments", path)
	}

	if f.importPath != "" {
		if err := importValues(f.importPath, subj); err != nil {
			return err
		}
	}

	var st *store.Store
	if cfg.Store.Enabled {
		st, err = store.Open(cfg.Store.Path)
		if err != nil {
			return err
		}
		defer st.Close()
		n, err := st.LoadAssessment(ctx, subj.ID(), subj.Current())
		switch {
		case errors.Is(err, store.ErrNotFound):
			logger.Debug("no stored measurements", "subject", subj.ID())
		case err != nil:
			return err
		default:
			logger.Debug("restored measurements", "subject", subj.ID(), "changed", n)
		}
	}

	an := analysis.New(cats.metrics, cats.phenotypes, logger)
	var reg *prometheus.Registry
	if cfg.Telemetry.Enabled {
		reg = prometheus.NewRegistry()
		an.Recorder = telemetry.NewPrometheusRecorder(reg)
	}

	sum := an.MeasureAll(subj)
	logger.Info("measured", "subject", subj.ID(), "assessment", subj.Current().ID(),
		"new", sum.Measured, "unchanged", sum.Unchanged, "skipped", sum.Skipped)

	if st != nil {
		if err := st.SaveAssessment(ctx, subj.ID(), subj.Current()); err != nil {
			return err
		}
		logger.Debug("saved measurements", "path", st.Path())
	}

	rep, err := report.Build(subj, -1, cats.metrics, cats.phenotypes)
	if err != nil {
		return err
	}
	if cats.ethnicities != nil {
		rep.NameEthnicities(cats.ethnicities)
	}
	if err := rep.WriteText(out); err != nil {
		return err
	}

	found := an.Discover(subj, -1)
	if cats.syndromes != nil {
		printSyndromes(out, cats, found)
	}

	if cfg.Output.SaveCharts {
		n, err := saveCharts(cfg.Output.ChartsDir, cats.metrics, subj)
		if err != nil {
			return err
		}
		logger.Info("saved charts", "dir", cfg.Output.ChartsDir, "count", n)
	}

	if f.exportPath != "" {
		if err := exportValues(f.exportPath, subj); err != nil {
			return err
		}
		logger.Info("exported metric values", "path", f.exportPath)
	}

	if reg != nil {
		if err := prometheus.WriteToTextfile(cfg.Telemetry.Textfile, reg); err != nil {
			return fmt.Errorf("error writing telemetry: %w", err)
		}
	}

	logger.Infof("done (%s)", time.Since(start).Round(time.Millisecond))
	return nil
}

func importValues(path string, subj *face.Model) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("error opening import file: %w", err)
	}
	defer f.Close()
	if _, err := report.Import(f, subj); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

func exportValues(path string, subj *face.Model) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("error creating export file: %w", err)
	}
	if err := report.Export(f, subj); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func printSyndromes(w io.Writer, cats *catalogs, found []int) {
	matches := cats.syndromes.ForPhenotypes(found)
	if len(matches) == 0 {
		return
	}
	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	gray := color.New(color.FgHiBlack).SprintFunc()
	fmt.Fprintf(w, "\n%s\n", cyan("Related syndromes"))
	for _, m := range matches {
		terms := ""
		for i, id := range m.Shared {
			if i > 0 {
				terms += ", "
			}
			terms += cats.phenotypes.Phenotype(id).FormattedID()
		}
		fmt.Fprintf(w, "  %s %s %s\n", m.Syndrome.Code, m.Syndrome.Name, gray("("+terms+")"))
	}
}

// saveCharts draws a growth chart for every dimension of every measured
// metric that has growth data for the subject.
func saveCharts(dir string, metrics *metric.Manager, subj *face.Model) (int, error) {
	a := subj.Current()
	age := subj.Demographic().Age
	n := 0
	for _, r := range models.Regions {
		for _, v := range a.Metrics(r).Values() {
			m := metrics.Metric(v.ID())
			if m == nil {
				continue
			}
			gd := m.Ranker().Rerank(subj.Demographic())
			if gd == nil {
				continue
			}
			for d := 0; d < v.Ndims() && d < gd.Dims(); d++ {
				chart, err := visualization.NewChart(gd, d, gd.AgeMin(), gd.AgeMax())
				if err != nil {
					return n, err
				}
				chart.Plot(age, v.Value(d))
				name := fmt.Sprintf("metric_%d_%s_%d.png", m.ID(), r, d)
				if err := chart.SavePNG(filepath.Join(dir, name)); err != nil {
					return n, err
				}
				n++
			}
		}
	}
	return n, nil
}
