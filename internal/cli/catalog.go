package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"facemetrics/pkg/config"
	"facemetrics/pkg/store"
)

func newCatalogCmd(o *options) *cobra.Command {
	var region string
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "List the loaded metrics and phenotypes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := o.loadConfig(cmd)
			if err != nil {
				return err
			}
			cats, err := loadCatalogs(cmd.Context(), cfg)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
			gray := color.New(color.FgHiBlack).SprintFunc()

			fmt.Fprintf(w, "%s (%d)\n", cyan("Metrics"), cats.metrics.Len())
			for _, m := range cats.metrics.Metrics() {
				side := ""
				if m.Bilateral() {
					side = " bilateral"
				}
				fmt.Fprintf(w, "  %4d  %s %s\n", m.ID(), m.Name(), gray(fmt.Sprintf("[%s%s, %d growth datasets]", m.Type().Kind(), side, m.Ranker().Len())))
			}

			ids := cats.phenotypes.IDs()
			if region != "" {
				ids = cats.phenotypes.ByRegion()[region]
			}
			fmt.Fprintf(w, "\n%s (%d)\n", cyan("Phenotypes"), len(ids))
			for _, id := range ids {
				p := cats.phenotypes.Phenotype(id)
				fmt.Fprintf(w, "  %s  %s %s\n", p.FormattedID(), p.Name(), gray("metrics "+p.MetricsList()))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&region, "region", "", "only list phenotypes of this anatomical region")
	return cmd
}

func newForgetCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "forget SUBJECT_ID",
		Short: "Delete a subject's stored measurements",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid subject id: %w", err)
			}
			cfg, err := o.loadConfig(cmd)
			if err != nil {
				return err
			}
			if !cfg.Store.Enabled {
				return fmt.Errorf("the measurement store is disabled in %s", o.configPath)
			}
			st, err := store.Open(cfg.Store.Path)
			if err != nil {
				return err
			}
			defer st.Close()
			n, err := st.DeleteSubject(cmd.Context(), id)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s deleted %d rows for %s\n", color.GreenString("✓"), n, id)
			return nil
		},
	}
}

func newInitConfigCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "init-config [PATH]",
		Short: "Write a default configuration file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := o.configPath
			if len(args) == 1 {
				path = args[0]
			}
			if err := config.CreateDefaultConfigFile(path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s wrote %s\n", color.GreenString("✓"), path)
			return nil
		},
	}
}
