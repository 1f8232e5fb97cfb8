package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	charmlog "github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"facemetrics/pkg/config"
)

var (
	version = "dev"
	commit  string
)

// SetVersion sets the version shown by --version.
func SetVersion(v, c string) {
	version, commit = v, c
}

// options are the flags shared by every command.
type options struct {
	configPath string
	verbose    bool
	logOut     io.Writer
}

// loadConfig reads and validates the configuration. The verbose flag and
// the config's output.verbose both enable debug logging.
func (o *options) loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.LoadConfig(o.configPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration %s: %w", o.configPath, err)
	}
	if cfg.Output.Verbose {
		loggerFromContext(cmd.Context()).SetLevel(charmlog.DebugLevel)
	}
	return cfg, nil
}

// NewRootCommand builds the command tree. Logs go to logOut.
func NewRootCommand(logOut io.Writer) *cobra.Command {
	o := &options{logOut: logOut}
	root := &cobra.Command{
		Use:          "facemetrics",
		Short:        "Facial measurement and phenotype analysis",
		Long:         `facemetrics measures landmark-based facial metrics, scores them against age-dependent growth data and reports the HPO phenotypic traits they indicate.`,
		Version:      version,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := charmlog.InfoLevel
			if o.verbose {
				level = charmlog.DebugLevel
			}
			cmd.SetContext(withLogger(cmd.Context(), newLogger(o.logOut, level)))
		},
	}
	root.SetVersionTemplate(fmt.Sprintf("facemetrics %s %s\n", version, commit))
	root.PersistentFlags().BoolVarP(&o.verbose, "verbose", "v", false, "enable verbose logging")
	root.PersistentFlags().StringVarP(&o.configPath, "config", "c", "facemetrics.yaml", "configuration file")

	root.AddCommand(newMeasureCmd(o))
	root.AddCommand(newCatalogCmd(o))
	root.AddCommand(newForgetCmd(o))
	root.AddCommand(newInitConfigCmd(o))
	return root
}

// Execute runs the CLI with os.Args.
func Execute(ctx context.Context) error {
	return NewRootCommand(os.Stderr).ExecuteContext(ctx)
}
