package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/codeworkout/nbfix/internal/config"
	"github.com/spf13/cobra"
)

var (
	version string
	commit  string
	date    string
)

var (
	configPath   string
	rootDir      string
	outputFormat string
	runID        string
	requireClean bool
	dryRun       bool
)

// rootCmd repairs the configured notebooks when called without a subcommand
var rootCmd = &cobra.Command{
	Use:   "nbfix",
	Short: "Repair Jupyter notebook cell ids",
	Long: `nbfix repairs cell identifiers in a fixed set of Jupyter notebooks.

For every cell, in file order and cell order:
  • a stray metadata.id is removed
  • a missing id is generated
  • an id already used by an earlier cell, in the same or an earlier
    notebook, is replaced with a fresh one

Notebooks are rewritten only when something changed. Missing or unreadable
notebooks are reported and skipped.

The notebooks are read from nbfix.yml when present, otherwise from the
built-in list under ` + config.DefaultRootDir + `.

Examples:
  # Repair the configured notebooks
  nbfix

  # Preview the changes without writing
  nbfix --dry-run

  # Machine-readable results
  nbfix --output=jsonl | jq 'select(.status=="updated") | .path'`,
	Args: cobra.NoArgs,
	RunE: runRepair,
	// Enable strict flag parsing - unknown flags will cause an error
	FParseErrWhitelist: cobra.FParseErrWhitelist{},
}

// Execute runs the root command with a context cancelled on interrupt.
func Execute() error {
	// Silence Cobra's default error and usage printing
	// We print formatted colored errors directly in the printer package
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	return rootCmd.ExecuteContext(ctx)
}

// SetVersionInfo sets the version information for the CLI
func SetVersionInfo(v, c, d string) {
	version = v
	commit = c
	date = d
	rootCmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", v, c, d)
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultPath, "Configuration file (built-in defaults if the default file is absent)")
	rootCmd.PersistentFlags().StringVar(&rootDir, "root", "", "Override the notebook directory")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "default", "Output format: default or jsonl")
	rootCmd.PersistentFlags().StringVar(&runID, "run-id", "", "Share the Redis seen-id set of this run (requires registry in nbfix.yml)")
	rootCmd.PersistentFlags().BoolVar(&requireClean, "require-clean", false, "Refuse to rewrite notebooks with uncommitted Git changes")

	rootCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Report changes without writing any notebook")
}

// settingsFromFlags collects the flag values shared by repair and check
func settingsFromFlags(cmd *cobra.Command) batchSettings {
	return batchSettings{
		configPath:     configPath,
		configExplicit: cmd.Flags().Changed("config"),
		rootDir:        rootDir,
		output:         outputFormat,
		runID:          runID,
		requireClean:   requireClean,
	}
}

func runRepair(cmd *cobra.Command, args []string) error {
	settings := settingsFromFlags(cmd)
	settings.dryRun = dryRun

	_, err := runBatch(cmd.Context(), settings)
	return err
}
