package commands

import (
	"github.com/codeworkout/nbfix/internal/printer"
	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Report notebooks whose cell ids need repair",
	Long: `Run the full repair pass without writing any notebook.

Exits with status 1 when at least one notebook would be rewritten or could
not be read, which makes it suitable as a pre-commit or CI gate.`,
	Args: cobra.NoArgs,
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	settings := settingsFromFlags(cmd)
	settings.dryRun = true

	summary, err := runBatch(cmd.Context(), settings)
	if err != nil {
		return err
	}

	if summary.Pending() {
		return printer.Error(
			"notebooks need repair",
			summary.String(),
			[]string{"Run 'nbfix' to apply the changes"},
		)
	}

	return nil
}
