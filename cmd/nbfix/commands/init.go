package commands

import (
	"fmt"
	"os"

	"github.com/codeworkout/nbfix/internal/printer"
	"github.com/codeworkout/nbfix/internal/scaffold"
	"github.com/spf13/cobra"
)

var (
	forceInit bool
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a starter nbfix.yml",
	Long: `Create nbfix.yml in the current directory listing the notebooks to repair.

The --root flag sets root_dir in the generated file.

Use --force to overwrite an existing nbfix.yml.`,
	Args: cobra.NoArgs,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&forceInit, "force", false, "Overwrite an existing nbfix.yml")
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	dir, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to get current directory: %w", err)
	}

	if !forceInit {
		if err := scaffold.CheckExisting(dir); err != nil {
			return printer.Error("nbfix.yml already exists", err.Error(), nil)
		}
	}

	path, err := scaffold.Initialize(dir, rootDir, forceInit)
	if err != nil {
		return printer.Error("initialization failed", err.Error(), nil)
	}

	scaffold.PrintSuccess(path)
	return nil
}
