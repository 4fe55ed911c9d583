package commands

import (
	"github.com/spf13/cobra"

	"github.com/bankpipe-dev/bankpipe/internal/buildinfo"
)

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "bankpipe",
		Short:   "Bank statement import pipeline for hledger",
		Version: buildinfo.String(),
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}

	rootCmd.AddCommand(newInitCommand())
	rootCmd.AddCommand(newRunCommand())
	rootCmd.AddCommand(newClassifyCommand())
	rootCmd.AddCommand(newBalancesCommand())
	rootCmd.AddCommand(newHistoryCommand())
	rootCmd.AddCommand(newSweepCommand())

	return rootCmd
}

// ConfigFile is the configuration file name inside a ledger repository.
const ConfigFile = "bankpipe.yaml"
