package commands

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/bankpipe-dev/bankpipe/internal/cmdexec"
	"github.com/bankpipe-dev/bankpipe/internal/config"
	"github.com/bankpipe-dev/bankpipe/internal/ledger"
)

func newBalancesCommand() *cobra.Command {
	var repoDir string

	cmd := &cobra.Command{
		Use:   "balances",
		Short: "Print the engine's balance report for the ledger",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			absDir, err := filepath.Abs(repoDir)
			if err != nil {
				return fmt.Errorf("resolving path: %w", err)
			}

			cfg, err := config.Load(filepath.Join(absDir, ConfigFile))
			if err != nil {
				return err
			}

			client := ledger.NewClient(cmdexec.System{})
			out, err := client.Balances(absDir, cfg.Paths.Journal)
			if err != nil {
				return err
			}
			fmt.Print(out)
			return nil
		},
	}

	cmd.Flags().StringVar(&repoDir, "repo", ".", "ledger repository directory")

	return cmd
}
