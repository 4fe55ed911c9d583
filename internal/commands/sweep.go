package commands

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/bankpipe-dev/bankpipe/internal/cmdexec"
	"github.com/bankpipe-dev/bankpipe/internal/config"
	"github.com/bankpipe-dev/bankpipe/internal/gitops"
	"github.com/bankpipe-dev/bankpipe/internal/workspace"
)

func newSweepCommand() *cobra.Command {
	var repoDir string
	var maxAgeHours int

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Remove stale import workspaces",
		Long: `Removes leftover isolated workspaces from runs that died before
their own cleanup could execute. Only workspaces older than the age
threshold are touched.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			absDir, err := filepath.Abs(repoDir)
			if err != nil {
				return fmt.Errorf("resolving path: %w", err)
			}

			cfg, err := config.Load(filepath.Join(absDir, ConfigFile))
			if err != nil {
				return err
			}

			maxAge := time.Duration(cfg.Workspace.MaxAgeHours) * time.Hour
			if cmd.Flags().Changed("max-age-hours") {
				maxAge = time.Duration(maxAgeHours) * time.Hour
			}

			git := gitops.New(cmdexec.System{})
			removed, err := workspace.Sweep(git, absDir, maxAge, time.Now())
			if err != nil {
				return err
			}

			if len(removed) == 0 {
				fmt.Println("no stale workspaces")
				return nil
			}
			for _, id := range removed {
				fmt.Printf("removed workspace %s\n", id)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&repoDir, "repo", ".", "ledger repository directory")
	cmd.Flags().IntVar(&maxAgeHours, "max-age-hours", 48, "age threshold in hours")

	return cmd
}
