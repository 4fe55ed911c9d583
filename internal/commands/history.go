package commands

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/bankpipe-dev/bankpipe/internal/runlog"
)

func newHistoryCommand() *cobra.Command {
	var repoDir string
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show the outcomes of recent pipeline runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			absDir, err := filepath.Abs(repoDir)
			if err != nil {
				return fmt.Errorf("resolving path: %w", err)
			}

			entries, err := runlog.Read(absDir)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Println("no runs recorded")
				return nil
			}

			if limit > 0 && len(entries) > limit {
				entries = entries[len(entries)-limit:]
			}
			for _, e := range entries {
				fmt.Printf("%s  %-18s %-18s %-8s %s\n",
					e.Timestamp.Format("2006-01-02 15:04:05"),
					e.RunID, e.Step, e.Status, e.Details)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&repoDir, "repo", ".", "ledger repository directory")
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum number of entries to show")

	return cmd
}
