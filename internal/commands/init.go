package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/bankpipe-dev/bankpipe/internal/cmdexec"
	"github.com/bankpipe-dev/bankpipe/internal/config"
	"github.com/bankpipe-dev/bankpipe/internal/gitops"
	"github.com/bankpipe-dev/bankpipe/internal/journal"
)

func newInitCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Initialize a new ledger repository",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}

			absDir, err := filepath.Abs(dir)
			if err != nil {
				return fmt.Errorf("resolving path: %w", err)
			}

			return runInit(absDir)
		},
	}

	return cmd
}

func runInit(dir string) error {
	cfg := config.Default()

	// Create directory structure.
	dirs := []string{
		cfg.Paths.Import,
		cfg.Paths.Pending,
		cfg.Paths.Done,
		cfg.Paths.Unrecognized,
		cfg.Paths.Rules,
		cfg.Paths.Ledger,
		"logs",
	}
	for _, d := range dirs {
		if err := os.MkdirAll(filepath.Join(dir, d), 0o755); err != nil {
			return fmt.Errorf("creating directory %s: %w", d, err)
		}
	}

	if err := config.Save(filepath.Join(dir, ConfigFile), cfg); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	// Root journal including the current year's ledger file.
	journalPath := filepath.Join(dir, cfg.Paths.Journal)
	if _, err := journal.EnsureYearInclude(journalPath, cfg.Paths.Ledger, time.Now().Year()); err != nil {
		return fmt.Errorf("writing journal: %w", err)
	}

	// Keep the empty directories present in the repository.
	for _, d := range []string{cfg.Paths.Import, cfg.Paths.Rules} {
		if err := os.WriteFile(filepath.Join(dir, d, ".gitkeep"), []byte{}, 0o644); err != nil {
			return fmt.Errorf("writing .gitkeep: %w", err)
		}
	}

	git := gitops.New(cmdexec.System{})
	if err := git.Init(dir); err != nil {
		return fmt.Errorf("git init: %w", err)
	}

	// Re-running init on an already-scaffolded repository is a no-op.
	changed, err := git.HasChanges(dir)
	if err != nil {
		return err
	}
	if !changed {
		fmt.Printf("Ledger repository at %s is already initialized\n", dir)
		return nil
	}

	hash, err := git.CommitAll(dir, "init: ledger repository", cfg.Git.AuthorName, cfg.Git.AuthorEmail)
	if err != nil {
		return fmt.Errorf("initial commit: %w", err)
	}

	fmt.Printf("Initialized ledger repository at %s (%s)\n", dir, hash)
	return nil
}
