package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bankpipe-dev/bankpipe/internal/config"
	"github.com/bankpipe-dev/bankpipe/internal/detect"
)

func newClassifyCommand() *cobra.Command {
	var repoDir string

	cmd := &cobra.Command{
		Use:   "classify",
		Short: "Show how files in the import directory would be classified",
		Long: `Runs provider detection against every file in the import directory
and prints the destination each file would move to, without moving
anything. Use "bankpipe run" to perform the moves inside a workspace.`,
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

			return runClassify(absDir, cfg)
		},
	}

	cmd.Flags().StringVar(&repoDir, "repo", ".", "ledger repository directory")

	return cmd
}

func runClassify(dir string, cfg *config.Config) error {
	importDir := filepath.Join(dir, cfg.Paths.Import)
	entries, err := os.ReadDir(importDir)
	if err != nil {
		if os.IsNotExist(err) {
			fmt.Println("no import directory")
			return nil
		}
		return fmt.Errorf("reading import dir: %w", err)
	}

	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(importDir, e.Name()))
		if err != nil {
			return fmt.Errorf("reading %s: %w", e.Name(), err)
		}

		res, err := detect.Detect(e.Name(), data, cfg.Providers)
		if err != nil {
			return err
		}
		if res == nil {
			fmt.Printf("%-40s -> %s/\n", e.Name(), cfg.Paths.Unrecognized)
			continue
		}

		name := e.Name()
		if res.OutputName != "" {
			name = res.OutputName
		}
		fmt.Printf("%-40s -> %s\n", e.Name(),
			filepath.Join(cfg.Paths.Pending, res.Provider, res.Currency, name))
	}
	return nil
}
