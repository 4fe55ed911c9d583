package commands

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/bankpipe-dev/bankpipe/internal/cmdexec"
	"github.com/bankpipe-dev/bankpipe/internal/config"
	"github.com/bankpipe-dev/bankpipe/internal/gitops"
	"github.com/bankpipe-dev/bankpipe/internal/model"
	"github.com/bankpipe-dev/bankpipe/internal/pipeline"
)

func newRunCommand() *cobra.Command {
	var repoDir string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the full import pipeline",
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

			if !gitops.New(cmdexec.System{}).IsRepo(absDir) {
				return fmt.Errorf("%s is not a git repository; run \"bankpipe init\" first", absDir)
			}

			runner := pipeline.NewRunner(cfg, absDir, cmdexec.System{})
			res := runner.Run()
			printResult(res)

			if !res.Success {
				return errors.New(res.Error)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&repoDir, "repo", ".", "ledger repository directory")

	return cmd
}

var (
	stepOK      = color.New(color.FgGreen).SprintFunc()
	stepFailed  = color.New(color.FgRed).SprintFunc()
	stepSkipped = color.New(color.FgYellow).SprintFunc()
)

func printResult(res *model.PipelineResult) {
	fmt.Printf("run %s\n", res.RunID)
	for _, s := range res.Steps {
		status := stepOK("ok")
		switch s.Status {
		case model.StepFailed:
			status = stepFailed("failed")
		case model.StepSkipped:
			status = stepSkipped("skipped")
		}
		fmt.Printf("  %-18s %-8s %s\n", s.Name, status, s.Message)
	}

	if res.Success {
		fmt.Println(res.Summary)
		return
	}
	fmt.Println(stepFailed("error: " + res.Error))
	if res.Hint != "" {
		fmt.Println("hint: " + res.Hint)
	}
}
