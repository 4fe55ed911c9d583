// Package pipeline orchestrates a statement import: classify incoming
// files, declare accounts, dry-run, import, reconcile, and merge, all
// inside an isolated worktree with all-or-nothing rollback.
package pipeline

import (
	"fmt"
	"os"
	"time"

	"github.com/bankpipe-dev/bankpipe/internal/cmdexec"
	"github.com/bankpipe-dev/bankpipe/internal/config"
	"github.com/bankpipe-dev/bankpipe/internal/detect"
	"github.com/bankpipe-dev/bankpipe/internal/gitops"
	"github.com/bankpipe-dev/bankpipe/internal/id"
	"github.com/bankpipe-dev/bankpipe/internal/ledger"
	"github.com/bankpipe-dev/bankpipe/internal/model"
	"github.com/bankpipe-dev/bankpipe/internal/runlog"
	"github.com/bankpipe-dev/bankpipe/internal/workspace"
)

// Runner owns the services a pipeline run needs. One Runner can execute
// many sequential runs; each run gets its own workspace and cache.
type Runner struct {
	cfg    *config.Config
	origin string
	git    *gitops.Git
	ledger *ledger.Client
	now    func() time.Time
}

// NewRunner creates a Runner for the ledger repository at origin. All
// subprocess calls go through exec so tests can script them.
func NewRunner(cfg *config.Config, origin string, exec cmdexec.Executor) *Runner {
	return &Runner{
		cfg:    cfg,
		origin: origin,
		git:    gitops.New(exec),
		ledger: ledger.NewClient(exec),
		now:    time.Now,
	}
}

// matchedFile is a pending statement bound to its rules file.
type matchedFile struct {
	path      string // absolute, inside the worktree
	rulesFile string
}

// runState is the mutable state of one pipeline run.
type runState struct {
	ws         *workspace.Context
	staged     []string                  // import files copied in from origin
	detections map[string]*detect.Result // pending path -> detection
	files      []matchedFile
	missing    []string // pending files with no rules file
	preview    *ledger.Preview
	cache      *Cache
}

// Run executes the full pipeline. All failures come back as a
// structured result; nothing panics or escapes past this boundary, and
// workspace cleanup runs on every exit path.
func (r *Runner) Run() *model.PipelineResult {
	res := &model.PipelineResult{RunID: id.Run(r.now())}
	st := &runState{
		detections: make(map[string]*detect.Result),
		cache:      NewCache(),
	}

	if r.createWorkspace(res, st) {
		if res.Error == "" {
			r.runSteps(res, st)
		}
		r.cleanup(res, st)
	}

	res.Success = res.Error == ""
	if res.Success && res.Summary == "" {
		res.Summary = "import pipeline completed"
	}

	r.writeLog(res)
	return res
}

func (r *Runner) runSteps(res *model.PipelineResult, st *runState) {
	// A classify failure is logged but does not stop the run; files
	// already classified in earlier runs can still be imported.
	r.classify(res, st)

	if !r.declareAccounts(res, st) {
		return
	}

	proceed, ok := r.dryRun(res, st)
	if !ok {
		return
	}
	if !proceed {
		r.skip(res, model.StepImport, "no transactions detected")
		r.skip(res, model.StepReconcile, "nothing imported")
		r.skip(res, model.StepMerge, "nothing to merge")
		res.Summary = "no new transactions; nothing merged"
		return
	}

	if !r.importFiles(res, st) {
		return
	}
	if !r.reconcile(res, st) {
		return
	}
	r.merge(res, st)
}

// --- step bookkeeping ---

func (r *Runner) step(res *model.PipelineResult, name string, status model.StepStatus, message string, details map[string]string) {
	res.Steps = append(res.Steps, model.StepResult{
		Name:    name,
		Status:  status,
		Message: message,
		Details: details,
	})
}

func (r *Runner) ok(res *model.PipelineResult, name, message string, details map[string]string) {
	r.step(res, name, model.StepOK, message, details)
}

func (r *Runner) skip(res *model.PipelineResult, name, message string) {
	r.step(res, name, model.StepSkipped, message, nil)
}

// fail records a fatal step failure and the top-level error/hint.
func (r *Runner) fail(res *model.PipelineResult, name string, err error, hint string, details map[string]string) {
	r.step(res, name, model.StepFailed, err.Error(), details)
	res.Error = fmt.Sprintf("%s: %v", name, err)
	res.Hint = hint
}

func (r *Runner) writeLog(res *model.PipelineResult) {
	entries := make([]runlog.Entry, 0, len(res.Steps))
	ts := r.now().UTC()
	for _, s := range res.Steps {
		entries = append(entries, runlog.Entry{
			Timestamp: ts,
			RunID:     res.RunID,
			Step:      s.Name,
			Status:    string(s.Status),
			Details:   s.Message,
		})
	}
	if err := runlog.Append(r.origin, entries); err != nil {
		fmt.Fprintf(os.Stderr, "warning: failed to write run log: %v\n", err)
	}
}
