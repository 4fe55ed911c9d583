package model

// StepStatus is the outcome of a single pipeline step.
type StepStatus string

const (
	StepOK      StepStatus = "ok"
	StepFailed  StepStatus = "failed"
	StepSkipped StepStatus = "skipped"
)

// Step names, in the order the pipeline runs them.
const (
	StepCreateWorkspace = "create-workspace"
	StepClassify        = "classify"
	StepDeclareAccounts = "declare-accounts"
	StepDryRun          = "dry-run"
	StepImport          = "import"
	StepReconcile       = "reconcile"
	StepMerge           = "merge"
	StepCleanup         = "cleanup"
)

// StepResult records the outcome of one pipeline step.
type StepResult struct {
	Name    string
	Status  StepStatus
	Message string
	Details map[string]string
}

// PipelineResult is the ordered record of a full pipeline run.
// It is built incrementally while the run executes and never
// mutated after being returned.
type PipelineResult struct {
	RunID   string
	Steps   []StepResult
	Success bool
	Summary string
	Error   string
	Hint    string
}

// Step returns the recorded result for a step name, if present.
func (r *PipelineResult) Step(name string) (StepResult, bool) {
	for _, s := range r.Steps {
		if s.Name == name {
			return s, true
		}
	}
	return StepResult{}, false
}
