// Package cmdexec abstracts external process invocation so the pipeline
// can be tested against scripted outputs instead of real binaries.
package cmdexec

import (
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// Result captures one subprocess invocation.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Executor runs an argument vector in a working directory. A non-zero
// exit is reported through Result.ExitCode, not the error; the error is
// reserved for failures to run the process at all.
type Executor interface {
	Run(dir, name string, args ...string) (Result, error)
}

// Func adapts a function to the Executor interface, for tests.
type Func func(dir, name string, args ...string) (Result, error)

// Run calls f.
func (f Func) Run(dir, name string, args ...string) (Result, error) {
	return f(dir, name, args...)
}

// System is the real Executor backed by os/exec. Calls block until the
// subprocess exits; no timeout is enforced at this layer.
type System struct{}

// Run executes name with args in dir.
func (System) Run(dir, name string, args ...string) (Result, error) {
	cmd := exec.Command(name, args...)
	cmd.Dir = dir

	var stdout, stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := Result{Stdout: stdout.String(), Stderr: stderr.String()}

	var exitErr *exec.ExitError
	switch {
	case err == nil:
		return res, nil
	case errors.As(err, &exitErr):
		res.ExitCode = exitErr.ExitCode()
		return res, nil
	default:
		return res, fmt.Errorf("running %s: %w", name, err)
	}
}

// Ok reports whether the process exited zero.
func (r Result) Ok() bool {
	return r.ExitCode == 0
}

// Output returns stderr when present, stdout otherwise. Useful for
// surfacing failure text from tools that write diagnostics to either.
func (r Result) Output() string {
	if s := strings.TrimSpace(r.Stderr); s != "" {
		return s
	}
	return strings.TrimSpace(r.Stdout)
}
