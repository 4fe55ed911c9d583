// Package gitops wraps the version-control operations the pipeline
// needs: commits, branches, worktrees, and non-fast-forward merges.
package gitops

import (
	"fmt"
	"strings"

	"github.com/bankpipe-dev/bankpipe/internal/cmdexec"
)

// Git invokes the git CLI through an injectable executor.
type Git struct {
	exec cmdexec.Executor
}

// New creates a Git bound to an executor.
func New(exec cmdexec.Executor) *Git {
	return &Git{exec: exec}
}

func (g *Git) run(dir string, args ...string) (cmdexec.Result, error) {
	res, err := g.exec.Run(dir, "git", args...)
	if err != nil {
		return res, err
	}
	if !res.Ok() {
		return res, fmt.Errorf("git %s: %s", args[0], res.Output())
	}
	return res, nil
}

// Init initializes a new git repository at dir.
func (g *Git) Init(dir string) error {
	_, err := g.run(dir, "init")
	return err
}

// IsRepo reports whether dir is inside a git repository.
func (g *Git) IsRepo(dir string) bool {
	res, err := g.exec.Run(dir, "git", "rev-parse", "--git-dir")
	return err == nil && res.Ok()
}

// CommitAll stages all files and creates a commit. Returns the short
// commit hash.
func (g *Git) CommitAll(dir, message, authorName, authorEmail string) (string, error) {
	if _, err := g.run(dir, "add", "-A"); err != nil {
		return "", err
	}

	ident := []string{
		"-c", "user.name=" + authorName,
		"-c", "user.email=" + authorEmail,
	}
	args := append(ident, "commit", "-m", message,
		"--author", fmt.Sprintf("%s <%s>", authorName, authorEmail))
	if _, err := g.run(dir, args...); err != nil {
		return "", err
	}

	res, err := g.run(dir, "rev-parse", "--short", "HEAD")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(res.Stdout), nil
}

// HasChanges reports whether the working tree has uncommitted changes.
func (g *Git) HasChanges(dir string) (bool, error) {
	res, err := g.run(dir, "status", "--porcelain")
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(res.Stdout) != "", nil
}

// WorktreeAdd creates a linked worktree at path on a new branch.
func (g *Git) WorktreeAdd(repo, path, branch string) error {
	_, err := g.run(repo, "worktree", "add", "-b", branch, path)
	return err
}

// WorktreeRemove removes a linked worktree and prunes stale entries.
func (g *Git) WorktreeRemove(repo, path string, force bool) error {
	args := []string{"worktree", "remove"}
	if force {
		args = append(args, "--force")
	}
	args = append(args, path)
	if _, err := g.run(repo, args...); err != nil {
		return err
	}
	_, err := g.run(repo, "worktree", "prune")
	return err
}

// WorktreePrune drops worktree bookkeeping for paths that no longer
// exist on disk.
func (g *Git) WorktreePrune(repo string) error {
	_, err := g.run(repo, "worktree", "prune")
	return err
}

// DeleteBranch force-deletes a branch.
func (g *Git) DeleteBranch(repo, branch string) error {
	_, err := g.run(repo, "branch", "-D", branch)
	return err
}

// MergeNoFF merges branch into the current branch with a merge commit,
// preserving one commit per import batch in history.
func (g *Git) MergeNoFF(repo, branch, message, authorName, authorEmail string) error {
	_, err := g.run(repo,
		"-c", "user.name="+authorName,
		"-c", "user.email="+authorEmail,
		"merge", "--no-ff", "-m", message, branch)
	return err
}
