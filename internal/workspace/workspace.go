// Package workspace manages the isolated, branch-backed worktrees that
// stage an import so failures never touch permanent ledger history.
package workspace

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bankpipe-dev/bankpipe/internal/gitops"
	"github.com/bankpipe-dev/bankpipe/internal/id"
)

const (
	dirPrefix    = "bankpipe-"
	branchPrefix = "bankpipe/"
)

// Context is one isolated workspace: a linked git worktree on its own
// uniquely-named branch. It must never outlive the pipeline run that
// created it; every code path removes it before returning.
type Context struct {
	ID     string
	Path   string
	Branch string
	Origin string

	git *gitops.Git
}

// Create allocates a fresh workspace for origin under the system temp
// directory. The unique id makes sequential runs safe without locking.
func Create(git *gitops.Git, origin string) (*Context, error) {
	uid := id.New()
	ctx := &Context{
		ID:     uid,
		Path:   filepath.Join(os.TempDir(), dirPrefix+uid),
		Branch: branchPrefix + uid,
		Origin: origin,
		git:    git,
	}
	if err := git.WorktreeAdd(origin, ctx.Path, ctx.Branch); err != nil {
		return nil, fmt.Errorf("creating workspace: %w", err)
	}
	return ctx, nil
}

// Remove tears down the worktree and its branch. Best-effort: all
// failures are collected into the returned error for reporting, and
// callers never escalate it.
func (c *Context) Remove() error {
	var problems []string

	if err := c.git.WorktreeRemove(c.Origin, c.Path, true); err != nil {
		if rmErr := os.RemoveAll(c.Path); rmErr != nil {
			problems = append(problems, rmErr.Error())
		}
		if pruneErr := c.git.WorktreePrune(c.Origin); pruneErr != nil {
			problems = append(problems, pruneErr.Error())
		}
	}

	if err := c.git.DeleteBranch(c.Origin, c.Branch); err != nil {
		problems = append(problems, err.Error())
	}

	if len(problems) > 0 {
		return fmt.Errorf("removing workspace %s: %s", c.ID, strings.Join(problems, "; "))
	}
	return nil
}

// Sweep removes leftover workspaces for origin older than maxAge. This
// is the post-hoc recovery path for runs that died before cleanup.
// Returns the ids that were removed.
func Sweep(git *gitops.Git, origin string, maxAge time.Duration, now time.Time) ([]string, error) {
	entries, err := os.ReadDir(os.TempDir())
	if err != nil {
		return nil, fmt.Errorf("reading temp dir: %w", err)
	}

	var removed []string
	for _, e := range entries {
		if !e.IsDir() || !strings.HasPrefix(e.Name(), dirPrefix) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if now.Sub(info.ModTime()) < maxAge {
			continue
		}

		uid := strings.TrimPrefix(e.Name(), dirPrefix)
		ctx := &Context{
			ID:     uid,
			Path:   filepath.Join(os.TempDir(), e.Name()),
			Branch: branchPrefix + uid,
			Origin: origin,
			git:    git,
		}
		// Stale branch deletion can fail when the workspace belongs
		// to another repository; the directory removal still counts.
		_ = ctx.Remove()
		removed = append(removed, uid)
	}
	return removed, nil
}
