package gitops

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bankpipe-dev/bankpipe/internal/cmdexec"
)

func newTestRepo(t *testing.T) (*Git, string) {
	t.Helper()
	g := New(cmdexec.System{})
	dir := t.TempDir()
	require.NoError(t, g.Init(dir))
	return g, dir
}

func commitFile(t *testing.T, g *Git, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	_, err := g.CommitAll(dir, "add "+name, "Test", "test@example.com")
	require.NoError(t, err)
}

func TestInitAndIsRepo(t *testing.T) {
	g, dir := newTestRepo(t)
	assert.True(t, g.IsRepo(dir))
	assert.False(t, g.IsRepo(t.TempDir()))
}

func TestCommitAll(t *testing.T) {
	g, dir := newTestRepo(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("hello"), 0o644))

	hash, err := g.CommitAll(dir, "first", "Test", "test@example.com")
	require.NoError(t, err)
	assert.NotEmpty(t, hash)

	changed, err := g.HasChanges(dir)
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestHasChanges(t *testing.T) {
	g, dir := newTestRepo(t)
	commitFile(t, g, dir, "a.txt", "one")

	changed, err := g.HasChanges(dir)
	require.NoError(t, err)
	assert.False(t, changed)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("two"), 0o644))
	changed, err = g.HasChanges(dir)
	require.NoError(t, err)
	assert.True(t, changed)
}

func TestWorktreeLifecycle(t *testing.T) {
	g, dir := newTestRepo(t)
	commitFile(t, g, dir, "a.txt", "one")

	wt := filepath.Join(t.TempDir(), "wt")
	require.NoError(t, g.WorktreeAdd(dir, wt, "feature/x"))
	assert.FileExists(t, filepath.Join(wt, "a.txt"))

	require.NoError(t, g.WorktreeRemove(dir, wt, true))
	assert.NoDirExists(t, wt)
	require.NoError(t, g.DeleteBranch(dir, "feature/x"))
}

func TestWorktreePrune_AfterManualDelete(t *testing.T) {
	g, dir := newTestRepo(t)
	commitFile(t, g, dir, "a.txt", "one")

	wt := filepath.Join(t.TempDir(), "wt")
	require.NoError(t, g.WorktreeAdd(dir, wt, "feature/y"))
	require.NoError(t, os.RemoveAll(wt))

	require.NoError(t, g.WorktreePrune(dir))
	require.NoError(t, g.DeleteBranch(dir, "feature/y"))
}

func TestMergeNoFF(t *testing.T) {
	g, dir := newTestRepo(t)
	commitFile(t, g, dir, "a.txt", "one")

	wt := filepath.Join(t.TempDir(), "wt")
	require.NoError(t, g.WorktreeAdd(dir, wt, "import/batch"))
	commitFile(t, g, wt, "b.txt", "two")
	require.NoError(t, g.WorktreeRemove(dir, wt, true))

	require.NoError(t, g.MergeNoFF(dir, "import/batch", "merge batch", "Test", "test@example.com"))
	assert.FileExists(t, filepath.Join(dir, "b.txt"))
}

func TestCommitAll_NothingToCommit(t *testing.T) {
	g, dir := newTestRepo(t)
	commitFile(t, g, dir, "a.txt", "one")

	_, err := g.CommitAll(dir, "empty", "Test", "test@example.com")
	require.Error(t, err)
}
