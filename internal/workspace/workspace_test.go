package workspace

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bankpipe-dev/bankpipe/internal/cmdexec"
	"github.com/bankpipe-dev/bankpipe/internal/gitops"
)

func newOrigin(t *testing.T) (*gitops.Git, string) {
	t.Helper()
	g := gitops.New(cmdexec.System{})
	dir := t.TempDir()
	require.NoError(t, g.Init(dir))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("seed"), 0o644))
	_, err := g.CommitAll(dir, "seed", "Test", "test@example.com")
	require.NoError(t, err)
	return g, dir
}

func TestCreateAndRemove(t *testing.T) {
	g, origin := newOrigin(t)

	ws, err := Create(g, origin)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ws.Remove() })

	assert.Len(t, ws.ID, 8)
	assert.True(t, strings.HasPrefix(filepath.Base(ws.Path), dirPrefix))
	assert.Equal(t, branchPrefix+ws.ID, ws.Branch)
	assert.FileExists(t, filepath.Join(ws.Path, "a.txt"))

	require.NoError(t, ws.Remove())
	assert.NoDirExists(t, ws.Path)

	// The branch is gone too: creating it again must succeed.
	require.NoError(t, g.WorktreeAdd(origin, filepath.Join(t.TempDir(), "wt"), ws.Branch))
}

func TestCreate_UniquePerRun(t *testing.T) {
	g, origin := newOrigin(t)

	a, err := Create(g, origin)
	require.NoError(t, err)
	defer a.Remove()
	b, err := Create(g, origin)
	require.NoError(t, err)
	defer b.Remove()

	assert.NotEqual(t, a.ID, b.ID)
	assert.NotEqual(t, a.Path, b.Path)
}

func TestRemove_AfterManualDelete(t *testing.T) {
	g, origin := newOrigin(t)

	ws, err := Create(g, origin)
	require.NoError(t, err)
	require.NoError(t, os.RemoveAll(ws.Path))

	// Remove falls back to pruning when the worktree dir is gone.
	require.NoError(t, ws.Remove())
}

func TestSweep(t *testing.T) {
	g, origin := newOrigin(t)

	stale, err := Create(g, origin)
	require.NoError(t, err)
	fresh, err := Create(g, origin)
	require.NoError(t, err)
	t.Cleanup(func() { _ = fresh.Remove() })

	old := time.Now().Add(-72 * time.Hour)
	require.NoError(t, os.Chtimes(stale.Path, old, old))

	removed, err := Sweep(g, origin, 48*time.Hour, time.Now())
	require.NoError(t, err)

	assert.Contains(t, removed, stale.ID)
	assert.NotContains(t, removed, fresh.ID)
	assert.NoDirExists(t, stale.Path)
	assert.DirExists(t, fresh.Path)
}

func TestSweep_NothingStale(t *testing.T) {
	g, origin := newOrigin(t)

	ws, err := Create(g, origin)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ws.Remove() })

	removed, err := Sweep(g, origin, 48*time.Hour, time.Now())
	require.NoError(t, err)
	assert.NotContains(t, removed, ws.ID)
}
