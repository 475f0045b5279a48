package gitrepo

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newFixtureRepo creates a repository with two commits: the first tagged
// v1.0.0, the second left on the default branch.
func newFixtureRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)

	wt, err := repo.Worktree()
	require.NoError(t, err)

	sig := &object.Signature{Name: "test", Email: "test@example.com", When: time.Now()}

	require.NoError(t, os.WriteFile(filepath.Join(dir, "VERSION"), []byte("1.0.0\n"), 0o600))
	_, err = wt.Add("VERSION")
	require.NoError(t, err)
	first, err := wt.Commit("release 1.0.0", &git.CommitOptions{Author: sig})
	require.NoError(t, err)

	_, err = repo.CreateTag("v1.0.0", first, nil)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "VERSION"), []byte("1.1.0-dev\n"), 0o600))
	_, err = wt.Add("VERSION")
	require.NoError(t, err)
	_, err = wt.Commit("start 1.1.0", &git.CommitOptions{Author: sig})
	require.NoError(t, err)

	return dir
}

func TestOpen_NotARepo(t *testing.T) {
	_, err := Open(t.TempDir())
	require.Error(t, err)
}

func TestCurrentBranch(t *testing.T) {
	dir := newFixtureRepo(t)
	repo, err := Open(dir)
	require.NoError(t, err)

	branch, err := repo.CurrentBranch()
	require.NoError(t, err)
	assert.Equal(t, "master", branch)
}

func TestMaterialize_Tag(t *testing.T) {
	dir := newFixtureRepo(t)
	repo, err := Open(dir)
	require.NoError(t, err)

	dest := filepath.Join(t.TempDir(), "v1.0.0")
	require.NoError(t, repo.Materialize("v1.0.0", dest))

	data, err := os.ReadFile(filepath.Join(dest, "VERSION"))
	require.NoError(t, err)
	assert.Equal(t, "1.0.0\n", string(data))
}

func TestMaterialize_Branch(t *testing.T) {
	dir := newFixtureRepo(t)
	repo, err := Open(dir)
	require.NoError(t, err)

	dest := filepath.Join(t.TempDir(), "master")
	require.NoError(t, repo.Materialize("master", dest))

	data, err := os.ReadFile(filepath.Join(dest, "VERSION"))
	require.NoError(t, err)
	assert.Equal(t, "1.1.0-dev\n", string(data))
}

func TestMaterialize_CleansDestination(t *testing.T) {
	dir := newFixtureRepo(t)
	repo, err := Open(dir)
	require.NoError(t, err)

	dest := filepath.Join(t.TempDir(), "out")
	require.NoError(t, os.MkdirAll(dest, 0o750))
	stale := filepath.Join(dest, "stale.html")
	require.NoError(t, os.WriteFile(stale, []byte("old"), 0o600))

	require.NoError(t, repo.Materialize("v1.0.0", dest))

	_, err = os.Stat(stale)
	assert.True(t, os.IsNotExist(err), "stale file should have been removed")
}

func TestMaterialize_UnknownRef(t *testing.T) {
	dir := newFixtureRepo(t)
	repo, err := Open(dir)
	require.NoError(t, err)

	err = repo.Materialize("v9.9.9", filepath.Join(t.TempDir(), "x"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no branch or tag")
}
