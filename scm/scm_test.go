package scm_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vshell/vshell/capability/osfs"
	"github.com/vshell/vshell/scm"
)

func TestInitOpenRoundTrip(t *testing.T) {
	dir := t.TempDir()
	repo, err := scm.Init(osfs.FS{}, dir, "Ada", "ada@example.com")
	require.NoError(t, err)
	require.NoError(t, repo.Save(osfs.FS{}))

	reopened, err := scm.Open(osfs.FS{}, dir)
	require.NoError(t, err)
	assert.Equal(t, repo.Config.AuthorName, reopened.Config.AuthorName)
	assert.Equal(t, repo.HEAD, reopened.HEAD)
}

func TestInitTwiceFails(t *testing.T) {
	dir := t.TempDir()
	_, err := scm.Init(osfs.FS{}, dir, "Ada", "ada@example.com")
	require.NoError(t, err)

	_, err = scm.Init(osfs.FS{}, dir, "Ada", "ada@example.com")
	require.Error(t, err)
	var already *scm.AlreadyInitializedError
	assert.ErrorAs(t, err, &already)
}

func TestOpenWithoutInitFails(t *testing.T) {
	_, err := scm.Open(osfs.FS{}, t.TempDir())
	require.Error(t, err)
	var notInit *scm.NotInitializedError
	assert.ErrorAs(t, err, &notInit)
}

func TestAddCommitLogCatFile(t *testing.T) {
	dir := t.TempDir()
	fs := osfs.FS{}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("hello"), 0o644))

	repo, err := scm.Init(osfs.FS{}, dir, "Ada", "ada@example.com")
	require.NoError(t, err)

	require.NoError(t, repo.Add(fs, dir, []string{"a.txt"}))
	commit, err := repo.Commit("first commit", "Ada", "ada@example.com", 1000)
	require.NoError(t, err)
	assert.Empty(t, commit.Parent)

	head, ok := repo.HeadCommit()
	require.True(t, ok)
	assert.Equal(t, commit.Hash, head)

	log := repo.Log(scm.LogOptions{})
	require.Len(t, log, 1)
	assert.Equal(t, "first commit", log[0].Message)

	out, err := repo.CatFile("HEAD")
	require.NoError(t, err)
	assert.Contains(t, out, "a.txt")
}

func TestCommitChainsParents(t *testing.T) {
	dir := t.TempDir()
	fs := osfs.FS{}
	repo, err := scm.Init(osfs.FS{}, dir, "Ada", "ada@example.com")
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("v1"), 0o644))
	require.NoError(t, repo.Add(fs, dir, []string{"a.txt"}))
	first, err := repo.Commit("v1", "Ada", "ada@example.com", 1000)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("v2"), 0o644))
	require.NoError(t, repo.Add(fs, dir, []string{"a.txt"}))
	second, err := repo.Commit("v2", "Ada", "ada@example.com", 2000)
	require.NoError(t, err)

	assert.Equal(t, first.Hash, second.Parent)

	log := repo.Log(scm.LogOptions{})
	require.Len(t, log, 2)
	assert.Equal(t, "v2", log[0].Message)
	assert.Equal(t, "v1", log[1].Message)
}

func TestCommitEmptyIndexFails(t *testing.T) {
	dir := t.TempDir()
	repo, err := scm.Init(osfs.FS{}, dir, "Ada", "ada@example.com")
	require.NoError(t, err)

	_, err = repo.Commit("nothing", "Ada", "ada@example.com", 1000)
	assert.Error(t, err)
}

func TestContentHashDeterministic(t *testing.T) {
	data := []byte("same bytes every time")
	assert.Equal(t, scm.ContentHash(data, false), scm.ContentHash(data, false))
	assert.Len(t, scm.ContentHash(data, false), 40)
	assert.Len(t, scm.ContentHash(data, true), 40)
	assert.NotEqual(t, scm.ContentHash(data, false), scm.ContentHash(data, true))
}

func TestBranchAndCheckout(t *testing.T) {
	dir := t.TempDir()
	fs := osfs.FS{}
	repo, err := scm.Init(osfs.FS{}, dir, "Ada", "ada@example.com")
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("v1"), 0o644))
	require.NoError(t, repo.Add(fs, dir, []string{"a.txt"}))
	_, err = repo.Commit("v1", "Ada", "ada@example.com", 1000)
	require.NoError(t, err)

	require.NoError(t, repo.Branch("feature"))
	require.NoError(t, repo.Checkout("feature"))
	assert.Equal(t, "refs/heads/feature", repo.HEAD)

	err = repo.Checkout("does-not-exist")
	assert.Error(t, err)
}

func TestLogGrepFilter(t *testing.T) {
	dir := t.TempDir()
	fs := osfs.FS{}
	repo, err := scm.Init(osfs.FS{}, dir, "Ada", "ada@example.com")
	require.NoError(t, err)

	for i, msg := range []string{"fix login bug", "add dashboard widget"} {
		path := filepath.Join(dir, "f"+string(rune('0'+i))+".txt")
		require.NoError(t, os.WriteFile(path, []byte(msg), 0o644))
		require.NoError(t, repo.Add(fs, dir, []string{filepath.Base(path)}))
		_, err := repo.Commit(msg, "Ada", "ada@example.com", int64(1000+i))
		require.NoError(t, err)
	}

	matches := repo.Log(scm.LogOptions{Grep: "login"})
	require.Len(t, matches, 1)
	assert.Equal(t, "fix login bug", matches[0].Message)
}

func TestExportImportConfigYAML(t *testing.T) {
	dir := t.TempDir()
	repo, err := scm.Init(osfs.FS{}, dir, "Ada", "ada@example.com")
	require.NoError(t, err)

	data, err := repo.ExportConfigYAML()
	require.NoError(t, err)
	assert.Contains(t, string(data), "Ada")

	repo.Config.AuthorName = "Grace"
	require.NoError(t, repo.ImportConfigYAML(data))
	assert.Equal(t, "Ada", repo.Config.AuthorName)
}
