package osfs_test

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vshell/vshell/capability"
	"github.com/vshell/vshell/capability/osfs"
)

func TestFSReadWriteAppend(t *testing.T) {
	dir := t.TempDir()
	fs := osfs.FS{}
	path := filepath.Join(dir, "f.txt")

	require.NoError(t, fs.WriteFile(path, "hello"))
	data, err := fs.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "hello", data)

	require.NoError(t, fs.AppendFile(path, " world"))
	data, err = fs.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "hello world", data)
}

func TestFSStatAndExists(t *testing.T) {
	dir := t.TempDir()
	fs := osfs.FS{}
	path := filepath.Join(dir, "f.txt")
	require.NoError(t, fs.WriteFile(path, "abc"))

	assert.True(t, fs.Exists(path))
	assert.False(t, fs.Exists(filepath.Join(dir, "missing.txt")))

	stat, err := fs.Stat(path)
	require.NoError(t, err)
	assert.True(t, stat.IsFile)
	assert.Equal(t, float64(3), stat.Size)
}

func TestFSMkdirReaddirRm(t *testing.T) {
	dir := t.TempDir()
	fs := osfs.FS{}
	sub := filepath.Join(dir, "nested", "deeper")

	require.NoError(t, fs.Mkdir(sub, capability.MkdirOpts{Recursive: true}))
	require.NoError(t, fs.WriteFile(filepath.Join(sub, "a.txt"), "x"))

	entries, err := fs.ReadDir(sub)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.txt"}, entries)

	require.NoError(t, fs.Rm(filepath.Join(dir, "nested"), capability.RmOpts{Recursive: true}))
	assert.False(t, fs.Exists(sub))
}

func TestFSRenameAndCopyFile(t *testing.T) {
	dir := t.TempDir()
	fs := osfs.FS{}
	src := filepath.Join(dir, "src.txt")
	require.NoError(t, fs.WriteFile(src, "payload"))

	dst := filepath.Join(dir, "dst.txt")
	require.NoError(t, fs.CopyFile(src, dst))
	data, err := fs.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "payload", data)

	renamed := filepath.Join(dir, "renamed.txt")
	require.NoError(t, fs.Rename(dst, renamed))
	assert.True(t, fs.Exists(renamed))
	assert.False(t, fs.Exists(dst))
}

func TestFSSymlinkReadlink(t *testing.T) {
	dir := t.TempDir()
	fs := osfs.FS{}
	target := filepath.Join(dir, "target.txt")
	require.NoError(t, fs.WriteFile(target, "x"))

	link := filepath.Join(dir, "link.txt")
	require.NoError(t, fs.Symlink(target, link))

	resolved, err := fs.Readlink(link)
	require.NoError(t, err)
	assert.Equal(t, target, resolved)

	lstat, err := fs.Lstat(link)
	require.NoError(t, err)
	assert.True(t, lstat.IsSymlink)
}

func TestFSResolvePath(t *testing.T) {
	fs := osfs.FS{}
	resolved, err := fs.ResolvePath("/home/user", "project/file.txt")
	require.NoError(t, err)
	assert.Equal(t, filepath.Clean("/home/user/project/file.txt"), resolved)

	resolved, err = fs.ResolvePath("/home/user", "/abs/file.txt")
	require.NoError(t, err)
	assert.Equal(t, filepath.Clean("/abs/file.txt"), resolved)
}

func TestHTTPFetcher(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Test", "yes")
		w.WriteHeader(http.StatusTeapot)
		w.Write([]byte("body"))
	}))
	defer server.Close()

	fetcher := osfs.HTTPFetcher{}
	result, err := fetcher.Fetch(server.URL, capability.FetchOpts{Method: "GET"})
	require.NoError(t, err)
	assert.Equal(t, http.StatusTeapot, result.Status)
	assert.Equal(t, "body", result.Body)
}

func TestSubExecutorDelegates(t *testing.T) {
	called := false
	sub := osfs.SubExecutor{Run: func(commandLine, stdin string) (capability.ExecResult, error) {
		called = true
		return capability.ExecResult{Stdout: commandLine + stdin, ExitCode: 0}, nil
	}}
	result, err := sub.Exec("echo hi", "")
	require.NoError(t, err)
	assert.True(t, called)
	assert.Equal(t, "echo hi", result.Stdout)
}

func TestSubExecutorNotConfigured(t *testing.T) {
	sub := osfs.SubExecutor{}
	_, err := sub.Exec("echo hi", "")
	assert.Error(t, err)
}

func TestClockNowMSPositive(t *testing.T) {
	clock := osfs.Clock{}
	first := clock.NowMS()
	assert.Greater(t, first, int64(0))
}
