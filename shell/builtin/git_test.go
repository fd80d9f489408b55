package builtin_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vshell/vshell/capability/osfs"
	_ "github.com/vshell/vshell/shell/builtin"
	"github.com/vshell/vshell/shell/exec"
)

func newTestState(t *testing.T) *exec.ExecState {
	t.Helper()
	dir := t.TempDir()
	state := exec.NewExecState(osfs.FS{}, nil, nil, osfs.Clock{})
	state.Cwd = dir
	state.Env["GIT_AUTHOR_NAME"] = "Ada"
	state.Env["GIT_AUTHOR_EMAIL"] = "ada@example.com"
	return state
}

func runGit(t *testing.T, state *exec.ExecState, args ...string) exec.Result {
	t.Helper()
	fn, ok := exec.LookupBuiltin("git")
	require.True(t, ok)
	result, err := fn(state, args, "")
	require.NoError(t, err)
	return result
}

func TestGitInitReportsInitialized(t *testing.T) {
	state := newTestState(t)
	result := runGit(t, state, "init")
	assert.Equal(t, 0, result.ExitCode)
	assert.Contains(t, result.Stdout, "Initialized empty Git repository")
}

func TestGitInitTwiceIsIdempotentOutput(t *testing.T) {
	state := newTestState(t)
	runGit(t, state, "init")
	result := runGit(t, state, "init")
	assert.Equal(t, 0, result.ExitCode)
	assert.Contains(t, result.Stdout, "Reinitialized")
}

func TestGitAddCommitLog(t *testing.T) {
	state := newTestState(t)
	runGit(t, state, "init")

	require.NoError(t, state.FS.WriteFile(state.Cwd+"/a.txt", "hello"))
	addResult := runGit(t, state, "add", "a.txt")
	assert.Equal(t, 0, addResult.ExitCode)

	commitResult := runGit(t, state, "commit", "-m", "first commit")
	assert.Equal(t, 0, commitResult.ExitCode)
	assert.Contains(t, commitResult.Stdout, "first commit")

	logResult := runGit(t, state, "log", "--oneline")
	assert.Equal(t, 0, logResult.ExitCode)
	assert.Contains(t, logResult.Stdout, "first commit")
}

func TestGitCommitWithoutRepoFails(t *testing.T) {
	state := newTestState(t)
	result := runGit(t, state, "commit", "-m", "no repo yet")
	assert.Equal(t, 128, result.ExitCode)
}

func TestGitUnknownSubcommand(t *testing.T) {
	state := newTestState(t)
	runGit(t, state, "init")
	result := runGit(t, state, "frobnicate")
	assert.Equal(t, 1, result.ExitCode)
}

func TestGitBranchAndCheckout(t *testing.T) {
	state := newTestState(t)
	runGit(t, state, "init")
	require.NoError(t, state.FS.WriteFile(state.Cwd+"/a.txt", "hello"))
	runGit(t, state, "add", "a.txt")
	runGit(t, state, "commit", "-m", "first")

	branchResult := runGit(t, state, "branch", "feature")
	assert.Equal(t, 0, branchResult.ExitCode)

	checkoutResult := runGit(t, state, "checkout", "feature")
	assert.Equal(t, 0, checkoutResult.ExitCode)
}
