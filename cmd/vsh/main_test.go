package main

import (
	"io"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vshell/vshell/shell/exec"
)

func captureStdout(t *testing.T, fn func()) string {
	t.Helper()
	r, w, err := os.Pipe()
	require.NoError(t, err)
	original := os.Stdout
	os.Stdout = w
	fn()
	os.Stdout = original
	require.NoError(t, w.Close())
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	return string(data)
}

func TestRunCommandFlag(t *testing.T) {
	var code int
	out := captureStdout(t, func() {
		code = run([]string{"-c", "echo hi"})
	})
	require.Equal(t, 0, code)
	require.Equal(t, "hi\n", out)
}

func TestRunCommandFlagPropagatesExitCode(t *testing.T) {
	code := run([]string{"-c", "false"})
	require.Equal(t, 1, code)
}

func TestRunScriptFileSetsPositional(t *testing.T) {
	dir := t.TempDir()
	scriptPath := dir + "/script.sh"
	require.NoError(t, os.WriteFile(scriptPath, []byte("echo $1"), 0o644))

	var code int
	out := captureStdout(t, func() {
		code = run([]string{scriptPath, "first-arg"})
	})
	require.Equal(t, 0, code)
	require.Equal(t, "first-arg\n", out)
}

func TestRunMissingScriptFileExits127(t *testing.T) {
	code := run([]string{"/no/such/script.sh"})
	require.Equal(t, 127, code)
}

func TestExitForErrorMapping(t *testing.T) {
	require.Equal(t, 127, exitForError(&exec.NotFoundError{Path: "nope"}))
	require.Equal(t, 129, exitForError(&exec.UnknownOptionError{Option: "-z"}))
	require.Equal(t, 1, exitForError(require.AnError))
}
