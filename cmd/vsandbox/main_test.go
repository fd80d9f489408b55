package main

import (
	"io"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func withStdin(t *testing.T, data string) {
	t.Helper()
	r, w, err := os.Pipe()
	require.NoError(t, err)
	_, err = w.WriteString(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	original := os.Stdin
	os.Stdin = r
	t.Cleanup(func() { os.Stdin = original })
}

func captureStderr(t *testing.T, fn func()) string {
	t.Helper()
	r, w, err := os.Pipe()
	require.NoError(t, err)
	original := os.Stderr
	os.Stderr = w
	fn()
	os.Stderr = original
	require.NoError(t, w.Close())
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	return string(data)
}

// No example runtime (e.g. node) is assumed present in the test
// environment, so every path below exercises the
// ErrRuntimeNotConfigured branch deterministically.

func TestRunSandboxEvalFlagNoRuntimeConfigured(t *testing.T) {
	var code int
	errOut := captureStderr(t, func() {
		code = run([]string{"-c", "1+1"})
	})
	require.Equal(t, 1, code)
	require.Contains(t, errOut, "no JS runtime configured")
}

func TestRunSandboxReadsStdinWhenNoArgs(t *testing.T) {
	withStdin(t, "console.log(1)")
	var code int
	errOut := captureStderr(t, func() {
		code = run(nil)
	})
	require.Equal(t, 1, code)
	require.Contains(t, errOut, "no JS runtime configured")
}

func TestRunSandboxMissingFileExits127(t *testing.T) {
	code := run([]string{"/no/such/file.js"})
	require.Equal(t, 127, code)
}

func TestRunSandboxMissingBootstrapFileExits127(t *testing.T) {
	code := run([]string{"--bootstrap-file", "/no/such/bootstrap.js", "-c", "1+1"})
	require.Equal(t, 127, code)
}
