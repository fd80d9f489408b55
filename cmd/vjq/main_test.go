package main

import (
	"io"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

// withStdin replaces os.Stdin for the duration of fn with a pipe fed by data.
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

func TestRunFiltersStdinInput(t *testing.T) {
	withStdin(t, `{"a":1,"b":2}`)
	var code int
	out := captureStdout(t, func() {
		code = run([]string{".a"})
	})
	require.Equal(t, 0, code)
	require.Equal(t, "1\n", out)
}

func TestRunRawOutput(t *testing.T) {
	withStdin(t, `"hello"`)
	var code int
	out := captureStdout(t, func() {
		code = run([]string{"-r", "."})
	})
	require.Equal(t, 0, code)
	require.Equal(t, "hello\n", out)
}

func TestRunNullInputSkipsStdin(t *testing.T) {
	var code int
	out := captureStdout(t, func() {
		code = run([]string{"-n", "1+1"})
	})
	require.Equal(t, 0, code)
	require.Equal(t, "2\n", out)
}

func TestRunSlurpWrapsAllInputs(t *testing.T) {
	withStdin(t, "1\n2\n3\n")
	var code int
	out := captureStdout(t, func() {
		code = run([]string{"--slurp", "-c", "."})
	})
	require.Equal(t, 0, code)
	require.Equal(t, "[1,2,3]\n", out)
}

func TestRunBadProgramExitsTwo(t *testing.T) {
	withStdin(t, "null")
	code := run([]string{"("})
	require.Equal(t, 2, code)
}

func TestRunArgBinding(t *testing.T) {
	withStdin(t, "null")
	var code int
	out := captureStdout(t, func() {
		code = run([]string{"--arg", "name", "Ada", "-r", "$name"})
	})
	require.Equal(t, 0, code)
	require.Equal(t, "Ada\n", out)
}

func TestRunArgjsonBinding(t *testing.T) {
	withStdin(t, "null")
	var code int
	out := captureStdout(t, func() {
		code = run([]string{"--argjson", "n", "42", "-c", "$n"})
	})
	require.Equal(t, 0, code)
	require.Equal(t, "42\n", out)
}
