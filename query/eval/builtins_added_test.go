package eval_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vshell/vshell/query/eval"
	"github.com/vshell/vshell/query/parser"
	"github.com/vshell/vshell/query/value"
)

func runProgram(t *testing.T, program, inputJSON string) []value.Value {
	t.Helper()
	node, err := parser.Parse(program)
	require.NoError(t, err)
	input, rest, err := value.Parse(inputJSON)
	require.NoError(t, err)
	require.Empty(t, rest)

	ev := eval.New()
	out, err := ev.Run(node, input)
	require.NoError(t, err)
	return out
}

func TestTrimFamily(t *testing.T) {
	out := runProgram(t, `.|trim`, `"  padded  "`)
	require.Len(t, out, 1)
	assert.Equal(t, "padded", out[0].S)

	out = runProgram(t, `.|ltrim`, `"  padded  "`)
	require.Len(t, out, 1)
	assert.Equal(t, "padded  ", out[0].S)

	out = runProgram(t, `.|rtrim`, `"  padded  "`)
	require.Len(t, out, 1)
	assert.Equal(t, "  padded", out[0].S)
}

func TestExplodeImplodeRoundTrip(t *testing.T) {
	out := runProgram(t, `.|explode|implode`, `"hello"`)
	require.Len(t, out, 1)
	assert.Equal(t, "hello", out[0].S)
}

func TestExplodeReturnsCodepoints(t *testing.T) {
	out := runProgram(t, `.|explode`, `"AB"`)
	require.Len(t, out, 1)
	require.Len(t, out[0].A, 2)
	assert.Equal(t, float64(65), out[0].A[0].N)
	assert.Equal(t, float64(66), out[0].A[1].N)
}

func TestStreamBinaryRoundTrip(t *testing.T) {
	out := runProgram(t, `.|tostreamb64|fromstreamb64`, `{"a":1,"b":[2,3]}`)
	require.Len(t, out, 1)
	rebuilt := out[0]
	require.Len(t, rebuilt.A, 1)
	obj := rebuilt.A[0]
	a, ok := obj.O.Get("a")
	require.True(t, ok)
	assert.Equal(t, float64(1), a.N)
	b, ok := obj.O.Get("b")
	require.True(t, ok)
	require.Len(t, b.A, 2)
	assert.Equal(t, float64(2), b.A[0].N)
	assert.Equal(t, float64(3), b.A[1].N)
}

func TestStreamBinaryPreservesFractionalNumber(t *testing.T) {
	out := runProgram(t, `.|tostreamb64|fromstreamb64`, `3.14159265358979`)
	require.Len(t, out, 1)
	rebuilt := out[0]
	require.Len(t, rebuilt.A, 1)
	assert.InDelta(t, 3.14159265358979, rebuilt.A[0].N, 1e-12)
}

func TestAsciiUpcaseDowncase(t *testing.T) {
	out := runProgram(t, `.|ascii_upcase`, `"shout"`)
	require.Len(t, out, 1)
	assert.Equal(t, "SHOUT", out[0].S)

	out = runProgram(t, `.|ascii_downcase`, `"SHOUT"`)
	require.Len(t, out, 1)
	assert.Equal(t, "shout", out[0].S)
}
