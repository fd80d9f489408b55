package worker_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vshell/vshell/sandbox/worker"
)

func compileDefault(t *testing.T) *worker.Policy {
	t.Helper()
	docJSON, err := json.Marshal(worker.DefaultPolicyDocument())
	require.NoError(t, err)
	policy, err := worker.CompilePolicy(docJSON)
	require.NoError(t, err)
	return policy
}

func TestCompilePolicyRejectsMissingRequiredFields(t *testing.T) {
	_, err := worker.CompilePolicy([]byte(`{"hideEnv": true}`))
	assert.Error(t, err)
}

func TestCompilePolicyRejectsInvalidJSON(t *testing.T) {
	_, err := worker.CompilePolicy([]byte(`not json`))
	assert.Error(t, err)
}

func TestCheckFlagsBlockedConstructs(t *testing.T) {
	policy := compileDefault(t)
	violations := policy.Check(policy.NewExecutionID(), `eval("1+1")`)
	require.Len(t, violations, 1)
	assert.Equal(t, worker.ViolationEval, violations[0].Kind)
}

func TestCheckRespectsDisabledControls(t *testing.T) {
	doc := worker.DefaultPolicyDocument()
	doc.BlockEval = false
	docJSON, err := json.Marshal(doc)
	require.NoError(t, err)
	policy, err := worker.CompilePolicy(docJSON)
	require.NoError(t, err)

	violations := policy.Check(policy.NewExecutionID(), `eval("1+1")`)
	assert.Empty(t, violations)
}

func TestCheckRecordsToAuditLog(t *testing.T) {
	policy := compileDefault(t)
	id := policy.NewExecutionID()
	policy.Check(id, `process.env.SECRET`)
	log := policy.AuditLog()
	require.Len(t, log, 1)
	assert.Equal(t, id, log[0].ExecutionID)
	assert.Equal(t, worker.ViolationEnvLeak, log[0].Kind)
}

func TestAuditLogBoundedBySize(t *testing.T) {
	doc := worker.DefaultPolicyDocument()
	doc.AuditLogSize = 2
	docJSON, err := json.Marshal(doc)
	require.NoError(t, err)
	policy, err := worker.CompilePolicy(docJSON)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		policy.Check(policy.NewExecutionID(), `eval("x")`)
	}
	assert.Len(t, policy.AuditLog(), 2)
}

func TestNewExecutionIDDistinct(t *testing.T) {
	policy := compileDefault(t)
	first := policy.NewExecutionID()
	second := policy.NewExecutionID()
	assert.NotEqual(t, first, second)
}

func TestBootstrapVersionPragma(t *testing.T) {
	v, ok := worker.BootstrapVersion("// __JSEXEC_BOOTSTRAP__ v1.2.3\nconsole.log(1)")
	require.True(t, ok)
	assert.Equal(t, "v1.2.3", v)

	_, ok = worker.BootstrapVersion("console.log(1)")
	assert.False(t, ok)
}

func TestCompatibleBootstrap(t *testing.T) {
	bootstrap := "// __JSEXEC_BOOTSTRAP__ v2.0.0\nvoid 0"
	assert.True(t, worker.CompatibleBootstrap(bootstrap, "v1.0.0"))
	assert.False(t, worker.CompatibleBootstrap(bootstrap, "v3.0.0"))
}

func TestDetectModuleMode(t *testing.T) {
	assert.True(t, worker.DetectModuleMode("main.mjs", "1+1"))
	assert.True(t, worker.DetectModuleMode("main.ts", "1+1"))
	assert.False(t, worker.DetectModuleMode("main.js", "1+1"))
	assert.True(t, worker.DetectModuleMode("main.js", "await fetch(x)"))
}

func TestDetectStripTypes(t *testing.T) {
	assert.True(t, worker.DetectStripTypes("main.ts"))
	assert.True(t, worker.DetectStripTypes("main.mts"))
	assert.False(t, worker.DetectStripTypes("main.js"))
}

type fakeRuntime struct {
	result worker.Result
	err    error
	delay  time.Duration
}

func (f *fakeRuntime) Execute(ctx context.Context, source string, opts worker.Options) (worker.Result, error) {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return worker.Result{}, ctx.Err()
		}
	}
	return f.result, f.err
}

func TestHostExecuteReturnsRuntimeResult(t *testing.T) {
	policy := compileDefault(t)
	rt := &fakeRuntime{result: worker.Result{Stdout: "ok", ExitCode: 0}}
	host := worker.NewHost(rt, policy)

	result, err := host.Execute(context.Background(), "console.log(1)", worker.Options{})
	require.NoError(t, err)
	assert.Equal(t, "ok", result.Stdout)
}

func TestHostExecuteRespectsTimeout(t *testing.T) {
	policy := compileDefault(t)
	rt := &fakeRuntime{delay: 200 * time.Millisecond}
	host := worker.NewHost(rt, policy)
	host.ExecutionTimeout = 20 * time.Millisecond

	_, err := host.Execute(context.Background(), "while(true){}", worker.Options{})
	assert.Error(t, err)
}

func TestHostExecuteRepeatedCalls(t *testing.T) {
	policy := compileDefault(t)
	rt := &fakeRuntime{result: worker.Result{ExitCode: 0}}
	host := worker.NewHost(rt, policy)

	for i := 0; i < 10; i++ {
		_, err := host.Execute(context.Background(), "1+1", worker.Options{})
		require.NoError(t, err)
	}
}
