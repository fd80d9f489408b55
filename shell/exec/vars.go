package exec

// varsAdapter satisfies expand.Vars by reading/writing ExecState.Env,
// keeping shell/expand free of any dependency on shell/exec (see that
// package's doc comment).
type varsAdapter struct {
	state *ExecState
}

func (v varsAdapter) Lookup(name string) (string, bool) {
	val, ok := v.state.Env[name]
	return val, ok
}

func (v varsAdapter) Set(name, value string) {
	v.state.Env[name] = value
}

// runnerAdapter satisfies expand.CommandRunner by recursing into the same
// ExecState's command-substitution path (spec §4.3 step 4, §5
// "changes within $(...) do not escape").
type runnerAdapter struct {
	state *ExecState
}

func (r runnerAdapter) RunCapture(commandLine string) (string, int, error) {
	child := r.state.Clone()
	res, err := child.Execute(commandLine, "")
	if err != nil {
		return "", 1, err
	}
	return res.Stdout, res.ExitCode, nil
}
