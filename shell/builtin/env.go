package builtin

import (
	"strings"

	"github.com/vshell/vshell/shell/exec"
)

func init() {
	exec.RegisterBuiltin("export", export)
	exec.RegisterBuiltin("unset", unset)
	exec.RegisterBuiltin("local", local)
	exec.RegisterBuiltin("read", read)
}

// export sets NAME=value pairs (or leaves an existing value untouched for
// a bare NAME); vshell does not distinguish exported from local bindings,
// so this behaves like a plain assignment (SPEC_FULL.md simplification:
// every ExecState.Env entry is visible to command substitution and nested
// calls, matching how `capability.Executor` implementations see the whole
// environment regardless of export status).
func export(s *exec.ExecState, args []string, _ string) (exec.Result, error) {
	for _, a := range args {
		name, value, hasEq := strings.Cut(a, "=")
		if hasEq {
			s.Env[name] = value
		} else if _, exists := s.Env[name]; !exists {
			s.Env[name] = ""
		}
	}
	return exec.Result{ExitCode: 0}, nil
}

// unset removes NAME from Env, or from Functions if -f is given.
func unset(s *exec.ExecState, args []string, _ string) (exec.Result, error) {
	fn := false
	for _, a := range args {
		if a == "-f" {
			fn = true
			continue
		}
		if a == "-v" {
			fn = false
			continue
		}
		if fn {
			delete(s.Functions, a)
		} else {
			delete(s.Env, a)
		}
	}
	return exec.Result{ExitCode: 0}, nil
}

// local declares NAME=value bindings shadowed to the enclosing function
// call's scope (spec §4.5.1); outside any function call it degrades to a
// plain assignment (ExecState.DeclareLocal's documented fallback).
func local(s *exec.ExecState, args []string, _ string) (exec.Result, error) {
	for _, a := range args {
		name, value, hasEq := strings.Cut(a, "=")
		if !hasEq {
			value = ""
		}
		s.DeclareLocal(name, value)
	}
	return exec.Result{ExitCode: 0}, nil
}

// read assigns the first line of stdin to the given variable names,
// splitting on whitespace (IFS is not consulted) (extra words go into
// the last name, matching bash). With no names, assigns to REPLY.
func read(s *exec.ExecState, args []string, stdin string) (exec.Result, error) {
	names := args
	if len(names) == 0 {
		names = []string{"REPLY"}
	}

	line := stdin
	if idx := strings.IndexByte(stdin, '\n'); idx >= 0 {
		line = stdin[:idx]
	}
	if line == "" && stdin == "" {
		return exec.Result{ExitCode: 1}, nil
	}

	fields := strings.Fields(line)
	for i, name := range names {
		switch {
		case i == len(names)-1:
			s.Env[name] = strings.Join(fields[minInt(i, len(fields)):], " ")
		case i < len(fields):
			s.Env[name] = fields[i]
		default:
			s.Env[name] = ""
		}
	}
	return exec.Result{ExitCode: 0}, nil
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
