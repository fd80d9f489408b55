package exec

import (
	"strings"

	"github.com/vshell/vshell/internal/invariant"
	"github.com/vshell/vshell/shell/ast"
	"github.com/vshell/vshell/shell/parser"
	"github.com/vshell/vshell/shell/token"
)

// isFunctionDefinition reports whether cmd is a `name() { body }`
// definition, recognized by the parser's brace-compound capture (spec
// §4.5.1).
func isFunctionDefinition(cmd ast.ParsedCommand) bool {
	return strings.HasSuffix(cmd.Command, "()") && len(cmd.Args) == 1 && strings.HasPrefix(cmd.Args[0], "{")
}

// defineFunction registers the function named by cmd.Command, stripping the
// captured brace delimiters down to the raw body source text.
func (s *ExecState) defineFunction(cmd ast.ParsedCommand) Result {
	name := strings.TrimSuffix(cmd.Command, "()")
	body := strings.TrimSuffix(strings.TrimPrefix(cmd.Args[0], "{"), "}")
	s.Functions[name] = &FunctionDef{Name: name, Body: strings.TrimSpace(body)}
	return Result{ExitCode: 0}
}

// callFunction runs a user-defined function body with its own positional
// parameters and local-variable scope, enforcing MaxCallDepth and unwinding
// a `return` signal into a normal Result (spec §4.5.1, invariant P8).
func (s *ExecState) callFunction(fn *FunctionDef, args []string, stdin string) (Result, error) {
	invariant.NotNil(fn, "fn")
	invariant.Precondition(s.CallDepth >= 0, "CallDepth must not be negative, got %d", s.CallDepth)

	if s.CallDepth >= s.MaxCallDepth {
		return Result{}, &ExecutionLimitError{Kind: LimitCallDepth, Name: fn.Name, Max: s.MaxCallDepth}
	}

	tokens, err := token.Tokenize(fn.Body)
	if err != nil {
		return Result{}, err
	}
	pipelines, err := parser.Parse(tokens)
	if err != nil {
		return Result{}, err
	}

	savedPositional := s.snapshotPositional()
	depthOnEntry := s.CallDepth
	s.CallDepth++
	s.PushLocalScope()
	s.SetPositional(args)

	defer func() {
		s.PopLocalScope()
		s.CallDepth--
		invariant.Invariant(s.CallDepth == depthOnEntry, "CallDepth must unwind to %d, got %d", depthOnEntry, s.CallDepth)
		s.restorePositional(savedPositional)
	}()

	res, err := s.runProgram(pipelines, stdin)
	if ret, ok := err.(*ReturnSignal); ok {
		return Result{Stdout: ret.Stdout, Stderr: ret.Stderr, ExitCode: ret.Code}, nil
	}
	return res, err
}

type positionalSnapshot struct {
	values map[string]string
}

func (s *ExecState) snapshotPositional() positionalSnapshot {
	saved := map[string]string{}
	for _, key := range []string{"@", "#"} {
		if v, ok := s.Env[key]; ok {
			saved[key] = v
		}
	}
	for i := 1; i <= 9; i++ {
		key := itoa(uint(i))
		if v, ok := s.Env[key]; ok {
			saved[key] = v
		}
	}
	return positionalSnapshot{values: saved}
}

func (s *ExecState) restorePositional(snap positionalSnapshot) {
	for _, key := range []string{"@", "#"} {
		if v, ok := snap.values[key]; ok {
			s.Env[key] = v
		} else {
			delete(s.Env, key)
		}
	}
	for i := 1; i <= 9; i++ {
		key := itoa(uint(i))
		if v, ok := snap.values[key]; ok {
			s.Env[key] = v
		} else {
			delete(s.Env, key)
		}
	}
}
