package exec

import "sort"

// BuiltinFunc implements one shell builtin. It receives the already-expanded
// argument vector (builtin name excluded), the command's stdin, and the
// ExecState it mutates (cwd, env, exit status side effects), and returns a
// Result the way any external command would (spec §4.5, GLOSSARY
// "Builtin").
type BuiltinFunc func(s *ExecState, args []string, stdin string) (Result, error)

var builtins = map[string]BuiltinFunc{}

// RegisterBuiltin installs a builtin under name. Called from shell/builtin's
// package init() so the registry stays decoupled from the implementations
// (avoids an import cycle: shell/builtin depends on shell/exec, not the
// other way around).
func RegisterBuiltin(name string, fn BuiltinFunc) {
	builtins[name] = fn
}

// LookupBuiltin reports whether name is a registered builtin.
func LookupBuiltin(name string) (BuiltinFunc, bool) {
	fn, ok := builtins[name]
	return fn, ok
}

// BuiltinNames returns every registered builtin name, sorted, for
// command-not-found "did you mean" suggestions.
func BuiltinNames() []string {
	names := make([]string, 0, len(builtins))
	for n := range builtins {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
