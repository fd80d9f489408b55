// Package exec implements the shell executor: ExecState, function calls,
// pipeline/chain dispatch, redirections, and the builtin command registry
// (spec §3 ExecState, §4.5 Executor).
package exec

import (
	"strconv"

	"github.com/vshell/vshell/capability"
)

// FunctionDef is a user-defined shell function body, captured as raw source
// text the way compound commands are (GLOSSARY "Compound command").
type FunctionDef struct {
	Name string
	Body string
}

// localEntry records the previous binding of a name shadowed by `local`,
// so unwinding the scope can restore it. A nil Value means the name was
// previously unset (spec §3 ExecState.local_scopes).
type localEntry struct {
	Name    string
	Value   *string
	existed bool
}

// ExecState is the process-wide mutable interpreter state (spec §3).
type ExecState struct {
	Env           map[string]string
	Functions     map[string]*FunctionDef
	localScopes   [][]localEntry
	CallDepth     uint
	MaxCallDepth  uint
	// MaxLoopIterations bounds while/for iterations the same way
	// MaxCallDepth bounds recursion (ExecutionLimitKind.LimitIterations,
	// SPEC_FULL.md supplement).
	MaxLoopIterations uint
	Cwd           string
	LastStatus    int

	// Shell options (SPEC_FULL.md supplement: glob/set options live here so
	// the executor, expander, and glob matcher share one source of truth).
	Options ShellOptions

	FS       capability.FileSystem
	Fetcher  capability.Fetcher
	SubExec  capability.Executor
	Clock    capability.Clock
}

// ShellOptions holds the `set -e`/`-u`/`-o pipefail` flags and the
// glob-option flags spec.md's Expander and Glob matcher sections reference
// by name.
type ShellOptions struct {
	Globstar     bool
	Nullglob     bool
	Failglob     bool
	Dotglob      bool
	Extglob      bool
	GlobIgnore   string
	GlobSkipDots bool // default true
	ErrExit      bool // set -e (SPEC_FULL.md decided Open Question)
	PipeFail     bool // set -o pipefail
	NoUnset      bool // set -u
}

// NewExecState constructs a fresh ExecState with sane defaults.
func NewExecState(fs capability.FileSystem, fetcher capability.Fetcher, sub capability.Executor, clock capability.Clock) *ExecState {
	return &ExecState{
		Env:               map[string]string{},
		Functions:         map[string]*FunctionDef{},
		MaxCallDepth:      1000,
		MaxLoopIterations: 100000,
		Options:           ShellOptions{GlobSkipDots: true},
		Cwd:               "/",
		FS:                fs,
		Fetcher:           fetcher,
		SubExec:           sub,
		Clock:             clock,
	}
}

// Clone returns a copy-on-write snapshot of env/functions for a child
// executor session (command substitution never lets writes escape, spec §5
// "Shared-resource policy").
func (s *ExecState) Clone() *ExecState {
	clone := &ExecState{
		Env:               make(map[string]string, len(s.Env)),
		Functions:         make(map[string]*FunctionDef, len(s.Functions)),
		MaxCallDepth:      s.MaxCallDepth,
		MaxLoopIterations: s.MaxLoopIterations,
		Options:           s.Options,
		Cwd:               s.Cwd,
		LastStatus:        s.LastStatus,
		FS:                s.FS,
		Fetcher:           s.Fetcher,
		SubExec:           s.SubExec,
		Clock:             s.Clock,
	}
	for k, v := range s.Env {
		clone.Env[k] = v
	}
	for k, v := range s.Functions {
		clone.Functions[k] = v
	}
	return clone
}

// SetPositional replaces "1".."n", "@", "#" from args.
func (s *ExecState) SetPositional(args []string) {
	for i, a := range args {
		s.Env[strconv.Itoa(i+1)] = a
	}
	s.Env["@"] = joinSpace(args)
	s.Env["#"] = strconv.Itoa(len(args))
}

func joinSpace(args []string) string {
	out := ""
	for i, a := range args {
		if i > 0 {
			out += " "
		}
		out += a
	}
	return out
}

// PushLocalScope starts a new `local` shadowing frame.
func (s *ExecState) PushLocalScope() {
	s.localScopes = append(s.localScopes, nil)
}

// DeclareLocal records NAME's previous binding (or absence) in the current
// scope, then sets NAME=value. Must be called before overwriting (spec §3,
// §4.5.1).
func (s *ExecState) DeclareLocal(name, value string) {
	if len(s.localScopes) == 0 {
		s.Env[name] = value
		return
	}
	top := len(s.localScopes) - 1
	prev, existed := s.Env[name]
	entry := localEntry{Name: name, existed: existed}
	if existed {
		v := prev
		entry.Value = &v
	}
	s.localScopes[top] = append(s.localScopes[top], entry)
	s.Env[name] = value
}

// PopLocalScope restores every name in the top scope to its previous
// binding, deleting it if it was previously unset.
func (s *ExecState) PopLocalScope() {
	if len(s.localScopes) == 0 {
		return
	}
	top := len(s.localScopes) - 1
	entries := s.localScopes[top]
	s.localScopes = s.localScopes[:top]

	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		if e.existed {
			s.Env[e.Name] = *e.Value
		} else {
			delete(s.Env, e.Name)
		}
	}
}
