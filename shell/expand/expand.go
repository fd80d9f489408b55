// Package expand implements the per-word expansion pipeline (spec §4.3):
// tilde, parameter, arithmetic, command substitution, word splitting, with
// glob expansion left to the caller (shell/glob) since it operates on the
// whole argument list, not one word at a time.
//
// To avoid an import cycle with shell/exec (which owns ExecState), this
// package only depends on the two narrow interfaces below.
package expand

import (
	"strings"

	"github.com/vshell/vshell/shell/token"
)

// Vars is the variable-lookup/assignment surface the expander needs.
type Vars interface {
	Lookup(name string) (string, bool)
	Set(name, value string)
}

// CommandRunner executes a nested command line for `$(...)` substitution
// (spec §4.3 step 4); shell/exec satisfies it with an adapter that runs the
// line in a clone of the current ExecState.
type CommandRunner interface {
	RunCapture(commandLine string) (stdout string, exitCode int, err error)
}

// Options configures expansion (IFS, HOME for tilde, nounset enforcement).
type Options struct {
	IFS     string
	Home    string
	NoUnset bool
}

// UnboundVariableError reports a reference to an unset variable under
// `set -u` (spec's nounset supplement).
type UnboundVariableError struct {
	Name string
}

func (e *UnboundVariableError) Error() string {
	return e.Name + ": unbound variable"
}

func (o Options) ifsOrDefault() string {
	if o.IFS == "" {
		return " \t\n"
	}
	return o.IFS
}

// Word is one token's expansion job.
type Word struct {
	Text         string
	Quoted       bool
	SingleQuoted bool
}

// ExpandWord runs steps 1-5 of spec §4.3 on a single word and returns the
// resulting field(s) after word splitting (splitting only applies to
// unquoted words). Glob expansion (step 6) is the caller's job.
func ExpandWord(w Word, vars Vars, runner CommandRunner, opts Options) ([]string, error) {
	text := w.Text

	if w.SingleQuoted {
		return []string{text}, nil
	}

	text = expandTilde(text, opts)

	expanded, err := expandSubstitutions(text, vars, runner, opts.NoUnset)
	if err != nil {
		return nil, err
	}
	expanded = strings.ReplaceAll(expanded, token.EscapedDollar, "$")

	if w.Quoted {
		return []string{expanded}, nil
	}

	fields := splitFields(expanded, opts.ifsOrDefault())
	if len(fields) == 0 {
		return []string{}, nil
	}
	return fields, nil
}

// expandTilde handles leading ~ / ~/... expansion (spec §4.3 step 1).
func expandTilde(s string, opts Options) string {
	if !strings.HasPrefix(s, "~") {
		return s
	}
	if s == "~" {
		return opts.Home
	}
	if strings.HasPrefix(s, "~/") {
		return opts.Home + s[1:]
	}
	return s
}

// splitFields implements IFS word splitting on unquoted text (spec §4.3
// step 5).
func splitFields(s string, ifs string) []string {
	if s == "" {
		return nil
	}
	isIFS := func(r rune) bool {
		return strings.ContainsRune(ifs, r)
	}
	var fields []string
	var cur strings.Builder
	inField := false
	for _, r := range s {
		if isIFS(r) {
			if inField {
				fields = append(fields, cur.String())
				cur.Reset()
				inField = false
			}
			continue
		}
		inField = true
		cur.WriteRune(r)
	}
	if inField {
		fields = append(fields, cur.String())
	}
	return fields
}
