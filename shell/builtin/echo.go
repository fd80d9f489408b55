// Package builtin registers the shell's built-in commands into
// shell/exec's registry via init(), the same decentralized registration
// idiom the teacher uses for its decorators (runtime/decorators/builtin).
package builtin

import (
	"strconv"
	"strings"

	"github.com/vshell/vshell/shell/exec"
)

func init() {
	exec.RegisterBuiltin("echo", echo)
	exec.RegisterBuiltin("printf", printfBuiltin)
	exec.RegisterBuiltin(":", noop)
	exec.RegisterBuiltin("true", trueBuiltin)
	exec.RegisterBuiltin("false", falseBuiltin)
	exec.RegisterBuiltin("pwd", pwd)
}

// echo implements the `echo` builtin: -n suppresses the trailing newline,
// -e enables backslash escapes.
func echo(s *exec.ExecState, args []string, _ string) (exec.Result, error) {
	newline := true
	escapes := false
	i := 0
	for i < len(args) {
		switch args[i] {
		case "-n":
			newline = false
		case "-e":
			escapes = true
		case "-E":
			escapes = false
		default:
			goto wordsStart
		}
		i++
	}
wordsStart:
	words := args[i:]
	if escapes {
		for j, w := range words {
			words[j] = expandEchoEscapes(w)
		}
	}
	out := strings.Join(words, " ")
	if newline {
		out += "\n"
	}
	return exec.Result{Stdout: out, ExitCode: 0}, nil
}

func expandEchoEscapes(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] != '\\' || i+1 >= len(s) {
			b.WriteByte(s[i])
			continue
		}
		switch s[i+1] {
		case 'n':
			b.WriteByte('\n')
		case 't':
			b.WriteByte('\t')
		case 'r':
			b.WriteByte('\r')
		case '\\':
			b.WriteByte('\\')
		default:
			b.WriteByte(s[i])
			b.WriteByte(s[i+1])
		}
		i++
	}
	return b.String()
}

// printfBuiltin implements a minimal `printf`: %s, %d, %%, and literal
// passthrough of everything else, cycling the format string over extra
// arguments the way POSIX printf does.
func printfBuiltin(s *exec.ExecState, args []string, _ string) (exec.Result, error) {
	if len(args) == 0 {
		return exec.Result{ExitCode: 0}, nil
	}
	format := args[0]
	values := args[1:]

	var out strings.Builder
	for {
		consumed := applyPrintfFormat(&out, format, &values)
		if !consumed || len(values) == 0 {
			break
		}
	}
	return exec.Result{Stdout: out.String(), ExitCode: 0}, nil
}

func applyPrintfFormat(out *strings.Builder, format string, values *[]string) bool {
	usedArg := false
	for i := 0; i < len(format); i++ {
		if format[i] != '%' || i+1 >= len(format) {
			out.WriteByte(format[i])
			continue
		}
		switch format[i+1] {
		case '%':
			out.WriteByte('%')
			i++
		case 's':
			out.WriteString(popValue(values))
			usedArg = true
			i++
		case 'd':
			v := popValue(values)
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				n = 0
			}
			out.WriteString(strconv.Itoa(n))
			usedArg = true
			i++
		default:
			out.WriteByte(format[i])
		}
	}
	return usedArg
}

func popValue(values *[]string) string {
	if len(*values) == 0 {
		return ""
	}
	v := (*values)[0]
	*values = (*values)[1:]
	return v
}

func noop(_ *exec.ExecState, _ []string, _ string) (exec.Result, error) {
	return exec.Result{ExitCode: 0}, nil
}

func trueBuiltin(_ *exec.ExecState, _ []string, _ string) (exec.Result, error) {
	return exec.Result{ExitCode: 0}, nil
}

func falseBuiltin(_ *exec.ExecState, _ []string, _ string) (exec.Result, error) {
	return exec.Result{ExitCode: 1}, nil
}

func pwd(s *exec.ExecState, _ []string, _ string) (exec.Result, error) {
	return exec.Result{Stdout: s.Cwd + "\n", ExitCode: 0}, nil
}
