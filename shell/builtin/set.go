package builtin

import "github.com/vshell/vshell/shell/exec"

func init() {
	exec.RegisterBuiltin("set", setBuiltin)
}

// setBuiltin implements the subset of `set` options SPEC_FULL.md decided
// on: -e/+e (errexit), -u/+u (nounset), -o pipefail/+o pipefail, and `--`
// to reset positional parameters. Unrecognized short options are accepted
// silently (e.g. -x), matching a permissive interactive shell rather than
// erroring on every flag vshell doesn't model.
func setBuiltin(s *exec.ExecState, args []string, _ string) (exec.Result, error) {
	i := 0
	for i < len(args) {
		a := args[i]
		switch a {
		case "-e":
			s.Options.ErrExit = true
		case "+e":
			s.Options.ErrExit = false
		case "-u":
			s.Options.NoUnset = true
		case "+u":
			s.Options.NoUnset = false
		case "-o":
			i++
			if i < len(args) {
				applyDashO(s, args[i], true)
			}
		case "+o":
			i++
			if i < len(args) {
				applyDashO(s, args[i], false)
			}
		case "--":
			s.SetPositional(args[i+1:])
			return exec.Result{ExitCode: 0}, nil
		}
		i++
	}
	return exec.Result{ExitCode: 0}, nil
}

func applyDashO(s *exec.ExecState, name string, enable bool) {
	switch name {
	case "errexit":
		s.Options.ErrExit = enable
	case "pipefail":
		s.Options.PipeFail = enable
	case "nounset":
		s.Options.NoUnset = enable
	}
}
