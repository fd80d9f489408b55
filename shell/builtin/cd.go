package builtin

import "github.com/vshell/vshell/shell/exec"

func init() {
	exec.RegisterBuiltin("cd", cd)
}

// cd changes ExecState.Cwd, resolving `-` (OLDPWD) and `~` (HOME) the way
// bash does, and updates OLDPWD/PWD.
func cd(s *exec.ExecState, args []string, _ string) (exec.Result, error) {
	target := s.Env["HOME"]
	if len(args) > 0 {
		target = args[0]
	}
	if target == "-" {
		old, ok := s.Env["OLDPWD"]
		if !ok {
			return exec.Result{ExitCode: 1, Stderr: "cd: OLDPWD not set"}, nil
		}
		target = old
	}

	resolved, err := s.FS.ResolvePath(s.Cwd, target)
	if err != nil {
		return exec.Result{ExitCode: 1, Stderr: "cd: " + target + ": No such file or directory"}, nil
	}
	st, err := s.FS.Stat(resolved)
	if err != nil || !st.IsDirectory {
		return exec.Result{ExitCode: 1, Stderr: "cd: " + target + ": Not a directory"}, nil
	}

	s.Env["OLDPWD"] = s.Cwd
	s.Cwd = resolved
	s.Env["PWD"] = resolved
	return exec.Result{ExitCode: 0}, nil
}
