package builtin

import (
	"strconv"

	"github.com/vshell/vshell/shell/exec"
)

func init() {
	exec.RegisterBuiltin("return", returnBuiltin)
	exec.RegisterBuiltin("break", breakBuiltin)
	exec.RegisterBuiltin("continue", continueBuiltin)
}

// returnBuiltin raises a ReturnSignal carrying the function's exit code
// (defaulting to the last command's status), unwound by callFunction back
// into a normal Result (spec §4.5.1).
func returnBuiltin(s *exec.ExecState, args []string, _ string) (exec.Result, error) {
	code := s.LastStatus
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil {
			return exec.Result{ExitCode: 1, Stderr: "return: " + args[0] + ": numeric argument required"}, nil
		}
		code = n
	}
	return exec.Result{}, &exec.ReturnSignal{Code: code}
}

// breakBuiltin raises a BreakSignal unwinding N enclosing loops (default
// 1), spec §7 "break/continue unwind loops via dedicated control-flow
// signals".
func breakBuiltin(s *exec.ExecState, args []string, _ string) (exec.Result, error) {
	n, errMsg := loopLevel(args)
	if errMsg != "" {
		return exec.Result{ExitCode: 1, Stderr: "break: " + errMsg}, nil
	}
	return exec.Result{}, &exec.BreakSignal{N: n}
}

// continueBuiltin raises a ContinueSignal skipping to the next iteration
// of the Nth enclosing loop (default 1).
func continueBuiltin(s *exec.ExecState, args []string, _ string) (exec.Result, error) {
	n, errMsg := loopLevel(args)
	if errMsg != "" {
		return exec.Result{ExitCode: 1, Stderr: "continue: " + errMsg}, nil
	}
	return exec.Result{}, &exec.ContinueSignal{N: n}
}

func loopLevel(args []string) (int, string) {
	if len(args) == 0 {
		return 1, ""
	}
	n, err := strconv.Atoi(args[0])
	if err != nil || n < 1 {
		return 0, args[0] + ": loop count out of range"
	}
	return n, ""
}
