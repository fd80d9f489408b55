package builtin

import (
	"strconv"

	"github.com/vshell/vshell/shell/exec"
)

func init() {
	exec.RegisterBuiltin("test", testBuiltin)
	exec.RegisterBuiltin("[", bracketBuiltin)
	exec.RegisterBuiltin("[[", bracketBuiltin)
}

func testBuiltin(s *exec.ExecState, args []string, _ string) (exec.Result, error) {
	ok, err := evalTest(s, args)
	if err != nil {
		return exec.Result{ExitCode: 2, Stderr: err.Error()}, nil
	}
	return exec.Result{ExitCode: boolExit(ok)}, nil
}

// bracketBuiltin backs both `[ ... ]` and `[[ ... ]]`; the parser hands
// each its own trailing closing-bracket word as a plain argument, which is
// stripped here before evaluation.
func bracketBuiltin(s *exec.ExecState, args []string, _ string) (exec.Result, error) {
	if len(args) > 0 && (args[len(args)-1] == "]" || args[len(args)-1] == "]]") {
		args = args[:len(args)-1]
	}
	return testBuiltin(s, args, "")
}

func boolExit(ok bool) int {
	if ok {
		return 0
	}
	return 1
}

// evalTest implements a pragmatic subset of POSIX test(1): unary
// string/file tests, binary string/numeric comparisons, negation, and
// -a/-o conjunction (left-associative, no operator precedence beyond
// that — matching test(1)'s own documented ambiguity for complex
// expressions).
func evalTest(s *exec.ExecState, args []string) (bool, error) {
	if len(args) == 0 {
		return false, nil
	}

	result, rest, err := evalTestUnaryOrBinary(s, args)
	if err != nil {
		return false, err
	}
	for len(rest) > 0 {
		switch rest[0] {
		case "-a":
			next, remainder, err := evalTestUnaryOrBinary(s, rest[1:])
			if err != nil {
				return false, err
			}
			result = result && next
			rest = remainder
		case "-o":
			next, remainder, err := evalTestUnaryOrBinary(s, rest[1:])
			if err != nil {
				return false, err
			}
			result = result || next
			rest = remainder
		default:
			return result, nil
		}
	}
	return result, nil
}

func evalTestUnaryOrBinary(s *exec.ExecState, args []string) (bool, []string, error) {
	if len(args) == 0 {
		return false, nil, nil
	}
	if args[0] == "!" {
		result, rest, err := evalTestUnaryOrBinary(s, args[1:])
		return !result, rest, err
	}
	if args[0] == "(" {
		depth := 1
		i := 1
		for i < len(args) && depth > 0 {
			switch args[i] {
			case "(":
				depth++
			case ")":
				depth--
			}
			if depth > 0 {
				i++
			}
		}
		inner, err := evalTest(s, args[1:i])
		return inner, args[minInt(i+1, len(args)):], err
	}

	if len(args) >= 2 && isUnaryOp(args[0]) {
		result, err := evalUnary(s, args[0], args[1])
		return result, args[2:], err
	}
	if len(args) >= 3 && isBinaryOp(args[1]) {
		result, err := evalBinary(args[0], args[1], args[2])
		return result, args[3:], err
	}
	if len(args) == 1 {
		return args[0] != "", args[1:], nil
	}
	return false, args[1:], nil
}

func isUnaryOp(op string) bool {
	switch op {
	case "-z", "-n", "-f", "-d", "-e", "-s", "-r", "-w", "-x", "-L":
		return true
	}
	return false
}

func isBinaryOp(op string) bool {
	switch op {
	case "=", "==", "!=", "-eq", "-ne", "-lt", "-le", "-gt", "-ge":
		return true
	}
	return false
}

func evalUnary(s *exec.ExecState, op, operand string) (bool, error) {
	switch op {
	case "-z":
		return operand == "", nil
	case "-n":
		return operand != "", nil
	case "-f":
		st, err := s.FS.Stat(operand)
		return err == nil && st.IsFile, nil
	case "-d":
		st, err := s.FS.Stat(operand)
		return err == nil && st.IsDirectory, nil
	case "-e":
		return s.FS.Exists(operand), nil
	case "-L":
		st, err := s.FS.Lstat(operand)
		return err == nil && st.IsSymlink, nil
	case "-s":
		st, err := s.FS.Stat(operand)
		return err == nil && st.Size > 0, nil
	case "-r", "-w", "-x":
		return s.FS.Exists(operand), nil
	}
	return false, nil
}

func evalBinary(lhs, op, rhs string) (bool, error) {
	switch op {
	case "=", "==":
		return lhs == rhs, nil
	case "!=":
		return lhs != rhs, nil
	case "-eq", "-ne", "-lt", "-le", "-gt", "-ge":
		l, err := strconv.ParseInt(lhs, 10, 64)
		if err != nil {
			return false, err
		}
		r, err := strconv.ParseInt(rhs, 10, 64)
		if err != nil {
			return false, err
		}
		switch op {
		case "-eq":
			return l == r, nil
		case "-ne":
			return l != r, nil
		case "-lt":
			return l < r, nil
		case "-le":
			return l <= r, nil
		case "-gt":
			return l > r, nil
		case "-ge":
			return l >= r, nil
		}
	}
	return false, nil
}
