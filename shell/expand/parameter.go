package expand

import (
	"strconv"
	"strings"

	"github.com/vshell/vshell/shell/glob"
)

// ParameterError reports a `${NAME:?msg}` user-triggered error (spec §4.3).
type ParameterError struct {
	Name string
	Msg  string
}

func (e *ParameterError) Error() string {
	if e.Msg != "" {
		return e.Name + ": " + e.Msg
	}
	return e.Name + ": parameter null or not set"
}

// expandParameter implements ${...} forms: plain lookup, ${#NAME} length,
// the four default/assign/error/alternate operators (each with and without
// the `:` empty check), and the glob-pattern trim/replace operators (spec §4.3).
func expandParameter(inner string, vars Vars, runner CommandRunner, noUnset bool) (string, error) {
	if strings.HasPrefix(inner, "#") && len(inner) > 1 && !isOperatorChar(inner[1]) {
		name := inner[1:]
		val, _ := vars.Lookup(name)
		return strconv.Itoa(len([]rune(val))), nil
	}

	name, rest, op := splitParamOp(inner)
	val, set := vars.Lookup(name)

	switch op {
	case "":
		if noUnset && !set {
			return "", &UnboundVariableError{Name: name}
		}
		return val, nil
	case ":-", "-":
		if !set || (op == ":-" && val == "") {
			return expandSubstitutions(rest, vars, runner, noUnset)
		}
		return val, nil
	case ":=", "=":
		if !set || (op == ":=" && val == "") {
			def, err := expandSubstitutions(rest, vars, runner, noUnset)
			if err != nil {
				return "", err
			}
			vars.Set(name, def)
			return def, nil
		}
		return val, nil
	case ":?", "?":
		if !set || (op == ":?" && val == "") {
			msg, err := expandSubstitutions(rest, vars, runner, noUnset)
			if err != nil {
				return "", err
			}
			return "", &ParameterError{Name: name, Msg: msg}
		}
		return val, nil
	case ":+", "+":
		if set && !(op == ":+" && val == "") {
			return expandSubstitutions(rest, vars, runner, noUnset)
		}
		return "", nil
	case "#", "##":
		pattern, err := expandSubstitutions(rest, vars, runner, noUnset)
		if err != nil {
			return "", err
		}
		return trimPrefix(val, pattern, op == "##"), nil
	case "%", "%%":
		pattern, err := expandSubstitutions(rest, vars, runner, noUnset)
		if err != nil {
			return "", err
		}
		return trimSuffix(val, pattern, op == "%%"), nil
	case "/", "//":
		return expandReplace(val, rest, vars, runner, op == "//", noUnset)
	}

	return val, nil
}

func isOperatorChar(b byte) bool {
	switch b {
	case ':', '-', '=', '?', '+', '#', '%', '/':
		return true
	}
	return false
}

// splitParamOp splits "${NAME<op><rest>}" content into name, operator, and
// remaining text. Longer two-character operators are matched first.
func splitParamOp(inner string) (name, rest, op string) {
	i := 0
	for i < len(inner) && isNamePart(inner[i]) {
		i++
	}
	if i == 0 {
		// special parameter like $@ used inside braces, e.g. ${@}
		if len(inner) > 0 {
			i = 1
		}
	}
	name = inner[:i]
	remainder := inner[i:]

	twoCharOps := []string{":-", ":=", ":?", ":+", "##", "%%", "//"}
	for _, o := range twoCharOps {
		if strings.HasPrefix(remainder, o) {
			return name, remainder[len(o):], o
		}
	}
	oneCharOps := []string{"-", "=", "?", "+", "#", "%", "/"}
	for _, o := range oneCharOps {
		if strings.HasPrefix(remainder, o) {
			return name, remainder[len(o):], o
		}
	}
	return name, "", ""
}

func trimPrefix(val, pattern string, greedy bool) string {
	re, err := glob.CompilePrefix(pattern, true, greedy)
	if err != nil {
		return val
	}
	loc := re.FindStringIndex(val)
	if loc == nil {
		return val
	}
	return val[loc[1]:]
}

func trimSuffix(val, pattern string, greedy bool) string {
	re, err := glob.CompileSuffix(pattern, true, greedy)
	if err != nil {
		return val
	}
	loc := re.FindStringIndex(val)
	if loc == nil {
		return val
	}
	return val[:loc[0]]
}

// expandReplace implements ${NAME/pat/repl} and ${NAME//pat/repl}. pat and
// repl are separated by the first unescaped `/` in rest.
func expandReplace(val, rest string, vars Vars, runner CommandRunner, all, noUnset bool) (string, error) {
	patText, replText := splitReplaceArgs(rest)

	pattern, err := expandSubstitutions(patText, vars, runner, noUnset)
	if err != nil {
		return "", err
	}
	repl, err := expandSubstitutions(replText, vars, runner, noUnset)
	if err != nil {
		return "", err
	}

	re, err := glob.CompileSearch(pattern, true)
	if err != nil {
		return val, nil
	}
	if all {
		return re.ReplaceAllString(val, escapeReplLiteral(repl)), nil
	}
	loc := re.FindStringIndex(val)
	if loc == nil {
		return val, nil
	}
	return val[:loc[0]] + repl + val[loc[1]:], nil
}

// escapeReplLiteral guards against Go regexp's $-expansion inside
// ReplaceAllString, since replacement text here is a literal shell value,
// not a regexp replacement template.
func escapeReplLiteral(s string) string {
	return strings.ReplaceAll(s, "$", "$$")
}

func splitReplaceArgs(rest string) (pattern, repl string) {
	depth := 0
	for i := 0; i < len(rest); i++ {
		switch rest[i] {
		case '(':
			depth++
		case ')':
			depth--
		case '/':
			if depth == 0 {
				return rest[:i], rest[i+1:]
			}
		}
	}
	return rest, ""
}
