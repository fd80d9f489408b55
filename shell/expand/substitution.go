package expand

import (
	"strconv"
	"strings"
)

// expandSubstitutions walks text left to right, expanding $((...)),
// $(...), ${...}, and $NAME occurrences in the order they appear (spec §4.3
// steps 2-4). Single- and double-quote boundaries were already resolved by
// the tokenizer, so this function only sees plain text plus the verbatim
// substitution syntax it preserved.
func expandSubstitutions(text string, vars Vars, runner CommandRunner, noUnset bool) (string, error) {
	var out strings.Builder
	i := 0
	for i < len(text) {
		if text[i] != '$' {
			out.WriteByte(text[i])
			i++
			continue
		}

		if i+1 < len(text) && text[i+1] == '(' {
			if i+2 < len(text) && text[i+2] == '(' {
				inner, next, err := scanBalanced(text, i+3, '(', ')')
				if err != nil {
					return "", err
				}
				// consume trailing extra ')'
				if next < len(text) && text[next] == ')' {
					next++
				}
				val, err := evalArithmetic(inner, vars)
				if err != nil {
					return "", err
				}
				out.WriteString(strconv.FormatInt(val, 10))
				i = next
				continue
			}
			inner, next, err := scanBalanced(text, i+2, '(', ')')
			if err != nil {
				return "", err
			}
			if runner == nil {
				i = next
				continue
			}
			expandedInner, err := expandSubstitutions(inner, vars, runner, noUnset)
			if err != nil {
				return "", err
			}
			stdout, _, err := runner.RunCapture(expandedInner)
			if err != nil {
				return "", err
			}
			out.WriteString(strings.TrimSuffix(stdout, "\n"))
			i = next
			continue
		}

		if i+1 < len(text) && text[i+1] == '{' {
			inner, next, err := scanBalanced(text, i+2, '{', '}')
			if err != nil {
				return "", err
			}
			val, err := expandParameter(inner, vars, runner, noUnset)
			if err != nil {
				return "", err
			}
			out.WriteString(val)
			i = next
			continue
		}

		if i+1 < len(text) && isNameStart(text[i+1]) {
			j := i + 1
			for j < len(text) && isNamePart(text[j]) {
				j++
			}
			name := text[i+1 : j]
			val, set := vars.Lookup(name)
			if noUnset && !set {
				return "", &UnboundVariableError{Name: name}
			}
			out.WriteString(val)
			i = j
			continue
		}

		if i+1 < len(text) && isSpecialParam(text[i+1]) {
			ch := text[i+1]
			val, set := vars.Lookup(string(ch))
			if noUnset && !set && ch >= '1' && ch <= '9' {
				return "", &UnboundVariableError{Name: string(ch)}
			}
			out.WriteString(val)
			i += 2
			continue
		}

		out.WriteByte('$')
		i++
	}
	return out.String(), nil
}

func isNameStart(b byte) bool {
	return b == '_' || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

func isNamePart(b byte) bool {
	return isNameStart(b) || (b >= '0' && b <= '9')
}

func isSpecialParam(b byte) bool {
	switch b {
	case '@', '#', '?', '$', '!', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		return true
	}
	return false
}

// scanBalanced returns the text strictly between the opening delimiter
// (already consumed by the caller, start points just past it) and its
// matching closing delimiter, plus the index right after the close.
func scanBalanced(text string, start int, open, close byte) (string, int, error) {
	depth := 1
	i := start
	for i < len(text) {
		switch text[i] {
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				return text[start:i], i + 1, nil
			}
		}
		i++
	}
	return "", 0, &UnclosedError{Text: text}
}

// UnclosedError reports an unterminated substitution during expansion (this
// should not happen for tokenizer-produced text, but expansion may also run
// on programmatically constructed strings).
type UnclosedError struct {
	Text string
}

func (e *UnclosedError) Error() string {
	return "unclosed substitution in: " + e.Text
}
