package eval

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"github.com/vshell/vshell/query/ast"
	"github.com/vshell/vshell/query/value"
)

// String & regex family (spec §4.7). Regex-backed builtins use the standard
// library's regexp (RE2 syntax, not Oniguruma) since no third-party regex
// engine appears anywhere in the example pack; this is a documented stdlib
// exception rather than a dependency-avoidance choice.
func init() {
	registerBuiltin("split", 1, func(ev *Evaluator, in PV, args []*ast.Node, env *Env) ([]PV, error) {
		if in.Val.Kind != value.String {
			return nil, newError("split input must be a string")
		}
		sep, err := evalOne(ev, args[0], in, env)
		if err != nil {
			return nil, err
		}
		if sep.Kind != value.String {
			return nil, newError("split separator must be a string")
		}
		parts := strings.Split(in.Val.S, sep.S)
		out := make([]value.Value, len(parts))
		for i, p := range parts {
			out[i] = value.NewString(p)
		}
		return []PV{{Val: value.NewArray(out)}}, nil
	})
	registerBuiltin("split", 2, func(ev *Evaluator, in PV, args []*ast.Node, env *Env) ([]PV, error) {
		return regexSplit(ev, in, args, env)
	})
	registerBuiltin("splits", 1, func(ev *Evaluator, in PV, args []*ast.Node, env *Env) ([]PV, error) {
		pvs, err := regexSplit(ev, in, args, env)
		if err != nil {
			return nil, err
		}
		return arrayToStream(pvs)
	})
	registerBuiltin("splits", 2, func(ev *Evaluator, in PV, args []*ast.Node, env *Env) ([]PV, error) {
		pvs, err := regexSplit(ev, in, args, env)
		if err != nil {
			return nil, err
		}
		return arrayToStream(pvs)
	})

	registerBuiltin("join", 1, func(ev *Evaluator, in PV, args []*ast.Node, env *Env) ([]PV, error) {
		if in.Val.Kind != value.Array {
			return nil, newError("Cannot join %s", in.Val.TypeName())
		}
		sep, err := evalOne(ev, args[0], in, env)
		if err != nil {
			return nil, err
		}
		if sep.Kind != value.String {
			return nil, newError("Cannot join with %s separator", sep.TypeName())
		}
		var b strings.Builder
		for i, e := range in.Val.A {
			if i > 0 {
				b.WriteString(sep.S)
			}
			if e.Kind != value.Null {
				b.WriteString(e.ToGoString())
			}
		}
		return []PV{{Val: value.NewString(b.String())}}, nil
	})

	registerBuiltin("ltrimstr", 1, func(ev *Evaluator, in PV, args []*ast.Node, env *Env) ([]PV, error) {
		prefix, err := evalOne(ev, args[0], in, env)
		if err != nil {
			return nil, err
		}
		if in.Val.Kind != value.String || prefix.Kind != value.String {
			return []PV{in}, nil
		}
		return []PV{{Val: value.NewString(strings.TrimPrefix(in.Val.S, prefix.S))}}, nil
	})
	registerBuiltin("rtrimstr", 1, func(ev *Evaluator, in PV, args []*ast.Node, env *Env) ([]PV, error) {
		suffix, err := evalOne(ev, args[0], in, env)
		if err != nil {
			return nil, err
		}
		if in.Val.Kind != value.String || suffix.Kind != value.String {
			return []PV{in}, nil
		}
		return []PV{{Val: value.NewString(strings.TrimSuffix(in.Val.S, suffix.S))}}, nil
	})
	registerBuiltin("startswith", 1, func(ev *Evaluator, in PV, args []*ast.Node, env *Env) ([]PV, error) {
		if in.Val.Kind != value.String {
			return nil, newError("startswith() requires string inputs")
		}
		s, err := evalOne(ev, args[0], in, env)
		if err != nil {
			return nil, err
		}
		return []PV{{Val: value.NewBool(strings.HasPrefix(in.Val.S, s.S))}}, nil
	})
	registerBuiltin("endswith", 1, func(ev *Evaluator, in PV, args []*ast.Node, env *Env) ([]PV, error) {
		if in.Val.Kind != value.String {
			return nil, newError("endswith() requires string inputs")
		}
		s, err := evalOne(ev, args[0], in, env)
		if err != nil {
			return nil, err
		}
		return []PV{{Val: value.NewBool(strings.HasSuffix(in.Val.S, s.S))}}, nil
	})
	registerBuiltin("ascii_downcase", 0, single(func(v value.Value) (value.Value, error) {
		return value.NewString(asciiMap(v.S, false)), nil
	}))
	registerBuiltin("ascii_upcase", 0, single(func(v value.Value) (value.Value, error) {
		return value.NewString(asciiMap(v.S, true)), nil
	}))
	registerBuiltin("explode", 0, single(func(v value.Value) (value.Value, error) {
		if v.Kind != value.String {
			return value.Value{}, newError("explode input must be a string")
		}
		// Normalize to NFC first so a codepoint array is stable across
		// Unicode-equivalent encodings of the same string (e.g. combining
		// diacritics vs. a precomposed character).
		runes := []rune(norm.NFC.String(v.S))
		out := make([]value.Value, len(runes))
		for i, r := range runes {
			out[i] = value.NewNumber(float64(r))
		}
		return value.NewArray(out), nil
	}))
	registerBuiltin("implode", 0, single(func(v value.Value) (value.Value, error) {
		if v.Kind != value.Array {
			return value.Value{}, newError("implode input must be an array")
		}
		var b strings.Builder
		for _, e := range v.A {
			if e.Kind != value.Number {
				return value.Value{}, newError("implode input must be an array of codepoints")
			}
			b.WriteRune(rune(int(e.N)))
		}
		return value.NewString(norm.NFC.String(b.String())), nil
	}))
	registerBuiltin("trim", 0, single(func(v value.Value) (value.Value, error) {
		if v.Kind != value.String {
			return value.Value{}, newError("trim input must be a string")
		}
		return value.NewString(strings.TrimSpace(v.S)), nil
	}))
	registerBuiltin("ltrim", 0, single(func(v value.Value) (value.Value, error) {
		if v.Kind != value.String {
			return value.Value{}, newError("ltrim input must be a string")
		}
		return value.NewString(strings.TrimLeftFunc(v.S, unicode.IsSpace)), nil
	}))
	registerBuiltin("rtrim", 0, single(func(v value.Value) (value.Value, error) {
		if v.Kind != value.String {
			return value.Value{}, newError("rtrim input must be a string")
		}
		return value.NewString(strings.TrimRightFunc(v.S, unicode.IsSpace)), nil
	}))
	registerBuiltin("test", 1, func(ev *Evaluator, in PV, args []*ast.Node, env *Env) ([]PV, error) {
		return regexTest(ev, in, args[0], nil, env)
	})
	registerBuiltin("test", 2, func(ev *Evaluator, in PV, args []*ast.Node, env *Env) ([]PV, error) {
		return regexTest(ev, in, args[0], args[1], env)
	})
	registerBuiltin("match", 1, func(ev *Evaluator, in PV, args []*ast.Node, env *Env) ([]PV, error) {
		return regexMatch(ev, in, args[0], nil, env)
	})
	registerBuiltin("match", 2, func(ev *Evaluator, in PV, args []*ast.Node, env *Env) ([]PV, error) {
		return regexMatch(ev, in, args[0], args[1], env)
	})
	registerBuiltin("capture", 1, func(ev *Evaluator, in PV, args []*ast.Node, env *Env) ([]PV, error) {
		return regexCapture(ev, in, args[0], nil, env)
	})
	registerBuiltin("capture", 2, func(ev *Evaluator, in PV, args []*ast.Node, env *Env) ([]PV, error) {
		return regexCapture(ev, in, args[0], args[1], env)
	})
	registerBuiltin("scan", 1, func(ev *Evaluator, in PV, args []*ast.Node, env *Env) ([]PV, error) {
		return regexScan(ev, in, args[0], nil, env)
	})
	registerBuiltin("scan", 2, func(ev *Evaluator, in PV, args []*ast.Node, env *Env) ([]PV, error) {
		return regexScan(ev, in, args[0], args[1], env)
	})
	registerBuiltin("sub", 2, func(ev *Evaluator, in PV, args []*ast.Node, env *Env) ([]PV, error) {
		return regexSub(ev, in, args[0], args[1], false, env)
	})
	registerBuiltin("gsub", 2, func(ev *Evaluator, in PV, args []*ast.Node, env *Env) ([]PV, error) {
		return regexSub(ev, in, args[0], args[1], true, env)
	})
	registerBuiltin("ascii", 0, single(func(v value.Value) (value.Value, error) {
		if v.Kind != value.Number {
			return value.Value{}, newError("ascii requires a number")
		}
		return value.NewString(string(rune(int(v.N)))), nil
	}))
}

func asciiMap(s string, upper bool) string {
	b := []byte(s)
	for i, c := range b {
		if upper && c >= 'a' && c <= 'z' {
			b[i] = c - 32
		} else if !upper && c >= 'A' && c <= 'Z' {
			b[i] = c + 32
		}
	}
	return string(b)
}

func compileRegex(pattern, flags string) (*regexp.Regexp, error) {
	goFlags := ""
	for _, f := range flags {
		switch f {
		case 'i':
			goFlags += "i"
		case 'x':
			goFlags += "x"
		case 's':
			goFlags += "s"
		case 'm':
			goFlags += "m"
		case 'g', 'n', 'l', 'p':
			// handled by callers, not part of RE2 inline flags
		}
	}
	expr := pattern
	if goFlags != "" {
		expr = "(?" + goFlags + ")" + pattern
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, newError("%s is not a valid regex: %v", pattern, err)
	}
	return re, nil
}

func regexArgs(ev *Evaluator, in PV, reNode, flagsNode *ast.Node, env *Env) (string, string, error) {
	re, err := evalOne(ev, reNode, in, env)
	if err != nil {
		return "", "", err
	}
	if re.Kind != value.String {
		return "", "", newError("regex must be a string")
	}
	flags := ""
	if flagsNode != nil {
		f, err := evalOne(ev, flagsNode, in, env)
		if err != nil {
			return "", "", err
		}
		if f.Kind == value.String {
			flags = f.S
		}
	}
	return re.S, flags, nil
}

func regexTest(ev *Evaluator, in PV, reNode, flagsNode *ast.Node, env *Env) ([]PV, error) {
	if in.Val.Kind != value.String {
		return nil, newError("%s cannot be matched, as it is not a string", in.Val.TypeName())
	}
	pattern, flags, err := regexArgs(ev, in, reNode, flagsNode, env)
	if err != nil {
		return nil, err
	}
	re, err := compileRegex(pattern, flags)
	if err != nil {
		return nil, err
	}
	return []PV{{Val: value.NewBool(re.MatchString(in.Val.S))}}, nil
}

func matchObject(re *regexp.Regexp, s string, loc []int) value.Value {
	names := re.SubexpNames()
	obj := value.NewEmptyObjectStruct()
	obj.Set("offset", value.NewNumber(float64(len([]rune(s[:loc[0]])))))
	obj.Set("length", value.NewNumber(float64(len([]rune(s[loc[0]:loc[1]])))))
	obj.Set("string", value.NewString(s[loc[0]:loc[1]]))
	var captures []value.Value
	for i := 1; i*2 < len(loc); i++ {
		capObj := value.NewEmptyObjectStruct()
		start, end := loc[i*2], loc[i*2+1]
		if start < 0 {
			capObj.Set("offset", value.NewNumber(-1))
			capObj.Set("length", value.NewNumber(0))
			capObj.Set("string", value.NewNull())
		} else {
			capObj.Set("offset", value.NewNumber(float64(len([]rune(s[:start])))))
			capObj.Set("length", value.NewNumber(float64(len([]rune(s[start:end])))))
			capObj.Set("string", value.NewString(s[start:end]))
		}
		name := ""
		if i < len(names) {
			name = names[i]
		}
		if name != "" {
			capObj.Set("name", value.NewString(name))
		} else {
			capObj.Set("name", value.NewNull())
		}
		captures = append(captures, value.NewObject(capObj))
	}
	obj.Set("captures", value.NewArray(captures))
	return value.NewObject(obj)
}

func regexMatch(ev *Evaluator, in PV, reNode, flagsNode *ast.Node, env *Env) ([]PV, error) {
	if in.Val.Kind != value.String {
		return nil, newError("%s cannot be matched, as it is not a string", in.Val.TypeName())
	}
	pattern, flags, err := regexArgs(ev, in, reNode, flagsNode, env)
	if err != nil {
		return nil, err
	}
	global := strings.ContainsRune(flags, 'g')
	re, err := compileRegex(pattern, flags)
	if err != nil {
		return nil, err
	}
	if global {
		locs := re.FindAllSubmatchIndex([]byte(in.Val.S), -1)
		var out []PV
		for _, loc := range locs {
			out = append(out, PV{Val: matchObject(re, in.Val.S, loc)})
		}
		return out, nil
	}
	loc := re.FindSubmatchIndex([]byte(in.Val.S))
	if loc == nil {
		return nil, nil
	}
	return []PV{{Val: matchObject(re, in.Val.S, loc)}}, nil
}

func regexCapture(ev *Evaluator, in PV, reNode, flagsNode *ast.Node, env *Env) ([]PV, error) {
	matches, err := regexMatch(ev, in, reNode, flagsNode, env)
	if err != nil || len(matches) == 0 {
		return matches, err
	}
	var out []PV
	for _, m := range matches {
		capsVal, _ := m.Val.O.Get("captures")
		obj := value.NewEmptyObjectStruct()
		for _, c := range capsVal.A {
			nameVal, _ := c.O.Get("name")
			if nameVal.Kind != value.String {
				continue
			}
			strVal, _ := c.O.Get("string")
			obj.Set(nameVal.S, strVal)
		}
		out = append(out, PV{Val: value.NewObject(obj)})
	}
	return out, nil
}

func regexScan(ev *Evaluator, in PV, reNode, flagsNode *ast.Node, env *Env) ([]PV, error) {
	if in.Val.Kind != value.String {
		return nil, newError("%s cannot be matched, as it is not a string", in.Val.TypeName())
	}
	pattern, flags, err := regexArgs(ev, in, reNode, flagsNode, env)
	if err != nil {
		return nil, err
	}
	re, err := compileRegex(pattern, flags)
	if err != nil {
		return nil, err
	}
	locs := re.FindAllStringSubmatchIndex(in.Val.S, -1)
	var out []PV
	for _, loc := range locs {
		if len(loc) == 2 {
			out = append(out, PV{Val: value.NewString(in.Val.S[loc[0]:loc[1]])})
			continue
		}
		var caps []value.Value
		for i := 1; i*2 < len(loc); i++ {
			start, end := loc[i*2], loc[i*2+1]
			if start < 0 {
				caps = append(caps, value.NewNull())
			} else {
				caps = append(caps, value.NewString(in.Val.S[start:end]))
			}
		}
		out = append(out, PV{Val: value.NewArray(caps)})
	}
	return out, nil
}

func regexSplit(ev *Evaluator, in PV, args []*ast.Node, env *Env) ([]PV, error) {
	if in.Val.Kind != value.String {
		return nil, newError("split input must be a string")
	}
	var flagsNode *ast.Node
	if len(args) > 1 {
		flagsNode = args[1]
	}
	pattern, flags, err := regexArgs(ev, in, args[0], flagsNode, env)
	if err != nil {
		return nil, err
	}
	re, err := compileRegex(pattern, flags)
	if err != nil {
		return nil, err
	}
	parts := re.Split(in.Val.S, -1)
	out := make([]value.Value, len(parts))
	for i, p := range parts {
		out[i] = value.NewString(p)
	}
	return []PV{{Val: value.NewArray(out)}}, nil
}

// regexSub implements sub/gsub: replNode is evaluated as a filter against an
// object of named captures for each match, with "." bound to that object
// (jq's actual semantics bind capture names as $-free fields of the input
// object passed to the replacement filter).
func regexSub(ev *Evaluator, in PV, reNode, replNode *ast.Node, global bool, env *Env) ([]PV, error) {
	if in.Val.Kind != value.String {
		return nil, newError("%s cannot be matched, as it is not a string", in.Val.TypeName())
	}
	pattern, flags, err := regexArgs(ev, in, reNode, nil, env)
	if err != nil {
		return nil, err
	}
	re, err := compileRegex(pattern, flags)
	if err != nil {
		return nil, err
	}
	s := in.Val.S
	var locs [][]int
	if global {
		locs = re.FindAllSubmatchIndex([]byte(s), -1)
	} else if loc := re.FindSubmatchIndex([]byte(s)); loc != nil {
		locs = [][]int{loc}
	}
	if len(locs) == 0 {
		return []PV{{Val: value.NewString(s)}}, nil
	}
	var b strings.Builder
	prev := 0
	for _, loc := range locs {
		b.WriteString(s[prev:loc[0]])
		names := re.SubexpNames()
		capObj := value.NewEmptyObjectStruct()
		for i := 1; i*2 < len(loc); i++ {
			if i >= len(names) || names[i] == "" {
				continue
			}
			start, end := loc[i*2], loc[i*2+1]
			if start < 0 {
				capObj.Set(names[i], value.NewNull())
			} else {
				capObj.Set(names[i], value.NewString(s[start:end]))
			}
		}
		repl, err := evalOne(ev, replNode, PV{Val: value.NewObject(capObj)}, env)
		if err != nil {
			return nil, err
		}
		if repl.Kind != value.String {
			return nil, newError("sub replacement must be a string")
		}
		b.WriteString(repl.S)
		prev = loc[1]
	}
	b.WriteString(s[prev:])
	return []PV{{Val: value.NewString(b.String())}}, nil
}

func arrayToStream(pvs []PV) ([]PV, error) {
	if len(pvs) == 0 {
		return nil, nil
	}
	arr := pvs[0].Val
	if arr.Kind != value.Array {
		return pvs, nil
	}
	out := make([]PV, len(arr.A))
	for i, e := range arr.A {
		out[i] = PV{Val: e}
	}
	return out, nil
}
