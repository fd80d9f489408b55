package eval

import (
	"sort"
	"strings"

	"github.com/vshell/vshell/query/ast"
	"github.com/vshell/vshell/query/value"
)

// Remaining families from the builtins table not covered by the other
// builtins_*.go files: extra coercions, streaming, set/search helpers,
// whitespace trimming, SQL-ish joins, and path-ancestor navigation.
func init() {
	registerBuiltin("toboolean", 0, single(func(v value.Value) (value.Value, error) {
		switch v.Kind {
		case value.Bool:
			return v, nil
		case value.String:
			switch v.S {
			case "true":
				return value.NewBool(true), nil
			case "false":
				return value.NewBool(false), nil
			}
		}
		return value.Value{}, newError("Cannot parse %q as boolean", v.ToGoString())
	}))
	registerBuiltin("tojson", 0, single(func(v value.Value) (value.Value, error) {
		return value.NewString(v.ToJSON(false)), nil
	}))
	registerBuiltin("fromjson", 0, single(func(v value.Value) (value.Value, error) {
		if v.Kind != value.String {
			return value.Value{}, newError("fromjson input must be a string")
		}
		parsed, rest, err := value.Parse(v.S)
		if err != nil {
			return value.Value{}, newError("Invalid JSON: %v", err)
		}
		if strings.TrimSpace(rest) != "" {
			return value.Value{}, newError("Invalid JSON: trailing data")
		}
		return parsed, nil
	}))

	registerBuiltin("tostream", 0, func(ev *Evaluator, in PV, args []*ast.Node, env *Env) ([]PV, error) {
		var out []PV
		streamValue(in.Val, nil, &out)
		return out, nil
	})
	registerBuiltin("fromstream", 1, func(ev *Evaluator, in PV, args []*ast.Node, env *Env) ([]PV, error) {
		events, err := evalAll(ev, args[0], in, env)
		if err != nil {
			return nil, err
		}
		return fromStreamEvents(events)
	})
	registerBuiltin("truncate_stream", 1, func(ev *Evaluator, in PV, args []*ast.Node, env *Env) ([]PV, error) {
		if in.Val.Kind != value.Number {
			return nil, newError("truncate_stream requires a numeric depth as input")
		}
		depth := int(in.Val.N)
		events, err := evalAll(ev, args[0], in, env)
		if err != nil {
			return nil, err
		}
		var out []PV
		for _, e := range events {
			if e.Kind != value.Array || len(e.A) == 0 || e.A[0].Kind != value.Array {
				continue
			}
			path := e.A[0].A
			if len(path) <= depth {
				continue
			}
			newEvent := append([]value.Value{value.NewArray(path[depth:])}, e.A[1:]...)
			out = append(out, PV{Val: value.NewArray(newEvent)})
		}
		return out, nil
	})

	registerBuiltin("bsearch", 1, func(ev *Evaluator, in PV, args []*ast.Node, env *Env) ([]PV, error) {
		if in.Val.Kind != value.Array {
			return nil, newError("bsearch input must be a sorted array")
		}
		target, err := evalOne(ev, args[0], in, env)
		if err != nil {
			return nil, err
		}
		arr := in.Val.A
		idx := sort.Search(len(arr), func(i int) bool { return value.Compare(arr[i], target) >= 0 })
		if idx < len(arr) && value.Compare(arr[idx], target) == 0 {
			return []PV{{Val: value.NewNumber(float64(idx))}}, nil
		}
		return []PV{{Val: value.NewNumber(float64(-idx - 1))}}, nil
	})

	registerBuiltin("isempty", 1, func(ev *Evaluator, in PV, args []*ast.Node, env *Env) ([]PV, error) {
		results, err := ev.evalPV(args[0], in, env)
		if err != nil {
			return nil, err
		}
		return []PV{{Val: value.NewBool(len(results) == 0)}}, nil
	})

	registerBuiltin("pick", 1, func(ev *Evaluator, in PV, args []*ast.Node, env *Env) ([]PV, error) {
		paths, err := ev.EvalPaths(args[0], in.Val, env)
		if err != nil {
			return nil, err
		}
		result := value.NewNull()
		for _, p := range paths {
			v := getPath(in.Val, p)
			result = setPath(result, p, v)
		}
		return []PV{{Val: result}}, nil
	})

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
		return value.NewString(strings.TrimLeft(v.S, " \t\n\r")), nil
	}))
	registerBuiltin("rtrim", 0, single(func(v value.Value) (value.Value, error) {
		if v.Kind != value.String {
			return value.Value{}, newError("rtrim input must be a string")
		}
		return value.NewString(strings.TrimRight(v.S, " \t\n\r")), nil
	}))

	registerBuiltin("JOIN", 2, func(ev *Evaluator, in PV, args []*ast.Node, env *Env) ([]PV, error) {
		idxVal, err := evalOne(ev, args[0], in, env)
		if err != nil {
			return nil, err
		}
		if in.Val.Kind != value.Array {
			return nil, newError("JOIN input must be an array")
		}
		var out []value.Value
		for _, row := range in.Val.A {
			key, err := evalOne(ev, args[1], PV{Val: row}, env)
			if err != nil {
				return nil, err
			}
			matched := value.NewNull()
			if idxVal.Kind == value.ObjectKind {
				if v, ok := idxVal.O.Get(key.ToGoString()); ok {
					matched = v
				}
			}
			out = append(out, value.NewArray([]value.Value{row, matched}))
		}
		return []PV{{Val: value.NewArray(out)}}, nil
	})
	registerBuiltin("JOIN", 3, func(ev *Evaluator, in PV, args []*ast.Node, env *Env) ([]PV, error) {
		idxVal, err := evalOne(ev, args[0], in, env)
		if err != nil {
			return nil, err
		}
		if in.Val.Kind != value.Array {
			return nil, newError("JOIN input must be an array")
		}
		var out []PV
		for _, row := range in.Val.A {
			key, err := evalOne(ev, args[1], PV{Val: row}, env)
			if err != nil {
				return nil, err
			}
			matched := value.NewNull()
			if idxVal.Kind == value.ObjectKind {
				if v, ok := idxVal.O.Get(key.ToGoString()); ok {
					matched = v
				}
			}
			pairObj := value.NewArray([]value.Value{row, matched})
			results, err := ev.evalPV(args[2], PV{Val: pairObj}, env)
			if err != nil {
				return nil, err
			}
			out = append(out, results...)
		}
		return out, nil
	})

	registerBuiltin("root", 0, func(ev *Evaluator, in PV, args []*ast.Node, env *Env) ([]PV, error) {
		return []PV{{Val: ev.root}}, nil
	})
	registerBuiltin("parent", 0, func(ev *Evaluator, in PV, args []*ast.Node, env *Env) ([]PV, error) {
		return parentOf(ev, in, 1)
	})
	registerBuiltin("parent", 1, func(ev *Evaluator, in PV, args []*ast.Node, env *Env) ([]PV, error) {
		n, err := evalOne(ev, args[0], in, env)
		if err != nil {
			return nil, err
		}
		return parentOf(ev, in, int(n.N))
	})
	registerBuiltin("parents", 0, func(ev *Evaluator, in PV, args []*ast.Node, env *Env) ([]PV, error) {
		var out []PV
		for n := 1; n <= len(in.Path); n++ {
			p, err := parentOf(ev, in, n)
			if err != nil {
				return out, err
			}
			out = append(out, p...)
		}
		return out, nil
	})
}

func parentOf(ev *Evaluator, in PV, n int) ([]PV, error) {
	if n < 0 || n > len(in.Path) {
		return nil, newError("parent: no such ancestor")
	}
	p := in.Path[:len(in.Path)-n]
	return []PV{{Path: p, Val: getPath(ev.root, p)}}, nil
}

// streamValue emits jq's tostream events: [path, leafValue] for every leaf,
// followed by a closing [path] once a container's last element has streamed.
func streamValue(v value.Value, path []value.Value, out *[]PV) {
	switch v.Kind {
	case value.Array:
		if len(v.A) == 0 {
			*out = append(*out, PV{Val: value.NewArray([]value.Value{value.NewArray(path), value.NewArray(nil)})})
			return
		}
		for i, e := range v.A {
			streamValue(e, append(append([]value.Value{}, path...), value.NewNumber(float64(i))), out)
		}
		lastPath := append(append([]value.Value{}, path...), value.NewNumber(float64(len(v.A)-1)))
		*out = append(*out, PV{Val: value.NewArray([]value.Value{value.NewArray(lastPath)})})
	case value.ObjectKind:
		keys := v.O.Keys()
		if len(keys) == 0 {
			*out = append(*out, PV{Val: value.NewArray([]value.Value{value.NewArray(path), value.NewEmptyObject()})})
			return
		}
		for _, k := range keys {
			val, _ := v.O.Get(k)
			streamValue(val, append(append([]value.Value{}, path...), value.NewString(k)), out)
		}
		lastPath := append(append([]value.Value{}, path...), value.NewString(keys[len(keys)-1]))
		*out = append(*out, PV{Val: value.NewArray([]value.Value{value.NewArray(lastPath)})})
	default:
		*out = append(*out, PV{Val: value.NewArray([]value.Value{value.NewArray(path), v})})
	}
}

func fromStreamEvents(events []value.Value) ([]PV, error) {
	var out []PV
	cur := value.NewNull()
	have := false
	for _, e := range events {
		if e.Kind != value.Array || len(e.A) == 0 || e.A[0].Kind != value.Array {
			return nil, newError("fromstream requires [path, value] or [path] events")
		}
		path := e.A[0].A
		if len(e.A) >= 2 {
			cur = setPath(cur, path, e.A[1])
			have = true
			if len(path) == 0 {
				out = append(out, PV{Val: cur})
				cur = value.NewNull()
				have = false
			}
		} else if len(path) <= 1 {
			if have {
				out = append(out, PV{Val: cur})
			}
			cur = value.NewNull()
			have = false
		}
	}
	return out, nil
}
