package eval

import (
	"sort"

	"github.com/vshell/vshell/query/ast"
	"github.com/vshell/vshell/query/value"
)

// Sorting, grouping, set-like and structural-walk family (spec §4.7).
func init() {
	registerBuiltin("sort", 0, single(func(v value.Value) (value.Value, error) {
		if v.Kind != value.Array {
			return value.Value{}, newError("%s cannot be sorted, as it is not an array", v.TypeName())
		}
		out := sortValues(v.A)
		return value.NewArray(out), nil
	}))
	registerBuiltin("sort_by", 1, func(ev *Evaluator, in PV, args []*ast.Node, env *Env) ([]PV, error) {
		if in.Val.Kind != value.Array {
			return nil, newError("%s cannot be sorted, as it is not an array", in.Val.TypeName())
		}
		keyed, err := keyByFilter(ev, in.Val.A, args[0], env)
		if err != nil {
			return nil, err
		}
		sort.SliceStable(keyed, func(i, j int) bool {
			return value.Compare(value.NewArray(keyed[i].key), value.NewArray(keyed[j].key)) < 0
		})
		out := make([]value.Value, len(keyed))
		for i, k := range keyed {
			out[i] = k.v
		}
		return []PV{{Val: value.NewArray(out)}}, nil
	})
	registerBuiltin("group_by", 1, func(ev *Evaluator, in PV, args []*ast.Node, env *Env) ([]PV, error) {
		if in.Val.Kind != value.Array {
			return nil, newError("%s cannot be grouped, as it is not an array", in.Val.TypeName())
		}
		keyed, err := keyByFilter(ev, in.Val.A, args[0], env)
		if err != nil {
			return nil, err
		}
		sort.SliceStable(keyed, func(i, j int) bool {
			return value.Compare(value.NewArray(keyed[i].key), value.NewArray(keyed[j].key)) < 0
		})
		var groups []value.Value
		var cur []value.Value
		for i, k := range keyed {
			if i > 0 && value.Compare(value.NewArray(keyed[i-1].key), value.NewArray(k.key)) != 0 {
				groups = append(groups, value.NewArray(cur))
				cur = nil
			}
			cur = append(cur, k.v)
		}
		if len(cur) > 0 {
			groups = append(groups, value.NewArray(cur))
		}
		return []PV{{Val: value.NewArray(groups)}}, nil
	})
	registerBuiltin("unique", 0, single(func(v value.Value) (value.Value, error) {
		if v.Kind != value.Array {
			return value.Value{}, newError("%s cannot be sorted, as it is not an array", v.TypeName())
		}
		out := sortValues(v.A)
		var uniq []value.Value
		for i, e := range out {
			if i == 0 || value.Compare(out[i-1], e) != 0 {
				uniq = append(uniq, e)
			}
		}
		return value.NewArray(uniq), nil
	}))
	registerBuiltin("unique_by", 1, func(ev *Evaluator, in PV, args []*ast.Node, env *Env) ([]PV, error) {
		if in.Val.Kind != value.Array {
			return nil, newError("%s cannot be sorted, as it is not an array", in.Val.TypeName())
		}
		keyed, err := keyByFilter(ev, in.Val.A, args[0], env)
		if err != nil {
			return nil, err
		}
		sort.SliceStable(keyed, func(i, j int) bool {
			return value.Compare(value.NewArray(keyed[i].key), value.NewArray(keyed[j].key)) < 0
		})
		var out []value.Value
		for i, k := range keyed {
			if i == 0 || value.Compare(value.NewArray(keyed[i-1].key), value.NewArray(k.key)) != 0 {
				out = append(out, k.v)
			}
		}
		return []PV{{Val: value.NewArray(out)}}, nil
	})
	registerBuiltin("reverse", 0, single(func(v value.Value) (value.Value, error) {
		switch v.Kind {
		case value.Array:
			out := make([]value.Value, len(v.A))
			for i, e := range v.A {
				out[len(v.A)-1-i] = e
			}
			return value.NewArray(out), nil
		case value.String:
			runes := []rune(v.S)
			for i, j := 0, len(runes)-1; i < j; i, j = i+1, j-1 {
				runes[i], runes[j] = runes[j], runes[i]
			}
			return value.NewString(string(runes)), nil
		}
		return value.Value{}, newError("Cannot reverse %s", v.TypeName())
	}))
	registerBuiltin("min", 0, single(func(v value.Value) (value.Value, error) { return minMax(v, true) }))
	registerBuiltin("max", 0, single(func(v value.Value) (value.Value, error) { return minMax(v, false) }))
	registerBuiltin("min_by", 1, func(ev *Evaluator, in PV, args []*ast.Node, env *Env) ([]PV, error) {
		return minMaxBy(ev, in, args[0], env, true)
	})
	registerBuiltin("max_by", 1, func(ev *Evaluator, in PV, args []*ast.Node, env *Env) ([]PV, error) {
		return minMaxBy(ev, in, args[0], env, false)
	})
	registerBuiltin("indices", 1, func(ev *Evaluator, in PV, args []*ast.Node, env *Env) ([]PV, error) {
		needle, err := evalOne(ev, args[0], in, env)
		if err != nil {
			return nil, err
		}
		return []PV{{Val: indicesOf(in.Val, needle)}}, nil
	})
	registerBuiltin("index", 1, func(ev *Evaluator, in PV, args []*ast.Node, env *Env) ([]PV, error) {
		needle, err := evalOne(ev, args[0], in, env)
		if err != nil {
			return nil, err
		}
		idxs := indicesOf(in.Val, needle)
		if len(idxs.A) == 0 {
			return []PV{{Val: value.NewNull()}}, nil
		}
		return []PV{{Val: idxs.A[0]}}, nil
	})
	registerBuiltin("rindex", 1, func(ev *Evaluator, in PV, args []*ast.Node, env *Env) ([]PV, error) {
		needle, err := evalOne(ev, args[0], in, env)
		if err != nil {
			return nil, err
		}
		idxs := indicesOf(in.Val, needle)
		if len(idxs.A) == 0 {
			return []PV{{Val: value.NewNull()}}, nil
		}
		return []PV{{Val: idxs.A[len(idxs.A)-1]}}, nil
	})
	registerBuiltin("transpose", 0, single(func(v value.Value) (value.Value, error) {
		if v.Kind != value.Array {
			return value.Value{}, newError("transpose input must be an array of arrays")
		}
		maxLen := 0
		for _, row := range v.A {
			if row.Kind == value.Array && len(row.A) > maxLen {
				maxLen = len(row.A)
			}
		}
		out := make([]value.Value, maxLen)
		for i := 0; i < maxLen; i++ {
			col := make([]value.Value, len(v.A))
			for j, row := range v.A {
				if row.Kind == value.Array && i < len(row.A) {
					col[j] = row.A[i]
				} else {
					col[j] = value.NewNull()
				}
			}
			out[i] = value.NewArray(col)
		}
		return value.NewArray(out), nil
	}))
	registerBuiltin("contains", 1, func(ev *Evaluator, in PV, args []*ast.Node, env *Env) ([]PV, error) {
		other, err := evalOne(ev, args[0], in, env)
		if err != nil {
			return nil, err
		}
		return []PV{{Val: value.NewBool(containsValue(in.Val, other))}}, nil
	})
	registerBuiltin("inside", 1, func(ev *Evaluator, in PV, args []*ast.Node, env *Env) ([]PV, error) {
		other, err := evalOne(ev, args[0], in, env)
		if err != nil {
			return nil, err
		}
		return []PV{{Val: value.NewBool(containsValue(other, in.Val))}}, nil
	})
	registerBuiltin("walk", 1, func(ev *Evaluator, in PV, args []*ast.Node, env *Env) ([]PV, error) {
		v, err := walkValue(ev, in.Val, args[0], env)
		if err != nil {
			return nil, err
		}
		return []PV{{Val: v}}, nil
	})
	registerBuiltin("combinations", 0, func(ev *Evaluator, in PV, args []*ast.Node, env *Env) ([]PV, error) {
		if in.Val.Kind != value.Array {
			return nil, newError("combinations input must be an array of arrays")
		}
		return combinationsOf(in.Val.A)
	})
	registerBuiltin("combinations", 1, func(ev *Evaluator, in PV, args []*ast.Node, env *Env) ([]PV, error) {
		n, err := evalOne(ev, args[0], in, env)
		if err != nil {
			return nil, err
		}
		count := int(n.N)
		items := make([]value.Value, count)
		for i := range items {
			items[i] = in.Val
		}
		return combinationsOf(items)
	})
}

func combinationsOf(lists []value.Value) ([]PV, error) {
	if len(lists) == 0 {
		return []PV{{Val: value.NewArray(nil)}}, nil
	}
	for _, l := range lists {
		if l.Kind != value.Array {
			return nil, newError("combinations input must be an array of arrays")
		}
	}
	var out []PV
	var rec func(idx int, acc []value.Value)
	rec = func(idx int, acc []value.Value) {
		if idx == len(lists) {
			cp := append([]value.Value(nil), acc...)
			out = append(out, PV{Val: value.NewArray(cp)})
			return
		}
		for _, e := range lists[idx].A {
			rec(idx+1, append(acc, e))
		}
	}
	rec(0, nil)
	return out, nil
}

type keyedValue struct {
	key []value.Value
	v   value.Value
}

func keyByFilter(ev *Evaluator, items []value.Value, node *ast.Node, env *Env) ([]keyedValue, error) {
	out := make([]keyedValue, len(items))
	for i, it := range items {
		keys, err := evalAll(ev, node, PV{Val: it}, env)
		if err != nil {
			return nil, err
		}
		out[i] = keyedValue{key: keys, v: it}
	}
	return out, nil
}

func minMax(v value.Value, wantMin bool) (value.Value, error) {
	if v.Kind != value.Array {
		return value.Value{}, newError("Cannot compute min/max of %s", v.TypeName())
	}
	if len(v.A) == 0 {
		return value.NewNull(), nil
	}
	best := v.A[0]
	for _, e := range v.A[1:] {
		c := value.Compare(e, best)
		if (wantMin && c < 0) || (!wantMin && c >= 0) {
			best = e
		}
	}
	return best, nil
}

func minMaxBy(ev *Evaluator, in PV, node *ast.Node, env *Env, wantMin bool) ([]PV, error) {
	if in.Val.Kind != value.Array {
		return nil, newError("Cannot compute min/max of %s", in.Val.TypeName())
	}
	if len(in.Val.A) == 0 {
		return []PV{{Val: value.NewNull()}}, nil
	}
	keyed, err := keyByFilter(ev, in.Val.A, node, env)
	if err != nil {
		return nil, err
	}
	best := keyed[0]
	for _, k := range keyed[1:] {
		c := value.Compare(value.NewArray(k.key), value.NewArray(best.key))
		if (wantMin && c < 0) || (!wantMin && c >= 0) {
			best = k
		}
	}
	return []PV{{Val: best.v}}, nil
}

func indicesOf(haystack, needle value.Value) value.Value {
	switch haystack.Kind {
	case value.Array:
		if needle.Kind == value.Array && len(needle.A) > 0 {
			idxs := indicesOfSub(haystack.A, needle.A)
			out := make([]value.Value, len(idxs))
			for i, idx := range idxs {
				out[i] = value.NewNumber(float64(idx))
			}
			return value.NewArray(out)
		}
		var out []value.Value
		for i, e := range haystack.A {
			if value.Equal(e, needle) {
				out = append(out, value.NewNumber(float64(i)))
			}
		}
		return value.NewArray(out)
	case value.String:
		if needle.Kind != value.String || needle.S == "" {
			return value.NewArray(nil)
		}
		var out []value.Value
		s := haystack.S
		start := 0
		for {
			idx := indexOfSubstring(s[start:], needle.S)
			if idx < 0 {
				break
			}
			out = append(out, value.NewNumber(float64(start+idx)))
			start += idx + 1
			if start > len(s) {
				break
			}
		}
		return value.NewArray(out)
	}
	return value.NewArray(nil)
}

func indexOfSubstring(s, sub string) int {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return i
		}
	}
	return -1
}

func containsValue(a, b value.Value) bool {
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case value.String:
		return indexOfSubstring(a.S, b.S) >= 0 || b.S == ""
	case value.Array:
		for _, be := range b.A {
			found := false
			for _, ae := range a.A {
				if containsValue(ae, be) {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		}
		return true
	case value.ObjectKind:
		for _, k := range b.O.Keys() {
			bv, _ := b.O.Get(k)
			av, ok := a.O.Get(k)
			if !ok || !containsValue(av, bv) {
				return false
			}
		}
		return true
	default:
		return value.Equal(a, b)
	}
}

func walkValue(ev *Evaluator, v value.Value, node *ast.Node, env *Env) (value.Value, error) {
	switch v.Kind {
	case value.Array:
		out := make([]value.Value, len(v.A))
		for i, e := range v.A {
			r, err := walkValue(ev, e, node, env)
			if err != nil {
				return value.Value{}, err
			}
			out[i] = r
		}
		v = value.NewArray(out)
	case value.ObjectKind:
		obj := value.NewEmptyObjectStruct()
		for _, k := range v.O.Keys() {
			ov, _ := v.O.Get(k)
			r, err := walkValue(ev, ov, node, env)
			if err != nil {
				return value.Value{}, err
			}
			obj.Set(k, r)
		}
		v = value.NewObject(obj)
	}
	return evalOne(ev, node, PV{Val: v}, env)
}
