package eval

import (
	"github.com/vshell/vshell/query/ast"
	"github.com/vshell/vshell/query/value"
)

// Structure & path family: object/array shape builtins and the
// getpath/setpath/delpaths/path/paths primitives spec §4.7 lists
// alongside ordinary value builtins, since they share the same
// path-tracking evaluator.
func init() {
	registerBuiltin("keys", 0, single(func(v value.Value) (value.Value, error) {
		switch v.Kind {
		case value.ObjectKind:
			return stringArray(v.O.SortedKeys()), nil
		case value.Array:
			return indexArray(len(v.A)), nil
		}
		return value.Value{}, newError("%s has no keys", v.TypeName())
	}))
	registerBuiltin("keys_unsorted", 0, single(func(v value.Value) (value.Value, error) {
		switch v.Kind {
		case value.ObjectKind:
			return stringArray(v.O.Keys()), nil
		case value.Array:
			return indexArray(len(v.A)), nil
		}
		return value.Value{}, newError("%s has no keys", v.TypeName())
	}))

	registerBuiltin("has", 1, func(ev *Evaluator, in PV, args []*ast.Node, env *Env) ([]PV, error) {
		key, err := evalOne(ev, args[0], in, env)
		if err != nil {
			return nil, err
		}
		switch {
		case in.Val.Kind == value.ObjectKind && key.Kind == value.String:
			_, ok := in.Val.O.Get(key.S)
			return []PV{{Val: value.NewBool(ok)}}, nil
		case in.Val.Kind == value.Array && key.Kind == value.Number:
			i := int(key.N)
			return []PV{{Val: value.NewBool(i >= 0 && i < len(in.Val.A))}}, nil
		}
		return nil, newError("Cannot check whether %s has a key", in.Val.TypeName())
	})
	registerBuiltin("in", 1, func(ev *Evaluator, in PV, args []*ast.Node, env *Env) ([]PV, error) {
		container, err := evalOne(ev, args[0], in, env)
		if err != nil {
			return nil, err
		}
		switch {
		case container.Kind == value.ObjectKind && in.Val.Kind == value.String:
			_, ok := container.O.Get(in.Val.S)
			return []PV{{Val: value.NewBool(ok)}}, nil
		case container.Kind == value.Array && in.Val.Kind == value.Number:
			i := int(in.Val.N)
			return []PV{{Val: value.NewBool(i >= 0 && i < len(container.A))}}, nil
		}
		return nil, newError("Cannot check whether %s is in %s", in.Val.TypeName(), container.TypeName())
	})

	registerBuiltin("to_entries", 0, single(func(v value.Value) (value.Value, error) {
		if v.Kind != value.ObjectKind {
			return value.Value{}, newError("%s has no entries", v.TypeName())
		}
		var out []value.Value
		for _, k := range v.O.Keys() {
			val, _ := v.O.Get(k)
			entry := value.NewEmptyObjectStruct()
			entry.Set("key", value.NewString(k))
			entry.Set("value", val)
			out = append(out, value.NewObject(entry))
		}
		return value.NewArray(out), nil
	}))
	registerBuiltin("from_entries", 0, single(func(v value.Value) (value.Value, error) {
		if v.Kind != value.Array {
			return value.Value{}, newError("from_entries requires an array")
		}
		obj := value.NewEmptyObjectStruct()
		for _, e := range v.A {
			if e.Kind != value.ObjectKind {
				return value.Value{}, newError("from_entries requires an array of objects")
			}
			key := entryKey(e)
			val := entryValue(e)
			obj.Set(key, val)
		}
		return value.NewObject(obj), nil
	}))
	registerBuiltin("with_entries", 1, func(ev *Evaluator, in PV, args []*ast.Node, env *Env) ([]PV, error) {
		if in.Val.Kind != value.ObjectKind {
			return nil, newError("%s has no entries", in.Val.TypeName())
		}
		obj := value.NewEmptyObjectStruct()
		for _, k := range in.Val.O.Keys() {
			val, _ := in.Val.O.Get(k)
			entryObj := value.NewEmptyObjectStruct()
			entryObj.Set("key", value.NewString(k))
			entryObj.Set("value", val)
			results, err := ev.evalPV(args[0], PV{Val: value.NewObject(entryObj)}, env)
			if err != nil {
				return nil, err
			}
			for _, r := range results {
				if r.Val.Kind != value.ObjectKind {
					return nil, newError("with_entries requires entries to stay objects")
				}
				obj.Set(entryKey(r.Val), entryValue(r.Val))
			}
		}
		return []PV{{Val: value.NewObject(obj)}}, nil
	})

	registerBuiltin("add", 0, single(func(v value.Value) (value.Value, error) {
		items, err := iterableItems(v)
		if err != nil {
			return value.Value{}, err
		}
		acc := value.NewNull()
		for _, it := range items {
			var err error
			acc, err = addValues(acc, it)
			if err != nil {
				return value.Value{}, err
			}
		}
		return acc, nil
	}))

	registerBuiltin("any", 0, single(func(v value.Value) (value.Value, error) {
		items, err := iterableItems(v)
		if err != nil {
			return value.Value{}, err
		}
		for _, it := range items {
			if it.Truthy() {
				return value.NewBool(true), nil
			}
		}
		return value.NewBool(false), nil
	}))
	registerBuiltin("all", 0, single(func(v value.Value) (value.Value, error) {
		items, err := iterableItems(v)
		if err != nil {
			return value.Value{}, err
		}
		for _, it := range items {
			if !it.Truthy() {
				return value.NewBool(false), nil
			}
		}
		return value.NewBool(true), nil
	}))
	registerBuiltin("any", 1, anyAllBuiltin(true))
	registerBuiltin("all", 1, anyAllBuiltin(false))

	registerBuiltin("flatten", 0, single(func(v value.Value) (value.Value, error) {
		return flattenArray(v, -1)
	}))
	registerBuiltin("flatten", 1, func(ev *Evaluator, in PV, args []*ast.Node, env *Env) ([]PV, error) {
		depth, err := evalOne(ev, args[0], in, env)
		if err != nil {
			return nil, err
		}
		v, err := flattenArray(in.Val, int(depth.N))
		if err != nil {
			return nil, err
		}
		return []PV{{Val: v}}, nil
	})

	registerBuiltin("getpath", 1, func(ev *Evaluator, in PV, args []*ast.Node, env *Env) ([]PV, error) {
		p, err := evalOne(ev, args[0], in, env)
		if err != nil {
			return nil, err
		}
		if p.Kind != value.Array {
			return nil, newError("getpath requires an array path")
		}
		return []PV{{Path: append(append([]value.Value{}, in.Path...), p.A...), Val: getPath(in.Val, p.A)}}, nil
	})
	registerBuiltin("setpath", 2, func(ev *Evaluator, in PV, args []*ast.Node, env *Env) ([]PV, error) {
		p, err := evalOne(ev, args[0], in, env)
		if err != nil {
			return nil, err
		}
		v, err := evalOne(ev, args[1], in, env)
		if err != nil {
			return nil, err
		}
		if p.Kind != value.Array {
			return nil, newError("setpath requires an array path")
		}
		return []PV{{Val: setPath(in.Val, p.A, v)}}, nil
	})
	registerBuiltin("delpaths", 1, func(ev *Evaluator, in PV, args []*ast.Node, env *Env) ([]PV, error) {
		ps, err := evalOne(ev, args[0], in, env)
		if err != nil {
			return nil, err
		}
		if ps.Kind != value.Array {
			return nil, newError("delpaths requires an array of paths")
		}
		paths := make([][]value.Value, len(ps.A))
		for i, p := range ps.A {
			if p.Kind != value.Array {
				return nil, newError("delpaths requires an array of paths")
			}
			paths[i] = p.A
		}
		sortPathsDesc(paths)
		cur := in.Val
		for _, p := range paths {
			cur = delPath(cur, p)
		}
		return []PV{{Val: cur}}, nil
	})
	registerBuiltin("path", 1, func(ev *Evaluator, in PV, args []*ast.Node, env *Env) ([]PV, error) {
		paths, err := ev.EvalPaths(args[0], in.Val, env)
		if err != nil {
			return nil, err
		}
		out := make([]PV, len(paths))
		for i, p := range paths {
			out[i] = PV{Val: value.NewArray(p)}
		}
		return out, nil
	})
	registerBuiltin("paths", 0, func(ev *Evaluator, in PV, args []*ast.Node, env *Env) ([]PV, error) {
		all := ev.recurseAll(in)
		var out []PV
		for _, pv := range all {
			if len(pv.Path) == 0 {
				continue
			}
			out = append(out, PV{Val: value.NewArray(relPath(in.Path, pv.Path))})
		}
		return out, nil
	})
	registerBuiltin("leaf_paths", 0, func(ev *Evaluator, in PV, args []*ast.Node, env *Env) ([]PV, error) {
		all := ev.recurseAll(in)
		var out []PV
		for _, pv := range all {
			if len(pv.Path) == 0 {
				continue
			}
			if pv.Val.Kind == value.Array || pv.Val.Kind == value.ObjectKind {
				continue
			}
			out = append(out, PV{Val: value.NewArray(relPath(in.Path, pv.Path))})
		}
		return out, nil
	})
	registerBuiltin("del", 1, func(ev *Evaluator, in PV, args []*ast.Node, env *Env) ([]PV, error) {
		paths, err := ev.EvalPaths(args[0], in.Val, env)
		if err != nil {
			return nil, err
		}
		sortPathsDesc(paths)
		cur := in.Val
		for _, p := range paths {
			cur = delPath(cur, p)
		}
		return []PV{{Val: cur}}, nil
	})
}

func relPath(base, full []value.Value) []value.Value {
	if len(full) <= len(base) {
		return nil
	}
	return append([]value.Value{}, full[len(base):]...)
}

func anyAllBuiltin(isAny bool) BuiltinFunc {
	return func(ev *Evaluator, in PV, args []*ast.Node, env *Env) ([]PV, error) {
		items, err := iterableItems(in.Val)
		if err != nil {
			return nil, err
		}
		for _, it := range items {
			results, err := ev.evalPV(args[0], PV{Val: it}, env)
			if err != nil {
				return nil, err
			}
			for _, r := range results {
				if isAny && r.Val.Truthy() {
					return []PV{{Val: value.NewBool(true)}}, nil
				}
				if !isAny && !r.Val.Truthy() {
					return []PV{{Val: value.NewBool(false)}}, nil
				}
			}
		}
		return []PV{{Val: value.NewBool(!isAny)}}, nil
	}
}

func iterableItems(v value.Value) ([]value.Value, error) {
	switch v.Kind {
	case value.Array:
		return v.A, nil
	case value.ObjectKind:
		var out []value.Value
		for _, k := range v.O.Keys() {
			val, _ := v.O.Get(k)
			out = append(out, val)
		}
		return out, nil
	}
	return nil, newError("Cannot iterate over %s", v.TypeName())
}

func entryKey(e value.Value) string {
	for _, k := range []string{"key", "k", "name", "Name", "Key", "K"} {
		if v, ok := e.O.Get(k); ok && v.Kind == value.String {
			return v.S
		}
	}
	return ""
}

func entryValue(e value.Value) value.Value {
	for _, k := range []string{"value", "v", "Value", "V"} {
		if v, ok := e.O.Get(k); ok {
			return v
		}
	}
	return value.NewNull()
}

func stringArray(keys []string) value.Value {
	out := make([]value.Value, len(keys))
	for i, k := range keys {
		out[i] = value.NewString(k)
	}
	return value.NewArray(out)
}

func indexArray(n int) value.Value {
	out := make([]value.Value, n)
	for i := 0; i < n; i++ {
		out[i] = value.NewNumber(float64(i))
	}
	return value.NewArray(out)
}

func flattenArray(v value.Value, depth int) (value.Value, error) {
	if v.Kind != value.Array {
		return value.Value{}, newError("%s cannot be flattened, as it is not an array", v.TypeName())
	}
	var out []value.Value
	var rec func(elems []value.Value, d int)
	rec = func(elems []value.Value, d int) {
		for _, e := range elems {
			if e.Kind == value.Array && d != 0 {
				rec(e.A, d-1)
			} else {
				out = append(out, e)
			}
		}
	}
	rec(v.A, depth)
	return value.NewArray(out), nil
}

func sortPathsDesc(paths [][]value.Value) {
	for i := 1; i < len(paths); i++ {
		for j := i; j > 0 && pathLess(paths[j-1], paths[j]); j-- {
			paths[j-1], paths[j] = paths[j], paths[j-1]
		}
	}
}

func pathLess(a, b []value.Value) bool {
	for i := 0; i < len(a) && i < len(b); i++ {
		if c := value.Compare(a[i], b[i]); c != 0 {
			return c < 0
		}
	}
	return len(a) < len(b)
}
