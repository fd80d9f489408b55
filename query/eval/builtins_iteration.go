package eval

import (
	"github.com/vshell/vshell/query/ast"
	"github.com/vshell/vshell/query/value"
)

// Iteration & control family: generators and filter-combinators that take
// other filters as arguments rather than pre-evaluated values.
func init() {
	registerBuiltin("range", 1, func(ev *Evaluator, in PV, args []*ast.Node, env *Env) ([]PV, error) {
		return rangeBuiltin(ev, in, env, nil, args[0], nil)
	})
	registerBuiltin("range", 2, func(ev *Evaluator, in PV, args []*ast.Node, env *Env) ([]PV, error) {
		return rangeBuiltin(ev, in, env, args[0], args[1], nil)
	})
	registerBuiltin("range", 3, func(ev *Evaluator, in PV, args []*ast.Node, env *Env) ([]PV, error) {
		return rangeBuiltin(ev, in, env, args[0], args[1], args[2])
	})

	registerBuiltin("recurse", 0, func(ev *Evaluator, in PV, args []*ast.Node, env *Env) ([]PV, error) {
		return ev.recurseAll(in), nil
	})
	registerBuiltin("recurse", 1, func(ev *Evaluator, in PV, args []*ast.Node, env *Env) ([]PV, error) {
		return recurseWith(ev, in, env, args[0], nil)
	})
	registerBuiltin("recurse", 2, func(ev *Evaluator, in PV, args []*ast.Node, env *Env) ([]PV, error) {
		return recurseWith(ev, in, env, args[0], args[1])
	})
	registerBuiltin("recurse_down", 0, func(ev *Evaluator, in PV, args []*ast.Node, env *Env) ([]PV, error) {
		return ev.recurseAll(in), nil
	})

	registerBuiltin("select", 1, func(ev *Evaluator, in PV, args []*ast.Node, env *Env) ([]PV, error) {
		conds, err := ev.evalPV(args[0], in, env)
		if err != nil {
			return nil, err
		}
		var out []PV
		for _, c := range conds {
			if c.Val.Truthy() {
				out = append(out, in)
			}
		}
		return out, nil
	})

	registerBuiltin("map", 1, func(ev *Evaluator, in PV, args []*ast.Node, env *Env) ([]PV, error) {
		items, err := iterableItems(in.Val)
		if err != nil {
			return nil, err
		}
		var out []value.Value
		for _, it := range items {
			results, err := ev.evalPV(args[0], PV{Val: it}, env)
			if err != nil {
				return nil, err
			}
			for _, r := range results {
				out = append(out, r.Val)
			}
		}
		return []PV{{Val: value.NewArray(out)}}, nil
	})
	registerBuiltin("map_values", 1, func(ev *Evaluator, in PV, args []*ast.Node, env *Env) ([]PV, error) {
		switch in.Val.Kind {
		case value.Array:
			var out []value.Value
			for _, it := range in.Val.A {
				results, err := ev.evalPV(args[0], PV{Val: it}, env)
				if err != nil {
					return nil, err
				}
				if len(results) > 0 {
					out = append(out, results[0].Val)
				}
			}
			return []PV{{Val: value.NewArray(out)}}, nil
		case value.ObjectKind:
			obj := value.NewEmptyObjectStruct()
			for _, k := range in.Val.O.Keys() {
				v, _ := in.Val.O.Get(k)
				results, err := ev.evalPV(args[0], PV{Val: v}, env)
				if err != nil {
					return nil, err
				}
				if len(results) > 0 {
					obj.Set(k, results[0].Val)
				}
			}
			return []PV{{Val: value.NewObject(obj)}}, nil
		}
		return nil, newError("Cannot map_values over %s", in.Val.TypeName())
	})

	registerBuiltin("first", 0, func(ev *Evaluator, in PV, args []*ast.Node, env *Env) ([]PV, error) {
		if in.Val.Kind != value.Array || len(in.Val.A) == 0 {
			return nil, newError("Cannot index array with number")
		}
		return []PV{{Path: extendPath(in.Path, value.NewNumber(0)), Val: in.Val.A[0]}}, nil
	})
	registerBuiltin("last", 0, func(ev *Evaluator, in PV, args []*ast.Node, env *Env) ([]PV, error) {
		if in.Val.Kind != value.Array || len(in.Val.A) == 0 {
			return nil, newError("Cannot index array with number")
		}
		i := len(in.Val.A) - 1
		return []PV{{Path: extendPath(in.Path, value.NewNumber(float64(i))), Val: in.Val.A[i]}}, nil
	})
	registerBuiltin("first", 1, func(ev *Evaluator, in PV, args []*ast.Node, env *Env) ([]PV, error) {
		results, err := ev.evalPV(args[0], in, env)
		if err != nil {
			return nil, err
		}
		if len(results) == 0 {
			return nil, nil
		}
		return results[:1], nil
	})
	registerBuiltin("last", 1, func(ev *Evaluator, in PV, args []*ast.Node, env *Env) ([]PV, error) {
		results, err := ev.evalPV(args[0], in, env)
		if err != nil {
			return nil, err
		}
		if len(results) == 0 {
			return nil, nil
		}
		return results[len(results)-1:], nil
	})
	registerBuiltin("nth", 1, func(ev *Evaluator, in PV, args []*ast.Node, env *Env) ([]PV, error) {
		n, err := evalOne(ev, args[0], in, env)
		if err != nil {
			return nil, err
		}
		i := int(n.N)
		if in.Val.Kind != value.Array || i < 0 || i >= len(in.Val.A) {
			return []PV{{Val: value.NewNull()}}, nil
		}
		return []PV{{Path: extendPath(in.Path, value.NewNumber(float64(i))), Val: in.Val.A[i]}}, nil
	})
	registerBuiltin("nth", 2, func(ev *Evaluator, in PV, args []*ast.Node, env *Env) ([]PV, error) {
		n, err := evalOne(ev, args[0], in, env)
		if err != nil {
			return nil, err
		}
		idx := int(n.N)
		if idx < 0 {
			return nil, newError("Out of bounds negative array index")
		}
		results, err := ev.evalPV(args[1], in, env)
		if err != nil {
			return nil, err
		}
		if idx >= len(results) {
			return nil, nil
		}
		return results[idx : idx+1], nil
	})

	registerBuiltin("limit", 2, func(ev *Evaluator, in PV, args []*ast.Node, env *Env) ([]PV, error) {
		n, err := evalOne(ev, args[0], in, env)
		if err != nil {
			return nil, err
		}
		limit := int(n.N)
		if limit <= 0 {
			return nil, nil
		}
		results, err := ev.evalPV(args[1], in, env)
		if err != nil && len(results) == 0 {
			return nil, err
		}
		if limit < len(results) {
			results = results[:limit]
		}
		return results, nil
	})

	registerBuiltin("until", 2, func(ev *Evaluator, in PV, args []*ast.Node, env *Env) ([]PV, error) {
		cur := in
		for {
			conds, err := ev.evalPV(args[0], cur, env)
			if err != nil {
				return nil, err
			}
			if len(conds) > 0 && conds[0].Val.Truthy() {
				return []PV{cur}, nil
			}
			updates, err := ev.evalPV(args[1], cur, env)
			if err != nil {
				return nil, err
			}
			if len(updates) == 0 {
				return nil, newError("until: update produced no value")
			}
			cur = updates[0]
		}
	})
	registerBuiltin("while", 2, func(ev *Evaluator, in PV, args []*ast.Node, env *Env) ([]PV, error) {
		var out []PV
		cur := in
		for {
			conds, err := ev.evalPV(args[0], cur, env)
			if err != nil {
				return out, err
			}
			if len(conds) == 0 || !conds[0].Val.Truthy() {
				return out, nil
			}
			out = append(out, cur)
			updates, err := ev.evalPV(args[1], cur, env)
			if err != nil {
				return out, err
			}
			if len(updates) == 0 {
				return out, nil
			}
			cur = updates[0]
		}
	})
	registerBuiltin("repeat", 1, func(ev *Evaluator, in PV, args []*ast.Node, env *Env) ([]PV, error) {
		var out []PV
		cur := in
		const cap = 10000 // repeat is infinite in jq; cap to keep batch evaluation terminating
		for i := 0; i < cap; i++ {
			out = append(out, cur)
			updates, err := ev.evalPV(args[0], cur, env)
			if err != nil {
				return out, err
			}
			if len(updates) == 0 {
				return out, nil
			}
			cur = updates[0]
		}
		return out, nil
	})
}

func rangeBuiltin(ev *Evaluator, in PV, env *Env, fromNode, uptoNode, byNode *ast.Node) ([]PV, error) {
	var froms []value.Value
	if fromNode == nil {
		froms = []value.Value{value.NewNumber(0)}
	} else {
		var err error
		froms, err = evalAll(ev, fromNode, in, env)
		if err != nil {
			return nil, err
		}
	}
	uptos, err := evalAll(ev, uptoNode, in, env)
	if err != nil {
		return nil, err
	}
	var bys []value.Value
	if byNode == nil {
		bys = []value.Value{value.NewNumber(1)}
	} else {
		bys, err = evalAll(ev, byNode, in, env)
		if err != nil {
			return nil, err
		}
	}
	var out []PV
	for _, f := range froms {
		for _, u := range uptos {
			for _, b := range bys {
				if b.N == 0 {
					continue
				}
				for x := f.N; (b.N > 0 && x < u.N) || (b.N < 0 && x > u.N); x += b.N {
					out = append(out, PV{Val: value.NewNumber(x)})
				}
			}
		}
	}
	return out, nil
}

func recurseWith(ev *Evaluator, in PV, env *Env, f, cond *ast.Node) ([]PV, error) {
	var out []PV
	var rec func(pv PV) error
	rec = func(pv PV) error {
		if cond != nil {
			conds, err := ev.evalPV(cond, pv, env)
			if err != nil {
				return err
			}
			if len(conds) == 0 || !conds[0].Val.Truthy() {
				return nil
			}
		}
		out = append(out, pv)
		children, err := ev.evalPV(f, pv, env)
		if err != nil {
			if cond != nil {
				return nil
			}
			return nil
		}
		for _, c := range children {
			if err := rec(c); err != nil {
				return err
			}
		}
		return nil
	}
	if err := rec(in); err != nil {
		return out, err
	}
	return out, nil
}
