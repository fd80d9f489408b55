package eval

import (
	"github.com/vshell/vshell/query/ast"
	"github.com/vshell/vshell/query/value"
)

// BuiltinFunc is a natively implemented query function. It receives the
// raw argument ASTs (not pre-evaluated values) so filter-style arguments
// like map(f) or select(cond) can re-invoke f/cond per element the way a
// user-defined function parameter would.
type BuiltinFunc func(ev *Evaluator, in PV, args []*ast.Node, env *Env) ([]PV, error)

var builtinRegistry = map[string]BuiltinFunc{}

// registerBuiltin adds name/arity to the registry; called from each
// family file's init(), the same decentralized self-registration idiom
// shell/builtin uses to avoid one giant switch statement.
func registerBuiltin(name string, arity int, fn BuiltinFunc) {
	builtinRegistry[funcKey(name, arity)] = fn
}

func lookupBuiltin(name string, arity int) (BuiltinFunc, bool) {
	fn, ok := builtinRegistry[funcKey(name, arity)]
	return fn, ok
}

// evalOne evaluates node against in and returns its first output, or null
// if it produces none (the common case for a required scalar argument).
func evalOne(ev *Evaluator, node *ast.Node, in PV, env *Env) (value.Value, error) {
	results, err := ev.evalPV(node, in, env)
	if err != nil {
		return value.Value{}, err
	}
	if len(results) == 0 {
		return value.NewNull(), nil
	}
	return results[0].Val, nil
}

func evalAll(ev *Evaluator, node *ast.Node, in PV, env *Env) ([]value.Value, error) {
	results, err := ev.evalPV(node, in, env)
	if err != nil {
		return nil, err
	}
	out := make([]value.Value, len(results))
	for i, r := range results {
		out[i] = r.Val
	}
	return out, nil
}

// single wraps a plain value.Value-returning function as a BuiltinFunc.
func single(fn func(v value.Value) (value.Value, error)) BuiltinFunc {
	return func(ev *Evaluator, in PV, args []*ast.Node, env *Env) ([]PV, error) {
		v, err := fn(in.Val)
		if err != nil {
			return nil, err
		}
		return []PV{{Val: v}}, nil
	}
}
