package eval

import (
	"math"
	"strconv"
	"unicode/utf8"

	"github.com/vshell/vshell/query/ast"
	"github.com/vshell/vshell/query/value"
)

// Types & coercion family (spec §4.7 builtins table).
func init() {
	registerBuiltin("type", 0, single(func(v value.Value) (value.Value, error) {
		return value.NewString(v.TypeName()), nil
	}))
	registerBuiltin("not", 0, single(func(v value.Value) (value.Value, error) {
		return value.NewBool(!v.Truthy()), nil
	}))
	registerBuiltin("length", 0, single(builtinLength))
	registerBuiltin("utf8bytelength", 0, single(func(v value.Value) (value.Value, error) {
		if v.Kind != value.String {
			return value.Value{}, newError("%s has no utf8 byte length", v.TypeName())
		}
		return value.NewNumber(float64(len(v.S))), nil
	}))
	registerBuiltin("tostring", 0, single(func(v value.Value) (value.Value, error) {
		return value.NewString(v.ToGoString()), nil
	}))
	registerBuiltin("tonumber", 0, single(func(v value.Value) (value.Value, error) {
		switch v.Kind {
		case value.Number:
			return v, nil
		case value.String:
			n, err := strconv.ParseFloat(v.S, 64)
			if err != nil {
				return value.Value{}, newError("Cannot parse %q as number", v.S)
			}
			return value.NewNumber(n), nil
		}
		return value.Value{}, newError("Cannot parse %s as number", v.TypeName())
	}))
	registerBuiltin("infinite", 0, single(func(v value.Value) (value.Value, error) {
		return value.NewNumber(math.Inf(1)), nil
	}))
	registerBuiltin("nan", 0, single(func(v value.Value) (value.Value, error) {
		return value.NewNumber(math.NaN()), nil
	}))
	registerBuiltin("isinfinite", 0, single(func(v value.Value) (value.Value, error) {
		return value.NewBool(v.Kind == value.Number && math.IsInf(v.N, 0)), nil
	}))
	registerBuiltin("isnan", 0, single(func(v value.Value) (value.Value, error) {
		return value.NewBool(v.Kind == value.Number && math.IsNaN(v.N)), nil
	}))
	registerBuiltin("isnormal", 0, single(func(v value.Value) (value.Value, error) {
		if v.Kind != value.Number {
			return value.NewBool(false), nil
		}
		return value.NewBool(!math.IsNaN(v.N) && !math.IsInf(v.N, 0) && v.N != 0), nil
	}))
	registerBuiltin("values", 0, typeFilter(func(v value.Value) bool { return v.Kind != value.Null }))
	registerBuiltin("nulls", 0, typeFilter(func(v value.Value) bool { return v.Kind == value.Null }))
	registerBuiltin("booleans", 0, typeFilter(func(v value.Value) bool { return v.Kind == value.Bool }))
	registerBuiltin("numbers", 0, typeFilter(func(v value.Value) bool { return v.Kind == value.Number }))
	registerBuiltin("strings", 0, typeFilter(func(v value.Value) bool { return v.Kind == value.String }))
	registerBuiltin("arrays", 0, typeFilter(func(v value.Value) bool { return v.Kind == value.Array }))
	registerBuiltin("objects", 0, typeFilter(func(v value.Value) bool { return v.Kind == value.ObjectKind }))
	registerBuiltin("iterables", 0, typeFilter(func(v value.Value) bool { return v.Kind == value.Array || v.Kind == value.ObjectKind }))
	registerBuiltin("scalars", 0, typeFilter(func(v value.Value) bool { return v.Kind != value.Array && v.Kind != value.ObjectKind }))

	registerBuiltin("empty", 0, func(ev *Evaluator, in PV, args []*ast.Node, env *Env) ([]PV, error) {
		return nil, nil
	})
	registerBuiltin("error", 0, func(ev *Evaluator, in PV, args []*ast.Node, env *Env) ([]PV, error) {
		return nil, &QueryError{Msg: in.Val.ToGoString(), Value: in.Val}
	})
	registerBuiltin("error", 1, func(ev *Evaluator, in PV, args []*ast.Node, env *Env) ([]PV, error) {
		msg, err := evalOne(ev, args[0], in, env)
		if err != nil {
			return nil, err
		}
		return nil, &QueryError{Msg: msg.ToGoString(), Value: msg}
	})
}

func typeFilter(pred func(value.Value) bool) BuiltinFunc {
	return func(ev *Evaluator, in PV, args []*ast.Node, env *Env) ([]PV, error) {
		if !pred(in.Val) {
			return nil, nil
		}
		return []PV{in}, nil
	}
}

func builtinLength(v value.Value) (value.Value, error) {
	switch v.Kind {
	case value.Null:
		return value.NewNumber(0), nil
	case value.Bool:
		return value.Value{}, newError("boolean has no length")
	case value.Number:
		return value.NewNumber(math.Abs(v.N)), nil
	case value.String:
		return value.NewNumber(float64(utf8.RuneCountInString(v.S))), nil
	case value.Array:
		return value.NewNumber(float64(len(v.A))), nil
	case value.ObjectKind:
		return value.NewNumber(float64(v.O.Len())), nil
	}
	return value.Value{}, newError("unsupported length")
}
