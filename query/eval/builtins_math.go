package eval

import (
	"math"

	"github.com/vshell/vshell/query/ast"
	"github.com/vshell/vshell/query/value"
)

// Math family (spec §4.7): thin wrappers over the standard math package,
// each requiring a numeric input.
func init() {
	registerMath1("floor", math.Floor)
	registerMath1("ceil", math.Ceil)
	registerMath1("round", math.Round)
	registerMath1("sqrt", math.Sqrt)
	registerMath1("log", math.Log)
	registerMath1("log2", math.Log2)
	registerMath1("log10", math.Log10)
	registerMath1("exp", math.Exp)
	registerMath1("exp2", math.Exp2)
	registerMath1("exp10", func(x float64) float64 { return math.Pow(10, x) })
	registerMath1("fabs", math.Abs)
	registerMath1("abs", math.Abs)
	registerMath1("cbrt", math.Cbrt)
	registerMath1("sin", math.Sin)
	registerMath1("cos", math.Cos)
	registerMath1("tan", math.Tan)
	registerMath1("asin", math.Asin)
	registerMath1("acos", math.Acos)
	registerMath1("atan", math.Atan)
	registerMath1("sinh", math.Sinh)
	registerMath1("cosh", math.Cosh)
	registerMath1("tanh", math.Tanh)
	registerMath1("trunc", math.Trunc)
	registerMath1("significand", func(x float64) float64 {
		if x == 0 || math.IsNaN(x) || math.IsInf(x, 0) {
			return x
		}
		frac, exp := math.Frexp(x)
		_ = exp
		return frac * 2
	})
	registerMath1("logb", func(x float64) float64 {
		if x == 0 {
			return math.Inf(-1)
		}
		_, exp := math.Frexp(x)
		return float64(exp - 1)
	})
	registerMath1("gamma", math.Gamma)
	registerMath1("lgamma", func(x float64) float64 { v, _ := math.Lgamma(x); return v })
	registerMath1("nearbyint", math.RoundToEven)

	registerBuiltin("pow", 2, func(ev *Evaluator, in PV, args []*ast.Node, env *Env) ([]PV, error) {
		a, err := evalOne(ev, args[0], in, env)
		if err != nil {
			return nil, err
		}
		b, err := evalOne(ev, args[1], in, env)
		if err != nil {
			return nil, err
		}
		if a.Kind != value.Number || b.Kind != value.Number {
			return nil, newError("pow() requires numeric arguments")
		}
		return []PV{{Val: value.NewNumber(math.Pow(a.N, b.N))}}, nil
	})
	registerBuiltin("atan2", 2, func(ev *Evaluator, in PV, args []*ast.Node, env *Env) ([]PV, error) {
		a, err := evalOne(ev, args[0], in, env)
		if err != nil {
			return nil, err
		}
		b, err := evalOne(ev, args[1], in, env)
		if err != nil {
			return nil, err
		}
		return []PV{{Val: value.NewNumber(math.Atan2(a.N, b.N))}}, nil
	})
	registerBuiltin("fmin", 2, func(ev *Evaluator, in PV, args []*ast.Node, env *Env) ([]PV, error) {
		a, err := evalOne(ev, args[0], in, env)
		if err != nil {
			return nil, err
		}
		b, err := evalOne(ev, args[1], in, env)
		if err != nil {
			return nil, err
		}
		return []PV{{Val: value.NewNumber(math.Min(a.N, b.N))}}, nil
	})
	registerBuiltin("fmax", 2, func(ev *Evaluator, in PV, args []*ast.Node, env *Env) ([]PV, error) {
		a, err := evalOne(ev, args[0], in, env)
		if err != nil {
			return nil, err
		}
		b, err := evalOne(ev, args[1], in, env)
		if err != nil {
			return nil, err
		}
		return []PV{{Val: value.NewNumber(math.Max(a.N, b.N))}}, nil
	})
}

func registerMath1(name string, fn func(float64) float64) {
	registerBuiltin(name, 0, single(func(v value.Value) (value.Value, error) {
		if v.Kind != value.Number {
			return value.Value{}, newError("%s is not a number", v.TypeName())
		}
		return value.NewNumber(fn(v.N)), nil
	}))
}
