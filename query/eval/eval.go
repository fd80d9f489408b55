// Package eval evaluates query/ast trees against query/value.Value inputs,
// tracking the path taken from the root alongside every produced value so
// path expressions, updates, and the `path`/`paths`/`getpath` family fall
// out of the same walk that powers plain value evaluation (spec §4.7,
// §9 "Path tracking as a value annotation, not a parallel evaluator").
//
// Evaluation is eager and batch (a Node resolves to a fully materialized
// []PV) rather than a lazy generator: the finite-sequence semantics the
// query language specifies are observationally equivalent for any
// terminating program, and batching keeps break/label unwinding and
// alternative-operator backtracking simple at the cost of not streaming
// partial output from a non-terminating generator (spec §4.7 Open
// Questions, documented simplification).
package eval

import (
	"math"
	"os"
	"sort"
	"strings"

	"github.com/vshell/vshell/query/ast"
	"github.com/vshell/vshell/query/value"
)

// Evaluator carries state shared across one evaluation run: a counter for
// minting unique label ids (so nested same-named labels don't collide) and
// the extra inputs available to `input`/`inputs`.
type Evaluator struct {
	labelSeq int
	Inputs   []value.Value
	inputPos int
	Env      map[string]string // $ENV
	Args     map[string]value.Value
	ProgName string
	root     value.Value // snapshot of the top-level input, for root/parent/parents
}

func New() *Evaluator {
	ev := &Evaluator{Env: map[string]string{}, Args: map[string]value.Value{}}
	for _, kv := range os.Environ() {
		if i := strings.IndexByte(kv, '='); i >= 0 {
			ev.Env[kv[:i]] = kv[i+1:]
		}
	}
	return ev
}

func (ev *Evaluator) nextLabelID() int {
	ev.labelSeq++
	return ev.labelSeq
}

func envMapToValue(m map[string]string) value.Value {
	obj := value.NewEmptyObjectStruct()
	for k, v := range m {
		obj.Set(k, value.NewString(v))
	}
	return value.NewObject(obj)
}

// Run evaluates node against input with a fresh root environment plus any
// $name arguments pre-bound as variables.
func (ev *Evaluator) Run(node *ast.Node, input value.Value) ([]value.Value, error) {
	ev.root = input
	env := NewRootEnv()
	env = env.WithVar("ENV", envMapToValue(ev.Env))
	env = env.WithVar("__prog_name__", value.NewString(ev.ProgName))
	for name, v := range ev.Args {
		env = env.WithVar(name, v)
	}
	pvs, err := ev.evalPV(node, PV{Val: input}, env)
	out := make([]value.Value, len(pvs))
	for i, pv := range pvs {
		out[i] = pv.Val
	}
	if err != nil {
		if _, ok := err.(*breakErr); ok {
			return out, newError("break outside matching label")
		}
		return out, err
	}
	return out, nil
}

// EvalPaths returns the paths (relative to input) that node resolves to
// when used as a path expression.
func (ev *Evaluator) EvalPaths(node *ast.Node, input value.Value, env *Env) ([][]value.Value, error) {
	pvs, err := ev.evalPV(node, PV{Val: input}, env)
	if err != nil {
		return nil, err
	}
	out := make([][]value.Value, len(pvs))
	for i, pv := range pvs {
		out[i] = pv.Path
	}
	return out, nil
}

func (ev *Evaluator) evalPV(node *ast.Node, in PV, env *Env) ([]PV, error) {
	switch node.Kind {
	case ast.Identity:
		return []PV{in}, nil

	case ast.RecurseDefault:
		return ev.recurseAll(in), nil

	case ast.Field:
		return ev.evalField(node.Name, in)

	case ast.Index:
		return ev.evalIndex(node, in, env)

	case ast.Slice:
		return ev.evalSlice(node, in, env)

	case ast.IterateAll:
		return ev.evalIterate(in)

	case ast.Pipe:
		lefts, err := ev.evalPV(node.Left, in, env)
		out, bErr := ev.flatMapPreserving(lefts, err, func(lv PV) ([]PV, error) {
			return ev.evalPV(node.Right, lv, env)
		})
		return out, bErr

	case ast.Comma:
		left, lerr := ev.evalPV(node.Left, in, env)
		if lerr != nil {
			return left, lerr
		}
		right, rerr := ev.evalPV(node.Right, in, env)
		return append(left, right...), rerr

	case ast.Literal:
		v, _ := node.LiteralValue.(value.Value)
		return []PV{{Val: v}}, nil

	case ast.ArrayLit:
		if node.Elem == nil {
			return []PV{{Val: value.NewArray(nil)}}, nil
		}
		elems, err := ev.evalPV(node.Elem, in, env)
		if err != nil {
			return nil, err
		}
		arr := make([]value.Value, len(elems))
		for i, e := range elems {
			arr[i] = e.Val
		}
		return []PV{{Val: value.NewArray(arr)}}, nil

	case ast.ObjectLit:
		return ev.evalObjectLit(node.Entries, 0, value.NewEmptyObjectStruct(), in, env)

	case ast.Paren:
		return ev.evalPV(node.Body, in, env)

	case ast.BinaryOp:
		return ev.evalBinaryOp(node, in, env)

	case ast.UnaryOp:
		operands, err := ev.evalPV(node.Operand, in, env)
		if err != nil {
			return nil, err
		}
		out := make([]PV, 0, len(operands))
		for _, o := range operands {
			if o.Val.Kind != value.Number {
				return nil, newError("%s cannot be negated", o.Val.TypeName())
			}
			out = append(out, PV{Val: value.NewNumber(-o.Val.N)})
		}
		return out, nil

	case ast.Cond:
		return ev.evalCond(node, in, env)

	case ast.TryCatch:
		return ev.evalTryCatch(node, in, env)

	case ast.Optional:
		results, err := ev.evalPV(node.Body, in, env)
		if err != nil {
			if _, ok := err.(*breakErr); ok {
				return results, err
			}
			return results, nil
		}
		return results, nil

	case ast.Call:
		return ev.evalCall(node, in, env)

	case ast.VarBind:
		return ev.evalVarBind(node, in, env)

	case ast.VarRef:
		v, ok := env.LookupVar(node.VarName)
		if !ok {
			return nil, newError("$%s is not defined", node.VarName)
		}
		return []PV{{Val: v}}, nil

	case ast.StringInterp:
		return ev.evalStringInterp(node.Parts, 0, "", in, env)

	case ast.UpdateOp:
		return ev.evalUpdateOp(node, in, env)

	case ast.Reduce:
		return ev.evalReduce(node, in, env)

	case ast.Foreach:
		return ev.evalForeach(node, in, env)

	case ast.Label:
		id := ev.nextLabelID()
		childEnv := env.WithLabel(node.VarName, id)
		results, err := ev.evalPV(node.Body, in, childEnv)
		if err != nil {
			if be, ok := err.(*breakErr); ok && be.id == id {
				return results, nil
			}
			return results, err
		}
		return results, nil

	case ast.Break:
		id, ok := env.LookupLabel(node.VarName)
		if !ok {
			return nil, newError("$*label-%s* is not defined", node.VarName)
		}
		return nil, &breakErr{id: id}

	case ast.Def:
		cl := &Closure{Name: node.DefName, Arity: len(node.Params), Params: node.Params, Body: node.DefBody}
		funcEnv := env.WithFunc(cl)
		cl.Env = funcEnv
		return ev.evalPV(node.DefRest, in, funcEnv)

	case ast.FormatString:
		return ev.evalFormatString(node, in, env)
	}
	return nil, newError("unsupported node kind %d", node.Kind)
}

// flatMapPreserving runs fn over every pv in pvs, concatenating results and
// propagating the first error while keeping whatever output was already
// produced (needed so `break` unwinds with partial results intact).
func (ev *Evaluator) flatMapPreserving(pvs []PV, firstErr error, fn func(PV) ([]PV, error)) ([]PV, error) {
	if firstErr != nil {
		return nil, firstErr
	}
	var out []PV
	for _, pv := range pvs {
		sub, err := fn(pv)
		out = append(out, sub...)
		if err != nil {
			return out, err
		}
	}
	return out, nil
}

func (ev *Evaluator) recurseAll(in PV) []PV {
	out := []PV{in}
	switch in.Val.Kind {
	case value.Array:
		for i, e := range in.Val.A {
			out = append(out, ev.recurseAll(PV{Path: extendPath(in.Path, value.NewNumber(float64(i))), Val: e})...)
		}
	case value.ObjectKind:
		for _, k := range in.Val.O.Keys() {
			v, _ := in.Val.O.Get(k)
			out = append(out, ev.recurseAll(PV{Path: extendPath(in.Path, value.NewString(k)), Val: v})...)
		}
	}
	return out
}

func (ev *Evaluator) evalField(name string, in PV) ([]PV, error) {
	switch in.Val.Kind {
	case value.Null:
		return []PV{{Path: extendPath(in.Path, value.NewString(name)), Val: value.NewNull()}}, nil
	case value.ObjectKind:
		v, ok := in.Val.O.Get(name)
		if !ok {
			v = value.NewNull()
		}
		return []PV{{Path: extendPath(in.Path, value.NewString(name)), Val: v}}, nil
	}
	return nil, newError("Cannot index %s with \"%s\"", in.Val.TypeName(), name)
}

func (ev *Evaluator) evalIndex(node *ast.Node, in PV, env *Env) ([]PV, error) {
	idxResults, err := ev.evalPV(node.Index, in, env)
	if err != nil {
		return nil, err
	}
	var out []PV
	for _, idx := range idxResults {
		pv, err := ev.indexOne(in, idx.Val)
		if err != nil {
			return out, err
		}
		out = append(out, pv)
	}
	return out, nil
}

func (ev *Evaluator) indexOne(in PV, idx value.Value) (PV, error) {
	switch {
	case in.Val.Kind == value.Null:
		return PV{Path: extendPath(in.Path, idx), Val: value.NewNull()}, nil
	case in.Val.Kind == value.ObjectKind && idx.Kind == value.String:
		v, ok := in.Val.O.Get(idx.S)
		if !ok {
			v = value.NewNull()
		}
		return PV{Path: extendPath(in.Path, idx), Val: v}, nil
	case in.Val.Kind == value.Array && idx.Kind == value.Number:
		i := normalizeIndex(int(idx.N), len(in.Val.A))
		var v value.Value
		if i < 0 || i >= len(in.Val.A) {
			v = value.NewNull()
		} else {
			v = in.Val.A[i]
		}
		return PV{Path: extendPath(in.Path, value.NewNumber(float64(i))), Val: v}, nil
	case in.Val.Kind == value.Array && idx.Kind == value.Array:
		return PV{Val: value.NewArray(indicesOfSub(in.Val.A, idx.A))}, nil
	}
	return PV{}, newError("Cannot index %s with %s", in.Val.TypeName(), idx.TypeName())
}

func (ev *Evaluator) evalSlice(node *ast.Node, in PV, env *Env) ([]PV, error) {
	froms, err := ev.evalOptionalSeq(node.From, in, env)
	if err != nil {
		return nil, err
	}
	tos, err := ev.evalOptionalSeq(node.To, in, env)
	if err != nil {
		return nil, err
	}
	var out []PV
	for _, f := range froms {
		for _, t := range tos {
			pv, err := ev.sliceOne(in, f, t)
			if err != nil {
				return out, err
			}
			out = append(out, pv)
		}
	}
	return out, nil
}

// evalOptionalSeq evaluates an optional slice bound, returning a single
// nil-Value placeholder (meaning "open end") when node is nil.
func (ev *Evaluator) evalOptionalSeq(node *ast.Node, in PV, env *Env) ([]*value.Value, error) {
	if node == nil {
		return []*value.Value{nil}, nil
	}
	results, err := ev.evalPV(node, in, env)
	if err != nil {
		return nil, err
	}
	out := make([]*value.Value, len(results))
	for i, r := range results {
		v := r.Val
		out[i] = &v
	}
	return out, nil
}

func (ev *Evaluator) sliceOne(in PV, from, to *value.Value) (PV, error) {
	if in.Val.Kind == value.Null {
		return PV{Val: value.NewNull()}, nil
	}
	if in.Val.Kind != value.Array && in.Val.Kind != value.String {
		return PV{}, newError("Cannot slice %s", in.Val.TypeName())
	}
	length := len(in.Val.A)
	if in.Val.Kind == value.String {
		length = len([]rune(in.Val.S))
	}
	f := clampSliceBound(from, 0, length)
	t := clampSliceBound(to, length, length)
	if f > t {
		f = t
	}
	if in.Val.Kind == value.String {
		runes := []rune(in.Val.S)
		return PV{Val: value.NewString(string(runes[f:t]))}, nil
	}
	arr := append([]value.Value{}, in.Val.A[f:t]...)
	return PV{Val: value.NewArray(arr)}, nil
}

func clampSliceBound(v *value.Value, def, length int) int {
	if v == nil || v.Kind != value.Number {
		if def < 0 {
			return 0
		}
		if def > length {
			return length
		}
		return def
	}
	n := int(v.N)
	if n < 0 {
		n = length + n
	}
	if n < 0 {
		n = 0
	}
	if n > length {
		n = length
	}
	return n
}

func (ev *Evaluator) evalIterate(in PV) ([]PV, error) {
	switch in.Val.Kind {
	case value.Array:
		out := make([]PV, len(in.Val.A))
		for i, e := range in.Val.A {
			out[i] = PV{Path: extendPath(in.Path, value.NewNumber(float64(i))), Val: e}
		}
		return out, nil
	case value.ObjectKind:
		keys := in.Val.O.Keys()
		out := make([]PV, len(keys))
		for i, k := range keys {
			v, _ := in.Val.O.Get(k)
			out[i] = PV{Path: extendPath(in.Path, value.NewString(k)), Val: v}
		}
		return out, nil
	}
	return nil, newError("Cannot iterate over %s (%s)", in.Val.TypeName(), in.Val.ToJSON(false))
}

func (ev *Evaluator) evalObjectLit(entries []ast.ObjectEntry, idx int, acc *value.Object, in PV, env *Env) ([]PV, error) {
	if idx == len(entries) {
		return []PV{{Val: value.NewObject(acc.Clone())}}, nil
	}
	entry := entries[idx]
	var keys []string
	if entry.KeyExpr != nil {
		kvs, err := ev.evalPV(entry.KeyExpr, in, env)
		if err != nil {
			return nil, err
		}
		for _, kv := range kvs {
			if kv.Val.Kind != value.String {
				return nil, newError("Object keys must be strings")
			}
			keys = append(keys, kv.Val.S)
		}
	} else {
		keys = []string{entry.KeyName}
	}
	vals, err := ev.evalPV(entry.Value, in, env)
	if err != nil {
		return nil, err
	}
	var out []PV
	for _, k := range keys {
		for _, v := range vals {
			next := acc.Clone()
			next.Set(k, v.Val)
			sub, err := ev.evalObjectLit(entries, idx+1, next, in, env)
			out = append(out, sub...)
			if err != nil {
				return out, err
			}
		}
	}
	return out, nil
}

func (ev *Evaluator) evalCond(node *ast.Node, in PV, env *Env) ([]PV, error) {
	conds, err := ev.evalPV(node.CondExpr, in, env)
	if err != nil {
		return nil, err
	}
	var out []PV
	for _, c := range conds {
		branch := ev.selectBranch(node, c.Val)
		sub, err := ev.evalPV(branch, in, env)
		out = append(out, sub...)
		if err != nil {
			return out, err
		}
	}
	return out, nil
}

func (ev *Evaluator) selectBranch(node *ast.Node, cond value.Value) *ast.Node {
	if cond.Truthy() {
		return node.ThenExpr
	}
	return ev.selectElif(node.ElifArms, node.ElseExpr)
}

func (ev *Evaluator) selectElif(arms []ast.CondArm, elseExpr *ast.Node) *ast.Node {
	// Callers already know the top-level condition was false; elif arms
	// must each be (re-)evaluated, so wrap remaining arms as a nested Cond.
	if len(arms) == 0 {
		if elseExpr == nil {
			return &ast.Node{Kind: ast.Identity}
		}
		return elseExpr
	}
	return &ast.Node{Kind: ast.Cond, CondExpr: arms[0].Cond, ThenExpr: arms[0].Then, ElifArms: arms[1:], ElseExpr: elseExpr}
}

func (ev *Evaluator) evalTryCatch(node *ast.Node, in PV, env *Env) ([]PV, error) {
	results, err := ev.evalPV(node.Body, in, env)
	if err == nil {
		return results, nil
	}
	if be, ok := err.(*breakErr); ok {
		return results, be
	}
	if node.Catch == nil {
		return results, nil
	}
	qerr, _ := err.(*QueryError)
	errVal := value.NewString(err.Error())
	if qerr != nil {
		errVal = qerr.Value
	}
	catchResults, cerr := ev.evalPV(node.Catch, PV{Val: errVal}, env)
	results = append(results, catchResults...)
	return results, cerr
}

func (ev *Evaluator) evalVarBind(node *ast.Node, in PV, env *Env) ([]PV, error) {
	sources, err := ev.evalPV(node.Source, in, env)
	if err != nil {
		return nil, err
	}
	var out []PV
	for _, src := range sources {
		sub, err := ev.tryPatternAlternatives(node.Patterns, src.Val, node.Next, in, env)
		out = append(out, sub...)
		if err != nil {
			return out, err
		}
	}
	return out, nil
}

func (ev *Evaluator) tryPatternAlternatives(patterns []*ast.Pattern, val value.Value, next *ast.Node, in PV, env *Env) ([]PV, error) {
	var lastErr error
	for i, pat := range patterns {
		bound, err := ev.bindPattern(pat, val, env, env)
		if err != nil {
			lastErr = err
			continue
		}
		results, err := ev.evalPV(next, in, bound)
		if err == nil {
			return results, nil
		}
		if _, ok := err.(*breakErr); ok {
			return results, err
		}
		lastErr = err
		if i == len(patterns)-1 {
			return results, err
		}
	}
	return nil, lastErr
}

// bindPattern destructures val according to pat, extending bindEnv with
// every variable the pattern names. lookupEnv is the environment used to
// evaluate computed-key subexpressions inside object patterns.
func (ev *Evaluator) bindPattern(pat *ast.Pattern, val value.Value, bindEnv, lookupEnv *Env) (*Env, error) {
	switch pat.Kind {
	case ast.PatternVar:
		return bindEnv.WithVar(pat.VarName, val), nil
	case ast.PatternArray:
		cur := bindEnv
		for i, elemPat := range pat.Elems {
			var elemVal value.Value
			if val.Kind == value.Array && i < len(val.A) {
				elemVal = val.A[i]
			} else {
				elemVal = value.NewNull()
			}
			var err error
			cur, err = ev.bindPattern(elemPat, elemVal, cur, lookupEnv)
			if err != nil {
				return nil, err
			}
		}
		return cur, nil
	case ast.PatternObject:
		cur := bindEnv
		for _, entry := range pat.ObjEntries {
			key := entry.KeyName
			if entry.KeyExpr != nil {
				kvs, err := ev.evalPV(entry.KeyExpr, PV{Val: val}, lookupEnv)
				if err != nil {
					return nil, err
				}
				if len(kvs) == 0 || kvs[0].Val.Kind != value.String {
					return nil, newError("object pattern key must be a string")
				}
				key = kvs[0].Val.S
			}
			var fieldVal value.Value
			if val.Kind == value.ObjectKind {
				if v, ok := val.O.Get(key); ok {
					fieldVal = v
				} else {
					fieldVal = value.NewNull()
				}
			} else {
				fieldVal = value.NewNull()
			}
			var err error
			cur, err = ev.bindPattern(entry.Value, fieldVal, cur, lookupEnv)
			if err != nil {
				return nil, err
			}
		}
		return cur, nil
	}
	return bindEnv, nil
}

func (ev *Evaluator) evalStringInterp(parts []ast.InterpPart, idx int, acc string, in PV, env *Env) ([]PV, error) {
	if idx == len(parts) {
		return []PV{{Val: value.NewString(acc)}}, nil
	}
	part := parts[idx]
	if part.Expr == nil {
		return ev.evalStringInterp(parts, idx+1, acc+part.Literal, in, env)
	}
	vals, err := ev.evalPV(part.Expr, in, env)
	if err != nil {
		return nil, err
	}
	var out []PV
	for _, v := range vals {
		sub, err := ev.evalStringInterp(parts, idx+1, acc+v.Val.ToGoString(), in, env)
		out = append(out, sub...)
		if err != nil {
			return out, err
		}
	}
	return out, nil
}

func (ev *Evaluator) evalReduce(node *ast.Node, in PV, env *Env) ([]PV, error) {
	inits, err := ev.evalPV(node.Init, in, env)
	if err != nil {
		return nil, err
	}
	acc := value.NewNull()
	if len(inits) > 0 {
		acc = inits[0].Val
	}
	sources, err := ev.evalPV(node.ReduceSource, in, env)
	if err != nil {
		return nil, err
	}
	for _, src := range sources {
		bound, err := ev.bindPattern(node.ReducePat, src.Val, env, env)
		if err != nil {
			return nil, err
		}
		updates, err := ev.evalPV(node.Update, PV{Val: acc}, bound)
		if err != nil {
			return nil, err
		}
		if len(updates) == 0 {
			acc = value.NewNull()
		} else {
			acc = updates[len(updates)-1].Val
		}
	}
	return []PV{{Val: acc}}, nil
}

func (ev *Evaluator) evalForeach(node *ast.Node, in PV, env *Env) ([]PV, error) {
	inits, err := ev.evalPV(node.Init, in, env)
	if err != nil {
		return nil, err
	}
	acc := value.NewNull()
	if len(inits) > 0 {
		acc = inits[0].Val
	}
	sources, err := ev.evalPV(node.ReduceSource, in, env)
	if err != nil {
		return nil, err
	}
	var out []PV
	for _, src := range sources {
		bound, err := ev.bindPattern(node.ReducePat, src.Val, env, env)
		if err != nil {
			return out, err
		}
		updates, err := ev.evalPV(node.Update, PV{Val: acc}, bound)
		if err != nil {
			return out, err
		}
		for i, u := range updates {
			if i == len(updates)-1 {
				acc = u.Val
			}
			if node.Extract != nil {
				ext, err := ev.evalPV(node.Extract, PV{Val: u.Val}, bound)
				out = append(out, ext...)
				if err != nil {
					return out, err
				}
			} else {
				out = append(out, u)
			}
		}
	}
	return out, nil
}

func (ev *Evaluator) evalFormatString(node *ast.Node, in PV, env *Env) ([]PV, error) {
	if node.Body == nil {
		s, err := applyFormat(node.Format, in.Val)
		if err != nil {
			return nil, err
		}
		return []PV{{Val: value.NewString(s)}}, nil
	}
	// `@fmt "literal\(expr)"`: format is applied to each interpolated
	// piece's value, literal text passes through unescaped.
	return ev.evalFormattedInterp(node.Format, node.Body.Parts, 0, "", in, env)
}

func (ev *Evaluator) evalFormattedInterp(format string, parts []ast.InterpPart, idx int, acc string, in PV, env *Env) ([]PV, error) {
	if idx == len(parts) {
		return []PV{{Val: value.NewString(acc)}}, nil
	}
	part := parts[idx]
	if part.Expr == nil {
		return ev.evalFormattedInterp(format, parts, idx+1, acc+part.Literal, in, env)
	}
	vals, err := ev.evalPV(part.Expr, in, env)
	if err != nil {
		return nil, err
	}
	var out []PV
	for _, v := range vals {
		s, err := applyFormat(format, v.Val)
		if err != nil {
			return out, err
		}
		sub, err := ev.evalFormattedInterp(format, parts, idx+1, acc+s, in, env)
		out = append(out, sub...)
		if err != nil {
			return out, err
		}
	}
	return out, nil
}

// --- binary/update operators ---

func (ev *Evaluator) evalBinaryOp(node *ast.Node, in PV, env *Env) ([]PV, error) {
	switch node.Op {
	case "and":
		lefts, err := ev.evalPV(node.Left, in, env)
		if err != nil {
			return nil, err
		}
		var out []PV
		for _, l := range lefts {
			if !l.Val.Truthy() {
				out = append(out, PV{Val: value.NewBool(false)})
				continue
			}
			rights, err := ev.evalPV(node.Right, in, env)
			if err != nil {
				return out, err
			}
			for _, r := range rights {
				out = append(out, PV{Val: value.NewBool(r.Val.Truthy())})
			}
		}
		return out, nil
	case "or":
		lefts, err := ev.evalPV(node.Left, in, env)
		if err != nil {
			return nil, err
		}
		var out []PV
		for _, l := range lefts {
			if l.Val.Truthy() {
				out = append(out, PV{Val: value.NewBool(true)})
				continue
			}
			rights, err := ev.evalPV(node.Right, in, env)
			if err != nil {
				return out, err
			}
			for _, r := range rights {
				out = append(out, PV{Val: value.NewBool(r.Val.Truthy())})
			}
		}
		return out, nil
	case "//":
		lefts, lerr := ev.evalPV(node.Left, in, env)
		var truthy []PV
		if lerr == nil {
			for _, l := range lefts {
				if l.Val.Truthy() {
					truthy = append(truthy, l)
				}
			}
		}
		if len(truthy) > 0 {
			return truthy, nil
		}
		return ev.evalPV(node.Right, in, env)
	}

	lefts, err := ev.evalPV(node.Left, in, env)
	if err != nil {
		return nil, err
	}
	var out []PV
	for _, l := range lefts {
		rights, err := ev.evalPV(node.Right, in, env)
		if err != nil {
			return out, err
		}
		for _, r := range rights {
			v, err := applyBinaryOp(node.Op, l.Val, r.Val)
			if err != nil {
				return out, err
			}
			out = append(out, PV{Val: v})
		}
	}
	return out, nil
}

func applyBinaryOp(op string, a, b value.Value) (value.Value, error) {
	switch op {
	case "+":
		return addValues(a, b)
	case "-":
		return subValues(a, b)
	case "*":
		return mulValues(a, b)
	case "/":
		return divValues(a, b)
	case "%":
		return modValues(a, b)
	case "==":
		return value.NewBool(value.Equal(a, b)), nil
	case "!=":
		return value.NewBool(!value.Equal(a, b)), nil
	case "<":
		return value.NewBool(value.Compare(a, b) < 0), nil
	case "<=":
		return value.NewBool(value.Compare(a, b) <= 0), nil
	case ">":
		return value.NewBool(value.Compare(a, b) > 0), nil
	case ">=":
		return value.NewBool(value.Compare(a, b) >= 0), nil
	}
	return value.Value{}, newError("unsupported operator %q", op)
}

func addValues(a, b value.Value) (value.Value, error) {
	if a.Kind == value.Null {
		return b, nil
	}
	if b.Kind == value.Null {
		return a, nil
	}
	switch {
	case a.Kind == value.Number && b.Kind == value.Number:
		return value.NewNumber(a.N + b.N), nil
	case a.Kind == value.String && b.Kind == value.String:
		return value.NewString(a.S + b.S), nil
	case a.Kind == value.Array && b.Kind == value.Array:
		out := make([]value.Value, 0, len(a.A)+len(b.A))
		out = append(out, a.A...)
		out = append(out, b.A...)
		return value.NewArray(out), nil
	case a.Kind == value.ObjectKind && b.Kind == value.ObjectKind:
		merged := a.O.Clone()
		for _, k := range b.O.Keys() {
			v, _ := b.O.Get(k)
			merged.Set(k, v)
		}
		return value.NewObject(merged), nil
	}
	return value.Value{}, newError("%s and %s cannot be added", a.TypeName(), b.TypeName())
}

func subValues(a, b value.Value) (value.Value, error) {
	switch {
	case a.Kind == value.Number && b.Kind == value.Number:
		return value.NewNumber(a.N - b.N), nil
	case a.Kind == value.Array && b.Kind == value.Array:
		var out []value.Value
		for _, e := range a.A {
			found := false
			for _, r := range b.A {
				if value.Equal(e, r) {
					found = true
					break
				}
			}
			if !found {
				out = append(out, e)
			}
		}
		return value.NewArray(out), nil
	}
	return value.Value{}, newError("%s and %s cannot be subtracted", a.TypeName(), b.TypeName())
}

func mulValues(a, b value.Value) (value.Value, error) {
	switch {
	case a.Kind == value.Number && b.Kind == value.Number:
		return value.NewNumber(a.N * b.N), nil
	case a.Kind == value.ObjectKind && b.Kind == value.ObjectKind:
		return deepMerge(a, b), nil
	case a.Kind == value.Null || b.Kind == value.Null:
		if (a.Kind == value.ObjectKind || a.Kind == value.Null) && (b.Kind == value.ObjectKind || b.Kind == value.Null) {
			if a.Kind == value.Null {
				return b, nil
			}
			return a, nil
		}
	case a.Kind == value.String && b.Kind == value.Number:
		return value.NewString(strings.Repeat(a.S, int(b.N))), nil
	}
	return value.Value{}, newError("%s and %s cannot be multiplied", a.TypeName(), b.TypeName())
}

func deepMerge(a, b value.Value) value.Value {
	if a.Kind != value.ObjectKind || b.Kind != value.ObjectKind {
		return b
	}
	merged := a.O.Clone()
	for _, k := range b.O.Keys() {
		bv, _ := b.O.Get(k)
		if av, ok := merged.Get(k); ok && av.Kind == value.ObjectKind && bv.Kind == value.ObjectKind {
			merged.Set(k, deepMerge(av, bv))
		} else {
			merged.Set(k, bv)
		}
	}
	return value.NewObject(merged)
}

func divValues(a, b value.Value) (value.Value, error) {
	switch {
	case a.Kind == value.Number && b.Kind == value.Number:
		if b.N == 0 {
			return value.Value{}, newError("%s and %s cannot be divided because the divisor is zero", a.TypeName(), b.TypeName())
		}
		return value.NewNumber(a.N / b.N), nil
	case a.Kind == value.String && b.Kind == value.String:
		parts := strings.Split(a.S, b.S)
		out := make([]value.Value, len(parts))
		for i, p := range parts {
			out[i] = value.NewString(p)
		}
		return value.NewArray(out), nil
	}
	return value.Value{}, newError("%s and %s cannot be divided", a.TypeName(), b.TypeName())
}

// modValues implements `%`. Truncating int conversion only applies once
// both operands are known finite: converting an Inf (or NaN) float64 to
// int is implementation-defined in Go, so infinities are special-cased
// first per the documented edge cases (infinity % finite = 0,
// -infinity % +infinity = -1).
func modValues(a, b value.Value) (value.Value, error) {
	if a.Kind != value.Number || b.Kind != value.Number {
		return value.Value{}, newError("%s and %s cannot be divided", a.TypeName(), b.TypeName())
	}
	if b.N == 0 {
		return value.Value{}, newError("%s and %s cannot be divided because the divisor is zero", a.TypeName(), b.TypeName())
	}
	if math.IsNaN(a.N) || math.IsNaN(b.N) {
		return value.NewNumber(math.NaN()), nil
	}

	aInf, bInf := math.IsInf(a.N, 0), math.IsInf(b.N, 0)
	switch {
	case aInf && bInf:
		if math.Signbit(a.N) != math.Signbit(b.N) {
			return value.NewNumber(-1), nil
		}
		return value.NewNumber(1), nil
	case aInf:
		return value.NewNumber(0), nil
	case bInf:
		return value.NewNumber(a.N), nil
	}

	bi := int(b.N)
	ai := int(a.N)
	r := ai % abs(bi)
	return value.NewNumber(float64(r)), nil
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

func (ev *Evaluator) evalUpdateOp(node *ast.Node, in PV, env *Env) ([]PV, error) {
	if node.Op == "=" {
		rights, err := ev.evalPV(node.Right, in, env)
		if err != nil {
			return nil, err
		}
		paths, err := ev.EvalPaths(node.Left, in.Val, env)
		if err != nil {
			return nil, err
		}
		var out []PV
		for _, r := range rights {
			cur := in.Val
			for _, p := range paths {
				cur = setPath(cur, p, r.Val)
			}
			out = append(out, PV{Val: cur})
		}
		return out, nil
	}

	paths, err := ev.EvalPaths(node.Left, in.Val, env)
	if err != nil {
		return nil, err
	}

	if node.Op == "|=" {
		cur := in.Val
		for _, p := range paths {
			oldVal := getPath(cur, p)
			results, err := ev.evalPV(node.Right, PV{Path: p, Val: oldVal}, env)
			if err != nil {
				return nil, err
			}
			if len(results) == 0 {
				cur = delPath(cur, p)
			} else {
				cur = setPath(cur, p, results[0].Val)
			}
		}
		return []PV{{Val: cur}}, nil
	}

	rights, err := ev.evalPV(node.Right, in, env)
	if err != nil {
		return nil, err
	}
	bVal := value.NewNull()
	if len(rights) > 0 {
		bVal = rights[0].Val
	}
	baseOp := strings.TrimSuffix(node.Op, "=")
	cur := in.Val
	for _, p := range paths {
		oldVal := getPath(cur, p)
		var newVal value.Value
		if baseOp == "//" {
			if oldVal.Truthy() {
				newVal = oldVal
			} else {
				newVal = bVal
			}
		} else {
			newVal, err = applyBinaryOp(baseOp, oldVal, bVal)
			if err != nil {
				return nil, err
			}
		}
		cur = setPath(cur, p, newVal)
	}
	return []PV{{Val: cur}}, nil
}

// --- function calls ---

func (ev *Evaluator) evalCall(node *ast.Node, in PV, env *Env) ([]PV, error) {
	arity := len(node.Args)

	// Zero-arity calls may resolve to a filter-parameter substitution
	// (call-by-name closure over the original call site) before falling
	// through to ordinary function/builtin lookup.
	if arity == 0 {
		if fb, ok := env.LookupFilter(node.Name); ok {
			return ev.evalPV(fb.argNode, in, fb.argEnv)
		}
	}

	if cl, ok := env.LookupFunc(node.Name, arity); ok {
		return ev.callClosure(cl, node.Args, in, env)
	}

	if fn, ok := lookupBuiltin(node.Name, arity); ok {
		return fn(ev, in, node.Args, env)
	}

	return nil, newError("%s/%d is not defined", node.Name, arity)
}

func (ev *Evaluator) callClosure(cl *Closure, args []*ast.Node, in PV, callerEnv *Env) ([]PV, error) {
	return ev.bindParams(cl, cl.Params, args, in, callerEnv, cl.Env)
}

func (ev *Evaluator) bindParams(cl *Closure, params []string, args []*ast.Node, in PV, callerEnv, bodyEnv *Env) ([]PV, error) {
	if len(params) == 0 {
		return ev.evalPV(cl.Body, in, bodyEnv)
	}
	param := params[0]
	arg := args[0]
	if strings.HasPrefix(param, "$") {
		varName := param[1:]
		argVals, err := ev.evalPV(arg, in, callerEnv)
		if err != nil {
			return nil, err
		}
		var out []PV
		for _, av := range argVals {
			sub, err := ev.bindParams(cl, params[1:], args[1:], in, callerEnv, bodyEnv.WithVar(varName, av.Val))
			out = append(out, sub...)
			if err != nil {
				return out, err
			}
		}
		return out, nil
	}
	next := bodyEnv.WithFilter(param, arg, callerEnv)
	return ev.bindParams(cl, params[1:], args[1:], in, callerEnv, next)
}

func indicesOfSub(haystack, needle []value.Value) []value.Value {
	var out []value.Value
	if len(needle) == 0 {
		return out
	}
	for i := 0; i+len(needle) <= len(haystack); i++ {
		match := true
		for j, n := range needle {
			if !value.Equal(haystack[i+j], n) {
				match = false
				break
			}
		}
		if match {
			out = append(out, value.NewNumber(float64(i)))
		}
	}
	return out
}

func sortValues(vals []value.Value) []value.Value {
	out := append([]value.Value{}, vals...)
	sort.SliceStable(out, func(i, j int) bool { return value.Compare(out[i], out[j]) < 0 })
	return out
}
