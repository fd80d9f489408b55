package eval

import (
	"fmt"
	"os"

	"github.com/vshell/vshell/query/ast"
	"github.com/vshell/vshell/query/value"
)

// haltSignal unwinds evaluation to terminate the whole process, distinct
// from breakErr (label-scoped) and QueryError (catchable). The cmd/ front
// ends catch it to set the process exit code.
type haltSignal struct {
	code    int
	message string
	hasMsg  bool
}

func (h *haltSignal) Error() string {
	if h.hasMsg {
		return h.message
	}
	return fmt.Sprintf("halt with exit code %d", h.code)
}

// Misc & I/O family (spec §4.7): input streaming, debug/stderr side
// channels, environment access and process-terminating halts.
func init() {
	registerBuiltin("input", 0, func(ev *Evaluator, in PV, args []*ast.Node, env *Env) ([]PV, error) {
		if ev.inputPos >= len(ev.Inputs) {
			return nil, newError("No more inputs")
		}
		v := ev.Inputs[ev.inputPos]
		ev.inputPos++
		return []PV{{Val: v}}, nil
	})
	registerBuiltin("inputs", 0, func(ev *Evaluator, in PV, args []*ast.Node, env *Env) ([]PV, error) {
		var out []PV
		for ev.inputPos < len(ev.Inputs) {
			out = append(out, PV{Val: ev.Inputs[ev.inputPos]})
			ev.inputPos++
		}
		return out, nil
	})
	registerBuiltin("debug", 0, func(ev *Evaluator, in PV, args []*ast.Node, env *Env) ([]PV, error) {
		fmt.Fprintln(os.Stderr, value.NewArray([]value.Value{value.NewString("DEBUG:"), in.Val}).ToJSON(false))
		return []PV{in}, nil
	})
	registerBuiltin("debug", 1, func(ev *Evaluator, in PV, args []*ast.Node, env *Env) ([]PV, error) {
		msgs, err := ev.evalPV(args[0], in, env)
		if err != nil {
			return nil, err
		}
		for _, m := range msgs {
			fmt.Fprintln(os.Stderr, value.NewArray([]value.Value{value.NewString("DEBUG:"), m.Val}).ToJSON(false))
		}
		return []PV{in}, nil
	})
	registerBuiltin("stderr", 0, func(ev *Evaluator, in PV, args []*ast.Node, env *Env) ([]PV, error) {
		fmt.Fprint(os.Stderr, in.Val.ToJSON(false))
		return []PV{in}, nil
	})
	registerBuiltin("env", 0, func(ev *Evaluator, in PV, args []*ast.Node, env *Env) ([]PV, error) {
		return []PV{{Val: envMapToValue(ev.Env)}}, nil
	})
	registerBuiltin("halt", 0, func(ev *Evaluator, in PV, args []*ast.Node, env *Env) ([]PV, error) {
		return nil, &haltSignal{code: 0}
	})
	registerBuiltin("halt_error", 0, func(ev *Evaluator, in PV, args []*ast.Node, env *Env) ([]PV, error) {
		msg := in.Val.ToGoString()
		if in.Val.Kind != value.String {
			msg = in.Val.ToJSON(false)
		}
		return nil, &haltSignal{code: 5, message: msg, hasMsg: true}
	})
	registerBuiltin("halt_error", 1, func(ev *Evaluator, in PV, args []*ast.Node, env *Env) ([]PV, error) {
		code, err := evalOne(ev, args[0], in, env)
		if err != nil {
			return nil, err
		}
		msg := in.Val.ToGoString()
		if in.Val.Kind != value.String {
			msg = in.Val.ToJSON(false)
		}
		return nil, &haltSignal{code: int(code.N), message: msg, hasMsg: true}
	})
	registerBuiltin("$__loc__", 0, func(ev *Evaluator, in PV, args []*ast.Node, env *Env) ([]PV, error) {
		obj := value.NewEmptyObjectStruct()
		obj.Set("file", value.NewString("<stdin>"))
		obj.Set("line", value.NewNumber(1))
		return []PV{{Val: value.NewObject(obj)}}, nil
	})
	registerBuiltin("input_line_number", 0, func(ev *Evaluator, in PV, args []*ast.Node, env *Env) ([]PV, error) {
		return []PV{{Val: value.NewNumber(float64(ev.inputPos))}}, nil
	})
	registerBuiltin("IN", 1, func(ev *Evaluator, in PV, args []*ast.Node, env *Env) ([]PV, error) {
		sources, err := evalAll(ev, args[0], in, env)
		if err != nil {
			return nil, err
		}
		for _, s := range sources {
			if value.Equal(in.Val, s) {
				return []PV{{Val: value.NewBool(true)}}, nil
			}
		}
		return []PV{{Val: value.NewBool(false)}}, nil
	})
	registerBuiltin("IN", 2, func(ev *Evaluator, in PV, args []*ast.Node, env *Env) ([]PV, error) {
		srcVals, err := evalAll(ev, args[0], in, env)
		if err != nil {
			return nil, err
		}
		sources, err := evalAll(ev, args[1], in, env)
		if err != nil {
			return nil, err
		}
		var out []PV
		for _, sv := range srcVals {
			found := false
			for _, s := range sources {
				if value.Equal(sv, s) {
					found = true
					break
				}
			}
			out = append(out, PV{Val: value.NewBool(found)})
		}
		return out, nil
	})
	registerBuiltin("INDEX", 1, func(ev *Evaluator, in PV, args []*ast.Node, env *Env) ([]PV, error) {
		return indexBuiltin(ev, in, in.Val, args[0], env)
	})
	registerBuiltin("INDEX", 2, func(ev *Evaluator, in PV, args []*ast.Node, env *Env) ([]PV, error) {
		streamVals, err := evalAll(ev, args[0], in, env)
		if err != nil {
			return nil, err
		}
		return indexBuiltinStream(ev, streamVals, args[1], env)
	})
}

func indexBuiltin(ev *Evaluator, in PV, streamVal value.Value, idxNode *ast.Node, env *Env) ([]PV, error) {
	items, err := iterableItems(streamVal)
	if err != nil {
		return nil, err
	}
	return indexBuiltinStream(ev, items, idxNode, env)
}

func indexBuiltinStream(ev *Evaluator, items []value.Value, idxNode *ast.Node, env *Env) ([]PV, error) {
	obj := value.NewEmptyObjectStruct()
	for _, it := range items {
		key, err := evalOne(ev, idxNode, PV{Val: it}, env)
		if err != nil {
			return nil, err
		}
		obj.Set(key.ToGoString(), it)
	}
	return []PV{{Val: value.NewObject(obj)}}, nil
}
