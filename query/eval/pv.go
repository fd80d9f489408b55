package eval

import (
	"fmt"

	"github.com/vshell/vshell/query/value"
)

// PV (path-value) threads a value together with the path that reached it
// from the program's root input through every node kind in one pass,
// instead of running a separate "path mode" evaluator: Run and EvalPaths
// in eval.go are thin projections of the same evalPV walk (spec §9 "Path
// tracking as a value annotation, not a parallel evaluator").
type PV struct {
	Path []value.Value
	Val  value.Value
}

func extendPath(p []value.Value, step value.Value) []value.Value {
	out := make([]value.Value, len(p)+1)
	copy(out, p)
	out[len(p)] = step
	return out
}

// QueryError is the evaluator's runtime error type; Value carries the
// original jq-style error payload so `catch`/`try` can re-expose it as a
// string or structured value.
type QueryError struct {
	Msg   string
	Value value.Value
}

func (e *QueryError) Error() string { return e.Msg }

func newError(format string, args ...interface{}) *QueryError {
	msg := fmt.Sprintf(format, args...)
	return &QueryError{Msg: msg, Value: value.NewString(msg)}
}

// breakErr implements `break $label`: it unwinds evalPV calls until the
// matching Label node catches it, preserving whatever output was already
// produced along the way.
type breakErr struct {
	id int
}

func (e *breakErr) Error() string { return "break" }

func getPath(root value.Value, path []value.Value) value.Value {
	cur := root
	for _, step := range path {
		switch {
		case step.Kind == value.String:
			if cur.Kind == value.Null {
				cur = value.NewNull()
				continue
			}
			if cur.Kind != value.ObjectKind {
				return value.NewNull()
			}
			v, ok := cur.O.Get(step.S)
			if !ok {
				cur = value.NewNull()
			} else {
				cur = v
			}
		case step.Kind == value.Number:
			if cur.Kind == value.Null {
				cur = value.NewNull()
				continue
			}
			if cur.Kind != value.Array {
				return value.NewNull()
			}
			idx := normalizeIndex(int(step.N), len(cur.A))
			if idx < 0 || idx >= len(cur.A) {
				cur = value.NewNull()
			} else {
				cur = cur.A[idx]
			}
		default:
			return value.NewNull()
		}
	}
	return cur
}

func setPath(root value.Value, path []value.Value, newVal value.Value) value.Value {
	if len(path) == 0 {
		return newVal
	}
	step := path[0]
	switch step.Kind {
	case value.String:
		var obj *value.Object
		if root.Kind == value.ObjectKind {
			obj = root.O.Clone()
		} else if root.Kind == value.Null {
			obj = value.NewEmptyObjectStruct()
		} else {
			obj = value.NewEmptyObjectStruct()
		}
		cur, _ := obj.Get(step.S)
		obj.Set(step.S, setPath(cur, path[1:], newVal))
		return value.NewObject(obj)
	case value.Number:
		var arr []value.Value
		if root.Kind == value.Array {
			arr = append([]value.Value{}, root.A...)
		}
		idx := int(step.N)
		if idx < 0 {
			idx = len(arr) + idx
			if idx < 0 {
				idx = 0
			}
		}
		for len(arr) <= idx {
			arr = append(arr, value.NewNull())
		}
		arr[idx] = setPath(arr[idx], path[1:], newVal)
		return value.NewArray(arr)
	}
	return root
}

func delPath(root value.Value, path []value.Value) value.Value {
	if len(path) == 0 {
		return value.NewNull()
	}
	if len(path) == 1 {
		step := path[0]
		switch step.Kind {
		case value.String:
			if root.Kind != value.ObjectKind {
				return root
			}
			obj := root.O.Clone()
			obj.Delete(step.S)
			return value.NewObject(obj)
		case value.Number:
			if root.Kind != value.Array {
				return root
			}
			idx := normalizeIndex(int(step.N), len(root.A))
			if idx < 0 || idx >= len(root.A) {
				return root
			}
			arr := append([]value.Value{}, root.A[:idx]...)
			arr = append(arr, root.A[idx+1:]...)
			return value.NewArray(arr)
		}
		return root
	}
	child := getPath(root, path[:1])
	updated := delPath(child, path[1:])
	return setPath(root, path[:1], updated)
}

func normalizeIndex(idx, length int) int {
	if idx < 0 {
		return length + idx
	}
	return idx
}
