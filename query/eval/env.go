package eval

import (
	"github.com/vshell/vshell/query/ast"
	"github.com/vshell/vshell/query/value"
)

// Closure is a user- or builtin-defined function binding: a lexical
// environment plus an AST body, captured at def-site so recursive and
// nested definitions resolve names the way they were visible when defined,
// not the way they're visible at the call site.
type Closure struct {
	Name   string
	Arity  int
	Params []string // plain names, or "$name" for value params
	Body   *ast.Node
	Env    *Env
}

// filterBinding is how a plain (non-$) function parameter is bound: the
// parameter behaves as a zero-arity call that, each time it's invoked
// inside the function body, re-evaluates the argument expression against
// whatever "." is at the call site inside the body, using the environment
// captured at the original call (call-by-name with closures).
type filterBinding struct {
	argNode *ast.Node
	argEnv  *Env
}

// Env is a persistent (copy-on-write via parent chaining) lexical scope:
// variables, function closures, filter-parameter bindings, and labels.
type Env struct {
	parent  *Env
	vars    map[string]value.Value
	funcs   map[string]*Closure
	filters map[string]filterBinding
	labels  map[string]int
}

// NewRootEnv creates the top-level environment a program evaluates in.
func NewRootEnv() *Env {
	return &Env{}
}

func (e *Env) child() *Env {
	return &Env{parent: e}
}

func (e *Env) WithVar(name string, v value.Value) *Env {
	c := e.child()
	c.vars = map[string]value.Value{name: v}
	return c
}

func (e *Env) WithFunc(cl *Closure) *Env {
	c := e.child()
	c.funcs = map[string]*Closure{funcKey(cl.Name, cl.Arity): cl}
	return c
}

func (e *Env) WithFilter(name string, argNode *ast.Node, argEnv *Env) *Env {
	c := e.child()
	c.filters = map[string]filterBinding{name: {argNode: argNode, argEnv: argEnv}}
	return c
}

func (e *Env) WithLabel(name string, id int) *Env {
	c := e.child()
	c.labels = map[string]int{name: id}
	return c
}

func funcKey(name string, arity int) string {
	return name + "/" + itoa(arity)
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

func (e *Env) LookupVar(name string) (value.Value, bool) {
	for env := e; env != nil; env = env.parent {
		if env.vars != nil {
			if v, ok := env.vars[name]; ok {
				return v, true
			}
		}
	}
	return value.Value{}, false
}

func (e *Env) LookupFunc(name string, arity int) (*Closure, bool) {
	key := funcKey(name, arity)
	for env := e; env != nil; env = env.parent {
		if env.funcs != nil {
			if cl, ok := env.funcs[key]; ok {
				return cl, true
			}
		}
	}
	return nil, false
}

func (e *Env) LookupFilter(name string) (filterBinding, bool) {
	for env := e; env != nil; env = env.parent {
		if env.filters != nil {
			if fb, ok := env.filters[name]; ok {
				return fb, true
			}
		}
	}
	return filterBinding{}, false
}

func (e *Env) LookupLabel(name string) (int, bool) {
	for env := e; env != nil; env = env.parent {
		if env.labels != nil {
			if id, ok := env.labels[name]; ok {
				return id, true
			}
		}
	}
	return 0, false
}
