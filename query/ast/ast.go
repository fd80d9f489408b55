// Package ast defines the query language's node types as a tagged sum
// rather than a polymorphic object hierarchy: every Node is a *Node with a
// Kind discriminator and the fields relevant to that kind populated,
// mirroring shell/ast's ParsedCommand/Redirection approach and spec §9's
// "Expression AST as tagged sum" design note.
package ast

// Kind discriminates the node variants.
type Kind int

const (
	Identity Kind = iota
	RecurseDefault // ..
	Field          // .foo
	OptionalField  // .foo?
	Index          // EXPR[EXPR]
	Slice          // EXPR[from:to]
	IterateAll     // EXPR[]
	Pipe           // A | B
	Comma          // A , B
	Literal        // constant QueryValue
	ArrayLit       // [ EXPR? ]
	ObjectLit      // { entries }
	Paren          // ( EXPR )
	BinaryOp       // A op B
	UnaryOp        // -A
	Cond           // if/then/elif/else/end
	TryCatch       // try A catch B
	Optional       // A?
	Call           // name(args...)
	VarBind        // EXPR as PATTERN | PATTERN ... : BODY
	VarRef         // $name
	StringInterp   // "foo\(bar)baz"
	UpdateOp       // A op= B  (|=, +=, etc, and plain assignment =)
	Reduce         // reduce EXPR as PATTERN (INIT; UPDATE)
	Foreach        // foreach EXPR as PATTERN (INIT; UPDATE; EXTRACT?)
	Label          // label $name | BODY
	Break          // break $name
	Def            // def name(params): body; REST
	FormatString   // @base64, @csv, ... applied to a string-interp or bare
)

// Node is the universal AST node.
type Node struct {
	Kind Kind

	// Field / OptionalField
	Name string

	// Index / Slice: From/To may be nil for open slice ends.
	Index *Node
	From  *Node
	To    *Node

	// Pipe / Comma / BinaryOp / UpdateOp
	Left  *Node
	Right *Node
	Op    string // operator text: "+", "-", "==", "|=", "//", "and", "or", etc.

	// UnaryOp
	Operand *Node

	// Literal: constant value, built at parse time from literal syntax.
	// Stored as an opaque interface{} to avoid an import cycle on
	// query/value; query/eval type-asserts it back to value.Value.
	LiteralValue interface{}

	// ArrayLit
	Elem *Node // nil means empty array literal `[]`

	// ObjectLit
	Entries []ObjectEntry

	// Paren / TryCatch(try-body) / Optional / Label(body) / Break
	Body *Node

	// TryCatch
	Catch *Node // nil means a bare `try A` with no catch clause

	// Cond
	CondExpr  *Node
	ThenExpr  *Node
	ElifArms  []CondArm
	ElseExpr  *Node // nil means implicit identity else

	// Call
	Args []*Node

	// VarBind: Source is the `EXPR as` left side, Patterns supports
	// `?//`-separated alternative destructuring patterns, Next is the body
	// after `:`.
	Source   *Node
	Patterns []*Pattern
	Next     *Node

	// VarRef / Label / Break: variable or label name (without the `$`/no
	// sigil for labels).
	VarName string

	// StringInterp
	Parts []InterpPart

	// Reduce / Foreach
	ReduceSource *Node
	ReducePat    *Pattern
	Init         *Node
	Update       *Node
	Extract      *Node // Foreach only; nil means no extract clause

	// Def
	DefName   string
	Params    []string
	DefBody   *Node
	DefRest   *Node // the expression following `;` that the def scopes over

	// FormatString
	Format string
}

// CondArm is one `elif COND then THEN` arm.
type CondArm struct {
	Cond *Node
	Then *Node
}

// ObjectEntry is one `key: value` (or shorthand `$x`, `foo`) object-literal
// entry. KeyExpr is set for `(EXPR): value` computed keys; KeyName is set
// for literal/shorthand keys.
type ObjectEntry struct {
	KeyName  string
	KeyExpr  *Node
	KeyVar   bool // true for `$foo` shorthand (key and value both "foo")
	Value    *Node
}

// InterpPart is one piece of a string interpolation: either a literal
// fragment (Expr == nil) or an embedded expression.
type InterpPart struct {
	Literal string
	Expr    *Node
}

// PatternKind discriminates destructuring pattern shapes for `as` bindings.
type PatternKind int

const (
	PatternVar PatternKind = iota
	PatternArray
	PatternObject
)

// Pattern models the left side of `EXPR as PATTERN`, including nested
// destructuring: `as [$a, $b]`, `as {a: $a, b: [$c]}`.
type Pattern struct {
	Kind PatternKind

	// PatternVar
	VarName string

	// PatternArray
	Elems []*Pattern

	// PatternObject
	ObjEntries []ObjectPatternEntry
}

// ObjectPatternEntry is one `key: subpattern` or `$key` shorthand entry
// inside an object destructuring pattern.
type ObjectPatternEntry struct {
	KeyName string
	KeyExpr *Node // non-nil for `(EXPR): pattern` computed-key patterns
	Value   *Pattern
}
