// Package ast holds the parsed shell data model: Redirection, ParsedCommand,
// ChainedCommand, and Pipeline (spec §3).
package ast

// RedirKind identifies the direction/target of a Redirection.
type RedirKind int

const (
	RedirStdout RedirKind = iota
	RedirStderr
	RedirStdin
	RedirStderrToStdout
	RedirHeredoc
	RedirHerestring
)

// Redirection describes one I/O redirection attached to a ParsedCommand.
// StderrToStdout carries no target (spec §3).
type Redirection struct {
	Kind   RedirKind
	Target string
	Append bool
	// Body holds the here-document/here-string payload text when Kind is
	// RedirHeredoc or RedirHerestring (SPEC_FULL.md here-doc supplement).
	Body string
}

// ParsedCommand is one command name plus its expanded-at-runtime argument
// list, with parallel quoting metadata (spec §3, invariant P2).
type ParsedCommand struct {
	Command           string
	Args              []string
	QuotedFlags       []bool
	SingleQuotedFlags []bool
	Redirections      []Redirection
}

// CheckInvariant verifies P2: the three arg-parallel vectors share length.
func (p ParsedCommand) CheckInvariant() bool {
	return len(p.Args) == len(p.QuotedFlags) && len(p.Args) == len(p.SingleQuotedFlags)
}

// Operator is the logical operator preceding a ChainedCommand.
type Operator string

const (
	OpNone  Operator = ""
	OpAnd   Operator = "&&"
	OpOr    Operator = "||"
	OpSemi  Operator = ";"
)

// ChainedCommand pairs a ParsedCommand with the operator that precedes it
// and any leading negations (spec §3).
type ChainedCommand struct {
	Parsed         ParsedCommand
	Operator       Operator
	NegationCount  uint
}

// Negated reports whether an odd number of leading `!` negates this
// segment's final exit code.
func (c ChainedCommand) Negated() bool {
	return c.NegationCount%2 == 1
}

// Pipeline is an ordered sequence of ChainedCommand connected by implicit
// pipes; invariant: non-empty iff Commands is non-empty (spec §3).
type Pipeline struct {
	Commands []ChainedCommand
}

func (p Pipeline) Empty() bool {
	return len(p.Commands) == 0
}
