// Package parser builds []ast.Pipeline from a token.Token stream (spec §4.2).
package parser

import (
	"github.com/vshell/vshell/shell/ast"
	"github.com/vshell/vshell/shell/token"
)

// compoundEnders maps each bare word that triggers compound-capture mode to
// the word that closes it: the parser swallows tokens (tracking nesting) into one synthetic Word
// holding the concatenated source text, which a compound-command handler
// in shell/exec re-parses and evaluates (spec §4.2, GLOSSARY "Compound
// command").
var compoundEnders = map[string]string{
	"if":    "fi",
	"while": "done",
	"for":   "done",
	"case":  "esac",
	"{":     "}",
}

// Parse tokenizes is assumed already done by the caller; Parse consumes the
// token stream and returns the pipelines it describes.
func Parse(tokens []token.Token) ([]ast.Pipeline, error) {
	p := &parser{tokens: tokens}
	return p.parseProgram()
}

type parser struct {
	tokens []token.Token
	pos    int

	pipelines []ast.Pipeline

	curCommand  string
	curArgs     []string
	curQuoted   []bool
	curSingleQ  []bool
	curRedirs   []ast.Redirection
	haveCommand bool

	curPipeline []ast.ChainedCommand
	pendingOp   ast.Operator
	pendingNeg  uint
}

func (p *parser) cur() token.Token {
	if p.pos >= len(p.tokens) {
		return token.Token{Kind: token.EOF}
	}
	return p.tokens[p.pos]
}

func (p *parser) advance() token.Token {
	t := p.cur()
	if p.pos < len(p.tokens) {
		p.pos++
	}
	return t
}

func (p *parser) parseProgram() ([]ast.Pipeline, error) {
	for p.cur().Kind != token.EOF {
		if err := p.parseOne(); err != nil {
			return nil, err
		}
	}
	p.finalizeCommand()
	p.finalizePipeline()
	return p.pipelines, nil
}

func (p *parser) parseOne() error {
	t := p.cur()

	switch t.Kind {
	case token.Word:
		p.advance()
		isCommandWord := !p.haveCommand
		if isCommandWord && !t.Quoted && isCompoundStart(t.Text) {
			text, err := p.captureCompound(t.Text)
			if err != nil {
				return err
			}
			p.setCommandIfEmpty(t.Text)
			p.appendArg(text, false, false)
			return nil
		}
		if isCommandWord {
			p.setCommandIfEmpty(t.Text)
			return nil
		}
		// `name() { body }` function definitions: the brace block
		// immediately following a `name()` command word is captured whole,
		// the same way if/while/for/case bodies are (spec §4.5.1, GLOSSARY
		// "Compound command").
		if isFunctionSignature(p.curCommand) && len(p.curArgs) == 0 && t.Text == "{" && !t.Quoted {
			text, err := p.captureCompound("{")
			if err != nil {
				return err
			}
			p.appendArg(text, false, false)
			return nil
		}
		p.appendArg(t.Text, t.Quoted, t.SingleQuoted)
		return nil

	case token.RedirStdout, token.RedirStdoutAppend, token.RedirStderr,
		token.RedirStderrAppend, token.RedirStdin, token.RedirHeredoc, token.RedirHerestring:
		return p.parseRedirection(t.Kind)

	case token.RedirStderrToStdout:
		p.advance()
		p.curRedirs = append(p.curRedirs, ast.Redirection{Kind: ast.RedirStderrToStdout})
		return nil

	case token.Pipe:
		p.advance()
		if !p.haveCommand {
			return token.NewSyntaxError(token.EmptyPipelineSegment, t.Line, t.Column, 0, "pipe with no preceding command")
		}
		p.finalizeCommand()
		return nil

	case token.And:
		p.advance()
		if !p.haveCommand && len(p.curPipeline) == 0 {
			return token.NewSyntaxError(token.EmptyPipelineSegment, t.Line, t.Column, 0, "&& with no preceding command")
		}
		p.finalizeCommand()
		p.finalizePipeline()
		p.pendingOp = ast.OpAnd
		return nil

	case token.Or:
		p.advance()
		if !p.haveCommand && len(p.curPipeline) == 0 {
			return token.NewSyntaxError(token.EmptyPipelineSegment, t.Line, t.Column, 0, "|| with no preceding command")
		}
		p.finalizeCommand()
		p.finalizePipeline()
		p.pendingOp = ast.OpOr
		return nil

	case token.Semicolon:
		p.advance()
		p.finalizeCommand()
		p.finalizePipeline()
		p.pendingOp = ast.OpSemi
		return nil

	case token.Not:
		p.advance()
		p.pendingNeg++
		return nil

	default:
		p.advance()
		return nil
	}
}

func isCompoundStart(word string) bool {
	_, ok := compoundEnders[word]
	return ok
}

// isFunctionSignature reports whether word looks like `name()`, the
// function-definition form spec §4.5.1 describes.
func isFunctionSignature(word string) bool {
	if len(word) < 3 || word[len(word)-2:] != "()" {
		return false
	}
	name := word[:len(word)-2]
	if name == "" {
		return false
	}
	for i, r := range name {
		if i == 0 && !(r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')) {
			return false
		}
		if i > 0 && !(r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')) {
			return false
		}
	}
	return true
}

func (p *parser) setCommandIfEmpty(text string) {
	if !p.haveCommand {
		p.haveCommand = true
		p.curCommand = text
	}
}

func (p *parser) appendArg(text string, quoted, singleQuoted bool) {
	p.curArgs = append(p.curArgs, text)
	p.curQuoted = append(p.curQuoted, quoted)
	p.curSingleQ = append(p.curSingleQ, singleQuoted)
}

func (p *parser) parseRedirection(kind token.Kind) error {
	opTok := p.advance()
	if kind == token.RedirStderrToStdout {
		p.curRedirs = append(p.curRedirs, ast.Redirection{Kind: ast.RedirStderrToStdout})
		return nil
	}
	target := p.cur()
	if target.Kind != token.Word {
		return token.NewSyntaxError(token.MissingRedirectTarget, opTok.Line, opTok.Column, 0, "redirection missing target")
	}
	p.advance()

	r := ast.Redirection{Target: target.Text}
	switch kind {
	case token.RedirStdout:
		r.Kind = ast.RedirStdout
	case token.RedirStdoutAppend:
		r.Kind = ast.RedirStdout
		r.Append = true
	case token.RedirStderr:
		r.Kind = ast.RedirStderr
	case token.RedirStderrAppend:
		r.Kind = ast.RedirStderr
		r.Append = true
	case token.RedirStdin:
		r.Kind = ast.RedirStdin
	case token.RedirHeredoc:
		// The lexer does not switch to raw-line mode for heredocs, so the
		// word immediately after `<<` is taken as the body verbatim rather
		// than as a terminator delimiter — a herestring-like simplification
		// of real multi-line heredoc syntax.
		r.Kind = ast.RedirHeredoc
		r.Body = target.Text
	case token.RedirHerestring:
		r.Kind = ast.RedirHerestring
		r.Body = target.Text
	}
	p.curRedirs = append(p.curRedirs, r)
	return nil
}

// captureCompound consumes tokens from the opening keyword (already
// consumed by the caller) through its matching ender, tracking nesting of
// same-keyword compounds, and returns the concatenated source text.
func (p *parser) captureCompound(keyword string) (string, error) {
	ender := compoundEnders[keyword]
	depth := 1
	var parts []string
	parts = append(parts, keyword)

	for {
		t := p.cur()
		if t.Kind == token.EOF {
			return "", token.NewSyntaxError(token.UnclosedSubstitution, t.Line, t.Column, 0, "unterminated "+keyword+" block")
		}
		if t.Kind == token.Word && t.Text == keyword {
			depth++
		}
		if t.Kind == token.Word && t.Text == ender {
			depth--
			parts = append(parts, renderToken(t))
			p.advance()
			if depth == 0 {
				break
			}
			continue
		}
		parts = append(parts, renderToken(t))
		p.advance()
	}

	return joinWords(parts), nil
}

func renderToken(t token.Token) string {
	switch t.Kind {
	case token.Semicolon:
		return ";"
	case token.Pipe:
		return "|"
	case token.And:
		return "&&"
	case token.Or:
		return "||"
	default:
		if t.SingleQuoted {
			return "'" + t.Text + "'"
		}
		return t.Text
	}
}

func joinWords(parts []string) string {
	out := ""
	for i, s := range parts {
		if i > 0 {
			out += " "
		}
		out += s
	}
	return out
}

func (p *parser) finalizeCommand() {
	if !p.haveCommand {
		return
	}
	cmd := ast.ParsedCommand{
		Command:           p.curCommand,
		Args:              p.curArgs,
		QuotedFlags:       p.curQuoted,
		SingleQuotedFlags: p.curSingleQ,
		Redirections:      p.curRedirs,
	}
	p.curPipeline = append(p.curPipeline, ast.ChainedCommand{
		Parsed:        cmd,
		Operator:      p.pendingOp,
		NegationCount: p.pendingNeg,
	})
	p.pendingOp = ast.OpNone
	p.pendingNeg = 0

	p.haveCommand = false
	p.curCommand = ""
	p.curArgs = nil
	p.curQuoted = nil
	p.curSingleQ = nil
	p.curRedirs = nil
}

func (p *parser) finalizePipeline() {
	if len(p.curPipeline) == 0 {
		return
	}
	p.pipelines = append(p.pipelines, ast.Pipeline{Commands: p.curPipeline})
	p.curPipeline = nil
}
