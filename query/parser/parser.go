// Package parser implements a recursive-descent parser over query/lexer's
// token stream, producing query/ast.Node trees. Precedence climbs the same
// ladder jq itself documents: pipe (lowest) > comma > `//` > assignment
// ops > or > and > comparisons > +/- > */ >% > unary minus > postfix
// (highest), with `as`-bindings, reduce/foreach/if/try/label/def/break
// parsed as primary terms the way shell/parser treats compound commands as
// a first-class word in its own grammar.
package parser

import (
	"fmt"

	"github.com/vshell/vshell/query/ast"
	"github.com/vshell/vshell/query/lexer"
	"github.com/vshell/vshell/query/value"
)

// ParseError reports a malformed query program.
type ParseError struct {
	Msg string
	Pos int
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("query parse error: %s (at %d)", e.Msg, e.Pos)
}

// Parse compiles src into an AST.
func Parse(src string) (*ast.Node, error) {
	p := &Parser{lex: lexer.New(src)}
	if err := p.next(); err != nil {
		return nil, err
	}
	node, err := p.parsePipe()
	if err != nil {
		return nil, err
	}
	if p.cur.Kind != lexer.EOF {
		return nil, &ParseError{Msg: fmt.Sprintf("unexpected trailing token %q", p.cur.Text), Pos: p.cur.Pos}
	}
	return node, nil
}

// Parser holds one token of lookahead over a lexer.Lexer.
type Parser struct {
	lex *lexer.Lexer
	cur lexer.Token
}

func (p *Parser) next() error {
	t, err := p.lex.Next()
	if err != nil {
		return err
	}
	p.cur = t
	return nil
}

func (p *Parser) errorf(format string, args ...interface{}) error {
	return &ParseError{Msg: fmt.Sprintf(format, args...), Pos: p.cur.Pos}
}

func (p *Parser) expect(k lexer.Kind) error {
	if p.cur.Kind != k {
		return p.errorf("unexpected token %q", p.cur.Text)
	}
	return p.next()
}

func (p *Parser) isKeyword(text string) bool {
	return p.cur.Kind == lexer.Keyword && p.cur.Text == text
}

func (p *Parser) expectKeyword(text string) error {
	if !p.isKeyword(text) {
		return p.errorf("expected %q", text)
	}
	return p.next()
}

// --- precedence ladder ---

func (p *Parser) parsePipe() (*ast.Node, error) {
	left, err := p.parseComma()
	if err != nil {
		return nil, err
	}
	if p.isKeyword("as") {
		if err := p.next(); err != nil {
			return nil, err
		}
		patterns, err := p.parsePatternAlternatives()
		if err != nil {
			return nil, err
		}
		if err := p.expect(lexer.Pipe); err != nil {
			return nil, err
		}
		body, err := p.parsePipe()
		if err != nil {
			return nil, err
		}
		return &ast.Node{Kind: ast.VarBind, Source: left, Patterns: patterns, Next: body}, nil
	}
	if p.cur.Kind == lexer.Pipe {
		if err := p.next(); err != nil {
			return nil, err
		}
		right, err := p.parsePipe()
		if err != nil {
			return nil, err
		}
		return &ast.Node{Kind: ast.Pipe, Left: left, Right: right}, nil
	}
	return left, nil
}

func (p *Parser) parseComma() (*ast.Node, error) {
	left, err := p.parseAlt()
	if err != nil {
		return nil, err
	}
	for p.cur.Kind == lexer.Comma {
		if err := p.next(); err != nil {
			return nil, err
		}
		right, err := p.parseAlt()
		if err != nil {
			return nil, err
		}
		left = &ast.Node{Kind: ast.Comma, Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseAlt() (*ast.Node, error) {
	left, err := p.parseAssign()
	if err != nil {
		return nil, err
	}
	if p.cur.Kind == lexer.SlashSlash {
		if err := p.next(); err != nil {
			return nil, err
		}
		right, err := p.parseAlt()
		if err != nil {
			return nil, err
		}
		return &ast.Node{Kind: ast.BinaryOp, Op: "//", Left: left, Right: right}, nil
	}
	return left, nil
}

func isAssignOp(text string) bool {
	switch text {
	case "=", "|=", "+=", "-=", "*=", "/=", "%=":
		return true
	}
	return false
}

func (p *Parser) parseAssign() (*ast.Node, error) {
	left, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if p.cur.Kind == lexer.Op && isAssignOp(p.cur.Text) {
		op := p.cur.Text
		if err := p.next(); err != nil {
			return nil, err
		}
		right, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		return &ast.Node{Kind: ast.UpdateOp, Op: op, Left: left, Right: right}, nil
	}
	if p.cur.Kind == lexer.SlashSlashEqual {
		if err := p.next(); err != nil {
			return nil, err
		}
		right, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		return &ast.Node{Kind: ast.UpdateOp, Op: "//=", Left: left, Right: right}, nil
	}
	return left, nil
}

func (p *Parser) parseOr() (*ast.Node, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.isKeyword("or") {
		if err := p.next(); err != nil {
			return nil, err
		}
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &ast.Node{Kind: ast.BinaryOp, Op: "or", Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseAnd() (*ast.Node, error) {
	left, err := p.parseCompare()
	if err != nil {
		return nil, err
	}
	for p.isKeyword("and") {
		if err := p.next(); err != nil {
			return nil, err
		}
		right, err := p.parseCompare()
		if err != nil {
			return nil, err
		}
		left = &ast.Node{Kind: ast.BinaryOp, Op: "and", Left: left, Right: right}
	}
	return left, nil
}

func isCompareOp(text string) bool {
	switch text {
	case "==", "!=", "<", "<=", ">", ">=":
		return true
	}
	return false
}

func (p *Parser) parseCompare() (*ast.Node, error) {
	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	if p.cur.Kind == lexer.Op && isCompareOp(p.cur.Text) {
		op := p.cur.Text
		if err := p.next(); err != nil {
			return nil, err
		}
		right, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		return &ast.Node{Kind: ast.BinaryOp, Op: op, Left: left, Right: right}, nil
	}
	return left, nil
}

func (p *Parser) parseAdditive() (*ast.Node, error) {
	left, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for p.cur.Kind == lexer.Op && (p.cur.Text == "+" || p.cur.Text == "-") {
		op := p.cur.Text
		if err := p.next(); err != nil {
			return nil, err
		}
		right, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		left = &ast.Node{Kind: ast.BinaryOp, Op: op, Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseMultiplicative() (*ast.Node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.cur.Kind == lexer.Op && (p.cur.Text == "*" || p.cur.Text == "/" || p.cur.Text == "%") {
		op := p.cur.Text
		if err := p.next(); err != nil {
			return nil, err
		}
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &ast.Node{Kind: ast.BinaryOp, Op: op, Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseUnary() (*ast.Node, error) {
	if p.cur.Kind == lexer.Op && p.cur.Text == "-" {
		if err := p.next(); err != nil {
			return nil, err
		}
		operand, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		return &ast.Node{Kind: ast.UnaryOp, Op: "-", Operand: operand}, nil
	}
	return p.parseTerm()
}

// parseTerm parses a primary expression plus any postfix chain (`.foo`,
// `[...]`, `?`).
func (p *Parser) parseTerm() (*ast.Node, error) {
	prim, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	return p.parsePostfix(prim)
}

func (p *Parser) parsePostfix(left *ast.Node) (*ast.Node, error) {
	for {
		switch p.cur.Kind {
		case lexer.Dot:
			if err := p.next(); err != nil {
				return nil, err
			}
			switch p.cur.Kind {
			case lexer.Ident, lexer.Keyword:
				name := p.cur.Text
				if err := p.next(); err != nil {
					return nil, err
				}
				left = &ast.Node{Kind: ast.Pipe, Left: left, Right: &ast.Node{Kind: ast.Field, Name: name}}
			case lexer.String:
				name := p.cur.Text
				if err := p.next(); err != nil {
					return nil, err
				}
				left = &ast.Node{Kind: ast.Pipe, Left: left, Right: &ast.Node{Kind: ast.Field, Name: name}}
			case lexer.LBracket:
				idx, err := p.parseBracket()
				if err != nil {
					return nil, err
				}
				left = &ast.Node{Kind: ast.Pipe, Left: left, Right: idx}
			default:
				return nil, p.errorf("expected field name or '[' after '.'")
			}
		case lexer.LBracket:
			idx, err := p.parseBracket()
			if err != nil {
				return nil, err
			}
			left = &ast.Node{Kind: ast.Pipe, Left: left, Right: idx}
		case lexer.Question:
			if err := p.next(); err != nil {
				return nil, err
			}
			left = &ast.Node{Kind: ast.Optional, Body: left}
		default:
			return left, nil
		}
	}
}

func (p *Parser) parseBracket() (*ast.Node, error) {
	if err := p.next(); err != nil { // consume '['
		return nil, err
	}
	if p.cur.Kind == lexer.RBracket {
		if err := p.next(); err != nil {
			return nil, err
		}
		return &ast.Node{Kind: ast.IterateAll}, nil
	}
	if p.cur.Kind == lexer.Colon {
		if err := p.next(); err != nil {
			return nil, err
		}
		to, err := p.parsePipe()
		if err != nil {
			return nil, err
		}
		if err := p.expect(lexer.RBracket); err != nil {
			return nil, err
		}
		return &ast.Node{Kind: ast.Slice, To: to}, nil
	}
	first, err := p.parsePipe()
	if err != nil {
		return nil, err
	}
	if p.cur.Kind == lexer.Colon {
		if err := p.next(); err != nil {
			return nil, err
		}
		if p.cur.Kind == lexer.RBracket {
			if err := p.next(); err != nil {
				return nil, err
			}
			return &ast.Node{Kind: ast.Slice, From: first}, nil
		}
		to, err := p.parsePipe()
		if err != nil {
			return nil, err
		}
		if err := p.expect(lexer.RBracket); err != nil {
			return nil, err
		}
		return &ast.Node{Kind: ast.Slice, From: first, To: to}, nil
	}
	if err := p.expect(lexer.RBracket); err != nil {
		return nil, err
	}
	return &ast.Node{Kind: ast.Index, Index: first}, nil
}

// --- primary terms ---

func (p *Parser) parsePrimary() (*ast.Node, error) {
	switch p.cur.Kind {
	case lexer.DotDot:
		if err := p.next(); err != nil {
			return nil, err
		}
		return &ast.Node{Kind: ast.RecurseDefault}, nil
	case lexer.Dot:
		return p.parseDotPrimary()
	case lexer.Number:
		n, err := parseNumberToken(p.cur.Text)
		if err != nil {
			return nil, err
		}
		if err := p.next(); err != nil {
			return nil, err
		}
		return &ast.Node{Kind: ast.Literal, LiteralValue: value.NewNumber(n)}, nil
	case lexer.String, lexer.StringStart:
		return p.parseStringLiteral()
	case lexer.Variable:
		name := p.cur.Text
		if err := p.next(); err != nil {
			return nil, err
		}
		return &ast.Node{Kind: ast.VarRef, VarName: name}, nil
	case lexer.Format:
		return p.parseFormatPrimary()
	case lexer.Ident:
		return p.parseIdentTerm()
	case lexer.LParen:
		if err := p.next(); err != nil {
			return nil, err
		}
		inner, err := p.parsePipe()
		if err != nil {
			return nil, err
		}
		if err := p.expect(lexer.RParen); err != nil {
			return nil, err
		}
		return &ast.Node{Kind: ast.Paren, Body: inner}, nil
	case lexer.LBracket:
		return p.parseArrayLit()
	case lexer.LBrace:
		if err := p.next(); err != nil {
			return nil, err
		}
		return p.parseObjectLit()
	case lexer.Keyword:
		return p.parseKeywordTerm()
	}
	return nil, p.errorf("unexpected token %q", p.cur.Text)
}

func (p *Parser) parseDotPrimary() (*ast.Node, error) {
	if err := p.next(); err != nil { // consume '.'
		return nil, err
	}
	switch p.cur.Kind {
	case lexer.Ident, lexer.Keyword:
		name := p.cur.Text
		if err := p.next(); err != nil {
			return nil, err
		}
		return &ast.Node{Kind: ast.Field, Name: name}, nil
	case lexer.String:
		name := p.cur.Text
		if err := p.next(); err != nil {
			return nil, err
		}
		return &ast.Node{Kind: ast.Field, Name: name}, nil
	case lexer.LBracket:
		return p.parseBracket()
	default:
		return &ast.Node{Kind: ast.Identity}, nil
	}
}

func parseNumberToken(text string) (float64, error) {
	var n float64
	_, err := fmt.Sscanf(text, "%g", &n)
	if err != nil {
		return 0, &ParseError{Msg: "invalid number literal " + text}
	}
	return n, nil
}

func (p *Parser) parseArrayLit() (*ast.Node, error) {
	if err := p.next(); err != nil { // consume '['
		return nil, err
	}
	if p.cur.Kind == lexer.RBracket {
		if err := p.next(); err != nil {
			return nil, err
		}
		return &ast.Node{Kind: ast.ArrayLit}, nil
	}
	elem, err := p.parsePipe()
	if err != nil {
		return nil, err
	}
	if err := p.expect(lexer.RBracket); err != nil {
		return nil, err
	}
	return &ast.Node{Kind: ast.ArrayLit, Elem: elem}, nil
}

func (p *Parser) parseObjectLit() (*ast.Node, error) {
	var entries []ast.ObjectEntry
	if p.cur.Kind == lexer.RBrace {
		if err := p.next(); err != nil {
			return nil, err
		}
		return &ast.Node{Kind: ast.ObjectLit, Entries: entries}, nil
	}
	for {
		entry, err := p.parseObjectEntry()
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
		if p.cur.Kind == lexer.Comma {
			if err := p.next(); err != nil {
				return nil, err
			}
			continue
		}
		break
	}
	if err := p.expect(lexer.RBrace); err != nil {
		return nil, err
	}
	return &ast.Node{Kind: ast.ObjectLit, Entries: entries}, nil
}

func (p *Parser) parseObjectValue() (*ast.Node, error) {
	left, err := p.parseAlt()
	if err != nil {
		return nil, err
	}
	for p.cur.Kind == lexer.Pipe {
		if err := p.next(); err != nil {
			return nil, err
		}
		right, err := p.parseAlt()
		if err != nil {
			return nil, err
		}
		left = &ast.Node{Kind: ast.Pipe, Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseObjectEntry() (ast.ObjectEntry, error) {
	switch p.cur.Kind {
	case lexer.Variable:
		name := p.cur.Text
		if err := p.next(); err != nil {
			return ast.ObjectEntry{}, err
		}
		entry := ast.ObjectEntry{KeyName: name, KeyVar: true, Value: &ast.Node{Kind: ast.VarRef, VarName: name}}
		if p.cur.Kind == lexer.Colon {
			if err := p.next(); err != nil {
				return entry, err
			}
			val, err := p.parseObjectValue()
			if err != nil {
				return entry, err
			}
			entry.Value = val
		}
		return entry, nil
	case lexer.Ident, lexer.Keyword:
		name := p.cur.Text
		if err := p.next(); err != nil {
			return ast.ObjectEntry{}, err
		}
		entry := ast.ObjectEntry{KeyName: name, Value: &ast.Node{Kind: ast.Field, Name: name}}
		if p.cur.Kind == lexer.Colon {
			if err := p.next(); err != nil {
				return entry, err
			}
			val, err := p.parseObjectValue()
			if err != nil {
				return entry, err
			}
			entry.Value = val
		}
		return entry, nil
	case lexer.String, lexer.StringStart:
		keyNode, err := p.parseStringLiteral()
		if err != nil {
			return ast.ObjectEntry{}, err
		}
		var entry ast.ObjectEntry
		if keyNode.Kind == ast.Literal {
			if s, ok := keyNode.LiteralValue.(value.Value); ok && s.Kind == value.String {
				entry.KeyName = s.S
			}
		} else {
			entry.KeyExpr = keyNode
		}
		if p.cur.Kind == lexer.Colon {
			if err := p.next(); err != nil {
				return entry, err
			}
			val, err := p.parseObjectValue()
			if err != nil {
				return entry, err
			}
			entry.Value = val
		} else if entry.KeyName != "" {
			entry.Value = &ast.Node{Kind: ast.Field, Name: entry.KeyName}
		} else {
			return entry, p.errorf("computed string key requires a value")
		}
		return entry, nil
	case lexer.LParen:
		if err := p.next(); err != nil {
			return ast.ObjectEntry{}, err
		}
		keyExpr, err := p.parsePipe()
		if err != nil {
			return ast.ObjectEntry{}, err
		}
		if err := p.expect(lexer.RParen); err != nil {
			return ast.ObjectEntry{}, err
		}
		if err := p.expect(lexer.Colon); err != nil {
			return ast.ObjectEntry{}, err
		}
		val, err := p.parseObjectValue()
		if err != nil {
			return ast.ObjectEntry{}, err
		}
		return ast.ObjectEntry{KeyExpr: keyExpr, Value: val}, nil
	}
	return ast.ObjectEntry{}, p.errorf("invalid object key")
}

func (p *Parser) parseStringLiteral() (*ast.Node, error) {
	tok := p.cur
	if tok.Kind == lexer.String {
		if err := p.next(); err != nil {
			return nil, err
		}
		return &ast.Node{Kind: ast.Literal, LiteralValue: value.NewString(tok.Text)}, nil
	}
	var parts []ast.InterpPart
	parts = append(parts, ast.InterpPart{Literal: tok.Text})
	if err := p.next(); err != nil {
		return nil, err
	}
	for {
		expr, err := p.parsePipe()
		if err != nil {
			return nil, err
		}
		if p.cur.Kind != lexer.RParen {
			return nil, p.errorf("expected ')' to close string interpolation")
		}
		parts = append(parts, ast.InterpPart{Expr: expr})
		mid, err := p.lex.NextStringMid()
		if err != nil {
			return nil, err
		}
		parts = append(parts, ast.InterpPart{Literal: mid.Text})
		if mid.Kind == lexer.StringEnd {
			if err := p.next(); err != nil {
				return nil, err
			}
			break
		}
		if err := p.next(); err != nil {
			return nil, err
		}
	}
	return &ast.Node{Kind: ast.StringInterp, Parts: parts}, nil
}

func (p *Parser) parseFormatPrimary() (*ast.Node, error) {
	name := p.cur.Text
	if err := p.next(); err != nil {
		return nil, err
	}
	node := &ast.Node{Kind: ast.FormatString, Format: name}
	if p.cur.Kind == lexer.String || p.cur.Kind == lexer.StringStart {
		str, err := p.parseStringLiteral()
		if err != nil {
			return nil, err
		}
		node.Body = str
	}
	return node, nil
}

func (p *Parser) parseIdentTerm() (*ast.Node, error) {
	name := p.cur.Text
	if err := p.next(); err != nil {
		return nil, err
	}
	switch name {
	case "true":
		return &ast.Node{Kind: ast.Literal, LiteralValue: value.NewBool(true)}, nil
	case "false":
		return &ast.Node{Kind: ast.Literal, LiteralValue: value.NewBool(false)}, nil
	case "null":
		return &ast.Node{Kind: ast.Literal, LiteralValue: value.NewNull()}, nil
	}
	call := &ast.Node{Kind: ast.Call, Name: name}
	if p.cur.Kind == lexer.LParen {
		if err := p.next(); err != nil {
			return nil, err
		}
		for {
			arg, err := p.parsePipe()
			if err != nil {
				return nil, err
			}
			call.Args = append(call.Args, arg)
			if p.cur.Kind == lexer.Semicolon {
				if err := p.next(); err != nil {
					return nil, err
				}
				continue
			}
			break
		}
		if err := p.expect(lexer.RParen); err != nil {
			return nil, err
		}
	}
	return call, nil
}

func (p *Parser) parseKeywordTerm() (*ast.Node, error) {
	switch p.cur.Text {
	case "if":
		if err := p.next(); err != nil {
			return nil, err
		}
		return p.parseIf()
	case "try":
		if err := p.next(); err != nil {
			return nil, err
		}
		return p.parseTry()
	case "reduce":
		if err := p.next(); err != nil {
			return nil, err
		}
		return p.parseReduce()
	case "foreach":
		if err := p.next(); err != nil {
			return nil, err
		}
		return p.parseForeach()
	case "label":
		if err := p.next(); err != nil {
			return nil, err
		}
		return p.parseLabel()
	case "break":
		if err := p.next(); err != nil {
			return nil, err
		}
		if p.cur.Kind != lexer.Variable {
			return nil, p.errorf("expected label variable after break")
		}
		name := p.cur.Text
		if err := p.next(); err != nil {
			return nil, err
		}
		return &ast.Node{Kind: ast.Break, VarName: name}, nil
	case "def":
		if err := p.next(); err != nil {
			return nil, err
		}
		return p.parseDef()
	case "__loc__":
		if err := p.next(); err != nil {
			return nil, err
		}
		return &ast.Node{Kind: ast.Call, Name: "$__loc__"}, nil
	}
	return nil, p.errorf("unexpected keyword %q", p.cur.Text)
}

func (p *Parser) parseIf() (*ast.Node, error) {
	cond, err := p.parsePipe()
	if err != nil {
		return nil, err
	}
	if err := p.expectKeyword("then"); err != nil {
		return nil, err
	}
	thenExpr, err := p.parsePipe()
	if err != nil {
		return nil, err
	}
	var arms []ast.CondArm
	for p.isKeyword("elif") {
		if err := p.next(); err != nil {
			return nil, err
		}
		c, err := p.parsePipe()
		if err != nil {
			return nil, err
		}
		if err := p.expectKeyword("then"); err != nil {
			return nil, err
		}
		t, err := p.parsePipe()
		if err != nil {
			return nil, err
		}
		arms = append(arms, ast.CondArm{Cond: c, Then: t})
	}
	var elseExpr *ast.Node
	if p.isKeyword("else") {
		if err := p.next(); err != nil {
			return nil, err
		}
		elseExpr, err = p.parsePipe()
		if err != nil {
			return nil, err
		}
	}
	if err := p.expectKeyword("end"); err != nil {
		return nil, err
	}
	return &ast.Node{Kind: ast.Cond, CondExpr: cond, ThenExpr: thenExpr, ElifArms: arms, ElseExpr: elseExpr}, nil
}

func (p *Parser) parseTry() (*ast.Node, error) {
	body, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	node := &ast.Node{Kind: ast.TryCatch, Body: body}
	if p.isKeyword("catch") {
		if err := p.next(); err != nil {
			return nil, err
		}
		catch, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		node.Catch = catch
	}
	return node, nil
}

func (p *Parser) parseSinglePattern() (*ast.Pattern, error) {
	if err := p.expectKeyword("as"); err != nil {
		return nil, err
	}
	return p.parsePattern()
}

func (p *Parser) parseReduce() (*ast.Node, error) {
	src, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	pat, err := p.parseSinglePattern()
	if err != nil {
		return nil, err
	}
	if err := p.expect(lexer.LParen); err != nil {
		return nil, err
	}
	init, err := p.parsePipe()
	if err != nil {
		return nil, err
	}
	if err := p.expect(lexer.Semicolon); err != nil {
		return nil, err
	}
	update, err := p.parsePipe()
	if err != nil {
		return nil, err
	}
	if err := p.expect(lexer.RParen); err != nil {
		return nil, err
	}
	return &ast.Node{Kind: ast.Reduce, ReduceSource: src, ReducePat: pat, Init: init, Update: update}, nil
}

func (p *Parser) parseForeach() (*ast.Node, error) {
	src, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	pat, err := p.parseSinglePattern()
	if err != nil {
		return nil, err
	}
	if err := p.expect(lexer.LParen); err != nil {
		return nil, err
	}
	init, err := p.parsePipe()
	if err != nil {
		return nil, err
	}
	if err := p.expect(lexer.Semicolon); err != nil {
		return nil, err
	}
	update, err := p.parsePipe()
	if err != nil {
		return nil, err
	}
	var extract *ast.Node
	if p.cur.Kind == lexer.Semicolon {
		if err := p.next(); err != nil {
			return nil, err
		}
		extract, err = p.parsePipe()
		if err != nil {
			return nil, err
		}
	}
	if err := p.expect(lexer.RParen); err != nil {
		return nil, err
	}
	return &ast.Node{Kind: ast.Foreach, ReduceSource: src, ReducePat: pat, Init: init, Update: update, Extract: extract}, nil
}

func (p *Parser) parseLabel() (*ast.Node, error) {
	if p.cur.Kind != lexer.Variable {
		return nil, p.errorf("expected label variable after label")
	}
	name := p.cur.Text
	if err := p.next(); err != nil {
		return nil, err
	}
	if err := p.expect(lexer.Pipe); err != nil {
		return nil, err
	}
	body, err := p.parsePipe()
	if err != nil {
		return nil, err
	}
	return &ast.Node{Kind: ast.Label, VarName: name, Body: body}, nil
}

func (p *Parser) parseDef() (*ast.Node, error) {
	if p.cur.Kind != lexer.Ident {
		return nil, p.errorf("expected function name after def")
	}
	name := p.cur.Text
	if err := p.next(); err != nil {
		return nil, err
	}
	var params []string
	if p.cur.Kind == lexer.LParen {
		if err := p.next(); err != nil {
			return nil, err
		}
		for {
			switch p.cur.Kind {
			case lexer.Ident:
				params = append(params, p.cur.Text)
				if err := p.next(); err != nil {
					return nil, err
				}
			case lexer.Variable:
				params = append(params, "$"+p.cur.Text)
				if err := p.next(); err != nil {
					return nil, err
				}
			default:
				return nil, p.errorf("expected parameter name")
			}
			if p.cur.Kind == lexer.Semicolon {
				if err := p.next(); err != nil {
					return nil, err
				}
				continue
			}
			break
		}
		if err := p.expect(lexer.RParen); err != nil {
			return nil, err
		}
	}
	if err := p.expect(lexer.Colon); err != nil {
		return nil, err
	}
	body, err := p.parsePipe()
	if err != nil {
		return nil, err
	}
	if err := p.expect(lexer.Semicolon); err != nil {
		return nil, err
	}
	var rest *ast.Node
	if p.cur.Kind == lexer.EOF {
		rest = &ast.Node{Kind: ast.Identity}
	} else {
		rest, err = p.parsePipe()
		if err != nil {
			return nil, err
		}
	}
	return &ast.Node{Kind: ast.Def, DefName: name, Params: params, DefBody: body, DefRest: rest}, nil
}

// --- patterns ---

func (p *Parser) parsePattern() (*ast.Pattern, error) {
	switch p.cur.Kind {
	case lexer.Variable:
		name := p.cur.Text
		if err := p.next(); err != nil {
			return nil, err
		}
		return &ast.Pattern{Kind: ast.PatternVar, VarName: name}, nil
	case lexer.LBracket:
		if err := p.next(); err != nil {
			return nil, err
		}
		var elems []*ast.Pattern
		if p.cur.Kind != lexer.RBracket {
			for {
				e, err := p.parsePattern()
				if err != nil {
					return nil, err
				}
				elems = append(elems, e)
				if p.cur.Kind == lexer.Comma {
					if err := p.next(); err != nil {
						return nil, err
					}
					continue
				}
				break
			}
		}
		if err := p.expect(lexer.RBracket); err != nil {
			return nil, err
		}
		return &ast.Pattern{Kind: ast.PatternArray, Elems: elems}, nil
	case lexer.LBrace:
		if err := p.next(); err != nil {
			return nil, err
		}
		var entries []ast.ObjectPatternEntry
		if p.cur.Kind != lexer.RBrace {
			for {
				entry, err := p.parseObjectPatternEntry()
				if err != nil {
					return nil, err
				}
				entries = append(entries, entry)
				if p.cur.Kind == lexer.Comma {
					if err := p.next(); err != nil {
						return nil, err
					}
					continue
				}
				break
			}
		}
		if err := p.expect(lexer.RBrace); err != nil {
			return nil, err
		}
		return &ast.Pattern{Kind: ast.PatternObject, ObjEntries: entries}, nil
	}
	return nil, p.errorf("invalid destructuring pattern")
}

func (p *Parser) parseObjectPatternEntry() (ast.ObjectPatternEntry, error) {
	switch p.cur.Kind {
	case lexer.Variable:
		name := p.cur.Text
		if err := p.next(); err != nil {
			return ast.ObjectPatternEntry{}, err
		}
		entry := ast.ObjectPatternEntry{KeyName: name, Value: &ast.Pattern{Kind: ast.PatternVar, VarName: name}}
		if p.cur.Kind == lexer.Colon {
			if err := p.next(); err != nil {
				return entry, err
			}
			sub, err := p.parsePattern()
			if err != nil {
				return entry, err
			}
			entry.Value = sub
		}
		return entry, nil
	case lexer.Ident, lexer.Keyword:
		name := p.cur.Text
		if err := p.next(); err != nil {
			return ast.ObjectPatternEntry{}, err
		}
		if err := p.expect(lexer.Colon); err != nil {
			return ast.ObjectPatternEntry{}, err
		}
		sub, err := p.parsePattern()
		if err != nil {
			return ast.ObjectPatternEntry{}, err
		}
		return ast.ObjectPatternEntry{KeyName: name, Value: sub}, nil
	case lexer.String:
		name := p.cur.Text
		if err := p.next(); err != nil {
			return ast.ObjectPatternEntry{}, err
		}
		if err := p.expect(lexer.Colon); err != nil {
			return ast.ObjectPatternEntry{}, err
		}
		sub, err := p.parsePattern()
		if err != nil {
			return ast.ObjectPatternEntry{}, err
		}
		return ast.ObjectPatternEntry{KeyName: name, Value: sub}, nil
	case lexer.LParen:
		if err := p.next(); err != nil {
			return ast.ObjectPatternEntry{}, err
		}
		keyExpr, err := p.parsePipe()
		if err != nil {
			return ast.ObjectPatternEntry{}, err
		}
		if err := p.expect(lexer.RParen); err != nil {
			return ast.ObjectPatternEntry{}, err
		}
		if err := p.expect(lexer.Colon); err != nil {
			return ast.ObjectPatternEntry{}, err
		}
		sub, err := p.parsePattern()
		if err != nil {
			return ast.ObjectPatternEntry{}, err
		}
		return ast.ObjectPatternEntry{KeyExpr: keyExpr, Value: sub}, nil
	}
	return ast.ObjectPatternEntry{}, p.errorf("invalid object pattern entry")
}

func (p *Parser) parsePatternAlternatives() ([]*ast.Pattern, error) {
	first, err := p.parsePattern()
	if err != nil {
		return nil, err
	}
	patterns := []*ast.Pattern{first}
	for p.cur.Kind == lexer.QuestionSlashSlash {
		if err := p.next(); err != nil {
			return nil, err
		}
		next, err := p.parsePattern()
		if err != nil {
			return nil, err
		}
		patterns = append(patterns, next)
	}
	return patterns, nil
}
