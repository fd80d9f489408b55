package exec

import (
	"strings"

	"github.com/vshell/vshell/shell/ast"
	"github.com/vshell/vshell/shell/expand"
	"github.com/vshell/vshell/shell/glob"
	"github.com/vshell/vshell/shell/parser"
	"github.com/vshell/vshell/shell/token"
)

// compoundEnderFor mirrors the parser's compoundEnders table (spec §4.2):
// the bare word that closes each compound-capture construct.
var compoundEnderFor = map[string]string{
	"if":    "fi",
	"while": "done",
	"for":   "done",
	"case":  "esac",
	"{":     "}",
}

// isCompoundCommand reports whether cmd is a captured if/while/for/case/{
// construct rather than a real command invocation (spec §4.2 "Compound
// command").
func isCompoundCommand(cmd ast.ParsedCommand) bool {
	if len(cmd.Args) != 1 {
		return false
	}
	_, ok := compoundEnderFor[cmd.Command]
	return ok
}

// runCompound re-tokenizes and evaluates a captured compound command's
// source text according to its leading keyword — the "re-parsed/evaluated
// by the compound-command handler" spec §4.2 promises but the parser's
// compound-capture mode only defers.
func (s *ExecState) runCompound(cmd ast.ParsedCommand, stdin string) (Result, error) {
	tokens, err := token.Tokenize(cmd.Args[0])
	if err != nil {
		return Result{}, err
	}
	tokens = stripEOF(tokens)
	if len(tokens) < 2 {
		return Result{}, token.NewSyntaxError(token.Unsupported, 0, 0, 0, "empty "+cmd.Command+" block")
	}
	body := tokens[1 : len(tokens)-1] // drop the leading keyword and matching ender

	switch cmd.Command {
	case "if":
		return s.runIf(body, stdin)
	case "while":
		return s.runWhile(body, stdin)
	case "for":
		return s.runFor(body, stdin)
	case "case":
		return s.runCase(body, stdin)
	default: // "{"
		return s.runTokenSlice(body, stdin)
	}
}

func stripEOF(tokens []token.Token) []token.Token {
	if n := len(tokens); n > 0 && tokens[n-1].Kind == token.EOF {
		return tokens[:n-1]
	}
	return tokens
}

// runTokenSlice parses an already-tokenized slice as a standalone program
// and runs it, the same re-parse step callFunction applies to a captured
// function body.
func (s *ExecState) runTokenSlice(tokens []token.Token, stdin string) (Result, error) {
	pipelines, err := parser.Parse(tokens)
	if err != nil {
		return Result{}, err
	}
	return s.runProgram(pipelines, stdin)
}

// topLevelIndex returns the index of the first unquoted Word token in
// tokens equal to one of want, skipping over any nested compound bodies
// (tracked with a stack of expected enders so `if…then…fi` nested inside
// a `while` condition doesn't confuse the search for `do`). Returns -1 if
// none is found at the top level.
func topLevelIndex(tokens []token.Token, want ...string) int {
	var stack []string
	for i, t := range tokens {
		if t.Kind != token.Word || t.Quoted {
			continue
		}
		if len(stack) == 0 {
			for _, w := range want {
				if t.Text == w {
					return i
				}
			}
		}
		if ender, ok := compoundEnderFor[t.Text]; ok {
			stack = append(stack, ender)
			continue
		}
		if len(stack) > 0 && t.Text == stack[len(stack)-1] {
			stack = stack[:len(stack)-1]
		}
	}
	return -1
}

// topLevelDoubleSemi finds the first top-level `;;` (two adjacent
// Semicolon tokens), the case-clause terminator, skipping nested compound
// bodies the same way topLevelIndex does.
func topLevelDoubleSemi(tokens []token.Token) int {
	var stack []string
	for i, t := range tokens {
		if t.Kind == token.Word && !t.Quoted {
			if ender, ok := compoundEnderFor[t.Text]; ok {
				stack = append(stack, ender)
				continue
			}
			if len(stack) > 0 && t.Text == stack[len(stack)-1] {
				stack = stack[:len(stack)-1]
				continue
			}
		}
		if len(stack) == 0 && t.Kind == token.Semicolon && i+1 < len(tokens) && tokens[i+1].Kind == token.Semicolon {
			return i
		}
	}
	return -1
}

// runIf evaluates `COND then BODY [elif COND then BODY]... [else BODY] `
// (the leading `if` and trailing `fi` already stripped), spec §4.2/§4.5.
func (s *ExecState) runIf(body []token.Token, stdin string) (Result, error) {
	rest := body
	for {
		thenIdx := topLevelIndex(rest, "then")
		if thenIdx < 0 {
			return Result{}, token.NewSyntaxError(token.Unsupported, 0, 0, 0, "malformed if: missing 'then'")
		}
		cond := rest[:thenIdx]
		afterThen := rest[thenIdx+1:]

		branchIdx := topLevelIndex(afterThen, "elif", "else")
		var thenBody, remainder []token.Token
		var kw string
		if branchIdx < 0 {
			thenBody = afterThen
		} else {
			thenBody = afterThen[:branchIdx]
			kw = afterThen[branchIdx].Text
			remainder = afterThen[branchIdx+1:]
		}

		condRes, err := s.runTokenSlice(cond, stdin)
		if err != nil {
			return condRes, err
		}
		if condRes.ExitCode == 0 {
			return s.runTokenSlice(thenBody, stdin)
		}

		switch kw {
		case "elif":
			rest = remainder
			continue
		case "else":
			return s.runTokenSlice(remainder, stdin)
		default:
			return Result{ExitCode: 0}, nil
		}
	}
}

// runWhile evaluates `COND do BODY` (leading `while`/trailing `done`
// already stripped), honoring break/continue signals and the loop
// iteration bound (SPEC_FULL.md supplement: ExecutionLimitKind.LimitIterations).
func (s *ExecState) runWhile(body []token.Token, stdin string) (Result, error) {
	doIdx := topLevelIndex(body, "do")
	if doIdx < 0 {
		return Result{}, token.NewSyntaxError(token.Unsupported, 0, 0, 0, "malformed while: missing 'do'")
	}
	cond := body[:doIdx]
	loopBody := body[doIdx+1:]

	var last Result
	for iter := uint(0); ; iter++ {
		if iter >= s.MaxLoopIterations {
			return last, &ExecutionLimitError{Kind: LimitIterations, Name: "while", Max: s.MaxLoopIterations}
		}
		condRes, err := s.runTokenSlice(cond, stdin)
		if err != nil {
			return condRes, err
		}
		if condRes.ExitCode != 0 {
			return last, nil
		}
		res, signal, err := s.runLoopBody(loopBody, stdin)
		if err != nil {
			return res, err
		}
		last = res
		if signal == loopBreak {
			return last, nil
		}
	}
}

// runFor evaluates `NAME [in WORD...] do BODY` (leading `for`/trailing
// `done` already stripped), defaulting the word list to the positional
// parameters when `in` is omitted, the same as bash's bare `for NAME; do`.
func (s *ExecState) runFor(body []token.Token, stdin string) (Result, error) {
	if len(body) == 0 || body[0].Kind != token.Word {
		return Result{}, token.NewSyntaxError(token.Unsupported, 0, 0, 0, "malformed for: missing loop variable")
	}
	name := body[0].Text
	rest := body[1:]

	doIdx := topLevelIndex(rest, "do")
	if doIdx < 0 {
		return Result{}, token.NewSyntaxError(token.Unsupported, 0, 0, 0, "malformed for: missing 'do'")
	}
	header := rest[:doIdx]
	loopBody := rest[doIdx+1:]

	var words []string
	if inIdx := topLevelIndex(header, "in"); inIdx >= 0 {
		fields, err := s.expandWordTokens(header[inIdx+1:])
		if err != nil {
			return Result{}, err
		}
		words = fields
	} else {
		words = strings.Fields(s.Env["@"])
	}

	var last Result
	for i, w := range words {
		if uint(i) >= s.MaxLoopIterations {
			return last, &ExecutionLimitError{Kind: LimitIterations, Name: "for", Max: s.MaxLoopIterations}
		}
		s.Env[name] = w
		res, signal, err := s.runLoopBody(loopBody, stdin)
		if err != nil {
			return res, err
		}
		last = res
		if signal == loopBreak {
			return last, nil
		}
	}
	return last, nil
}

type loopSignal int

const (
	loopNone loopSignal = iota
	loopBreak
)

// runLoopBody runs one loop-body iteration, translating a break/continue
// signal addressed to this loop into loopBreak/loopNone and decrementing
// (then re-raising) a signal addressed to an outer enclosing loop — the
// `break N`/`continue N` level-skipping spec §4.5 describes.
func (s *ExecState) runLoopBody(loopBody []token.Token, stdin string) (Result, loopSignal, error) {
	res, err := s.runTokenSlice(loopBody, stdin)
	switch sig := err.(type) {
	case *BreakSignal:
		if sig.N > 1 {
			return res, loopBreak, &BreakSignal{N: sig.N - 1}
		}
		return res, loopBreak, nil
	case *ContinueSignal:
		if sig.N > 1 {
			return res, loopBreak, &ContinueSignal{N: sig.N - 1}
		}
		return res, loopNone, nil
	}
	return res, loopNone, err
}

// runCase evaluates `WORD in PATTERN) BODY ;; ...` (leading `case`/trailing
// `esac` already stripped), matching the case word against each clause's
// glob-style pattern alternatives in source order (spec §4.2, GLOSSARY
// "Compound command").
func (s *ExecState) runCase(body []token.Token, stdin string) (Result, error) {
	inIdx := topLevelIndex(body, "in")
	if inIdx < 0 {
		return Result{}, token.NewSyntaxError(token.Unsupported, 0, 0, 0, "malformed case: missing 'in'")
	}
	subjectFields, err := s.expandWordsNoGlob(body[:inIdx])
	if err != nil {
		return Result{}, err
	}
	subject := strings.Join(subjectFields, " ")

	rest := body[inIdx+1:]
	for len(rest) > 0 {
		for len(rest) > 0 && rest[0].Kind == token.Semicolon {
			rest = rest[1:]
		}
		if len(rest) == 0 {
			break
		}

		patEnd := findPatternEnd(rest)
		if patEnd < 0 {
			return Result{}, token.NewSyntaxError(token.Unsupported, 0, 0, 0, "malformed case clause: missing ')'")
		}
		patTokens := rest[:patEnd+1]
		afterPattern := rest[patEnd+1:]

		end := topLevelDoubleSemi(afterPattern)
		var clauseBody, next []token.Token
		if end < 0 {
			clauseBody = afterPattern
		} else {
			clauseBody = afterPattern[:end]
			next = afterPattern[end+2:]
		}

		matched, err := s.caseClauseMatches(patTokens, subject)
		if err != nil {
			return Result{}, err
		}
		if matched {
			return s.runTokenSlice(clauseBody, stdin)
		}
		rest = next
	}
	return Result{ExitCode: 0}, nil
}

// findPatternEnd locates the word token closing a case clause's pattern
// list, the one ending in an unquoted ')' (shell/token's Kind enum has no
// paren token, so `name)`
// and `name ()` both surface as ordinary Word text, same as the parser's
// own `name()` function-signature check).
func findPatternEnd(tokens []token.Token) int {
	for i, t := range tokens {
		if t.Kind == token.Word && !t.Quoted && strings.HasSuffix(t.Text, ")") {
			return i
		}
	}
	return -1
}

// caseClauseMatches expands each `|`-separated pattern alternative and
// tests it against subject with the same glob-pattern compiler the
// filename expander uses (spec §4.4's glob syntax is also case's pattern
// syntax).
func (s *ExecState) caseClauseMatches(patTokens []token.Token, subject string) (bool, error) {
	vars := varsAdapter{state: s}
	runner := runnerAdapter{state: s}
	opts := expand.Options{IFS: s.Env["IFS"], Home: s.Env["HOME"]}

	var alts []string
	var cur strings.Builder
	for i, t := range patTokens {
		if t.Kind == token.Pipe {
			alts = append(alts, cur.String())
			cur.Reset()
			continue
		}
		text := t.Text
		if i == len(patTokens)-1 {
			text = strings.TrimSuffix(text, ")")
		}
		fields, err := expand.ExpandWord(expand.Word{Text: text, Quoted: t.Quoted, SingleQuoted: t.SingleQuoted}, vars, runner, opts)
		if err != nil {
			return false, err
		}
		for _, f := range fields {
			cur.WriteString(f)
		}
	}
	alts = append(alts, cur.String())

	for _, alt := range alts {
		if alt == "*" {
			return true, nil
		}
		re, err := glob.CompileAnchored(alt, s.Options.Extglob)
		if err != nil {
			if alt == subject {
				return true, nil
			}
			continue
		}
		if re.MatchString(subject) {
			return true, nil
		}
	}
	return false, nil
}

// expandWordTokens expands (and, unlike expandWordsNoGlob, glob-expands) a
// run of Word tokens the way a command's own argument vector is expanded
// (spec §4.3 steps 1-5, §4.4 step 6) — used for `for NAME in WORD...`'s
// word list, which bash does filename-generate.
func (s *ExecState) expandWordTokens(tokens []token.Token) ([]string, error) {
	vars := varsAdapter{state: s}
	runner := runnerAdapter{state: s}
	opts := expand.Options{IFS: s.Env["IFS"], Home: s.Env["HOME"], NoUnset: s.Options.NoUnset}

	var rawArgs []string
	var rawQuoted []bool
	for _, t := range tokens {
		if t.Kind != token.Word {
			continue
		}
		fields, err := expand.ExpandWord(expand.Word{Text: t.Text, Quoted: t.Quoted, SingleQuoted: t.SingleQuoted}, vars, runner, opts)
		if err != nil {
			return nil, err
		}
		for _, f := range fields {
			rawArgs = append(rawArgs, f)
			rawQuoted = append(rawQuoted, t.Quoted)
		}
	}

	globOpts := glob.Options{
		Globstar:     s.Options.Globstar,
		Nullglob:     s.Options.Nullglob,
		Failglob:     s.Options.Failglob,
		Dotglob:      s.Options.Dotglob,
		Extglob:      s.Options.Extglob,
		GlobIgnore:   s.Options.GlobIgnore,
		GlobSkipDots: s.Options.GlobSkipDots,
	}
	return glob.ExpandArgs(s.Cwd, s.FS, rawArgs, rawQuoted, globOpts)
}

// expandWordsNoGlob expands a run of Word tokens without filename
// generation, used for `case WORD in` — bash does not glob-expand the
// case subject itself, only the clause patterns it's tested against.
func (s *ExecState) expandWordsNoGlob(tokens []token.Token) ([]string, error) {
	vars := varsAdapter{state: s}
	runner := runnerAdapter{state: s}
	opts := expand.Options{IFS: s.Env["IFS"], Home: s.Env["HOME"], NoUnset: s.Options.NoUnset}

	var out []string
	for _, t := range tokens {
		if t.Kind != token.Word {
			continue
		}
		fields, err := expand.ExpandWord(expand.Word{Text: t.Text, Quoted: t.Quoted, SingleQuoted: t.SingleQuoted}, vars, runner, opts)
		if err != nil {
			return nil, err
		}
		out = append(out, fields...)
	}
	return out, nil
}
