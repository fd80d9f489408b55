package exec

import (
	"strings"

	"github.com/vshell/vshell/shell/ast"
	"github.com/vshell/vshell/shell/expand"
	"github.com/vshell/vshell/shell/glob"
	"github.com/vshell/vshell/shell/parser"
	"github.com/vshell/vshell/shell/token"
)

// Execute tokenizes, parses, and runs a complete command line, the single
// entry point vsh's REPL and `-c` mode both call (spec §4.5 Executor, §6).
func (s *ExecState) Execute(commandLine, stdin string) (Result, error) {
	tokens, err := token.Tokenize(commandLine)
	if err != nil {
		return Result{Stderr: err.Error(), ExitCode: 2}, nil
	}
	pipelines, err := parser.Parse(tokens)
	if err != nil {
		return Result{Stderr: err.Error(), ExitCode: 2}, nil
	}
	return s.runProgram(pipelines, stdin)
}

// runProgram runs a sequence of pipelines joined by &&/||/; short-circuit
// rules (spec §4.5: each pipeline's leading operator is carried on its
// first ChainedCommand).
func (s *ExecState) runProgram(pipelines []ast.Pipeline, stdin string) (Result, error) {
	var last Result
	for _, pl := range pipelines {
		if pl.Empty() {
			continue
		}
		op := pl.Commands[0].Operator
		switch op {
		case ast.OpAnd:
			if last.ExitCode != 0 {
				continue
			}
		case ast.OpOr:
			if last.ExitCode == 0 {
				continue
			}
		}

		res, err := s.runPipeline(pl, stdin)
		if err != nil {
			return res, err
		}
		last = res
		s.LastStatus = last.ExitCode
		s.Env["?"] = itoa(uint(last.ExitCode))

		if s.Options.ErrExit && last.ExitCode != 0 && op != ast.OpOr {
			return last, nil
		}
	}
	return last, nil
}

// runPipeline connects a pipeline's commands with in-memory pipes: each
// stage's stdout becomes the next stage's stdin (spec §4.5 "Pipeline").
// Negation (`!`) flips the pipeline's overall exit status, computed per
// `pipefail` (last non-zero stage) or bash's default (last stage only).
func (s *ExecState) runPipeline(pl ast.Pipeline, stdin string) (Result, error) {
	cur := stdin
	var final Result
	var stageCodes []int
	negated := false

	for i, chained := range pl.Commands {
		if i == 0 {
			negated = chained.Negated()
		}
		res, err := s.runChainedCommand(chained, cur)
		if err != nil {
			// Control-flow signals (return/break/continue) and real
			// execution errors both propagate unchanged; the caller
			// (callFunction, loop builtins) is responsible for catching
			// the ones it understands.
			return res, err
		}
		stageCodes = append(stageCodes, res.ExitCode)
		cur = res.Stdout
		final = res
	}
	s.Env["PIPESTATUS"] = joinExitCodes(stageCodes)

	exitCode := final.ExitCode
	if s.Options.PipeFail {
		for _, c := range stageCodes {
			if c != 0 {
				exitCode = c
			}
		}
	}
	if negated {
		exitCode = boolToExit(exitCode != 0)
	}
	final.ExitCode = exitCode
	return final, nil
}

// joinExitCodes renders a pipeline's per-stage exit codes as a
// space-separated string, the scalar stand-in for bash's PIPESTATUS array
// since ExecState.Env holds no array type (spec §3 ExecState.env is
// map[string]string).
func joinExitCodes(codes []int) string {
	var b strings.Builder
	for i, c := range codes {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(itoa(uint(c)))
	}
	return b.String()
}

func boolToExit(failed bool) int {
	if failed {
		return 0
	}
	return 1
}

// runChainedCommand dispatches one pipeline stage: function definitions,
// user functions, builtins, and (falling through) external commands run via
// the host Executor capability.
func (s *ExecState) runChainedCommand(chained ast.ChainedCommand, stdin string) (Result, error) {
	cmd := chained.Parsed

	if isFunctionDefinition(cmd) {
		return s.defineFunction(cmd), nil
	}

	in, err := resolveStdin(cmd, s.FS, stdin)
	if err != nil {
		return Result{}, err
	}

	if isCompoundCommand(cmd) {
		res, err := s.runCompound(cmd, in)
		if err != nil {
			return res, err
		}
		stdout, stderr, err := applyOutputRedirections(cmd, s.FS, res.Stdout, res.Stderr)
		if err != nil {
			return Result{}, err
		}
		res.Stdout, res.Stderr = stdout, stderr
		return res, nil
	}

	name, args, err := s.expandCommand(cmd)
	if err != nil {
		return Result{ExitCode: 1, Stderr: err.Error()}, nil
	}
	if name == "" {
		return Result{ExitCode: 0}, nil
	}

	var res Result
	if fn, ok := s.Functions[name]; ok {
		res, err = s.callFunction(fn, args, in)
	} else if builtin, ok := LookupBuiltin(name); ok {
		res, err = builtin(s, args, in)
	} else {
		res, err = s.runExternal(name, args, in)
	}
	if err != nil {
		return res, err
	}

	stdout, stderr, err := applyOutputRedirections(cmd, s.FS, res.Stdout, res.Stderr)
	if err != nil {
		return Result{}, err
	}
	res.Stdout, res.Stderr = stdout, stderr
	return res, nil
}

// runExternal renders name+args back into a command line and hands it to
// the host Executor capability, the same boundary `$(...)` substitution
// uses (capability.Executor "nested shell invocations").
func (s *ExecState) runExternal(name string, args []string, stdin string) (Result, error) {
	if s.SubExec == nil {
		return Result{ExitCode: 127, Stderr: name + ": command not found"}, nil
	}
	line := quoteCommandLine(name, args)
	out, err := s.SubExec.Exec(line, stdin)
	if err != nil {
		return Result{ExitCode: 127, Stderr: err.Error()}, nil
	}
	return Result{Stdout: out.Stdout, Stderr: out.Stderr, ExitCode: out.ExitCode}, nil
}

func quoteCommandLine(name string, args []string) string {
	var b strings.Builder
	b.WriteString(shellQuote(name))
	for _, a := range args {
		b.WriteByte(' ')
		b.WriteString(shellQuote(a))
	}
	return b.String()
}

func shellQuote(s string) string {
	if s == "" {
		return "''"
	}
	needsQuote := strings.ContainsAny(s, " \t\n'\"$`\\|&;()<>*?[]{}!~#")
	if !needsQuote {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// expandCommand runs word expansion then glob expansion over a
// ParsedCommand's command word and argument vector (spec §4.3 steps 1-5,
// §4.4 step 6).
func (s *ExecState) expandCommand(cmd ast.ParsedCommand) (string, []string, error) {
	vars := varsAdapter{state: s}
	runner := runnerAdapter{state: s}
	opts := expand.Options{IFS: s.Env["IFS"], Home: s.Env["HOME"], NoUnset: s.Options.NoUnset}

	cmdWord := expand.Word{Text: cmd.Command}
	cmdFields, err := expand.ExpandWord(cmdWord, vars, runner, opts)
	if err != nil {
		return "", nil, err
	}
	if len(cmdFields) == 0 {
		return "", nil, nil
	}
	name := cmdFields[0]

	var rawArgs []string
	var rawQuoted []bool
	for _, extra := range cmdFields[1:] {
		rawArgs = append(rawArgs, extra)
		rawQuoted = append(rawQuoted, false)
	}

	for i, argText := range cmd.Args {
		quoted := i < len(cmd.QuotedFlags) && cmd.QuotedFlags[i]
		singleQ := i < len(cmd.SingleQuotedFlags) && cmd.SingleQuotedFlags[i]
		fields, err := expand.ExpandWord(expand.Word{Text: argText, Quoted: quoted, SingleQuoted: singleQ}, vars, runner, opts)
		if err != nil {
			return "", nil, err
		}
		for _, f := range fields {
			rawArgs = append(rawArgs, f)
			rawQuoted = append(rawQuoted, quoted)
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
	finalArgs, err := glob.ExpandArgs(s.Cwd, s.FS, rawArgs, rawQuoted, globOpts)
	if err != nil {
		return "", nil, err
	}
	return name, finalArgs, nil
}
