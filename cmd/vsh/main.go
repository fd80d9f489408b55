// Command vsh is the bash-compatible shell front end (spec §6 "Shell
// front-end").
package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"
	"github.com/spf13/cobra"

	"github.com/vshell/vshell/capability"
	"github.com/vshell/vshell/capability/osfs"
	_ "github.com/vshell/vshell/shell/builtin"
	"github.com/vshell/vshell/shell/exec"
	"github.com/vshell/vshell/shell/glob"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(argv []string) int {
	var (
		command string
		watch   string
	)

	root := &cobra.Command{
		Use:                   "vsh [flags] [script]",
		Short:                 "bash-compatible shell interpreter",
		SilenceUsage:          true,
		SilenceErrors:         true,
		DisableFlagsInUseLine: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			exitCode = runShell(args, command, watch)
			return nil
		},
	}
	root.Flags().StringVarP(&command, "command", "c", "", "run COMMAND instead of reading a script")
	root.Flags().StringVar(&watch, "watch", "", "re-run the command whenever files matching PATTERN change")

	root.SetArgs(argv)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "vsh: "+err.Error())
		return 2
	}
	return exitCode
}

var exitCode int

func newState() *exec.ExecState {
	fs := osfs.FS{}
	cwd, _ := os.Getwd()
	var state *exec.ExecState
	sub := osfs.SubExecutor{Run: func(commandLine, stdin string) (capability.ExecResult, error) {
		res, err := state.Execute(commandLine, stdin)
		return capability.ExecResult{Stdout: res.Stdout, Stderr: res.Stderr, ExitCode: res.ExitCode}, err
	}}
	state = exec.NewExecState(fs, osfs.HTTPFetcher{}, sub, osfs.Clock{})
	state.Cwd = cwd
	for _, kv := range os.Environ() {
		if i := strings.IndexByte(kv, '='); i >= 0 {
			state.Env[kv[:i]] = kv[i+1:]
		}
	}
	return state
}

func runShell(args []string, command, watch string) int {
	state := newState()

	runOnce := func(src, stdin string) int {
		res, err := state.Execute(src, stdin)
		if res.Stdout != "" {
			fmt.Print(res.Stdout)
		}
		if res.Stderr != "" {
			fmt.Fprint(os.Stderr, res.Stderr)
		}
		if err != nil {
			reportError(err, src)
			if res.ExitCode != 0 {
				return res.ExitCode
			}
			return exitForError(err)
		}
		return res.ExitCode
	}

	if watch != "" {
		stop := make(chan struct{})
		var last int
		err := glob.Watch(state.Cwd, state.FS, watch, glob.Options{}, func() {
			last = runOnce(command, "")
		}, stop)
		if err != nil {
			fmt.Fprintln(os.Stderr, "vsh: "+err.Error())
			return 1
		}
		return last
	}

	if command != "" {
		return runOnce(command, "")
	}

	if len(args) > 0 {
		data, err := os.ReadFile(args[0])
		if err != nil {
			fmt.Fprintln(os.Stderr, "vsh: "+err.Error())
			return 127
		}
		state.SetPositional(args[1:])
		return runOnce(string(data), "")
	}

	return repl(state)
}

func repl(state *exec.ExecState) int {
	scanner := bufio.NewScanner(os.Stdin)
	var last int
	for {
		fmt.Fprint(os.Stderr, "vsh$ ")
		if !scanner.Scan() {
			break
		}
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		res, err := state.Execute(line, "")
		if res.Stdout != "" {
			fmt.Print(res.Stdout)
		}
		if res.Stderr != "" {
			fmt.Fprint(os.Stderr, res.Stderr)
		}
		if err != nil {
			reportError(err, line)
		}
		last = res.ExitCode
	}
	if err := scanner.Err(); err != nil && err != io.EOF {
		fmt.Fprintln(os.Stderr, "vsh: "+err.Error())
	}
	return last
}

// exitForError maps a typed interpreter error to the exit code table (spec
// §6): command-not-found is 127, a bad option is 129, anything else is a
// general error.
func exitForError(err error) int {
	switch err.(type) {
	case *exec.NotFoundError:
		return 127
	case *exec.UnknownOptionError:
		return 129
	default:
		return 1
	}
}

// reportError prints a command-not-found error with a fuzzy "did you mean"
// suggestion against the registered builtin set, the way the teacher's
// planner suggests decorator names via fuzzysearch.
func reportError(err error, src string) {
	var notFound *exec.NotFoundError
	if ne, ok := err.(*exec.NotFoundError); ok {
		notFound = ne
	}
	fmt.Fprintln(os.Stderr, "vsh: "+err.Error())
	if notFound == nil {
		return
	}
	word := strings.Fields(src)
	if len(word) == 0 {
		return
	}
	matches := fuzzy.RankFindFold(word[0], exec.BuiltinNames())
	if len(matches) > 0 {
		fmt.Fprintf(os.Stderr, "vsh: did you mean '%s'?\n", matches[0].Target)
	}
}
