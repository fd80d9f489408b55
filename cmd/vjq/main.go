// Command vjq is the jq-compatible query command (spec §6 "Query
// command").
package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vshell/vshell/query/eval"
	"github.com/vshell/vshell/query/parser"
	"github.com/vshell/vshell/query/value"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(argv []string) int {
	var (
		raw       bool
		compact   bool
		slurp     bool
		nullInput bool
		namedArgs []string
		jsonArgs  []string
	)

	root := &cobra.Command{
		Use:                "vjq [flags] <program> [file]",
		Short:              "jq-compatible JSON query engine",
		Args:               cobra.MinimumNArgs(1),
		SilenceUsage:       true,
		SilenceErrors:      true,
		DisableFlagsInUseLine: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(cmd, args, raw, compact, slurp, nullInput, namedArgs, jsonArgs)
		},
	}
	root.Flags().BoolVarP(&raw, "raw-output", "r", false, "output raw strings, not JSON-quoted")
	root.Flags().BoolVarP(&compact, "compact-output", "c", false, "compact instead of pretty-printed output")
	root.Flags().BoolVar(&slurp, "slurp", false, "read all inputs into one array")
	root.Flags().BoolVarP(&nullInput, "null-input", "n", false, "don't read any input")
	root.Flags().StringArrayVar(&namedArgs, "arg", nil, "set $NAME to a string VALUE (NAME VALUE)")
	root.Flags().StringArrayVar(&jsonArgs, "argjson", nil, "set $NAME to a JSON VALUE (NAME VALUE)")

	// A pflag flag takes one value, so the two-value --arg/--argjson forms are collected here.
	var rest []string
	for i := 0; i < len(argv); i++ {
		switch {
		case argv[i] == "--arg" && i+2 < len(argv):
			namedArgs = append(namedArgs, argv[i+1], argv[i+2])
			i += 2
		case argv[i] == "--argjson" && i+2 < len(argv):
			jsonArgs = append(jsonArgs, argv[i+1], argv[i+2])
			i += 2
		default:
			rest = append(rest, argv[i])
		}
	}

	exitCode = 0
	root.SetArgs(rest)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "vjq: "+err.Error())
		return 2
	}
	return exitCode
}

// exitCode is set by runQuery since cobra's RunE only reports error/no
// error, not the CLI-surface exit code table spec §6 requires.
var exitCode int

func runQuery(cmd *cobra.Command, args []string, raw, compact, slurp, nullInput bool, namedArgs, jsonArgs []string) error {
	program := args[0]
	node, err := parser.Parse(program)
	if err != nil {
		fmt.Fprintln(os.Stderr, "vjq: "+err.Error())
		exitCode = 2
		return nil
	}

	ev := eval.New()
	ev.ProgName = "vjq"
	if err := bindArgs(ev, namedArgs, jsonArgs); err != nil {
		fmt.Fprintln(os.Stderr, "vjq: "+err.Error())
		exitCode = 2
		return nil
	}

	var inputs []value.Value
	if !nullInput {
		inputs, err = readInputs(cmd, args[1:])
		if err != nil {
			fmt.Fprintln(os.Stderr, "vjq: "+err.Error())
			exitCode = 1
			return nil
		}
	}
	if slurp {
		inputs = []value.Value{value.NewArray(inputs)}
	}
	if nullInput {
		inputs = []value.Value{value.NewNull()}
	}
	if len(inputs) == 0 {
		return nil
	}

	ev.Inputs = inputs[1:]
	hadError := false
	for i := 0; i < len(inputs); i++ {
		if i > 0 {
			ev.Inputs = inputs[i+1:]
		}
		outputs, err := ev.Run(node, inputs[i])
		for _, out := range outputs {
			printValue(out, raw, compact)
		}
		if err != nil {
			fmt.Fprintln(os.Stderr, "vjq: error: "+err.Error())
			hadError = true
		}
	}
	if hadError {
		exitCode = 1
	}
	return nil
}

func printValue(v value.Value, raw, compact bool) {
	if raw && v.Kind == value.String {
		fmt.Println(v.ToGoString())
		return
	}
	fmt.Println(v.ToJSON(!compact))
}

func bindArgs(ev *eval.Evaluator, namedArgs, jsonArgs []string) error {
	for i := 0; i+1 < len(namedArgs); i += 2 {
		ev.Args[namedArgs[i]] = value.NewString(namedArgs[i+1])
	}
	for i := 0; i+1 < len(jsonArgs); i += 2 {
		parsed, rest, err := value.Parse(jsonArgs[i+1])
		if err != nil || strings.TrimSpace(rest) != "" {
			return fmt.Errorf("invalid JSON for --argjson %s", jsonArgs[i])
		}
		ev.Args[jsonArgs[i]] = parsed
	}
	return nil
}

func readInputs(cmd *cobra.Command, files []string) ([]value.Value, error) {
	var r io.Reader = os.Stdin
	if len(files) > 0 {
		f, err := os.Open(files[0])
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return parseDocuments(string(data))
}

func parseDocuments(data string) ([]value.Value, error) {
	var out []value.Value
	rest := data
	for strings.TrimSpace(rest) != "" {
		v, remaining, err := value.Parse(rest)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
		rest = remaining
	}
	return out, nil
}
