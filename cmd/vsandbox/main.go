// Command vsandbox runs JavaScript/TypeScript source through the sandbox
// worker host (spec §6 "Sandbox front-end").
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/vshell/vshell/sandbox/worker"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(argv []string) int {
	var (
		code        string
		stripTypes  bool
		bootstrap   string
		timeoutMs   int
	)

	root := &cobra.Command{
		Use:                   "vsandbox [flags] [file]",
		Short:                 "sandboxed JavaScript/TypeScript execution bridge",
		SilenceUsage:          true,
		SilenceErrors:         true,
		DisableFlagsInUseLine: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			exitCode = runSandbox(args, code, stripTypes, bootstrap, timeoutMs)
			return nil
		},
	}
	root.Flags().StringVarP(&code, "eval", "c", "", "evaluate CODE instead of reading a file or stdin")
	root.Flags().BoolVar(&stripTypes, "strip-types", false, "strip TypeScript type syntax before execution")
	root.Flags().StringVar(&bootstrap, "bootstrap-file", "", "inject this file's source before user code")
	root.Flags().IntVar(&timeoutMs, "max-js-timeout-ms", 0, "per-execution timeout in milliseconds (default 30000)")

	root.SetArgs(argv)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "vsandbox: "+err.Error())
		return 2
	}
	return exitCode
}

var exitCode int

func runSandbox(args []string, code string, stripTypes bool, bootstrapPath string, timeoutMs int) int {
	filename := ""
	var source string
	switch {
	case code != "":
		source = code
	case len(args) > 0:
		filename = args[0]
		data, err := os.ReadFile(filename)
		if err != nil {
			fmt.Fprintln(os.Stderr, "vsandbox: "+err.Error())
			return 127
		}
		source = string(data)
	default:
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			fmt.Fprintln(os.Stderr, "vsandbox: "+err.Error())
			return 1
		}
		source = string(data)
	}

	var bootstrap string
	if bootstrapPath != "" {
		data, err := os.ReadFile(bootstrapPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "vsandbox: "+err.Error())
			return 127
		}
		bootstrap = string(data)
	}

	stripTypes = stripTypes || worker.DetectStripTypes(filename)
	if stripTypes {
		fmt.Fprintln(os.Stderr, "vsandbox: warning: --strip-types requested but no type-stripping transform is wired; running source as-is")
	}

	opts := worker.Options{
		ModuleMode: worker.DetectModuleMode(filename, source),
		Bootstrap:  bootstrap,
	}

	docJSON, err := json.Marshal(worker.DefaultPolicyDocument())
	if err != nil {
		fmt.Fprintln(os.Stderr, "vsandbox: "+err.Error())
		return 1
	}
	policy, err := worker.CompilePolicy(docJSON)
	if err != nil {
		fmt.Fprintln(os.Stderr, "vsandbox: "+err.Error())
		return 1
	}

	host := worker.NewHost(worker.NewSubprocessRuntime(""), policy)
	if timeoutMs > 0 {
		host.ExecutionTimeout = time.Duration(timeoutMs) * time.Millisecond
	}

	ctx, cancel := context.WithTimeout(context.Background(), host.ExecutionTimeout+5*time.Second)
	defer cancel()

	result, err := host.Execute(ctx, source, opts)
	if result.Stdout != "" {
		fmt.Print(result.Stdout)
	}
	if result.Stderr != "" {
		fmt.Fprint(os.Stderr, result.Stderr)
	}
	if err != nil {
		if errors.Is(err, worker.ErrRuntimeNotConfigured) {
			fmt.Fprintln(os.Stderr, "vsandbox: "+err.Error())
			return 1
		}
		if errors.Is(err, context.DeadlineExceeded) {
			fmt.Fprintln(os.Stderr, "vsandbox: execution timed out")
			return 1
		}
		fmt.Fprintln(os.Stderr, "vsandbox: "+err.Error())
	}
	if result.ExitCode != 0 {
		return result.ExitCode
	}
	if err != nil {
		return 1
	}
	return 0
}
