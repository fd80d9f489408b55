package exec

import "github.com/vshell/vshell/shell/ast"

// resolveStdin computes the input a command sees after applying any
// stdin/heredoc/herestring redirection, falling back to defaultStdin (the
// previous pipeline stage's stdout, or the caller-supplied stdin for the
// first stage). The last stdin-shaped redirection in source order wins,
// matching bash's "later redirection overrides earlier one" rule.
func resolveStdin(cmd ast.ParsedCommand, fs fileReader, defaultStdin string) (string, error) {
	stdin := defaultStdin
	for _, r := range cmd.Redirections {
		switch r.Kind {
		case ast.RedirStdin:
			data, err := fs.ReadFile(r.Target)
			if err != nil {
				return "", &NotFoundError{Path: r.Target}
			}
			stdin = data
		case ast.RedirHeredoc, ast.RedirHerestring:
			stdin = r.Body
		}
	}
	return stdin, nil
}

type fileReader interface {
	ReadFile(path string) (string, error)
}

// applyOutputRedirections writes stdout/stderr to any `>`/`>>`/`2>`/`2>>`
// targets, honors `2>&1` stderr-to-stdout merging, and returns the
// stdout/stderr that should still flow onward (to the next pipeline stage,
// or to the caller) — a stream redirected to a file no longer flows
// onward, matching bash.
func applyOutputRedirections(cmd ast.ParsedCommand, fs fileWriter, stdout, stderr string) (string, string, error) {
	for _, r := range cmd.Redirections {
		if r.Kind == ast.RedirStderrToStdout {
			stdout = stdout + stderr
			stderr = ""
		}
	}

	outConsumed, errConsumed := false, false
	for _, r := range cmd.Redirections {
		switch r.Kind {
		case ast.RedirStdout:
			if err := writeTarget(fs, r.Target, stdout, r.Append); err != nil {
				return "", "", err
			}
			outConsumed = true
		case ast.RedirStderr:
			if err := writeTarget(fs, r.Target, stderr, r.Append); err != nil {
				return "", "", err
			}
			errConsumed = true
		}
	}

	if outConsumed {
		stdout = ""
	}
	if errConsumed {
		stderr = ""
	}
	return stdout, stderr, nil
}

type fileWriter interface {
	WriteFile(path, data string) error
	AppendFile(path, data string) error
}

func writeTarget(fs fileWriter, target, data string, append bool) error {
	if append {
		return fs.AppendFile(target, data)
	}
	return fs.WriteFile(target, data)
}
