package builtin

import (
	"fmt"
	"strings"

	"github.com/vshell/vshell/scm"
	"github.com/vshell/vshell/shell/exec"
)

func init() {
	exec.RegisterBuiltin("git", git)
}

// git dispatches the simulated SCM's subcommands (spec §6, §8 scenario 8).
// Repository failures are fatal tool errors: exit 128, matching real git's
// own convention for "not a repository"/"bad object name"/etc. Usage errors
// (no subcommand, `checkout` or `commit` missing its argument) and unknown
// subcommands exit 1.
func git(s *exec.ExecState, args []string, stdin string) (exec.Result, error) {
	if len(args) == 0 {
		return exec.Result{ExitCode: 1, Stderr: "usage: git <command> [<args>]"}, nil
	}

	sub, rest := args[0], args[1:]
	if sub == "init" {
		return gitInit(s, rest)
	}

	repo, err := scm.Open(s.FS, s.Cwd)
	if err != nil {
		return exec.Result{ExitCode: 128, Stderr: "fatal: " + err.Error()}, nil
	}

	var result exec.Result
	switch sub {
	case "add":
		err = repo.Add(s.FS, s.Cwd, rest)
	case "commit":
		result, err = gitCommit(s, repo, rest)
	case "log":
		result, err = gitLog(repo, rest)
	case "cat-file":
		result, err = gitCatFile(repo, rest)
	case "branch":
		if len(rest) == 0 {
			names := make([]string, 0, len(repo.Branches))
			for name := range repo.Branches {
				names = append(names, name)
			}
			result.Stdout = strings.Join(names, "\n")
			if result.Stdout != "" {
				result.Stdout += "\n"
			}
		} else {
			err = repo.Branch(rest[0])
		}
	case "checkout":
		if len(rest) == 0 {
			return exec.Result{ExitCode: 1, Stderr: "usage: git checkout <branch>"}, nil
		}
		err = repo.Checkout(rest[0])
	default:
		return exec.Result{ExitCode: 1, Stderr: "git: '" + sub + "' is not a git command"}, nil
	}

	if err != nil {
		return exec.Result{ExitCode: 128, Stderr: "fatal: " + strings.TrimPrefix(err.Error(), "fatal: ")}, nil
	}
	if err := repo.Save(s.FS); err != nil {
		return exec.Result{ExitCode: 128, Stderr: "fatal: " + err.Error()}, nil
	}
	return result, nil
}

func gitInit(s *exec.ExecState, args []string) (exec.Result, error) {
	authorName := s.Env["GIT_AUTHOR_NAME"]
	authorEmail := s.Env["GIT_AUTHOR_EMAIL"]
	repo, err := scm.Init(s.FS, s.Cwd, authorName, authorEmail)
	if already, ok := err.(*scm.AlreadyInitializedError); ok {
		return exec.Result{Stdout: already.Error() + "\n"}, nil
	}
	if err != nil {
		return exec.Result{ExitCode: 128, Stderr: "fatal: " + err.Error()}, nil
	}
	if err := repo.Save(s.FS); err != nil {
		return exec.Result{ExitCode: 128, Stderr: "fatal: " + err.Error()}, nil
	}
	return exec.Result{Stdout: "Initialized empty Git repository in " + s.Cwd + "/.git/\n"}, nil
}

func gitCommit(s *exec.ExecState, repo *scm.Repo, args []string) (exec.Result, error) {
	var message string
	for i := 0; i < len(args); i++ {
		if args[i] == "-m" && i+1 < len(args) {
			message = args[i+1]
			i++
		}
	}
	if message == "" {
		return exec.Result{ExitCode: 1, Stderr: "error: switch `m' requires a value"}, nil
	}
	author := s.Env["GIT_AUTHOR_NAME"]
	email := s.Env["GIT_AUTHOR_EMAIL"]
	now := int64(0)
	if s.Clock != nil {
		now = s.Clock.NowMS()
	}
	c, err := repo.Commit(message, author, email, now)
	if err != nil {
		return exec.Result{}, err
	}
	return exec.Result{Stdout: fmt.Sprintf("[%s %s] %s\n", repo.HEAD, scm.ShortHash(c.Hash), message)}, nil
}

func gitLog(repo *scm.Repo, args []string) (exec.Result, error) {
	opts := scm.LogOptions{}
	oneline := false
	for _, a := range args {
		switch {
		case a == "--oneline":
			oneline = true
		case strings.HasPrefix(a, "--grep="):
			opts.Grep = strings.TrimPrefix(a, "--grep=")
		}
	}
	commits := repo.Log(opts)
	var b strings.Builder
	for _, c := range commits {
		if oneline {
			fmt.Fprintf(&b, "%s %s\n", scm.ShortHash(c.Hash), c.Message)
			continue
		}
		fmt.Fprintf(&b, "commit %s\nAuthor: %s <%s>\n\n    %s\n\n", c.Hash, c.Author, c.Email, c.Message)
	}
	return exec.Result{Stdout: b.String()}, nil
}

func gitCatFile(repo *scm.Repo, args []string) (exec.Result, error) {
	var ref string
	for i := 0; i < len(args); i++ {
		if args[i] == "-p" && i+1 < len(args) {
			ref = args[i+1]
			i++
		} else if !strings.HasPrefix(args[i], "-") {
			ref = args[i]
		}
	}
	out, err := repo.CatFile(ref)
	if err != nil {
		return exec.Result{}, err
	}
	return exec.Result{Stdout: out}, nil
}
