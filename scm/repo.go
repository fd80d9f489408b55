// Package scm implements the simulated SCM spec §6 specifies: a git-like
// object model persisted as one JSON document, not a real git repository
// or wire protocol (spec's Non-goals: "no real git protocol").
package scm

import (
	"encoding/json"
	"path/filepath"

	"github.com/vshell/vshell/capability"
)

// RepoFile is the path, relative to a working directory, spec §6 fixes
// the persistence format at.
const RepoFile = ".git/repo.json"

// Commit mirrors spec §6's commits[hash] shape field-for-field.
type Commit struct {
	Hash        string            `json:"hash"`
	Parent      string            `json:"parent,omitempty"`
	Message     string            `json:"message"`
	Author      string            `json:"author"`
	Email       string            `json:"email"`
	TimestampMs int64             `json:"timestamp_ms"`
	Tree        map[string]string `json:"tree"`
}

// Config holds the SCM's own identity defaults (spec §6
// GIT_AUTHOR_NAME/GIT_AUTHOR_EMAIL) plus the real-hash opt-in (spec §9
// Open Question).
type Config struct {
	AuthorName  string `json:"authorName" yaml:"author_name"`
	AuthorEmail string `json:"authorEmail" yaml:"author_email"`
	RealHash    bool   `json:"realHash" yaml:"real_hash"`
}

// Repo is the single JSON document spec §6 persists at
// "<cwd>/.git/repo.json", top-level keys HEAD, branches, commits, index,
// objects, config, remotes?, remoteBranches?.
type Repo struct {
	HEAD           string                       `json:"HEAD"`
	Branches       map[string]string            `json:"branches"`
	Commits        map[string]*Commit           `json:"commits"`
	Index          map[string]string            `json:"index"`
	Objects        map[string]string            `json:"objects"`
	Config         Config                       `json:"config"`
	Remotes        map[string]string            `json:"remotes,omitempty"`
	RemoteBranches map[string]map[string]string `json:"remoteBranches,omitempty"`

	dir string // working directory this repo was opened/init'd from
}

// NotInitializedError is raised by every operation that needs an open
// repo when none exists at cwd.
type NotInitializedError struct{ Dir string }

func (e *NotInitializedError) Error() string {
	return "not a git repository (or any of the parent directories): " + e.Dir
}

// AlreadyInitializedError is returned by Init when a repo.json already
// exists at dir.
type AlreadyInitializedError struct{ Dir string }

func (e *AlreadyInitializedError) Error() string {
	return "Reinitialized existing git repository in " + e.Dir
}

// Init creates a fresh repo at dir, defaulting HEAD to "refs/heads/main"
// with no commits yet, the way `git init` leaves an unborn branch. All
// persistence goes through fs (spec's Non-goals: "the simulated SCM is a
// separate product using only the shell's file capability"), never the
// OS filesystem directly.
func Init(fs capability.FileSystem, dir, authorName, authorEmail string) (*Repo, error) {
	path := filepath.Join(dir, RepoFile)
	if fs.Exists(path) {
		existing, loadErr := Open(fs, dir)
		if loadErr == nil {
			return existing, &AlreadyInitializedError{Dir: dir}
		}
	}

	r := &Repo{
		HEAD:     "refs/heads/main",
		Branches: map[string]string{},
		Commits:  map[string]*Commit{},
		Index:    map[string]string{},
		Objects:  map[string]string{},
		Config:   Config{AuthorName: authorName, AuthorEmail: authorEmail},
		dir:      dir,
	}
	if err := r.Save(fs); err != nil {
		return nil, err
	}
	return r, nil
}

// Open loads the repo persisted at dir, spec §6's exact JSON document.
func Open(fs capability.FileSystem, dir string) (*Repo, error) {
	path := filepath.Join(dir, RepoFile)
	if !fs.Exists(path) {
		return nil, &NotInitializedError{Dir: dir}
	}
	data, err := fs.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var r Repo
	if err := json.Unmarshal([]byte(data), &r); err != nil {
		return nil, err
	}
	r.dir = dir
	if r.Branches == nil {
		r.Branches = map[string]string{}
	}
	if r.Commits == nil {
		r.Commits = map[string]*Commit{}
	}
	if r.Index == nil {
		r.Index = map[string]string{}
	}
	if r.Objects == nil {
		r.Objects = map[string]string{}
	}
	return &r, nil
}

// Save persists the repo back to "<dir>/.git/repo.json", bit-exact with
// what Open reads back (spec §6 "specified for bit-exact round-trip").
func (r *Repo) Save(fs capability.FileSystem) error {
	dir := filepath.Join(r.dir, ".git")
	if err := fs.Mkdir(dir, capability.MkdirOpts{Recursive: true}); err != nil {
		return err
	}
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return err
	}
	return fs.WriteFile(filepath.Join(dir, "repo.json"), string(data))
}

// HeadCommit resolves HEAD to a commit hash: either a ref under
// Branches or, if HEAD itself looks like a hash (detached HEAD), HEAD
// verbatim.
func (r *Repo) HeadCommit() (string, bool) {
	if hash, ok := r.Branches[r.branchName()]; ok {
		return hash, hash != ""
	}
	if _, ok := r.Commits[r.HEAD]; ok {
		return r.HEAD, true
	}
	return "", false
}

func (r *Repo) branchName() string {
	const prefix = "refs/heads/"
	if len(r.HEAD) > len(prefix) && r.HEAD[:len(prefix)] == prefix {
		return r.HEAD[len(prefix):]
	}
	return r.HEAD
}
