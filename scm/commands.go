package scm

import (
	"fmt"
	"sort"
	"strings"

	"github.com/vshell/vshell/capability"
)

// Add stages paths into the index, content-hashing each file's current
// contents and recording path -> content_hash (spec §6 index).
func (r *Repo) Add(fs capability.FileSystem, cwd string, paths []string) error {
	for _, p := range paths {
		abs, err := fs.ResolvePath(cwd, p)
		if err != nil {
			return &NotFoundError{Path: p}
		}
		data, err := fs.ReadFile(abs)
		if err != nil {
			return &NotFoundError{Path: p}
		}
		hash := ContentHash([]byte(data), r.Config.RealHash)
		r.Index[p] = hash
		r.Objects[hash] = data
	}
	return nil
}

// NotFoundError surfaces a missing pathspec (spec §7 NotFound row).
type NotFoundError struct{ Path string }

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("pathspec '%s' did not match any files", e.Path)
}

// Commit snapshots the current index into a new commit, chaining it onto
// HEAD's current commit as parent, and advances the current branch to
// point at it (spec §6 commits[hash]).
func (r *Repo) Commit(message, author, email string, nowMs int64) (*Commit, error) {
	if len(r.Index) == 0 {
		return nil, fmt.Errorf("nothing to commit, working tree clean")
	}

	tree := make(map[string]string, len(r.Index))
	for path, hash := range r.Index {
		tree[path] = hash
	}

	parent, _ := r.HeadCommit()

	treeBytes := canonicalTreeBytes(tree)
	commitPayload := []byte(parent + "\x00" + message + "\x00" + author + "\x00" + email + "\x00" + string(treeBytes))
	hash := ContentHash(commitPayload, r.Config.RealHash)

	c := &Commit{
		Hash: hash, Parent: parent, Message: message,
		Author: author, Email: email, TimestampMs: nowMs, Tree: tree,
	}
	r.Commits[hash] = c
	r.Branches[r.branchName()] = hash
	if !strings.HasPrefix(r.HEAD, "refs/heads/") {
		r.HEAD = "refs/heads/" + r.branchName()
	}
	r.Index = map[string]string{}
	return c, nil
}

// canonicalTreeBytes produces a deterministic byte encoding of a tree so
// Commit's content hash doesn't depend on Go's randomized map iteration.
func canonicalTreeBytes(tree map[string]string) []byte {
	paths := make([]string, 0, len(tree))
	for p := range tree {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	var b strings.Builder
	for _, p := range paths {
		b.WriteString(p)
		b.WriteByte('\x00')
		b.WriteString(tree[p])
		b.WriteByte('\n')
	}
	return []byte(b.String())
}

// LogOptions configures Log.
type LogOptions struct {
	Grep      string // fuzzy-matched against commit messages
	MaxCount  int    // 0 means unlimited
}

// Log walks parent links from HEAD, newest first, optionally fuzzy
// filtering by message (spec's DOMAIN STACK: "git log --grep-style
// filtering" via lithammer/fuzzysearch).
func (r *Repo) Log(opts LogOptions) []*Commit {
	var out []*Commit
	hash, ok := r.HeadCommit()
	for ok {
		c, exists := r.Commits[hash]
		if !exists {
			break
		}
		if matchesGrep(c.Message, opts.Grep) {
			out = append(out, c)
		}
		if opts.MaxCount > 0 && len(out) >= opts.MaxCount {
			break
		}
		hash, ok = c.Parent, c.Parent != ""
	}
	return out
}

// CatFile renders a commit's tree the way `git cat-file -p <hash>` would:
// one "<content-hash> <path>" line per tracked file, sorted by path (spec
// §8 scenario 8: "yields the stored tree containing f").
func (r *Repo) CatFile(hashOrRef string) (string, error) {
	hash := hashOrRef
	if hashOrRef == "HEAD" {
		h, ok := r.HeadCommit()
		if !ok {
			return "", fmt.Errorf("HEAD: unborn branch has no commits yet")
		}
		hash = h
	} else if h, ok := r.Branches[hashOrRef]; ok {
		hash = h
	}
	c, ok := r.Commits[hash]
	if !ok {
		return "", fmt.Errorf("fatal: Not a valid object name %s", hashOrRef)
	}

	paths := make([]string, 0, len(c.Tree))
	for p := range c.Tree {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	var b strings.Builder
	for _, p := range paths {
		fmt.Fprintf(&b, "%s %s\n", c.Tree[p], p)
	}
	return b.String(), nil
}

// Branch creates a new branch pointing at HEAD's current commit, mirroring
// `git branch <name>`.
func (r *Repo) Branch(name string) error {
	if _, exists := r.Branches[name]; exists {
		return fmt.Errorf("fatal: A branch named '%s' already exists", name)
	}
	hash, _ := r.HeadCommit()
	r.Branches[name] = hash
	return nil
}

// Checkout switches HEAD to an existing branch.
func (r *Repo) Checkout(name string) error {
	if _, exists := r.Branches[name]; !exists {
		return fmt.Errorf("error: pathspec '%s' did not match any file(s) known to git", name)
	}
	r.HEAD = "refs/heads/" + name
	return nil
}
