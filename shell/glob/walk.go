package glob

import (
	"path"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/vshell/vshell/capability"
)

// Options controls glob matching/walking behavior (spec §4.4).
type Options struct {
	Globstar     bool
	Nullglob     bool
	Failglob     bool
	Dotglob      bool
	Extglob      bool
	GlobIgnore   string
	GlobSkipDots bool
	BatchSize    int // chunk size listDirBatched filters directory entries in, default 100
}

func (o Options) batchSize() int {
	if o.BatchSize <= 0 {
		return 100
	}
	return o.BatchSize
}

// FailglobError is returned by ExpandArgs when failglob is set and a
// pattern matches nothing.
type FailglobError struct {
	Pattern string
}

func (e *FailglobError) Error() string {
	return "no matches found: " + e.Pattern
}

// ExpandArgs runs glob expansion over every non-quoted argument, preserving
// positional order, and flattens the results (spec §4.4 GlobExpander
// interface, invariant P3). Expansion of independent patterns runs
// concurrently; results are spliced back in argument order.
func ExpandArgs(cwd string, fs capability.FileSystem, args []string, quotedFlags []bool, opts Options) ([]string, error) {
	type job struct {
		idx     int
		matches []string
		err     error
	}

	var wg sync.WaitGroup
	results := make([]job, len(args))

	for i, arg := range args {
		quoted := i < len(quotedFlags) && quotedFlags[i]
		if quoted || !IsGlobPattern(arg, opts.Extglob) {
			results[i] = job{idx: i, matches: []string{arg}}
			continue
		}
		wg.Add(1)
		go func(i int, pattern string) {
			defer wg.Done()
			matches, err := expandOne(cwd, fs, pattern, opts)
			results[i] = job{idx: i, matches: matches, err: err}
		}(i, arg)
	}
	wg.Wait()

	var out []string
	for _, r := range results {
		if r.err != nil {
			return nil, r.err
		}
		out = append(out, r.matches...)
	}
	return out, nil
}

func expandOne(cwd string, fs capability.FileSystem, pattern string, opts Options) ([]string, error) {
	matches, err := Expand(cwd, fs, pattern, opts)
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		if opts.Failglob {
			return nil, &FailglobError{Pattern: pattern}
		}
		if opts.Nullglob {
			return nil, nil
		}
		return []string{pattern}, nil
	}
	return matches, nil
}

// Expand resolves one glob pattern against the filesystem rooted at cwd and
// returns lexicographically sorted matches (spec §5 "Glob results are
// sorted lexicographically").
func Expand(cwd string, fs capability.FileSystem, pattern string, opts Options) ([]string, error) {
	segments := strings.Split(pattern, "/")
	absolute := strings.HasPrefix(pattern, "/")
	if absolute {
		segments = segments[1:]
	}

	globstarIdx := -1
	for i, seg := range segments {
		if seg == "**" {
			globstarIdx = i
			break
		}
	}

	var matches []string
	var err error
	if opts.Globstar && globstarIdx >= 0 {
		matches, err = walkGlobstar(cwd, fs, segments, globstarIdx, absolute, opts)
	} else {
		matches, err = walkSimple(cwd, fs, segments, absolute, opts)
	}
	if err != nil {
		return nil, err
	}

	matches = filterGlobIgnore(matches, opts)
	sort.Strings(matches)
	return matches, nil
}

func filterGlobIgnore(matches []string, opts Options) []string {
	if opts.GlobIgnore == "" {
		return matches
	}
	var patterns []*regexp.Regexp
	for _, p := range strings.Split(opts.GlobIgnore, ":") {
		if p == "" {
			continue
		}
		re, err := CompileAnchored(p, opts.Extglob)
		if err == nil {
			patterns = append(patterns, re)
		}
	}
	out := matches[:0:0]
	for _, m := range matches {
		base := path.Base(m)
		if base == "." || base == ".." {
			continue
		}
		ignored := false
		for _, re := range patterns {
			if re.MatchString(base) {
				ignored = true
				break
			}
		}
		if !ignored {
			out = append(out, m)
		}
	}
	return out
}

// walkSimple handles non-`**` patterns: split on `/`, walk the first
// segment containing glob characters, recurse into matched directories for
// subsequent segments (spec §4.4 "Walking semantics").
func walkSimple(cwd string, fs capability.FileSystem, segments []string, absolute bool, opts Options) ([]string, error) {
	base := ""
	if absolute {
		base = "/"
	}
	prefix := cwd
	if absolute {
		prefix = "/"
	}

	current := []string{prefix}
	rendered := []string{base}

	for _, seg := range segments {
		if seg == "" {
			continue
		}
		var nextDirs, nextRendered []string
		literal := !IsGlobPattern(seg, opts.Extglob)

		for idx, dir := range current {
			if literal {
				child := joinPath(dir, seg)
				if fs.Exists(child) {
					nextDirs = append(nextDirs, child)
					nextRendered = append(nextRendered, joinRendered(rendered[idx], seg))
				}
				continue
			}
			entries, err := listDirBatched(fs, dir, opts)
			if err != nil {
				continue
			}
			re, err := CompileAnchored(seg, opts.Extglob)
			if err != nil {
				return nil, err
			}
			for _, name := range entries {
				if !segmentVisible(name, seg, opts) {
					continue
				}
				if re.MatchString(name) {
					nextDirs = append(nextDirs, joinPath(dir, name))
					nextRendered = append(nextRendered, joinRendered(rendered[idx], name))
				}
			}
		}
		current = nextDirs
		rendered = nextRendered
	}

	return rendered, nil
}

// walkGlobstar handles patterns containing a complete `**` path segment:
// walk every directory below the pre-`**` prefix and match the post-`**`
// tail against each (spec §4.4 "Recursive patterns").
func walkGlobstar(cwd string, fs capability.FileSystem, segments []string, globstarIdx int, absolute bool, opts Options) ([]string, error) {
	pre := segments[:globstarIdx]
	post := segments[globstarIdx+1:]

	preMatches, err := walkSimple(cwd, fs, pre, absolute, opts)
	if err != nil {
		return nil, err
	}
	if len(preMatches) == 0 && len(pre) == 0 {
		base := cwd
		if absolute {
			base = "/"
		}
		preMatches = []string{""}
		_ = base
	}

	var results []string
	for _, preRendered := range preMatches {
		root := joinPath(cwd, preRendered)
		if absolute {
			root = joinPath("/", preRendered)
		}
		dirs, err := collectAllDirs(fs, root, opts)
		if err != nil {
			continue
		}
		for _, d := range dirs {
			relFromRoot := strings.TrimPrefix(strings.TrimPrefix(d, root), "/")
			matches, err := walkSimple(d, fs, post, false, opts)
			if err != nil {
				continue
			}
			for _, m := range matches {
				full := joinRendered(preRendered, joinRendered(relFromRoot, m))
				results = append(results, full)
			}
		}
	}
	return results, nil
}

func collectAllDirs(fs capability.FileSystem, root string, opts Options) ([]string, error) {
	dirs := []string{root}
	queue := []string{root}
	for len(queue) > 0 {
		dir := queue[0]
		queue = queue[1:]
		entries, err := listDirBatched(fs, dir, opts)
		if err != nil {
			continue
		}
		for _, name := range entries {
			if !opts.Dotglob && strings.HasPrefix(name, ".") {
				continue
			}
			child := joinPath(dir, name)
			st, err := fs.Stat(child)
			if err == nil && st.IsDirectory {
				dirs = append(dirs, child)
				queue = append(queue, child)
			}
		}
	}
	return dirs, nil
}

// listDirBatched reads a directory's entries with one ReadDir call, then
// filters them (dropping "."/".." under GlobSkipDots) in chunks of
// Options.BatchSize; the reads themselves are neither batched nor run in
// parallel.
func listDirBatched(fs capability.FileSystem, dir string, opts Options) ([]string, error) {
	entries, err := fs.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	batch := opts.batchSize()
	filtered := entries[:0:0]
	for i := 0; i < len(entries); i += batch {
		end := i + batch
		if end > len(entries) {
			end = len(entries)
		}
		for _, name := range entries[i:end] {
			if opts.GlobSkipDots && (name == "." || name == "..") {
				continue
			}
			filtered = append(filtered, name)
		}
	}
	return filtered, nil
}

func segmentVisible(name, pattern string, opts Options) bool {
	if name == "." || name == ".." {
		return false
	}
	dotglobActive := opts.Dotglob || opts.GlobIgnore != ""
	if !dotglobActive && strings.HasPrefix(name, ".") && !strings.HasPrefix(pattern, ".") {
		return false
	}
	return true
}

func joinPath(base, seg string) string {
	if base == "" {
		return seg
	}
	if strings.HasSuffix(base, "/") {
		return base + seg
	}
	return base + "/" + seg
}

func joinRendered(base, seg string) string {
	if base == "" {
		return seg
	}
	return base + "/" + seg
}
