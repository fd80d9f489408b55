package glob

import (
	"github.com/fsnotify/fsnotify"

	"github.com/vshell/vshell/capability"
)

// Expander is the capability surface the executor uses for argument
// expansion (spec §4.4). A concrete Expander closes over a cwd and
// FileSystem so callers don't have to thread them through every call.
type Expander interface {
	IsGlobPattern(s string) bool
	ExpandArgs(args []string, quotedFlags []bool) ([]string, error)
}

type expander struct {
	cwd  string
	fs   capability.FileSystem
	opts Options
}

// NewExpander builds a glob Expander bound to cwd/fs with the given options.
func NewExpander(cwd string, fs capability.FileSystem, opts Options) Expander {
	return &expander{cwd: cwd, fs: fs, opts: opts}
}

func (e *expander) IsGlobPattern(s string) bool {
	return IsGlobPattern(s, e.opts.Extglob)
}

func (e *expander) ExpandArgs(args []string, quotedFlags []bool) ([]string, error) {
	return ExpandArgs(e.cwd, e.fs, args, quotedFlags, e.opts)
}

// Watch reruns notify whenever a path matching pattern changes, used by the
// vsh REPL's --watch mode. It resolves the pattern once at call time to seed
// the watch set, then re-resolves and reconciles the watch list after every
// event since new files may start matching a glob as they're created.
//
// Watch blocks until stop is closed or the watcher errors.
func Watch(cwd string, fs capability.FileSystem, pattern string, opts Options, notify func(), stop <-chan struct{}) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	reconcile := func() error {
		matches, err := Expand(cwd, fs, pattern, opts)
		if err != nil {
			return err
		}
		watched := watcher.WatchList()
		watchedSet := make(map[string]bool, len(watched))
		for _, w := range watched {
			watchedSet[w] = true
		}
		matchSet := make(map[string]bool, len(matches))
		for _, m := range matches {
			matchSet[m] = true
			if !watchedSet[m] {
				_ = watcher.Add(m)
			}
		}
		for _, w := range watched {
			if !matchSet[w] {
				_ = watcher.Remove(w)
			}
		}
		return nil
	}
	if err := reconcile(); err != nil {
		return err
	}

	for {
		select {
		case <-stop:
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0 {
				notify()
				_ = reconcile()
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			if err != nil {
				return err
			}
		}
	}
}
