package scm

import "github.com/lithammer/fuzzysearch/fuzzy"

// matchesGrep reports whether message should be kept under a `git log
// --grep=pattern`-style filter. An empty pattern matches everything.
// Fuzzy (not substring) matching follows the teacher's own use of
// fuzzysearch for free-text filtering (runtime/planner/planner.go's
// fuzzy.RankFindFold for decorator-name suggestions).
func matchesGrep(message, pattern string) bool {
	if pattern == "" {
		return true
	}
	return fuzzy.MatchFold(pattern, message)
}
