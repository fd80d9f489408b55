package worker

import (
	"regexp"
	"strings"

	"golang.org/x/mod/semver"
)

// bootstrapVersionPragma matches a leading comment of the form
// "// __JSEXEC_BOOTSTRAP__ v1.2.3" at the top of an injected bootstrap
// source (spec §6 "__JSEXEC_BOOTSTRAP__ (optional bootstrap source
// injected before user code)").
var bootstrapVersionPragma = regexp.MustCompile(`(?m)^//\s*__JSEXEC_BOOTSTRAP__\s+(v\d+\.\d+\.\d+)`)

// BootstrapVersion extracts the version pragma from a bootstrap source, if
// present.
func BootstrapVersion(bootstrap string) (string, bool) {
	m := bootstrapVersionPragma.FindStringSubmatch(bootstrap)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// CompatibleBootstrap reports whether a bootstrap source's pragma version
// is compatible with (>=) the minimum version the host requires, using
// semantic-version comparison the way the teacher compares module
// versions via x/mod/semver.
func CompatibleBootstrap(bootstrap, minVersion string) bool {
	v, ok := BootstrapVersion(bootstrap)
	if !ok {
		return false
	}
	return semver.Compare(v, minVersion) >= 0
}

// DetectModuleMode reports whether source should run as an ES module
// (spec §6 sandbox front-end: "auto-enables module mode for
// .mjs|.ts|.mts or when top-level await is present").
func DetectModuleMode(filename, source string) bool {
	if hasAnyExt(filename, ".mjs", ".ts", ".mts") {
		return true
	}
	return topLevelAwait(source)
}

// DetectStripTypes reports whether TypeScript syntax stripping should run
// before execution (spec §6: "auto-strips types for .ts|.mts or
// --strip-types").
func DetectStripTypes(filename string) bool {
	return hasAnyExt(filename, ".ts", ".mts")
}

func hasAnyExt(filename string, exts ...string) bool {
	lower := strings.ToLower(filename)
	for _, ext := range exts {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

// topLevelAwait is a conservative heuristic: an "await" token that is not
// inside a function body, approximated by checking for "await " at brace
// depth 0; "function"/"=>" openers are not looked at, only braces. A full parse isn't
// worth it here; false positives only widen module-mode selection, which
// is safe (module mode is a superset of script capability for this
// front end).
func topLevelAwait(source string) bool {
	depth := 0
	for i := 0; i < len(source); i++ {
		switch source[i] {
		case '{':
			depth++
		case '}':
			depth--
		}
		if depth == 0 && strings.HasPrefix(source[i:], "await ") {
			return true
		}
	}
	return false
}
