package toolpolicy

import (
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// matchGlob matches s against pattern for tool-name and path allow/deny
// entries. The common cases (exact match, bare "*", and simple
// prefix/suffix wildcards) are handled without invoking doublestar;
// anything containing "**" or a more general "*" falls through to it.
func matchGlob(pattern, s string) bool {
	if pattern == "*" {
		return true
	}
	if pattern == s {
		return true
	}
	if strings.Contains(pattern, "**") {
		ok, _ := doublestar.Match(pattern, s)
		return ok
	}
	if strings.HasSuffix(pattern, "*") && !strings.Contains(pattern[:len(pattern)-1], "*") {
		return strings.HasPrefix(s, pattern[:len(pattern)-1])
	}
	if strings.HasPrefix(pattern, "*") && !strings.Contains(pattern[1:], "*") {
		return strings.HasSuffix(s, pattern[1:])
	}
	if strings.Contains(pattern, "*") {
		ok, _ := doublestar.Match(pattern, s)
		return ok
	}
	return false
}

// matchAny reports whether s matches any pattern in a set, used for the
// tool-name allow/deny lists when entries contain globs rather than exact
// tool names.
func matchAny(patterns map[string]bool, s string) bool {
	for pattern := range patterns {
		if matchGlob(pattern, s) {
			return true
		}
	}
	return false
}
