package authz

import "strings"

// MatchPattern reports whether a policy row's resource-path-pattern
// glob-matches path: "**" matches any suffix, "*" matches a single
// non-"/" segment, anything else needs bytewise equality.
func MatchPattern(pattern, path string) bool {
	return matchSegments(splitPattern(pattern), strings.Split(strings.TrimPrefix(path, "/"), "/"))
}

func splitPattern(pattern string) []string {
	return strings.Split(strings.TrimPrefix(pattern, "/"), "/")
}

func matchSegments(pat, path []string) bool {
	if len(pat) == 0 {
		return len(path) == 0
	}
	head := pat[0]
	if head == "**" {
		if len(pat) == 1 {
			return true
		}
		for i := 0; i <= len(path); i++ {
			if matchSegments(pat[1:], path[i:]) {
				return true
			}
		}
		return false
	}
	if len(path) == 0 {
		return false
	}
	if head == "*" || head == path[0] {
		return matchSegments(pat[1:], path[1:])
	}
	return false
}
