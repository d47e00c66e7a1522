package permission

import (
	"regexp"
	"strings"
)

// matchCommandPattern reports whether command matches pattern per the
// arbiter's command-pattern rules: a pattern containing '*' becomes a
// full-string regex (each '*' replaced with '.*'); otherwise it is an
// exact match, or — when allowMatch is true — a prefix-plus-space match;
// when allowMatch is false (disallow side) a plain substring match also
// counts, since a disallow pattern should catch a command embedded inside
// a larger pipeline or chain.
func matchCommandPattern(pattern, command string, allowMatch bool) bool {
	if strings.Contains(pattern, "*") {
		expr := "^" + regexp.QuoteMeta(pattern) + "$"
		expr = strings.ReplaceAll(expr, regexp.QuoteMeta("*"), ".*")
		re, err := regexp.Compile(expr)
		if err != nil {
			return false
		}
		return re.MatchString(command)
	}

	if command == pattern {
		return true
	}
	if allowMatch && strings.HasPrefix(command, pattern+" ") {
		return true
	}
	if !allowMatch && strings.Contains(command, pattern) {
		return true
	}
	return false
}

// matchesAnyCommandPattern reports whether command matches any pattern in
// patterns under the given allow/disallow matching rules.
func matchesAnyCommandPattern(patterns []string, command string, allowMatch bool) bool {
	for _, p := range patterns {
		if matchCommandPattern(p, command, allowMatch) {
			return true
		}
	}
	return false
}
