package permission

import (
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// mcpModule splits a tool name of the form mcp__<server>__<tool> into its
// server component and reports whether it is in fact MCP-shaped.
func mcpModule(toolName string) (server string, ok bool) {
	if !strings.HasPrefix(toolName, "mcp__") {
		return "", false
	}
	rest := strings.TrimPrefix(toolName, "mcp__")
	idx := strings.Index(rest, "__")
	if idx < 0 {
		return "", false
	}
	return rest[:idx], true
}

// matchesToolEntry reports whether entry in an allow/disallow tool list
// matches toolName: an exact match, or — for an MCP-shaped tool name — the
// bare server module name or the server's explicit wildcard form.
func matchesToolEntry(entry, toolName string) bool {
	if entry == toolName {
		return true
	}
	server, ok := mcpModule(toolName)
	if !ok {
		return false
	}
	if entry == "mcp__"+server {
		return true
	}
	matched, _ := doublestar.Match(entry, toolName)
	return matched
}

// toolListMatches reports whether toolName matches any entry in list.
func toolListMatches(list []string, toolName string) bool {
	for _, entry := range list {
		if matchesToolEntry(entry, toolName) {
			return true
		}
	}
	return false
}
