package permission

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatchesToolEntry_ExactMatch(t *testing.T) {
	assert.True(t, matchesToolEntry("Read", "Read"))
	assert.False(t, matchesToolEntry("Read", "Write"))
}

func TestMatchesToolEntry_MCPModuleWildcard(t *testing.T) {
	assert.True(t, matchesToolEntry("mcp__github", "mcp__github__create_issue"))
	assert.False(t, matchesToolEntry("mcp__gitlab", "mcp__github__create_issue"))
}

func TestMatchesToolEntry_MCPExplicitWildcard(t *testing.T) {
	assert.True(t, matchesToolEntry("mcp__github__*", "mcp__github__create_issue"))
	assert.False(t, matchesToolEntry("mcp__github__*", "mcp__gitlab__create_issue"))
}

func TestToolListMatches(t *testing.T) {
	list := []string{"Read", "mcp__github"}
	assert.True(t, toolListMatches(list, "Read"))
	assert.True(t, toolListMatches(list, "mcp__github__create_issue"))
	assert.False(t, toolListMatches(list, "Bash"))
}
