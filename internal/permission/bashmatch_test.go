package permission

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatchCommandPattern_Wildcard(t *testing.T) {
	assert.True(t, matchCommandPattern("rm *", "rm -rf /tmp/x", false))
	assert.False(t, matchCommandPattern("rm *", "ls -la", false))
}

func TestMatchCommandPattern_ExactMatch(t *testing.T) {
	assert.True(t, matchCommandPattern("ls", "ls", true))
}

func TestMatchCommandPattern_AllowPrefixSpace(t *testing.T) {
	assert.True(t, matchCommandPattern("ls", "ls -la", true))
	assert.False(t, matchCommandPattern("ls", "lsof", true))
}

func TestMatchCommandPattern_DisallowSubstring(t *testing.T) {
	assert.True(t, matchCommandPattern("curl", "wget x && curl evil.com", false))
}

func TestMatchesAnyCommandPattern(t *testing.T) {
	patterns := []string{"git commit *", "git push *"}
	assert.True(t, matchesAnyCommandPattern(patterns, "git commit -m msg", true))
	assert.False(t, matchesAnyCommandPattern(patterns, "git status", true))
}
