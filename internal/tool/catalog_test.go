package tool

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCatalog_DangerousToolsClassifiedCorrectly(t *testing.T) {
	c := New()
	for _, name := range []string{"Write", "Edit", "Bash", "KillBash", "NotebookEdit"} {
		assert.True(t, c.Dangerous(name), name)
	}
	for _, name := range []string{"Read", "Grep", "Glob"} {
		assert.False(t, c.Dangerous(name), name)
	}
}

func TestCatalog_UnknownToolDefaultsToDangerous(t *testing.T) {
	c := New()
	assert.True(t, c.Dangerous("mcp__github__create_issue"))
	assert.False(t, c.Known("mcp__github__create_issue"))
}

func TestCatalog_NamesNonEmpty(t *testing.T) {
	c := New()
	assert.NotEmpty(t, c.Names())
}
