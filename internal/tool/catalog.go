// Package tool provides the embedded tool catalog: the fixed set of
// built-in tool names and their default dangerousness classification,
// consumed by the Permission Arbiter's default-mode decision step. Actual
// tool execution (reading/writing files, running shell commands) is the
// external runtime's responsibility and out of scope here.
package tool

// Descriptor is one entry in the embedded catalog.
type Descriptor struct {
	Name      string
	Dangerous bool
}

// catalog mirrors the teacher's tool registry's ID set, narrowed to the
// name + dangerousness classification the arbiter needs; Write, Edit,
// Bash, KillBash, and NotebookEdit require a default-mode prompt exactly
// as the permission package's fallback static catalog already assumes.
var catalog = []Descriptor{
	{Name: "Read"},
	{Name: "Grep"},
	{Name: "Glob"},
	{Name: "List"},
	{Name: "Write", Dangerous: true},
	{Name: "Edit", Dangerous: true},
	{Name: "Bash", Dangerous: true},
	{Name: "KillBash", Dangerous: true},
	{Name: "NotebookEdit", Dangerous: true},
	{Name: "WebFetch"},
	{Name: "WebSearch"},
	{Name: "Task"},
	{Name: "Skill"},
	{Name: "TodoWrite"},
	{Name: "AskUserQuestion"},
	{Name: "ExitPlanMode"},
}

// Catalog implements permission.ToolCatalog over the embedded tool set.
type Catalog struct {
	dangerous map[string]bool
	names     map[string]bool
}

// New builds the embedded catalog.
func New() *Catalog {
	c := &Catalog{dangerous: make(map[string]bool), names: make(map[string]bool)}
	for _, d := range catalog {
		c.names[d.Name] = true
		if d.Dangerous {
			c.dangerous[d.Name] = true
		}
	}
	return c
}

// Dangerous reports whether toolName requires a prompt under default mode.
// MCP-prefixed tools (not part of the embedded catalog) are treated as
// dangerous by default, since their behavior is opaque to this catalog.
func (c *Catalog) Dangerous(toolName string) bool {
	if c.names[toolName] {
		return c.dangerous[toolName]
	}
	return true
}

// Known reports whether toolName is part of the embedded catalog.
func (c *Catalog) Known(toolName string) bool {
	return c.names[toolName]
}

// Names returns every catalog tool name.
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.names))
	for n := range c.names {
		names = append(names, n)
	}
	return names
}
