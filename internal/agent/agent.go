// Package agent holds the canonical sub-agent definition and the registry
// the Message Builder's query-option assembly draws from. Unlike the
// teacher, which carries two separate agent representations (a config
// struct and a runtime struct), this package has exactly one.
package agent

// Agent describes one sub-agent available to the Task tool.
type Agent struct {
	Name        string
	Description string
	Prompt      string
	BuiltIn     bool
}

// builtins is the preset sub-agent set every session starts with, mirrored
// from the teacher's built-in agent definitions (general-purpose only;
// the teacher's other presets are tool-execution specific and out of
// scope here).
var builtins = []Agent{
	{
		Name:        "general-purpose",
		Description: "General-purpose agent for open-ended research and multi-step tasks.",
		BuiltIn:     true,
	},
}

// Registry holds the config-defined agents layered over the built-in set.
type Registry struct {
	configured map[string]Agent
}

// NewRegistry builds a registry seeded with the built-in presets.
func NewRegistry() *Registry {
	return &Registry{configured: make(map[string]Agent)}
}

// Register adds or replaces a config-defined agent.
func (r *Registry) Register(a Agent) {
	r.configured[a.Name] = a
}

// Descriptions returns the {name -> description} union of built-ins and
// configured agents, used directly by message.BuildQueryOptions.
func (r *Registry) Descriptions() map[string]string {
	out := make(map[string]string, len(builtins)+len(r.configured))
	for _, a := range builtins {
		out[a.Name] = a.Description
	}
	for name, a := range r.configured {
		out[name] = a.Description
	}
	return out
}

// Get looks up an agent by name across built-ins and configured agents.
func (r *Registry) Get(name string) (Agent, bool) {
	if a, ok := r.configured[name]; ok {
		return a, true
	}
	for _, a := range builtins {
		if a.Name == name {
			return a, true
		}
	}
	return Agent{}, false
}
