// Package message implements the Message Builder: it turns raw user text
// (possibly containing @<path> image references) into the ordered content
// blocks a turn needs, and assembles the per-turn query options handed to
// the external agent runtime.
package message

import (
	"os"
	"sort"
	"strings"

	"github.com/agentcore/turnengine/pkg/types"
)

// defaultModel mirrors internal/config's constant; kept independent so this
// package has no import-cycle dependency on config.
const defaultModel = "sonnet"

const planModeSystemPromptAppend = `You are in Plan Mode. In this mode you may only use the following ` +
	`tools: Read, Grep, Glob, ExitPlanMode. Explore the codebase, form a plan, and call ExitPlanMode ` +
	`when ready to present it. Do not edit files or run commands that mutate state while in Plan Mode.`

// BuildResult is the Message Builder's reply to buildStreamMessage.
type BuildResult struct {
	ContentBlocks []types.ContentBlock
	ProcessedText string
	Images        []LoadedImage
	Errors        []ImageError
}

// BuildStreamMessage implements the expansion rules: extract image
// references, strip them from the text, and compose content blocks in
// {text?, image...} order.
func BuildStreamMessage(rawText, workDir string) BuildResult {
	if rawText == "" {
		return BuildResult{ContentBlocks: []types.ContentBlock{types.TextBlock("")}}
	}

	refs := findImageReferences(rawText)
	if len(refs) == 0 {
		return BuildResult{ContentBlocks: []types.ContentBlock{types.TextBlock(rawText)}, ProcessedText: rawText}
	}

	var (
		loaded []LoadedImage
		errs   []ImageError
	)
	for _, ref := range refs {
		path := resolveImagePath(ref.Path, workDir)
		img, err := loadImage(path)
		if err != nil {
			errs = append(errs, ImageError{Reference: ref.Path, Message: err.Error()})
			continue
		}
		img.Reference = ref.Path
		loaded = append(loaded, img)
	}

	processed := stripReferences(rawText, refs)

	// All-whitespace input (and thus no non-whitespace text to strip around
	// images) is preserved verbatim when nothing loaded at all.
	if processed == "" && len(loaded) == 0 && isAllWhitespace(rawText) {
		return BuildResult{
			ContentBlocks: []types.ContentBlock{types.TextBlock(rawText)},
			ProcessedText: rawText,
			Errors:        errs,
		}
	}

	var blocks []types.ContentBlock
	if processed != "" || len(loaded) == 0 {
		blocks = append(blocks, types.TextBlock(processed))
	}
	for _, img := range loaded {
		blocks = append(blocks, types.ImageBlock(img.Base64, img.MediaType))
	}

	return BuildResult{
		ContentBlocks: blocks,
		ProcessedText: processed,
		Images:        loaded,
		Errors:        errs,
	}
}

func isAllWhitespace(s string) bool {
	for _, r := range s {
		if r != ' ' && r != '\t' && r != '\n' && r != '\r' {
			return false
		}
	}
	return true
}

// SystemPrompt is the preset-descriptor shape the runtime expects.
type SystemPrompt struct {
	Type   string `json:"type"`
	Preset string `json:"preset"`
	Append string `json:"append,omitempty"`
}

// HookBinding is one {matcher, callback-name} pair for a given hook event.
type HookBinding struct {
	Matcher  string
	Callback string
}

// QueryOptions is the per-turn option struct handed to the runtime's
// streaming entry point.
type QueryOptions struct {
	Model                  string
	SystemPrompt           SystemPrompt
	SettingSources         []string
	AllowedTools           []string
	SubAgents              map[string]string
	Hooks                  map[string][]HookBinding
	EnableFileCheckpointing bool
	RuntimeExtras          map[string]any
	MCPServers             map[string]any
	MaxTurns               int
	MaxBudgetUSD           float64
	MaxThinkingTokens      int
	Sandbox                map[string]any
	Cwd                    string
	PermissionMode         types.PermissionMode
}

// knownTools is the built-in tool catalog's name list, used to intersect
// against a configured allowedTools list. MCP-prefixed names (mcp__*) are
// always accepted regardless of this set.
var knownTools = map[string]bool{
	"Read": true, "Write": true, "Edit": true, "Bash": true, "KillBash": true,
	"Grep": true, "Glob": true, "NotebookEdit": true, "WebFetch": true,
	"WebSearch": true, "Task": true, "Skill": true, "AskUserQuestion": true,
	"ExitPlanMode": true, "TodoWrite": true,
}

// builtinSubAgents is the preset sub-agent set every session starts with.
var builtinSubAgents = map[string]string{
	"general-purpose": "General-purpose agent for open-ended research and multi-step tasks.",
}

// QueryOptionsInput carries everything BuildQueryOptions needs beyond the
// resolved config: session-scoped state the caller (the Turn Engine) owns.
type QueryOptionsInput struct {
	Config             types.ResolvedConfig
	PermissionMode     types.PermissionMode
	WorkingDirectory    string
	ConfiguredAgents    map[string]string
	SessionActiveAgents map[string]string
	ExternalMCPServers  map[string]any
	CustomMCPServers    map[string]any
	Hooks              map[string][]HookBinding
}

// BuildQueryOptions assembles the per-turn option struct per the Message
// Builder's query-options assembly rules.
func BuildQueryOptions(in QueryOptionsInput) QueryOptions {
	opts := QueryOptions{
		Model:          resolveModel(in.Config.Model),
		SystemPrompt:   buildSystemPrompt(in.PermissionMode),
		SettingSources: []string{"project"},
		AllowedTools:   buildAllowedTools(in.Config),
		SubAgents:      buildSubAgents(in.ConfiguredAgents, in.SessionActiveAgents),
		Hooks:          in.Hooks,
		Cwd:            in.WorkingDirectory,
		PermissionMode: in.PermissionMode,
		MaxTurns:       in.Config.MaxTurns,
		MaxBudgetUSD:   in.Config.MaxBudgetUSD,
		MaxThinkingTokens: in.Config.MaxThinkingTokens,
		Sandbox:        in.Config.Sandbox,
	}

	if opts.EnableFileCheckpointing = fileCheckpointingEnabled(); opts.EnableFileCheckpointing {
		opts.RuntimeExtras = map[string]any{"replay-user-messages": nil}
	}

	if merged := mergeMCPServers(in.ExternalMCPServers, in.CustomMCPServers); len(merged) > 0 {
		opts.MCPServers = merged
	}

	return opts
}

func resolveModel(configModel string) string {
	if v := os.Getenv("TURNENGINE_MODEL"); v != "" {
		return v
	}
	if configModel != "" {
		return configModel
	}
	return defaultModel
}

func buildSystemPrompt(mode types.PermissionMode) SystemPrompt {
	sp := SystemPrompt{Type: "preset", Preset: "claude_code"}
	if mode == types.ModePlan {
		sp.Append = planModeSystemPromptAppend
	}
	return sp
}

// buildAllowedTools implements the intersect/union/subtract rule: if
// allowedTools is empty, the field is omitted entirely (nil) so the runtime
// falls back to its own default.
func buildAllowedTools(cfg types.ResolvedConfig) []string {
	if len(cfg.AllowedTools) == 0 {
		return nil
	}

	disallowed := toSet(cfg.DisallowedTools)

	selected := make(map[string]bool)
	for _, name := range cfg.AllowedTools {
		if knownTools[name] || isMCPToolName(name) {
			selected[name] = true
		}
	}

	selected["Skill"] = true
	if _, taskDisallowed := disallowed["Task"]; !taskDisallowed {
		selected["Task"] = true
	}

	for name := range disallowed {
		delete(selected, name)
	}

	out := make([]string, 0, len(selected))
	for name := range selected {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func isMCPToolName(name string) bool {
	return strings.HasPrefix(name, "mcp__")
}

func toSet(list []string) map[string]bool {
	set := make(map[string]bool, len(list))
	for _, v := range list {
		set[v] = true
	}
	return set
}

// buildSubAgents unions the built-in preset with configured agents, with
// session-active agents overriding on name collision.
func buildSubAgents(configured, sessionActive map[string]string) map[string]string {
	agents := make(map[string]string, len(builtinSubAgents)+len(configured)+len(sessionActive))
	for name, desc := range builtinSubAgents {
		agents[name] = desc
	}
	for name, desc := range configured {
		agents[name] = desc
	}
	for name, desc := range sessionActive {
		agents[name] = desc
	}
	return agents
}

func fileCheckpointingEnabled() bool {
	return os.Getenv("CLAUDE_CODE_ENABLE_SDK_FILE_CHECKPOINTING") == "1"
}

// mergeMCPServers merges external and custom server maps, custom taking
// precedence on key collision.
func mergeMCPServers(external, custom map[string]any) map[string]any {
	if len(external) == 0 && len(custom) == 0 {
		return nil
	}
	merged := make(map[string]any, len(external)+len(custom))
	for k, v := range external {
		merged[k] = v
	}
	for k, v := range custom {
		merged[k] = v
	}
	return merged
}

// PlanModeInputPrefix is prepended to rawText by the Turn Engine before
// image parsing, per sendMessage's plan-mode rule.
const PlanModeInputPrefix = "[SYSTEM: You are in Plan Mode. Tool execution is disabled except for Read, Grep, Glob and ExitPlanMode.]\n\n"

// ApplyPlanModePrefix returns rawText prefixed for plan mode when mode is
// ModePlan, else rawText unchanged.
func ApplyPlanModePrefix(rawText string, mode types.PermissionMode) string {
	if mode != types.ModePlan {
		return rawText
	}
	return PlanModeInputPrefix + rawText
}
